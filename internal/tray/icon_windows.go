//go:build windows

package tray

import (
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"tinytools/internal/win32"
)

var (
	procShellNotifyIconW    = win32.Shell32.NewProc("Shell_NotifyIconW")
	procLoadIconW           = win32.User32.NewProc("LoadIconW")
	procCreatePopupMenu     = win32.User32.NewProc("CreatePopupMenu")
	procAppendMenuW         = win32.User32.NewProc("AppendMenuW")
	procTrackPopupMenu      = win32.User32.NewProc("TrackPopupMenu")
	procDestroyMenu         = win32.User32.NewProc("DestroyMenu")
	procGetCursorPos        = win32.User32.NewProc("GetCursorPos")
	procSetForegroundWindow = win32.User32.NewProc("SetForegroundWindow")
)

const (
	className = "TinyToolsTrayIcon"

	wmTrayIcon  = win32.WMApp + 2
	wmNull      = 0x0000
	wmLButtonUp = 0x0202
	wmRButtonUp = 0x0205

	nimAdd    = 0
	nimDelete = 2

	nifMessage = 0x1
	nifIcon    = 0x2
	nifTip     = 0x4

	mfString    = 0x0000
	mfGrayed    = 0x0001
	mfChecked   = 0x0008
	mfPopup     = 0x0010
	mfSeparator = 0x0800

	tpmRightButton = 0x0002
	tpmReturnCmd   = 0x0100

	idiApplication = 32512
)

// notifyIconData mirrors NOTIFYICONDATAW.
type notifyIconData struct {
	Size            uint32
	Wnd             uintptr
	ID              uint32
	Flags           uint32
	CallbackMessage uint32
	Icon            uintptr
	Tip             [128]uint16
	State           uint32
	StateMask       uint32
	Info            [256]uint16
	Version         uint32
	InfoTitle       [64]uint16
	InfoFlags       uint32
	GUIDItem        windows.GUID
	BalloonIcon     uintptr
}

var (
	registerOnce sync.Once
	registerErr  error

	// icons maps each owner window to its Icon; touched only on the UI thread.
	icons = map[uintptr]*Icon{}

	nextIconID uint32
)

// Icon is one notification-area icon and its hidden owner window.
type Icon struct {
	opts Options
	hwnd uintptr
	id   uint32
}

// New returns an icon that is not shown yet.
func New(opts Options) *Icon { return &Icon{opts: opts} }

func trayWndProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	if msg == wmTrayIcon {
		if icon := icons[hwnd]; icon != nil {
			switch uint32(lParam) & 0xFFFF {
			case wmLButtonUp:
				if icon.opts.OnClick != nil {
					icon.opts.OnClick()
				}
			case wmRButtonUp:
				icon.popup()
			}
		}
		return 0
	}
	return win32.DefWindowProc(hwnd, msg, wParam, lParam)
}

func (i *Icon) data() notifyIconData {
	var nid notifyIconData
	nid.Size = uint32(unsafe.Sizeof(nid))
	nid.Wnd = i.hwnd
	nid.ID = i.id
	return nid
}

// Show adds the icon to the notification area. Showing twice is a no-op.
func (i *Icon) Show() error {
	if i.hwnd != 0 {
		return nil
	}
	if err := win32.Load(); err != nil {
		return err
	}
	if err := procShellNotifyIconW.Find(); err != nil {
		return fmt.Errorf("shell32.dll is unavailable: %w", err)
	}
	registerOnce.Do(func() {
		registerErr = win32.RegisterClass(className, syscall.NewCallback(trayWndProc), 0)
	})
	if registerErr != nil {
		return registerErr
	}

	hwnd, err := win32.CreateWindow(0, className, i.opts.Tooltip, 0, 0, 0, 0, 0, 0)
	if err != nil {
		return err
	}
	nextIconID++
	i.hwnd, i.id = hwnd, nextIconID

	nid := i.data()
	nid.Flags = nifMessage | nifIcon | nifTip
	nid.CallbackMessage = wmTrayIcon
	nid.Icon, _, _ = procLoadIconW.Call(0, idiApplication)
	tip, _ := windows.UTF16FromString(i.opts.Tooltip)
	copy(nid.Tip[:len(nid.Tip)-1], tip)

	if res, _, callErr := procShellNotifyIconW.Call(nimAdd, uintptr(unsafe.Pointer(&nid))); res == 0 {
		_ = win32.DestroyWindow(hwnd)
		i.hwnd = 0
		return fmt.Errorf("Shell_NotifyIcon(NIM_ADD): %w", callErr)
	}
	icons[hwnd] = i
	return nil
}

// Close removes the icon and destroys its owner window.
func (i *Icon) Close() error {
	if i.hwnd == 0 {
		return nil
	}
	nid := i.data()
	procShellNotifyIconW.Call(nimDelete, uintptr(unsafe.Pointer(&nid)))
	delete(icons, i.hwnd)
	err := win32.DestroyWindow(i.hwnd)
	i.hwnd = 0
	return err
}

func (i *Icon) popup() {
	if i.opts.Menu == nil {
		return
	}
	items := i.opts.Menu()
	actions := assignIDs(items)

	menu, _, _ := procCreatePopupMenu.Call()
	if menu == 0 {
		slog.Warn("[tray] CreatePopupMenu failed")
		return
	}
	defer procDestroyMenu.Call(menu)

	next := uint32(firstCommandID)
	buildMenu(menu, items, &next)

	var pt win32.Point
	procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	// The owner must be foreground or the menu will not close on click-away.
	procSetForegroundWindow.Call(i.hwnd)
	cmd, _, _ := procTrackPopupMenu.Call(menu, tpmRightButton|tpmReturnCmd,
		uintptr(pt.X), uintptr(pt.Y), 0, i.hwnd, 0)
	_ = win32.PostMessage(i.hwnd, wmNull, 0, 0)

	if action := actions[uint32(cmd)]; action != nil {
		action()
	}
}

// buildMenu appends items to menu, numbering actions in assignIDs order.
func buildMenu(menu uintptr, items []MenuItem, next *uint32) {
	for _, it := range items {
		switch {
		case len(it.Children) > 0:
			sub, _, _ := procCreatePopupMenu.Call()
			buildMenu(sub, it.Children, next)
			appendMenu(menu, mfPopup, sub, it.Label)
		case it.Label == "":
			appendMenu(menu, mfSeparator, 0, "")
		case it.Action == nil:
			appendMenu(menu, mfString|mfGrayed, 0, it.Label)
		default:
			flags := uint32(mfString)
			if it.Checked {
				flags |= mfChecked
			}
			appendMenu(menu, flags, uintptr(*next), it.Label)
			*next++
		}
	}
}

func appendMenu(menu uintptr, flags uint32, id uintptr, label string) {
	var text *uint16
	if label != "" {
		text, _ = windows.UTF16PtrFromString(label)
	}
	procAppendMenuW.Call(menu, uintptr(flags), id, uintptr(unsafe.Pointer(text)))
}
