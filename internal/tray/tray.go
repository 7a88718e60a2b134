// Package tray shows notification-area icons with a context menu. Icons are
// created, clicked and destroyed on the UI thread.
package tray

// MenuItem is one context-menu entry. A zero Label renders a separator;
// Children turn the entry into a submenu.
type MenuItem struct {
	Label    string
	Checked  bool
	Action   func()
	Children []MenuItem
}

// Separator returns a separator entry.
func Separator() MenuItem { return MenuItem{} }

// Options configures an Icon.
type Options struct {
	Tooltip string
	// Menu builds the context menu each time it opens.
	Menu func() []MenuItem
	// OnClick runs on a left click.
	OnClick func()
}

// firstCommandID keeps menu command IDs clear of system command values.
const firstCommandID = 1000

// assignIDs numbers every actionable entry depth-first and returns the
// action table keyed by command ID.
func assignIDs(items []MenuItem) map[uint32]func() {
	actions := map[uint32]func(){}
	next := uint32(firstCommandID)
	var walk func([]MenuItem)
	walk = func(items []MenuItem) {
		for _, it := range items {
			if len(it.Children) > 0 {
				walk(it.Children)
				continue
			}
			if it.Label == "" || it.Action == nil {
				continue
			}
			actions[next] = it.Action
			next++
		}
	}
	walk(items)
	return actions
}
