// Package gamma builds hardware gamma lookup tables and reads or writes them
// on a display device.
package gamma

import (
	"errors"
	"math"
)

// Size is the number of entries per channel in a hardware gamma ramp.
const Size = 256

// ErrUnsupported is returned when the display device does not accept gamma
// ramps (no driver support, remote session, or another owner).
var ErrUnsupported = errors.New("gamma ramp not supported by device")

// Ramp is the GDI gamma ramp layout: red, then green, then blue.
type Ramp struct {
	Red   [Size]uint16
	Green [Size]uint16
	Blue  [Size]uint16
}

// Build computes the dimming curve for brightness in percent. Values outside
// [1,100] are clamped. The result is monotonically non-decreasing with three
// identical channels.
//
// With g = brightness/100 each entry is min(65535, round((i/255)^(1/g) * 65535 * g)).
func Build(brightness int) Ramp {
	brightness = min(max(brightness, 1), 100)
	g := float64(brightness) / 100

	var r Ramp
	for i := range Size {
		v := math.Round(math.Pow(float64(i)/(Size-1), 1/g) * 65535 * g)
		if v > 65535 {
			v = 65535
		}
		r.Red[i] = uint16(v)
	}
	r.Green = r.Red
	r.Blue = r.Red
	return r
}
