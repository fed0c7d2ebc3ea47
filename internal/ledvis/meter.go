package ledvis

import (
	"github.com/pkg/errors"
	"libdb.so/catmeter/internal/led"
)

// DefaultCeiling is the peak amplitude at which the bar is fully lit.
const DefaultCeiling = 4000

// DefaultColors is the color table from quiet to loud.
var DefaultColors = []led.RGBColor{
	led.RGB(0, 20, 0),  // green
	led.RGB(0, 20, 0),  // green
	led.RGB(20, 20, 0), // yellow
	led.RGB(20, 10, 0), // orange
	led.RGB(20, 0, 0),  // red
}

// Renderer quantizes peak amplitudes into bar patterns. The number of
// positions on a bar is the length of Colors.
type Renderer struct {
	// Colors is the color of each position, from quiet (index 0) to loud.
	Colors []led.RGBColor
	// Off is the color of unlit positions.
	Off led.RGBColor
	// Fault is the color used by RenderFault.
	Fault led.RGBColor
	// Ceiling is the amplitude at or above which every position is lit.
	Ceiling uint16
}

// NewDefaultRenderer returns a Renderer with the default color table and
// ceiling.
func NewDefaultRenderer() *Renderer {
	colors := make([]led.RGBColor, len(DefaultColors))
	copy(colors, DefaultColors)

	return &Renderer{
		Colors:  colors,
		Fault:   led.RGB(20, 0, 0),
		Ceiling: DefaultCeiling,
	}
}

// Validate checks that the renderer can quantize anything at all.
func (r *Renderer) Validate() error {
	if len(r.Colors) == 0 {
		return errors.New("color table is empty")
	}
	if r.Ceiling == 0 {
		return errors.New("ceiling must be positive")
	}
	return nil
}

// Len returns the number of positions on a bar.
func (r *Renderer) Len() int {
	return len(r.Colors)
}

// Level maps a peak amplitude to the number of lit positions. Amplitudes at
// or above the ceiling light the whole bar; anything below is scaled linearly
// and truncated.
func (r *Renderer) Level(peak uint16) int {
	n := len(r.Colors)
	if peak >= r.Ceiling {
		return n
	}
	return int(uint64(peak) * uint64(n) / uint64(r.Ceiling))
}

// Render writes the pattern for the given level into dst. dst must have
// exactly Len positions.
func (r *Renderer) Render(level int, dst led.LEDs) {
	level = min(max(level, 0), len(r.Colors))

	for i := range dst {
		if i < level {
			dst[i] = r.Colors[i]
		} else {
			dst[i] = r.Off
		}
	}
}

// RenderPeak is Render(Level(peak), dst).
func (r *Renderer) RenderPeak(peak uint16, dst led.LEDs) int {
	level := r.Level(peak)
	r.Render(level, dst)
	return level
}

// RenderFault lights the whole bar in the fault color.
func (r *Renderer) RenderFault(dst led.LEDs) {
	dst.Fill(r.Fault)
}
