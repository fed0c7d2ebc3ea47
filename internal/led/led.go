// Package led describes LED strips and the colors drawn onto them.
package led

import (
	"encoding"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unsafe"
)

// RGBColor is a 24-bit color in the order the LED controller expects it.
type RGBColor [3]uint8

var (
	_ encoding.TextUnmarshaler = (*RGBColor)(nil)
	_ encoding.TextMarshaler   = (*RGBColor)(nil)
)

// RGB returns an RGBColor from its components.
func RGB(r, g, b uint8) RGBColor {
	return RGBColor{r, g, b}
}

// String formats the color as #rrggbb.
func (c RGBColor) String() string {
	return "#" + hex.EncodeToString(c[:])
}

// UnmarshalText parses a color in the #rrggbb form. The leading # is
// optional.
func (c *RGBColor) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(string(text), "#")
	if len(s) != 6 {
		return fmt.Errorf("invalid color %q: expected #rrggbb", text)
	}

	var b [3]byte
	if _, err := hex.Decode(b[:], []byte(s)); err != nil {
		return fmt.Errorf("invalid color %q: %w", text, err)
	}

	*c = RGBColor(b)
	return nil
}

func (c RGBColor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// LEDs describes a strip of LEDs. It is a preallocated slice of RGBColor.
type LEDs []RGBColor

// NewLEDs creates a new strip of LEDs. Colors are initialized to black
// (off).
func NewLEDs(numLEDs int) LEDs {
	return make(LEDs, numLEDs)
}

// WriteTo implements io.WriterTo. It writes the LED strip to the given writer
// as a series of RGBColor values.
func (l LEDs) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(l.AsPixels())
	return int64(n), err
}

// AsPixels returns the LED strip as a slice of uint8 values. Each LED is
// represented by three values, one for each color channel. The returned slice
// shares memory with l.
func (l LEDs) AsPixels() []uint8 {
	if len(l) == 0 {
		return nil
	}
	return unsafe.Slice((*uint8)(unsafe.Pointer(&l[0])), 3*len(l))
}

// Set sets the color of the LED at the given index.
func (l LEDs) Set(i int, c RGBColor) {
	l[i] = c
}

// SetRange sets the color of the LEDs in the given range.
func (l LEDs) SetRange(start, end int, c RGBColor) {
	for i := start; i < end; i++ {
		l[i] = c
	}
}

// Fill sets every LED in the strip to c.
func (l LEDs) Fill(c RGBColor) {
	l.SetRange(0, len(l), c)
}

// Draw draws the given LEDs into the strip at the given index.
// It stops when either l or other is exhausted and returns the number of LEDs
// written.
func (l LEDs) Draw(start int, other LEDs) int {
	for i := range other {
		if start+i >= len(l) {
			return i
		}
		l[start+i] = other[i]
	}
	return len(other)
}

// DrawReversed is like Draw, except other is drawn back to front, so that
// other[0] lands at l[start+len(other)-1].
func (l LEDs) DrawReversed(start int, other LEDs) int {
	var n int
	for i := range other {
		j := start + len(other) - 1 - i
		if j < 0 || j >= len(l) {
			continue
		}
		l[j] = other[i]
		n++
	}
	return n
}
