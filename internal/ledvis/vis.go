// Package ledvis maps audio levels onto LED bar patterns.
package ledvis

import (
	"fmt"

	"libdb.so/catmeter/internal/led"
)

// Direction is the direction a bar fills in as the level rises.
type Direction uint8

const (
	// Up means that the first LED of the bar is the quietest position.
	Up Direction = iota
	// Down means that the last LED of the bar is the quietest position.
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("Direction(%d)", d)
	}
}

// UnmarshalText parses either "up" or "down".
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "up", "":
		*d = Up
	case "down":
		*d = Down
	default:
		return fmt.Errorf("invalid direction %q", text)
	}
	return nil
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DrawBar draws the pattern into the strip at the given index in the given
// direction. It returns the number of LEDs written.
func DrawBar(strip led.LEDs, start int, dir Direction, pattern led.LEDs) int {
	if dir == Down {
		return strip.DrawReversed(start, pattern)
	}
	return strip.Draw(start, pattern)
}
