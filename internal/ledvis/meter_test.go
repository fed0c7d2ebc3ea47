package ledvis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/catmeter/internal/led"
)

func TestRendererLevel(t *testing.T) {
	r := NewDefaultRenderer()
	require.NoError(t, r.Validate())
	require.Equal(t, 5, r.Len())

	tests := []struct {
		peak  uint16
		level int
	}{
		{0, 0},
		{799, 0},
		{800, 1},
		{1599, 1},
		{1600, 2},
		{3999, 4},
		{4000, 5},
		{10000, 5},
		{65535, 5},
	}

	for _, test := range tests {
		assert.Equal(t, test.level, r.Level(test.peak), "peak %d", test.peak)
	}
}

func TestRendererLevelFormula(t *testing.T) {
	r := &Renderer{Colors: make([]led.RGBColor, 7), Ceiling: 1234}

	prev := 0
	for v := 0; v <= 65535; v++ {
		level := r.Level(uint16(v))
		if v >= 1234 {
			assert.Equal(t, 7, level)
		} else {
			assert.Equal(t, v*7/1234, level)
		}
		assert.GreaterOrEqual(t, level, prev, "level must not decrease at %d", v)
		prev = level
	}
}

func TestRendererRender(t *testing.T) {
	r := NewDefaultRenderer()
	r.Off = led.RGB(1, 1, 1)

	dst := led.NewLEDs(r.Len())
	for k := 0; k <= r.Len(); k++ {
		r.Render(k, dst)
		for i, c := range dst {
			if i < k {
				assert.Equal(t, r.Colors[i], c, "level %d index %d", k, i)
			} else {
				assert.Equal(t, r.Off, c, "level %d index %d", k, i)
			}
		}
	}

	r.Render(-3, dst)
	assert.Equal(t, led.LEDs{r.Off, r.Off, r.Off, r.Off, r.Off}, dst)

	r.Render(99, dst)
	assert.Equal(t, led.LEDs(r.Colors), dst)
}

func TestRendererRenderPeak(t *testing.T) {
	r := NewDefaultRenderer()
	dst := led.NewLEDs(r.Len())

	// Render something first so that stale state would show.
	r.Render(r.Len(), dst)

	assert.Equal(t, 0, r.RenderPeak(0, dst))
	assert.Equal(t, led.NewLEDs(r.Len()), dst)

	assert.Equal(t, 1, r.RenderPeak(800, dst))
	assert.Equal(t, led.LEDs{DefaultColors[0], {}, {}, {}, {}}, dst)

	r.RenderFault(dst)
	for _, c := range dst {
		assert.Equal(t, r.Fault, c)
	}
}

func TestRendererValidate(t *testing.T) {
	assert.Error(t, (&Renderer{Ceiling: 10}).Validate())
	assert.Error(t, (&Renderer{Colors: DefaultColors}).Validate())
}

func TestDirection(t *testing.T) {
	var d Direction
	require.NoError(t, d.UnmarshalText([]byte("down")))
	assert.Equal(t, Down, d)
	assert.Equal(t, "down", d.String())
	assert.Error(t, d.UnmarshalText([]byte("sideways")))

	a, b := led.RGB(1, 0, 0), led.RGB(2, 0, 0)
	strip := led.NewLEDs(5)
	DrawBar(strip, 0, Up, led.LEDs{a, b})
	DrawBar(strip, 3, Down, led.LEDs{a, b})
	assert.Equal(t, led.LEDs{a, b, {}, b, a}, strip)
}
