package catmeter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/catmeter/internal/led"
	"libdb.so/catmeter/internal/ledvis"
	"libdb.so/catmeter/internal/meter"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(`device = "/dev/ttyACM0"`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultBaud, cfg.Baud)
	assert.Equal(t, meter.DefaultBlockSize, cfg.Meter.BlockSize)
	assert.Equal(t, meter.DefaultBackoff, time.Duration(cfg.Meter.Backoff))
	assert.Equal(t, uint16(ledvis.DefaultCeiling), cfg.Meter.Ceiling)
	assert.Equal(t, ledvis.DefaultColors, cfg.Meter.Colors)
	assert.Equal(t, CatnipSource, cfg.Source.Kind)
	assert.Equal(t, []BarConfig{{Start: 0}, {Start: 5}}, cfg.Bars)
	assert.Equal(t, 10, cfg.NumLEDs())

	require.NotNil(t, cfg.Meter.Fault)
	assert.Equal(t, ledvis.DefaultColors[4], *cfg.Meter.Fault)
}

func TestParseConfig(t *testing.T) {
	const src = `
device = "/dev/ttyUSB0"
baud = 9600
ack_timeout = "1s"

[meter]
block_size = 256
backoff = "20ms"
fault_after = 50
ceiling = 1000
colors = ["#00ff00", "#ffff00", "#ff0000"]
off = "#010101"
fault = "#0000ff"

[source]
kind = "wav"
file = "testdata/tone.wav"
loop = true

[[bar]]
start = 0
direction = "down"

[[bar]]
start = 3
direction = "up"
`

	cfg, err := ParseConfig(strings.NewReader(src))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9600, cfg.Baud)
	assert.Equal(t, time.Second, time.Duration(cfg.AckTimeout))
	assert.Equal(t, meter.Config{
		BlockSize:  256,
		Backoff:    20 * time.Millisecond,
		FaultAfter: 50,
	}, cfg.MeterConfig())

	r := cfg.Renderer()
	assert.Equal(t, []led.RGBColor{
		led.RGB(0, 255, 0),
		led.RGB(255, 255, 0),
		led.RGB(255, 0, 0),
	}, r.Colors)
	assert.Equal(t, led.RGB(1, 1, 1), r.Off)
	assert.Equal(t, led.RGB(0, 0, 255), r.Fault)
	assert.Equal(t, uint16(1000), r.Ceiling)

	assert.Equal(t, SourceConfig{
		Kind:       WAVSource,
		Backend:    DefaultBackend,
		SampleRate: DefaultSampleRate,
		File:       "testdata/tone.wav",
		Loop:       true,
	}, cfg.Source)

	assert.Equal(t, []BarConfig{
		{Start: 0, Direction: ledvis.Down},
		{Start: 3, Direction: ledvis.Up},
	}, cfg.Bars)
	assert.Equal(t, 6, cfg.NumLEDs())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		src  string
		err  string
	}{
		{
			name: "missing device",
			src:  ``,
			err:  "Config.Device: failed required",
		},
		{
			name: "overlapping bars",
			src: `
device = "/dev/ttyUSB0"
[[bar]]
start = 0
[[bar]]
start = 4`,
			err: "overlaps",
		},
		{
			name: "single bar",
			src: `
device = "/dev/ttyUSB0"
[[bar]]
start = 0`,
			err: "Config.Bars: failed min=2",
		},
		{
			name: "unknown source",
			src: `
device = "/dev/ttyUSB0"
[source]
kind = "jack"`,
			err: "failed oneof",
		},
		{
			name: "wav without file",
			src: `
device = "/dev/ttyUSB0"
[source]
kind = "wav"`,
			err: "Config.Source.File: failed required_if",
		},
		{
			name: "negative block size",
			src: `
device = "/dev/ttyUSB0"
[meter]
block_size = -1`,
			err: "Config.Meter.BlockSize",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := ParseConfig(strings.NewReader(test.src))
			require.NoError(t, err)
			assert.ErrorContains(t, cfg.Validate(), test.err)
		})
	}
}

func TestParseConfigBadColor(t *testing.T) {
	_, err := ParseConfig(strings.NewReader(`
device = "/dev/ttyUSB0"
[meter]
colors = ["green"]`))
	assert.Error(t, err)
}
