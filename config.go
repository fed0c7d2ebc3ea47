package catmeter

import (
	"encoding"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"libdb.so/catmeter/internal/led"
	"libdb.so/catmeter/internal/ledvis"
	"libdb.so/catmeter/internal/meter"
)

// Default values for fields that are left unset.
const (
	DefaultBaud       = 115200
	DefaultAckTimeout = 250 * time.Millisecond
	DefaultSampleRate = 44100
	DefaultBackend    = "parec"
)

var validate = validator.New()

// Config is the configuration for the catmeter daemon.
type Config struct {
	// Device is the path to the serial device of the LED controller.
	// This is usually /dev/ttyUSB0 or /dev/ttyACM0.
	Device string `toml:"device" validate:"required"`
	// Baud is the baud rate for the serial connection.
	Baud int `toml:"baud" validate:"gte=0"`
	// AckTimeout is how long to wait for the controller to acknowledge a
	// frame before sending the next one anyway.
	AckTimeout TOMLDuration `toml:"ack_timeout" validate:"gte=0"`
	// Meter configures sampling and quantization.
	Meter MeterConfig `toml:"meter"`
	// Source configures where audio comes from.
	Source SourceConfig `toml:"source"`
	// Bars is the list of LED bars. Every bar shows the same pattern, and
	// there are at least two of them.
	Bars []BarConfig `toml:"bar" validate:"min=2,dive"`
}

// MeterConfig configures the level meter.
type MeterConfig struct {
	// BlockSize is the number of samples reduced to one peak.
	BlockSize int `toml:"block_size" validate:"gte=0"`
	// Backoff is the pause after a failed acquisition.
	Backoff TOMLDuration `toml:"backoff" validate:"gte=0"`
	// FaultAfter is the number of consecutive failed acquisitions after
	// which the bars show the fault color. Zero disables it.
	FaultAfter int `toml:"fault_after" validate:"gte=0"`
	// Ceiling is the peak amplitude at which the bars are fully lit.
	Ceiling uint16 `toml:"ceiling"`
	// Colors is the color of each bar position, from quiet to loud. Its
	// length is the number of LEDs in a bar.
	Colors []led.RGBColor `toml:"colors"`
	// Off is the color of unlit positions.
	Off led.RGBColor `toml:"off"`
	// Fault is the color shown when the source keeps failing. It defaults to
	// the loudest color.
	Fault *led.RGBColor `toml:"fault,omitempty"`
}

// SourceKind is the kind of audio source.
type SourceKind string

const (
	// CatnipSource captures from a microphone through a catnip backend.
	CatnipSource SourceKind = "catnip"
	// WAVSource reads a WAV file.
	WAVSource SourceKind = "wav"
)

// SourceConfig configures the audio source.
type SourceConfig struct {
	Kind SourceKind `toml:"kind" validate:"omitempty,oneof=catnip wav"`

	// Backend, Device and SampleRate are used by catnip sources.
	Backend    string  `toml:"backend"`
	Device     string  `toml:"device"`
	SampleRate float64 `toml:"sample_rate" validate:"gte=0"`

	// File and Loop are used by WAV sources.
	File string `toml:"file" validate:"required_if=Kind wav"`
	Loop bool   `toml:"loop"`
}

// BarConfig is the configuration for a single LED bar.
type BarConfig struct {
	// Start is the index of the first LED of the bar on the strip.
	Start int `toml:"start" validate:"gte=0"`
	// Direction is the direction the bar fills in.
	Direction ledvis.Direction `toml:"direction"`
}

// ApplyDefaults fills in every unset field.
func (c *Config) ApplyDefaults() {
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = TOMLDuration(DefaultAckTimeout)
	}

	if c.Meter.BlockSize == 0 {
		c.Meter.BlockSize = meter.DefaultBlockSize
	}
	if c.Meter.Backoff == 0 {
		c.Meter.Backoff = TOMLDuration(meter.DefaultBackoff)
	}
	if c.Meter.Ceiling == 0 {
		c.Meter.Ceiling = ledvis.DefaultCeiling
	}
	if len(c.Meter.Colors) == 0 {
		c.Meter.Colors = append([]led.RGBColor(nil), ledvis.DefaultColors...)
	}
	if c.Meter.Fault == nil {
		fault := c.Meter.Colors[len(c.Meter.Colors)-1]
		c.Meter.Fault = &fault
	}

	if c.Source.Kind == "" {
		c.Source.Kind = CatnipSource
	}
	if c.Source.Backend == "" {
		c.Source.Backend = DefaultBackend
	}
	if c.Source.SampleRate == 0 {
		c.Source.SampleRate = DefaultSampleRate
	}

	if len(c.Bars) == 0 {
		c.Bars = []BarConfig{
			{Start: 0},
			{Start: c.BarLength()},
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describeValidation(err)
	}

	if err := c.Renderer().Validate(); err != nil {
		return err
	}

	// Check for overlapping bars.
	n := c.BarLength()
	for i, bar1 := range c.Bars {
		for j, bar2 := range c.Bars {
			if i == j {
				continue
			}
			if bar1.Start < bar2.Start+n && bar2.Start < bar1.Start+n {
				return fmt.Errorf("bar at %d overlaps with bar at %d", bar1.Start, bar2.Start)
			}
		}
	}

	if c.NumLEDs() > 0xFFFF {
		return fmt.Errorf("too many LEDs: %d", c.NumLEDs())
	}

	return nil
}

func describeValidation(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, len(verrs))
	for i, e := range verrs {
		if e.Param() != "" {
			msgs[i] = fmt.Sprintf("%s: failed %s=%s", e.Namespace(), e.Tag(), e.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s: failed %s", e.Namespace(), e.Tag())
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// BarLength returns the number of LEDs in a single bar.
func (c *Config) BarLength() int {
	return len(c.Meter.Colors)
}

// NumLEDs returns the number of LEDs on the strip.
func (c *Config) NumLEDs() int {
	var numLEDs int
	for _, bar := range c.Bars {
		if end := bar.Start + c.BarLength(); end > numLEDs {
			numLEDs = end
		}
	}
	return numLEDs
}

// Renderer returns the renderer described by the meter configuration.
func (c *Config) Renderer() *ledvis.Renderer {
	r := &ledvis.Renderer{
		Colors:  c.Meter.Colors,
		Off:     c.Meter.Off,
		Ceiling: c.Meter.Ceiling,
	}
	if c.Meter.Fault != nil {
		r.Fault = *c.Meter.Fault
	}
	return r
}

// MeterConfig returns the configuration for the meter loop.
func (c *Config) MeterConfig() meter.Config {
	return meter.Config{
		BlockSize:  c.Meter.BlockSize,
		Backoff:    time.Duration(c.Meter.Backoff),
		FaultAfter: c.Meter.FaultAfter,
	}
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig parses a configuration from a reader and fills in the
// defaults. The returned configuration is not validated.
func ParseConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, err
	}
	config.ApplyDefaults()
	return &config, nil
}
