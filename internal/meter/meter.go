// Package meter implements the sampling loop of the level meter: it acquires
// blocks of samples, reduces each to its peak amplitude and renders the
// resulting level onto the LED bars.
package meter

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"libdb.so/catmeter/internal/led"
	"libdb.so/catmeter/internal/ledvis"
)

// Default tuning values.
const (
	DefaultBlockSize = 512
	DefaultBackoff   = 10 * time.Millisecond
)

// ErrAcquisition is wrapped around every error returned by a Source.
var ErrAcquisition = errors.New("audio acquisition failed")

// Source is a microphone-like audio source.
type Source interface {
	// ReadSamples fills dst with the next len(dst) samples. It blocks until
	// the samples are available. If it returns an error, the contents of dst
	// are undefined.
	ReadSamples(ctx context.Context, dst []int16) error
}

// Sink is a pair of LED bars.
type Sink interface {
	// SetBars sets the pattern shown on both bars. It does not transmit
	// anything and must not retain the slice.
	SetBars(pattern led.LEDs)
	// Update transmits the pattern set by SetBars to the hardware.
	Update(ctx context.Context) error
}

// Config is the configuration for a Meter.
type Config struct {
	// BlockSize is the number of samples reduced to a single peak.
	BlockSize int
	// Backoff is how long to pause after a failed acquisition.
	Backoff time.Duration
	// FaultAfter is the number of consecutive failed acquisitions after which
	// the fault pattern is shown. Zero disables the fault pattern.
	FaultAfter int
	// OnAcquisitionFailure, if not nil, is called with every acquisition
	// error before the meter backs off.
	OnAcquisitionFailure func(error)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BlockSize: DefaultBlockSize,
		Backoff:   DefaultBackoff,
	}
}

// Outcome is what a single Step did.
type Outcome uint8

const (
	// Rendered means that a block was acquired and its level was rendered.
	Rendered Outcome = iota
	// BackedOff means that acquisition failed and the meter paused.
	BackedOff
	// Faulted means that acquisition failed, the fault pattern was rendered
	// and the meter paused.
	Faulted
)

func (o Outcome) String() string {
	switch o {
	case Rendered:
		return "rendered"
	case BackedOff:
		return "backed-off"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("Outcome(%d)", o)
	}
}

// Meter is the acquire-reduce-render loop. It is not safe for concurrent use.
type Meter struct {
	cfg      Config
	src      Source
	sink     Sink
	renderer *ledvis.Renderer

	block   []int16
	pattern led.LEDs

	failures int
	sleep    func(context.Context, time.Duration) error
}

// New creates a new Meter. The sample block and the bar pattern are allocated
// here once and reused by every Step.
func New(cfg Config, src Source, sink Sink, renderer *ledvis.Renderer) (*Meter, error) {
	if cfg.BlockSize < 0 {
		return nil, errors.New("block size must not be negative")
	}
	if cfg.Backoff < 0 {
		return nil, errors.New("backoff must not be negative")
	}
	if cfg.FaultAfter < 0 {
		return nil, errors.New("fault threshold must not be negative")
	}
	if renderer == nil {
		return nil, errors.New("no renderer")
	}
	if err := renderer.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid renderer")
	}

	return &Meter{
		cfg:      cfg,
		src:      src,
		sink:     sink,
		renderer: renderer,
		block:    make([]int16, cfg.BlockSize),
		pattern:  led.NewLEDs(renderer.Len()),
		sleep:    sleep,
	}, nil
}

// Run runs the meter until ctx is canceled, in which case ctx.Err() is
// returned. Failed acquisitions never stop the meter; a failed Update does.
func (m *Meter) Run(ctx context.Context) error {
	for {
		if _, err := m.Step(ctx); err != nil {
			return err
		}
	}
}

// Step runs a single iteration of the meter. The returned error is either a
// context error or an Update error.
func (m *Meter) Step(ctx context.Context) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := m.src.ReadSamples(ctx, m.block); err != nil {
		return m.backoff(ctx, err)
	}
	m.failures = 0

	m.renderer.RenderPeak(Peak(m.block), m.pattern)
	if err := m.show(ctx); err != nil {
		return 0, err
	}

	return Rendered, nil
}

func (m *Meter) backoff(ctx context.Context, err error) (Outcome, error) {
	// A canceled read is shutdown, not a failure.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}

	if m.cfg.OnAcquisitionFailure != nil {
		m.cfg.OnAcquisitionFailure(fmt.Errorf("%w: %w", ErrAcquisition, err))
	}

	outcome := BackedOff

	m.failures++
	if m.cfg.FaultAfter > 0 && m.failures == m.cfg.FaultAfter {
		m.renderer.RenderFault(m.pattern)
		if err := m.show(ctx); err != nil {
			return 0, err
		}
		outcome = Faulted
	}

	if err := m.sleep(ctx, m.cfg.Backoff); err != nil {
		return 0, err
	}

	return outcome, nil
}

func (m *Meter) show(ctx context.Context) error {
	m.sink.SetBars(m.pattern)
	if err := m.sink.Update(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.Wrap(err, "failed to update LEDs")
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
