// Package catmeter drives a pair of LED bars as a peak level meter for a
// microphone.
package catmeter

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
	"libdb.so/catmeter/internal/meter"
)

// Daemon is the main catmeter daemon.
type Daemon struct {
	cfg    *Config
	logger *slog.Logger
}

// NewDaemon creates a new catmeter daemon.
func NewDaemon(cfg *Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &Daemon{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run starts the daemon. It blocks until the given context is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	src, err := OpenSource(d.cfg.Source, d.cfg.Meter.BlockSize)
	if err != nil {
		return errors.Wrap(err, "failed to open audio source")
	}
	defer src.Close()

	port, err := serial.Open(d.cfg.Device, &serial.Mode{
		BaudRate: d.cfg.Baud,
	})
	if err != nil {
		return errors.Wrap(err, "failed to open serial port")
	}
	defer port.Close()

	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		return errors.Wrap(err, "failed to reset read timeout")
	}

	strip := newStrip(port, d.cfg, d.logger)

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		<-ctx.Done()
		d.logger.Debug("closing serial port")
		if err := port.Close(); err != nil {
			return errors.Wrap(err, "failed to close serial port")
		}
		return ctx.Err()
	})
	errg.Go(func() error {
		return strip.readPackets(ctx, port)
	})
	errg.Go(func() error {
		return d.runMeter(ctx, src, strip)
	})

	return errg.Wait()
}

func (d *Daemon) runMeter(ctx context.Context, src meter.Source, sink *strip) error {
	d.logger.Debug("waiting 100ms for the read loop to start...")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
	}

	d.logger.Debug(
		"initializing LEDs",
		"num_leds", len(sink.leds))

	if err := sink.initialize(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize LEDs")
	}

	m, err := d.newMeter(src, sink)
	if err != nil {
		return err
	}

	return m.Run(ctx)
}

func (d *Daemon) newMeter(src meter.Source, sink meter.Sink) (*meter.Meter, error) {
	cfg := d.cfg.MeterConfig()
	cfg.OnAcquisitionFailure = func(err error) {
		d.logger.Debug(
			"audio acquisition failed, backing off",
			"backoff", cfg.Backoff,
			"error", err)
	}

	m, err := meter.New(cfg, src, sink, d.cfg.Renderer())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create meter")
	}
	return m, nil
}
