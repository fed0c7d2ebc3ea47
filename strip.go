package catmeter

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"libdb.so/catmeter/internal/led"
	"libdb.so/catmeter/internal/ledvis"
	"libdb.so/catmeter/internal/meter"
	"libdb.so/catmeter/ledserial"
)

// ErrControllerPanic is returned when the LED controller reports that it
// cannot recover.
var ErrControllerPanic = errors.New("controller panicked")

// strip drives the LED bars through an LED controller that speaks the
// ledserial protocol.
type strip struct {
	w          io.Writer
	logger     *slog.Logger
	leds       led.LEDs
	bars       []BarConfig
	ackTimeout time.Duration
	acks       chan ledserial.IncomingPacketType
}

var _ meter.Sink = (*strip)(nil)

func newStrip(w io.Writer, cfg *Config, logger *slog.Logger) *strip {
	return &strip{
		w:          w,
		logger:     logger,
		leds:       led.NewLEDs(cfg.NumLEDs()),
		bars:       cfg.Bars,
		ackTimeout: time.Duration(cfg.AckTimeout),
		acks:       make(chan ledserial.IncomingPacketType, 1),
	}
}

// SetBars draws the pattern onto every bar.
func (s *strip) SetBars(pattern led.LEDs) {
	for _, bar := range s.bars {
		ledvis.DrawBar(s.leds, bar.Start, bar.Direction, pattern)
	}
}

// Update sends the current colors to the controller and waits for it to
// acknowledge them.
func (s *strip) Update(ctx context.Context) error {
	return s.send(ctx, ledserial.SetPacket{Pix: s.leds.AsPixels()})
}

// initialize tells the controller how many LEDs there are and turns them
// all off.
func (s *strip) initialize(ctx context.Context) error {
	if err := s.send(ctx, ledserial.InitializePacket{NumLEDs: uint16(len(s.leds))}); err != nil {
		return err
	}
	return s.send(ctx, ledserial.ClearPacket{})
}

func (s *strip) send(ctx context.Context, p ledserial.IncomingPacket) error {
	// Drop acks for packets that already timed out.
	select {
	case <-s.acks:
	default:
	}

	s.logger.Debug(
		"writing packet",
		"type", p.Type())

	if err := ledserial.WriteIncomingPacket(s.w, p); err != nil {
		return errors.Wrapf(err, "failed to write %s packet", p.Type())
	}

	timer := time.NewTimer(s.ackTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			s.logger.Debug(
				"controller did not ack packet in time",
				"type", p.Type(),
				"timeout", s.ackTimeout)
			return nil
		case acked := <-s.acks:
			if acked == p.Type() {
				return nil
			}
			s.logger.Debug(
				"ignoring ack for another packet",
				"acked_for", acked,
				"waiting_for", p.Type())
		}
	}
}

// readPackets reads packets from the controller until ctx is canceled or
// the controller panics.
func (s *strip) readPackets(ctx context.Context, r io.Reader) error {
	for ctx.Err() == nil {
		p, err := ledserial.ReadOutgoingPacket(r, ledserial.ReadContext{})
		if err != nil {
			// A short read indicates a timeout. This is expected.
			// Ignore the error and try again.
			if errors.Is(err, io.EOF) {
				continue
			}
			var checksumErr *ledserial.ChecksumError
			if errors.As(err, &checksumErr) {
				s.logger.Warn(
					"dropping corrupted packet from controller",
					"error", err)
				continue
			}
			return errors.Wrap(err, "failed to read packet")
		}

		if err := s.handlePacket(p); err != nil {
			return err
		}
	}

	return ctx.Err()
}

func (s *strip) handlePacket(p ledserial.OutgoingPacket) error {
	switch p := p.(type) {
	case ledserial.AckPacket:
		s.logger.Debug(
			"received ack packet from controller",
			"acked_for", p.IncomingPacketType)

		select {
		case s.acks <- p.IncomingPacketType:
		default:
		}

	case ledserial.ErrorPacket:
		s.logger.Warn(
			"received error packet from controller",
			"message", p.Message)

	case ledserial.PanicPacket:
		s.logger.Error(
			"controller unrecoverably panicked",
			"message", p.Message)
		return ErrControllerPanic

	case ledserial.LogPacket:
		s.logger.Info(
			"received log packet from controller",
			"message", p.Message)

	default:
		return errors.Errorf("received unknown packet from controller: %s", p.Type())
	}

	return nil
}
