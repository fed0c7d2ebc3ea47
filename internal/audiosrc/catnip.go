package audiosrc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/noriah/catnip/input"
	"github.com/pkg/errors"
)

// CatnipConfig is the configuration for a Catnip source.
type CatnipConfig struct {
	// Backend is the name of the catnip input backend, such as "parec",
	// "ffmpeg-alsa" or "portaudio".
	Backend string
	// Device is the name of the input device. If empty, the backend's
	// default device is used.
	Device string
	// SampleRate is the sample rate to capture at.
	SampleRate float64
	// BlockSize is the number of samples per block.
	BlockSize int
}

// Catnip captures audio from a microphone through one of catnip's input
// backends. Only the first channel is used.
type Catnip struct {
	backend input.Backend
	cfg     input.SessionConfig

	mu   sync.Mutex
	bufs [][]input.Sample
	kick chan bool
	done chan error

	cancel context.CancelFunc
}

// OpenCatnip initializes the named backend and looks up the device. Capture
// starts on the first read.
func OpenCatnip(cfg CatnipConfig) (*Catnip, error) {
	backend := input.FindBackend(cfg.Backend)
	if backend == nil {
		names := make([]string, len(input.Backends))
		for i, b := range input.Backends {
			names[i] = b.Name
		}
		return nil, fmt.Errorf("unknown backend %q, available: %s", cfg.Backend, strings.Join(names, ", "))
	}

	if err := backend.Init(); err != nil {
		return nil, errors.Wrapf(err, "failed to initialize backend %q", cfg.Backend)
	}

	device, err := findDevice(backend, cfg.Device)
	if err != nil {
		backend.Close()
		return nil, err
	}

	sessionConfig := input.SessionConfig{
		Device:     device,
		FrameSize:  1,
		SampleSize: cfg.BlockSize,
		SampleRate: cfg.SampleRate,
	}

	return &Catnip{
		backend: backend,
		cfg:     sessionConfig,
		bufs:    input.MakeBuffers(sessionConfig.FrameSize, sessionConfig.SampleSize),
		kick:    make(chan bool, 1),
	}, nil
}

func findDevice(backend input.Backend, name string) (input.Device, error) {
	if name == "" {
		device, err := backend.DefaultDevice()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get default device")
		}
		return device, nil
	}

	devices, err := backend.Devices()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list devices")
	}

	for _, device := range devices {
		if device.String() == name {
			return device, nil
		}
	}

	return nil, fmt.Errorf("device %q not found", name)
}

// ReadSamples waits for the next captured block and converts it into dst. If
// the capture session has died, the error is returned and the session is
// restarted on the next call.
func (c *Catnip) ReadSamples(ctx context.Context, dst []int16) error {
	if len(dst) != c.cfg.SampleSize {
		return fmt.Errorf("block size mismatch: got %d, capturing %d", len(dst), c.cfg.SampleSize)
	}

	if err := c.ensureSession(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-c.done:
		c.stop()
		if err == nil {
			err = errors.New("session stopped")
		}
		return errors.Wrap(err, "capture session ended")
	case <-c.kick:
	}

	c.mu.Lock()
	for i, v := range c.bufs[0] {
		dst[i] = fromFloat(v)
	}
	c.mu.Unlock()

	return nil
}

func (c *Catnip) ensureSession() error {
	if c.cancel != nil {
		return nil
	}

	// A kick left over from the previous session refers to its buffers.
	select {
	case <-c.kick:
	default:
	}

	session, err := c.backend.Start(c.cfg)
	if err != nil {
		return errors.Wrap(err, "failed to start capture session")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- session.Start(ctx, c.bufs, c.kick, &c.mu)
	}()

	c.cancel = cancel
	c.done = done
	return nil
}

func (c *Catnip) stop() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Close stops capturing and closes the backend.
func (c *Catnip) Close() error {
	if c.cancel != nil {
		c.stop()
		<-c.done
	}
	return c.backend.Close()
}
