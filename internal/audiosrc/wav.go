package audiosrc

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// ErrShortBlock is returned when the file ends in the middle of a block.
var ErrShortBlock = errors.New("short block")

// WAVConfig is the configuration for a WAV source.
type WAVConfig struct {
	// Path is the path to the WAV file.
	Path string
	// Loop rewinds the file once it has been read to the end.
	Loop bool
	// Realtime paces reads at the file's sample rate, so that the file plays
	// back like a microphone would.
	Realtime bool
}

// WAV reads blocks of samples from a WAV file. Only the first channel is
// used.
type WAV struct {
	cfg WAVConfig

	f   *os.File
	dec *wav.Decoder
	buf *audio.IntBuffer

	channels   int
	bitDepth   int
	sampleRate int

	next time.Time
}

// OpenWAV opens the WAV file and reads its header.
func OpenWAV(cfg WAVConfig) (*WAV, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open WAV file")
	}

	w := &WAV{cfg: cfg, f: f}
	if err := w.rewind(); err != nil {
		f.Close()
		return nil, err
	}

	w.channels = int(w.dec.NumChans)
	w.bitDepth = int(w.dec.BitDepth)
	w.sampleRate = int(w.dec.SampleRate)

	if w.channels < 1 || w.sampleRate < 1 {
		f.Close()
		return nil, fmt.Errorf("unsupported WAV format: %d channels at %d Hz", w.channels, w.sampleRate)
	}

	w.buf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: w.channels,
			SampleRate:  w.sampleRate,
		},
		SourceBitDepth: w.bitDepth,
	}

	return w, nil
}

func (w *WAV) rewind() error {
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to rewind WAV file")
	}

	dec := wav.NewDecoder(w.f)
	if !dec.IsValidFile() {
		return fmt.Errorf("%s is not a valid WAV file", w.cfg.Path)
	}

	w.dec = dec
	return nil
}

// SampleRate returns the sample rate of the file.
func (w *WAV) SampleRate() int {
	return w.sampleRate
}

// ReadSamples reads the next block from the file. A block cut short by the
// end of the file is an error. Once the end is reached, io.EOF is returned
// unless the source loops.
func (w *WAV) ReadSamples(ctx context.Context, dst []int16) error {
	if w.cfg.Realtime {
		if err := w.pace(ctx, len(dst)); err != nil {
			return err
		}
	}

	want := len(dst) * w.channels
	if cap(w.buf.Data) < want {
		w.buf.Data = make([]int, want)
	}
	w.buf.Data = w.buf.Data[:want]

	n, err := w.decode()
	if err != nil {
		return err
	}

	if n == 0 && want > 0 {
		if !w.cfg.Loop {
			return errors.Wrap(io.EOF, "end of WAV file")
		}
		if err := w.rewind(); err != nil {
			return err
		}
		if n, err = w.decode(); err != nil {
			return err
		}
		if n == 0 {
			return errors.New("WAV file has no samples")
		}
	}

	if n < want {
		return errors.Wrapf(ErrShortBlock, "got %d of %d samples", n/w.channels, len(dst))
	}

	for i := range dst {
		dst[i] = fromInt(w.buf.Data[i*w.channels], w.bitDepth)
	}

	return nil
}

func (w *WAV) decode() (int, error) {
	n, err := w.dec.PCMBuffer(w.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, errors.Wrap(err, "failed to decode WAV file")
	}
	return n, nil
}

// pace waits until the previous block would have finished playing.
func (w *WAV) pace(ctx context.Context, samples int) error {
	now := time.Now()
	if w.next.IsZero() || now.Sub(w.next) > time.Second {
		w.next = now
	}

	if err := waitUntil(ctx, w.next); err != nil {
		return err
	}

	w.next = w.next.Add(time.Duration(samples) * time.Second / time.Duration(w.sampleRate))
	return nil
}

// Close closes the file.
func (w *WAV) Close() error {
	return w.f.Close()
}
