package catmeter

import (
	"io"

	"github.com/pkg/errors"
	"libdb.so/catmeter/internal/audiosrc"
	"libdb.so/catmeter/internal/meter"
)

// Source is an audio source that can be closed.
type Source interface {
	meter.Source
	io.Closer
}

var (
	_ Source = (*audiosrc.Catnip)(nil)
	_ Source = (*audiosrc.WAV)(nil)
)

// OpenSource opens the audio source described by the configuration.
func OpenSource(cfg SourceConfig, blockSize int) (Source, error) {
	switch cfg.Kind {
	case CatnipSource:
		src, err := audiosrc.OpenCatnip(audiosrc.CatnipConfig{
			Backend:    cfg.Backend,
			Device:     cfg.Device,
			SampleRate: cfg.SampleRate,
			BlockSize:  blockSize,
		})
		if err != nil {
			return nil, errors.Wrap(err, "catnip")
		}
		return src, nil

	case WAVSource:
		src, err := audiosrc.OpenWAV(audiosrc.WAVConfig{
			Path:     cfg.File,
			Loop:     cfg.Loop,
			Realtime: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "wav")
		}
		return src, nil

	default:
		return nil, errors.Errorf("unknown source kind %q", cfg.Kind)
	}
}
