package audiosrc

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, channels int, samples []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.wav")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, 8000, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           samples,
		Format:         &audio.Format{NumChannels: channels, SampleRate: 8000},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())

	return path
}

func TestWAVReadBlocks(t *testing.T) {
	path := writeWAV(t, 1, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	src, err := OpenWAV(WAVConfig{Path: path})
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 8000, src.SampleRate())

	ctx := context.Background()
	block := make([]int16, 4)

	require.NoError(t, src.ReadSamples(ctx, block))
	assert.Equal(t, []int16{1, 2, 3, 4}, block)

	require.NoError(t, src.ReadSamples(ctx, block))
	assert.Equal(t, []int16{5, 6, 7, 8}, block)

	assert.ErrorIs(t, src.ReadSamples(ctx, block), ErrShortBlock)
	assert.ErrorIs(t, src.ReadSamples(ctx, block), io.EOF)
}

func TestWAVLoop(t *testing.T) {
	path := writeWAV(t, 1, []int{-1, -2, -3, -4, -5, -6})

	src, err := OpenWAV(WAVConfig{Path: path, Loop: true})
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	block := make([]int16, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, src.ReadSamples(ctx, block))
		assert.Equal(t, []int16{-1, -2, -3}, block)
		require.NoError(t, src.ReadSamples(ctx, block))
		assert.Equal(t, []int16{-4, -5, -6}, block)
	}
}

func TestWAVFirstChannel(t *testing.T) {
	path := writeWAV(t, 2, []int{100, -1, math.MinInt16, -2, 300, -3})

	src, err := OpenWAV(WAVConfig{Path: path})
	require.NoError(t, err)
	defer src.Close()

	block := make([]int16, 3)
	require.NoError(t, src.ReadSamples(context.Background(), block))
	assert.Equal(t, []int16{100, math.MinInt16, 300}, block)
}

func TestWAVRealtimeCancel(t *testing.T) {
	path := writeWAV(t, 1, make([]int, 16000))

	src, err := OpenWAV(WAVConfig{Path: path, Realtime: true})
	require.NoError(t, err)
	defer src.Close()

	block := make([]int16, 8000)
	require.NoError(t, src.ReadSamples(context.Background(), block))

	// The next block is not due for another second.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, src.ReadSamples(ctx, block), context.DeadlineExceeded)
}

func TestOpenWAVInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF"), 0o644))

	_, err := OpenWAV(WAVConfig{Path: path})
	assert.Error(t, err)

	_, err = OpenWAV(WAVConfig{Path: filepath.Join(t.TempDir(), "missing.wav")})
	assert.Error(t, err)
}
