package bip

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samcharles93/sarchip/internal/logger"
)

var le4 = DataType{Kind: Float32, Order: binary.LittleEndian}

// ramp returns 0, 1, ..., n-1.
func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

// writeFloats writes vals as little-endian float32 after offset zero bytes.
func writeFloats(t *testing.T, offset int, vals []float32) string {
	t.Helper()
	buf := make([]byte, offset+4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[offset+4*i:], math.Float32bits(v))
	}
	path := filepath.Join(t.TempDir(), "segment.bin")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func emptyFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func floats(t *testing.T, a *Array) []float32 {
	t.Helper()
	vals, err := Values[float32](a)
	require.NoError(t, err)
	return vals
}

// captureLogger records JSON log lines.
func captureLogger() (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logger.JSON(&buf, slog.LevelDebug), &buf
}

func openChipper(t *testing.T, path string, opts Options) *Chipper {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	c, err := NewChipper(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}
