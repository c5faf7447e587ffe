package file

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tracekit/internal/core"
)

var payload = bytes.Repeat([]byte{0x22, 0x22, 0x22, 0x23, 0x01, 0x00, 0x0a}, 64)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zstded(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestReadFileAutoDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"plain", payload, CompressionNone},
		{"gzip", gzipped(t, payload), CompressionGzip},
		{"zstd", zstded(t, payload), CompressionZstd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSource(&FileCfg{Path: writeFile(t, "capture.bin", tt.data)})
			require.NoError(t, err)
			require.NoError(t, s.Start(context.Background()))
			defer s.Stop()

			assert.Equal(t, tt.want, s.Compression())
			got, err := s.ReadAll(context.Background())
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestReadFileForcedNoneKeepsCompressedBytes(t *testing.T) {
	raw := gzipped(t, payload)
	got, err := ReadFile(context.Background(), &FileCfg{
		Path:        writeFile(t, "capture.gz", raw),
		Compression: "none",
	})
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestReadFileForcedGzipOnPlainFails(t *testing.T) {
	_, err := ReadFile(context.Background(), &FileCfg{
		Path:        writeFile(t, "capture.bin", payload),
		Compression: "gzip",
	})
	assert.Error(t, err)
}

func TestReadFileEmpty(t *testing.T) {
	got, err := ReadFile(context.Background(), &FileCfg{Path: writeFile(t, "empty.bin", nil)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFileMaxBytes(t *testing.T) {
	path := writeFile(t, "capture.bin", payload)

	_, err := ReadFile(context.Background(), &FileCfg{Path: path, MaxBytes: int64(len(payload) - 1)})
	assert.Error(t, err)

	got, err := ReadFile(context.Background(), &FileCfg{Path: path, MaxBytes: int64(len(payload))})
	require.NoError(t, err)
	assert.Len(t, got, len(payload))
}

func TestNewSourceValidation(t *testing.T) {
	_, err := NewSource(&FileCfg{})
	assert.Error(t, err)

	_, err = NewSource(&FileCfg{Path: "x", Compression: "lz4"})
	assert.True(t, errors.Is(err, core.ErrUnsupportedFormat))

	_, err = NewSource(&FileCfg{Path: "x", MaxBytes: -1})
	assert.Error(t, err)
}

func TestStartMissingFile(t *testing.T) {
	s, err := NewSource(&FileCfg{Path: filepath.Join(t.TempDir(), "absent.bin")})
	require.NoError(t, err)
	assert.Error(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop())
}

func TestReadAllHonoursContext(t *testing.T) {
	s, err := NewSource(&FileCfg{Path: writeFile(t, "capture.bin", payload)})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ReadAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadAllBeforeStart(t *testing.T) {
	s, err := NewSource(&FileCfg{Path: "x"})
	require.NoError(t, err)
	_, err = s.ReadAll(context.Background())
	assert.Error(t, err)
}
