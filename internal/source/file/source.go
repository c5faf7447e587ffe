// Package file reads capture files from disk, undoing gzip or zstd compression.
package file

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"firestige.xyz/tracekit/internal/core"
)

const Name = "file"

// Compression modes.
const (
	CompressionAuto = "auto"
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

type FileCfg struct {
	Path        string `mapstructure:"path"`
	Compression string `mapstructure:"compression"` // auto | none | gzip | zstd
	MaxBytes    int64  `mapstructure:"max_bytes"`   // 0 = unlimited, applies after decompression
}

type FileSource struct {
	path        string
	compression string
	maxBytes    int64

	file    *os.File
	reader  io.Reader
	closers []func()
	detect  string
}

func NewSource(cfg *FileCfg) (*FileSource, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	mode := strings.ToLower(cfg.Compression)
	switch mode {
	case "":
		mode = CompressionAuto
	case CompressionAuto, CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return nil, fmt.Errorf("%w: compression %q", core.ErrUnsupportedFormat, cfg.Compression)
	}
	if cfg.MaxBytes < 0 {
		return nil, fmt.Errorf("max_bytes must be >= 0")
	}
	return &FileSource{
		path:        cfg.Path,
		compression: mode,
		maxBytes:    cfg.MaxBytes,
	}, nil
}

// Start opens the file and stacks the decompressor in front of it.
func (fs *FileSource) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(fs.path)
	if err != nil {
		return fmt.Errorf("failed to open capture file %s: %w", fs.path, err)
	}
	fs.file = f

	br := bufio.NewReader(f)
	mode := fs.compression
	if mode == CompressionAuto {
		mode = sniff(br)
	}
	fs.detect = mode

	switch mode {
	case CompressionGzip:
		gr, err := gzip.NewReader(br)
		if err != nil {
			fs.Stop()
			return fmt.Errorf("failed to open gzip stream %s: %w", fs.path, err)
		}
		fs.closers = append(fs.closers, func() { gr.Close() })
		fs.reader = gr
	case CompressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			fs.Stop()
			return fmt.Errorf("failed to open zstd stream %s: %w", fs.path, err)
		}
		fs.closers = append(fs.closers, zr.Close)
		fs.reader = zr
	default:
		fs.reader = br
	}
	return nil
}

// sniff picks a decompressor from the leading magic bytes.
func sniff(br *bufio.Reader) string {
	head, _ := br.Peek(len(zstdMagic))
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// Compression reports the mode in effect after Start.
func (fs *FileSource) Compression() string {
	return fs.detect
}

// ReadAll returns the whole decompressed content.
func (fs *FileSource) ReadAll(ctx context.Context) ([]byte, error) {
	if fs.reader == nil {
		return nil, fmt.Errorf("file source not started")
	}
	r := &ctxReader{ctx: ctx, r: fs.reader}
	var src io.Reader = r
	if fs.maxBytes > 0 {
		src = io.LimitReader(r, fs.maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture file %s: %w", fs.path, err)
	}
	if fs.maxBytes > 0 && int64(len(data)) > fs.maxBytes {
		return nil, fmt.Errorf("capture file %s exceeds max_bytes %d", fs.path, fs.maxBytes)
	}
	return data, nil
}

func (fs *FileSource) Stop() error {
	for i := len(fs.closers) - 1; i >= 0; i-- {
		fs.closers[i]()
	}
	fs.closers = nil
	fs.reader = nil
	if fs.file != nil {
		err := fs.file.Close()
		fs.file = nil
		return err
	}
	return nil
}

// ReadFile opens, reads and closes path in one go.
func ReadFile(ctx context.Context, cfg *FileCfg) ([]byte, error) {
	fs, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}
	if err := fs.Start(ctx); err != nil {
		return nil, err
	}
	defer fs.Stop()
	return fs.ReadAll(ctx)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
