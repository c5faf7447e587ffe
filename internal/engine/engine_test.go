package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tracekit/internal/config"
	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/wire"
)

func testConfig(t *testing.T) *config.GlobalConfig {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Parser.Timezone = "UTC"
	cfg.Pool.MaxWorkers = 4
	return cfg
}

func newEngine(t *testing.T, cfg *config.GlobalConfig, opts ...Option) *Engine {
	t.Helper()
	var n atomic.Int64
	opts = append([]Option{WithIDGenerator(func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	})}, opts...)
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func frameAt(sec uint32, content ...byte) wire.FrameFields {
	return wire.FrameFields{
		ProcessID: 1,
		Tag:       3,
		Port:      2,
		Protocol:  6,
		Direction: 0,
		Seconds:   sec,
		Millis:    500,
		Content:   content,
	}
}

func logLine(ts, msg string) string {
	return fmt.Sprintf("[%s pid:02 tid:13 task_main:120] %s", ts, msg)
}

// mixedCapture interleaves frames and logs; logs are written out of time order.
func mixedCapture() ([]byte, []int) {
	var buf []byte
	var frames []int

	frames = append(frames, len(buf))
	buf = wire.AppendFrame(buf, frameAt(1700000000, 0x01, 0x02))
	buf = wire.AppendLog(buf, 2, logLine("2025-03-20 01:08:17.000", "second"))
	frames = append(frames, len(buf))
	buf = wire.AppendFrame(buf, frameAt(1700000001, 0x03))
	buf = wire.AppendLog(buf, 2, logLine("2025-03-20 01:08:16.000", "first"))
	buf = wire.AppendLog(buf, 2, logLine("2025-03-20 01:08:18.000", "third"))
	frames = append(frames, len(buf))
	buf = wire.AppendFrame(buf, frameAt(1700000002))
	return buf, frames
}

func TestParseBufferMixed(t *testing.T) {
	e := newEngine(t, testConfig(t))
	buf, frameOffsets := mixedCapture()

	res, err := e.ParseBuffer(context.Background(), "mixed.bin", buf)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, res.Status())
	assert.Equal(t, 1, res.Tasks)
	require.Len(t, res.Entries.Frames, 3)
	for i, f := range res.Entries.Frames {
		assert.Equal(t, frameOffsets[i], f.SourceOffset)
	}
	assert.Equal(t, "2023-11-14 22:13:20.500", res.Entries.Frames[0].Timestamp)

	require.Len(t, res.Entries.Logs, 3)
	var msgs []string
	for _, l := range res.Entries.Logs {
		msgs = append(msgs, l.Message)
		assert.NotEmpty(t, l.ID)
		assert.Equal(t, "2", l.ProcessID)
	}
	assert.Equal(t, []string{"first", "second", "third"}, msgs)
	assert.Equal(t, 6, res.Stats.Accepted)
	assert.Zero(t, res.Stats.Skipped)
}

func TestParseBufferSegmentsMatchWholeBuffer(t *testing.T) {
	var buf []byte
	for i := 0; i < 40; i++ {
		buf = wire.AppendFrame(buf, frameAt(1700000000+uint32(i), byte(i), 0x22, 0x22, 0x22, 0x23))
	}

	whole := newEngine(t, testConfig(t))
	want, err := whole.ParseBuffer(context.Background(), "whole", buf)
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Parser.SegmentSize = 100
	segmented := newEngine(t, cfg)
	got, err := segmented.ParseBuffer(context.Background(), "segmented", buf)
	require.NoError(t, err)

	assert.Greater(t, got.Tasks, 1)
	require.Len(t, got.Entries.Frames, len(want.Entries.Frames))
	for i := range want.Entries.Frames {
		assert.Equal(t, want.Entries.Frames[i].SourceOffset, got.Entries.Frames[i].SourceOffset)
		assert.Equal(t, want.Entries.Frames[i].RawHex, got.Entries.Frames[i].RawHex)
	}
}

func TestParseBufferFamilies(t *testing.T) {
	cfg := testConfig(t)
	cfg.Parser.Families = []string{"log"}
	e := newEngine(t, cfg)
	buf, _ := mixedCapture()

	res, err := e.ParseBuffer(context.Background(), "logs-only", buf)
	require.NoError(t, err)
	assert.Empty(t, res.Entries.Frames)
	assert.Len(t, res.Entries.Logs, 3)
}

func TestParseBufferEmpty(t *testing.T) {
	e := newEngine(t, testConfig(t))

	for _, buf := range [][]byte{nil, bytes.Repeat([]byte{0xEE}, 512)} {
		res, err := e.ParseBuffer(context.Background(), "empty", buf)
		require.NoError(t, err)
		assert.Equal(t, StatusEmpty, res.Status())
		assert.Zero(t, res.Entries.Len())
	}
}

func TestParseBufferTruncatedTail(t *testing.T) {
	e := newEngine(t, testConfig(t))
	buf, _ := mixedCapture()
	buf = wire.AppendFrame(buf, frameAt(1700000003, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10))
	buf = buf[:len(buf)-4]

	res, err := e.ParseBuffer(context.Background(), "cut", buf)
	require.NoError(t, err)
	require.Len(t, res.Entries.Frames, 4)
	assert.True(t, res.Entries.Frames[3].Truncated)
	assert.Equal(t, 1, res.Stats.Truncated)
}

func TestParseBufferCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = true
	cfg.Cache.TTL = "1m"
	cfg.Cache.CleanupInterval = "1m"
	e := newEngine(t, cfg)
	buf, _ := mixedCapture()

	first, err := e.ParseBuffer(context.Background(), "a", buf)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := e.ParseBuffer(context.Background(), "b", buf)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, StatusCached, second.Status())
	assert.Equal(t, first.Entries.Len(), second.Entries.Len())
	assert.Equal(t, first.Entries.Logs[0].ID, second.Entries.Logs[0].ID)
}

func TestParseFiles(t *testing.T) {
	dir := t.TempDir()
	buf, _ := mixedCapture()

	good := filepath.Join(dir, "good.bin")
	require.NoError(t, os.WriteFile(good, buf, 0644))

	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, err := w.Write(buf)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	compressed := filepath.Join(dir, "good.bin.gz")
	require.NoError(t, os.WriteFile(compressed, gz.Bytes(), 0644))

	empty := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	missing := filepath.Join(dir, "missing.bin")

	e := newEngine(t, testConfig(t))
	results := e.ParseFiles(context.Background(), []string{good, missing, compressed, empty})

	require.Len(t, results, 4)
	assert.Equal(t, StatusOK, results[0].Status())
	assert.Equal(t, StatusError, results[1].Status())
	assert.Error(t, results[1].Err)
	assert.Equal(t, StatusOK, results[2].Status())
	assert.Equal(t, results[0].Entries.Len(), results[2].Entries.Len())
	assert.Equal(t, StatusEmpty, results[3].Status())
	for i, p := range []string{good, missing, compressed, empty} {
		assert.Equal(t, p, results[i].Name)
	}
}

func TestParseFilesCancelled(t *testing.T) {
	e := newEngine(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := e.ParseFiles(ctx, []string{"a.bin", "b.bin"})
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestParseBufferAfterClose(t *testing.T) {
	e, err := New(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	buf, _ := mixedCapture()
	_, err = e.ParseBuffer(context.Background(), "late", buf)
	require.Error(t, err)
	assert.True(t, IsTerminated(err))
}

func TestNewRejectsBadParserConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Parser.Charset = "ebcdic"
	_, err := New(cfg)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestPlan(t *testing.T) {
	var buf []byte
	for i := 0; i < 10; i++ {
		buf = wire.AppendFrame(buf, frameAt(1700000000, make([]byte, 13)...))
	}
	// Each frame is 30 bytes.
	cfg := testConfig(t)
	cfg.Parser.SegmentSize = 64
	e := newEngine(t, cfg)

	tasks, err := e.plan("p", buf)
	require.NoError(t, err)

	var starts []int
	for _, task := range tasks {
		starts = append(starts, task.StartOffset)
	}
	assert.Equal(t, []int{0, 90, 180, 270}, starts)
	assert.Equal(t, len(buf), tasks[len(tasks)-1].EndOffset)
}
