package decoder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/scanner"
	"firestige.xyz/tracekit/internal/wire"
)

func newTestDecoder(t *testing.T, opts Options) *Decoder {
	t.Helper()
	if opts.NewID == nil {
		opts.NewID = func() string { return "test-id" }
	}
	d, err := New(opts)
	require.NoError(t, err)
	return d
}

func TestDecodeFrame_RoundTrip(t *testing.T) {
	buf := wire.AppendFrame(nil, wire.FrameFields{
		ProcessID: 3,
		Tag:       7,
		Port:      2,
		Protocol:  9,
		Direction: uint8(core.DirectionIn),
		Seconds:   1700000000,
		Millis:    250,
		Content:   []byte{0xDE, 0xAD, 0xBE, 0xEF},
	})
	d := newTestDecoder(t, Options{})

	rec, ok := d.DecodeFrame(buf, 0)

	require.True(t, ok)
	assert.Equal(t, uint8(3), rec.ProcessID)
	assert.Equal(t, uint8(7), rec.Tag)
	assert.Equal(t, uint8(2), rec.Port)
	assert.Equal(t, uint8(9), rec.Protocol)
	assert.Equal(t, core.DirectionIn, rec.Direction)
	assert.Equal(t, uint32(1700000000), rec.TimestampSeconds)
	assert.Equal(t, uint16(250), rec.TimestampMillis)
	assert.Equal(t, "deadbeef", rec.ContentHex)
	assert.Equal(t, "22222223"+"03"+"000e"+"07020901"+"6553f100"+"00fa"+"deadbeef", rec.RawHex)
	assert.Equal(t, "2023-11-14 22:13:20.250", rec.Timestamp)
	assert.Equal(t, 14, rec.Length)
	assert.Equal(t, 0, rec.SourceOffset)
	assert.False(t, rec.Truncated)
	assert.Equal(t, "test-id", rec.ID)

	assert.Equal(t, "per-second sampling", rec.TagName)
	assert.Equal(t, "RS232", rec.PortName)
	assert.Equal(t, "DLMS", rec.ProtocolName)
	assert.Equal(t, "receive", rec.DirectionName)
}

func TestDecodeFrame_Location(t *testing.T) {
	buf := wire.AppendFrame(nil, wire.FrameFields{Seconds: 1700000000, Millis: 5})
	d := newTestDecoder(t, Options{Location: time.FixedZone("CST", 8*3600)})

	rec, ok := d.DecodeFrame(buf, 0)

	require.True(t, ok)
	assert.Equal(t, "2023-11-15 06:13:20.005", rec.Timestamp)
	assert.Equal(t, "", rec.ContentHex)
}

func TestDecodeFrame_DirectionNormalized(t *testing.T) {
	for _, raw := range []uint8{2, 7, 0xFF} {
		buf := wire.AppendFrame(nil, wire.FrameFields{Direction: raw, Content: []byte{1}})
		rec, ok := newTestDecoder(t, Options{}).DecodeFrame(buf, 0)
		require.True(t, ok)
		assert.Equal(t, core.DirectionIn, rec.Direction, "direction byte %d", raw)
	}

	buf := wire.AppendFrame(nil, wire.FrameFields{Direction: 0})
	rec, ok := newTestDecoder(t, Options{}).DecodeFrame(buf, 0)
	require.True(t, ok)
	assert.Equal(t, core.DirectionOut, rec.Direction)
	assert.Equal(t, "send", rec.DirectionName)
}

func TestDecodeFrame_TruncatedContentIsClipped(t *testing.T) {
	buf := wire.AppendFrame(nil, wire.FrameFields{Content: []byte{1, 2, 3, 4, 5, 6}})
	buf = buf[:len(buf)-2]
	d := newTestDecoder(t, Options{})

	rec, ok := d.DecodeFrame(buf, 0)

	require.True(t, ok)
	assert.True(t, rec.Truncated)
	assert.Equal(t, "01020304", rec.ContentHex)
	assert.Equal(t, 16, rec.Length)
	assert.Equal(t, uint64(1), d.Stats().Truncated)
}

func TestDecodeFrame_ShortHeader(t *testing.T) {
	buf := wire.AppendFrame(nil, wire.FrameFields{Content: []byte{1}})
	d := newTestDecoder(t, Options{})

	for _, cut := range []int{0, 4, 7, 12, 16} {
		rec, ok := d.DecodeFrame(buf[:cut], 0)
		assert.False(t, ok, "cut at %d", cut)
		assert.Nil(t, rec)
	}
	_, ok := d.DecodeFrame(buf, len(buf)+10)
	assert.False(t, ok)
	assert.Equal(t, uint64(6), d.Stats().Skipped)
}

func TestDecodeLog_EnvelopePIDWins(t *testing.T) {
	buf := wire.AppendLog(nil, 5, "#WARN [2025-01-01 00:08:16.155 pid:02 tid:13 task_check_power:545] power_off_flag= FALSE")
	d := newTestDecoder(t, Options{})

	recs, ok := d.DecodeLog(buf, 0)

	require.True(t, ok)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "5", rec.ProcessID)
	assert.Equal(t, uint8(5), rec.SourcePID)
	assert.Equal(t, "13", rec.ThreadID)
	assert.Equal(t, "WARN", rec.Level)
	assert.Equal(t, "task_check_power", rec.Func)
	assert.Equal(t, "545", rec.LineNumber())
	assert.Equal(t, "power_off_flag= FALSE", rec.Message)
	assert.Equal(t, "test-id", rec.ID)
	assert.Equal(t, 0, rec.SourceOffset)
}

func TestDecodeLog_Charset(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().String("#INFO [2025-01-01 00:00:00.000 pid:1 tid:1 power:1] 掉电")
	require.NoError(t, err)
	buf := wire.AppendLog(nil, 1, gbk)

	recs, ok := newTestDecoder(t, Options{Charset: "gbk"}).DecodeLog(buf, 0)
	require.True(t, ok)
	assert.Equal(t, "掉电", recs[0].Message)

	recs, ok = newTestDecoder(t, Options{}).DecodeLog(buf, 0)
	require.True(t, ok)
	assert.NotEqual(t, "掉电", recs[0].Message)
	assert.NotEmpty(t, recs[0].Message)
}

func TestNew_UnknownCharset(t *testing.T) {
	_, err := New(Options{Charset: "ebcdic"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestDecodeLog_SplitEmbedded(t *testing.T) {
	text := "[2025-01-01 00:00:02.000 pid:1 tid:1 a:1] second\n[2025-01-01 00:00:01.000 pid:1 tid:1 b:2] first"
	buf := wire.AppendLog(nil, 9, text)

	recs, ok := newTestDecoder(t, Options{SplitEmbedded: true}).DecodeLog(buf, 0)
	require.True(t, ok)
	require.Len(t, recs, 2)
	assert.Equal(t, "second", recs[0].Message)
	assert.Equal(t, "first", recs[1].Message)

	recs, ok = newTestDecoder(t, Options{}).DecodeLog(buf, 0)
	require.True(t, ok)
	assert.Len(t, recs, 1)
}

func TestDecodeLog_Truncated(t *testing.T) {
	buf := wire.AppendLog(nil, 1, "#INFO hello world")
	buf = buf[:len(buf)-6]

	recs, ok := newTestDecoder(t, Options{}).DecodeLog(buf, 0)

	require.True(t, ok)
	assert.True(t, recs[0].Truncated)
	assert.Equal(t, "hello", recs[0].Message)
}

func TestDecode_DispatchesOnKind(t *testing.T) {
	var buf []byte
	buf = wire.AppendFrame(buf, wire.FrameFields{Content: []byte{0xAB}})
	logAt := len(buf)
	buf = wire.AppendLog(buf, 4, "#INFO ok")

	hits, _ := scanner.Scan(buf, 0, 0)
	require.Len(t, hits, 2)
	d := newTestDecoder(t, Options{})

	frames, ok := d.Decode(buf, hits[0])
	require.True(t, ok)
	require.Len(t, frames, 1)
	assert.Equal(t, core.KindFrame, frames[0].Kind)
	assert.Equal(t, "ab", frames[0].Frame.ContentHex)

	logs, ok := d.Decode(buf, hits[1])
	require.True(t, ok)
	require.Len(t, logs, 1)
	assert.Equal(t, core.KindLog, logs[0].Kind)
	assert.Equal(t, logAt, logs[0].Offset())

	_, ok = d.Decode(buf, scanner.Hit{Offset: 0, Kind: core.Kind(0)})
	assert.False(t, ok)

	st := d.Stats()
	assert.Equal(t, uint64(1), st.Frames)
	assert.Equal(t, uint64(1), st.Logs)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "PPP", TagName(0))
	assert.Equal(t, "debug", TagName(29))
	assert.Equal(t, "unknown tag(25)", TagName(25))
	assert.Equal(t, "BRAN_MON_2", PortName(20))
	assert.Equal(t, "unknown port(99)", PortName(99))
	assert.Equal(t, "MQTT_JSON", ProtocolName(11))
	assert.Equal(t, "unknown protocol(12)", ProtocolName(12))
}
