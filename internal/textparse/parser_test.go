package textparse

import (
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tracekit/internal/core"
)

func TestParseMessage_Structured(t *testing.T) {
	p := New()

	rec := p.ParseMessage("[2025-01-01 00:08:16.155 pid:02 tid:13 task_check_power:545] power_off_flag= FALSE")

	require.NotNil(t, rec)
	assert.Equal(t, "02", rec.ProcessID)
	assert.Equal(t, "13", rec.ThreadID)
	assert.Equal(t, "task_check_power", rec.Func)
	require.NotNil(t, rec.Line)
	assert.Equal(t, "545", *rec.Line)
	assert.Equal(t, "power_off_flag= FALSE", rec.Message)
	assert.Equal(t, "2025-01-01 00:08:16.155", rec.Timestamp)
	assert.Equal(t, DefaultLevel, rec.Level)
	assert.Empty(t, rec.Tag)
	assert.Equal(t, core.FallbackNone, rec.Fallback)
}

func TestParseMessage_LevelPrefixes(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLevel string
		wantTag   string
		wantFunc  string
		wantLine  string
		wantMsg   string
	}{
		{
			name:      "prefixed level",
			input:     "PowerDown#DEBUG [2025-03-20 01:08:16.155 pid:2 tid:13 power_task:88] shutting down",
			wantLevel: "DEBUG",
			wantTag:   "PowerDown",
			wantFunc:  "power_task",
			wantLine:  "88",
			wantMsg:   "shutting down",
		},
		{
			name:      "bare level",
			input:     "#WARN [2025-03-20 01:08:17.000 pid:3 tid:1 rf_init:12] retrying",
			wantLevel: "WARN",
			wantFunc:  "rf_init",
			wantLine:  "12",
			wantMsg:   "retrying",
		},
		{
			name:      "newlines collapse into one line",
			input:     "#ERROR [2025-03-20 01:08:18.000 pid:3 tid:1 rf_init:13] first\nsecond",
			wantLevel: "ERROR",
			wantFunc:  "rf_init",
			wantLine:  "13",
			wantMsg:   "first second",
		},
	}

	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := p.ParseMessage(tt.input)
			assert.Equal(t, tt.wantLevel, rec.Level)
			assert.Equal(t, tt.wantTag, rec.Tag)
			assert.Equal(t, tt.wantFunc, rec.Func)
			assert.Equal(t, tt.wantLine, rec.LineNumber())
			assert.Equal(t, tt.wantMsg, rec.Message)
			assert.Equal(t, core.FallbackNone, rec.Fallback)
		})
	}
}

func TestParseMessage_MissingLine(t *testing.T) {
	rec := New().ParseMessage("[2025-03-20 01:08:16.155 pid:2 tid:13 boot:] ready")

	assert.Equal(t, "boot", rec.Func)
	assert.Nil(t, rec.Line)
	assert.Equal(t, "ready", rec.Message)
}

func TestParseMessage_MultiLine(t *testing.T) {
	input := "2025-03-20 01:08:16.155\nINFO\n[2:13] task_check_power_process:00545\npower_off_flag= FALSE!"

	rec := New().ParseMessage(input)

	assert.Equal(t, core.FallbackMultiLine, rec.Fallback)
	assert.Equal(t, "2", rec.ProcessID)
	assert.Equal(t, "13", rec.ThreadID)
	assert.Equal(t, "2025-03-20 01:08:16.155", rec.Timestamp)
	assert.Equal(t, "INFO", rec.Level)
	assert.Equal(t, "task_check_power_process", rec.Func)
	assert.Equal(t, "00545", rec.LineNumber())
	assert.Equal(t, "power_off_flag= FALSE!", rec.Message)
	assert.Equal(t,
		"[2025-03-20 01:08:16.155 pid:02 tid:13 task_check_power_process:00545] power_off_flag= FALSE!",
		rec.RawData)
}

func TestParseMessage_Totality(t *testing.T) {
	inputs := []string{
		"",
		"not a log line at all",
		"\x00\x01\xff\xfe\x22\x22 garbage",
		"   \n\t  ",
		"#",
		"[unclosed bracket pid:1",
		"Tag#",
		"\x00\x00\x00",
	}

	p := New()
	for _, in := range inputs {
		rec := p.ParseMessage(in)
		require.NotNil(t, rec, "input %q", in)
		assert.NotEmpty(t, rec.Message, "input %q", in)
		assert.NotEmpty(t, rec.RawData, "input %q", in)
		assert.NotEmpty(t, rec.Level, "input %q", in)
	}
}

func TestParseMessage_UnmatchedUsesClock(t *testing.T) {
	mock := clock.NewMock()
	mock.Add(1700000000*time.Second + 123*time.Millisecond)
	p := New(WithClock(mock))

	rec := p.ParseMessage("#ERROR something broke")

	assert.Equal(t, core.FallbackUnmatched, rec.Fallback)
	assert.Equal(t, "2023-11-14 22:13:20.123", rec.Timestamp)
	assert.Equal(t, "ERROR", rec.Level)
	assert.Equal(t, "something broke", rec.Message)
	assert.Equal(t, "#ERROR something broke", rec.RawData)
}

func TestParseMessage_UnmatchedKeepsPrefixAsTag(t *testing.T) {
	rec := New().ParseMessage("Radio#DEBUG free text")

	assert.Equal(t, "Radio", rec.Tag)
	assert.Equal(t, "Radio", rec.Func)
	assert.Equal(t, "DEBUG", rec.Level)
	assert.Equal(t, "free text", rec.Message)
}

type panicClock struct {
	clock.Clock
}

func (panicClock) Now() time.Time {
	panic("clock exploded")
}

func TestParseMessage_RecoversFromPanic(t *testing.T) {
	p := New(WithClock(panicClock{}))

	rec := p.ParseMessage("not a log line at all")

	require.NotNil(t, rec)
	assert.Equal(t, core.FallbackParseError, rec.Fallback)
	assert.Equal(t, "ERROR", rec.Level)
	assert.Equal(t, "ParseError", rec.Tag)
	assert.Equal(t, "ParseError", rec.Func)
	assert.Contains(t, rec.Message, "clock exploded")
	assert.Equal(t, "not a log line at all", rec.RawData)
}

func TestSplitEmbedded(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "single line",
			input: "[2025-03-20 01:08:16.155 pid:2 tid:13 a:1] one",
			want:  []string{"[2025-03-20 01:08:16.155 pid:2 tid:13 a:1] one"},
		},
		{
			name:  "two bracketed lines",
			input: "[2025-03-20 01:08:16.155 pid:2 tid:13 a:1] one\n[2025-03-20 01:08:16.100 pid:2 tid:13 b:2] two",
			want: []string{
				"[2025-03-20 01:08:16.155 pid:2 tid:13 a:1] one",
				"[2025-03-20 01:08:16.100 pid:2 tid:13 b:2] two",
			},
		},
		{
			name:  "continuation lines stay with their header",
			input: "#INFO [t pid:1 tid:1 a:1] one\ncontinued\nPower#WARN [t pid:1 tid:1 b:2] two\r\n",
			want: []string{
				"#INFO [t pid:1 tid:1 a:1] one\ncontinued",
				"Power#WARN [t pid:1 tid:1 b:2] two",
			},
		},
		{
			name:  "multi-line layout is one entry",
			input: "2025-03-20 01:08:16.155\nINFO\n[2:13] task:1\nbody",
			want:  []string{"2025-03-20 01:08:16.155\nINFO\n[2:13] task:1\nbody"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitEmbedded(tt.input))
		})
	}
}
