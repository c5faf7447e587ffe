// Package textparse turns the free-text payload of a log record into a structured
// core.LogRecord. Parsing is total: every input, including empty or binary text,
// produces a record with a non-empty message and raw data.
package textparse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/facebookgo/clock"

	"firestige.xyz/tracekit/internal/core"
)

const (
	DefaultLevel = "INFO"

	placeholderUnparsed = "unparseable log message"
	placeholderEmpty    = "(empty message)"
	parseErrorTag       = "ParseError"
)

var (
	prefixedLevelRe = regexp.MustCompile(`^(\w+)#(\w+)`)
	bareLevelRe     = regexp.MustCompile(`^#(\w+)`)
	bracketRe       = regexp.MustCompile(`\[([^\]]+)\]`)
	bracketInfoRe   = regexp.MustCompile(`(.*?)\s+pid:([\d-]+)\s+tid:([\d-]+)\s+(.*?):(.*?)$`)
	pidTidLineRe    = regexp.MustCompile(`^\[(\d+):(\d+)\]\s+([^:]*?)(?::(\d+))?\s*$`)
	newlineRe       = regexp.MustCompile(`\r\n|\n`)
)

// Parser parses log payload text. The zero value is not usable; call New.
type Parser struct {
	clock clock.Clock
	loc   *time.Location
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the clock used for placeholder timestamps.
func WithClock(c clock.Clock) Option {
	return func(p *Parser) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLocation sets the zone placeholder timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// New creates a Parser using the wall clock in UTC unless overridden.
func New(opts ...Option) *Parser {
	p := &Parser{
		clock: clock.New(),
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseMessage parses one log line. It never returns nil.
func (p *Parser) ParseMessage(text string) (rec *core.LogRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec = parseErrorRecord(text, r)
		}
	}()

	text = sanitize(text)
	single := strings.TrimSpace(newlineRe.ReplaceAllString(text, " "))

	level := DefaultLevel
	prefix := ""
	content := single

	if m := prefixedLevelRe.FindStringSubmatch(single); m != nil {
		prefix, level = m[1], m[2]
		content = strings.TrimSpace(single[len(m[0]):])
	} else if m := bareLevelRe.FindStringSubmatch(single); m != nil {
		level = m[1]
		content = strings.TrimSpace(single[len(m[0]):])
	}

	if rec := parseBracketed(content, single, level, prefix); rec != nil {
		return rec
	}
	if rec := parseMultiLine(text, prefix); rec != nil {
		return rec
	}

	message := content
	if message == "" {
		message = placeholderUnparsed
	}
	raw := text
	if strings.TrimSpace(raw) == "" {
		raw = placeholderUnparsed
	}
	return &core.LogRecord{
		Timestamp: p.clock.Now().In(p.loc).Format(core.TimestampLayout),
		Level:     level,
		Tag:       prefix,
		Func:      prefix,
		Message:   message,
		RawData:   raw,
		Fallback:  core.FallbackUnmatched,
	}
}

// parseBracketed handles "[<time> pid:<n> tid:<n> <func>:<line>] <message>".
func parseBracketed(content, single, level, prefix string) *core.LogRecord {
	loc := bracketRe.FindStringSubmatchIndex(content)
	if loc == nil {
		return nil
	}
	info := bracketInfoRe.FindStringSubmatch(content[loc[2]:loc[3]])
	if info == nil {
		return nil
	}

	message := strings.TrimSpace(content[loc[1]:])
	if message == "" {
		message = placeholderEmpty
	}
	return &core.LogRecord{
		ProcessID: info[2],
		ThreadID:  info[3],
		Timestamp: strings.TrimSpace(info[1]),
		Level:     level,
		Tag:       prefix,
		Func:      strings.TrimSpace(info[4]),
		Line:      optional(info[5]),
		Message:   message,
		RawData:   single,
		Fallback:  core.FallbackNone,
	}
}

// parseMultiLine handles payloads where the header fields arrive on separate lines:
//
//	2025-03-20 01:08:16.155
//	INFO
//	[2:13] task_check_power_process:00545
//	power_off_flag= FALSE!
func parseMultiLine(text, prefix string) *core.LogRecord {
	var lines []string
	for _, l := range newlineRe.Split(text, -1) {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, strings.TrimSpace(l))
		}
	}
	if len(lines) < 3 {
		return nil
	}
	m := pidTidLineRe.FindStringSubmatch(lines[2])
	if m == nil {
		return nil
	}

	ts, level := lines[0], lines[1]
	pid, tid, fn := m[1], m[2], strings.TrimSpace(m[3])
	line := optional(m[4])
	body := strings.TrimSpace(strings.Join(lines[3:], " "))

	site := fn
	if line != nil {
		site = fn + ":" + *line
	}
	raw := fmt.Sprintf("[%s pid:%s tid:%s %s] %s", ts, padLeft(pid, 2), padLeft(tid, 2), site, body)

	if body == "" {
		body = placeholderEmpty
	}
	return &core.LogRecord{
		ProcessID: pid,
		ThreadID:  tid,
		Timestamp: ts,
		Level:     level,
		Tag:       prefix,
		Func:      fn,
		Line:      line,
		Message:   body,
		RawData:   strings.TrimSpace(raw),
		Fallback:  core.FallbackMultiLine,
	}
}

// parseErrorRecord uses the wall clock; the injected clock may be what panicked.
func parseErrorRecord(text string, cause any) *core.LogRecord {
	raw := sanitize(text)
	if strings.TrimSpace(raw) == "" {
		raw = placeholderUnparsed
	}
	return &core.LogRecord{
		Timestamp: time.Now().UTC().Format(core.TimestampLayout),
		Level:     "ERROR",
		Tag:       parseErrorTag,
		Func:      parseErrorTag,
		Message:   fmt.Sprintf("parse error: %v", cause),
		RawData:   raw,
		Fallback:  core.FallbackParseError,
	}
}

// sanitize drops trailing NUL padding and replaces invalid UTF-8.
func sanitize(s string) string {
	s = strings.TrimRight(s, "\x00")
	return strings.ToValidUTF8(s, "\uFFFD")
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func padLeft(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}
