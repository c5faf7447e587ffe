// Package aggregate merges per-task parse results into the ordered entry lists of one
// file.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"firestige.xyz/tracekit/internal/core"
)

// timestampLayouts are tried in order when ordering log entries.
var timestampLayouts = []string{
	core.TimestampLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339Nano,
}

// Aggregate merges task results. Results are taken in start-offset order; frames keep
// their discovery order and logs are stable-sorted by timestamp. A log whose timestamp
// cannot be parsed sorts with the entry discovered just before it.
func Aggregate(results []*core.TaskResult) core.Entries {
	ordered := make([]*core.TaskResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Task.StartOffset < ordered[j].Task.StartOffset
	})

	var out core.Entries
	for _, r := range ordered {
		out.Frames = append(out.Frames, r.Frames...)
		out.Logs = append(out.Logs, r.Logs...)
	}
	SortLogs(out.Logs)
	return out
}

// SortLogs stable-sorts logs by parsed timestamp in place.
func SortLogs(logs []*core.LogRecord) {
	if len(logs) < 2 {
		return
	}
	keys := make(map[*core.LogRecord]time.Time, len(logs))
	var prev time.Time
	for _, l := range logs {
		if t, ok := ParseTimestamp(l.Timestamp); ok {
			prev = t
		}
		keys[l] = prev
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return keys[logs[i]].Before(keys[logs[j]])
	})
}

// ParseTimestamp parses a log timestamp in any of the known layouts.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
