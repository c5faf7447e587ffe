// Package filter narrows parsed entries. Filters are interceptors: each either passes
// the entry down the chain or drops it. A filter that only concerns one record kind
// passes entries of the other kind through untouched.
package filter

import (
	"strings"
	"time"

	"firestige.xyz/tracekit/internal/aggregate"
	"firestige.xyz/tracekit/internal/core"
)

type Filter interface {
	Filter(entry core.Entry, chain Chain)
}

// Func adapts a predicate to a Filter.
type Func func(entry core.Entry) bool

func (f Func) Filter(entry core.Entry, chain Chain) {
	if f(entry) {
		chain.Filter(entry)
	}
}

// ─── Log filters ───

// LevelFilter keeps logs whose level equals Level, ignoring case.
type LevelFilter struct {
	Level string
}

func (f *LevelFilter) Filter(entry core.Entry, chain Chain) {
	if entry.Kind == core.KindLog && !strings.EqualFold(entry.Log.Level, f.Level) {
		return
	}
	chain.Filter(entry)
}

// KeywordFilter keeps logs whose message or tag contains Keyword, ignoring case.
type KeywordFilter struct {
	keyword string
}

func NewKeywordFilter(keyword string) *KeywordFilter {
	return &KeywordFilter{keyword: strings.ToLower(keyword)}
}

func (f *KeywordFilter) Filter(entry core.Entry, chain Chain) {
	if entry.Kind == core.KindLog {
		msg := strings.ToLower(entry.Log.Message)
		tag := strings.ToLower(entry.Log.Tag)
		if !strings.Contains(msg, f.keyword) && !strings.Contains(tag, f.keyword) {
			return
		}
	}
	chain.Filter(entry)
}

// TagPrefixFilter keeps logs whose tag starts with Prefix.
type TagPrefixFilter struct {
	Prefix string
}

func (f *TagPrefixFilter) Filter(entry core.Entry, chain Chain) {
	if entry.Kind == core.KindLog && !strings.HasPrefix(entry.Log.Tag, f.Prefix) {
		return
	}
	chain.Filter(entry)
}

// ─── Frame filters ───

// FieldFilter keeps frames whose field value is in the allowed set.
type FieldFilter struct {
	name    string
	field   func(*core.FrameRecord) uint8
	allowed map[uint8]bool
}

func newFieldFilter(name string, field func(*core.FrameRecord) uint8, values []uint8) *FieldFilter {
	allowed := make(map[uint8]bool, len(values))
	for _, v := range values {
		allowed[v] = true
	}
	return &FieldFilter{name: name, field: field, allowed: allowed}
}

func NewPortFilter(ports ...uint8) *FieldFilter {
	return newFieldFilter("port", func(f *core.FrameRecord) uint8 { return f.Port }, ports)
}

func NewProtocolFilter(protocols ...uint8) *FieldFilter {
	return newFieldFilter("protocol", func(f *core.FrameRecord) uint8 { return f.Protocol }, protocols)
}

func NewTagFilter(tags ...uint8) *FieldFilter {
	return newFieldFilter("tag", func(f *core.FrameRecord) uint8 { return f.Tag }, tags)
}

func NewDirectionFilter(d core.Direction) *FieldFilter {
	return newFieldFilter("direction", func(f *core.FrameRecord) uint8 { return uint8(f.Direction) }, []uint8{uint8(d)})
}

// Name returns the frame field the filter looks at.
func (f *FieldFilter) Name() string {
	return f.name
}

func (f *FieldFilter) Filter(entry core.Entry, chain Chain) {
	if entry.Kind == core.KindFrame && !f.allowed[f.field(entry.Frame)] {
		return
	}
	chain.Filter(entry)
}

// ─── Both kinds ───

// TimeRangeFilter keeps entries whose timestamp lies in [Since, Until]. A zero bound
// is open. Timestamps are compared as wall-clock text in the capture's time zone, so
// bounds carry no zone either. Entries with an unreadable timestamp are dropped when
// any bound is set.
type TimeRangeFilter struct {
	Since time.Time
	Until time.Time
}

func (f *TimeRangeFilter) Filter(entry core.Entry, chain Chain) {
	if f.Since.IsZero() && f.Until.IsZero() {
		chain.Filter(entry)
		return
	}
	var ts string
	switch entry.Kind {
	case core.KindFrame:
		ts = entry.Frame.Timestamp
	case core.KindLog:
		ts = entry.Log.Timestamp
	}
	t, ok := aggregate.ParseTimestamp(ts)
	if !ok {
		return
	}
	if !f.Since.IsZero() && t.Before(f.Since) {
		return
	}
	if !f.Until.IsZero() && t.After(f.Until) {
		return
	}
	chain.Filter(entry)
}

// KindFilter keeps only entries of the given kinds.
type KindFilter struct {
	kinds map[core.Kind]bool
}

func NewKindFilter(kinds ...core.Kind) *KindFilter {
	m := make(map[core.Kind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return &KindFilter{kinds: m}
}

func (f *KindFilter) Filter(entry core.Entry, chain Chain) {
	if f.kinds[entry.Kind] {
		chain.Filter(entry)
	}
}
