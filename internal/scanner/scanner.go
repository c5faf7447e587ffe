// Package scanner finds record boundaries in raw capture buffers.
//
// The scanner slides a cursor one byte at a time looking for a family marker. A
// candidate is accepted only when its declared length is sane and, if there is room,
// another record marker follows it exactly where the length says the record ends.
// Accepted records are skipped in one jump; rejected candidates advance the cursor by a
// single byte, which is how framing recovers after corrupt or partially written data.
package scanner

import (
	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/wire"
)

// Hit is one accepted record start.
type Hit struct {
	Offset    int
	Kind      core.Kind
	Length    int // declared length field
	End       int // one past the record, may exceed the buffer when Truncated
	Truncated bool
}

// Reason explains why a marker match was rejected.
type Reason uint8

const (
	ReasonShortHeader Reason = iota // length field not readable
	ReasonBadLength                 // zero, below family minimum or above maximum
	ReasonNoFollower                // forward validation failed
	ReasonOvershoot                 // trailing record too far past the buffer end
	numReasons
)

func (r Reason) String() string {
	switch r {
	case ReasonShortHeader:
		return "short_header"
	case ReasonBadLength:
		return "bad_length"
	case ReasonNoFollower:
		return "no_follower"
	case ReasonOvershoot:
		return "overshoot"
	default:
		return "unknown"
	}
}

// Stats counts candidates seen during one scan.
type Stats struct {
	Candidates int
	Accepted   int
	Rejected   [numReasons]int
}

// RejectedBy returns the number of candidates rejected for reason r.
func (s Stats) RejectedBy(r Reason) int {
	if r >= numReasons {
		return 0
	}
	return s.Rejected[r]
}

// EachRejection calls fn for every reason with a non-zero count.
func (s Stats) EachRejection(fn func(r Reason, n int)) {
	for r := Reason(0); r < numReasons; r++ {
		if s.Rejected[r] > 0 {
			fn(r, s.Rejected[r])
		}
	}
}

var knownLayouts = []wire.Layout{wire.FrameLayout(), wire.LogLayout()}

// ScanFamily returns the ascending start offsets of records of one family in
// buf[start:end). An end of 0 or past the buffer scans to the end of the buffer.
func ScanFamily(buf []byte, start, end int, layout wire.Layout) []int {
	hits, _ := Scan(buf, start, end, layout)
	offsets := make([]int, len(hits))
	for i, h := range hits {
		offsets[i] = h.Offset
	}
	return offsets
}

// Scan returns the records of the given families in buf[start:end), strictly
// ascending and non-overlapping. With no layouts it scans for both families.
func Scan(buf []byte, start, end int, layouts ...wire.Layout) ([]Hit, Stats) {
	var stats Stats
	if len(layouts) == 0 {
		layouts = knownLayouts
	}
	start, end = clampRange(len(buf), start, end)
	if start >= end {
		return nil, stats
	}

	v := wire.NewView(buf)
	var hits []Hit

	pos := start
	for pos+wire.MarkerSize <= end {
		hit, ok := scanAt(v, pos, layouts, &stats)
		if !ok {
			pos++
			continue
		}
		hits = append(hits, hit)
		stats.Accepted++
		pos = hit.End
	}
	return hits, stats
}

func scanAt(v wire.View, pos int, layouts []wire.Layout, stats *Stats) (Hit, bool) {
	for _, l := range layouts {
		if !l.MatchesAt(v, pos) {
			continue
		}
		stats.Candidates++
		hit, reason, ok := validate(v, pos, l)
		if ok {
			return hit, true
		}
		stats.Rejected[reason]++
	}
	return Hit{}, false
}

func validate(v wire.View, pos int, l wire.Layout) (Hit, Reason, bool) {
	length, err := l.ReadLength(v, pos)
	if err != nil {
		return Hit{}, ReasonShortHeader, false
	}
	if length <= 0 || length < l.MinLength || (l.MaxLength > 0 && length > l.MaxLength) {
		return Hit{}, ReasonBadLength, false
	}

	hit := Hit{
		Offset: pos,
		Kind:   l.Kind,
		Length: length,
		End:    wire.RecordEnd(pos, length),
	}

	// The follower is looked up in the whole buffer, not just [start, end), so a
	// segment cut at a record start validates exactly like a whole-buffer scan.
	switch {
	case hit.End+wire.MarkerSize <= v.Len():
		if !markerAt(v, hit.End) {
			return Hit{}, ReasonNoFollower, false
		}
	case hit.End > v.Len():
		overshoot := hit.End - v.Len()
		if overshoot*2 > length {
			return Hit{}, ReasonOvershoot, false
		}
		hit.Truncated = true
	}
	return hit, 0, true
}

// markerAt reports whether any known record marker starts at off. Files may
// interleave both families, so a frame may be followed by a log record and vice versa.
func markerAt(v wire.View, off int) bool {
	for _, l := range knownLayouts {
		if l.MatchesAt(v, off) {
			return true
		}
	}
	return false
}

func clampRange(n, start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > n {
		end = n
	}
	return start, end
}
