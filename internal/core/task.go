package core

import "fmt"

// ParseTask is one unit of work: a byte range of a buffer handed to a single worker.
// The buffer is owned by the task for its lifetime and never mutated.
type ParseTask struct {
	ID          string
	Source      string // file name or other label, used in logs and metrics
	Buffer      []byte
	StartOffset int
	EndOffset   int
	Families    []Kind
}

// NewParseTask builds a task over buf[start:end). An end of 0 or past the buffer
// means "to the end of the buffer".
func NewParseTask(id, source string, buf []byte, start, end int, families ...Kind) (ParseTask, error) {
	if end <= 0 || end > len(buf) {
		end = len(buf)
	}
	if start < 0 || start > end {
		return ParseTask{}, fmt.Errorf("%w: start=%d end=%d len=%d", ErrInvalidRange, start, end, len(buf))
	}
	if len(families) == 0 {
		families = []Kind{KindFrame, KindLog}
	}
	return ParseTask{
		ID:          id,
		Source:      source,
		Buffer:      buf,
		StartOffset: start,
		EndOffset:   end,
		Families:    families,
	}, nil
}

// Len returns the size of the task's byte range.
func (t ParseTask) Len() int {
	return t.EndOffset - t.StartOffset
}

// Wants reports whether the task should decode records of kind k.
func (t ParseTask) Wants(k Kind) bool {
	for _, f := range t.Families {
		if f == k {
			return true
		}
	}
	return false
}

// TaskStats counts what one worker pass saw.
type TaskStats struct {
	Candidates   int // marker matches examined
	Accepted     int // offsets emitted by the scanner
	Skipped      int // accepted offsets the decoder could not decode
	Truncated    int // trailing records decoded with a clipped payload
	LogFallbacks int // log lines that needed a fallback format
	BytesScanned int
}

// TaskResult is what a worker hands back for one ParseTask, in scanner discovery order.
type TaskResult struct {
	Task   ParseTask
	Frames []*FrameRecord
	Logs   []*LogRecord
	Stats  TaskStats
}
