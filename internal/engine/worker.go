package engine

import (
	"context"
	"fmt"

	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/metrics"
	"firestige.xyz/tracekit/internal/scanner"
)

// ctxCheckEvery is how many records a worker decodes between cancellation checks.
const ctxCheckEvery = 256

// plan cuts buf into tasks. Without a segment size the whole buffer is one task;
// otherwise a pre-scan finds record starts and segments are cut at the first record
// start at or past each segment size, so no record straddles two tasks.
func (e *Engine) plan(name string, buf []byte) ([]core.ParseTask, error) {
	bounds := []int{0}
	if seg := e.parser.SegmentSize; seg > 0 && len(buf) > seg {
		hits, _ := scanner.Scan(buf, 0, 0, e.layouts...)
		segStart := 0
		for _, h := range hits {
			if h.Offset-segStart >= seg {
				bounds = append(bounds, h.Offset)
				segStart = h.Offset
			}
		}
	}
	bounds = append(bounds, len(buf))

	tasks := make([]core.ParseTask, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		t, err := core.NewParseTask(
			fmt.Sprintf("%s#%d", name, i), name, buf,
			bounds[i], bounds[i+1], e.families...)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// parseTask is the pool function: scan the task range, then decode every hit of a
// wanted family. Both families are always scanned so a record of an unwanted family
// still hides its payload from the other family's marker search.
func (e *Engine) parseTask(ctx context.Context, task core.ParseTask) (*core.TaskResult, error) {
	hits, ss := scanner.Scan(task.Buffer, task.StartOffset, task.EndOffset, e.layouts...)

	res := &core.TaskResult{Task: task}
	res.Stats.Candidates = ss.Candidates
	res.Stats.Accepted = ss.Accepted
	res.Stats.BytesScanned = task.Len()
	ss.EachRejection(func(r scanner.Reason, n int) {
		metrics.ScanRejectsTotal.WithLabelValues(r.String()).Add(float64(n))
	})

	for i, hit := range hits {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !task.Wants(hit.Kind) {
			continue
		}
		entries, ok := e.decoder.Decode(task.Buffer, hit)
		if !ok {
			res.Stats.Skipped++
			continue
		}
		if hit.Truncated {
			res.Stats.Truncated++
			metrics.TruncatedRecordsTotal.Inc()
		}
		for _, en := range entries {
			switch en.Kind {
			case core.KindFrame:
				res.Frames = append(res.Frames, en.Frame)
			case core.KindLog:
				res.Logs = append(res.Logs, en.Log)
				if en.Log.Fallback != core.FallbackNone {
					res.Stats.LogFallbacks++
					metrics.LogFallbacksTotal.WithLabelValues(en.Log.Fallback.String()).Inc()
				}
			}
		}
	}

	metrics.RecordsTotal.WithLabelValues(core.KindFrame.String()).Add(float64(len(res.Frames)))
	metrics.RecordsTotal.WithLabelValues(core.KindLog.String()).Add(float64(len(res.Logs)))
	return res, nil
}
