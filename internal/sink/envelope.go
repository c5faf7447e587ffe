package sink

import "firestige.xyz/tracekit/internal/core"

// Envelope is the serialised form of one entry, shared by the structured outputs.
type Envelope struct {
	Source string            `json:"source" yaml:"source"`
	Kind   string            `json:"kind" yaml:"kind"`
	Frame  *core.FrameRecord `json:"frame,omitempty" yaml:"frame,omitempty"`
	Log    *core.LogRecord   `json:"log,omitempty" yaml:"log,omitempty"`
}

// ID returns the wrapped record's entry ID.
func (e Envelope) ID() string {
	if e.Frame != nil {
		return e.Frame.ID
	}
	if e.Log != nil {
		return e.Log.ID
	}
	return ""
}

// Envelopes flattens a batch, frames first, each kind in its aggregated order.
func Envelopes(b Batch) []Envelope {
	out := make([]Envelope, 0, b.Entries.Len())
	for _, f := range b.Entries.Frames {
		out = append(out, Envelope{Source: b.Source, Kind: core.KindFrame.String(), Frame: f})
	}
	for _, l := range b.Entries.Logs {
		out = append(out, Envelope{Source: b.Source, Kind: core.KindLog.String(), Log: l})
	}
	return out
}
