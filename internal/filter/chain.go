package filter

import "firestige.xyz/tracekit/internal/core"

// Chain passes an entry to the next filter, or to the handler after the last one.
type Chain interface {
	Filter(entry core.Entry)
}

type FilterChain struct {
	filters []Filter
	handler func(entry core.Entry)
	current Filter
	chain   *FilterChain
}

func NewFilterChain(handler func(entry core.Entry), filters []Filter) *FilterChain {
	allFilters := make([]Filter, len(filters))
	copy(allFilters, filters)
	chain := initChain(allFilters, handler)
	return &FilterChain{
		filters: allFilters,
		handler: handler,
		chain:   chain.chain,
		current: chain.current,
	}
}

func newChain(filters []Filter, handler func(entry core.Entry), current Filter, chain *FilterChain) *FilterChain {
	return &FilterChain{
		filters: filters,
		handler: handler,
		current: current,
		chain:   chain,
	}
}

func initChain(filters []Filter, handler func(entry core.Entry)) *FilterChain {
	chain := newChain(filters, handler, nil, nil)
	for i := len(filters) - 1; i >= 0; i-- {
		chain = newChain(filters, handler, filters[i], chain)
	}
	return chain
}

func (c *FilterChain) GetFilters() []Filter {
	return c.filters
}

func (c *FilterChain) Filter(entry core.Entry) {
	if c.current != nil && c.chain != nil {
		c.current.Filter(entry, c.chain)
	} else {
		c.handler(entry)
	}
}

// Apply runs every entry through filters and returns the survivors in their
// original order.
func Apply(entries core.Entries, filters []Filter) core.Entries {
	if len(filters) == 0 {
		return entries
	}
	var out core.Entries
	chain := NewFilterChain(func(e core.Entry) {
		switch e.Kind {
		case core.KindFrame:
			out.Frames = append(out.Frames, e.Frame)
		case core.KindLog:
			out.Logs = append(out.Logs, e.Log)
		}
	}, filters)

	for _, f := range entries.Frames {
		chain.Filter(core.Entry{Kind: core.KindFrame, Frame: f})
	}
	for _, l := range entries.Logs {
		chain.Filter(core.Entry{Kind: core.KindLog, Log: l})
	}
	return out
}
