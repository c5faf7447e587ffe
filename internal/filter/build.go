package filter

import (
	"fmt"
	"strings"

	"firestige.xyz/tracekit/internal/aggregate"
	"firestige.xyz/tracekit/internal/core"
)

// Spec is the user-facing filter selection. Zero values mean "no constraint".
type Spec struct {
	Kinds     []string `mapstructure:"kinds"`
	Level     string   `mapstructure:"level"`
	Keyword   string   `mapstructure:"keyword"`
	TagPrefix string   `mapstructure:"tag_prefix"`
	Since     string   `mapstructure:"since"`
	Until     string   `mapstructure:"until"`
	Ports     []uint8  `mapstructure:"ports"`
	Protocols []uint8  `mapstructure:"protocols"`
	Tags      []uint8  `mapstructure:"tags"`
	Direction string   `mapstructure:"direction"` // send | receive | out | in
}

// Build turns a Spec into a filter list, cheapest checks first.
func Build(spec Spec) ([]Filter, error) {
	var filters []Filter

	if len(spec.Kinds) > 0 {
		kinds := make([]core.Kind, 0, len(spec.Kinds))
		for _, k := range spec.Kinds {
			kind, err := core.ParseKind(strings.ToLower(strings.TrimSpace(k)))
			if err != nil {
				return nil, err
			}
			kinds = append(kinds, kind)
		}
		filters = append(filters, NewKindFilter(kinds...))
	}
	if len(spec.Ports) > 0 {
		filters = append(filters, NewPortFilter(spec.Ports...))
	}
	if len(spec.Protocols) > 0 {
		filters = append(filters, NewProtocolFilter(spec.Protocols...))
	}
	if len(spec.Tags) > 0 {
		filters = append(filters, NewTagFilter(spec.Tags...))
	}
	if spec.Direction != "" {
		d, err := parseDirection(spec.Direction)
		if err != nil {
			return nil, err
		}
		filters = append(filters, NewDirectionFilter(d))
	}
	if spec.Level != "" {
		filters = append(filters, &LevelFilter{Level: spec.Level})
	}
	if spec.TagPrefix != "" {
		filters = append(filters, &TagPrefixFilter{Prefix: spec.TagPrefix})
	}
	if spec.Keyword != "" {
		filters = append(filters, NewKeywordFilter(spec.Keyword))
	}
	if spec.Since != "" || spec.Until != "" {
		tr := &TimeRangeFilter{}
		if spec.Since != "" {
			t, ok := aggregate.ParseTimestamp(spec.Since)
			if !ok {
				return nil, fmt.Errorf("invalid since time %q", spec.Since)
			}
			tr.Since = t
		}
		if spec.Until != "" {
			t, ok := aggregate.ParseTimestamp(spec.Until)
			if !ok {
				return nil, fmt.Errorf("invalid until time %q", spec.Until)
			}
			tr.Until = t
		}
		if !tr.Since.IsZero() && !tr.Until.IsZero() && tr.Until.Before(tr.Since) {
			return nil, fmt.Errorf("until %q is before since %q", spec.Until, spec.Since)
		}
		filters = append(filters, tr)
	}
	return filters, nil
}

func parseDirection(s string) (core.Direction, error) {
	switch strings.ToLower(s) {
	case "send", "out", "0":
		return core.DirectionOut, nil
	case "receive", "recv", "in", "1":
		return core.DirectionIn, nil
	default:
		return 0, fmt.Errorf("invalid direction %q (must be send or receive)", s)
	}
}
