package ranking

import (
	"strings"

	"funding-arb-lab/internal/domain"
)

// Selector chooses which registered strategies a run operates on. The
// zero value selects nothing; All wins over Names.
type Selector struct {
	All   bool
	Names []string
}

// ParseSelector interprets a CLI strategy argument: "all" (or empty)
// selects every registered strategy, otherwise a comma-separated list
// of names.
func ParseSelector(arg string) Selector {
	arg = strings.TrimSpace(arg)
	if arg == "" || strings.EqualFold(arg, "all") {
		return Selector{All: true}
	}
	var names []string
	for _, name := range strings.Split(arg, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return Selector{Names: names}
}

// Resolve maps a selector to concrete strategy configs. Resolution
// fails fast: one unknown name fails the whole selection.
func (r *Registry) Resolve(sel Selector) ([]*domain.StrategyConfig, error) {
	if sel.All {
		return r.All(), nil
	}
	out := make([]*domain.StrategyConfig, 0, len(sel.Names))
	for _, name := range sel.Names {
		cfg, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}
