package domain

import "fmt"

// Component combines named indicators into one score. When Normalize is
// set, each indicator is Z-scored across the date's universe before the
// weighted sum.
type Component struct {
	Name       string    `yaml:"name"`
	Indicators []string  `yaml:"indicators"`
	Weights    []float64 `yaml:"weights"`
	Normalize  bool      `yaml:"normalize"`
}

// FinalCombination blends component scores into the final ranking score.
type FinalCombination struct {
	Components []string  `yaml:"components"`
	Weights    []float64 `yaml:"weights"`
}

// StrategyConfig is a named, immutable ranking strategy: components over
// ReturnMetricRow indicators plus a final combination. Weights are a
// linear combination and need not sum to 1.
type StrategyConfig struct {
	Name             string           `yaml:"name"`
	Description      string           `yaml:"description,omitempty"`
	Components       []Component      `yaml:"components"`
	FinalCombination FinalCombination `yaml:"final_combination"`
}

// ConfigError reports an invalid StrategyConfig. Carries the strategy
// name so batch callers can attribute the failure.
type ConfigError struct {
	Strategy string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("strategy %q: %s", e.Strategy, e.Reason)
}

// Validate fails fast before any computation: weight/indicator length
// mismatches, unknown indicator names, final combination referencing an
// undefined component, or an empty component set.
func (c *StrategyConfig) Validate() error {
	if c.Name == "" {
		return &ConfigError{Strategy: c.Name, Reason: "empty strategy name"}
	}
	if len(c.Components) == 0 {
		return &ConfigError{Strategy: c.Name, Reason: "no components defined"}
	}
	defined := make(map[string]bool, len(c.Components))
	for _, comp := range c.Components {
		if comp.Name == "" {
			return &ConfigError{Strategy: c.Name, Reason: "component with empty name"}
		}
		if defined[comp.Name] {
			return &ConfigError{Strategy: c.Name, Reason: fmt.Sprintf("duplicate component %q", comp.Name)}
		}
		defined[comp.Name] = true
		if len(comp.Indicators) == 0 {
			return &ConfigError{Strategy: c.Name, Reason: fmt.Sprintf("component %q has no indicators", comp.Name)}
		}
		if len(comp.Indicators) != len(comp.Weights) {
			return &ConfigError{
				Strategy: c.Name,
				Reason: fmt.Sprintf("component %q has %d indicators but %d weights",
					comp.Name, len(comp.Indicators), len(comp.Weights)),
			}
		}
		for _, ind := range comp.Indicators {
			if !KnownIndicator(ind) {
				return &ConfigError{Strategy: c.Name, Reason: fmt.Sprintf("component %q references unknown indicator %q", comp.Name, ind)}
			}
		}
	}
	if len(c.FinalCombination.Components) == 0 {
		return &ConfigError{Strategy: c.Name, Reason: "final combination has no components"}
	}
	if len(c.FinalCombination.Components) != len(c.FinalCombination.Weights) {
		return &ConfigError{
			Strategy: c.Name,
			Reason: fmt.Sprintf("final combination has %d components but %d weights",
				len(c.FinalCombination.Components), len(c.FinalCombination.Weights)),
		}
	}
	for _, name := range c.FinalCombination.Components {
		if !defined[name] {
			return &ConfigError{Strategy: c.Name, Reason: fmt.Sprintf("final combination references undefined component %q", name)}
		}
	}
	return nil
}

// RequiredIndicators returns the deduplicated set of indicator names the
// strategy reads, in first-seen order. A pair missing any of these on a
// date is excluded from that date's ranking.
func (c *StrategyConfig) RequiredIndicators() []string {
	seen := make(map[string]bool)
	var out []string
	for _, comp := range c.Components {
		for _, ind := range comp.Indicators {
			if !seen[ind] {
				seen[ind] = true
				out = append(out, ind)
			}
		}
	}
	return out
}
