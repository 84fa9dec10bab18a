package ranking

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"funding-arb-lab/internal/domain"
)

// ErrUnknownStrategy is returned when a selector names a strategy that
// was never registered.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Registry holds the validated strategy set for a run: the built-ins
// plus any user-defined strategies. Immutable after construction.
type Registry struct {
	byName map[string]*domain.StrategyConfig
	names  []string
}

// NewRegistry builds a registry from the built-in strategies plus any
// extras, typically loaded from a YAML file. Every config is validated
// up front; a duplicate name is a ConfigError.
func NewRegistry(extra ...domain.StrategyConfig) (*Registry, error) {
	configs := append(builtinStrategies(), extra...)

	r := &Registry{byName: make(map[string]*domain.StrategyConfig, len(configs))}
	for i := range configs {
		cfg := &configs[i]
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.byName[cfg.Name]; exists {
			return nil, &domain.ConfigError{Strategy: cfg.Name, Reason: "registered twice"}
		}
		r.byName[cfg.Name] = cfg
		r.names = append(r.names, cfg.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the named strategy or ErrUnknownStrategy.
func (r *Registry) Get(name string) (*domain.StrategyConfig, error) {
	cfg, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return cfg, nil
}

// Names lists registered strategy names, sorted ascending.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All returns every registered strategy in name order.
func (r *Registry) All() []*domain.StrategyConfig {
	out := make([]*domain.StrategyConfig, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// strategiesFile is the on-disk shape of a user strategy file.
type strategiesFile struct {
	Strategies []domain.StrategyConfig `yaml:"strategies"`
}

// LoadStrategiesFile reads user-defined strategy configs from a YAML
// file. Validation happens in NewRegistry, not here.
func LoadStrategiesFile(path string) ([]domain.StrategyConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategies file: %w", err)
	}
	var f strategiesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse strategies file %s: %w", path, err)
	}
	return f.Strategies, nil
}

// builtinStrategies is the strategy set shipped with the binary. Each
// call returns a fresh slice so registries never share config memory.
func builtinStrategies() []domain.StrategyConfig {
	return []domain.StrategyConfig{
		{
			Name:        "cerebrum_v1",
			Description: "blend of trend, risk-adjusted return, stability and hit rate",
			Components: []domain.Component{
				{Name: "trend", Indicators: []string{domain.IndicatorTrend30D}, Weights: []float64{1}, Normalize: true},
				{Name: "sharpe", Indicators: []string{domain.IndicatorSharpe30D}, Weights: []float64{1}, Normalize: true},
				{Name: "stability", Indicators: []string{domain.IndicatorStability30D}, Weights: []float64{1}, Normalize: true},
				{Name: "win_rate", Indicators: []string{domain.IndicatorWinRate30D}, Weights: []float64{1}, Normalize: true},
			},
			FinalCombination: domain.FinalCombination{
				Components: []string{"trend", "sharpe", "stability", "win_rate"},
				Weights:    []float64{0.10, 0.40, 0.30, 0.20},
			},
		},
		{
			Name:        "cerebrum_momentum",
			Description: "recent differential momentum over short and medium horizons",
			Components: []domain.Component{
				{
					Name:       "short_term",
					Indicators: []string{domain.IndicatorROI1D, domain.IndicatorROI2D, domain.IndicatorROI7D},
					Weights:    []float64{0.5, 0.3, 0.2},
					Normalize:  true,
				},
				{
					Name:       "medium_term",
					Indicators: []string{domain.IndicatorROI14D, domain.IndicatorROI30D},
					Weights:    []float64{0.6, 0.4},
					Normalize:  true,
				},
			},
			FinalCombination: domain.FinalCombination{
				Components: []string{"short_term", "medium_term"},
				Weights:    []float64{0.6, 0.4},
			},
		},
		{
			Name:        "cerebrum_stability",
			Description: "favors pairs with steady, frequently positive differentials",
			Components: []domain.Component{
				{Name: "stability", Indicators: []string{domain.IndicatorStability30D}, Weights: []float64{1}, Normalize: true},
				{Name: "win_rate", Indicators: []string{domain.IndicatorWinRate30D}, Weights: []float64{1}, Normalize: true},
				{Name: "sharpe", Indicators: []string{domain.IndicatorSharpe30D}, Weights: []float64{1}, Normalize: true},
			},
			FinalCombination: domain.FinalCombination{
				Components: []string{"stability", "win_rate", "sharpe"},
				Weights:    []float64{0.5, 0.2, 0.3},
			},
		},
		{
			Name:        "sharpe_winrate",
			Description: "equal-weight blend of normalized sharpe and win rate",
			Components: []domain.Component{
				{Name: "sharpe", Indicators: []string{domain.IndicatorSharpe30D}, Weights: []float64{1}, Normalize: true},
				{Name: "win_rate", Indicators: []string{domain.IndicatorWinRate30D}, Weights: []float64{1}, Normalize: true},
			},
			FinalCombination: domain.FinalCombination{
				Components: []string{"sharpe", "win_rate"},
				Weights:    []float64{0.5, 0.5},
			},
		},
		{
			Name:        "roi_all",
			Description: "raw lifetime annualized ROI, no normalization",
			Components: []domain.Component{
				{Name: "roi_all", Indicators: []string{domain.IndicatorROIAll}, Weights: []float64{1}},
			},
			FinalCombination: domain.FinalCombination{
				Components: []string{"roi_all"},
				Weights:    []float64{1},
			},
		},
	}
}
