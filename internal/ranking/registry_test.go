package ranking

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"funding-arb-lab/internal/domain"
)

func TestNewRegistry_BuiltinsValidate(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for _, name := range []string{"cerebrum_v1", "cerebrum_momentum", "cerebrum_stability", "sharpe_winrate", "roi_all"} {
		if _, err := reg.Get(name); err != nil {
			t.Errorf("builtin %q missing: %v", name, err)
		}
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	_, err = reg.Get("nope")
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("got %v, want ErrUnknownStrategy", err)
	}
}

func TestNewRegistry_RejectsDuplicateName(t *testing.T) {
	dup := domain.StrategyConfig{
		Name: "roi_all", // collides with a builtin
		Components: []domain.Component{
			{Name: "c", Indicators: []string{domain.IndicatorROI1D}, Weights: []float64{1}},
		},
		FinalCombination: domain.FinalCombination{Components: []string{"c"}, Weights: []float64{1}},
	}
	_, err := NewRegistry(dup)
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want ConfigError", err)
	}
}

func TestNewRegistry_RejectsInvalidExtra(t *testing.T) {
	bad := domain.StrategyConfig{
		Name: "bad",
		Components: []domain.Component{
			{Name: "c", Indicators: []string{domain.IndicatorROI1D}, Weights: []float64{1, 2}},
		},
		FinalCombination: domain.FinalCombination{Components: []string{"c"}, Weights: []float64{1}},
	}
	if _, err := NewRegistry(bad); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadStrategiesFile(t *testing.T) {
	yamlDoc := `
strategies:
  - name: my_momentum
    description: user-defined test strategy
    components:
      - name: fast
        indicators: [roi_1d, roi_2d]
        weights: [0.7, 0.3]
        normalize: true
    final_combination:
      components: [fast]
      weights: [1.0]
`
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	configs, err := LoadStrategiesFile(path)
	if err != nil {
		t.Fatalf("LoadStrategiesFile: %v", err)
	}
	if len(configs) != 1 {
		t.Fatalf("got %d configs, want 1", len(configs))
	}
	cfg := configs[0]
	if cfg.Name != "my_momentum" || !cfg.Components[0].Normalize {
		t.Errorf("parsed config = %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Components[0].Indicators, []string{"roi_1d", "roi_2d"}) {
		t.Errorf("indicators = %v", cfg.Components[0].Indicators)
	}

	reg, err := NewRegistry(configs...)
	if err != nil {
		t.Fatalf("register user strategy: %v", err)
	}
	if _, err := reg.Get("my_momentum"); err != nil {
		t.Errorf("user strategy not registered: %v", err)
	}
}

func TestLoadStrategiesFile_MissingFile(t *testing.T) {
	if _, err := LoadStrategiesFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseSelector(t *testing.T) {
	if sel := ParseSelector("all"); !sel.All {
		t.Error(`"all" should select everything`)
	}
	if sel := ParseSelector(""); !sel.All {
		t.Error("empty arg should select everything")
	}
	sel := ParseSelector(" roi_all , sharpe_winrate ")
	if sel.All || !reflect.DeepEqual(sel.Names, []string{"roi_all", "sharpe_winrate"}) {
		t.Errorf("selector = %+v", sel)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}

	all, err := reg.Resolve(Selector{All: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(reg.Names()) {
		t.Errorf("resolve all: got %d, want %d", len(all), len(reg.Names()))
	}

	some, err := reg.Resolve(Selector{Names: []string{"roi_all"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(some) != 1 || some[0].Name != "roi_all" {
		t.Errorf("resolve by name = %+v", some)
	}

	if _, err := reg.Resolve(Selector{Names: []string{"roi_all", "nope"}}); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("unknown name should fail the whole selection, got %v", err)
	}
}
