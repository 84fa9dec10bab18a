package domain

// Trade event types recorded in the backtest ledger.
const (
	EventEnterPosition  = "enter_position"
	EventExitPosition   = "exit_position"
	EventFundingAccrual = "funding_accrual"
)

// Position sizing modes.
const (
	// SizingPercentage sizes entries as PositionSize * total balance,
	// evaluated once per day before any entries.
	SizingPercentage = "percentage_based"

	// SizingFixedAmount sizes every entry at FixedAmount currency units.
	SizingFixedAmount = "fixed_amount"
)

// BacktestConfig parametrizes one simulation run. Immutable for the
// duration of the run.
type BacktestConfig struct {
	StrategyName   string  `yaml:"strategy_name"`
	StartDate      Date    `yaml:"start_date"`
	EndDate        Date    `yaml:"end_date"`
	InitialCapital float64 `yaml:"initial_capital"`
	EntryTopN      int     `yaml:"entry_top_n"`    // enter pairs ranked <= this
	ExitThreshold  int     `yaml:"exit_threshold"` // close positions ranked > this
	MaxPositions   int     `yaml:"max_positions"`
	SizingMode     string  `yaml:"sizing_mode"`             // percentage_based | fixed_amount
	PositionSize   float64 `yaml:"position_size"`           // fraction of total, percentage_based mode
	FixedAmount    float64 `yaml:"fixed_amount,omitempty"`  // notional per entry, fixed_amount mode
	FeeRate        float64 `yaml:"fee_rate,omitempty"`      // charged on entry and exit notional
}

// Validate rejects parameter combinations the simulator cannot run.
func (c *BacktestConfig) Validate() error {
	switch {
	case c.StrategyName == "":
		return &ConfigError{Strategy: c.StrategyName, Reason: "backtest requires a strategy name"}
	case c.EndDate.Before(c.StartDate):
		return &ConfigError{Strategy: c.StrategyName, Reason: "end date precedes start date"}
	case c.InitialCapital <= 0:
		return &ConfigError{Strategy: c.StrategyName, Reason: "initial capital must be positive"}
	case c.EntryTopN <= 0:
		return &ConfigError{Strategy: c.StrategyName, Reason: "entry_top_n must be positive"}
	case c.ExitThreshold < c.EntryTopN:
		return &ConfigError{Strategy: c.StrategyName, Reason: "exit_threshold must be >= entry_top_n"}
	case c.MaxPositions <= 0:
		return &ConfigError{Strategy: c.StrategyName, Reason: "max_positions must be positive"}
	case c.FeeRate < 0:
		return &ConfigError{Strategy: c.StrategyName, Reason: "fee_rate must be non-negative"}
	}
	switch c.SizingMode {
	case SizingPercentage:
		if c.PositionSize <= 0 || c.PositionSize > 1 {
			return &ConfigError{Strategy: c.StrategyName, Reason: "position_size must be in (0, 1]"}
		}
	case SizingFixedAmount:
		if c.FixedAmount <= 0 {
			return &ConfigError{Strategy: c.StrategyName, Reason: "fixed_amount must be positive"}
		}
	default:
		return &ConfigError{Strategy: c.StrategyName, Reason: "unknown sizing mode " + c.SizingMode}
	}
	return nil
}

// Position is one open holding inside a backtest run.
type Position struct {
	TradingPair string
	EntryDate   Date
	Notional    float64
}

// TradeEvent is one ledger entry. Corresponds to the backtest_trades
// table. Balances are captured after the event applies.
type TradeEvent struct {
	BacktestID           string
	Date                 Date
	TradingPair          string
	EventType            string
	Amount               float64 // notional for enter/exit, P&L for accrual
	CashBalanceAfter     float64
	PositionBalanceAfter float64
	TotalBalanceAfter    float64
	RankPosition         *int // nil when the pair had no rank that day
}

// EquityPoint is one day's closing state of the equity curve.
type EquityPoint struct {
	Date          Date
	TotalBalance  float64
	DailyPnL      float64
	OpenPositions int
}

// BacktestResult represents one finished run. Corresponds to the
// backtest_results table.
type BacktestResult struct {
	BacktestID     string
	StrategyName   string
	StartDate      Date
	EndDate        Date
	InitialCapital float64
	FinalBalance   float64

	TotalReturn  float64 // (final - initial) / initial
	ROI          float64 // annualized by elapsed days
	MaxDrawdown  float64 // worst peak-to-trough on the equity curve
	SharpeRatio  float64 // mean/stdev of daily returns, sqrt(365) scaled
	WinRate      float64 // fraction of days with non-negative daily P&L
	TotalTrades  int     // enter events
	AvgHoldDays  float64 // mean holding period of closed positions
	ProfitDays   int
	LossDays     int
	FlatDays     int
	ConfigParams string // config serialized for postmortem
}
