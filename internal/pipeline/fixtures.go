package pipeline

import (
	"context"
	"math"
	"time"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

// FixturePairs are the trading pairs the demonstration dataset covers.
var FixturePairs = []string{
	"BTC_binance_bybit",
	"ETH_binance_bybit",
	"SOL_binance_okx",
	"DOGE_bybit_okx",
}

// FixtureDays is the span of the demonstration dataset.
const FixtureDays = 14

// LoadFixtures seeds the differential store with a deterministic
// demonstration dataset: hourly observations for FixturePairs over
// FixtureDays ending at `end`, with per-pair level and cycle so the
// pipeline produces distinct rankings. Roughly one observation in
// twelve is NULL, mimicking exchange outages.
func LoadFixtures(ctx context.Context, diffs storage.DifferentialStore, end domain.Date) error {
	start := end.AddDays(-FixtureDays + 1)

	var obs []*domain.DifferentialObservation
	for p, pair := range FixturePairs {
		symbol, exchangeA, exchangeB, err := domain.SplitTradingPair(pair)
		if err != nil {
			return err
		}

		level := 0.0001 * float64(p+1)
		for hour := 0; hour < FixtureDays*24; hour++ {
			ts := start.Time().Add(time.Duration(hour) * time.Hour)

			var rate *float64
			if (hour+p)%12 != 0 {
				v := level + 0.00005*math.Sin(float64(hour+7*p)/6)
				rate = &v
			}
			obs = append(obs, &domain.DifferentialObservation{
				Symbol:    symbol,
				ExchangeA: exchangeA,
				ExchangeB: exchangeB,
				Timestamp: ts,
				RateDiff:  rate,
			})
		}
	}

	return diffs.InsertBulk(ctx, obs)
}
