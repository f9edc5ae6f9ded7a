package market

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/quotegate/quotegate/internal/model"
)

// intervalDurations maps the supported candle intervals to their length.
// The interval strings follow the exchange convention.
var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

const (
	defaultCandleLimit = 100
	maxCandleLimit     = 500
)

// syntheticCandles produces a deterministic OHLCV series for a symbol.
// Real exchange connectivity is out of scope for the gateway, so providers
// serve reproducible data derived from the symbol name in the same shape
// clients would see from the live API.
func syntheticCandles(symbol, interval string, limit int) ([]model.Candle, error) {
	step, ok := intervalDurations[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}
	if limit <= 0 {
		limit = defaultCandleLimit
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}

	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(symbol)))
	seed := h.Sum64()
	base := 10 + float64(seed%90000)/10 // per-symbol base price

	stepMs := step.Milliseconds()
	end := time.Now().UnixMilli() / stepMs * stepMs
	start := end - int64(limit)*stepMs

	candles := make([]model.Candle, 0, limit)
	for i := 0; i < limit; i++ {
		openTime := start + int64(i)*stepMs

		// A smooth pseudo-random walk, fully determined by symbol and time.
		phase := float64(seed%997) + float64(openTime/stepMs)
		drift := math.Sin(phase/24) * 0.03
		wobble := math.Sin(phase/3) * 0.01

		open := base * (1 + drift)
		clos := base * (1 + drift + wobble)
		high := math.Max(open, clos) * 1.005
		low := math.Min(open, clos) * 0.995
		volume := 1000 + 500*math.Abs(math.Sin(phase/7))

		candles = append(candles, model.Candle{
			OpenTime:                 openTime,
			Open:                     round(open),
			High:                     round(high),
			Low:                      round(low),
			Close:                    round(clos),
			Volume:                   round(volume),
			CloseTime:                openTime + stepMs - 1,
			QuoteAssetVolume:         round(volume * clos),
			TakerBuyBaseAssetVolume:  round(volume * 0.5),
			TakerBuyQuoteAssetVolume: round(volume * clos * 0.5),
			NumberOfTrades:           int(volume / 10),
		})
	}
	return candles, nil
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
