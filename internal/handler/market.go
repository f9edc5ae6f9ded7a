package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quotegate/quotegate/internal/market"
	"github.com/quotegate/quotegate/internal/model"
)

// MarketHandler serves market catalog and candle data through the registered
// providers.
type MarketHandler struct {
	registry *market.Registry
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(registry *market.Registry) *MarketHandler {
	return &MarketHandler{registry: registry}
}

// ListMarkets returns every registered market.
// GET /api/v1/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	markets := h.registry.Markets()

	resources := make([]map[string]interface{}, 0, len(markets))
	for _, m := range markets {
		resources = append(resources, marketToMap(m))
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count:  len(resources),
			TookMs: float64(time.Since(start).Microseconds()) / 1000,
		},
	})
}

// ListSymbols returns the trading pairs a market supports.
// GET /api/v1/markets/{market}/symbols
func (h *MarketHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	marketID := chi.URLParam(r, "market")

	provider, err := h.registry.Get(marketID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	symbols := provider.Symbols()
	resources := make([]map[string]interface{}, 0, len(symbols))
	for _, s := range symbols {
		resources = append(resources, map[string]interface{}{
			"symbol":      s.Symbol,
			"name":        s.Name,
			"base_asset":  s.BaseAsset,
			"quote_asset": s.QuoteAsset,
			"type":        s.Type,
		})
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count:  len(resources),
			TookMs: float64(time.Since(start).Microseconds()) / 1000,
		},
	})
}

// GetCandles returns OHLCV candles for a symbol on a market.
// GET /api/v1/markets/{market}/candles?symbol=BTCUSDT&interval=1h&limit=100
func (h *MarketHandler) GetCandles(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	marketID := chi.URLParam(r, "market")

	symbol := queryString(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}
	interval := queryString(r, "interval")
	if interval == "" {
		interval = "1h"
	}
	limit := queryInt(r, "limit", 100)

	provider, err := h.registry.Get(marketID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	candles, err := provider.Candles(symbol, interval, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resources := make([]map[string]interface{}, 0, len(candles))
	for i := range candles {
		resources = append(resources, candleToMap(&candles[i]))
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count:  len(resources),
			TookMs: float64(time.Since(start).Microseconds()) / 1000,
		},
	})
}

func marketToMap(m model.Market) map[string]interface{} {
	return map[string]interface{}{
		"id":     m.ID,
		"name":   m.Name,
		"label":  m.Label,
		"url":    m.URL,
		"active": m.Active,
	}
}

func candleToMap(c *model.Candle) map[string]interface{} {
	return map[string]interface{}{
		"open_time":  c.OpenTime,
		"open":       c.Open,
		"high":       c.High,
		"low":        c.Low,
		"close":      c.Close,
		"volume":     c.Volume,
		"close_time": c.CloseTime,
		"closed":     c.IsClosed(time.Now().UnixMilli()),
	}
}
