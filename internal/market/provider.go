package market

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quotegate/quotegate/internal/model"
)

// Provider is the capability interface a market data source must implement.
// Providers are selected by their market ID at lookup time.
type Provider interface {
	// Market returns static information about the provider's market.
	Market() model.Market

	// Symbols returns the spot pairs the market supports.
	Symbols() []model.Symbol

	// Candles returns up to limit OHLCV candles for a symbol at the given
	// interval, most recent last.
	Candles(symbol, interval string, limit int) ([]model.Candle, error)
}

// Registry manages the available market providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its market ID, replacing any previous
// provider for that market.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Market().ID] = p
}

// Get returns the provider for a market ID.
func (r *Registry) Get(marketID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[marketID]
	if !ok {
		return nil, fmt.Errorf("market %q not found (available: %v)", marketID, r.marketIDs())
	}
	return p, nil
}

// Markets returns the market info of every registered provider, sorted by ID.
func (r *Registry) Markets() []model.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	markets := make([]model.Market, 0, len(r.providers))
	for _, p := range r.providers {
		markets = append(markets, p.Market())
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })
	return markets
}

func (r *Registry) marketIDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
