package market

import "github.com/quotegate/quotegate/internal/model"

// CoinGeckoProvider serves the CoinGecko aggregated market catalog.
type CoinGeckoProvider struct{}

// NewCoinGecko creates a CoinGecko market provider.
func NewCoinGecko() *CoinGeckoProvider {
	return &CoinGeckoProvider{}
}

func (p *CoinGeckoProvider) Market() model.Market {
	return model.Market{
		ID:     "coingecko",
		Name:   "CoinGecko",
		Label:  "CoinGecko Aggregate",
		URL:    "https://www.coingecko.com",
		Active: true,
	}
}

func (p *CoinGeckoProvider) Symbols() []model.Symbol {
	return []model.Symbol{
		{Symbol: "BTCUSD", Name: "Bitcoin/USD", BaseAsset: "BTC", QuoteAsset: "USD", Type: "crypto"},
		{Symbol: "ETHUSD", Name: "Ethereum/USD", BaseAsset: "ETH", QuoteAsset: "USD", Type: "crypto"},
		{Symbol: "SOLUSD", Name: "Solana/USD", BaseAsset: "SOL", QuoteAsset: "USD", Type: "crypto"},
		{Symbol: "XRPUSD", Name: "Ripple/USD", BaseAsset: "XRP", QuoteAsset: "USD", Type: "crypto"},
		{Symbol: "ADAUSD", Name: "Cardano/USD", BaseAsset: "ADA", QuoteAsset: "USD", Type: "crypto"},
		{Symbol: "LTCUSD", Name: "Litecoin/USD", BaseAsset: "LTC", QuoteAsset: "USD", Type: "crypto"},
	}
}

func (p *CoinGeckoProvider) Candles(symbol, interval string, limit int) ([]model.Candle, error) {
	return syntheticCandles(symbol, interval, limit)
}
