package market

import "github.com/quotegate/quotegate/internal/model"

// BinanceProvider serves the Binance spot market catalog.
type BinanceProvider struct{}

// NewBinance creates a Binance market provider.
func NewBinance() *BinanceProvider {
	return &BinanceProvider{}
}

func (p *BinanceProvider) Market() model.Market {
	return model.Market{
		ID:     "binance",
		Name:   "Binance",
		Label:  "Binance Spot",
		URL:    "https://www.binance.com",
		Active: true,
	}
}

func (p *BinanceProvider) Symbols() []model.Symbol {
	return []model.Symbol{
		{Symbol: "BTCUSDT", Name: "Bitcoin/USDT", BaseAsset: "BTC", QuoteAsset: "USDT", Type: "crypto"},
		{Symbol: "ETHUSDT", Name: "Ethereum/USDT", BaseAsset: "ETH", QuoteAsset: "USDT", Type: "crypto"},
		{Symbol: "BNBUSDT", Name: "Binance Coin/USDT", BaseAsset: "BNB", QuoteAsset: "USDT", Type: "crypto"},
		{Symbol: "SOLUSDT", Name: "Solana/USDT", BaseAsset: "SOL", QuoteAsset: "USDT", Type: "crypto"},
		{Symbol: "XRPUSDT", Name: "Ripple/USDT", BaseAsset: "XRP", QuoteAsset: "USDT", Type: "crypto"},
		{Symbol: "ADAUSDT", Name: "Cardano/USDT", BaseAsset: "ADA", QuoteAsset: "USDT", Type: "crypto"},
		{Symbol: "DOGEUSDT", Name: "Dogecoin/USDT", BaseAsset: "DOGE", QuoteAsset: "USDT", Type: "crypto"},
		{Symbol: "MATICUSDT", Name: "Polygon/USDT", BaseAsset: "MATIC", QuoteAsset: "USDT", Type: "crypto"},
		{Symbol: "AVAXUSDT", Name: "Avalanche/USDT", BaseAsset: "AVAX", QuoteAsset: "USDT", Type: "crypto"},
		{Symbol: "DOTUSDT", Name: "Polkadot/USDT", BaseAsset: "DOT", QuoteAsset: "USDT", Type: "crypto"},
	}
}

func (p *BinanceProvider) Candles(symbol, interval string, limit int) ([]model.Candle, error) {
	return syntheticCandles(symbol, interval, limit)
}
