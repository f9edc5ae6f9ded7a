package model

// Market holds static information about a supported spot market.
type Market struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Label  string `json:"label"`
	URL    string `json:"url,omitempty"`
	Active bool   `json:"active"`
}

// Symbol is a tradeable spot pair exposed by a market provider.
type Symbol struct {
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`
	Type       string `json:"type"`
}

// Candle is a single OHLCV candlestick. Times are Unix epoch milliseconds,
// matching the wire format of the upstream exchange APIs.
type Candle struct {
	OpenTime                 int64   `json:"open_time"`
	Open                     float64 `json:"open"`
	High                     float64 `json:"high"`
	Low                      float64 `json:"low"`
	Close                    float64 `json:"close"`
	Volume                   float64 `json:"volume"`
	CloseTime                int64   `json:"close_time"`
	QuoteAssetVolume         float64 `json:"quote_asset_volume"`
	TakerBuyBaseAssetVolume  float64 `json:"taker_buy_base_asset_volume"`
	TakerBuyQuoteAssetVolume float64 `json:"taker_buy_quote_asset_volume"`
	NumberOfTrades           int     `json:"number_of_trades,omitempty"`
}

// IsClosed reports whether the candle has fully closed by nowMillis.
func (c *Candle) IsClosed(nowMillis int64) bool {
	return c.CloseTime < nowMillis
}
