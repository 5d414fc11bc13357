package dexscreener

// Pair is a trading pair as returned by the DexScreener API.
type Pair struct {
	ChainID       string      `json:"chainId"`
	DexID         string      `json:"dexId"`
	URL           string      `json:"url"`
	PairAddress   string      `json:"pairAddress"`
	BaseToken     PairToken   `json:"baseToken"`
	QuoteToken    PairToken   `json:"quoteToken"`
	PriceNative   string      `json:"priceNative"`
	PriceUsd      string      `json:"priceUsd"`
	Volume        Volume      `json:"volume"`
	PriceChange   PriceChange `json:"priceChange"`
	Liquidity     *Liquidity  `json:"liquidity"`
	Fdv           float64     `json:"fdv"`
	MarketCap     float64     `json:"marketCap"`
	PairCreatedAt int64       `json:"pairCreatedAt"` // unix millis
}

// PairToken is one side of a trading pair.
type PairToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Liquidity is the pooled liquidity of a pair.
type Liquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// Volume is trading volume over standard windows.
type Volume struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

// PriceChange is price change percentage over standard windows.
type PriceChange struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

// searchResult wraps the /latest/dex/search response.
type searchResult struct {
	SchemaVersion string `json:"schemaVersion"`
	Pairs         []Pair `json:"pairs"`
}

// BoostedToken is an entry from the token-boosts endpoints.
type BoostedToken struct {
	ChainID      string        `json:"chainId"`
	TokenAddress string        `json:"tokenAddress"`
	Icon         string        `json:"icon"`
	Header       string        `json:"header"`
	Description  string        `json:"description"`
	Links        []interface{} `json:"links"`
	Amount       float64       `json:"amount"`
	TotalAmount  float64       `json:"totalAmount"`
}

// Order is a paid order (boost, profile) attached to a token.
type Order struct {
	Type             string `json:"type"`
	Status           string `json:"status"`
	PaymentTimestamp int64  `json:"paymentTimestamp"`
}
