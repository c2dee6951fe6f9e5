package domain

import (
	"strings"
	"time"
)

// Category is the asset class a tweet leans towards, inferred from which
// provider resolved the most symbols.
type Category string

const (
	CategoryCrypto Category = "crypto"
	CategoryStocks Category = "stocks"
	CategoryForex  Category = "forex"
	CategoryNone   Category = ""
)

// Sentiment is the classifier label for a tweet's own text.
type Sentiment string

const (
	SentimentBullish Sentiment = "Bullish"
	SentimentNeutral Sentiment = "Neutral"
	SentimentBearish Sentiment = "Bearish"
)

// Color returns the embed colour for a sentiment.
func (s Sentiment) Color() int {
	switch s {
	case SentimentBullish:
		return 0x2ECC71
	case SentimentBearish:
		return 0xE74C3C
	default:
		return 0x95A5A6
	}
}

// MediaTag is the chart classifier's verdict for a single image.
type MediaTag string

const (
	MediaChart MediaTag = "chart"
	MediaOther MediaTag = "other"
)

// AssetQuote is the uniform result every asset data provider returns.
// Volume is USD-equivalent and disambiguates between asset classes.
type AssetQuote struct {
	Volume     float64
	Website    string
	Exchanges  []string
	Price      float64
	ChangePct  float64
	BaseSymbol string
	Category   Category

	// After-hours fields, set by the stock provider when the market is closed.
	AfterHours          bool
	AfterHoursPrice     float64
	AfterHoursChangePct float64

	// Technical-analysis labels from the quote gateway, empty when unavailable.
	TA4H string
	TA1D string
}

// VolumeFloor is the USD volume below which a ticker is classified unknown.
const VolumeFloor = 50_000

// CryptoFallthroughVolume is the crypto volume under which the resolver also
// consults the stock provider.
const CryptoFallthroughVolume = 1_000_000

// ClassifiedTicker is the cached identity of a resolved ticker. It stores
// identity only; price and change are re-probed on every use.
type ClassifiedTicker struct {
	Ticker     string
	Website    string
	Exchanges  []string
	BaseSymbol string
	Category   Category
	Timestamp  time.Time
}

// ClassifiedTickerTTL is how long a cached identity stays fresh.
const ClassifiedTickerTTL = 72 * time.Hour

// Fresh reports whether the cached identity is still within its TTL.
func (c *ClassifiedTicker) Fresh(now time.Time) bool {
	return now.Sub(c.Timestamp) < ClassifiedTickerTTL
}

// ExchangesJoined flattens the exchange list to the delimited form stored in
// the database.
func (c *ClassifiedTicker) ExchangesJoined() string {
	return strings.Join(c.Exchanges, ",")
}

// SplitExchanges is the inverse of ExchangesJoined.
func SplitExchanges(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}
