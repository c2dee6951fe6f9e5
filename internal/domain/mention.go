package domain

import "time"

// MentionRecord is one row of the rolling 24-hour mention table.
type MentionRecord struct {
	ID        int64
	Timestamp time.Time
	Ticker    string
	Author    string
	Sentiment Sentiment
	Category  Category
	ChangePct float64
}

// MentionWindow is how far back the aggregator looks.
const MentionWindow = 24 * time.Hour

// MentionSummary is one grouped row of the overview table.
type MentionSummary struct {
	Ticker       string
	Count        int
	LastChange   float64
	BullishCount int
	NeutralCount int
	BearishCount int
}
