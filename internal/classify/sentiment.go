package classify

import (
	"context"
	"regexp"
	"strings"

	"tickerfeed/internal/domain"
)

// SentimentClassifier labels a tweet's own text.
type SentimentClassifier interface {
	Classify(ctx context.Context, text string) domain.Sentiment
}

// LexiconClassifier is the default classifier: a fixed word list scored by
// simple majority. It never fails and needs no network.
type LexiconClassifier struct{}

func NewLexiconClassifier() *LexiconClassifier {
	return &LexiconClassifier{}
}

var bullishTerms = map[string]struct{}{
	"bullish": {}, "bull": {}, "long": {}, "moon": {}, "mooning": {},
	"pump": {}, "pumping": {}, "breakout": {}, "rally": {}, "rallying": {},
	"ath": {}, "accumulate": {}, "accumulating": {}, "buy": {}, "buying": {},
	"bought": {}, "undervalued": {}, "strong": {}, "strength": {}, "up": {},
	"higher": {}, "gains": {}, "green": {}, "support": {}, "bottom": {},
	"bottomed": {}, "send": {}, "sending": {}, "lfg": {}, "wagmi": {},
}

var bearishTerms = map[string]struct{}{
	"bearish": {}, "bear": {}, "short": {}, "shorting": {}, "dump": {},
	"dumping": {}, "crash": {}, "crashing": {}, "breakdown": {}, "sell": {},
	"selling": {}, "sold": {}, "overvalued": {}, "weak": {}, "weakness": {},
	"down": {}, "lower": {}, "losses": {}, "red": {}, "resistance": {},
	"top": {}, "topped": {}, "rekt": {}, "rug": {}, "scam": {},
	"capitulation": {}, "liquidated": {}, "ngmi": {},
}

var wordRx = regexp.MustCompile(`[a-z]+`)

func (c *LexiconClassifier) Classify(_ context.Context, text string) domain.Sentiment {
	var bull, bear int
	for _, w := range wordRx.FindAllString(strings.ToLower(text), -1) {
		if _, ok := bullishTerms[w]; ok {
			bull++
		}
		if _, ok := bearishTerms[w]; ok {
			bear++
		}
	}
	switch {
	case bull > bear:
		return domain.SentimentBullish
	case bear > bull:
		return domain.SentimentBearish
	default:
		return domain.SentimentNeutral
	}
}
