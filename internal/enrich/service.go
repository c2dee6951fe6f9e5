package enrich

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tickerfeed/internal/classify"
	"tickerfeed/internal/domain"
)

// Result is what one tweet enriches into: the embed, the asset class the
// tweet leans towards, and the deduplicated base symbols it mentions.
type Result struct {
	Embed       *discordgo.MessageEmbed
	Category    domain.Category
	BaseSymbols []string
	Sentiment   domain.Sentiment

	// Changes holds the 24h change per base symbol, for the mention table.
	Changes map[string]float64
}

// Service is the enrichment orchestrator: symbols in, embed out.
type Service struct {
	tracer    trace.Tracer
	resolver  *Resolver
	sentiment classify.SentimentClassifier
}

func NewService(tracer trace.Tracer, resolver *Resolver, sentiment classify.SentimentClassifier) *Service {
	return &Service{
		tracer:    tracer,
		resolver:  resolver,
		sentiment: sentiment,
	}
}

// Process resolves every candidate symbol in the tweet and builds the embed.
// Symbols that resolve to the same base are printed once; unresolved symbols
// are silently dropped.
func (s *Service) Process(ctx context.Context, tweet *domain.Tweet) *Result {
	ctx, span := s.tracer.Start(ctx, "enrich.process-tweet")
	defer span.End()
	span.SetAttributes(attribute.Int64("tweet_id", tweet.ID))

	symbols := domain.NormalizeSymbols(tweet.AllCashtags(), tweet.AllHashtags())
	embed := baseEmbed(tweet)

	tally := map[domain.Category]int{}
	seenBase := map[string]struct{}{}
	changes := map[string]float64{}
	var groups []fieldGroup
	var baseSymbols []string

	for _, symbol := range symbols {
		quote, ok := s.resolver.Resolve(ctx, symbol, majorityHint(tally))
		if !ok {
			continue
		}
		if _, dup := seenBase[quote.BaseSymbol]; dup {
			continue
		}
		seenBase[quote.BaseSymbol] = struct{}{}
		baseSymbols = append(baseSymbols, quote.BaseSymbol)
		changes[quote.BaseSymbol] = quote.ChangePct
		tally[quote.Category]++
		groups = append(groups, buildFieldGroup(quote))
	}

	appendGroups(embed, groups)

	result := &Result{
		Embed:       embed,
		Category:    majorityHint(tally),
		BaseSymbols: baseSymbols,
		Sentiment:   domain.SentimentNeutral,
		Changes:     changes,
	}

	if len(baseSymbols) > 0 {
		result.Sentiment = s.sentiment.Classify(ctx, tweet.OwnText())
		embed.Color = result.Sentiment.Color()
		embed.Fields = append(embed.Fields, sentimentField(result.Sentiment))
	}

	span.SetAttributes(
		attribute.String("category", string(result.Category)),
		attribute.Int("resolved", len(baseSymbols)),
	)
	return result
}

// majorityHint is the running argmax of the category tally, the empty
// category when nothing resolved yet. Ties break in the fixed order crypto,
// stocks, forex.
func majorityHint(tally map[domain.Category]int) domain.Category {
	best := domain.CategoryNone
	bestCount := 0
	for _, cat := range []domain.Category{domain.CategoryCrypto, domain.CategoryStocks, domain.CategoryForex} {
		if tally[cat] > bestCount {
			best = cat
			bestCount = tally[cat]
		}
	}
	return best
}
