package router

import (
	"context"
	"log"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tickerfeed/internal/config"
	"tickerfeed/internal/domain"
)

// PortfolioLookup answers which users hold any of a set of base symbols.
type PortfolioLookup interface {
	UsersHolding(ctx context.Context, symbols []string) ([]string, error)
}

// Destination is where one enriched tweet goes: a primary channel, an
// optional per-author mirror, and the mention prefix for portfolio holders.
type Destination struct {
	ChannelID       string
	MirrorChannelID string
	Mentions        string
}

// Router picks destination channels. The channel decision is a pure function
// of (author, category, media tags); only the mention lookup touches storage.
type Router struct {
	tracer         trace.Tracer
	channels       config.ChannelMap
	newsAccounts   map[string]bool
	authorChannels map[string]string
	portfolios     PortfolioLookup
}

func New(tracer trace.Tracer, cfg *config.Config, portfolios PortfolioLookup) *Router {
	return &Router{
		tracer:         tracer,
		channels:       cfg.Channels,
		newsAccounts:   cfg.NewsAccounts,
		authorChannels: cfg.AuthorChannels,
		portfolios:     portfolios,
	}
}

// Route decides where an enriched tweet is posted. hasChart reports whether
// any of the tweet's media classified as a chart.
func (r *Router) Route(ctx context.Context, tweet *domain.Tweet, category domain.Category, baseSymbols []string, hasChart bool) Destination {
	ctx, span := r.tracer.Start(ctx, "router.route-tweet")
	defer span.End()

	dest := Destination{
		ChannelID:       r.pickChannel(tweet.AuthorHandle, category, len(tweet.MediaURLs) > 0, hasChart),
		MirrorChannelID: r.authorChannels[strings.ToLower(tweet.AuthorHandle)],
	}
	dest.Mentions = r.mentions(ctx, baseSymbols)

	span.SetAttributes(
		attribute.String("channel", dest.ChannelID),
		attribute.String("category", string(category)),
	)
	return dest
}

func (r *Router) pickChannel(authorHandle string, category domain.Category, hasMedia, hasChart bool) string {
	if r.newsAccounts[strings.ToLower(authorHandle)] {
		if category == domain.CategoryCrypto && r.channels.CryptoNews != "" {
			return r.channels.CryptoNews
		}
		return r.channels.News
	}

	switch category {
	case domain.CategoryCrypto:
		if hasChart {
			return r.channels.CryptoCharts
		}
		return r.channels.CryptoText
	case domain.CategoryStocks:
		if hasChart {
			return r.channels.StocksCharts
		}
		return r.channels.StocksText
	case domain.CategoryForex:
		if hasChart {
			return r.channels.ForexCharts
		}
		return r.channels.ForexText
	}

	if hasMedia {
		if hasChart {
			return r.channels.UnknownCharts
		}
		return r.channels.Images
	}
	return r.channels.Other
}

// mentions builds the content prefix tagging every distinct user whose
// portfolio holds one of the base symbols.
func (r *Router) mentions(ctx context.Context, baseSymbols []string) string {
	if r.portfolios == nil || len(baseSymbols) == 0 {
		return ""
	}
	users, err := r.portfolios.UsersHolding(ctx, baseSymbols)
	if err != nil {
		log.Printf("router: portfolio lookup: %v", err)
		return ""
	}
	if len(users) == 0 {
		return ""
	}
	tags := make([]string, 0, len(users))
	for _, id := range users {
		tags = append(tags, "<@"+id+">")
	}
	return strings.Join(tags, " ")
}
