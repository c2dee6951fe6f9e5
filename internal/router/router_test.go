package router

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"tickerfeed/internal/config"
	"tickerfeed/internal/domain"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type stubPortfolios struct {
	users []string
	err   error
}

func (s *stubPortfolios) UsersHolding(ctx context.Context, symbols []string) ([]string, error) {
	return s.users, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		Channels: config.ChannelMap{
			CryptoText:    "c-text",
			CryptoCharts:  "c-charts",
			StocksText:    "s-text",
			StocksCharts:  "s-charts",
			ForexText:     "f-text",
			ForexCharts:   "f-charts",
			Images:        "images",
			UnknownCharts: "u-charts",
			Other:         "other",
			News:          "news",
			CryptoNews:    "c-news",
		},
		NewsAccounts:   map[string]bool{"deitaone": true},
		AuthorChannels: map[string]string{"ana": "ana-channel"},
	}
}

func TestRouteByCategory(t *testing.T) {
	t.Parallel()

	r := New(testTracer, testConfig(), nil)

	tests := []struct {
		category domain.Category
		media    []string
		hasChart bool
		want     string
	}{
		{domain.CategoryCrypto, nil, false, "c-text"},
		{domain.CategoryCrypto, []string{"m"}, true, "c-charts"},
		{domain.CategoryStocks, nil, false, "s-text"},
		{domain.CategoryStocks, []string{"m"}, true, "s-charts"},
		{domain.CategoryForex, nil, false, "f-text"},
		{domain.CategoryForex, []string{"m"}, true, "f-charts"},
		{domain.CategoryNone, []string{"m"}, false, "images"},
		{domain.CategoryNone, []string{"m"}, true, "u-charts"},
		{domain.CategoryNone, nil, false, "other"},
	}
	for _, tt := range tests {
		tweet := &domain.Tweet{AuthorHandle: "bob", MediaURLs: tt.media}
		dest := r.Route(context.Background(), tweet, tt.category, nil, tt.hasChart)
		if dest.ChannelID != tt.want {
			t.Fatalf("category=%q chart=%v: expected %s, got %s", tt.category, tt.hasChart, tt.want, dest.ChannelID)
		}
	}
}

func TestRouteNewsAccount(t *testing.T) {
	t.Parallel()

	r := New(testTracer, testConfig(), nil)

	tweet := &domain.Tweet{AuthorHandle: "DeItaone"}
	if dest := r.Route(context.Background(), tweet, domain.CategoryStocks, nil, false); dest.ChannelID != "news" {
		t.Fatalf("expected news channel, got %s", dest.ChannelID)
	}
	if dest := r.Route(context.Background(), tweet, domain.CategoryCrypto, nil, false); dest.ChannelID != "c-news" {
		t.Fatalf("expected crypto news channel, got %s", dest.ChannelID)
	}
}

func TestRouteAuthorMirror(t *testing.T) {
	t.Parallel()

	r := New(testTracer, testConfig(), nil)

	tweet := &domain.Tweet{AuthorHandle: "Ana"}
	dest := r.Route(context.Background(), tweet, domain.CategoryCrypto, nil, false)
	if dest.MirrorChannelID != "ana-channel" {
		t.Fatalf("expected author mirror, got %q", dest.MirrorChannelID)
	}
}

func TestRouteDeterministic(t *testing.T) {
	t.Parallel()

	r := New(testTracer, testConfig(), nil)
	tweet := &domain.Tweet{AuthorHandle: "bob", MediaURLs: []string{"m"}}

	first := r.Route(context.Background(), tweet, domain.CategoryStocks, nil, true)
	for i := 0; i < 10; i++ {
		if got := r.Route(context.Background(), tweet, domain.CategoryStocks, nil, true); got.ChannelID != first.ChannelID {
			t.Fatalf("routing not deterministic: %s vs %s", got.ChannelID, first.ChannelID)
		}
	}
}

func TestRouteMentions(t *testing.T) {
	t.Parallel()

	r := New(testTracer, testConfig(), &stubPortfolios{users: []string{"1", "2"}})
	tweet := &domain.Tweet{AuthorHandle: "bob"}

	dest := r.Route(context.Background(), tweet, domain.CategoryCrypto, []string{"BTC"}, false)
	if dest.Mentions != "<@1> <@2>" {
		t.Fatalf("unexpected mentions: %q", dest.Mentions)
	}

	// No symbols means no lookup.
	if dest := r.Route(context.Background(), tweet, domain.CategoryNone, nil, false); dest.Mentions != "" {
		t.Fatalf("expected no mentions, got %q", dest.Mentions)
	}
}

func TestRouteMentionLookupFailureNonFatal(t *testing.T) {
	t.Parallel()

	r := New(testTracer, testConfig(), &stubPortfolios{err: errors.New("db down")})
	tweet := &domain.Tweet{AuthorHandle: "bob"}

	dest := r.Route(context.Background(), tweet, domain.CategoryCrypto, []string{"BTC"}, false)
	if dest.Mentions != "" {
		t.Fatalf("expected empty mentions on lookup failure, got %q", dest.Mentions)
	}
	if dest.ChannelID != "c-text" {
		t.Fatalf("routing should survive lookup failure, got %s", dest.ChannelID)
	}
}
