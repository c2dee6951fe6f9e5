package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tickerfeed/internal/domain"
)

// AssetQuoter is the uniform surface of an asset data provider.
type AssetQuoter interface {
	Quote(ctx context.Context, symbol string) (domain.AssetQuote, bool)
}

// GatewayQuoter adds the technical-analysis lookup only the quote gateway has.
type GatewayQuoter interface {
	AssetQuoter
	TA(ctx context.Context, symbol, interval string) string
}

// TickerStore is the persistent classified-ticker cache.
type TickerStore interface {
	Lookup(ctx context.Context, ticker string) (*domain.ClassifiedTicker, error)
	Upsert(ctx context.Context, ct *domain.ClassifiedTicker) error
}

// QuoteCache is the short-lived live-quote cache in front of the providers.
type QuoteCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

const quoteCacheTTL = 60 * time.Second

// Resolver turns a symbol into a fully-populated AssetQuote: identity from
// the classified-ticker cache when fresh, live price and change always probed.
type Resolver struct {
	tracer  trace.Tracer
	crypto  AssetQuoter
	stocks  AssetQuoter
	gateway GatewayQuoter
	store   TickerStore
	quotes  QuoteCache
	now     func() time.Time
}

func NewResolver(tracer trace.Tracer, crypto, stocks AssetQuoter, gateway GatewayQuoter, store TickerStore, quotes QuoteCache) *Resolver {
	return &Resolver{
		tracer:  tracer,
		crypto:  crypto,
		stocks:  stocks,
		gateway: gateway,
		store:   store,
		quotes:  quotes,
		now:     time.Now,
	}
}

// Resolve classifies a symbol. The majority hint decides which provider is
// asked first; an unknown symbol (every provider under the volume floor)
// returns ok=false.
func (r *Resolver) Resolve(ctx context.Context, symbol string, hint domain.Category) (domain.AssetQuote, bool) {
	ctx, span := r.tracer.Start(ctx, "enrich.resolve-symbol")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("hint", string(hint)),
	)

	symbol = strings.ToUpper(symbol)

	if cached := r.lookupFresh(ctx, symbol); cached != nil {
		if quote, ok := r.probeCached(ctx, symbol, cached); ok {
			return quote, true
		}
		// Identity is known but the live probe failed; degrade to unresolved
		// rather than printing a stale price.
		return domain.AssetQuote{}, false
	}

	quote, ok := r.resolveFresh(ctx, symbol, hint)
	if !ok {
		return domain.AssetQuote{}, false
	}

	ct := &domain.ClassifiedTicker{
		Ticker:     symbol,
		Website:    quote.Website,
		Exchanges:  quote.Exchanges,
		BaseSymbol: quote.BaseSymbol,
		Category:   quote.Category,
		Timestamp:  r.now(),
	}
	if r.store != nil {
		if err := r.store.Upsert(ctx, ct); err != nil {
			log.Printf("resolver: cache upsert %s: %v", symbol, err)
		}
	}
	return quote, true
}

func (r *Resolver) lookupFresh(ctx context.Context, symbol string) *domain.ClassifiedTicker {
	if r.store == nil {
		return nil
	}
	ct, err := r.store.Lookup(ctx, symbol)
	if err != nil {
		log.Printf("resolver: cache lookup %s: %v", symbol, err)
		return nil
	}
	if ct == nil || !ct.Fresh(r.now()) {
		return nil
	}
	return ct
}

// probeCached re-fetches price and change for a cached identity, then carries
// the cached website/exchanges/base over the fresh numbers.
func (r *Resolver) probeCached(ctx context.Context, symbol string, ct *domain.ClassifiedTicker) (domain.AssetQuote, bool) {
	var provider AssetQuoter
	switch ct.Category {
	case domain.CategoryCrypto:
		provider = r.crypto
	case domain.CategoryStocks:
		provider = r.stocks
	default:
		provider = r.gateway
	}

	quote, ok := r.probe(ctx, provider, ct.Category, domain.StripStableSuffix(symbol))
	if !ok {
		return domain.AssetQuote{}, false
	}

	quote.Website = ct.Website
	quote.Exchanges = ct.Exchanges
	quote.BaseSymbol = ct.BaseSymbol
	quote.Category = ct.Category
	r.attachTA(ctx, &quote)
	return quote, true
}

func (r *Resolver) resolveFresh(ctx context.Context, symbol string, hint domain.Category) (domain.AssetQuote, bool) {
	lookup := domain.StripStableSuffix(symbol)

	first, second := r.crypto, r.stocks
	firstCat, secondCat := domain.CategoryCrypto, domain.CategoryStocks
	if hint == domain.CategoryStocks {
		first, second = r.stocks, r.crypto
		firstCat, secondCat = domain.CategoryStocks, domain.CategoryCrypto
	}

	best, bestOK := r.probe(ctx, first, firstCat, lookup)

	// A large-volume first hit is conclusive; a BTC pair never means a stock.
	fallThrough := !bestOK || best.Volume < domain.CryptoFallthroughVolume
	if bestOK && strings.HasSuffix(symbol, "BTC") {
		fallThrough = false
	}
	if fallThrough {
		if alt, ok := r.probe(ctx, second, secondCat, lookup); ok {
			if !bestOK || alt.Volume > best.Volume {
				best, bestOK = alt, true
			}
		}
	}

	if bestOK && best.Volume >= domain.VolumeFloor {
		if best.BaseSymbol == "" {
			best.BaseSymbol = lookup
		}
		r.attachTA(ctx, &best)
		return best, true
	}

	// Neither aggregator knows it well enough; the quote gateway is the last
	// resort and covers forex pairs too.
	if quote, ok := r.probe(ctx, r.gateway, "", lookup); ok && quote.Price != 0 {
		if quote.BaseSymbol == "" {
			quote.BaseSymbol = lookup
		}
		r.attachTA(ctx, &quote)
		return quote, true
	}

	return domain.AssetQuote{}, false
}

func (r *Resolver) attachTA(ctx context.Context, quote *domain.AssetQuote) {
	if r.gateway == nil || quote.TA4H != "" || quote.TA1D != "" {
		return
	}
	quote.TA4H = r.gateway.TA(ctx, quote.BaseSymbol, "4h")
	quote.TA1D = r.gateway.TA(ctx, quote.BaseSymbol, "1d")
}

// probe calls one provider through the 60-second live-quote cache.
func (r *Resolver) probe(ctx context.Context, provider AssetQuoter, category domain.Category, symbol string) (domain.AssetQuote, bool) {
	if provider == nil {
		return domain.AssetQuote{}, false
	}

	key := fmt.Sprintf("quote:%s:%s", category, symbol)
	if r.quotes != nil {
		if raw, ok := r.quotes.Get(ctx, key); ok {
			var quote domain.AssetQuote
			if err := json.Unmarshal([]byte(raw), &quote); err == nil {
				return quote, true
			}
		}
	}

	quote, ok := provider.Quote(ctx, symbol)
	if !ok {
		return domain.AssetQuote{}, false
	}

	if r.quotes != nil {
		if raw, err := json.Marshal(quote); err == nil {
			r.quotes.Set(ctx, key, string(raw), quoteCacheTTL)
		}
	}
	return quote, true
}
