package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tickerfeed/internal/catalog"
	"tickerfeed/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// ErrRateLimited is returned when the aggregator signals a structural rate
// limit (status.error_code in the body). The current resolution returns
// unknown without retry.
var ErrRateLimited = errors.New("coingecko rate limited")

// maxExchangesPerCoin caps how many exchange names a quote carries.
const maxExchangesPerCoin = 5

// CoinGeckoProvider resolves crypto tickers through the aggregator's
// coin-by-id, search and per-coin endpoints.
type CoinGeckoProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
	catalog *catalog.Catalog
}

// NewCoinGeckoProvider creates a provider with built-in rate limiting
// (8 requests per minute, one token every 7.5 seconds).
func NewCoinGeckoProvider(tracer trace.Tracer, cat *catalog.Catalog) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: coingeckoBaseURL,
		tracer:  tracer,
		limiter: NewRateLimiter(8, 7500*time.Millisecond),
		catalog: cat,
	}
}

type coinResponse struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Links  struct {
		Homepage []string `json:"homepage"`
	} `json:"links"`
	MarketData struct {
		CurrentPrice struct {
			USD float64 `json:"usd"`
		} `json:"current_price"`
		TotalVolume struct {
			USD float64 `json:"usd"`
		} `json:"total_volume"`
		PriceChangePct24h float64 `json:"price_change_percentage_24h"`
	} `json:"market_data"`
	Tickers []struct {
		Market struct {
			Name string `json:"name"`
		} `json:"market"`
	} `json:"tickers"`
}

type statusEnvelope struct {
	Status struct {
		ErrorCode int `json:"error_code"`
	} `json:"status"`
}

// Quote resolves a symbol to a crypto quote. A missing id or a rate limit
// yields (zero, false); the pipeline falls through to the next provider.
func (p *CoinGeckoProvider) Quote(ctx context.Context, symbol string) (domain.AssetQuote, bool) {
	_, span := p.tracer.Start(ctx, "coingecko.quote")
	defer span.End()

	coin, ok := p.catalog.ResolveSymbol(ctx, symbol, p)
	if !ok {
		coin, ok = p.searchCoin(ctx, symbol)
		if !ok {
			return domain.AssetQuote{}, false
		}
	}

	resp, err := p.fetchCoin(ctx, coin.ID)
	if err != nil {
		return domain.AssetQuote{}, false
	}

	website := ""
	if len(resp.Links.Homepage) > 0 {
		website = resp.Links.Homepage[0]
	}

	seen := make(map[string]struct{})
	var exchanges []string
	for _, t := range resp.Tickers {
		name := strings.ToLower(strings.TrimSpace(t.Market.Name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		exchanges = append(exchanges, name)
		if len(exchanges) == maxExchangesPerCoin {
			break
		}
	}

	return domain.AssetQuote{
		Volume:     resp.MarketData.TotalVolume.USD,
		Website:    website,
		Exchanges:  exchanges,
		Price:      resp.MarketData.CurrentPrice.USD,
		ChangePct:  resp.MarketData.PriceChangePct24h,
		BaseSymbol: strings.ToUpper(resp.Symbol),
		Category:   domain.CategoryCrypto,
	}, true
}

// CoinVolume probes a coin id for its 24h USD volume; used by the catalog to
// disambiguate symbol collisions.
func (p *CoinGeckoProvider) CoinVolume(ctx context.Context, id string) (float64, error) {
	resp, err := p.fetchCoin(ctx, id)
	if err != nil {
		return 0, err
	}
	return resp.MarketData.TotalVolume.USD, nil
}

// searchCoin falls back to the search endpoint when the catalog has no row
// for the symbol.
func (p *CoinGeckoProvider) searchCoin(ctx context.Context, symbol string) (catalog.Coin, bool) {
	_, span := p.tracer.Start(ctx, "coingecko.search")
	defer span.End()

	body, err := p.doRequest(ctx, fmt.Sprintf("%s/search?query=%s", p.baseURL, url.QueryEscape(symbol)))
	if err != nil {
		return catalog.Coin{}, false
	}

	var raw struct {
		Coins []struct {
			ID     string `json:"id"`
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
		} `json:"coins"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return catalog.Coin{}, false
	}

	for _, c := range raw.Coins {
		if strings.EqualFold(c.Symbol, symbol) {
			return catalog.Coin{ID: c.ID, Symbol: c.Symbol, Name: c.Name}, true
		}
	}
	return catalog.Coin{}, false
}

func (p *CoinGeckoProvider) fetchCoin(ctx context.Context, id string) (*coinResponse, error) {
	url := fmt.Sprintf("%s/coins/%s?localization=false&community_data=false&developer_data=false", p.baseURL, id)
	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, err
	}

	var envelope statusEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Status.ErrorCode != 0 {
		return nil, ErrRateLimited
	}

	var resp coinResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse coin %s: %w", id, err)
	}
	return &resp, nil
}

func (p *CoinGeckoProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coingecko API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
