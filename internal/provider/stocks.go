package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tickerfeed/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const stocksBaseURL = "https://query1.finance.yahoo.com"

// MarketHours decides whether the stock market is currently open: weekdays,
// inside the configured window, and not a listed holiday.
type MarketHours struct {
	Location  *time.Location
	OpenMins  int
	CloseMins int
	Holidays  map[string]bool // "2006-01-02" keys
}

// NewMarketHours parses "HH:MM" open/close times in the given timezone.
func NewMarketHours(timezone, open, close string) (*MarketHours, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", timezone, err)
	}
	openMins, err := parseHHMM(open)
	if err != nil {
		return nil, err
	}
	closeMins, err := parseHHMM(close)
	if err != nil {
		return nil, err
	}
	return &MarketHours{
		Location:  loc,
		OpenMins:  openMins,
		CloseMins: closeMins,
		Holidays:  map[string]bool{},
	}, nil
}

func parseHHMM(v string) (int, error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad HH:MM value %q", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("bad HH:MM value %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("bad HH:MM value %q", v)
	}
	return h*60 + m, nil
}

// IsOpen reports whether the market is open at t.
func (m *MarketHours) IsOpen(t time.Time) bool {
	local := t.In(m.Location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if m.Holidays[local.Format("2006-01-02")] {
		return false
	}
	mins := local.Hour()*60 + local.Minute()
	return mins >= m.OpenMins && mins < m.CloseMins
}

// StockProvider fetches stock quotes, including pre/after-hours prices when
// the market is closed.
type StockProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	hours   *MarketHours
	now     func() time.Time
}

func NewStockProvider(tracer trace.Tracer, hours *MarketHours) *StockProvider {
	return &StockProvider{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: stocksBaseURL,
		tracer:  tracer,
		hours:   hours,
		now:     time.Now,
	}
}

type stockQuote struct {
	Symbol                     string  `json:"symbol"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketChangePct     float64 `json:"regularMarketChangePercent"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	RegularMarketVolume        float64 `json:"regularMarketVolume"`
	PreMarketPrice             float64 `json:"preMarketPrice"`
	PreMarketChangePct         float64 `json:"preMarketChangePercent"`
	PostMarketPrice            float64 `json:"postMarketPrice"`
	PostMarketChangePct        float64 `json:"postMarketChangePercent"`
	Bid                        float64 `json:"bid"`
	Exchange                   string  `json:"exchange"`
}

// Quote fetches the stock quote for a symbol. When the market is closed the
// after-hours (or pre-market) price is attached for the two-line variant.
func (p *StockProvider) Quote(ctx context.Context, symbol string) (domain.AssetQuote, bool) {
	_, span := p.tracer.Start(ctx, "stocks.quote")
	defer span.End()

	url := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", p.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.AssetQuote{}, false
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.AssetQuote{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return domain.AssetQuote{}, false
	}

	var raw struct {
		QuoteResponse struct {
			Result []stockQuote `json:"result"`
		} `json:"quoteResponse"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return domain.AssetQuote{}, false
	}
	if len(raw.QuoteResponse.Result) == 0 {
		return domain.AssetQuote{}, false
	}
	q := raw.QuoteResponse.Result[0]
	if q.RegularMarketPrice == 0 {
		return domain.AssetQuote{}, false
	}

	quote := domain.AssetQuote{
		Volume:     q.RegularMarketVolume * q.RegularMarketPrice,
		Website:    fmt.Sprintf("https://finance.yahoo.com/quote/%s", strings.ToUpper(q.Symbol)),
		Exchanges:  []string{strings.ToLower(q.Exchange)},
		Price:      q.RegularMarketPrice,
		ChangePct:  q.RegularMarketChangePct,
		BaseSymbol: strings.ToUpper(q.Symbol),
		Category:   domain.CategoryStocks,
	}

	if !p.hours.IsOpen(p.now()) {
		switch {
		case q.PostMarketPrice > 0:
			quote.AfterHours = true
			quote.AfterHoursPrice = q.PostMarketPrice
			quote.AfterHoursChangePct = q.PostMarketChangePct
		case q.PreMarketPrice > 0:
			quote.AfterHours = true
			quote.AfterHoursPrice = q.PreMarketPrice
			quote.AfterHoursChangePct = q.PreMarketChangePct
		}
	}

	return quote, true
}
