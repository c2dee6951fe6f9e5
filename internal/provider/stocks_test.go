package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"tickerfeed/internal/domain"
)

func newTestHours(t *testing.T) *MarketHours {
	t.Helper()
	hours, err := NewMarketHours("America/New_York", "09:30", "16:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return hours
}

func TestMarketHoursIsOpen(t *testing.T) {
	t.Parallel()

	hours := newTestHours(t)
	loc := hours.Location

	// Wednesday 2025-01-08, 10:00 ET
	if !hours.IsOpen(time.Date(2025, 1, 8, 10, 0, 0, 0, loc)) {
		t.Fatal("expected open on a weekday mid-session")
	}
	// Same day 16:00 ET: close is exclusive
	if hours.IsOpen(time.Date(2025, 1, 8, 16, 0, 0, 0, loc)) {
		t.Fatal("expected closed at the bell")
	}
	// Saturday
	if hours.IsOpen(time.Date(2025, 1, 11, 10, 0, 0, 0, loc)) {
		t.Fatal("expected closed on Saturday")
	}
	// Holiday
	hours.Holidays["2025-01-08"] = true
	if hours.IsOpen(time.Date(2025, 1, 8, 10, 0, 0, 0, loc)) {
		t.Fatal("expected closed on a holiday")
	}
}

func TestNewMarketHoursRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := NewMarketHours("Not/AZone", "09:30", "16:00"); err == nil {
		t.Fatal("expected error for bad timezone")
	}
	if _, err := NewMarketHours("UTC", "930", "16:00"); err == nil {
		t.Fatal("expected error for bad HH:MM")
	}
}

const aaplQuoteBody = `{"quoteResponse":{"result":[{
	"symbol": "AAPL",
	"regularMarketPrice": 190.5,
	"regularMarketChangePercent": 1.2,
	"regularMarketPreviousClose": 188.2,
	"regularMarketVolume": 50000000,
	"postMarketPrice": 191.1,
	"postMarketChangePercent": 0.3,
	"bid": 190.4,
	"exchange": "NMS"
}]}}`

func newStockProvider(t *testing.T, body string, now time.Time) *StockProvider {
	t.Helper()
	p := NewStockProvider(testTracer, newTestHours(t))
	p.baseURL = "http://example"
	p.now = func() time.Time { return now }
	p.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, body), nil
		}),
	}
	return p
}

func TestStockQuoteMarketOpen(t *testing.T) {
	t.Parallel()

	loc, _ := time.LoadLocation("America/New_York")
	p := newStockProvider(t, aaplQuoteBody, time.Date(2025, 1, 8, 11, 0, 0, 0, loc))

	quote, ok := p.Quote(context.Background(), "AAPL")
	if !ok {
		t.Fatal("expected quote")
	}
	if quote.AfterHours {
		t.Fatal("open market should not use after-hours quote")
	}
	if quote.Price != 190.5 || quote.Category != domain.CategoryStocks {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if quote.Volume != 50000000*190.5 {
		t.Fatalf("expected USD-equivalent volume, got %f", quote.Volume)
	}
}

func TestStockQuoteAfterHours(t *testing.T) {
	t.Parallel()

	loc, _ := time.LoadLocation("America/New_York")
	p := newStockProvider(t, aaplQuoteBody, time.Date(2025, 1, 8, 20, 0, 0, 0, loc))

	quote, ok := p.Quote(context.Background(), "AAPL")
	if !ok {
		t.Fatal("expected quote")
	}
	if !quote.AfterHours || quote.AfterHoursPrice != 191.1 {
		t.Fatalf("expected after-hours quote, got %+v", quote)
	}
}

func TestStockQuoteEmptyResult(t *testing.T) {
	t.Parallel()

	loc, _ := time.LoadLocation("America/New_York")
	p := newStockProvider(t, `{"quoteResponse":{"result":[]}}`, time.Date(2025, 1, 8, 11, 0, 0, 0, loc))

	if _, ok := p.Quote(context.Background(), "ZZZZ"); ok {
		t.Fatal("expected miss for empty result")
	}
}
