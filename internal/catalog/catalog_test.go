package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type fakeProber struct {
	volumes map[string]float64
	errs    map[string]error
	calls   int
}

func (p *fakeProber) CoinVolume(ctx context.Context, id string) (float64, error) {
	p.calls++
	if err, ok := p.errs[id]; ok {
		return 0, err
	}
	return p.volumes[id], nil
}

func TestCatalogLoadAndLookups(t *testing.T) {
	t.Parallel()

	c := New(testTracer)
	c.baseURL = "http://example"
	c.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/coins/list" {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			body := `[
				{"id":"bitcoin","symbol":"btc","name":"Bitcoin"},
				{"id":"batcat","symbol":"btc","name":"BatCat"},
				{"id":"ethereum","symbol":"eth","name":"Ethereum"}
			]`
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewReader([]byte(body))),
				Header:     make(http.Header),
			}, nil
		}),
	}

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := c.BySymbol("BTC"); len(got) != 2 {
		t.Fatalf("expected 2 BTC candidates, got %d", len(got))
	}
	if coin, ok := c.ByID("ETHEREUM"); !ok || coin.Symbol != "eth" {
		t.Fatalf("ByID failed: %+v %v", coin, ok)
	}
	if coin, ok := c.ByName("bitcoin"); !ok || coin.ID != "bitcoin" {
		t.Fatalf("ByName failed: %+v %v", coin, ok)
	}
	if _, ok := c.ByName("nope"); ok {
		t.Fatal("expected miss for unknown name")
	}
}

func TestResolveSymbolUniqueSkipsProbe(t *testing.T) {
	t.Parallel()

	c := New(testTracer)
	c.SetCoins([]Coin{{ID: "ethereum", Symbol: "eth", Name: "Ethereum"}})

	prober := &fakeProber{}
	coin, ok := c.ResolveSymbol(context.Background(), "ETH", prober)
	if !ok || coin.ID != "ethereum" {
		t.Fatalf("unexpected resolution: %+v %v", coin, ok)
	}
	if prober.calls != 0 {
		t.Fatalf("unique match should not probe, got %d calls", prober.calls)
	}
}

func TestResolveSymbolPicksHighestVolume(t *testing.T) {
	t.Parallel()

	c := New(testTracer)
	c.SetCoins([]Coin{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
		{ID: "batcat", Symbol: "btc", Name: "BatCat"},
	})

	prober := &fakeProber{volumes: map[string]float64{"bitcoin": 1e10, "batcat": 12}}
	coin, ok := c.ResolveSymbol(context.Background(), "btc", prober)
	if !ok || coin.ID != "bitcoin" {
		t.Fatalf("expected bitcoin, got %+v", coin)
	}
}

func TestResolveSymbolSkipsRateLimitedProbe(t *testing.T) {
	t.Parallel()

	c := New(testTracer)
	c.SetCoins([]Coin{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
		{ID: "batcat", Symbol: "btc", Name: "BatCat"},
	})

	prober := &fakeProber{
		volumes: map[string]float64{"batcat": 12},
		errs:    map[string]error{"bitcoin": errors.New("rate limited")},
	}
	coin, ok := c.ResolveSymbol(context.Background(), "BTC", prober)
	if !ok || coin.ID != "batcat" {
		t.Fatalf("expected batcat after skip, got %+v %v", coin, ok)
	}

	allFail := &fakeProber{errs: map[string]error{
		"bitcoin": errors.New("rate limited"),
		"batcat":  errors.New("rate limited"),
	}}
	if _, ok := c.ResolveSymbol(context.Background(), "BTC", allFail); ok {
		t.Fatal("expected failure when every probe is skipped")
	}
}
