package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Coin is one row of the aggregator's coin list.
type Coin struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// VolumeProber resolves a coin id to its 24h USD volume. A probe may
// individually rate-limit, in which case the candidate is skipped.
type VolumeProber interface {
	CoinVolume(ctx context.Context, id string) (float64, error)
}

// Catalog is the process-wide symbol table, populated once at startup and
// never mutated after, so concurrent reads need no locking.
type Catalog struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer

	bySymbol map[string][]Coin
	byID     map[string]Coin
	byName   map[string]Coin
}

func New(tracer trace.Tracer) *Catalog {
	return &Catalog{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		tracer:  tracer,
	}
}

// Load fetches the full coin list and builds the lookup tables.
func (c *Catalog) Load(ctx context.Context) error {
	_, span := c.tracer.Start(ctx, "catalog.load")
	defer span.End()

	url := c.baseURL + "/coins/list"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch coin list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("coin list error %d: %s", resp.StatusCode, string(body))
	}

	var coins []Coin
	if err := json.NewDecoder(resp.Body).Decode(&coins); err != nil {
		return fmt.Errorf("decode coin list: %w", err)
	}

	c.SetCoins(coins)
	return nil
}

// SetCoins rebuilds the lookup tables from a coin list. Load calls it once at
// startup; tests seed it directly.
func (c *Catalog) SetCoins(coins []Coin) {
	c.bySymbol = make(map[string][]Coin, len(coins))
	c.byID = make(map[string]Coin, len(coins))
	c.byName = make(map[string]Coin, len(coins))
	for _, coin := range coins {
		sym := strings.ToUpper(coin.Symbol)
		c.bySymbol[sym] = append(c.bySymbol[sym], coin)
		c.byID[strings.ToLower(coin.ID)] = coin
		c.byName[strings.ToLower(coin.Name)] = coin
	}
}

// BySymbol returns all coins sharing a ticker, in list order.
func (c *Catalog) BySymbol(symbol string) []Coin {
	return c.bySymbol[strings.ToUpper(symbol)]
}

func (c *Catalog) ByID(id string) (Coin, bool) {
	coin, ok := c.byID[strings.ToLower(id)]
	return coin, ok
}

func (c *Catalog) ByName(name string) (Coin, bool) {
	coin, ok := c.byName[strings.ToLower(name)]
	return coin, ok
}

// ResolveSymbol picks the coin for a ticker. A unique match wins outright;
// multiple matches are disambiguated by the highest probed 24h volume.
func (c *Catalog) ResolveSymbol(ctx context.Context, symbol string, prober VolumeProber) (Coin, bool) {
	candidates := c.BySymbol(symbol)
	switch len(candidates) {
	case 0:
		return Coin{}, false
	case 1:
		return candidates[0], true
	}

	_, span := c.tracer.Start(ctx, "catalog.resolve-symbol")
	defer span.End()

	best := Coin{}
	bestVolume := -1.0
	for _, candidate := range candidates {
		volume, err := prober.CoinVolume(ctx, candidate.ID)
		if err != nil {
			continue
		}
		if volume > bestVolume {
			bestVolume = volume
			best = candidate
		}
	}
	if bestVolume < 0 {
		return Coin{}, false
	}
	return best, true
}
