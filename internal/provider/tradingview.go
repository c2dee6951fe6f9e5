package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"tickerfeed/internal/domain"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
)

const (
	gatewayURL        = "wss://data.tradingview.com/socket.io/websocket"
	scannerBaseURL    = "https://scanner.tradingview.com"
	handshakeDeadline = 5 * time.Second
	quoteDeadline     = 10 * time.Second
)

// GatewayState is the explicit connection state of the quote gateway.
type GatewayState int

const (
	StateClosed GatewayState = iota
	StateConnecting
	StateHandshaking
	StateSubscribed
)

var quoteFields = []string{
	"lp", "chp", "volume", "description", "exchange", "currency_code", "short_name",
}

// forexExchanges are gateway exchanges whose symbols are currency pairs.
var forexExchanges = map[string]bool{
	"FX":       true,
	"FX_IDC":   true,
	"OANDA":    true,
	"FOREXCOM": true,
	"SAXO":     true,
}

var cryptoExchanges = map[string]bool{
	"BINANCE":  true,
	"COINBASE": true,
	"BITSTAMP": true,
	"KRAKEN":   true,
	"BYBIT":    true,
	"OKX":      true,
}

// QuoteGateway looks up tickers over the gateway's length-prefixed websocket
// protocol and serves technical-analysis labels from the scanner endpoint.
// One request is in flight at a time; replies are correlated by symbol name.
type QuoteGateway struct {
	wsURL      string
	scannerURL string
	dialer     *websocket.Dialer
	httpClient *http.Client
	tracer     trace.Tracer

	mu      sync.Mutex
	conn    *websocket.Conn
	state   GatewayState
	session string
}

func NewQuoteGateway(tracer trace.Tracer) *QuoteGateway {
	return &QuoteGateway{
		wsURL:      gatewayURL,
		scannerURL: scannerBaseURL,
		dialer:     websocket.DefaultDialer,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tracer:     tracer,
		state:      StateClosed,
	}
}

// State returns the current connection state.
func (g *QuoteGateway) State() GatewayState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Close tears the session down; the next quote reconnects.
func (g *QuoteGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closeLocked()
}

func (g *QuoteGateway) closeLocked() error {
	g.state = StateClosed
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	return err
}

// Quote looks a symbol up through the gateway. Any failure returns
// (zero, false) and resets the session.
func (g *QuoteGateway) Quote(ctx context.Context, symbol string) (domain.AssetQuote, bool) {
	_, span := g.tracer.Start(ctx, "quote-gateway.quote")
	defer span.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateSubscribed {
		if err := g.connectLocked(ctx); err != nil {
			g.closeLocked()
			return domain.AssetQuote{}, false
		}
	}

	quote, err := g.requestQuoteLocked(symbol)
	if err != nil {
		g.closeLocked()
		return domain.AssetQuote{}, false
	}
	return quote, true
}

func (g *QuoteGateway) connectLocked(ctx context.Context) error {
	g.state = StateConnecting

	conn, resp, err := g.dialer.DialContext(ctx, g.wsURL, http.Header{
		"Origin": []string{"https://www.tradingview.com"},
	})
	if err != nil {
		return fmt.Errorf("gateway dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	g.conn = conn
	g.state = StateHandshaking

	// Server opens with a hello frame; drain it before the handshake.
	conn.SetReadDeadline(time.Now().Add(handshakeDeadline))
	if _, _, err := conn.ReadMessage(); err != nil {
		return fmt.Errorf("gateway hello: %w", err)
	}

	g.session = "qs_" + randomToken(12)

	conn.SetWriteDeadline(time.Now().Add(handshakeDeadline))
	for _, msg := range []gatewayMessage{
		{Method: "set_auth_token", Params: []any{"unauthorized_user_token"}},
		{Method: "quote_create_session", Params: []any{g.session}},
		{Method: "quote_set_fields", Params: append([]any{g.session}, toAny(quoteFields)...)},
	} {
		if err := g.writeMessage(msg); err != nil {
			return fmt.Errorf("gateway handshake: %w", err)
		}
	}

	g.state = StateSubscribed
	return nil
}

func (g *QuoteGateway) requestQuoteLocked(symbol string) (domain.AssetQuote, error) {
	symbol = strings.ToUpper(symbol)

	g.conn.SetWriteDeadline(time.Now().Add(handshakeDeadline))
	if err := g.writeMessage(gatewayMessage{
		Method: "quote_add_symbols",
		Params: []any{g.session, symbol},
	}); err != nil {
		return domain.AssetQuote{}, err
	}

	deadline := time.Now().Add(quoteDeadline)
	for time.Now().Before(deadline) {
		g.conn.SetReadDeadline(deadline)
		_, data, err := g.conn.ReadMessage()
		if err != nil {
			return domain.AssetQuote{}, err
		}
		for _, frame := range splitFrames(data) {
			if strings.HasPrefix(frame, "~h~") {
				// Keepalive ping; echo it back framed.
				g.conn.SetWriteDeadline(time.Now().Add(handshakeDeadline))
				if err := g.conn.WriteMessage(websocket.TextMessage, []byte(encodeFrame(frame))); err != nil {
					return domain.AssetQuote{}, err
				}
				continue
			}
			quote, matched, complete := parseQuoteFrame(frame, symbol)
			if matched && complete {
				return quote, nil
			}
		}
	}
	return domain.AssetQuote{}, fmt.Errorf("no quote for %s before deadline", symbol)
}

type gatewayMessage struct {
	Method string `json:"m"`
	Params []any  `json:"p"`
}

func (g *QuoteGateway) writeMessage(msg gatewayMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return g.conn.WriteMessage(websocket.TextMessage, []byte(encodeFrame(string(payload))))
}

// encodeFrame wraps a payload in the gateway's ~m~<len>~m~ framing.
func encodeFrame(payload string) string {
	return fmt.Sprintf("~m~%d~m~%s", len(payload), payload)
}

// splitFrames unwraps one websocket message into its framed payloads.
func splitFrames(data []byte) []string {
	var frames []string
	s := string(data)
	for len(s) > 0 {
		if !strings.HasPrefix(s, "~m~") {
			break
		}
		rest := s[3:]
		sep := strings.Index(rest, "~m~")
		if sep < 0 {
			break
		}
		var length int
		if _, err := fmt.Sscanf(rest[:sep], "%d", &length); err != nil {
			break
		}
		body := rest[sep+3:]
		if length > len(body) {
			break
		}
		frames = append(frames, body[:length])
		s = body[length:]
	}
	return frames
}

type qsdPayload struct {
	Method string            `json:"m"`
	Params []json.RawMessage `json:"p"`
}

type qsdValues struct {
	Name   string `json:"n"`
	Status string `json:"s"`
	Values struct {
		LastPrice   *float64 `json:"lp"`
		ChangePct   *float64 `json:"chp"`
		Volume      *float64 `json:"volume"`
		Description string   `json:"description"`
		Exchange    string   `json:"exchange"`
		ShortName   string   `json:"short_name"`
	} `json:"v"`
}

// parseQuoteFrame decodes one frame; matched reports the frame was a qsd for
// the requested symbol, complete that price and change were present.
func parseQuoteFrame(frame, symbol string) (domain.AssetQuote, bool, bool) {
	var payload qsdPayload
	if err := json.Unmarshal([]byte(frame), &payload); err != nil {
		return domain.AssetQuote{}, false, false
	}
	if payload.Method != "qsd" || len(payload.Params) < 2 {
		return domain.AssetQuote{}, false, false
	}

	var values qsdValues
	if err := json.Unmarshal(payload.Params[1], &values); err != nil {
		return domain.AssetQuote{}, false, false
	}

	name := strings.ToUpper(values.Name)
	if name != symbol && !strings.HasSuffix(name, ":"+symbol) {
		return domain.AssetQuote{}, false, false
	}
	if values.Status == "error" {
		return domain.AssetQuote{}, true, false
	}
	if values.Values.LastPrice == nil || values.Values.ChangePct == nil {
		return domain.AssetQuote{}, true, false
	}

	volume := 0.0
	if values.Values.Volume != nil {
		volume = *values.Values.Volume * *values.Values.LastPrice
	}

	base := values.Values.ShortName
	if base == "" {
		base = symbol
	}

	return domain.AssetQuote{
		Volume:     volume,
		Website:    fmt.Sprintf("https://www.tradingview.com/symbols/%s/", strings.ToUpper(base)),
		Exchanges:  []string{strings.ToLower(values.Values.Exchange)},
		Price:      *values.Values.LastPrice,
		ChangePct:  *values.Values.ChangePct,
		BaseSymbol: domain.StripStableSuffix(strings.ToUpper(base)),
		Category:   categoryForExchange(values.Values.Exchange),
	}, true, true
}

func categoryForExchange(exchange string) domain.Category {
	upper := strings.ToUpper(strings.TrimSpace(exchange))
	switch {
	case forexExchanges[upper]:
		return domain.CategoryForex
	case cryptoExchanges[upper]:
		return domain.CategoryCrypto
	default:
		return domain.CategoryStocks
	}
}

// TA fetches the scanner recommendation for a symbol at "4h" or "1d" and
// returns a label, or "" when unavailable.
func (g *QuoteGateway) TA(ctx context.Context, symbol, interval string) string {
	_, span := g.tracer.Start(ctx, "quote-gateway.ta")
	defer span.End()

	field := "Recommend.All"
	if interval == "4h" {
		field = "Recommend.All|240"
	}

	u := fmt.Sprintf("%s/symbol?symbol=%s&fields=%s",
		g.scannerURL, url.QueryEscape(strings.ToUpper(symbol)), url.QueryEscape(field))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ""
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return ""
	}

	var raw map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return ""
	}
	value, ok := raw[field]
	if !ok {
		return ""
	}
	return recommendLabel(value)
}

// recommendLabel maps a scanner recommendation value in [-1, 1] to a label.
func recommendLabel(v float64) string {
	switch {
	case v >= 0.5:
		return "Strong Buy"
	case v >= 0.1:
		return "Buy"
	case v <= -0.5:
		return "Strong Sell"
	case v <= -0.1:
		return "Sell"
	default:
		return "Neutral"
	}
}

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomToken(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = tokenAlphabet[rand.Intn(len(tokenAlphabet))]
	}
	return string(b)
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
