package domain

import "strings"

// SymbolRewrite maps common full names and aliases to their canonical ticker.
// Applied to cashtags and hashtags before resolution; idempotent by
// construction (no value appears as a key).
var SymbolRewrite = map[string]string{
	"BITCOIN":  "BTC",
	"XBT":      "BTC",
	"ETHEREUM": "ETH",
	"SOLANA":   "SOL",
	"RIPPLE":   "XRP",
	"CARDANO":  "ADA",
	"DOGECOIN": "DOGE",
	"POLKADOT": "DOT",
	"POLYGON":  "MATIC",
	"NVIDIA":   "NVDA",
	"TESLA":    "TSLA",
	"APPLE":    "AAPL",
	"GOOGLE":   "GOOGL",
	"AMAZON":   "AMZN",
}

// stableSuffixes are pair suffixes stripped from a ticker before lookup,
// longest first so USDTPERP wins over USDT and USDT over USD.
var stableSuffixes = []string{
	"USDTPERP", "USDT", "USDC", "BUSD", "USDP", "USDD", "USDN",
	"TUSD", "FRAX", "DAI", "FEI", "USD", "EUR",
}

// ExchangeEmoji maps known exchange names to the custom emoji appended to
// ticker fields.
var ExchangeEmoji = map[string]string{
	"binance":  "<:binance:1089672811410623629>",
	"coinbase": "<:coinbase:1089672813726210159>",
	"kraken":   "<:kraken:1089672816351838229>",
	"bybit":    "<:bybit:1089672818247684126>",
	"okx":      "<:okx:1089672820214812742>",
	"kucoin":   "<:kucoin:1089672822224871534>",
}

// MaxTickerFields caps the candidate symbol set per tweet; the embed holds 25
// fields and one is reserved for sentiment.
const MaxTickerFields = 24

// RewriteSymbol applies the alias table to one uppercased symbol.
func RewriteSymbol(sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if canonical, ok := SymbolRewrite[sym]; ok {
		return canonical
	}
	return sym
}

// StripStableSuffix removes a trailing stable-pair suffix, leaving the base
// ticker. BTCUSDT becomes BTC; a bare stable symbol is left alone.
func StripStableSuffix(sym string) string {
	for _, suffix := range stableSuffixes {
		if len(sym) > len(suffix) && strings.HasSuffix(sym, suffix) {
			return strings.TrimSuffix(sym, suffix)
		}
	}
	return sym
}

// NormalizeSymbols composes the candidate set for a tweet: cashtags then
// hashtags, rewritten, deduplicated, the literal NFT hashtag dropped, capped
// at MaxTickerFields.
func NormalizeSymbols(cashtags, hashtags []string) []string {
	seen := make(map[string]struct{}, len(cashtags)+len(hashtags))
	out := make([]string, 0, len(cashtags)+len(hashtags))
	for _, raw := range append(append([]string{}, cashtags...), hashtags...) {
		sym := RewriteSymbol(raw)
		if sym == "" || sym == "NFT" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
		if len(out) == MaxTickerFields {
			break
		}
	}
	return out
}
