package domain

import (
	"reflect"
	"testing"
)

func TestRewriteSymbolIdempotent(t *testing.T) {
	t.Parallel()

	for alias := range SymbolRewrite {
		once := RewriteSymbol(alias)
		twice := RewriteSymbol(once)
		if once != twice {
			t.Fatalf("rewrite not idempotent for %s: %s != %s", alias, once, twice)
		}
	}
	if got := RewriteSymbol("bitcoin"); got != "BTC" {
		t.Fatalf("expected BTC, got %s", got)
	}
	if got := RewriteSymbol("UNKNOWNCOIN"); got != "UNKNOWNCOIN" {
		t.Fatalf("unknown symbol should pass through, got %s", got)
	}
}

func TestStripStableSuffix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"BTCUSDT":     "BTC",
		"ETHUSD":      "ETH",
		"SOLUSDTPERP": "SOL",
		"EURUSD":      "EUR",
		"USDT":        "USDT",
		"AAPL":        "AAPL",
	}
	for in, want := range tests {
		if got := StripStableSuffix(in); got != want {
			t.Fatalf("%s: expected %s, got %s", in, want, got)
		}
	}
}

func TestNormalizeSymbols(t *testing.T) {
	t.Parallel()

	got := NormalizeSymbols([]string{"BITCOIN", "BTC", "ETH"}, []string{"NFT", "eth", "SOL"})
	want := []string{"BTC", "ETH", "SOL"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNormalizeSymbolsCap(t *testing.T) {
	t.Parallel()

	var cashtags []string
	for i := 0; i < 30; i++ {
		cashtags = append(cashtags, string(rune('A'+i%26))+string(rune('A'+i/26))+"X")
	}
	got := NormalizeSymbols(cashtags, nil)
	if len(got) > MaxTickerFields {
		t.Fatalf("expected at most %d symbols, got %d", MaxTickerFields, len(got))
	}
}

func TestTweetRendered(t *testing.T) {
	t.Parallel()

	tw := &Tweet{
		Kind: TweetQuote,
		Text: "agree",
		Child: &Tweet{
			AuthorHandle: "author",
			Text:         "$ETH $2000",
		},
	}
	want := "agree\n\n> [@author](https://twitter.com/author):\n> $ETH $2000"
	if got := tw.Rendered(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTweetOwnTextRetweet(t *testing.T) {
	t.Parallel()

	tw := &Tweet{
		Kind:  TweetRetweet,
		Text:  "",
		Child: &Tweet{AuthorHandle: "src", Text: "$BTC pumping"},
	}
	if got := tw.OwnText(); got != "$BTC pumping" {
		t.Fatalf("expected inner text, got %q", got)
	}
}

func TestSentimentColor(t *testing.T) {
	t.Parallel()

	if SentimentBullish.Color() == SentimentBearish.Color() {
		t.Fatal("bullish and bearish must differ")
	}
	if SentimentNeutral.Color() != (Sentiment("")).Color() {
		t.Fatal("unknown sentiment should fall back to neutral colour")
	}
}
