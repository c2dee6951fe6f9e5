package twitter

import (
	"reflect"
	"testing"

	"tickerfeed/internal/domain"
)

func tweetEntry(entryID, item string) string {
	return `{"entryId":"` + entryID + `","content":{"entryType":"TimelineTimelineItem","itemContent":` + item + `}}`
}

func timelineBody(entries ...string) []byte {
	joined := ""
	for i, e := range entries {
		if i > 0 {
			joined += ","
		}
		joined += e
	}
	return []byte(`{"data":{"home":{"home_timeline_urt":{"instructions":[{"type":"TimelineAddEntries","entries":[` + joined + `]}]}}}}`)
}

const simpleTweet = `{
	"__typename": "TimelineTweet",
	"tweet_results": {"result": {
		"__typename": "Tweet",
		"rest_id": "100",
		"core": {"user_results": {"result": {
			"rest_id": "7",
			"legacy": {"name": "Ana", "screen_name": "ana", "profile_image_url_https": "https://pbs.twimg.com/a_normal.jpg"}
		}}},
		"legacy": {
			"full_text": "long $btc https://t.co/abc123",
			"entities": {
				"symbols": [{"text": "btc"}],
				"hashtags": [{"text": "crypto"}, {"text": "trading"}],
				"urls": []
			},
			"extended_entities": {"media": [{"media_url_https": "https://pbs.twimg.com/media/chart.png", "type": "photo"}]}
		}
	}}
}`

func TestParseTimelineOrdersOldestFirst(t *testing.T) {
	t.Parallel()

	second := `{
		"__typename": "TimelineTweet",
		"tweet_results": {"result": {
			"__typename": "Tweet",
			"rest_id": "200",
			"core": {"user_results": {"result": {"legacy": {"name": "Bo", "screen_name": "bo"}}}},
			"legacy": {"full_text": "gm"}
		}}
	}`

	body := timelineBody(
		tweetEntry("tweet-200", second),
		tweetEntry("promoted-tweet-1", simpleTweet),
		tweetEntry("cursor-bottom-1", `{"__typename":"TimelineTimelineCursor"}`),
		tweetEntry("tweet-100", simpleTweet),
	)

	tweets, err := ParseTimeline(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tweets) != 2 {
		t.Fatalf("expected 2 tweets, got %d", len(tweets))
	}
	if tweets[0].ID != 100 || tweets[1].ID != 200 {
		t.Fatalf("expected oldest first, got %d %d", tweets[0].ID, tweets[1].ID)
	}
}

func TestParseTweetFields(t *testing.T) {
	t.Parallel()

	tweets, err := ParseTimeline(timelineBody(tweetEntry("tweet-100", simpleTweet)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tw := tweets[0]

	if tw.Text != "long $btc" {
		t.Fatalf("expected trailing shortener stripped, got %q", tw.Text)
	}
	if tw.Permalink != "https://twitter.com/ana/status/100" {
		t.Fatalf("unexpected permalink: %s", tw.Permalink)
	}
	if tw.AuthorAvatarURL != "https://pbs.twimg.com/a_400x400.jpg" {
		t.Fatalf("expected full-size avatar, got %s", tw.AuthorAvatarURL)
	}
	if !reflect.DeepEqual(tw.Cashtags, []string{"BTC"}) {
		t.Fatalf("unexpected cashtags: %v", tw.Cashtags)
	}
	if !reflect.DeepEqual(tw.Hashtags, []string{"TRADING"}) {
		t.Fatalf("expected CRYPTO dropped, got %v", tw.Hashtags)
	}
	if !reflect.DeepEqual(tw.MediaURLs, []string{"https://pbs.twimg.com/media/chart.png"}) {
		t.Fatalf("unexpected media: %v", tw.MediaURLs)
	}
}

func TestNormalizeTextExpandsURLs(t *testing.T) {
	t.Parallel()

	legacy := tweetLegacy{FullText: "read https://t.co/xyz now https://t.co/tail9"}
	legacy.Entities.URLs = []urlEntity{{URL: "https://t.co/xyz", ExpandedURL: "https://example.com/post"}}

	if got := normalizeText(legacy); got != "read https://example.com/post now" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestCollectCashtagsMergesTextMatches(t *testing.T) {
	t.Parallel()

	legacy := tweetLegacy{}
	legacy.Entities.Symbols = []tagEntity{{Text: "eth"}}

	got := collectCashtags(legacy, "$ETH and $sol going up")
	if !reflect.DeepEqual(got, []string{"ETH", "SOL"}) {
		t.Fatalf("unexpected cashtags: %v", got)
	}
}

const retweetItem = `{
	"__typename": "TimelineTweet",
	"tweet_results": {"result": {
		"__typename": "Tweet",
		"rest_id": "300",
		"core": {"user_results": {"result": {"legacy": {"name": "Bo", "screen_name": "bo"}}}},
		"legacy": {
			"full_text": "RT @ana: long $btc",
			"retweeted_status_result": {"result": {
				"__typename": "TweetWithVisibilityResults",
				"tweet": {
					"__typename": "Tweet",
					"rest_id": "100",
					"core": {"user_results": {"result": {"legacy": {"name": "Ana", "screen_name": "ana"}}}},
					"legacy": {"full_text": "long $btc", "entities": {"symbols": [{"text": "btc"}]}}
				}
			}}
		}
	}}
}`

func TestRetweetToDomain(t *testing.T) {
	t.Parallel()

	tweets, err := ParseTimeline(timelineBody(tweetEntry("tweet-300", retweetItem)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := tweets[0].ToDomain()
	if d.Kind != domain.TweetRetweet {
		t.Fatalf("expected retweet kind, got %d", d.Kind)
	}
	if d.Text != "" {
		t.Fatalf("retweet wrapper should carry no own text, got %q", d.Text)
	}
	if d.Child == nil || d.Child.ID != 100 || d.Child.AuthorHandle != "ana" {
		t.Fatalf("unexpected child: %+v", d.Child)
	}
	if d.OwnText() != "long $btc" {
		t.Fatalf("expected child text for bare retweet, got %q", d.OwnText())
	}
	if !reflect.DeepEqual(d.AllCashtags(), []string{"BTC"}) {
		t.Fatalf("unexpected cashtags: %v", d.AllCashtags())
	}
}

func TestQuoteAndReplyToDomain(t *testing.T) {
	t.Parallel()

	quote := &Tweet{ID: 1, Text: "agree", Quoted: &Tweet{ID: 2, Text: "$ETH $2000", AuthorHandle: "ana"}}
	if d := quote.ToDomain(); d.Kind != domain.TweetQuote || d.Child == nil || d.Text != "agree" {
		t.Fatalf("unexpected quote conversion: %+v", quote.ToDomain())
	}

	reply := &Tweet{ID: 3, Text: "why", ReplyToHandle: "ana"}
	if d := reply.ToDomain(); d.Kind != domain.TweetReply {
		t.Fatalf("expected reply kind, got %d", d.Kind)
	}

	plain := &Tweet{ID: 4, Text: "gm"}
	if d := plain.ToDomain(); d.Kind != domain.TweetOriginal {
		t.Fatalf("expected original kind, got %d", d.Kind)
	}
}

func TestParseTimelineMalformed(t *testing.T) {
	t.Parallel()

	if _, err := ParseTimeline([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed body")
	}
	tweets, err := ParseTimeline([]byte(`{"data":{"home":{"home_timeline_urt":{"instructions":[]}}}}`))
	if err != nil || tweets != nil {
		t.Fatalf("expected empty result, got %v %v", tweets, err)
	}
}
