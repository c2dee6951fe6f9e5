package job

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/trace"

	"tickerfeed/internal/domain"
	"tickerfeed/internal/enrich"
	"tickerfeed/internal/router"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type fakeSource struct {
	tweets []*domain.Tweet
	err    error
}

func (f *fakeSource) Fetch(ctx context.Context) ([]*domain.Tweet, error) {
	return f.tweets, f.err
}

type fakeEnricher struct {
	results map[int64]*enrich.Result
	order   []int64
}

func (f *fakeEnricher) Process(ctx context.Context, tweet *domain.Tweet) *enrich.Result {
	f.order = append(f.order, tweet.ID)
	if r, ok := f.results[tweet.ID]; ok {
		return r
	}
	return &enrich.Result{
		Embed:     &discordgo.MessageEmbed{Title: fmt.Sprintf("tweet %d", tweet.ID)},
		Sentiment: domain.SentimentNeutral,
	}
}

type fakeRouting struct {
	dest router.Destination
}

func (f *fakeRouting) Route(ctx context.Context, tweet *domain.Tweet, category domain.Category, baseSymbols []string, hasChart bool) router.Destination {
	return f.dest
}

type fakeChartTagger struct {
	tags map[string]domain.MediaTag
}

func (f *fakeChartTagger) Classify(ctx context.Context, imageURL string) domain.MediaTag {
	if tag, ok := f.tags[imageURL]; ok {
		return tag
	}
	return domain.MediaOther
}

type fakeMentions struct {
	records []*domain.MentionRecord
	err     error
}

func (f *fakeMentions) Append(ctx context.Context, rec *domain.MentionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type sentMessage struct {
	channelID string
	content   string
	embed     *discordgo.MessageEmbed
}

type webhookPost struct {
	channelID string
	embeds    []*discordgo.MessageEmbed
}

type fakeSender struct {
	messages  []sentMessage
	webhooks  []webhookPost
	reactions []string
	sendErr   error
}

func (f *fakeSender) Send(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.messages = append(f.messages, sentMessage{channelID, content, embed})
	return fmt.Sprintf("msg-%d", len(f.messages)), nil
}

func (f *fakeSender) SendWebhookEmbeds(ctx context.Context, channelID, content string, embeds []*discordgo.MessageEmbed) (string, error) {
	f.webhooks = append(f.webhooks, webhookPost{channelID, embeds})
	return fmt.Sprintf("wh-%d", len(f.webhooks)), nil
}

func (f *fakeSender) React(ctx context.Context, channelID, messageID string, category domain.Category) {
	f.reactions = append(f.reactions, fmt.Sprintf("%s/%s", channelID, messageID))
}

type memWatermark struct {
	id int64
}

func (m *memWatermark) Load(ctx context.Context) int64      { return m.id }
func (m *memWatermark) Store(ctx context.Context, id int64) { m.id = id }

func newPoller(source *fakeSource, enricher *fakeEnricher, sender *fakeSender, mentions *fakeMentions, wm *memWatermark) *TimelinePoller {
	p := NewTimelinePoller(
		testTracer, source, enricher,
		&fakeRouting{dest: router.Destination{ChannelID: "chan"}},
		&fakeChartTagger{}, mentions, sender, wm, 300,
	)
	p.now = func() time.Time { return time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC) }
	return p
}

func tweetsWithIDs(ids ...int64) []*domain.Tweet {
	out := make([]*domain.Tweet, 0, len(ids))
	for _, id := range ids {
		out = append(out, &domain.Tweet{ID: id, Text: "x", AuthorHandle: "ana"})
	}
	return out
}

func TestCycleFiltersByWatermarkAndKeepsOrder(t *testing.T) {
	t.Parallel()

	var ids []int64
	for i := int64(1); i <= 50; i++ {
		ids = append(ids, i)
	}
	source := &fakeSource{tweets: tweetsWithIDs(ids...)}
	enricher := &fakeEnricher{}
	sender := &fakeSender{}
	wm := &memWatermark{id: 30}
	p := newPoller(source, enricher, sender, &fakeMentions{}, wm)
	p.watermark.Store(wm.Load(context.Background()))

	p.RunCycle(context.Background())

	if len(enricher.order) != 20 {
		t.Fatalf("expected 20 new tweets processed, got %d", len(enricher.order))
	}
	for i, id := range enricher.order {
		if id != int64(31+i) {
			t.Fatalf("dispatch order broken at %d: got %d", i, id)
		}
	}
	if p.Watermark() != 50 {
		t.Fatalf("expected watermark 50, got %d", p.Watermark())
	}
	if wm.id != 50 {
		t.Fatalf("expected watermark mirrored, got %d", wm.id)
	}
}

func TestWatermarkAdvancesBeforeDispatch(t *testing.T) {
	t.Parallel()

	source := &fakeSource{tweets: tweetsWithIDs(10)}
	enricher := &fakeEnricher{}
	sender := &fakeSender{sendErr: errors.New("discord down")}
	p := newPoller(source, enricher, sender, &fakeMentions{}, &memWatermark{})

	p.RunCycle(context.Background())
	if p.Watermark() != 10 {
		t.Fatalf("watermark must advance even when the send fails, got %d", p.Watermark())
	}

	// A second cycle with the same timeline must not replay the tweet.
	p.RunCycle(context.Background())
	if len(enricher.order) != 1 {
		t.Fatalf("tweet replayed: processed %d times", len(enricher.order))
	}
}

func TestCycleFetchErrorIsContained(t *testing.T) {
	t.Parallel()

	p := newPoller(&fakeSource{err: errors.New("timeline 429")}, &fakeEnricher{}, &fakeSender{}, &fakeMentions{}, &memWatermark{})
	p.RunCycle(context.Background())
	if p.Watermark() != 0 {
		t.Fatalf("failed fetch must not move the watermark, got %d", p.Watermark())
	}
}

func TestCyclePanicIsContained(t *testing.T) {
	t.Parallel()

	p := newPoller(&fakeSource{tweets: tweetsWithIDs(1)}, &fakeEnricher{}, &fakeSender{}, &fakeMentions{}, &memWatermark{})
	p.enricher = panicEnricher{}
	p.RunCycle(context.Background())
}

type panicEnricher struct{}

func (panicEnricher) Process(ctx context.Context, tweet *domain.Tweet) *enrich.Result {
	panic("boom")
}

func TestDispatchSendsAndReacts(t *testing.T) {
	t.Parallel()

	enricher := &fakeEnricher{results: map[int64]*enrich.Result{
		5: {
			Embed:       &discordgo.MessageEmbed{Title: "t"},
			Category:    domain.CategoryCrypto,
			BaseSymbols: []string{"BTC"},
			Sentiment:   domain.SentimentBullish,
			Changes:     map[string]float64{"BTC": 2.5},
		},
	}}
	sender := &fakeSender{}
	mentions := &fakeMentions{}
	p := newPoller(&fakeSource{tweets: tweetsWithIDs(5)}, enricher, sender, mentions, &memWatermark{})

	p.RunCycle(context.Background())

	if len(sender.messages) != 1 || sender.messages[0].channelID != "chan" {
		t.Fatalf("unexpected sends: %+v", sender.messages)
	}
	if len(sender.reactions) != 1 {
		t.Fatalf("expected reactions on the posted message, got %v", sender.reactions)
	}
	if len(mentions.records) != 1 {
		t.Fatalf("expected one mention record, got %d", len(mentions.records))
	}
	rec := mentions.records[0]
	if rec.Ticker != "BTC" || rec.Sentiment != domain.SentimentBullish || rec.ChangePct != 2.5 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestDispatchMultiMediaUsesWebhook(t *testing.T) {
	t.Parallel()

	tweet := &domain.Tweet{
		ID:           7,
		Text:         "charts",
		AuthorHandle: "ana",
		Permalink:    "https://twitter.com/ana/status/7",
		MediaURLs:    []string{"m1", "m2", "m3"},
	}
	sender := &fakeSender{}
	p := newPoller(&fakeSource{tweets: []*domain.Tweet{tweet}}, &fakeEnricher{}, sender, &fakeMentions{}, &memWatermark{})

	p.RunCycle(context.Background())

	if len(sender.messages) != 0 {
		t.Fatalf("multi-media tweet must not use the standard send, got %+v", sender.messages)
	}
	if len(sender.webhooks) != 1 || len(sender.webhooks[0].embeds) != 3 {
		t.Fatalf("expected one webhook post with 3 embeds, got %+v", sender.webhooks)
	}
	if sender.webhooks[0].channelID != "chan" {
		t.Fatalf("webhook post must go to the routed channel, got %s", sender.webhooks[0].channelID)
	}
	for _, embed := range sender.webhooks[0].embeds[1:] {
		if embed.URL != tweet.Permalink || embed.Image == nil {
			t.Fatalf("extra embeds must share the permalink and carry an image: %+v", embed)
		}
	}
	if !reflect.DeepEqual(sender.reactions, []string{"chan/wh-1"}) {
		t.Fatalf("webhook posts must get the reaction row too, got %v", sender.reactions)
	}
}

func TestDispatchMultiMediaRoutesPerChannel(t *testing.T) {
	t.Parallel()

	tweet := &domain.Tweet{
		ID:           8,
		Text:         "chart dump",
		AuthorHandle: "ana",
		Permalink:    "https://twitter.com/ana/status/8",
		MediaURLs:    []string{"m1", "m2"},
	}
	enricher := &fakeEnricher{results: map[int64]*enrich.Result{
		8: {
			Embed:       &discordgo.MessageEmbed{Title: "t"},
			Category:    domain.CategoryStocks,
			BaseSymbols: []string{"TSLA"},
			Sentiment:   domain.SentimentBullish,
		},
	}}
	sender := &fakeSender{}
	p := newPoller(&fakeSource{tweets: []*domain.Tweet{tweet}}, enricher, sender, &fakeMentions{}, &memWatermark{})
	p.router = &fakeRouting{dest: router.Destination{ChannelID: "stocks-charts", MirrorChannelID: "ana-channel"}}

	p.RunCycle(context.Background())

	if len(sender.messages) != 0 {
		t.Fatalf("multi-media tweet must not use the standard send, got %+v", sender.messages)
	}
	if len(sender.webhooks) != 2 {
		t.Fatalf("expected one webhook post per destination channel, got %+v", sender.webhooks)
	}
	if sender.webhooks[0].channelID != "stocks-charts" || sender.webhooks[1].channelID != "ana-channel" {
		t.Fatalf("webhook posts must follow the routed destinations, got %+v", sender.webhooks)
	}
	want := []string{"stocks-charts/wh-1", "ana-channel/wh-2"}
	if !reflect.DeepEqual(sender.reactions, want) {
		t.Fatalf("each webhook post must get its reaction row, got %v", sender.reactions)
	}
}

func TestDispatchMirrorsToAuthorChannel(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	p := newPoller(&fakeSource{tweets: tweetsWithIDs(9)}, &fakeEnricher{}, sender, &fakeMentions{}, &memWatermark{})
	p.router = &fakeRouting{dest: router.Destination{ChannelID: "chan", MirrorChannelID: "mirror"}}

	p.RunCycle(context.Background())
	if len(sender.messages) != 2 {
		t.Fatalf("expected primary and mirror sends, got %+v", sender.messages)
	}
	if sender.messages[1].channelID != "mirror" {
		t.Fatalf("expected mirror channel second, got %s", sender.messages[1].channelID)
	}
}
