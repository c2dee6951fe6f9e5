package job

import (
	"context"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tickerfeed/internal/classify"
	"tickerfeed/internal/domain"
	"tickerfeed/internal/enrich"
	"tickerfeed/internal/router"
)

// TimelineFetcher is the timeline source, returning tweets oldest first.
type TimelineFetcher interface {
	Fetch(ctx context.Context) ([]*domain.Tweet, error)
}

// Enricher turns a tweet into its embed and routing metadata.
type Enricher interface {
	Process(ctx context.Context, tweet *domain.Tweet) *enrich.Result
}

// Routing picks the destination channels for an enriched tweet.
type Routing interface {
	Route(ctx context.Context, tweet *domain.Tweet, category domain.Category, baseSymbols []string, hasChart bool) router.Destination
}

// Sender is the Discord transport slice the poller needs.
type Sender interface {
	Send(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed) (string, error)
	SendWebhookEmbeds(ctx context.Context, channelID, content string, embeds []*discordgo.MessageEmbed) (string, error)
	React(ctx context.Context, channelID, messageID string, category domain.Category)
}

// MentionStore appends to the rolling mention table.
type MentionStore interface {
	Append(ctx context.Context, rec *domain.MentionRecord) error
}

// WatermarkStore persists the latest-tweet-id watermark across restarts.
type WatermarkStore interface {
	Load(ctx context.Context) int64
	Store(ctx context.Context, id int64)
}

// TimelinePoller is the pipeline entry point: poll, filter by watermark,
// enrich, route, send, record mentions.
type TimelinePoller struct {
	tracer    trace.Tracer
	source    TimelineFetcher
	enricher  Enricher
	router    Routing
	charts    classify.ChartClassifier
	mentions  MentionStore
	sender    Sender
	wmStore   WatermarkStore
	interval  time.Duration
	watermark atomic.Int64
	now       func() time.Time
}

func NewTimelinePoller(
	tracer trace.Tracer,
	source TimelineFetcher,
	enricher Enricher,
	rt Routing,
	charts classify.ChartClassifier,
	mentions MentionStore,
	sender Sender,
	wmStore WatermarkStore,
	pollIntervalSecs int,
) *TimelinePoller {
	return &TimelinePoller{
		tracer:   tracer,
		source:   source,
		enricher: enricher,
		router:   rt,
		charts:   charts,
		mentions: mentions,
		sender:   sender,
		wmStore:  wmStore,
		interval: time.Duration(pollIntervalSecs) * time.Second,
		now:      time.Now,
	}
}

// Watermark exposes the current latest-tweet-id, for the health endpoint.
func (p *TimelinePoller) Watermark() int64 {
	return p.watermark.Load()
}

// Start blocks until ctx is cancelled.
func (p *TimelinePoller) Start(ctx context.Context) {
	log.Println("Timeline poller starting...")

	if p.wmStore != nil {
		p.watermark.Store(p.wmStore.Load(ctx))
	}

	p.RunCycle(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Timeline poller stopped")
			return
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// RunCycle performs one poll. Nothing escapes it: a panic or error is logged
// and the next tick fires as scheduled.
func (p *TimelinePoller) RunCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("timeline poller: cycle panic: %v", r)
		}
	}()

	ctx, span := p.tracer.Start(ctx, "job.timeline-cycle")
	defer span.End()

	tweets, err := p.source.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		log.Printf("timeline poller: fetch: %v", err)
		return
	}

	processed := 0
	for _, tweet := range tweets {
		if tweet.ID <= p.watermark.Load() {
			continue
		}
		// Advance before dispatch so a send failure never replays the tweet.
		p.watermark.Store(tweet.ID)
		if p.wmStore != nil {
			p.wmStore.Store(ctx, tweet.ID)
		}
		p.dispatch(ctx, tweet)
		processed++
	}
	span.SetAttributes(
		attribute.Int("fetched", len(tweets)),
		attribute.Int("processed", processed),
	)
}

func (p *TimelinePoller) dispatch(ctx context.Context, tweet *domain.Tweet) {
	ctx, span := p.tracer.Start(ctx, "job.dispatch-tweet")
	defer span.End()
	span.SetAttributes(attribute.Int64("tweet_id", tweet.ID))

	result := p.enricher.Process(ctx, tweet)

	hasChart := false
	for _, url := range tweet.MediaURLs {
		if p.charts != nil && p.charts.Classify(ctx, url) == domain.MediaChart {
			hasChart = true
			break
		}
	}

	dest := p.router.Route(ctx, tweet, result.Category, result.BaseSymbols, hasChart)

	for _, channelID := range []string{dest.ChannelID, dest.MirrorChannelID} {
		if channelID == "" {
			continue
		}
		p.post(ctx, channelID, dest.Mentions, tweet, result)
	}

	if p.mentions == nil {
		return
	}
	for _, base := range result.BaseSymbols {
		rec := &domain.MentionRecord{
			Timestamp: p.now(),
			Ticker:    base,
			Author:    tweet.AuthorHandle,
			Sentiment: result.Sentiment,
			Category:  result.Category,
			ChangePct: result.Changes[base],
		}
		if err := p.mentions.Append(ctx, rec); err != nil {
			log.Printf("timeline poller: mention append %s: %v", base, err)
		}
	}
}

// post delivers one message to one destination channel. Two or more media
// attachments go through the multi-embed webhook path so every image lands in
// a single post; either way the posted message gets the reaction row.
func (p *TimelinePoller) post(ctx context.Context, channelID, content string, tweet *domain.Tweet, result *enrich.Result) {
	if len(tweet.MediaURLs) >= 2 {
		embeds := []*discordgo.MessageEmbed{result.Embed}
		for _, url := range tweet.MediaURLs[1:] {
			embeds = append(embeds, &discordgo.MessageEmbed{
				URL:   tweet.Permalink,
				Image: &discordgo.MessageEmbedImage{URL: url},
			})
		}
		messageID, err := p.sender.SendWebhookEmbeds(ctx, channelID, content, embeds)
		if err != nil {
			log.Printf("timeline poller: webhook post to %s: %v", channelID, err)
			return
		}
		p.sender.React(ctx, channelID, messageID, result.Category)
		return
	}

	messageID, err := p.sender.Send(ctx, channelID, content, result.Embed)
	if err != nil {
		log.Printf("timeline poller: send to %s: %v", channelID, err)
		return
	}
	p.sender.React(ctx, channelID, messageID, result.Category)
}

const watermarkKey = "timeline:watermark"

// RedisWatermark mirrors the watermark into redis so a restart does not
// replay the last day of tweets. A nil client degrades to in-memory only.
type RedisWatermark struct {
	client *redis.Client
}

func NewRedisWatermark(client *redis.Client) *RedisWatermark {
	return &RedisWatermark{client: client}
}

func (w *RedisWatermark) Load(ctx context.Context) int64 {
	if w.client == nil {
		return 0
	}
	val, err := w.client.Get(ctx, watermarkKey).Result()
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (w *RedisWatermark) Store(ctx context.Context, id int64) {
	if w.client == nil {
		return
	}
	if err := w.client.Set(ctx, watermarkKey, strconv.FormatInt(id, 10), 0).Err(); err != nil {
		log.Printf("watermark store: %v", err)
	}
}
