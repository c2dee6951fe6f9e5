package job

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tickerfeed/internal/domain"
)

const overviewLimit = 50

// MentionReader is the slice of the mention repository the overview needs.
type MentionReader interface {
	ActiveCategories(ctx context.Context, since time.Time) ([]domain.Category, error)
	TopMentioned(ctx context.Context, category domain.Category, since time.Time, limit int) ([]domain.MentionSummary, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}

// OverviewSender posts and replaces overview messages.
type OverviewSender interface {
	Send(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed) (string, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// MessageMemory remembers the previous overview message per category so it
// can be deleted before the replacement is posted.
type MessageMemory interface {
	LastMessage(ctx context.Context, category domain.Category) (channelID, messageID string)
	Remember(ctx context.Context, category domain.Category, channelID, messageID string)
}

// OverviewJob publishes the most-mentioned table per category and prunes the
// rolling window afterwards.
type OverviewJob struct {
	tracer   trace.Tracer
	mentions MentionReader
	sender   OverviewSender
	memory   MessageMemory
	channels map[domain.Category]string
	interval time.Duration
	now      func() time.Time
}

func NewOverviewJob(
	tracer trace.Tracer,
	mentions MentionReader,
	sender OverviewSender,
	memory MessageMemory,
	channels map[domain.Category]string,
	pollIntervalSecs int,
) *OverviewJob {
	return &OverviewJob{
		tracer:   tracer,
		mentions: mentions,
		sender:   sender,
		memory:   memory,
		channels: channels,
		interval: time.Duration(pollIntervalSecs) * time.Second,
		now:      time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (j *OverviewJob) Start(ctx context.Context) {
	log.Println("Overview job starting...")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Overview job stopped")
			return
		case <-ticker.C:
			j.RunCycle(ctx)
		}
	}
}

// RunCycle publishes one overview per active category, then prunes. Errors
// stay inside the cycle.
func (j *OverviewJob) RunCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("overview job: cycle panic: %v", r)
		}
	}()

	ctx, span := j.tracer.Start(ctx, "job.overview-cycle")
	defer span.End()

	since := j.now().Add(-domain.MentionWindow)

	categories, err := j.mentions.ActiveCategories(ctx, since)
	if err != nil {
		span.RecordError(err)
		log.Printf("overview job: active categories: %v", err)
		return
	}

	for _, category := range categories {
		j.publish(ctx, category, since)
	}

	// Prune after publication so a row is always visible in at least one
	// overview before it ages out.
	if err := j.mentions.DeleteOlderThan(ctx, since); err != nil {
		log.Printf("overview job: prune: %v", err)
	}
	span.SetAttributes(attribute.Int("categories", len(categories)))
}

func (j *OverviewJob) publish(ctx context.Context, category domain.Category, since time.Time) {
	ctx, span := j.tracer.Start(ctx, "job.publish-overview")
	defer span.End()
	span.SetAttributes(attribute.String("category", string(category)))

	channelID := j.channels[category]
	if channelID == "" {
		return
	}

	rows, err := j.mentions.TopMentioned(ctx, category, since, overviewLimit)
	if err != nil {
		span.RecordError(err)
		log.Printf("overview job: top mentioned %s: %v", category, err)
		return
	}
	if len(rows) == 0 {
		return
	}

	if j.memory != nil {
		if prevChannel, prevID := j.memory.LastMessage(ctx, category); prevID != "" {
			if err := j.sender.DeleteMessage(ctx, prevChannel, prevID); err != nil {
				log.Printf("overview job: delete previous %s overview: %v", category, err)
			}
		}
	}

	messageID, err := j.sender.Send(ctx, channelID, "", OverviewEmbed(category, rows))
	if err != nil {
		log.Printf("overview job: send %s overview: %v", category, err)
		return
	}
	if j.memory != nil {
		j.memory.Remember(ctx, category, channelID, messageID)
	}
}

// columnBudget keeps each overview column under Discord's 1024-char field
// value limit.
const columnBudget = 1000

// OverviewEmbed renders the most-mentioned table as three inline columns:
// mention count, ticker with last change, and the sentiment histogram.
func OverviewEmbed(category domain.Category, rows []domain.MentionSummary) *discordgo.MessageEmbed {
	var counts, tickers, sentiments strings.Builder
	for _, row := range rows {
		c := fmt.Sprintf("%d\n", row.Count)
		t := fmt.Sprintf("$%s (%+.1f%%)\n", row.Ticker, row.LastChange)
		s := fmt.Sprintf("%d🐂 %d🦆 %d🐻\n", row.BullishCount, row.NeutralCount, row.BearishCount)
		if counts.Len()+len(c) > columnBudget ||
			tickers.Len()+len(t) > columnBudget ||
			sentiments.Len()+len(s) > columnBudget {
			break
		}
		counts.WriteString(c)
		tickers.WriteString(t)
		sentiments.WriteString(s)
	}

	titler := map[domain.Category]string{
		domain.CategoryCrypto: "Crypto",
		domain.CategoryStocks: "Stocks",
		domain.CategoryForex:  "Forex",
	}
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Most Mentioned %s (24h)", titler[category]),
		Color: domain.SentimentNeutral.Color(),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Mentions", Value: strings.TrimRight(counts.String(), "\n"), Inline: true},
			{Name: "Ticker", Value: strings.TrimRight(tickers.String(), "\n"), Inline: true},
			{Name: "Sentiment", Value: strings.TrimRight(sentiments.String(), "\n"), Inline: true},
		},
	}
}

// RedisMessageMemory stores the previous overview message id per category.
type RedisMessageMemory struct {
	client *redis.Client
}

func NewRedisMessageMemory(client *redis.Client) *RedisMessageMemory {
	return &RedisMessageMemory{client: client}
}

func overviewKey(category domain.Category) string {
	return "overview:last:" + string(category)
}

func (m *RedisMessageMemory) LastMessage(ctx context.Context, category domain.Category) (string, string) {
	if m.client == nil {
		return "", ""
	}
	val, err := m.client.Get(ctx, overviewKey(category)).Result()
	if err != nil {
		return "", ""
	}
	parts := strings.SplitN(val, "|", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

func (m *RedisMessageMemory) Remember(ctx context.Context, category domain.Category, channelID, messageID string) {
	if m.client == nil {
		return
	}
	if err := m.client.Set(ctx, overviewKey(category), channelID+"|"+messageID, 0).Err(); err != nil {
		log.Printf("overview memory: %v", err)
	}
}
