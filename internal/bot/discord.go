package bot

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tickerfeed/internal/domain"
	"tickerfeed/internal/enrich"
)

// session is the slice of discordgo.Session the bot uses; the real session
// satisfies it.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// PortfolioStore backs the !portfolio command.
type PortfolioStore interface {
	Add(ctx context.Context, userID, symbol string) error
	Remove(ctx context.Context, userID, symbol string) error
	Holdings(ctx context.Context, userID string) ([]string, error)
}

// webhookRef is one parsed webhook, bound to the channel it posts into.
type webhookRef struct {
	id    string
	token string
}

// Bot is the Discord transport: sends, webhook posts, reactions, deletes,
// and the two chat commands.
type Bot struct {
	tracer     trace.Tracer
	session    session
	webhooks   map[string]webhookRef
	resolver   *enrich.Resolver
	portfolios PortfolioStore
}

// StartDiscordBot opens the gateway session and registers the command
// handler. An empty token skips startup and returns nil so the pipeline can
// run send-less in development. channelWebhooks maps a channel id to the
// webhook URL posting into that channel.
func StartDiscordBot(tracer trace.Tracer, token string, channelWebhooks map[string]string, resolver *enrich.Resolver, portfolios PortfolioStore) *Bot {
	if token == "" {
		log.Println("DISCORD_BOT_TOKEN not set, skipping Discord bot startup")
		return nil
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Fatalf("failed to create Discord session: %v", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsGuildMessageReactions

	b := New(tracer, dg, channelWebhooks, resolver, portfolios)
	dg.AddHandler(b.handleMessage)

	if err := dg.Open(); err != nil {
		log.Fatalf("failed to open Discord gateway: %v", err)
	}
	log.Println("Discord bot started")
	return b
}

func New(tracer trace.Tracer, s session, channelWebhooks map[string]string, resolver *enrich.Resolver, portfolios PortfolioStore) *Bot {
	webhooks := make(map[string]webhookRef, len(channelWebhooks))
	for channelID, url := range channelWebhooks {
		id, token := parseWebhookURL(url)
		if id == "" {
			log.Printf("bot: unusable webhook URL for channel %s, skipping", channelID)
			continue
		}
		webhooks[channelID] = webhookRef{id: id, token: token}
	}
	return &Bot{
		tracer:     tracer,
		session:    s,
		webhooks:   webhooks,
		resolver:   resolver,
		portfolios: portfolios,
	}
}

// parseWebhookURL splits .../api/webhooks/<id>/<token>; both parts empty when
// the URL is unusable.
func parseWebhookURL(url string) (id, token string) {
	const marker = "/webhooks/"
	i := strings.Index(url, marker)
	if i < 0 {
		return "", ""
	}
	rest := strings.Trim(url[i+len(marker):], "/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ""
	}
	return parts[0], parts[1]
}

// Send posts a single-embed message and returns its id.
func (b *Bot) Send(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed) (string, error) {
	_, span := b.tracer.Start(ctx, "bot.send-message")
	defer span.End()
	span.SetAttributes(attribute.String("channel_id", channelID))

	msg, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		Embed:   embed,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("send to %s: %w", channelID, err)
	}
	return msg.ID, nil
}

// SendWebhookEmbeds posts several embeds as one message into a channel and
// returns the message id; used for tweets with two or more media attachments.
// A channel with a configured webhook goes through it (waiting for the
// created message); any other channel falls back to a regular multi-embed
// send so the routed destination still receives the post.
func (b *Bot) SendWebhookEmbeds(ctx context.Context, channelID, content string, embeds []*discordgo.MessageEmbed) (string, error) {
	_, span := b.tracer.Start(ctx, "bot.send-webhook-embeds")
	defer span.End()
	span.SetAttributes(attribute.String("channel_id", channelID))

	wh, ok := b.webhooks[channelID]
	if !ok {
		msg, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Content: content,
			Embeds:  embeds,
		})
		if err != nil {
			span.RecordError(err)
			return "", fmt.Errorf("multi-embed send to %s: %w", channelID, err)
		}
		return msg.ID, nil
	}

	msg, err := b.session.WebhookExecute(wh.id, wh.token, true, &discordgo.WebhookParams{
		Content: content,
		Embeds:  embeds,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("webhook post to %s: %w", channelID, err)
	}
	return msg.ID, nil
}

var baseReactions = []string{"💸", "❤️"}
var sentimentReactions = []string{"🐂", "🦆", "🐻"}

// React adds the standard reaction row. The sentiment override trio is only
// offered when the tweet landed in an asset category. Failures are logged
// and never retried.
func (b *Bot) React(ctx context.Context, channelID, messageID string, category domain.Category) {
	_, span := b.tracer.Start(ctx, "bot.add-reactions")
	defer span.End()

	emojis := baseReactions
	if category != domain.CategoryNone {
		emojis = append(append([]string{}, baseReactions...), sentimentReactions...)
	}
	for _, emoji := range emojis {
		if err := b.session.MessageReactionAdd(channelID, messageID, emoji); err != nil {
			log.Printf("bot: react %s on %s: %v", emoji, messageID, err)
		}
	}
}

// DeleteMessage removes a previously posted message, used to replace the
// category overview.
func (b *Bot) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_, span := b.tracer.Start(ctx, "bot.delete-message")
	defer span.End()

	if err := b.session.ChannelMessageDelete(channelID, messageID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete %s: %w", messageID, err)
	}
	return nil
}

func (b *Bot) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	fields := strings.Fields(m.Content)
	if len(fields) == 0 {
		return
	}

	ctx := context.Background()
	switch strings.ToLower(fields[0]) {
	case "!price":
		b.handlePrice(ctx, m, fields[1:])
	case "!portfolio":
		b.handlePortfolio(ctx, m, fields[1:])
	}
}

func (b *Bot) handlePrice(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	ctx, span := b.tracer.Start(ctx, "bot.command-price")
	defer span.End()

	if len(args) == 0 {
		b.reply(m.ChannelID, "Usage: !price BTC")
		return
	}
	symbol := domain.RewriteSymbol(args[0])
	quote, ok := b.resolver.Resolve(ctx, symbol, domain.CategoryNone)
	if !ok {
		b.reply(m.ChannelID, fmt.Sprintf("Could not resolve %s", symbol))
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf(
		"%s [%s]\nPrice: $%.2f\n24h Change: %+.2f%%\n24h Volume: $%.0f",
		quote.BaseSymbol, quote.Category, quote.Price, quote.ChangePct, quote.Volume,
	))
}

func (b *Bot) handlePortfolio(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	ctx, span := b.tracer.Start(ctx, "bot.command-portfolio")
	defer span.End()

	if len(args) == 0 {
		b.reply(m.ChannelID, "Usage: !portfolio add|remove|list [SYMBOL]")
		return
	}
	userID := m.Author.ID

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 2 {
			b.reply(m.ChannelID, "Usage: !portfolio add SYMBOL")
			return
		}
		symbol := domain.RewriteSymbol(args[1])
		if err := b.portfolios.Add(ctx, userID, symbol); err != nil {
			log.Printf("bot: portfolio add: %v", err)
			b.reply(m.ChannelID, "Could not update your portfolio")
			return
		}
		b.reply(m.ChannelID, fmt.Sprintf("Added %s, you will be tagged when it is mentioned", symbol))
	case "remove":
		if len(args) < 2 {
			b.reply(m.ChannelID, "Usage: !portfolio remove SYMBOL")
			return
		}
		symbol := domain.RewriteSymbol(args[1])
		if err := b.portfolios.Remove(ctx, userID, symbol); err != nil {
			log.Printf("bot: portfolio remove: %v", err)
			b.reply(m.ChannelID, "Could not update your portfolio")
			return
		}
		b.reply(m.ChannelID, fmt.Sprintf("Removed %s", symbol))
	case "list":
		holdings, err := b.portfolios.Holdings(ctx, userID)
		if err != nil {
			log.Printf("bot: portfolio list: %v", err)
			b.reply(m.ChannelID, "Could not read your portfolio")
			return
		}
		if len(holdings) == 0 {
			b.reply(m.ChannelID, "Your portfolio is empty")
			return
		}
		b.reply(m.ChannelID, "Your portfolio: "+strings.Join(holdings, ", "))
	default:
		b.reply(m.ChannelID, "Usage: !portfolio add|remove|list [SYMBOL]")
	}
}

func (b *Bot) reply(channelID, content string) {
	if _, err := b.session.ChannelMessageSend(channelID, content); err != nil {
		log.Printf("bot: reply in %s: %v", channelID, err)
	}
}
