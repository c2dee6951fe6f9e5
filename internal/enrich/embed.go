package enrich

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"tickerfeed/internal/domain"
)

const (
	maxEmbedFields = 25
	maxTitleLen    = 256

	sourceIconURL = "https://abs.twimg.com/icons/apple-touch-icon-192x192.png"
)

func baseEmbed(t *domain.Tweet) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       truncateTitle(fmt.Sprintf("%s (@%s)", t.AuthorName, t.AuthorHandle)),
		URL:         t.Permalink,
		Description: t.Rendered(),
		Color:       domain.SentimentNeutral.Color(),
		Author: &discordgo.MessageEmbedAuthor{
			Name:    "@" + t.AuthorHandle,
			URL:     fmt.Sprintf("https://twitter.com/%s", t.AuthorHandle),
			IconURL: t.AuthorAvatarURL,
		},
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: t.AuthorAvatarURL},
		Footer: &discordgo.MessageEmbedFooter{
			Text:    "Twitter",
			IconURL: sourceIconURL,
		},
	}
	if len(t.MediaURLs) > 0 {
		embed.Image = &discordgo.MessageEmbedImage{URL: t.MediaURLs[0]}
	}
	return embed
}

func truncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTitleLen {
		return s
	}
	return string(runes[:maxTitleLen-1]) + "…"
}

// fieldGroup is the set of inline fields one resolved symbol contributes: a
// ticker summary plus up to two technical-analysis labels.
type fieldGroup struct {
	fields   []*discordgo.MessageEmbedField
	complete bool
}

func buildFieldGroup(quote domain.AssetQuote) fieldGroup {
	group := fieldGroup{
		complete: quote.TA4H != "" && quote.TA1D != "",
	}
	group.fields = append(group.fields, &discordgo.MessageEmbedField{
		Name:   tickerName(quote),
		Value:  priceLine(quote),
		Inline: true,
	})
	if quote.TA4H != "" {
		group.fields = append(group.fields, &discordgo.MessageEmbedField{
			Name:   "4h TA",
			Value:  quote.TA4H,
			Inline: true,
		})
	}
	if quote.TA1D != "" {
		group.fields = append(group.fields, &discordgo.MessageEmbedField{
			Name:   "1d TA",
			Value:  quote.TA1D,
			Inline: true,
		})
	}
	return group
}

func tickerName(quote domain.AssetQuote) string {
	var b strings.Builder
	b.WriteString("$")
	b.WriteString(quote.BaseSymbol)
	for _, exchange := range quote.Exchanges {
		if emoji, ok := domain.ExchangeEmoji[strings.ToLower(exchange)]; ok {
			b.WriteString(" ")
			b.WriteString(emoji)
		}
	}
	return b.String()
}

func priceLine(quote domain.AssetQuote) string {
	line := fmt.Sprintf("$%s (%s)", formatPrice(quote.Price), formatChange(quote.ChangePct))
	if quote.Website != "" {
		line = fmt.Sprintf("[%s](%s)", line, quote.Website)
	}
	if quote.AfterHours {
		line += fmt.Sprintf("\nAH: $%s (%s)", formatPrice(quote.AfterHoursPrice), formatChange(quote.AfterHoursChangePct))
	}
	return line
}

func formatPrice(p float64) string {
	switch {
	case p >= 1:
		return fmt.Sprintf("%.2f", p)
	case p >= 0.01:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.8f", p)
	}
}

func formatChange(pct float64) string {
	return fmt.Sprintf("%+.2f%%", pct)
}

func sentimentField(s domain.Sentiment) *discordgo.MessageEmbedField {
	emoji := "🦆"
	switch s {
	case domain.SentimentBullish:
		emoji = "🐂"
	case domain.SentimentBearish:
		emoji = "🐻"
	}
	return &discordgo.MessageEmbedField{
		Name:   "Sentiment",
		Value:  fmt.Sprintf("%s %s", emoji, s),
		Inline: false,
	}
}

// appendGroups lays the field groups into the embed, complete groups first so
// the top rows always carry full triples, stopping before the field cap with
// one slot reserved for the sentiment field.
func appendGroups(embed *discordgo.MessageEmbed, groups []fieldGroup) {
	ordered := make([]fieldGroup, 0, len(groups))
	for _, g := range groups {
		if g.complete {
			ordered = append(ordered, g)
		}
	}
	for _, g := range groups {
		if !g.complete {
			ordered = append(ordered, g)
		}
	}

	budget := maxEmbedFields - 1
	for _, g := range ordered {
		if len(embed.Fields)+len(g.fields) > budget {
			break
		}
		embed.Fields = append(embed.Fields, g.fields...)
	}
}
