package domain

import (
	"fmt"
	"strings"
)

// TweetKind tags the structural variant of a timeline item.
type TweetKind int

const (
	TweetOriginal TweetKind = iota
	TweetRetweet
	TweetQuote
	TweetReply
)

// Tweet is a parsed timeline item. Retweets, quotes and replies carry the
// inner tweet one level deep in Child; deeper nesting is flattened by the
// parser.
type Tweet struct {
	ID              int64
	Kind            TweetKind
	Text            string
	AuthorName      string
	AuthorHandle    string
	AuthorAvatarURL string
	Permalink       string
	MediaURLs       []string
	Cashtags        []string
	Hashtags        []string
	ReplyToHandle   string
	Child           *Tweet
}

// Rendered flattens the tweet to the single form used as the embed
// description: own text followed by the child's text, blockquoted
// line-by-line with the child handle linked.
func (t *Tweet) Rendered() string {
	if t.Child == nil {
		return t.Text
	}
	var b strings.Builder
	if strings.TrimSpace(t.Text) != "" {
		b.WriteString(t.Text)
		b.WriteString("\n\n")
	}
	b.WriteString(fmt.Sprintf("> [@%s](https://twitter.com/%s):\n", t.Child.AuthorHandle, t.Child.AuthorHandle))
	lines := strings.Split(t.Child.Text, "\n")
	for i, line := range lines {
		b.WriteString("> ")
		b.WriteString(line)
		if i < len(lines)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// OwnText returns the un-quoted portion of the tweet, the part sentiment is
// classified on. For a bare retweet that is the inner text.
func (t *Tweet) OwnText() string {
	if t.Kind == TweetRetweet && strings.TrimSpace(t.Text) == "" && t.Child != nil {
		return t.Child.Text
	}
	return t.Text
}

// AllCashtags returns the union of the tweet's and its child's cashtags.
func (t *Tweet) AllCashtags() []string {
	if t.Child == nil {
		return t.Cashtags
	}
	return mergeUpper(t.Cashtags, t.Child.Cashtags)
}

// AllHashtags returns the union of the tweet's and its child's hashtags.
func (t *Tweet) AllHashtags() []string {
	if t.Child == nil {
		return t.Hashtags
	}
	return mergeUpper(t.Hashtags, t.Child.Hashtags)
}

func mergeUpper(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.ToUpper(s)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
