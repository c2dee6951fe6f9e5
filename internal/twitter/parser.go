package twitter

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	cashtagRx   = regexp.MustCompile(`\$([A-Za-z]{1,10})`)
	shortenerRx = regexp.MustCompile(`\s*https://t\.co/\w+\s*$`)
)

// ParseTimeline extracts tweets from a home-timeline response body, oldest
// first. Non-tweet entries (promos, system prompts, cursors) are skipped.
func ParseTimeline(body []byte) ([]*Tweet, error) {
	var raw timelineResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal home timeline: %w", err)
	}

	instructions := raw.Data.Home.HomeTimelineUrt.Instructions
	if len(instructions) == 0 {
		return nil, nil
	}

	var tweets []*Tweet
	for _, entry := range instructions[0].Entries {
		if !strings.HasPrefix(entry.EntryID, "tweet-") {
			continue
		}
		if entry.Content.ItemContent == nil {
			continue
		}
		var item timelineItem
		if err := json.Unmarshal(entry.Content.ItemContent, &item); err != nil {
			continue
		}
		if item.TypeName != "TimelineTweet" {
			continue
		}
		t, err := parseTweetResult(&item.TweetResults.Result, 1)
		if err != nil {
			continue
		}
		tweets = append(tweets, t)
	}

	// Entries arrive newest first; the pipeline wants oldest first.
	for i, j := 0, len(tweets)-1; i < j; i, j = i+1, j-1 {
		tweets[i], tweets[j] = tweets[j], tweets[i]
	}
	return tweets, nil
}

// Tweet is the parsed form the package exposes; the pipeline's domain type is
// produced by ToDomain.
type Tweet struct {
	ID              int64
	Text            string
	AuthorName      string
	AuthorHandle    string
	AuthorAvatarURL string
	Permalink       string
	MediaURLs       []string
	Cashtags        []string
	Hashtags        []string
	ReplyToHandle   string
	Retweeted       *Tweet
	Quoted          *Tweet
}

func parseTweetResult(r *tweetResult, depth int) (*Tweet, error) {
	// TweetWithVisibilityResults wraps the real result one level down.
	if r.Tweet != nil {
		r = r.Tweet
	}
	if r.RestID == "" {
		return nil, fmt.Errorf("empty tweet rest_id (typename=%s)", r.TypeName)
	}
	id, err := strconv.ParseInt(r.RestID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("non-numeric tweet id %q", r.RestID)
	}

	user := r.Core.UserResults.Result
	handle := user.Legacy.ScreenName

	t := &Tweet{
		ID:              id,
		AuthorName:      user.Legacy.Name,
		AuthorHandle:    handle,
		AuthorAvatarURL: strings.Replace(user.Legacy.ProfileImageURL, "_normal.", "_400x400.", 1),
		Permalink:       fmt.Sprintf("https://twitter.com/%s/status/%s", handle, r.RestID),
		ReplyToHandle:   r.Legacy.InReplyToScreenName,
		Text:            normalizeText(r.Legacy),
	}

	media := r.Legacy.ExtendedEntities.Media
	if len(media) == 0 {
		media = r.Legacy.Entities.Media
	}
	for _, m := range media {
		if m.MediaURL != "" {
			t.MediaURLs = append(t.MediaURLs, m.MediaURL)
		}
	}

	t.Cashtags = collectCashtags(r.Legacy, t.Text)
	t.Hashtags = collectHashtags(r.Legacy)

	if depth > 0 {
		if r.Legacy.RetweetedStatusResult != nil && r.Legacy.RetweetedStatusResult.Result != nil {
			if inner, err := parseTweetResult(r.Legacy.RetweetedStatusResult.Result, depth-1); err == nil {
				t.Retweeted = inner
			}
		}
		if r.QuotedStatusResult != nil && r.QuotedStatusResult.Result != nil {
			if inner, err := parseTweetResult(r.QuotedStatusResult.Result, depth-1); err == nil {
				t.Quoted = inner
			}
		}
	}

	return t, nil
}

// normalizeText expands t.co links to their targets and strips a trailing
// shortener left behind by an attached media or quote link.
func normalizeText(legacy tweetLegacy) string {
	text := legacy.FullText
	for _, u := range legacy.Entities.URLs {
		if u.URL != "" && u.ExpandedURL != "" {
			text = strings.ReplaceAll(text, u.URL, u.ExpandedURL)
		}
	}
	text = shortenerRx.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func collectCashtags(legacy tweetLegacy, normalized string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(raw string) {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		if sym == "" {
			return
		}
		if _, ok := seen[sym]; ok {
			return
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	for _, s := range legacy.Entities.Symbols {
		add(s.Text)
	}
	for _, m := range cashtagRx.FindAllStringSubmatch(normalized, -1) {
		add(m[1])
	}
	return out
}

func collectHashtags(legacy tweetLegacy) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, h := range legacy.Entities.Hashtags {
		tag := strings.ToUpper(strings.TrimSpace(h.Text))
		if tag == "" || tag == "CRYPTO" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
