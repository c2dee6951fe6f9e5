package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"tickerfeed/internal/domain"
)

// capturedRequest is the on-disk shape of a browser-captured home timeline
// call. The file is re-read on every poll so refreshed cookies take effect
// without a restart.
type capturedRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Cookies map[string]string `json:"cookies"`
	Body    json.RawMessage   `json:"body"`
}

// TimelineSource replays a captured GraphQL home-timeline request and parses
// the response into domain tweets.
type TimelineSource struct {
	requestFile string
	client      *http.Client
	tracer      trace.Tracer
}

func NewTimelineSource(requestFile string, tracer trace.Tracer) *TimelineSource {
	return &TimelineSource{
		requestFile: requestFile,
		client:      &http.Client{Timeout: 30 * time.Second},
		tracer:      tracer,
	}
}

// Fetch performs one timeline poll and returns the parsed tweets, oldest
// first.
func (s *TimelineSource) Fetch(ctx context.Context) ([]*domain.Tweet, error) {
	ctx, span := s.tracer.Start(ctx, "twitter.fetch-timeline")
	defer span.End()

	captured, err := s.loadRequest()
	if err != nil {
		return nil, err
	}

	method := captured.Method
	if method == "" {
		method = http.MethodGet
	}
	var reader io.Reader
	if len(captured.Body) > 0 {
		reader = bytes.NewReader(captured.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, captured.URL, reader)
	if err != nil {
		return nil, fmt.Errorf("build timeline request: %w", err)
	}
	for k, v := range captured.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range captured.Cookies {
		req.AddCookie(&http.Cookie{Name: k, Value: v})
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timeline request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timeline request returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read timeline response: %w", err)
	}

	parsed, err := ParseTimeline(body)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Tweet, 0, len(parsed))
	for _, t := range parsed {
		out = append(out, t.ToDomain())
	}
	return out, nil
}

func (s *TimelineSource) loadRequest() (*capturedRequest, error) {
	data, err := os.ReadFile(s.requestFile)
	if err != nil {
		return nil, fmt.Errorf("read captured request: %w", err)
	}
	var captured capturedRequest
	if err := json.Unmarshal(data, &captured); err != nil {
		return nil, fmt.Errorf("decode captured request %s: %w", s.requestFile, err)
	}
	if captured.URL == "" {
		return nil, fmt.Errorf("captured request %s has no url", s.requestFile)
	}
	return &captured, nil
}

// ToDomain converts the parsed tweet into the pipeline's domain type. A
// retweet or quote carries its inner tweet as Child; a retweet's inner child
// is flattened away.
func (t *Tweet) ToDomain() *domain.Tweet {
	out := &domain.Tweet{
		ID:              t.ID,
		Kind:            domain.TweetOriginal,
		Text:            t.Text,
		AuthorName:      t.AuthorName,
		AuthorHandle:    t.AuthorHandle,
		AuthorAvatarURL: t.AuthorAvatarURL,
		Permalink:       t.Permalink,
		MediaURLs:       t.MediaURLs,
		Cashtags:        t.Cashtags,
		Hashtags:        t.Hashtags,
		ReplyToHandle:   t.ReplyToHandle,
	}

	switch {
	case t.Retweeted != nil:
		out.Kind = domain.TweetRetweet
		out.Text = ""
		out.Child = t.Retweeted.ToDomain()
		out.Child.Child = nil
	case t.Quoted != nil:
		out.Kind = domain.TweetQuote
		out.Child = t.Quoted.ToDomain()
		out.Child.Child = nil
	case strings.TrimSpace(t.ReplyToHandle) != "":
		out.Kind = domain.TweetReply
	}

	return out
}
