package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Request describes one outbound call.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Cookies map[string]string
	Body    []byte
}

// Fetcher performs JSON and text fetches that never fail loudly: transport
// and decode errors degrade to an empty result and a log line. Callers that
// need retry schedule a later poll.
type Fetcher struct {
	client *http.Client
	tracer trace.Tracer
}

func New(tracer trace.Tracer) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		tracer: tracer,
	}
}

// JSON fetches and decodes a JSON object. Any failure returns an empty map.
func (f *Fetcher) JSON(ctx context.Context, req Request) map[string]any {
	_, span := f.tracer.Start(ctx, "fetch.json")
	defer span.End()

	body, ok := f.do(ctx, req)
	if !ok {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		log.Printf("fetch: decode %s: %v", req.URL, err)
		return map[string]any{}
	}
	return out
}

// Text fetches a raw text/HTML body. Any failure returns "".
func (f *Fetcher) Text(ctx context.Context, req Request) string {
	_, span := f.tracer.Start(ctx, "fetch.text")
	defer span.End()

	body, ok := f.do(ctx, req)
	if !ok {
		return ""
	}
	return string(body)
}

func (f *Fetcher) do(ctx context.Context, req Request) ([]byte, bool) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if len(req.Body) > 0 {
		reader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, reader)
	if err != nil {
		log.Printf("fetch: build request %s: %v", req.URL, err)
		return nil, false
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: k, Value: v})
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		log.Printf("fetch: %s %s: %v", method, req.URL, err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("fetch: %s returned %d", req.URL, resp.StatusCode)
		return nil, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("fetch: read %s: %v", req.URL, err)
		return nil, false
	}
	return body, true
}
