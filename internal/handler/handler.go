package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"tickerfeed/internal/domain"
)

// MentionQuerier serves the most-mentioned table.
type MentionQuerier interface {
	TopMentioned(ctx context.Context, category domain.Category, since time.Time, limit int) ([]domain.MentionSummary, error)
}

// SymbolResolver answers one-off resolution queries, the same path the
// pipeline uses.
type SymbolResolver interface {
	Resolve(ctx context.Context, symbol string, hint domain.Category) (domain.AssetQuote, bool)
}

// WatermarkReader exposes the poller's latest-tweet-id for the health check.
type WatermarkReader interface {
	Watermark() int64
}

type Handler struct {
	tracer    trace.Tracer
	mentions  MentionQuerier
	resolver  SymbolResolver
	watermark WatermarkReader
}

func New(tracer trace.Tracer, mentions MentionQuerier, resolver SymbolResolver, watermark WatermarkReader) *Handler {
	return &Handler{
		tracer:    tracer,
		mentions:  mentions,
		resolver:  resolver,
		watermark: watermark,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/mentions/:category", h.GetMentions)
	api.GET("/resolve/:symbol", h.ResolveSymbol)
}
