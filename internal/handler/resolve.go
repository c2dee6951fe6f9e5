package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"tickerfeed/internal/domain"
)

// timeNow is a seam for tests.
var timeNow = time.Now

// ResolveSymbol runs one symbol through the same resolution path the
// pipeline uses; handy for debugging misclassified tickers.
func (h *Handler) ResolveSymbol(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.resolve-symbol")
	defer span.End()

	symbol := domain.RewriteSymbol(strings.ToUpper(c.Param("symbol")))
	span.SetAttributes(attribute.String("symbol", symbol))

	quote, ok := h.resolver.Resolve(ctx, symbol, domain.CategoryNone)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "could not resolve symbol: " + symbol})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":      symbol,
		"base_symbol": quote.BaseSymbol,
		"category":    quote.Category,
		"price":       quote.Price,
		"change_pct":  quote.ChangePct,
		"volume":      quote.Volume,
		"website":     quote.Website,
		"exchanges":   quote.Exchanges,
	})
}
