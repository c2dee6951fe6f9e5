package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"tickerfeed/internal/domain"
)

// GetMentions returns the rolling 24-hour mention table for one category,
// ranked by mention count.
func (h *Handler) GetMentions(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-mentions")
	defer span.End()

	category := domain.Category(strings.ToLower(c.Param("category")))
	span.SetAttributes(attribute.String("category", string(category)))

	if h.mentions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "mention store not configured"})
		return
	}

	switch category {
	case domain.CategoryCrypto, domain.CategoryStocks, domain.CategoryForex:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":                "unsupported category: " + string(category),
			"supported_categories": []string{"crypto", "stocks", "forex"},
		})
		return
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	since := timeNow().Add(-domain.MentionWindow)
	rows, err := h.mentions.TopMentioned(ctx, category, since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
		"mentions": rows,
	})
}
