package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "healthy"}
	if h.watermark != nil {
		resp["latest_tweet_id"] = h.watermark.Watermark()
	}
	c.JSON(http.StatusOK, resp)
}
