package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Upstream    string `json:"upstream"`
	Contexts    int    `json:"contexts"`
	Environment string `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	upstreamStatus := "ok"
	if h.upstream != nil {
		if _, err := h.upstream.Get(ctx, h.cfg.Upstream.HealthPath, nil); err != nil {
			upstreamStatus = "error"
			h.log.Error().Err(err).Msg("upstream health check failed")
		}
	}

	c.JSON(http.StatusOK, healthResponse{
		Status:      "ok",
		Upstream:    upstreamStatus,
		Contexts:    h.contexts.Len(),
		Environment: h.cfg.Environment,
	})
}
