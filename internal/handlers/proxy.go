package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"pumpdash/dashboard/internal/apiclient"
	"pumpdash/dashboard/internal/notification"
)

// Proxy forwards a dashboard data call to the upstream through the
// context's API wrapper. Failures become error notifications.
func (h HandlerSet) Proxy(c *gin.Context) {
	pc, ok := mustContext(c)
	if !ok {
		return
	}

	method := c.Request.Method
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method_not_allowed"})
		return
	}

	var body any
	if method == http.MethodPost || method == http.MethodPut {
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
			return
		}
		if len(raw) > 0 {
			if !json.Valid(raw) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
				return
			}
			body = json.RawMessage(raw)
		}
	}

	opts := &apiclient.Options{Query: c.Request.URL.Query()}
	path := "/api" + c.Param("path")

	data, err := pc.API.Do(c.Request.Context(), method, path, body, opts)
	if err != nil {
		pc.Notifications.Add(err.Error(), notification.KindError)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if len(data) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}
