package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pumpdash/dashboard/internal/middleware"
	"pumpdash/dashboard/internal/notification"
	"pumpdash/dashboard/internal/session"
)

type viewResponse struct {
	Route         string                      `json:"route"`
	Params        map[string]string           `json:"params,omitempty"`
	Session       session.State               `json:"session"`
	Notifications []notification.Notification `json:"notifications"`
}

// View returns the state a dashboard page needs once the guard let the
// navigation through.
func (h HandlerSet) View(c *gin.Context) {
	pc, ok := mustContext(c)
	if !ok {
		return
	}

	var params map[string]string
	if len(c.Params) > 0 {
		params = make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}
	}

	c.JSON(http.StatusOK, viewResponse{
		Route:         string(middleware.CurrentRoute(c)),
		Params:        params,
		Session:       pc.Session.Snapshot(),
		Notifications: pc.Notifications.List(),
	})
}
