package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) ListNotifications(c *gin.Context) {
	pc, ok := mustContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": pc.Notifications.List()})
}

// Hold, resume and remove answer 204 for unknown ids as well.

func (h HandlerSet) HoldNotification(c *gin.Context) {
	pc, ok := mustContext(c)
	if !ok {
		return
	}
	pc.Notifications.Hold(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) ResumeNotification(c *gin.Context) {
	pc, ok := mustContext(c)
	if !ok {
		return
	}
	pc.Notifications.Resume(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) RemoveNotification(c *gin.Context) {
	pc, ok := mustContext(c)
	if !ok {
		return
	}
	pc.Notifications.Remove(c.Param("id"))
	c.Status(http.StatusNoContent)
}
