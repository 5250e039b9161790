package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pumpdash/dashboard/internal/notification"
	"pumpdash/dashboard/internal/router"
	"pumpdash/dashboard/internal/session"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type redirectResponse struct {
	Redirect string         `json:"redirect"`
	Session  *session.State `json:"session,omitempty"`
}

func (h HandlerSet) Login(c *gin.Context) {
	pc, ok := mustContext(c)
	if !ok {
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := pc.Session.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		pc.Notifications.Add(err.Error(), notification.KindError)

		status := http.StatusUnauthorized
		if errors.Is(err, session.ErrEmptyCredentials) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	st := pc.Session.Snapshot()
	c.JSON(http.StatusOK, redirectResponse{
		Redirect: h.table.Path(router.RouteDashboard),
		Session:  &st,
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	pc, ok := mustContext(c)
	if !ok {
		return
	}

	pc.Session.Logout(c.Request.Context())

	st := pc.Session.Snapshot()
	c.JSON(http.StatusOK, redirectResponse{
		Redirect: h.table.Path(router.RouteVisitor),
		Session:  &st,
	})
}

func (h HandlerSet) Session(c *gin.Context) {
	pc, ok := mustContext(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, pc.Session.Resolve(c.Request.Context()))
}
