package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pumpdash/dashboard/internal/app"
	"pumpdash/dashboard/internal/config"
	"pumpdash/dashboard/internal/ids"
	"pumpdash/dashboard/internal/notification"
	"pumpdash/dashboard/internal/router"
)

const (
	pageContextKey = "page_context"
	routeKey       = "route"
)

// PageContext attaches the caller's page-session context, creating one and
// setting the cookie on first contact.
func PageContext(cfg config.ContextConfig, manager *app.Manager, log zerolog.Logger) gin.HandlerFunc {
	maxAge := int(cfg.IdleTTL.Seconds())

	return func(c *gin.Context) {
		if id, err := c.Cookie(cfg.CookieName); err == nil && ids.Valid(id) {
			if pc, ok := manager.Get(id); ok {
				c.Set(pageContextKey, pc)
				c.Next()
				return
			}
		}

		pc, err := manager.Create()
		if errors.Is(err, app.ErrContextLimit) {
			log.Warn().Int("contexts", manager.Len()).Msg("page context limit reached")
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "too_many_contexts"})
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("create page context failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "context_unavailable"})
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, pc.ID, maxAge, "/", "", cfg.SecureCookie, true)
		c.Set(pageContextKey, pc)
		c.Next()
	}
}

func CurrentContext(c *gin.Context) (*app.Context, bool) {
	v, ok := c.Get(pageContextKey)
	if !ok {
		return nil, false
	}
	pc, ok := v.(*app.Context)
	return pc, ok && pc != nil
}

// RequireSession rejects calls from contexts that do not resolve to a
// signed-in user.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		pc, ok := CurrentContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if st := pc.Session.Resolve(c.Request.Context()); !st.LoggedIn {
			pc.Notifications.Add(router.MsgNotLoggedIn, notification.KindError)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not_logged_in"})
			return
		}

		c.Next()
	}
}

// MsgTooManyLogins is shown when a context exhausts its login bucket.
const MsgTooManyLogins = "Too many login attempts, please wait."

// LoginThrottle limits login attempts per page context.
func LoginThrottle() gin.HandlerFunc {
	return func(c *gin.Context) {
		pc, ok := CurrentContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "context_missing"})
			return
		}

		if pc.LoginLimiter != nil && !pc.LoginLimiter.Allow() {
			pc.Notifications.Add(MsgTooManyLogins, notification.KindError)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too_many_attempts"})
			return
		}

		c.Next()
	}
}
