package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pumpdash/dashboard/internal/notification"
)

// Recovery turns a panic into a 500. When the request belongs to a page
// context the failure is also recorded on its session and shown to the user.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("error", r).
					Str("request_id", GetRequestID(c)).
					Msg("panic recovered")

				if pc, ok := CurrentContext(c); ok {
					pc.Session.RecordError(fmt.Errorf("%v", r))
					pc.Notifications.Add("Something went wrong, please try again.", notification.KindError)
				}

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal_server_error",
				})
			}
		}()
		c.Next()
	}
}
