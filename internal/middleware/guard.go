package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pumpdash/dashboard/internal/router"
)

// Guard runs the navigator before a dashboard route is served and turns
// a redirect decision into a 302 to the target's path.
func Guard(route router.Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		pc, ok := CurrentContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "context_missing"})
			return
		}

		c.Set(routeKey, string(route.Name))

		decision := pc.Navigator.Navigate(c.Request.Context(), route.Name)
		if !decision.Allowed() {
			target := pc.Navigator.Table().Path(decision.Target)
			if strings.Contains(target, ":") || target == "" {
				target = "/"
			}
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}

		c.Next()
	}
}

func CurrentRoute(c *gin.Context) router.Name {
	return router.Name(c.GetString(routeKey))
}
