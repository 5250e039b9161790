package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"pumpdash/dashboard/internal/config"
)

// OriginPolicy decides which browser origins may call the gateway with
// credentials.
type OriginPolicy struct {
	allowAll bool
	origins  map[string]struct{}
}

// NewOriginPolicy admits the listed origins. An empty list admits every
// origin only when permissive is set.
func NewOriginPolicy(allowedOrigins []string, permissive bool) OriginPolicy {
	p := OriginPolicy{
		allowAll: len(allowedOrigins) == 0 && permissive,
		origins:  make(map[string]struct{}, len(allowedOrigins)),
	}
	for _, origin := range allowedOrigins {
		p.origins[strings.TrimSpace(origin)] = struct{}{}
	}
	return p
}

// OriginPolicyFor builds the policy for cfg. Production never falls back
// to admitting every origin.
func OriginPolicyFor(cfg *config.AppConfig) OriginPolicy {
	return NewOriginPolicy(cfg.AllowCORSOrigins, cfg.Environment != "production")
}

func (p OriginPolicy) Allowed(origin string) bool {
	if p.allowAll {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// SameHost reports whether origin points at host, the case browsers use
// for the gateway's own pages.
func SameHost(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

func CORS(policy OriginPolicy) gin.HandlerFunc {

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Add("Vary", "Origin")
			if policy.Allowed(origin) {
				// the page-context cookie must travel with cross-origin calls
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
