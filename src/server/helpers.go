package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

var defaultOriginPrefixes = []string{"http://127.0.0.1:", "http://localhost:"}

// -----------------------------------------------------------------------------

// originAllowed matches an Origin header against the allow list. Entries may
// be exact origins, "*", or a prefix ending in "*". Without an allow list only
// local development origins pass. Requests without an Origin are not from a
// browser and always pass.
func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}

	if len(allowed) == 0 {
		for _, prefix := range defaultOriginPrefixes {
			if strings.HasPrefix(origin, prefix) {
				return true
			}
		}
		return false
	}

	for _, a := range allowed {
		switch {
		case a == "*":
			return true
		case strings.HasSuffix(a, "*"):
			if strings.HasPrefix(origin, strings.TrimSuffix(a, "*")) {
				return true
			}
		case strings.EqualFold(a, origin):
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// corsMiddleware echoes allowed origins back and short-circuits preflights.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && originAllowed(allowed, origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
