package web

import "github.com/gin-gonic/gin"

// XForwarded restores the scheme and host seen by the reverse proxy so that
// absolute image URLs built further down are correct.
func XForwarded(defaultScheme string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hdr := c.GetHeader("X-Forwarded-Proto"); hdr != "" {
			c.Request.URL.Scheme = hdr
		} else {
			c.Request.URL.Scheme = defaultScheme
		}
		if hdr := c.GetHeader("X-Forwarded-Host"); hdr != "" {
			c.Request.Host = hdr
		}

		c.Next()
	}
}
