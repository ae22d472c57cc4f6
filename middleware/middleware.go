package middleware

import (
	"strings"
	"time"

	"pointstream/api"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the configured origins; "*" allows every origin.
func CORS(allowedOrigins string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Accept-Encoding"},
		ExposeHeaders: []string{"Content-Type", "Content-Encoding", api.HeaderChunkPoints},
		MaxAge:        12 * time.Hour,
	}
	if allowedOrigins == "" || allowedOrigins == "*" {
		cfg.AllowAllOrigins = true
	} else {
		for _, origin := range strings.Split(allowedOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
			}
		}
	}
	return cors.New(cfg)
}

// RequestLogger logs each request with its status, encoding and latency.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"encoding": c.Writer.Header().Get("Content-Encoding"),
			"bytes":    c.Writer.Size(),
			"latency":  time.Since(start).String(),
			"client":   c.ClientIP(),
		}).Info("http.request")
	}
}
