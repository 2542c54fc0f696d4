package server

import (
	"net/http"
	"time"

	"github.com/cnosuke/link-preview/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterOptions - Knobs for NewRouter
type RouterOptions struct {
	// AllowOrigins lists CORS origins; empty allows any origin.
	AllowOrigins []string
	// Auth is nil when sign-in is not configured.
	Auth auth.Provider
}

// NewRouter wires the HTTP API.
func NewRouter(p Previewer, opts RouterOptions) *gin.Engine {
	corsCfg := cors.DefaultConfig()
	if len(opts.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.AllowOrigins
		corsCfg.AllowCredentials = true
	}
	corsCfg.MaxAge = 12 * time.Hour

	router := gin.New()
	router.Use(requestLogger(), recovery(), cors.New(corsCfg))

	api := router.Group("/api")
	api.GET("/link-preview", linkPreviewHandler(p))

	registerAuthRoutes(router, opts.Auth)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}
