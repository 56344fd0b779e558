// Package http exposes the status API and the WebSocket gateway.
package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireirc/internal/config"
	"github.com/vovakirdan/wireirc/internal/core"
)

// NewServer builds the HTTP server: health, stats and the /ws gateway.
func NewServer(world *core.World, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(world, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(world *core.World, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	api := NewAPIHandlers(world.Directory(), logger)
	router.GET("/health", api.Health)
	router.GET("/api/stats", api.Stats)

	ws := NewWSHandler(world, newRateLimiter(cfg.WSAcceptLimit), logger)
	router.GET("/ws", gin.WrapH(ws))

	return router
}
