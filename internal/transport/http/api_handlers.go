package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireirc/internal/core"
)

// APIHandlers serves the read-only status endpoints.
type APIHandlers struct {
	dir core.Directory
	log *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(dir core.Directory, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		dir: dir,
		log: logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health reports liveness.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Stats reports connected users and room sizes.
// GET /api/stats
func (h *APIHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, statsResponseFromCore(h.dir.Stats()))
}
