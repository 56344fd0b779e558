package http

import (
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireirc/internal/core"
)

// WSHandler upgrades HTTP connections and hands them to the world as
// ordinary IRC sessions. Clients send CRLF-terminated lines in text frames.
type WSHandler struct {
	world   *core.World
	limiter *rateLimiter
	log     *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(world *core.World, limiter *rateLimiter, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{world: world, limiter: limiter, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if !h.limiter.allow() {
		h.log.Warn().Str("remote_addr", r.RemoteAddr).Msg("ws accept rate limited")
		stdhttp.Error(w, "too many connections", stdhttp.StatusTooManyRequests)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	ws.SetReadLimit(4096)

	ctx := r.Context()
	nc := websocket.NetConn(ctx, ws, websocket.MessageText)

	done, err := h.world.Accept(nc)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws session rejected")
		_ = ws.Close(websocket.StatusTryAgainLater, "server shutting down")
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
	_ = ws.Close(websocket.StatusNormalClosure, "closing")
}
