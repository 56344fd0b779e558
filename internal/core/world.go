package core

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireirc/internal/transport/conn"
	"github.com/vovakirdan/wireirc/internal/utils"
)

// World registers every accepted connection as a new user.
type World struct {
	dir      Directory
	connOpts conn.Options
	log      zerolog.Logger
}

// NewWorld binds connections to root's directory. connOpts is applied to
// every watched socket; SessionID is filled in per connection.
func NewWorld(root *Root, connOpts conn.Options) *World {
	log := root.data.log
	if connOpts.Logger != nil {
		log = *connOpts.Logger
	}
	return &World{
		dir:      root.Share(),
		connOpts: connOpts,
		log:      log.With().Str("component", "world").Logger(),
	}
}

// Directory returns the shared directory handle.
func (w *World) Directory() Directory {
	return w.dir
}

// Accept watches nc and starts a user for it. The returned channel is
// closed once the connection is fully torn down.
func (w *World) Accept(nc net.Conn) (<-chan struct{}, error) {
	opts := w.connOpts
	opts.SessionID = utils.NewID()

	c := conn.Watch(nc, opts)
	id, err := w.dir.CreateUser(c)
	if err != nil {
		c.Abort()
		return c.Done(), fmt.Errorf("create user: %w", err)
	}
	w.log.Debug().Str("session_id", opts.SessionID).Stringer("user_id", id).Str("remote_addr", c.RemoteAddr()).Msg("connection accepted")
	return c.Done(), nil
}

// Serve accepts connections from ln until ctx ends or ln is closed.
func (w *World) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	w.log.Info().Str("addr", ln.Addr().String()).Msg("irc listener started")
	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				w.log.Info().Msg("irc listener stopped")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		if _, err := w.Accept(nc); err != nil {
			w.log.Warn().Err(err).Msg("connection rejected")
		}
	}
}
