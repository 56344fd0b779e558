// Package app wires the directory, the IRC listener and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wireirc/internal/config"
	"github.com/vovakirdan/wireirc/internal/core"
	"github.com/vovakirdan/wireirc/internal/proto"
	"github.com/vovakirdan/wireirc/internal/transport/conn"
	transporthttp "github.com/vovakirdan/wireirc/internal/transport/http"
)

// Version is reported in the welcome burst. Overridden at build time.
var Version = "wireirc-dev"

// App wires together core and transport layers.
type App struct {
	cfg   config.Config
	root  *core.Root
	world *core.World
	http  *stdhttp.Server
	log   *zerolog.Logger

	ircLn  net.Listener
	httpLn net.Listener
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	root := core.NewRoot(core.Options{
		Server: proto.ServerInfo{
			Name:    cfg.ServerName,
			Network: cfg.NetworkName,
			Version: Version,
			Created: time.Now(),
		},
		PasswordHash:    cfg.PasswordHash,
		MailboxSize:     cfg.MailboxSize,
		BroadcastBuffer: cfg.BroadcastBuffer,
		FlushDelay:      cfg.FlushDelay,
		RelayTimeout:    cfg.RelayTimeout,
		Logger:          logger,
	})
	world := core.NewWorld(root, conn.Options{
		InboundQueue: cfg.InboundQueue,
		SendQueue:    cfg.SendQueue,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       logger,
	})

	a := &App{cfg: cfg, root: root, world: world, log: logger}
	if cfg.HTTPAddr != "" {
		a.http = transporthttp.NewServer(world, cfg, logger)
	}
	return a, nil
}

// Listen binds the configured addresses. Run calls it when needed.
func (a *App) Listen() error {
	if a.ircLn != nil {
		return nil
	}

	ln, err := net.Listen("tcp", a.cfg.IRCAddr)
	if err != nil {
		return fmt.Errorf("listen irc %s: %w", a.cfg.IRCAddr, err)
	}
	if a.http != nil {
		httpLn, err := net.Listen("tcp", a.cfg.HTTPAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen http %s: %w", a.cfg.HTTPAddr, err)
		}
		a.httpLn = httpLn
	}
	a.ircLn = ln
	return nil
}

// IRCAddr returns the bound IRC address, or nil before Listen.
func (a *App) IRCAddr() net.Addr {
	if a.ircLn == nil {
		return nil
	}
	return a.ircLn.Addr()
}

// HTTPAddr returns the bound HTTP address, or nil when HTTP is disabled.
func (a *App) HTTPAddr() net.Addr {
	if a.httpLn == nil {
		return nil
	}
	return a.httpLn.Addr()
}

// Run serves until ctx is cancelled or a listener fails, then shuts every
// session down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.world.Serve(gctx, a.ircLn)
	})

	if a.http != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", a.httpLn.Addr().String()).Msg("http server started")
			if err := a.http.Serve(a.httpLn); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()

			a.log.Info().Msg("shutting down http server")
			return a.http.Shutdown(shutdownCtx)
		})
	}

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	a.log.Info().Msg("closing sessions")
	if err := a.root.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("sessions did not stop in time")
		if runErr == nil {
			runErr = fmt.Errorf("shutdown: %w", err)
		}
	}
	return runErr
}
