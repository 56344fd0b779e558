package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wireirc/internal/app"
	"github.com/vovakirdan/wireirc/internal/config"
	"github.com/vovakirdan/wireirc/internal/log"
)

var (
	ircAddr  string
	httpAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the IRC listener and the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&ircAddr, "irc-addr", "", "IRC listen address (overrides config)")
		cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides config)")
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	bootLog := log.New(logLevel, logFormat, os.Stderr)

	cfg, path, err := config.Load(bootLog, configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(config.Config{
		IRCAddr:   ircAddr,
		HTTPAddr:  httpAddr,
		LogLevel:  logLevel,
		LogFormat: logFormat,
	})

	logger := log.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info().
		Str("config", path).
		Str("irc_addr", cfg.IRCAddr).
		Str("http_addr", cfg.HTTPAddr).
		Str("server_name", cfg.ServerName).
		Bool("password", cfg.PasswordHash != "").
		Msg("starting wireirc")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
