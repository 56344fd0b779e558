package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/wireirc/internal/auth"
)

// Config holds server configuration values.
type Config struct {
	IRCAddr     string `mapstructure:"irc_addr" yaml:"irc_addr"`
	HTTPAddr    string `mapstructure:"http_addr" yaml:"http_addr"`
	ServerName  string `mapstructure:"server_name" yaml:"server_name"`
	NetworkName string `mapstructure:"network_name" yaml:"network_name"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat   string `mapstructure:"log_format" yaml:"log_format"`

	// PasswordHash is a bcrypt hash; see the hash-password command.
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash"`

	MailboxSize     int `mapstructure:"mailbox_size" yaml:"mailbox_size"`
	InboundQueue    int `mapstructure:"inbound_queue" yaml:"inbound_queue"`
	SendQueue       int `mapstructure:"send_queue" yaml:"send_queue"`
	BroadcastBuffer int `mapstructure:"broadcast_buffer" yaml:"broadcast_buffer"`

	// WSAcceptLimit caps WebSocket upgrades per minute; 0 means unlimited.
	WSAcceptLimit int `mapstructure:"ws_accept_limit" yaml:"ws_accept_limit"`

	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	FlushDelay        time.Duration `mapstructure:"flush_delay" yaml:"flush_delay"`
	RelayTimeout      time.Duration `mapstructure:"relay_timeout" yaml:"relay_timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		IRCAddr:     ":6667",
		HTTPAddr:    ":8080",
		ServerName:  "irc.wireirc.local",
		NetworkName: "WireIRC",
		LogLevel:    "info",
		LogFormat:   "console",

		MailboxSize:     8,
		InboundQueue:    64,
		SendQueue:       512,
		BroadcastBuffer: 256,

		WriteTimeout:      10 * time.Second,
		FlushDelay:        500 * time.Millisecond,
		RelayTimeout:      2 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.IRCAddr != "" {
		c.IRCAddr = other.IRCAddr
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.ServerName != "" {
		c.ServerName = other.ServerName
	}
	if other.NetworkName != "" {
		c.NetworkName = other.NetworkName
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.PasswordHash != "" {
		c.PasswordHash = other.PasswordHash
	}
	if other.MailboxSize != 0 {
		c.MailboxSize = other.MailboxSize
	}
	if other.InboundQueue != 0 {
		c.InboundQueue = other.InboundQueue
	}
	if other.SendQueue != 0 {
		c.SendQueue = other.SendQueue
	}
	if other.BroadcastBuffer != 0 {
		c.BroadcastBuffer = other.BroadcastBuffer
	}
	if other.WSAcceptLimit != 0 {
		c.WSAcceptLimit = other.WSAcceptLimit
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.FlushDelay != 0 {
		c.FlushDelay = other.FlushDelay
	}
	if other.RelayTimeout != 0 {
		c.RelayTimeout = other.RelayTimeout
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}

// Validate reports the first setting the server cannot start with.
func (c Config) Validate() error {
	switch {
	case c.IRCAddr == "":
		return errors.New("irc_addr is required")
	case c.ServerName == "":
		return errors.New("server_name is required")
	case c.MailboxSize < 1, c.InboundQueue < 1, c.SendQueue < 1, c.BroadcastBuffer < 1:
		return errors.New("queue sizes must be positive")
	case c.WSAcceptLimit < 0:
		return errors.New("ws_accept_limit must not be negative")
	case c.FlushDelay < 0:
		return errors.New("flush_delay must not be negative")
	case c.WriteTimeout <= 0, c.RelayTimeout <= 0:
		return errors.New("write_timeout and relay_timeout must be positive")
	}
	if err := auth.ValidateHash(c.PasswordHash); err != nil {
		return fmt.Errorf("password_hash: %w", err)
	}
	return nil
}
