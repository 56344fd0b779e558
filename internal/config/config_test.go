package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")

	// A second load reads the file it just wrote.
	again, _, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("irc_addr: \":7000\"\nserver_name: irc.file\nflush_delay: 250ms\nmailbox_size: 32\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("WIREIRC_SERVER_NAME", "irc.env")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.IRCAddr)
	assert.Equal(t, "irc.env", cfg.ServerName)
	assert.Equal(t, 250*time.Millisecond, cfg.FlushDelay)
	assert.Equal(t, 32, cfg.MailboxSize)
	assert.Equal(t, Default().SendQueue, cfg.SendQueue)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("password_hash: not-a-bcrypt-hash\n"), 0o600))

	_, _, err := Load(nil, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password_hash")
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{LogLevel: "debug", RelayTimeout: time.Second})

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.RelayTimeout)
	assert.Equal(t, Default().IRCAddr, cfg.IRCAddr)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	cfg := Default()
	cfg.MailboxSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ServerName = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.FlushDelay = -time.Second
	assert.Error(t, cfg.Validate())
}
