package app

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wireirc/internal/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.IRCAddr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.ServerName = "irc.test"
	cfg.FlushDelay = 0
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestRunServesAndShutsDown(t *testing.T) {
	logger := zerolog.Nop()
	a, err := New(testConfig(), &logger)
	require.NoError(t, err)
	require.NoError(t, a.Listen())
	require.NotNil(t, a.HTTPAddr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	nc, err := net.DialTimeout("tcp", a.IRCAddr().String(), time.Second)
	require.NoError(t, err)
	defer nc.Close()
	require.NoError(t, nc.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = fmt.Fprint(nc, "NICK alice\r\nUSER alice 0 * :Alice\r\n")
	require.NoError(t, err)
	r := bufio.NewReader(nc)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, ":irc.test 001 alice "), line)

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// The session was told why it ended.
	var rest strings.Builder
	for {
		l, err := r.ReadString('\n')
		rest.WriteString(l)
		if err != nil {
			break
		}
	}
	assert.Contains(t, rest.String(), "ERROR :Closing Link: ")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	logger := zerolog.Nop()
	cfg := testConfig()
	cfg.ServerName = ""

	_, err := New(cfg, &logger)
	require.Error(t, err)
}
