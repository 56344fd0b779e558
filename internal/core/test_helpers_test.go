package core

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wireirc/internal/proto"
	"github.com/vovakirdan/wireirc/internal/transport/conn"
)

const testTimeout = 2 * time.Second

func testOptions() Options {
	return Options{
		Server: proto.ServerInfo{
			Name:    "irc.test",
			Network: "TestNet",
			Version: "test",
			Created: time.Unix(0, 0),
		},
		RelayTimeout: time.Second,
	}
}

func newTestWorld(t *testing.T, opts Options) (*Root, *World) {
	t.Helper()

	root := NewRoot(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, root.Shutdown(ctx))
	})
	return root, NewWorld(root, conn.Options{WriteTimeout: time.Second})
}

// testClient is the client end of a piped connection.
type testClient struct {
	t    *testing.T
	nc   net.Conn
	r    *bufio.Reader
	done <-chan struct{}
}

func dial(t *testing.T, w *World) *testClient {
	t.Helper()

	server, client := net.Pipe()
	done, err := w.Accept(server)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return &testClient{t: t, nc: client, r: bufio.NewReader(client), done: done}
}

func (c *testClient) send(line string) {
	c.t.Helper()

	require.NoError(c.t, c.nc.SetWriteDeadline(time.Now().Add(testTimeout)))
	_, err := io.WriteString(c.nc, line+"\r\n")
	require.NoError(c.t, err)
}

func (c *testClient) readLine() string {
	c.t.Helper()

	require.NoError(c.t, c.nc.SetReadDeadline(time.Now().Add(testTimeout)))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err, "partial line %q", line)
	require.True(c.t, strings.HasSuffix(line, "\r\n"), "line %q is not terminated", line)
	return strings.TrimSuffix(line, "\r\n")
}

func (c *testClient) expect(want string) {
	c.t.Helper()
	require.Equal(c.t, want, c.readLine())
}

func (c *testClient) expectPrefix(prefix string) string {
	c.t.Helper()

	line := c.readLine()
	require.True(c.t, strings.HasPrefix(line, prefix), "line %q does not start with %q", line, prefix)
	return line
}

// expectClosed drains until the server closes the connection.
func (c *testClient) expectClosed() {
	c.t.Helper()

	require.NoError(c.t, c.nc.SetReadDeadline(time.Now().Add(testTimeout)))
	_, err := io.Copy(io.Discard, c.r)
	require.NoError(c.t, err)
	select {
	case <-c.done:
	case <-time.After(testTimeout):
		c.t.Fatal("connection was not torn down")
	}
}

// register completes registration and consumes the welcome burst.
func (c *testClient) register(nick string) {
	c.t.Helper()

	c.send("NICK " + nick)
	c.send("USER " + nick + " 0 * :" + nick + " Example")
	c.expectPrefix(":irc.test 001 " + nick + " ")
	c.expectPrefix(":irc.test 002 " + nick + " ")
	c.expectPrefix(":irc.test 003 " + nick + " ")
	c.expectPrefix(":irc.test 004 " + nick + " ")
}

// join joins room and consumes the echo and names burst.
func (c *testClient) join(nick, room string) string {
	c.t.Helper()

	c.send("JOIN " + room)
	c.expect(":" + nick + " JOIN :" + room)
	names := c.expectPrefix(":irc.test 353 " + nick + " = " + room + " :")
	c.expect(":irc.test 366 " + nick + " " + room + " :End of /NAMES list")
	return strings.TrimPrefix(names, ":irc.test 353 "+nick+" = "+room+" :")
}
