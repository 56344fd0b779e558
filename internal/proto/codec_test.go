package proto

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{
			name: "bare command",
			line: "ping",
			want: Command{Name: "PING", Args: []string{}},
		},
		{
			name: "nick",
			line: "NICK bob",
			want: Command{Name: "NICK", Args: []string{"bob"}},
		},
		{
			name: "user with trailing realname",
			line: "USER b 0 0 :Bob B",
			want: Command{Name: "USER", Args: []string{"b", "0", "0", "Bob B"}},
		},
		{
			name: "prefix",
			line: ":alice PRIVMSG carol :hi there",
			want: Command{Prefix: "alice", Name: "PRIVMSG", Args: []string{"carol", "hi there"}},
		},
		{
			name: "mixed case token is uppercased, args are not",
			line: "PrivMsg Carol Hi",
			want: Command{Name: "PRIVMSG", Args: []string{"Carol", "Hi"}},
		},
		{
			name: "trailing keeps colons and spaces verbatim",
			line: "PRIVMSG x ::-) a  b",
			want: Command{Name: "PRIVMSG", Args: []string{"x", ":-) a  b"}},
		},
		{
			name: "empty trailing",
			line: "PRIVMSG x :",
			want: Command{Name: "PRIVMSG", Args: []string{"x", ""}},
		},
		{
			name: "double space yields empty middle argument",
			line: "A b  c",
			want: Command{Name: "A", Args: []string{"b", "", "c"}},
		},
		{
			name: "non utf8 bytes survive",
			line: "PRIVMSG x :\xff\xfe",
			want: Command{Name: "PRIVMSG", Args: []string{"x", "\xff\xfe"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine([]byte(tt.line))
			require.True(t, ok)
			assert.Equal(t, tt.want.Prefix, got.Prefix)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.Equal(t, tt.want.Args, got.Args)
		})
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	for _, line := range []string{"", ":onlyprefix", ":prefix ", ":"} {
		_, ok := ParseLine([]byte(line))
		assert.False(t, ok, "line %q", line)
	}
}

func TestParseUsesMessageData(t *testing.T) {
	cmd, ok := Parse(InMessage{Time: time.Now(), Data: []byte("cap LS 302")})
	require.True(t, ok)
	assert.Equal(t, "CAP", cmd.Name)
	assert.Equal(t, []string{"LS", "302"}, cmd.Args)
}

func TestDump(t *testing.T) {
	before := time.Now()
	out := Dump(Command{Prefix: "alice", Name: "PRIVMSG", Args: []string{"carol", "hi"}}, 500*time.Millisecond)

	assert.Equal(t, ":alice PRIVMSG carol :hi\r\n", string(out.Data))
	assert.False(t, out.Deadline.Before(before.Add(500*time.Millisecond)))
	assert.True(t, out.Deadline.Before(time.Now().Add(time.Second)))
}

func TestDumpWithoutArgsOrPrefix(t *testing.T) {
	out := Dump(Command{Name: "PING"}, 0)
	assert.Equal(t, "PING\r\n", string(out.Data))
}

func TestRoundTrip(t *testing.T) {
	frames := []string{
		"NICK bob",
		":bob PRIVMSG carol :hi there",
		"USER b 0 0 :Bob B",
		"JOIN #room",
		"PRIVMSG #room ::leading colon",
		"QUIT :",
	}

	for _, frame := range frames {
		first, ok := ParseLine([]byte(frame))
		require.True(t, ok, frame)

		wire := Dump(first, 0).Data
		require.True(t, strings.HasSuffix(string(wire), Terminator))

		second, ok := ParseLine(wire[:len(wire)-len(Terminator)])
		require.True(t, ok, frame)
		assert.Equal(t, first.Prefix, second.Prefix, frame)
		assert.Equal(t, first.Name, second.Name, frame)
		assert.Equal(t, first.Args, second.Args, frame)
	}
}

func TestWelcomeIsFourTerminatedLines(t *testing.T) {
	info := ServerInfo{Name: "irc.test", Network: "Test", Version: "dev", Created: time.Unix(0, 0)}
	lines := Welcome(info, "bob")
	require.Len(t, lines, 4)

	codes := []string{RplWelcome, RplYourHost, RplCreated, RplMyInfo}
	for i, cmd := range lines {
		assert.Equal(t, codes[i], cmd.Name)
		assert.Equal(t, "bob", cmd.Arg(0))
		assert.True(t, strings.HasSuffix(string(Dump(cmd, 0).Data), Terminator))
	}
}

func TestReplyWithoutNickUsesStar(t *testing.T) {
	cmd := Reply("irc.test", ErrNicknameInUse, "", "bob", "Nickname is already in use")
	assert.Equal(t, ":irc.test 433 * bob :Nickname is already in use\r\n", string(Dump(cmd, 0).Data))
}
