package proto

import "time"

// Numeric reply codes used by the server.
const (
	RplWelcome  = "001"
	RplYourHost = "002"
	RplCreated  = "003"
	RplMyInfo   = "004"
	RplNamReply = "353"
	RplEndNames = "366"

	ErrNoSuchNick       = "401"
	ErrNoSuchChannel    = "403"
	ErrCannotSendToChan = "404"
	ErrUnknownCommand   = "421"
	ErrErroneusNickname = "432"
	ErrNicknameInUse    = "433"
	ErrNotOnChannel     = "442"
	ErrNotRegistered    = "451"
	ErrNeedMoreParams   = "461"
	ErrAlreadyRegistred = "462"
	ErrPasswdMismatch   = "464"
)

// Command names the server understands.
const (
	CmdCap     = "CAP"
	CmdPass    = "PASS"
	CmdNick    = "NICK"
	CmdUser    = "USER"
	CmdPing    = "PING"
	CmdPong    = "PONG"
	CmdPrivmsg = "PRIVMSG"
	CmdJoin    = "JOIN"
	CmdPart    = "PART"
	CmdQuit    = "QUIT"
	CmdError   = "ERROR"
)

// RoomSigil starts every room name.
const RoomSigil = '#'

// Reply builds a numeric reply from server addressed to nick. Until a client
// has a nick, "*" stands in for it.
func Reply(server, code, nick string, params ...string) Command {
	if nick == "" {
		nick = "*"
	}
	args := make([]string, 0, len(params)+1)
	args = append(args, nick)
	args = append(args, params...)
	return Command{Prefix: server, Name: code, Args: args}
}

// ServerInfo feeds the welcome burst.
type ServerInfo struct {
	Name    string
	Network string
	Version string
	Created time.Time
}

// Welcome returns the four numeric lines sent when registration completes.
func Welcome(info ServerInfo, nick string) []Command {
	return []Command{
		Reply(info.Name, RplWelcome, nick, "Welcome to the "+info.Network+" IRC network, "+nick),
		Reply(info.Name, RplYourHost, nick, "Your host is "+info.Name+", running version "+info.Version),
		Reply(info.Name, RplCreated, nick, "This server was created "+info.Created.UTC().Format(time.RFC1123)),
		Reply(info.Name, RplMyInfo, nick, info.Name+" "+info.Version+" o o"),
	}
}
