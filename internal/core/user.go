package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireirc/internal/auth"
	"github.com/vovakirdan/wireirc/internal/cancel"
	"github.com/vovakirdan/wireirc/internal/proto"
	"github.com/vovakirdan/wireirc/internal/transport/conn"
)

const (
	maxNickLen   = 30
	maxRoomLen   = 50
	joinAttempts = 3
)

// user is the directory's handle to a running user actor.
type user struct {
	id      UserID
	mailbox Mailbox[UserMessage]
	guard   *cancel.Guard
	conn    *conn.Conn
}

// card collects what the client told us before registration.
type card struct {
	nick     string
	username string
	realname string
	password string
}

type membership struct {
	name    string
	mailbox Mailbox[RoomMessage]
}

// userState is owned by the user goroutine.
type userState struct {
	id      UserID
	dir     Directory
	opts    Options
	log     zerolog.Logger
	conn    *conn.Conn
	guard   *cancel.Guard
	mailbox Mailbox[UserMessage]

	ctx   context.Context
	inbox <-chan UserMessage
	done  chan struct{}

	card       card
	registered bool
	rooms      map[RoomID]*membership
	roomNames  map[string]RoomID

	// seenNicks remembers the last rename rendered per peer; a peer sharing
	// several rooms is reported once.
	seenNicks map[UserID]string

	quitReason string
	finished   bool
	killed     bool
}

func newUser(id UserID, c *conn.Conn, dir Directory, opts Options) (*user, *userState) {
	guard, ctx := cancel.New(context.Background())
	mb, inbox, done := newMailbox[UserMessage](opts.MailboxSize)

	h := &user{id: id, mailbox: mb, guard: guard, conn: c}
	st := &userState{
		id:      id,
		dir:     dir,
		opts:    opts,
		log:     opts.Logger.With().Stringer("user_id", id).Str("session_id", c.SessionID()).Logger(),
		conn:    c,
		guard:   guard,
		mailbox: mb,
		ctx:     ctx,
		inbox:   inbox,
		done:    done,

		rooms:     make(map[RoomID]*membership),
		roomNames: make(map[string]RoomID),
		seenNicks: make(map[UserID]string),
	}
	return h, st
}

func (s *userState) run() {
	s.log.Info().Str("remote_addr", s.conn.RemoteAddr()).Msg("session opened")
	defer s.kill()

	for !s.finished {
		select {
		case <-s.ctx.Done():
			s.closeLink("Server shutting down")
			s.finished = true
		case msg, ok := <-s.conn.Inbound():
			if !ok {
				s.log.Debug().Msg("connection closed")
				s.finished = true
				continue
			}
			cmd, ok := proto.Parse(msg)
			if !ok {
				s.log.Debug().Stringer("message", msg).Msg("unparsable message dropped")
				continue
			}
			s.handleError(s.handleClient(cmd))
		case msg := <-s.inbox:
			s.handleError(s.handleServer(msg))
		}
	}
}

func (s *userState) handleError(err error) {
	if err == nil {
		return
	}

	var re *ReplyError
	switch {
	case errors.As(err, &re):
		params := make([]string, 0, len(re.Params)+1)
		params = append(params, re.Params...)
		params = append(params, re.Message)
		s.reply(re.Code, params...)
		if re.Fatal {
			s.finished = true
		}
	case errors.Is(err, errQuit):
		s.finished = true
	default:
		s.log.Warn().Err(err).Msg("session failed")
		s.finished = true
	}
}

func (s *userState) handleClient(cmd proto.Command) error {
	if s.registered {
		return s.handleActive(cmd)
	}
	return s.handlePrelogin(cmd)
}

func (s *userState) handlePrelogin(cmd proto.Command) error {
	switch cmd.Name {
	case proto.CmdCap, proto.CmdPong:
		return nil
	case proto.CmdPing:
		return s.pong(cmd)
	case proto.CmdQuit:
		return s.quit(cmd)
	case proto.CmdPass:
		if len(cmd.Args) != 1 {
			return needMoreParams(cmd.Name)
		}
		s.card.password = cmd.Args[0]
	case proto.CmdNick:
		if len(cmd.Args) != 1 {
			return needMoreParams(cmd.Name)
		}
		if !validNick(cmd.Args[0]) {
			return replyError(proto.ErrErroneusNickname, "Erroneous nickname", cmd.Args[0])
		}
		s.card.nick = cmd.Args[0]
	case proto.CmdUser:
		if len(cmd.Args) != 4 {
			return needMoreParams(cmd.Name)
		}
		s.card.username = cmd.Args[0]
		s.card.realname = cmd.Args[3]
	default:
		return replyError(proto.ErrNotRegistered, "You have not registered")
	}
	return s.tryRegister()
}

func (s *userState) tryRegister() error {
	if s.card.nick == "" || s.card.username == "" {
		return nil
	}

	if err := auth.CheckPassword(s.opts.PasswordHash, s.card.password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.log.Info().Str("nick", s.card.nick).Msg("registration rejected: bad password")
			re := replyError(proto.ErrPasswdMismatch, "Password incorrect")
			re.Fatal = true
			return re
		}
		return err
	}

	nick := s.card.nick
	if err := s.dir.ChangeNick(s.id, nick); err != nil {
		if errors.Is(err, ErrNickInUse) {
			s.card.nick = ""
			return replyError(proto.ErrNicknameInUse, "Nickname is already in use", nick)
		}
		return err
	}

	s.registered = true
	for _, line := range proto.Welcome(s.opts.Server, nick) {
		s.send(line, 0)
	}
	s.log.Info().Str("nick", nick).Str("username", s.card.username).Str("realname", s.card.realname).Msg("user registered")
	return nil
}

func (s *userState) handleActive(cmd proto.Command) error {
	switch cmd.Name {
	case proto.CmdCap, proto.CmdPong:
		return nil
	case proto.CmdPing:
		return s.pong(cmd)
	case proto.CmdPrivmsg:
		return s.privmsg(cmd)
	case proto.CmdJoin:
		return s.join(cmd)
	case proto.CmdPart:
		return s.part(cmd)
	case proto.CmdNick:
		return s.rename(cmd)
	case proto.CmdQuit:
		return s.quit(cmd)
	case proto.CmdUser, proto.CmdPass:
		return replyError(proto.ErrAlreadyRegistred, "You may not reregister")
	default:
		return replyError(proto.ErrUnknownCommand, "Unknown command", cmd.Name)
	}
}

func (s *userState) pong(cmd proto.Command) error {
	if len(cmd.Args) < 1 {
		return needMoreParams(cmd.Name)
	}
	server := s.opts.Server.Name
	s.send(proto.Command{Prefix: server, Name: proto.CmdPong, Args: []string{server, cmd.Args[0]}}, 0)
	return nil
}

func (s *userState) quit(cmd proto.Command) error {
	s.quitReason = "Client Quit"
	if msg := cmd.Arg(0); msg != "" {
		s.quitReason = "Quit: " + msg
	}
	s.closeLink(s.quitReason)
	return errQuit
}

func (s *userState) closeLink(reason string) {
	s.send(proto.Command{
		Name: proto.CmdError,
		Args: []string{"Closing Link: " + s.conn.RemoteAddr() + " (" + reason + ")"},
	}, 0)
}

func (s *userState) privmsg(cmd proto.Command) error {
	if len(cmd.Args) != 2 {
		return needMoreParams(cmd.Name)
	}
	target, text := cmd.Args[0], cmd.Args[1]

	if isRoomName(target) {
		return s.roomPrivmsg(target, text)
	}
	if target == s.card.nick {
		s.send(proto.Command{Prefix: s.card.nick, Name: proto.CmdPrivmsg, Args: []string{target, text}}, s.opts.FlushDelay)
		return nil
	}

	mb, ok := s.dir.MailboxByNick(target)
	if !ok {
		return replyError(proto.ErrNoSuchNick, "No such nick/channel", target)
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.RelayTimeout)
	defer cancel()
	if err := mb.Send(ctx, DirectMessage{From: s.card.nick, Target: target, Text: text}); err != nil {
		s.log.Debug().Err(err).Str("target", target).Msg("direct message not delivered")
		return replyError(proto.ErrNoSuchNick, "No such nick/channel", target)
	}
	return nil
}

func (s *userState) roomPrivmsg(name, text string) error {
	id, ok := s.roomNames[name]
	if !ok {
		if _, exists := s.dir.RoomByName(name); !exists {
			return replyError(proto.ErrNoSuchChannel, "No such channel", name)
		}
		return replyError(proto.ErrCannotSendToChan, "Cannot send to channel", name)
	}
	mem := s.rooms[id]

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.RelayTimeout)
	defer cancel()
	if err := mem.mailbox.Send(ctx, RoomPrivmsg{User: s.id, Nick: s.card.nick, Text: text}); err != nil {
		if errors.Is(err, ErrMailboxClosed) {
			s.forget(id)
		}
		s.log.Debug().Err(err).Str("room", name).Msg("room message not delivered")
		return replyError(proto.ErrCannotSendToChan, "Cannot send to channel", name)
	}
	return nil
}

func (s *userState) join(cmd proto.Command) error {
	if len(cmd.Args) < 1 {
		return needMoreParams(cmd.Name)
	}
	for _, name := range strings.Split(cmd.Args[0], ",") {
		err := s.joinRoom(name)
		var re *ReplyError
		if errors.As(err, &re) {
			s.handleError(re)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *userState) joinRoom(name string) error {
	if !isRoomName(name) {
		return replyError(proto.ErrNoSuchChannel, "No such channel", name)
	}
	if id, ok := s.roomNames[name]; ok {
		if !closed(s.rooms[id].mailbox.Done()) {
			return nil
		}
		s.forget(id)
	}

	for range joinAttempts {
		id, mb, err := s.dir.EnsureRoom(name)
		if err != nil {
			return err
		}

		res, err := s.requestJoin(mb)
		if errors.Is(err, ErrMailboxClosed) {
			// The room retired between lookup and join.
			continue
		}
		if err != nil {
			return err
		}

		s.rooms[id] = &membership{name: name, mailbox: mb}
		s.roomNames[name] = id

		nick, server := s.card.nick, s.opts.Server.Name
		s.send(proto.Command{Prefix: nick, Name: proto.CmdJoin, Args: []string{name}}, 0)
		s.send(proto.Reply(server, proto.RplNamReply, nick, "=", name, strings.Join(res.Members, " ")), 0)
		s.send(proto.Reply(server, proto.RplEndNames, nick, name, "End of /NAMES list"), 0)
		return nil
	}

	s.log.Warn().Str("room", name).Msg("join gave up after retries")
	return replyError(proto.ErrNoSuchChannel, "No such channel", name)
}

func (s *userState) requestJoin(mb Mailbox[RoomMessage]) (JoinResult, error) {
	reply := make(chan JoinResult, 1)

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.RelayTimeout)
	defer cancel()
	msg := RoomJoin{User: s.id, Nick: s.card.nick, Mailbox: s.mailbox, Reply: reply}
	if err := mb.Send(ctx, msg); err != nil {
		return JoinResult{}, err
	}

	select {
	case res := <-reply:
		return res, nil
	case <-mb.Done():
		return JoinResult{}, ErrMailboxClosed
	case <-s.ctx.Done():
		return JoinResult{}, s.ctx.Err()
	}
}

func (s *userState) part(cmd proto.Command) error {
	if len(cmd.Args) < 1 {
		return needMoreParams(cmd.Name)
	}
	reason := cmd.Arg(1)

	for _, name := range strings.Split(cmd.Args[0], ",") {
		id, ok := s.roomNames[name]
		if !ok {
			s.handleError(replyError(proto.ErrNotOnChannel, "You're not on that channel", name))
			continue
		}
		mem := s.rooms[id]
		s.forget(id)
		s.notifyRoom(mem, RoomPart{User: s.id, Reason: reason})

		args := []string{name}
		if reason != "" {
			args = append(args, reason)
		}
		s.send(proto.Command{Prefix: s.card.nick, Name: proto.CmdPart, Args: args}, 0)
	}
	return nil
}

func (s *userState) rename(cmd proto.Command) error {
	if len(cmd.Args) != 1 {
		return needMoreParams(cmd.Name)
	}
	nick := cmd.Args[0]
	if !validNick(nick) {
		return replyError(proto.ErrErroneusNickname, "Erroneous nickname", nick)
	}
	if nick == s.card.nick {
		return nil
	}

	if err := s.dir.ChangeNick(s.id, nick); err != nil {
		if errors.Is(err, ErrNickInUse) {
			return replyError(proto.ErrNicknameInUse, "Nickname is already in use", nick)
		}
		return err
	}

	old := s.card.nick
	s.card.nick = nick
	s.send(proto.Command{Prefix: old, Name: proto.CmdNick, Args: []string{nick}}, 0)
	for _, mem := range s.rooms {
		s.notifyRoom(mem, RoomNick{User: s.id, Nick: nick})
	}
	s.log.Info().Str("old", old).Str("nick", nick).Msg("nick changed")
	return nil
}

// notifyRoom delivers a reply-less message, waiting at most RelayTimeout.
func (s *userState) notifyRoom(mem *membership, msg RoomMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RelayTimeout)
	defer cancel()
	if err := mem.mailbox.Send(ctx, msg); err != nil {
		s.log.Debug().Err(err).Str("room", mem.name).Msg("room notification not delivered")
	}
}

func (s *userState) forget(id RoomID) {
	if mem, ok := s.rooms[id]; ok {
		delete(s.roomNames, mem.name)
		delete(s.rooms, id)
	}
}

func (s *userState) handleServer(msg UserMessage) error {
	switch m := msg.(type) {
	case DirectMessage:
		s.send(proto.Command{Prefix: m.From, Name: proto.CmdPrivmsg, Args: []string{m.Target, m.Text}}, s.opts.FlushDelay)
	case RoomDelivery:
		s.deliver(m)
	}
	return nil
}

func (s *userState) deliver(m RoomDelivery) {
	if _, ok := s.rooms[m.Room]; !ok {
		return
	}

	ev := m.Event
	self := ev.User == s.id
	delay := s.opts.FlushDelay

	switch ev.Kind {
	case EventJoin:
		if self {
			return
		}
		s.send(proto.Command{Prefix: ev.Nick, Name: proto.CmdJoin, Args: []string{m.Name}}, delay)
	case EventPart:
		if self {
			// Our own PART was echoed already, and a stale copy may arrive
			// after a rejoin. Only a closing room's part ends the membership.
			if !ev.Closing {
				return
			}
			s.forget(m.Room)
			s.send(proto.Command{Prefix: s.card.nick, Name: proto.CmdPart, Args: []string{m.Name}}, 0)
			return
		}
		delete(s.seenNicks, ev.User)
		args := []string{m.Name}
		if ev.Text != "" {
			args = append(args, ev.Text)
		}
		s.send(proto.Command{Prefix: ev.Nick, Name: proto.CmdPart, Args: args}, delay)
	case EventPrivmsg:
		if self {
			return
		}
		s.send(proto.Command{Prefix: ev.Nick, Name: proto.CmdPrivmsg, Args: []string{m.Name, ev.Text}}, delay)
	case EventNick:
		if self || s.seenNicks[ev.User] == ev.Nick {
			return
		}
		s.seenNicks[ev.User] = ev.Nick
		s.send(proto.Command{Prefix: ev.OldNick, Name: proto.CmdNick, Args: []string{ev.Nick}}, delay)
	}
}

func (s *userState) reply(code string, params ...string) {
	nick := ""
	if s.registered {
		nick = s.card.nick
	}
	s.send(proto.Reply(s.opts.Server.Name, code, nick, params...), 0)
}

// send queues cmd for the connection. A connection that cannot take more
// output ends the session.
func (s *userState) send(cmd proto.Command, delay time.Duration) {
	if err := s.conn.Send(proto.Dump(cmd, delay)); err != nil {
		if !s.finished {
			s.log.Debug().Err(err).Str("command", cmd.Name).Msg("output dropped, closing session")
		}
		s.finished = true
	}
}

// kill parts every room, removes the user from the directory and closes the
// connection once queued output is flushed. It is idempotent.
func (s *userState) kill() {
	if s.killed {
		return
	}
	s.killed = true
	close(s.done)

	reason := s.quitReason
	if reason == "" {
		reason = "Connection closed"
	}
	for _, mem := range s.rooms {
		s.notifyRoom(mem, RoomPart{User: s.id, Reason: reason})
	}
	clear(s.rooms)
	clear(s.roomNames)

	s.dir.DropUser(s.id)
	s.conn.Close()
	s.guard.Release()
	<-s.conn.Done()
	s.log.Info().Str("nick", s.card.nick).Str("reason", reason).Msg("session closed")
}

func needMoreParams(command string) *ReplyError {
	return replyError(proto.ErrNeedMoreParams, "Not enough parameters", command)
}

func validNick(nick string) bool {
	if nick == "" || len(nick) > maxNickLen {
		return false
	}
	if nick[0] == proto.RoomSigil || nick[0] == ':' {
		return false
	}
	return !strings.ContainsAny(nick, " ,*?!@\x00")
}

func isRoomName(name string) bool {
	if len(name) < 2 || len(name) > maxRoomLen || name[0] != proto.RoomSigil {
		return false
	}
	return !strings.ContainsAny(name, " ,\x07\x00")
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
