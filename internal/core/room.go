package core

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireirc/internal/cancel"
)

// RoomSnapshot is the state a room publishes after every message it handles.
type RoomSnapshot struct {
	Members int
}

// room is the directory's handle to a running room actor.
type room struct {
	id      RoomID
	name    string
	mailbox Mailbox[RoomMessage]
	guard   *cancel.Guard

	snapshot atomic.Pointer[RoomSnapshot]
}

// Snapshot returns the last published state.
func (r *room) Snapshot() RoomSnapshot {
	if s := r.snapshot.Load(); s != nil {
		return *s
	}
	return RoomSnapshot{}
}

type member struct {
	nick  string
	sub   *subscription[RoomEvent]
	relay *cancel.Guard
}

// roomState is owned by the room goroutine.
type roomState struct {
	handle *room
	dir    Directory
	opts   Options
	log    zerolog.Logger

	ctx   context.Context
	inbox <-chan RoomMessage
	done  chan struct{}

	members  map[UserID]*member
	events   *broadcaster[RoomEvent]
	finished bool
}

func newRoom(id RoomID, name string, dir Directory, opts Options) (*room, *roomState) {
	guard, ctx := cancel.New(context.Background())
	mb, inbox, done := newMailbox[RoomMessage](opts.MailboxSize)

	h := &room{id: id, name: name, mailbox: mb, guard: guard}
	h.snapshot.Store(&RoomSnapshot{})

	st := &roomState{
		handle:  h,
		dir:     dir,
		opts:    opts,
		log:     opts.Logger.With().Str("room", name).Stringer("room_id", id).Logger(),
		ctx:     ctx,
		inbox:   inbox,
		done:    done,
		members: make(map[UserID]*member),
		events:  newBroadcaster[RoomEvent](opts.BroadcastBuffer),
	}
	return h, st
}

func (s *roomState) run() {
	defer s.teardown()

	for {
		s.publish()
		if s.finished {
			return
		}

		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.inbox:
			s.dispatch(msg)
		}
	}
}

func (s *roomState) publish() {
	s.handle.snapshot.Store(&RoomSnapshot{Members: len(s.members)})
}

func (s *roomState) dispatch(msg RoomMessage) {
	switch m := msg.(type) {
	case RoomKill:
		s.log.Debug().Msg("room killed")
		s.finished = true
	case RoomJoin:
		s.join(m)
	case RoomPart:
		s.part(m.User, m.Reason)
	case RoomPrivmsg:
		mem, ok := s.members[m.User]
		if !ok {
			s.log.Debug().Stringer("user_id", m.User).Msg("privmsg from non-member dropped")
			return
		}
		s.broadcast(RoomEvent{Kind: EventPrivmsg, User: m.User, Nick: mem.nick, Text: m.Text})
	case RoomNick:
		mem, ok := s.members[m.User]
		if !ok || mem.nick == m.Nick {
			return
		}
		old := mem.nick
		mem.nick = m.Nick
		s.broadcast(RoomEvent{Kind: EventNick, User: m.User, Nick: m.Nick, OldNick: old})
	}
}

func (s *roomState) join(m RoomJoin) {
	if _, ok := s.members[m.User]; !ok {
		guard, ctx := cancel.New(context.Background())
		mem := &member{nick: m.Nick, sub: s.events.subscribe(), relay: guard}
		s.members[m.User] = mem
		s.dir.data.spawn(func() { s.relay(ctx, guard, m.User, mem.sub, m.Mailbox) })

		s.broadcast(RoomEvent{Kind: EventJoin, User: m.User, Nick: m.Nick})
		s.log.Debug().Stringer("user_id", m.User).Str("nick", m.Nick).Int("members", len(s.members)).Msg("member joined")
	}

	if m.Reply == nil {
		return
	}
	select {
	case m.Reply <- JoinResult{Room: s.handle.id, Members: s.nicks()}:
	default:
		s.log.Warn().Stringer("user_id", m.User).Msg("join reply dropped")
	}
}

func (s *roomState) part(id UserID, reason string) {
	mem, ok := s.members[id]
	if !ok {
		return
	}
	s.broadcast(RoomEvent{Kind: EventPart, User: id, Nick: mem.nick, Text: reason})

	delete(s.members, id)
	s.events.unsubscribe(mem.sub)
	mem.relay.Release()
	s.log.Debug().Stringer("user_id", id).Int("members", len(s.members)).Msg("member parted")

	if len(s.members) == 0 {
		s.finished = true
	}
}

func (s *roomState) broadcast(ev RoomEvent) {
	if _, err := s.events.publish(ev); err != nil {
		if errors.Is(err, ErrNoReceivers) {
			s.log.Debug().Stringer("event", ev.Kind).Msg("no receivers left")
		}
		s.finished = true
	}
}

func (s *roomState) nicks() []string {
	out := make([]string, 0, len(s.members))
	for _, mem := range s.members {
		out = append(out, mem.nick)
	}
	sort.Strings(out)
	return out
}

// relay forwards room events to one member until it is unsubscribed, the
// member exits, or the guard is released.
func (s *roomState) relay(ctx context.Context, guard *cancel.Guard, id UserID, sub *subscription[RoomEvent], to Mailbox[UserMessage]) {
	defer guard.Release()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.ch:
			if !ok {
				return
			}
			if n := sub.missed.Swap(0); n > 0 {
				s.log.Warn().Stringer("user_id", id).Uint64("missed", n).Msg("member lagging, events dropped")
			}
			err := to.Send(ctx, RoomDelivery{Room: s.handle.id, Name: s.handle.name, Event: ev})
			if err != nil {
				return
			}
		}
	}
}

// teardown parts every member, drops the room from the directory and marks
// the mailbox done.
func (s *roomState) teardown() {
	cancelled := s.ctx.Err() != nil

	for id, mem := range s.members {
		if _, err := s.events.publish(RoomEvent{Kind: EventPart, User: id, Nick: mem.nick, Closing: true}); err != nil {
			break
		}
	}
	s.events.close()
	for _, mem := range s.members {
		mem.relay.Release()
	}
	clear(s.members)

	s.dir.DropRoom(s.handle.id)
	s.publish()
	close(s.done)
	s.handle.guard.Release()
	s.log.Debug().Bool("cancelled", cancelled).Msg("room closed")
}
