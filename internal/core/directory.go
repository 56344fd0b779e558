package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireirc/internal/cancel"
	"github.com/vovakirdan/wireirc/internal/proto"
	"github.com/vovakirdan/wireirc/internal/slotmap"
	"github.com/vovakirdan/wireirc/internal/transport/conn"
)

// Options configures the actors the directory spawns.
type Options struct {
	Server proto.ServerInfo

	// PasswordHash is a bcrypt hash clients must match with PASS. Empty disables it.
	PasswordHash string

	MailboxSize     int
	BroadcastBuffer int

	// FlushDelay bounds how long relayed chat may wait in a write buffer.
	FlushDelay time.Duration

	// RelayTimeout bounds how long a sender waits on a full peer mailbox.
	RelayTimeout time.Duration

	Logger *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Server.Name == "" {
		o.Server.Name = "wireirc"
	}
	if o.Server.Network == "" {
		o.Server.Network = o.Server.Name
	}
	if o.Server.Version == "" {
		o.Server.Version = "wireirc-dev"
	}
	if o.Server.Created.IsZero() {
		o.Server.Created = time.Now()
	}
	if o.MailboxSize <= 0 {
		o.MailboxSize = 8
	}
	if o.BroadcastBuffer <= 0 {
		o.BroadcastBuffer = 256
	}
	if o.FlushDelay < 0 {
		o.FlushDelay = 0
	}
	if o.RelayTimeout <= 0 {
		o.RelayTimeout = 2 * time.Second
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// Root owns every user and room. Actors only ever see Directory handles.
type Root struct {
	data *directoryData
}

// Directory is a shared, non-owning handle to the tables held by a Root.
// Once the root is closed every operation reports not-found or
// ErrDirectoryClosed. The zero Directory behaves like a closed one.
type Directory struct {
	data *directoryData
}

type directoryData struct {
	mu     sync.Mutex
	closed bool

	opts Options
	log  zerolog.Logger

	users *slotmap.Map[*user]
	rooms *slotmap.Map[*room]

	usersByNick map[string]UserID
	userNicks   map[UserID]string
	roomsByName map[string]RoomID

	// tasks counts user, room and relay goroutines.
	tasks sync.WaitGroup
}

// Stats is a point-in-time view of the directory.
type Stats struct {
	Users      int         `json:"users"`
	Registered int         `json:"registered"`
	Rooms      []RoomStats `json:"rooms"`
}

// RoomStats reports one room's last published snapshot.
type RoomStats struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// NewRoot creates empty tables.
func NewRoot(opts Options) *Root {
	opts = opts.withDefaults()
	return &Root{
		data: &directoryData{
			opts:        opts,
			log:         opts.Logger.With().Str("component", "directory").Logger(),
			users:       slotmap.New[*user](),
			rooms:       slotmap.New[*room](),
			usersByNick: make(map[string]UserID),
			userNicks:   make(map[UserID]string),
			roomsByName: make(map[string]RoomID),
		},
	}
}

// Share returns a handle for actors and transports.
func (r *Root) Share() Directory {
	return Directory{data: r.data}
}

// Close stops every user and room actor and makes all handles inert.
func (r *Root) Close() {
	d := r.data
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true

	guards := make([]*cancel.Guard, 0, d.users.Len()+d.rooms.Len())
	d.users.Range(func(_ slotmap.Key, u *user) bool {
		guards = append(guards, u.guard)
		return true
	})
	d.rooms.Range(func(_ slotmap.Key, rm *room) bool {
		guards = append(guards, rm.guard)
		return true
	})
	d.users = slotmap.New[*user]()
	d.rooms = slotmap.New[*room]()
	clear(d.usersByNick)
	clear(d.userNicks)
	clear(d.roomsByName)
	d.mu.Unlock()

	for _, g := range guards {
		g.Release()
	}
	d.log.Info().Int("actors", len(guards)).Msg("directory closed")
}

// Shutdown closes the root and waits for every actor to exit or ctx to end.
func (r *Root) Shutdown(ctx context.Context) error {
	r.Close()

	done := make(chan struct{})
	go func() {
		r.data.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lock returns the locked tables, or false when the root is gone.
func (d Directory) lock() (*directoryData, bool) {
	if d.data == nil {
		return nil, false
	}
	d.data.mu.Lock()
	if d.data.closed {
		d.data.mu.Unlock()
		return nil, false
	}
	return d.data, true
}

// spawn runs fn as a tracked actor goroutine. Callers either hold the lock
// of an open directory or run inside another tracked goroutine.
func (data *directoryData) spawn(fn func()) {
	data.tasks.Add(1)
	go func() {
		defer data.tasks.Done()
		fn()
	}()
}

// CreateUser registers a new user for c and starts its actor.
func (d Directory) CreateUser(c *conn.Conn) (UserID, error) {
	data, ok := d.lock()
	if !ok {
		return UserID{}, ErrDirectoryClosed
	}
	defer data.mu.Unlock()

	var state *userState
	key := data.users.InsertWithKey(func(k slotmap.Key) *user {
		var u *user
		u, state = newUser(UserID{key: k}, c, d, data.opts)
		return u
	})
	data.spawn(state.run)
	return UserID{key: key}, nil
}

// DropUser forgets the user and its nickname. Only the user's own actor
// calls this, during teardown.
func (d Directory) DropUser(id UserID) {
	data, ok := d.lock()
	if !ok {
		return
	}
	defer data.mu.Unlock()

	if _, ok := data.users.Remove(id.key); !ok {
		return
	}
	if nick, ok := data.userNicks[id]; ok {
		delete(data.userNicks, id)
		delete(data.usersByNick, nick)
	}
}

// UserMailbox returns the mailbox of a live user.
func (d Directory) UserMailbox(id UserID) (Mailbox[UserMessage], bool) {
	data, ok := d.lock()
	if !ok {
		return Mailbox[UserMessage]{}, false
	}
	defer data.mu.Unlock()

	u, ok := data.users.Get(id.key)
	if !ok {
		return Mailbox[UserMessage]{}, false
	}
	return u.mailbox, true
}

// UserByNick resolves a nickname. Matching is byte-exact.
func (d Directory) UserByNick(nick string) (UserID, bool) {
	data, ok := d.lock()
	if !ok {
		return UserID{}, false
	}
	defer data.mu.Unlock()

	id, ok := data.usersByNick[nick]
	return id, ok
}

// UserNick returns the committed nickname of a user.
func (d Directory) UserNick(id UserID) (string, bool) {
	data, ok := d.lock()
	if !ok {
		return "", false
	}
	defer data.mu.Unlock()

	nick, ok := data.userNicks[id]
	return nick, ok
}

// MailboxByNick resolves a nickname straight to the owner's mailbox.
func (d Directory) MailboxByNick(nick string) (Mailbox[UserMessage], bool) {
	data, ok := d.lock()
	if !ok {
		return Mailbox[UserMessage]{}, false
	}
	defer data.mu.Unlock()

	id, ok := data.usersByNick[nick]
	if !ok {
		return Mailbox[UserMessage]{}, false
	}
	u, ok := data.users.Get(id.key)
	if !ok {
		return Mailbox[UserMessage]{}, false
	}
	return u.mailbox, true
}

// ChangeNick commits nick for the user, replacing any previous one. An empty
// nick clears the mapping. Both maps change under one lock.
func (d Directory) ChangeNick(id UserID, nick string) error {
	data, ok := d.lock()
	if !ok {
		return ErrDirectoryClosed
	}
	defer data.mu.Unlock()

	if !data.users.Contains(id.key) {
		return ErrNoSuchUser
	}

	old, hasOld := data.userNicks[id]
	if hasOld && old == nick {
		return nil
	}
	if !hasOld && nick == "" {
		return nil
	}
	if nick != "" {
		if _, taken := data.usersByNick[nick]; taken {
			return ErrNickInUse
		}
	}

	if hasOld {
		delete(data.usersByNick, old)
		delete(data.userNicks, id)
	}
	if nick != "" {
		data.userNicks[id] = nick
		data.usersByNick[nick] = id
	}
	return nil
}

// EnsureRoom returns the room called name, creating it on first use.
func (d Directory) EnsureRoom(name string) (RoomID, Mailbox[RoomMessage], error) {
	data, ok := d.lock()
	if !ok {
		return RoomID{}, Mailbox[RoomMessage]{}, ErrDirectoryClosed
	}
	defer data.mu.Unlock()

	if id, ok := data.roomsByName[name]; ok {
		if rm, ok := data.rooms.Get(id.key); ok {
			return id, rm.mailbox, nil
		}
		delete(data.roomsByName, name)
	}

	var state *roomState
	key := data.rooms.InsertWithKey(func(k slotmap.Key) *room {
		var rm *room
		rm, state = newRoom(RoomID{key: k}, name, d, data.opts)
		return rm
	})
	id := RoomID{key: key}
	data.roomsByName[name] = id
	data.spawn(state.run)

	rm, _ := data.rooms.Get(key)
	data.log.Debug().Str("room", name).Stringer("room_id", id).Msg("room created")
	return id, rm.mailbox, nil
}

// RoomByName resolves a live room.
func (d Directory) RoomByName(name string) (RoomID, bool) {
	data, ok := d.lock()
	if !ok {
		return RoomID{}, false
	}
	defer data.mu.Unlock()

	id, ok := data.roomsByName[name]
	return id, ok
}

// RoomMailbox returns the mailbox of a live room.
func (d Directory) RoomMailbox(id RoomID) (Mailbox[RoomMessage], bool) {
	data, ok := d.lock()
	if !ok {
		return Mailbox[RoomMessage]{}, false
	}
	defer data.mu.Unlock()

	rm, ok := data.rooms.Get(id.key)
	if !ok {
		return Mailbox[RoomMessage]{}, false
	}
	return rm.mailbox, true
}

// RoomSnapshot returns the last snapshot the room published.
func (d Directory) RoomSnapshot(id RoomID) (RoomSnapshot, bool) {
	data, ok := d.lock()
	if !ok {
		return RoomSnapshot{}, false
	}
	defer data.mu.Unlock()

	rm, ok := data.rooms.Get(id.key)
	if !ok {
		return RoomSnapshot{}, false
	}
	return rm.Snapshot(), true
}

// DropRoom forgets the room. Only the room's own actor calls this, during teardown.
func (d Directory) DropRoom(id RoomID) {
	data, ok := d.lock()
	if !ok {
		return
	}
	defer data.mu.Unlock()

	rm, ok := data.rooms.Remove(id.key)
	if !ok {
		return
	}
	if cur, ok := data.roomsByName[rm.name]; ok && cur == id {
		delete(data.roomsByName, rm.name)
	}
}

// Stats reports user counts and per-room member counts.
func (d Directory) Stats() Stats {
	data, ok := d.lock()
	if !ok {
		return Stats{Rooms: []RoomStats{}}
	}
	defer data.mu.Unlock()

	st := Stats{
		Users:      data.users.Len(),
		Registered: len(data.usersByNick),
		Rooms:      make([]RoomStats, 0, data.rooms.Len()),
	}
	data.rooms.Range(func(_ slotmap.Key, rm *room) bool {
		st.Rooms = append(st.Rooms, RoomStats{Name: rm.name, Members: rm.Snapshot().Members})
		return true
	})
	sort.Slice(st.Rooms, func(i, j int) bool { return st.Rooms[i].Name < st.Rooms[j].Name })
	return st
}
