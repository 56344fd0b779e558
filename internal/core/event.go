package core

// EventKind is a notification a room broadcasts to its members.
type EventKind int

const (
	// EventJoin notifies members about a user joining the room.
	EventJoin EventKind = iota
	// EventPart notifies members about a user leaving the room.
	EventPart
	// EventPrivmsg carries chat text sent to the room.
	EventPrivmsg
	// EventNick notifies members about a nickname change.
	EventNick
)

func (k EventKind) String() string {
	switch k {
	case EventJoin:
		return "join"
	case EventPart:
		return "part"
	case EventPrivmsg:
		return "privmsg"
	case EventNick:
		return "nick"
	default:
		return "unknown"
	}
}

// RoomEvent is what a room broadcasts.
type RoomEvent struct {
	Kind    EventKind
	User    UserID
	Nick    string
	OldNick string // EventNick only
	Text    string // message text or part reason

	// Closing marks the parts a room sends while shutting down.
	Closing bool
}

// UserMessage is accepted by a user's mailbox.
type UserMessage interface {
	userMessage()
}

// RoomDelivery is a room event relayed to one member.
type RoomDelivery struct {
	Room  RoomID
	Name  string
	Event RoomEvent
}

// DirectMessage is chat text from one user to another.
type DirectMessage struct {
	From   string
	Target string
	Text   string
}

func (RoomDelivery) userMessage()  {}
func (DirectMessage) userMessage() {}
