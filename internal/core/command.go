package core

// RoomMessage is accepted by a room's mailbox.
type RoomMessage interface {
	roomMessage()
}

// RoomKill asks the room to part everyone and shut down.
type RoomKill struct{}

// RoomJoin registers a member. Reply, when set, receives the member list
// once the join is processed; it must have room for one value.
type RoomJoin struct {
	User    UserID
	Nick    string
	Mailbox Mailbox[UserMessage]
	Reply   chan<- JoinResult
}

// JoinResult answers a RoomJoin.
type JoinResult struct {
	Room    RoomID
	Members []string
}

// RoomPart removes a member.
type RoomPart struct {
	User   UserID
	Reason string
}

// RoomPrivmsg is chat text from a member to the whole room.
type RoomPrivmsg struct {
	User UserID
	Nick string
	Text string
}

// RoomNick tells the room a member changed nickname.
type RoomNick struct {
	User UserID
	Nick string
}

func (RoomKill) roomMessage()    {}
func (RoomJoin) roomMessage()    {}
func (RoomPart) roomMessage()    {}
func (RoomPrivmsg) roomMessage() {}
func (RoomNick) roomMessage()    {}
