package proto

import (
	"fmt"
	"time"
)

const (
	// MaxFrame is the longest accepted message, terminator included.
	MaxFrame = 512

	// Terminator ends every frame on the wire.
	Terminator = "\r\n"
)

// InMessage is one framed message read from a client, terminator stripped.
type InMessage struct {
	Time time.Time
	Data []byte
}

func (m InMessage) String() string {
	return fmt.Sprintf("%q", m.Data)
}

// OutMessage is one framed message bound for a client, terminator included.
// Deadline is the latest time the bytes may sit in the write buffer.
type OutMessage struct {
	Deadline time.Time
	Data     []byte
}

// Command is a parsed protocol message. Strings hold raw bytes: nothing is
// decoded or case folded except Name, which Parse uppercases.
type Command struct {
	Prefix string // empty when absent
	Name   string
	Args   []string
}

// Arg returns the i-th argument or "" when there are fewer arguments.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}
