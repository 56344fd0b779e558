package core

import (
	"errors"
	"strings"
)

var (
	// ErrNickInUse is returned when another user already holds the nickname.
	ErrNickInUse = errors.New("nickname in use")
	// ErrDirectoryClosed is returned by a handle whose root has been closed.
	ErrDirectoryClosed = errors.New("directory closed")
	// ErrNoSuchUser is returned for ids that do not name a live user.
	ErrNoSuchUser = errors.New("no such user")

	// errQuit ends a session at the client's request.
	errQuit = errors.New("client quit")
)

// ReplyError is a protocol error reported to the client as a numeric reply.
// The session continues unless Fatal is set.
type ReplyError struct {
	Code    string
	Params  []string
	Message string
	Fatal   bool
}

func (e *ReplyError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	for _, p := range e.Params {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	b.WriteString(" :")
	b.WriteString(e.Message)
	return b.String()
}

func replyError(code, msg string, params ...string) *ReplyError {
	return &ReplyError{Code: code, Params: params, Message: msg}
}
