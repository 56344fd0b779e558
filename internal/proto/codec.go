package proto

import (
	"bytes"
	"time"
)

// Parse turns a framed message into a command. It reports false when the
// message holds no command token.
func Parse(msg InMessage) (Command, bool) {
	return ParseLine(msg.Data)
}

// ParseLine parses a single line without its terminator.
func ParseLine(data []byte) (Command, bool) {
	var cmd Command

	if len(data) > 0 && data[0] == ':' {
		end := bytes.IndexByte(data, ' ')
		if end < 0 {
			end = len(data)
		}
		cmd.Prefix = string(data[1:end])
		data = data[min(end+1, len(data)):]
	}

	args := splitArgs(data)
	if len(args) == 0 {
		return Command{}, false
	}

	cmd.Name = upper(args[0])
	cmd.Args = args[1:]
	return cmd, true
}

func splitArgs(src []byte) []string {
	var out []string
	for len(src) > 0 {
		if src[0] == ':' {
			out = append(out, string(src[1:]))
			break
		}
		end := bytes.IndexByte(src, ' ')
		if end < 0 {
			end = len(src)
		}
		out = append(out, string(src[:end]))
		src = src[min(end+1, len(src)):]
	}
	return out
}

// upper uppercases ASCII letters only; other bytes pass through untouched.
func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// Dump renders cmd as a frame that must be flushed within delay.
//
// The last argument is always written in trailing form so it may carry
// spaces. Nothing else is escaped: arguments must not contain the terminator,
// and non-final arguments must not contain spaces.
func Dump(cmd Command, delay time.Duration) OutMessage {
	size := len(cmd.Name) + len(Terminator)
	if cmd.Prefix != "" {
		size += len(cmd.Prefix) + 2
	}
	for _, a := range cmd.Args {
		size += len(a) + 2
	}

	out := make([]byte, 0, size)
	if cmd.Prefix != "" {
		out = append(out, ':')
		out = append(out, cmd.Prefix...)
		out = append(out, ' ')
	}
	out = append(out, cmd.Name...)
	for i, a := range cmd.Args {
		out = append(out, ' ')
		if i == len(cmd.Args)-1 {
			out = append(out, ':')
		}
		out = append(out, a...)
	}
	out = append(out, Terminator...)

	return OutMessage{
		Deadline: time.Now().Add(delay),
		Data:     out,
	}
}
