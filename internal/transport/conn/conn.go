// Package conn owns live client sockets.
//
// Watch splits a socket into a read task that frames CRLF-terminated
// messages and a write task that coalesces outbound messages until the
// earliest pending flush deadline. Each task is stopped by its own guard.
package conn

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireirc/internal/cancel"
	"github.com/vovakirdan/wireirc/internal/proto"
)

var (
	// ErrClosed is returned by Send once the outbound queue is closed or the writer is gone.
	ErrClosed = errors.New("connection closed")
	// ErrSendQueueFull is returned by Send when the client does not keep up.
	ErrSendQueueFull = errors.New("send queue exceeded")
	// ErrMessageTooLong terminates the read task when a frame exceeds proto.MaxFrame.
	ErrMessageTooLong = errors.New("message too long")
)

const readChunk = 512

// Options tunes a watched connection.
type Options struct {
	InboundQueue int
	SendQueue    int
	WriteTimeout time.Duration
	SessionID    string
	Logger       *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.InboundQueue <= 0 {
		o.InboundQueue = 64
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 512
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// Conn is the handle to a watched socket.
type Conn struct {
	nc        net.Conn
	addr      string
	sessionID string
	log       zerolog.Logger

	inbound chan proto.InMessage

	mu        sync.Mutex
	outbound  chan proto.OutMessage
	outClosed bool

	readGuard  *cancel.Guard
	writeGuard *cancel.Guard

	writerDone chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// Watch starts the read and write tasks for nc.
func Watch(nc net.Conn, opts Options) *Conn {
	opts = opts.withDefaults()

	addr := ""
	if ra := nc.RemoteAddr(); ra != nil {
		addr = ra.String()
	}

	c := &Conn{
		nc:         nc,
		addr:       addr,
		sessionID:  opts.SessionID,
		log:        opts.Logger.With().Str("session_id", opts.SessionID).Str("remote_addr", addr).Logger(),
		inbound:    make(chan proto.InMessage, opts.InboundQueue),
		outbound:   make(chan proto.OutMessage, opts.SendQueue),
		writerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}

	readGuard, readCtx := cancel.New(context.Background())
	writeGuard, writeCtx := cancel.New(context.Background())
	c.readGuard = readGuard
	c.writeGuard = writeGuard

	// A blocked Read or Write only notices cancellation through its deadline.
	context.AfterFunc(readCtx, func() { _ = nc.SetReadDeadline(time.Now()) })
	context.AfterFunc(writeCtx, func() { _ = nc.SetWriteDeadline(time.Now()) })

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.readLoop(readCtx)
	}()
	go func() {
		defer wg.Done()
		c.writeLoop(writeCtx, opts.WriteTimeout)
	}()
	go func() {
		wg.Wait()
		c.closeSocket()
		readGuard.Release()
		writeGuard.Release()
		close(c.done)
	}()

	return c
}

// Inbound yields framed messages; it is closed when the read task exits.
func (c *Conn) Inbound() <-chan proto.InMessage {
	return c.inbound
}

// Send queues msg for the write task without blocking.
func (c *Conn) Send(msg proto.OutMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.outClosed {
		return ErrClosed
	}
	select {
	case <-c.writerDone:
		return ErrClosed
	default:
	}

	select {
	case c.outbound <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close stops reading and lets the writer flush what is queued before it
// closes the socket. It is safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	if !c.outClosed {
		c.outClosed = true
		close(c.outbound)
	}
	c.mu.Unlock()
	c.readGuard.Release()
}

// Abort stops both tasks immediately; queued output is dropped.
func (c *Conn) Abort() {
	c.readGuard.Release()
	c.writeGuard.Release()
}

// Done is closed once both tasks exited and the socket is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// RemoteAddr returns the peer address captured at Watch time.
func (c *Conn) RemoteAddr() string {
	return c.addr
}

// SessionID returns the id used to correlate log lines for this socket.
func (c *Conn) SessionID() string {
	return c.sessionID
}

func (c *Conn) closeSocket() {
	c.closeOnce.Do(func() {
		if err := c.nc.Close(); err != nil {
			c.log.Debug().Err(err).Msg("close socket")
		}
	})
}

func (c *Conn) readLoop(ctx context.Context) {
	defer close(c.inbound)

	buf := make([]byte, readChunk)
	pending := make([]byte, 0, proto.MaxFrame)

	for {
		n, err := c.nc.Read(buf)
		if ctx.Err() != nil {
			c.log.Debug().Msg("read cancelled")
			return
		}
		if n == 0 && err != nil {
			c.log.Debug().Err(err).Msg("read ended")
			return
		}

		for _, b := range buf[:n] {
			pending = append(pending, b)
			if len(pending) > proto.MaxFrame {
				c.log.Warn().Err(ErrMessageTooLong).Int("limit", proto.MaxFrame).Msg("dropping connection")
				return
			}
			if !bytes.HasSuffix(pending, []byte(proto.Terminator)) {
				continue
			}

			msg := proto.InMessage{
				Time: time.Now(),
				Data: pending[:len(pending)-len(proto.Terminator)],
			}
			select {
			case c.inbound <- msg:
			case <-ctx.Done():
				return
			}
			pending = make([]byte, 0, proto.MaxFrame)
		}

		if err != nil {
			c.log.Debug().Err(err).Msg("read ended")
			return
		}
	}
}

func (c *Conn) writeLoop(ctx context.Context, writeTimeout time.Duration) {
	defer func() {
		close(c.writerDone)
		// Without a writer nobody can answer the client; stop the reader too.
		c.closeSocket()
	}()

	var (
		buf     []byte
		armed   bool
		due     time.Time
		drained bool
	)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if !armed {
			if drained {
				return
			}
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-c.outbound:
				if !ok {
					drained = true
					continue
				}
				armed = true
				due = msg.Deadline
				buf = append(buf, msg.Data...)
			}
			continue
		}

		if drained || !time.Now().Before(due) {
			if err := c.flush(ctx, buf, writeTimeout); err != nil {
				c.log.Debug().Err(err).Int("bytes", len(buf)).Msg("write failed")
				return
			}
			buf = buf[:0]
			armed = false
			continue
		}

		timer.Reset(time.Until(due))
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case msg, ok := <-c.outbound:
			timer.Stop()
			if !ok {
				drained = true
				continue
			}
			if msg.Deadline.Before(due) {
				due = msg.Deadline
			}
			buf = append(buf, msg.Data...)
		}
	}
}

func (c *Conn) flush(ctx context.Context, buf []byte, writeTimeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.nc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	// An abort that landed before the deadline above had its own deadline
	// overwritten.
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.nc.Write(buf)
	return err
}
