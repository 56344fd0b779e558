// Command ws_smoke registers over the WebSocket gateway, joins a room, sends
// one message and prints every line until the server echoes a PONG.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/coder/websocket"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	nick := flag.String("nick", "tester", "nickname to register")
	room := flag.String("room", "#general", "room to join")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, *addr, *nick, *room, *text); err != nil {
		log.Fatalf("smoke: %v", err)
	}
}

func run(ctx context.Context, addr, nick, room, text string) error {
	ws, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer ws.Close(websocket.StatusNormalClosure, "bye")

	nc := websocket.NetConn(ctx, ws, websocket.MessageText)
	lines := []string{
		"NICK " + nick,
		"USER " + nick + " 0 * :smoke test",
		"JOIN " + room,
		"PRIVMSG " + room + " :" + text,
		"PING smoke",
	}
	for _, line := range lines {
		if _, err := io.WriteString(nc, line+"\r\n"); err != nil {
			return fmt.Errorf("send %q: %w", line, err)
		}
	}

	r := bufio.NewReader(nc)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		fmt.Println(line)
		if strings.Contains(line, " PONG ") {
			return nil
		}
		if strings.HasPrefix(line, "ERROR ") {
			return fmt.Errorf("server closed the link: %s", line)
		}
	}
}
