package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Richie010/vshareu/internal/session"
)

// repl reads commands from stdin until EOF, /quit, or context cancel. Plain
// input goes to the public room; /msg sends privately. Every line of input
// counts as a keystroke for the typing throttle, which is as close as a
// terminal gets to per-key events.
func repl(ctx context.Context, sess *session.Session) error {
	events, cancelEvents := sess.Listen()
	defer cancelEvents()
	go printEvents(ctx, sess, events)

	fmt.Println("Type to chat. /help lists commands.")

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "/quit" {
				return nil
			}
			if err := handle(ctx, sess, line); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		}
	}
}

func handle(ctx context.Context, sess *session.Session, line string) error {
	if !strings.HasPrefix(line, "/") {
		sess.Keystroke("")
		return sess.SendPublic(line)
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/help":
		printHelp()
		return nil

	case "/msg":
		peer, body, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(body) == "" {
			return fmt.Errorf("usage: /msg <peer> <text>")
		}
		sess.Keystroke(peer)
		return sess.SendPrivate(peer, strings.TrimSpace(body))

	case "/who":
		for _, key := range sess.ActivePeers() {
			marker := ""
			if sess.PeerTyping(key) {
				marker = "  (typing…)"
			}
			fmt.Printf("  %s%s\n", key, marker)
		}
		return nil

	case "/threads":
		for _, key := range sess.Threads() {
			fmt.Printf("  %s  (%d messages)\n", key, len(sess.PrivateMessages(key)))
		}
		return nil

	case "/history":
		if rest == "" {
			for _, e := range sess.PublicMessages() {
				fmt.Printf("  <%s> %s\n", e.SenderName, e.Message)
			}
			return nil
		}
		sess.OpenThread(rest)
		for _, e := range sess.PrivateMessages(rest) {
			fmt.Printf("  <%s> %s\n", e.SenderName, e.Message)
		}
		return nil

	case "/friends":
		for _, f := range sess.Friends() {
			status := "offline"
			if sess.PeerActive(f.Key) {
				status = "active"
			}
			fmt.Printf("  %s  [%s]\n", f.Key, status)
		}
		return nil

	case "/requests":
		for _, r := range sess.PendingRequests() {
			fmt.Printf("  #%d from %s\n", r.ID, r.RequesterKey)
		}
		return nil

	case "/accept":
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return fmt.Errorf("usage: /accept <request-id>")
		}
		return sess.AcceptRequest(id)

	case "/search":
		if rest == "" {
			return fmt.Errorf("usage: /search <name-or-mobile>")
		}
		users, err := sess.Search(rest)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("  no matches")
			return nil
		}
		for _, u := range users {
			fmt.Printf("  #%d %s (%s)\n", u.ID, u.Key(), u.Mobile)
		}
		return nil

	case "/add":
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return fmt.Errorf("usage: /add <account-id>")
		}
		return sess.RequestFriend(id)

	case "/refresh":
		sess.RefreshSocial()
		return nil

	case "/log":
		for _, line := range sess.EventLog() {
			fmt.Printf("  %s\n", line)
		}
		return nil

	case "/connect":
		return sess.Connect(ctx)

	case "/disconnect":
		return sess.Disconnect()

	default:
		return fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

// printEvents renders change notifications between prompts.
func printEvents(ctx context.Context, sess *session.Session, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case session.EventPublicMessage:
				if msgs := sess.PublicMessages(); len(msgs) > 0 {
					last := msgs[len(msgs)-1]
					fmt.Printf("<%s> %s\n", last.SenderName, last.Message)
				}
			case session.EventPrivateMessage:
				if msgs := sess.PrivateMessages(e.Peer); len(msgs) > 0 {
					last := msgs[len(msgs)-1]
					fmt.Printf("[%s] <%s> %s\n", e.Peer, last.SenderName, last.Message)
				}
			case session.EventTyping:
				if e.Typing {
					fmt.Printf("… %s is typing\n", e.Peer)
				}
			case session.EventPresence:
				if e.Peer != "" {
					fmt.Printf("* %s joined\n", e.Peer)
				}
			case session.EventSocial:
				// Quiet; /friends and /requests show the current view.
			case session.EventState:
				fmt.Printf("* session %s\n", e.State)
			}
		}
	}
}

func printHelp() {
	fmt.Println("  <text>              send to the public room")
	fmt.Println("  /msg <peer> <text>  send privately")
	fmt.Println("  /who                active peers")
	fmt.Println("  /threads            private threads")
	fmt.Println("  /history [peer]     show a thread (public when no peer)")
	fmt.Println("  /friends            confirmed friends")
	fmt.Println("  /requests           pending friend requests")
	fmt.Println("  /accept <id>        accept a friend request")
	fmt.Println("  /search <query>     search accounts")
	fmt.Println("  /add <account-id>   send a friend request")
	fmt.Println("  /refresh            refetch friends and requests")
	fmt.Println("  /log                session diagnostics")
	fmt.Println("  /connect /disconnect /quit")
}
