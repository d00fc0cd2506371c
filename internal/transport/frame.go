package transport

import (
	"bytes"
	"fmt"
	"strings"
)

// STOMP 1.2 frame subset — the commands the chat server actually exchanges.
const (
	cmdConnect   = "CONNECT"
	cmdConnected = "CONNECTED"
	cmdSubscribe = "SUBSCRIBE"
	cmdSend      = "SEND"
	cmdMessage   = "MESSAGE"
	cmdError     = "ERROR"
)

// frame is one STOMP frame. Headers keep insertion order; repeated header
// names are resolved first-wins per the STOMP spec.
type frame struct {
	command string
	headers [][2]string
	body    []byte
}

func (f *frame) header(name string) string {
	for _, h := range f.headers {
		if h[0] == name {
			return h[1]
		}
	}
	return ""
}

func (f *frame) addHeader(name, value string) {
	f.headers = append(f.headers, [2]string{name, value})
}

// bytes serializes the frame: command line, header lines, blank line, body,
// NUL terminator.
func (f *frame) bytes() []byte {
	var b bytes.Buffer
	b.WriteString(f.command)
	b.WriteByte('\n')
	for _, h := range f.headers {
		b.WriteString(h[0])
		b.WriteByte(':')
		b.WriteString(h[1])
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.Write(f.body)
	b.WriteByte(0)
	return b.Bytes()
}

// parseFrame decodes one frame from raw bytes. Heartbeat frames (a bare
// newline) return a nil frame and nil error.
func parseFrame(raw []byte) (*frame, error) {
	raw = bytes.TrimRight(raw, "\x00")
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil // heartbeat
	}

	head, body, found := bytes.Cut(raw, []byte("\n\n"))
	if !found {
		head = raw
	}

	lines := strings.Split(strings.TrimRight(string(head), "\r\n"), "\n")
	f := &frame{command: strings.TrimRight(lines[0], "\r"), body: body}
	if f.command == "" {
		return nil, fmt.Errorf("stomp: empty command")
	}
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("stomp: malformed header %q", line)
		}
		f.addHeader(name, value)
	}
	return f, nil
}
