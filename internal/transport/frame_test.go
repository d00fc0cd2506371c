package transport

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	f := &frame{command: cmdSend, body: []byte(`{"message":"hi"}`)}
	f.addHeader("destination", SendPublic)
	f.addHeader("content-type", "application/json")

	got, err := parseFrame(f.bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got.command != cmdSend {
		t.Fatalf("command = %q", got.command)
	}
	if got.header("destination") != SendPublic {
		t.Fatalf("destination = %q", got.header("destination"))
	}
	if !bytes.Equal(got.body, f.body) {
		t.Fatalf("body = %q", got.body)
	}
}

func TestParseHeartbeat(t *testing.T) {
	for _, raw := range [][]byte{[]byte("\n"), []byte("\n\x00"), {}} {
		f, err := parseFrame(raw)
		if err != nil {
			t.Fatalf("heartbeat %q: %v", raw, err)
		}
		if f != nil {
			t.Fatalf("heartbeat %q parsed as frame %+v", raw, f)
		}
	}
}

func TestParseRepeatedHeaderFirstWins(t *testing.T) {
	raw := []byte("MESSAGE\ndestination:/chatroom/public\ndestination:/other\n\nbody\x00")
	f, err := parseFrame(raw)
	if err != nil {
		t.Fatal(err)
	}
	if f.header("destination") != PublicChannel {
		t.Fatalf("got %q", f.header("destination"))
	}
}

func TestParseMalformedHeader(t *testing.T) {
	if _, err := parseFrame([]byte("MESSAGE\nnocolonhere\n\nbody\x00")); err == nil {
		t.Fatal("want error for malformed header")
	}
}

func TestParseCarriageReturns(t *testing.T) {
	raw := []byte("CONNECTED\r\nversion:1.2\r\n\r\n\x00")
	f, err := parseFrame(raw)
	if err != nil {
		t.Fatal(err)
	}
	if f.command != cmdConnected || f.header("version") != "1.2" {
		t.Fatalf("got %+v", f)
	}
}

func TestDispatchRoutesByDestination(t *testing.T) {
	s := NewStomp("ws://unused")
	var public, private []byte
	s.subs[PublicChannel] = func(p []byte) { public = p }
	s.subs[PrivateChannel("Kim")] = func(p []byte) { private = p }

	f := &frame{command: cmdMessage, body: []byte("pub")}
	f.addHeader("destination", PublicChannel)
	s.dispatch(f)

	g := &frame{command: cmdMessage, body: []byte("priv")}
	g.addHeader("destination", PrivateChannel("Kim"))
	s.dispatch(g)

	if string(public) != "pub" || string(private) != "priv" {
		t.Fatalf("public=%q private=%q", public, private)
	}
}

func TestDispatchUnknownDestinationIsDropped(t *testing.T) {
	s := NewStomp("ws://unused")
	f := &frame{command: cmdMessage, body: []byte("x")}
	f.addHeader("destination", "/nowhere")
	s.dispatch(f) // must not panic
}

func TestPublishBeforeConnect(t *testing.T) {
	s := NewStomp("ws://unused")
	if err := s.Publish(SendPublic, []byte("x")); err != ErrNotConnected {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
	if err := s.Subscribe(PublicChannel, func([]byte) {}); err != ErrNotConnected {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
}

func TestPrivateChannelName(t *testing.T) {
	if got := PrivateChannel("Kim"); got != "/user/Kim/private" {
		t.Fatalf("got %q", got)
	}
}
