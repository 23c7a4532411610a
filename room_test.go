package tenantline

import (
	"context"
	"testing"
)

func roomCommands(conn *fakeConn) []string {
	var out []string
	for _, c := range conn.commands() {
		switch c.Event {
		case "join-room", "leave-room":
			ref := c.Data.(roomRef)
			out = append(out, c.Event+":"+ref.ConversationID)
		}
	}
	return out
}

func TestRooms_SetActiveRoom(t *testing.T) {
	t.Run("joins the first room", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		rooms := NewRooms(conn)

		rooms.SetActiveRoom(context.Background(), "a")

		if got := roomCommands(conn); len(got) != 1 || got[0] != "join-room:a" {
			t.Fatalf("expected [join-room:a], got %v", got)
		}
		if rooms.Active() != "a" {
			t.Fatalf("expected active room a, got %q", rooms.Active())
		}
	})

	t.Run("leave old room strictly before joining new", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		rooms := NewRooms(conn)

		rooms.SetActiveRoom(context.Background(), "a")
		rooms.SetActiveRoom(context.Background(), "b")

		want := []string{"join-room:a", "leave-room:a", "join-room:b"}
		got := roomCommands(conn)
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, got)
			}
		}
	})

	t.Run("clearing emits a leave and resets the pointer", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		rooms := NewRooms(conn)

		rooms.SetActiveRoom(context.Background(), "a")
		rooms.SetActiveRoom(context.Background(), "")

		got := roomCommands(conn)
		if len(got) != 2 || got[1] != "leave-room:a" {
			t.Fatalf("expected trailing leave-room:a, got %v", got)
		}
		if rooms.Active() != "" {
			t.Fatalf("expected cleared pointer, got %q", rooms.Active())
		}
	})

	t.Run("clearing with no active room is a no-op", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		rooms := NewRooms(conn)

		rooms.SetActiveRoom(context.Background(), "")

		if got := roomCommands(conn); len(got) != 0 {
			t.Fatalf("expected no emissions, got %v", got)
		}
	})

	t.Run("setting the same room again does not rejoin", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		rooms := NewRooms(conn)

		rooms.SetActiveRoom(context.Background(), "a")
		rooms.SetActiveRoom(context.Background(), "a")

		if got := roomCommands(conn); len(got) != 1 {
			t.Fatalf("expected a single join, got %v", got)
		}
	})
}

func TestRooms_DeferredJoin(t *testing.T) {
	conn := &fakeConn{connected: false}
	rooms := NewRooms(conn)

	rooms.SetActiveRoom(context.Background(), "a")

	if got := roomCommands(conn); len(got) != 0 {
		t.Fatalf("expected no emissions while disconnected, got %v", got)
	}
	if rooms.Active() != "a" {
		t.Fatal("desired room must be recorded while disconnected")
	}

	conn.setConnected(true)

	if got := roomCommands(conn); len(got) != 1 || got[0] != "join-room:a" {
		t.Fatalf("expected deferred join after connect, got %v", got)
	}
}

func TestRooms_RejoinAfterReconnect(t *testing.T) {
	conn := &fakeConn{connected: true}
	rooms := NewRooms(conn)

	rooms.SetActiveRoom(context.Background(), "a")
	conn.setConnected(false)
	conn.setConnected(true)

	want := []string{"join-room:a", "join-room:a"}
	got := roomCommands(conn)
	if len(got) != len(want) {
		t.Fatalf("expected automatic rejoin, got %v", got)
	}
	if rooms.Active() != "a" {
		t.Fatal("active room must survive a reconnect")
	}
}
