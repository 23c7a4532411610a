package tenantline

import (
	"encoding/json"
	"testing"
)

func TestDecodeEvent(t *testing.T) {
	t.Run("both historical new-message names map to one kind", func(t *testing.T) {
		for _, name := range []string{"new-message", "receive-message"} {
			raw := []byte(`{"event":"` + name + `","data":{"id":"m1","conversationId":"c1"}}`)
			ev, ok := decodeEvent(raw)
			if !ok {
				t.Fatalf("decodeEvent(%s) failed", name)
			}
			if ev.Kind != EventMessageNew {
				t.Fatalf("expected EventMessageNew for %q, got %q", name, ev.Kind)
			}
		}
	})

	t.Run("known events translate to canonical kinds", func(t *testing.T) {
		cases := map[string]EventKind{
			"conversation-updated": EventConversationUpdated,
			"unread-count-changed": EventUnreadChanged,
			"room-joined":          EventRoomJoined,
			"error":                EventError,
		}
		for name, want := range cases {
			ev, ok := decodeEvent([]byte(`{"event":"` + name + `"}`))
			if !ok || ev.Kind != want {
				t.Fatalf("expected %q for %q, got %q (ok=%v)", want, name, ev.Kind, ok)
			}
		}
	})

	t.Run("unrecognized events decode as unknown", func(t *testing.T) {
		ev, ok := decodeEvent([]byte(`{"event":"typing-indicator","data":{}}`))
		if !ok {
			t.Fatal("unexpected decode failure for unrecognized event")
		}
		if ev.Kind != EventUnknown {
			t.Fatalf("expected EventUnknown, got %q", ev.Kind)
		}
	})

	t.Run("malformed frames are rejected without panic", func(t *testing.T) {
		if _, ok := decodeEvent([]byte(`{not json`)); ok {
			t.Fatal("expected decode failure for malformed frame")
		}
	})
}

func TestCommands(t *testing.T) {
	t.Run("send-message carries identity and correlation id", func(t *testing.T) {
		cmd := SendMessage("c1", RoleTenant, "tenant-1", "hello", "abc-123")
		data, err := json.Marshal(cmd)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		var decoded struct {
			Event string `json:"event"`
			Data  struct {
				ConversationID string `json:"conversationId"`
				SenderRole     string `json:"senderRole"`
				SenderID       string `json:"senderId"`
				Content        string `json:"content"`
				ClientID       string `json:"clientId"`
			} `json:"data"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if decoded.Event != "send-message" {
			t.Errorf("expected send-message, got %q", decoded.Event)
		}
		d := decoded.Data
		if d.ConversationID != "c1" || d.SenderRole != "TENANT" || d.SenderID != "tenant-1" ||
			d.Content != "hello" || d.ClientID != "abc-123" {
			t.Errorf("unexpected payload: %+v", d)
		}
	})

	t.Run("room and read commands use the wire names", func(t *testing.T) {
		cases := map[string]Command{
			"join-room":  JoinRoom("c1"),
			"leave-room": LeaveRoom("c1"),
			"mark-read":  MarkRead("c1"),
		}
		for want, cmd := range cases {
			if cmd.Event != want {
				t.Errorf("expected event %q, got %q", want, cmd.Event)
			}
			if ref, ok := cmd.Data.(roomRef); !ok || ref.ConversationID != "c1" {
				t.Errorf("%s: unexpected payload %+v", want, cmd.Data)
			}
		}
	})
}

func TestMessagePending(t *testing.T) {
	tmp := Message{ID: TempIDPrefix + "abc"}
	if !tmp.Pending() {
		t.Error("temp- ids must report pending")
	}
	confirmed := Message{ID: "m1"}
	if confirmed.Pending() {
		t.Error("server ids must not report pending")
	}
}

func TestConversationStatusCanSend(t *testing.T) {
	if !StatusOpen.CanSend() || !StatusPending.CanSend() {
		t.Error("OPEN and PENDING must permit sending")
	}
	if StatusClosed.CanSend() {
		t.Error("CLOSED must forbid sending")
	}
}
