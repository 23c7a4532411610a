package tenantline

import (
	"encoding/json"
	"time"
)

// ============================================================================
// Wire envelope
// ============================================================================

// Envelope is the wire format for all channel events, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventKind is the canonical internal event type. Wire names are translated
// at the decoding boundary so components only ever see one kind per event,
// regardless of which historical name the server used.
type EventKind string

const (
	EventUnknown             EventKind = ""
	EventMessageNew          EventKind = "message.new"
	EventConversationUpdated EventKind = "conversation.updated"
	EventUnreadChanged       EventKind = "unread.changed"
	EventRoomJoined          EventKind = "room.joined"
	EventError               EventKind = "error"
)

// wireEvents maps server event names to canonical kinds. "new-message" and
// "receive-message" are aliases for the same semantic; both must stay.
var wireEvents = map[string]EventKind{
	"new-message":          EventMessageNew,
	"receive-message":      EventMessageNew,
	"conversation-updated": EventConversationUpdated,
	"unread-count-changed": EventUnreadChanged,
	"room-joined":          EventRoomJoined,
	"error":                EventError,
}

// Event is a decoded server push event.
type Event struct {
	Kind EventKind
	Data json.RawMessage
}

// decodeEvent translates a raw wire frame into a canonical event.
// Unrecognized event names yield EventUnknown and are ignored upstream;
// a malformed frame must never take the shared connection down.
func decodeEvent(raw []byte) (Event, bool) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, false
	}
	kind, ok := wireEvents[env.Event]
	if !ok {
		return Event{Kind: EventUnknown, Data: env.Data}, true
	}
	return Event{Kind: kind, Data: env.Data}, true
}

// ============================================================================
// Event payloads
// ============================================================================

// RoomJoinedData acknowledges a join. Best effort, logged only.
type RoomJoinedData struct {
	ConversationID string `json:"conversationId"`
}

// UnreadChangedData signals that unread counts changed somewhere; the roster
// re-pulls rather than doing incremental accounting.
type UnreadChangedData struct {
	ConversationID string `json:"conversationId,omitempty"`
}

// ConversationUpdatedData is a partial conversation update. Fields absent
// from the push keep their local values.
type ConversationUpdatedData struct {
	ID          string              `json:"id"`
	AdminID     *string             `json:"adminId,omitempty"`
	Topic       *string             `json:"topic,omitempty"`
	Status      *ConversationStatus `json:"status,omitempty"`
	Admin       *AdminSummary       `json:"admin,omitempty"`
	UnreadCount *int                `json:"unreadCount,omitempty"`
	UpdatedAt   *time.Time          `json:"updatedAt,omitempty"`
}

// CodeConversationClosed is the machine-readable error code meaning the
// targeted conversation is no longer writable. It must be distinguished from
// generic errors so sending can be blocked locally.
const CodeConversationClosed = "CONVERSATION_CLOSED"

// ErrorData is a server-pushed error.
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// Client commands
// ============================================================================

// Command is a client-to-server wire event.
type Command struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type roomRef struct {
	ConversationID string `json:"conversationId"`
}

type sendMessageData struct {
	ConversationID string     `json:"conversationId"`
	SenderRole     SenderRole `json:"senderRole"`
	SenderID       string     `json:"senderId"`
	Content        string     `json:"content"`
	ClientID       string     `json:"clientId,omitempty"`
}

// JoinRoom subscribes to push events for one conversation.
func JoinRoom(conversationID string) Command {
	return Command{Event: "join-room", Data: roomRef{ConversationID: conversationID}}
}

// LeaveRoom unsubscribes from a conversation's push events.
func LeaveRoom(conversationID string) Command {
	return Command{Event: "leave-room", Data: roomRef{ConversationID: conversationID}}
}

// SendMessage emits an outgoing message.
func SendMessage(conversationID string, role SenderRole, senderID, content, clientID string) Command {
	return Command{Event: "send-message", Data: sendMessageData{
		ConversationID: conversationID,
		SenderRole:     role,
		SenderID:       senderID,
		Content:        content,
		ClientID:       clientID,
	}}
}

// MarkRead tells the server the conversation has been read.
func MarkRead(conversationID string) Command {
	return Command{Event: "mark-read", Data: roomRef{ConversationID: conversationID}}
}
