package tenantline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrConversationClosed means the targeted conversation no longer accepts
// messages. The condition is latched locally; sends fail fast without
// touching the channel until a different conversation is loaded.
var ErrConversationClosed = errors.New("conversation closed")

// Identity is the authenticated sender, resolved from the auth collaborator.
// Outgoing messages always carry this identity, never caller-supplied fields.
type Identity struct {
	SenderID string
	Role     SenderRole
}

// Session is the message and roster synchronizer. It owns the local view of
// the conversation roster, the active conversation's message list, and the
// send gate, reconciling pull results with push events from the channel.
//
// Message ordering within the active conversation is arrival order; the
// session never re-sorts by timestamp. Push events for other conversations
// only touch the roster, never the message list.
type Session struct {
	api      *Client
	conn     Conn
	rooms    *Rooms
	identity Identity
	log      *slog.Logger

	mu            sync.Mutex
	conversations []Conversation
	messages      []Message
	current       *Conversation
	closedNotice  string
}

// NewSession wires a session to the REST client and the shared channel
// connection. The session subscribes to push events immediately; events
// arriving before the first Refresh are handled safely.
func NewSession(api *Client, conn Conn, identity Identity) *Session {
	s := &Session{
		api:      api,
		conn:     conn,
		rooms:    NewRooms(conn),
		identity: identity,
		log:      slog.Default(),
	}
	conn.OnEvent(s.handleEvent)
	conn.OnError(s.handleError)
	return s
}

// Rooms exposes the room membership controller.
func (s *Session) Rooms() *Rooms {
	return s.rooms
}

// Connected reports the channel connection state.
func (s *Session) Connected() bool {
	return s.conn.Connected()
}

// LastError returns the most recent connection-level error string, if any.
func (s *Session) LastError() string {
	return s.conn.LastError()
}

// ClosedNotice returns the user-visible blocking notice when the active
// conversation has been closed, or "".
func (s *Session) ClosedNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closedNotice
}

// Conversations returns a copy of the roster.
func (s *Session) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Conversation(nil), s.conversations...)
}

// Messages returns a copy of the active conversation's message list.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// CurrentConversation returns a copy of the active conversation, or nil.
func (s *Session) CurrentConversation() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}

// ============================================================================
// Pull operations
// ============================================================================

// Refresh pulls the conversation roster. Entries are de-duplicated by id
// defensively, keeping the first occurrence and the server's recency order.
func (s *Session) Refresh(ctx context.Context) ([]Conversation, error) {
	convos, err := s.api.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(convos))
	deduped := convos[:0]
	for _, c := range convos {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		deduped = append(deduped, c)
	}

	s.mu.Lock()
	s.conversations = deduped
	s.syncCurrentLocked()
	s.mu.Unlock()

	return s.Conversations(), nil
}

// LoadHistory makes conversationID the active room and pulls its full
// message history. If the active room changes while the pull is in flight,
// the stale result is discarded.
func (s *Session) LoadHistory(ctx context.Context, conversationID string) ([]Message, error) {
	previous := s.rooms.Active()
	s.rooms.SetActiveRoom(ctx, conversationID)

	s.mu.Lock()
	if previous != conversationID {
		s.closedNotice = ""
		s.messages = nil
	}
	s.syncCurrentLocked()
	s.mu.Unlock()

	msgs, err := s.api.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	// The staleness check and the install share one critical section so a
	// room switch cannot slip in between them.
	s.mu.Lock()
	if s.rooms.Active() != conversationID {
		s.mu.Unlock()
		s.log.Debug("discarding stale history", "conversationId", conversationID)
		return nil, nil
	}
	s.messages = msgs
	s.mu.Unlock()

	return s.Messages(), nil
}

// Create opens a new conversation and upserts it into the roster: updated in
// place when the id already exists, prepended otherwise.
func (s *Session) Create(ctx context.Context, topic, initialMessage string) (*Conversation, error) {
	convo, err := s.api.CreateConversation(ctx, topic, initialMessage)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	replaced := false
	for i := range s.conversations {
		if s.conversations[i].ID == convo.ID {
			s.conversations[i] = *convo
			replaced = true
			break
		}
	}
	if !replaced {
		s.conversations = append([]Conversation{*convo}, s.conversations...)
	}
	s.syncCurrentLocked()
	s.mu.Unlock()

	return convo, nil
}

// ============================================================================
// Send
// ============================================================================

// Send emits a message to the given conversation, inserting an optimistic
// placeholder that renders immediately and is replaced when the confirming
// push arrives. Fire-and-forget beyond the local state update.
func (s *Session) Send(ctx context.Context, conversationID, content string) error {
	if !s.conn.Connected() {
		return ErrNotConnected
	}

	s.mu.Lock()
	if s.closedNotice != "" && conversationID == s.rooms.Active() {
		s.mu.Unlock()
		return ErrConversationClosed
	}
	if status, known := s.statusLocked(conversationID); known && !status.CanSend() {
		s.mu.Unlock()
		return ErrConversationClosed
	}

	clientID := uuid.NewString()
	placeholder := Message{
		ID:             TempIDPrefix + clientID,
		ClientID:       clientID,
		ConversationID: conversationID,
		SenderRole:     s.identity.Role,
		SenderID:       s.identity.SenderID,
		Content:        content,
		Status:         MessageSent,
		CreatedAt:      time.Now(),
	}
	inserted := false
	if conversationID == s.rooms.Active() {
		s.messages = append(s.messages, placeholder)
		inserted = true
	}
	s.mu.Unlock()

	err := s.conn.Emit(ctx, SendMessage(conversationID, s.identity.Role, s.identity.SenderID, content, clientID))
	if err != nil && inserted {
		s.removeMessage(placeholder.ID)
	}
	return err
}

// MarkRead tells the server the conversation has been read. Best effort.
func (s *Session) MarkRead(ctx context.Context, conversationID string) error {
	return s.conn.Emit(ctx, MarkRead(conversationID))
}

func (s *Session) removeMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// ============================================================================
// Push reconciliation
// ============================================================================

func (s *Session) handleEvent(ev Event) {
	switch ev.Kind {
	case EventMessageNew:
		var msg Message
		if json.Unmarshal(ev.Data, &msg) != nil {
			return
		}
		s.mergeMessage(msg)
	case EventConversationUpdated:
		var upd ConversationUpdatedData
		if json.Unmarshal(ev.Data, &upd) != nil {
			return
		}
		s.mergeConversation(upd)
	case EventUnreadChanged:
		// Re-pull instead of incremental accounting: simpler and
		// self-correcting at the cost of a round trip. Runs off the dispatch
		// goroutine so the read loop never blocks on HTTP.
		go func() {
			if _, err := s.Refresh(context.Background()); err != nil {
				s.log.Debug("unread refresh failed", "err", err)
			}
		}()
	}
}

func (s *Session) handleError(e ErrorData) {
	if e.Code != CodeConversationClosed {
		return
	}
	notice := e.Message
	if notice == "" {
		notice = "This conversation has been closed."
	}
	s.mu.Lock()
	s.closedNotice = notice
	s.mu.Unlock()
}

// mergeMessage applies a new-message push to the active conversation's list.
// Events scoped to other conversations are ignored here; duplicates by server
// id are discarded; at most one optimistic placeholder with matching
// conversation and content is removed before the confirmed message appends.
func (s *Session) mergeMessage(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ConversationID != s.rooms.Active() {
		return
	}
	for i := range s.messages {
		if s.messages[i].ID == msg.ID {
			return
		}
	}
	for i := range s.messages {
		m := &s.messages[i]
		if m.Pending() && m.ConversationID == msg.ConversationID && m.Content == msg.Content {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	s.messages = append(s.messages, msg)
}

// mergeConversation folds a partial conversation update into the roster,
// appending a new entry when the conversation was unseen.
func (s *Session) mergeConversation(upd ConversationUpdatedData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.conversations {
		if s.conversations[i].ID == upd.ID {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.conversations = append(s.conversations, Conversation{ID: upd.ID})
		idx = len(s.conversations) - 1
	}

	c := &s.conversations[idx]
	if upd.AdminID != nil {
		c.AdminID = upd.AdminID
	}
	if upd.Topic != nil {
		c.Topic = *upd.Topic
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	if upd.Admin != nil {
		c.Admin = upd.Admin
	}
	if upd.UnreadCount != nil {
		c.UnreadCount = *upd.UnreadCount
	}
	if upd.UpdatedAt != nil {
		c.UpdatedAt = *upd.UpdatedAt
	}

	if upd.ID == s.rooms.Active() {
		s.syncCurrentLocked()
		// A status push for the active conversation drives the send gate in
		// both directions: closing latches it, reopening releases it.
		if upd.Status != nil {
			if upd.Status.CanSend() {
				s.closedNotice = ""
			} else {
				s.closedNotice = "This conversation has been closed."
			}
		}
	}
}

// statusLocked looks up the known status of a conversation from the current
// pointer or the roster. Callers hold s.mu.
func (s *Session) statusLocked(conversationID string) (ConversationStatus, bool) {
	if s.current != nil && s.current.ID == conversationID {
		return s.current.Status, true
	}
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			return s.conversations[i].Status, true
		}
	}
	return "", false
}

// syncCurrentLocked repoints current at the roster entry for the active
// room. Callers hold s.mu.
func (s *Session) syncCurrentLocked() {
	active := s.rooms.Active()
	if active == "" {
		s.current = nil
		return
	}
	for i := range s.conversations {
		if s.conversations[i].ID == active {
			c := s.conversations[i]
			s.current = &c
			return
		}
	}
}
