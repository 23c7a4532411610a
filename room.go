package tenantline

import (
	"context"
	"sync"
)

// Rooms tracks the one conversation currently subscribed to push events and
// issues join/leave commands against the channel. The desired room is durable:
// it survives disconnects and is re-asserted automatically on every
// (re)connection, so room membership reflects what the caller wants rather
// than transient connectivity.
type Rooms struct {
	conn Conn

	mu     sync.Mutex
	active string // "" means no active room
}

// NewRooms creates the room membership controller and hooks it to the
// connection's connected event for automatic rejoin.
func NewRooms(conn Conn) *Rooms {
	r := &Rooms{conn: conn}
	conn.OnConnected(r.resume)
	return r
}

// Active returns the id of the conversation currently subscribed, or "".
func (r *Rooms) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// SetActiveRoom switches push-event subscription to the given conversation.
// Passing "" clears the subscription. If a different room was active, the
// leave for the old room is emitted strictly before the join for the new one.
// While disconnected the desired room is recorded and the join is deferred
// until the next connected event.
func (r *Rooms) SetActiveRoom(ctx context.Context, conversationID string) {
	r.mu.Lock()
	previous := r.active
	r.active = conversationID
	r.mu.Unlock()

	if !r.conn.Connected() {
		return
	}
	if previous != "" && previous != conversationID {
		// Best effort; membership is observed through message flow only.
		_ = r.conn.Emit(ctx, LeaveRoom(previous))
	}
	if conversationID != "" && conversationID != previous {
		_ = r.conn.Emit(ctx, JoinRoom(conversationID))
	}
}

// resume re-asserts membership after a (re)connection.
func (r *Rooms) resume() {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()

	if active != "" {
		_ = r.conn.Emit(context.Background(), JoinRoom(active))
	}
}
