package tenantline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

var (
	// ErrNoToken means no auth credential was available. Terminal for the
	// call; there is nothing to retry until the auth collaborator provides one.
	ErrNoToken = errors.New("no auth token")

	// ErrNotConnected means the channel is down. Callers may retry manually
	// by re-invoking Connect.
	ErrNotConnected = errors.New("not connected")
)

// ============================================================================
// Configuration
// ============================================================================

// SocketConfig configures the channel connection.
type SocketConfig struct {
	BaseURL              string
	Token                string
	MaxReconnectAttempts int           // default 5
	ReconnectDelay       time.Duration // fixed inter-attempt delay, default 1s
	Logger               *slog.Logger
}

func (c *SocketConfig) defaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type socketState string

const (
	stateDisconnected socketState = "disconnected"
	stateConnecting   socketState = "connecting"
	stateConnected    socketState = "connected"
)

// ============================================================================
// Conn
// ============================================================================

// Conn is the channel surface the other components depend on. *Socket is the
// production implementation; tests substitute a fake.
type Conn interface {
	Connected() bool
	LastError() string
	Emit(ctx context.Context, cmd Command) error
	OnConnected(h func())
	OnDisconnected(h func(reason string))
	OnEvent(h func(Event))
	OnError(h func(ErrorData))
}

// ============================================================================
// Dispatcher
// ============================================================================

// dispatcher fans events out to registered handlers. Unlike a broadcast hub,
// handlers run synchronously in registration order: the engine assumes
// one-at-a-time, arrival-order callback execution.
type dispatcher struct {
	mu             sync.RWMutex
	onConnected    []func()
	onDisconnected []func(reason string)
	onEvent        []func(Event)
	onError        []func(ErrorData)
}

func (d *dispatcher) emitConnected() {
	d.mu.RLock()
	handlers := append([]func(){}, d.onConnected...)
	d.mu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

func (d *dispatcher) emitDisconnected(reason string) {
	d.mu.RLock()
	handlers := append([]func(string){}, d.onDisconnected...)
	d.mu.RUnlock()
	for _, h := range handlers {
		h(reason)
	}
}

func (d *dispatcher) emitEvent(ev Event) {
	d.mu.RLock()
	handlers := append([]func(Event){}, d.onEvent...)
	d.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (d *dispatcher) emitError(e ErrorData) {
	d.mu.RLock()
	handlers := append([]func(ErrorData){}, d.onError...)
	d.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}

// ============================================================================
// Socket
// ============================================================================

// Socket owns the one shared channel connection per process. It is
// constructed explicitly and handed to the components that need it; nothing
// else creates or tears down the underlying connection.
type Socket struct {
	config SocketConfig

	mu        sync.Mutex
	conn      *websocket.Conn
	state     socketState
	inflight  chan struct{} // closed when the in-flight connect attempt settles
	connerr   error
	lastError string
	closed    bool

	dispatcher dispatcher
	log        *slog.Logger
}

// NewSocket creates a channel connection manager. Call Connect to establish
// the connection.
func NewSocket(config SocketConfig) *Socket {
	config.defaults()
	return &Socket{
		config: config,
		state:  stateDisconnected,
		log:    config.Logger,
	}
}

// OnConnected registers a handler fired on every successful (re)connection.
func (s *Socket) OnConnected(h func()) {
	s.dispatcher.mu.Lock()
	s.dispatcher.onConnected = append(s.dispatcher.onConnected, h)
	s.dispatcher.mu.Unlock()
}

// OnDisconnected registers a handler fired when the connection drops.
func (s *Socket) OnDisconnected(h func(reason string)) {
	s.dispatcher.mu.Lock()
	s.dispatcher.onDisconnected = append(s.dispatcher.onDisconnected, h)
	s.dispatcher.mu.Unlock()
}

// OnEvent registers a handler for decoded server push events.
func (s *Socket) OnEvent(h func(Event)) {
	s.dispatcher.mu.Lock()
	s.dispatcher.onEvent = append(s.dispatcher.onEvent, h)
	s.dispatcher.mu.Unlock()
}

// OnError registers a handler for server-pushed errors.
func (s *Socket) OnError(h func(ErrorData)) {
	s.dispatcher.mu.Lock()
	s.dispatcher.onError = append(s.dispatcher.onError, h)
	s.dispatcher.mu.Unlock()
}

// Connected reports whether the channel is currently up.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateConnected
}

// LastError returns the most recent connection-level error, if any.
func (s *Socket) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Connect establishes the channel connection. It is idempotent: a live
// connection returns immediately, and concurrent callers share a single
// in-flight attempt instead of opening a second connection.
func (s *Socket) Connect(ctx context.Context) error {
	if s.config.Token == "" {
		s.mu.Lock()
		s.lastError = ErrNoToken.Error()
		s.mu.Unlock()
		return ErrNoToken
	}
	return s.connect(ctx)
}

// connect claims the single-flight guard and dials. Manual Connect calls and
// the automatic reconnector both go through here, so a manual retry issued
// during a reconnect window joins the in-flight attempt instead of opening a
// second connection alongside it.
func (s *Socket) connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == stateConnected {
		s.mu.Unlock()
		return nil
	}
	if s.inflight != nil {
		wait := s.inflight
		s.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
		err := s.connerr
		s.mu.Unlock()
		return err
	}
	done := make(chan struct{})
	s.inflight = done
	s.state = stateConnecting
	s.mu.Unlock()

	err := s.dial(ctx)

	s.mu.Lock()
	s.connerr = err
	s.inflight = nil
	if err != nil {
		s.state = stateDisconnected
		s.lastError = err.Error()
	}
	s.mu.Unlock()
	close(done)

	if err != nil {
		return err
	}

	s.dispatcher.emitConnected()
	go s.readLoop(context.Background())
	return nil
}

// dial opens the websocket and flips state to connected on success.
func (s *Socket) dial(ctx context.Context) error {
	wsURL := strings.Replace(s.config.BaseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/ws?token=" + s.config.Token

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.state = stateConnected
	s.lastError = ""
	s.closed = false
	s.mu.Unlock()
	return nil
}

// Close tears the connection down intentionally. Only process shutdown (or
// the owning embedder) calls this; components never close the shared socket.
func (s *Socket) Close() error {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.state = stateDisconnected
	s.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client close")
	}
	return nil
}

// Emit sends a client command over the channel.
func (s *Socket) Emit(ctx context.Context, cmd Command) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (s *Socket) readLoop(ctx context.Context) {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			s.mu.Lock()
			intentional := s.closed
			s.conn = nil
			s.state = stateDisconnected
			if !intentional {
				s.lastError = err.Error()
			}
			s.mu.Unlock()

			if intentional {
				s.dispatcher.emitDisconnected("client close")
				return
			}

			s.dispatcher.emitDisconnected(err.Error())
			s.reconnect(ctx)
			return
		}

		s.handleFrame(data)
	}
}

func (s *Socket) handleFrame(data []byte) {
	ev, ok := decodeEvent(data)
	if !ok {
		s.log.Debug("dropping malformed frame")
		return
	}

	switch ev.Kind {
	case EventUnknown:
		// Forward-compatibility: unrecognized events are ignored.
		return
	case EventError:
		var e ErrorData
		if json.Unmarshal(ev.Data, &e) != nil {
			return
		}
		s.mu.Lock()
		s.lastError = e.Message
		s.mu.Unlock()
		s.dispatcher.emitError(e)
	case EventRoomJoined:
		var ack RoomJoinedData
		if json.Unmarshal(ev.Data, &ack) == nil {
			s.log.Debug("room joined", "conversationId", ack.ConversationID)
		}
		s.dispatcher.emitEvent(ev)
	default:
		s.dispatcher.emitEvent(ev)
	}
}

// reconnect retries the connection a bounded number of times with a fixed
// delay. Each attempt goes through the shared single-flight guard, so a
// manual Connect call landing inside the delay window is joined rather than
// raced. Exhausting the budget leaves the socket persistently disconnected;
// callers observe Connected()==false and may call Connect again.
func (s *Socket) reconnect(ctx context.Context) {
	for attempt := 1; attempt <= s.config.MaxReconnectAttempts; attempt++ {
		select {
		case <-time.After(s.config.ReconnectDelay):
		case <-ctx.Done():
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if s.state == stateConnected {
			// A manual Connect re-established the channel during the delay.
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.log.Debug("reconnecting", "attempt", attempt)
		if err := s.connect(ctx); err != nil {
			continue
		}
		return
	}
	s.log.Debug("reconnect attempts exhausted")
}
