package tenantline

import (
	"encoding/json"
	"strings"
	"time"
)

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// ============================================================================
// Conversation
// ============================================================================

// ConversationStatus is the lifecycle state of a conversation.
// Transitions are a server concern; the client accepts whatever is pushed.
type ConversationStatus string

const (
	StatusOpen    ConversationStatus = "OPEN"
	StatusPending ConversationStatus = "PENDING"
	StatusClosed  ConversationStatus = "CLOSED"
)

// CanSend reports whether the status permits sending new messages.
// OPEN and PENDING both permit sending; CLOSED forbids it.
func (s ConversationStatus) CanSend() bool {
	return s != StatusClosed
}

// SenderRole identifies which party authored a message.
type SenderRole string

const (
	RoleTenant SenderRole = "TENANT"
	RoleAdmin  SenderRole = "ADMIN"
)

// AdminSummary is the display summary of the assigned staff member.
type AdminSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Conversation is a persistent thread between one tenant and at most one
// assigned staff member. Messages holds only the most recent messages for
// roster rendering, never the full history.
type Conversation struct {
	ID          string             `json:"id"`
	TenantID    string             `json:"tenantId"`
	AdminID     *string            `json:"adminId,omitempty"`
	Topic       string             `json:"topic,omitempty"`
	Status      ConversationStatus `json:"status"`
	Admin       *AdminSummary      `json:"admin,omitempty"`
	Messages    []Message          `json:"messages,omitempty"`
	UnreadCount int                `json:"unreadCount,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// DisplayTopic returns the topic or a fallback when none was set.
func (c *Conversation) DisplayTopic() string {
	if c.Topic != "" {
		return c.Topic
	}
	return "Support request"
}

// ============================================================================
// Message
// ============================================================================

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	MessageSent      MessageStatus = "SENT"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageRead      MessageStatus = "READ"
)

// TempIDPrefix marks client-issued ids for not-yet-confirmed sends.
const TempIDPrefix = "temp-"

// Message is a single chat message. ID is server-issued except for optimistic
// placeholders, which carry a temporary client-issued id until the confirming
// push arrives. ClientID is a client correlation id sent alongside outgoing
// messages. At least one of Content and FileURL is present.
type Message struct {
	ID             string        `json:"id"`
	ClientID       string        `json:"clientId,omitempty"`
	ConversationID string        `json:"conversationId"`
	SenderRole     SenderRole    `json:"senderRole"`
	SenderID       string        `json:"senderId"`
	Content        string        `json:"content,omitempty"`
	FileURL        string        `json:"fileUrl,omitempty"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Pending reports whether the message is an optimistic placeholder that has
// not been confirmed by the server yet.
func (m *Message) Pending() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// ============================================================================
// API envelope
// ============================================================================

// Result is the generic API response envelope.
type Result struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

// Decode unmarshals the Data field into the provided type.
func (r *Result) Decode(v interface{}) error {
	if r.Data == nil {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// BillingUnreadInfo is the payment/invoice unread indicator. It sits outside
// the conversation core but follows the same refresh pattern as the roster.
type BillingUnreadInfo struct {
	UnreadCount int       `json:"unreadCount"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}
