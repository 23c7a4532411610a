// Package tenantline provides the Go client SDK for the Tenantline support
// chat service: a real-time conversation channel between a requesting tenant
// and staff admins.
//
// The REST client covers the pull surface (roster, history, create, billing
// unread indicator); Socket, Rooms and Session cover the push surface with
// ordering, deduplication and optimistic-send reconciliation.
//
// Example:
//
//	api := tenantline.NewClient("jwt-token")
//	sock := tenantline.NewSocket(tenantline.SocketConfig{BaseURL: api.BaseURL(), Token: "jwt-token"})
//	sess := tenantline.NewSession(api, sock, tenantline.Identity{SenderID: "tenant-1", Role: tenantline.RoleTenant})
//
//	sock.Connect(ctx)
//	convos, _ := sess.Refresh(ctx)
//	sess.LoadHistory(ctx, convos[0].ID)
//	sess.Send(ctx, convos[0].ID, "Hello!")
package tenantline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.tenantline.io"
	DefaultTimeout = 30 * time.Second
)

// ============================================================================
// Client
// ============================================================================

// Client is the REST client for pull-style requests.
type Client struct {
	token      string
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithTimeout sets the per-request timeout. The observed protocol defines no
// timeout for pull requests, so it stays configurable rather than fixed.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

func WithUserAgent(agent string) ClientOption {
	return func(c *Client) { c.userAgent = agent }
}

// NewClient creates a new Tenantline REST client. token is the bearer
// credential obtained from the authentication collaborator.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken sets or updates the auth token, e.g. after the auth collaborator
// refreshed it.
func (c *Client) SetToken(token string) {
	c.token = token
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ============================================================================
// Internal request helper
// ============================================================================

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, query map[string]string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, query map[string]string) (*Result, error) {
	data, err := c.doRequest(ctx, method, path, body, query)
	if err != nil {
		return nil, err
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

func resultErr(r *Result, fallback string) error {
	if r.Error != nil {
		return r.Error
	}
	return fmt.Errorf("%s", fallback)
}

// ============================================================================
// Pull API
// ============================================================================

// ListConversations pulls the conversation roster, most recent first.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	res, err := c.do(ctx, "GET", "/api/chat/conversations", nil, nil)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, resultErr(res, "failed to list conversations")
	}
	var convos []Conversation
	if err := res.Decode(&convos); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return convos, nil
}

// ListMessages pulls the full message history for one conversation in
// display order.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	res, err := c.do(ctx, "GET", "/api/chat/conversations/"+conversationID+"/messages", nil, nil)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, resultErr(res, "failed to list messages")
	}
	var msgs []Message
	if err := res.Decode(&msgs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return msgs, nil
}

// CreateConversation opens a new conversation. topic may be empty;
// initialMessage is required by the server.
func (c *Client) CreateConversation(ctx context.Context, topic, initialMessage string) (*Conversation, error) {
	payload := map[string]string{"message": initialMessage}
	if topic != "" {
		payload["topic"] = topic
	}
	res, err := c.do(ctx, "POST", "/api/chat/conversations", payload, nil)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, resultErr(res, "failed to create conversation")
	}
	var convo Conversation
	if err := res.Decode(&convo); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return &convo, nil
}

// BillingUnread pulls the payment/invoice unread indicator. Outside the chat
// core but refreshed through the identical pull pattern.
func (c *Client) BillingUnread(ctx context.Context) (*BillingUnreadInfo, error) {
	res, err := c.do(ctx, "GET", "/api/billing/unread", nil, nil)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, resultErr(res, "failed to fetch billing unread indicator")
	}
	var info BillingUnreadInfo
	if err := res.Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode billing unread indicator: %w", err)
	}
	return &info, nil
}
