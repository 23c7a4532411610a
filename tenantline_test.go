package tenantline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_ListConversations(t *testing.T) {
	t.Run("decodes the roster and sends the bearer token", func(t *testing.T) {
		var gotAuth, gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			w.Write(okJSON([]Conversation{{ID: "c1", TenantID: "t1", Status: StatusOpen}}))
		}))
		defer server.Close()

		api := NewClient("tok-1", WithBaseURL(server.URL))
		convos, err := api.ListConversations(context.Background())
		if err != nil {
			t.Fatalf("ListConversations() error = %v", err)
		}
		if len(convos) != 1 || convos[0].ID != "c1" {
			t.Fatalf("unexpected roster: %+v", convos)
		}
		if gotAuth != "Bearer tok-1" {
			t.Errorf("expected bearer header, got %q", gotAuth)
		}
		if gotPath != "/api/chat/conversations" {
			t.Errorf("unexpected path %q", gotPath)
		}
	})

	t.Run("API error surfaces as *APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := json.Marshal(Result{OK: false, Error: &APIError{Code: "FORBIDDEN", Message: "no access"}})
			w.Write(b)
		}))
		defer server.Close()

		api := NewClient("tok-1", WithBaseURL(server.URL))
		_, err := api.ListConversations(context.Background())
		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("expected *APIError, got %T: %v", err, err)
		}
		if apiErr.Code != "FORBIDDEN" {
			t.Errorf("unexpected code %q", apiErr.Code)
		}
	})
}

func TestClient_ListMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/conversations/c1/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write(okJSON([]Message{serverMessage("m1", "c1", "hi")}))
	}))
	defer server.Close()

	api := NewClient("tok-1", WithBaseURL(server.URL))
	msgs, err := api.ListMessages(context.Background(), "c1")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestClient_CreateConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]string
		json.Unmarshal(body, &payload)
		if payload["message"] != "first" || payload["topic"] != "noise complaint" {
			t.Errorf("unexpected payload: %v", payload)
		}
		w.Write(okJSON(Conversation{ID: "c7", TenantID: "t1", Status: StatusPending, Topic: payload["topic"]}))
	}))
	defer server.Close()

	api := NewClient("tok-1", WithBaseURL(server.URL))
	convo, err := api.CreateConversation(context.Background(), "noise complaint", "first")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if convo.ID != "c7" || convo.Status != StatusPending {
		t.Fatalf("unexpected conversation: %+v", convo)
	}
}

func TestClient_BillingUnread(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/billing/unread" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write(okJSON(BillingUnreadInfo{UnreadCount: 4}))
	}))
	defer server.Close()

	api := NewClient("tok-1", WithBaseURL(server.URL))
	info, err := api.BillingUnread(context.Background())
	if err != nil {
		t.Fatalf("BillingUnread() error = %v", err)
	}
	if info.UnreadCount != 4 {
		t.Fatalf("unexpected indicator: %+v", info)
	}
}

func TestClient_Options(t *testing.T) {
	custom := &http.Client{}
	api := NewClient("tok", WithBaseURL("https://example.com/"), WithHTTPClient(custom), WithUserAgent("test-agent"))
	if api.BaseURL() != "https://example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", api.BaseURL())
	}
	if api.httpClient != custom {
		t.Error("expected custom http client")
	}
	if api.userAgent != "test-agent" {
		t.Error("expected custom user agent")
	}
}
