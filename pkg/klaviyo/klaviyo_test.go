package klaviyo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribe(t *testing.T) {
	var got subscribeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s; want POST", r.Method)
		}
		if r.URL.Path != "/api/profile-subscription-bulk-create-jobs/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Klaviyo-API-Key pk_test_123" {
			t.Errorf("authorization = %q", auth)
		}
		if rev := r.Header.Get("Revision"); rev != apiRevision {
			t.Errorf("revision = %q; want %q", rev, apiRevision)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("couldn't read body: %v", err)
		}
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("couldn't unmarshal body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := New(&Config{
		Key:    "pk_test_123",
		ListID: "LIST123",
		Host:   server.URL,
		Wait:   1 * time.Millisecond,
	})
	if err := client.Subscribe(context.Background(), "buyer@example.com", "song_purchase"); err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if got.Data.Type != "profile-subscription-bulk-create-job" {
		t.Errorf("data.type = %q", got.Data.Type)
	}
	if got.Data.Attributes.CustomSource != "song_purchase" {
		t.Errorf("custom_source = %q", got.Data.Attributes.CustomSource)
	}
	profiles := got.Data.Attributes.Profiles.Data
	if len(profiles) != 1 {
		t.Fatalf("profiles = %d; want 1", len(profiles))
	}
	if profiles[0].Attributes.Email != "buyer@example.com" {
		t.Errorf("email = %q", profiles[0].Attributes.Email)
	}
	if consent := profiles[0].Attributes.Subscriptions.Email.Marketing.Consent; consent != "SUBSCRIBED" {
		t.Errorf("consent = %q", consent)
	}
	if got.Data.Relationships.List.Data.ID != "LIST123" {
		t.Errorf("list id = %q", got.Data.Relationships.List.Data.ID)
	}
}

func TestSubscribeNotConfigured(t *testing.T) {
	client := New(&Config{Wait: 1 * time.Millisecond})
	if err := client.Subscribe(context.Background(), "buyer@example.com", ""); err == nil {
		t.Fatal("Subscribe() expected error when not configured")
	}
}

func TestSubscribeUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errors": [{"detail": "throttled"}]}`))
	}))
	defer server.Close()

	client := New(&Config{Key: "pk_test_123", ListID: "LIST123", Host: server.URL, Wait: 1 * time.Millisecond})
	err := client.Subscribe(context.Background(), "buyer@example.com", "")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("Subscribe() error = %v; want 429", err)
	}
}
