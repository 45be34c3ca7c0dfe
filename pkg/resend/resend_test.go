package resend

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

func TestSendSongEmail(t *testing.T) {
	var got sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s; want POST", r.Method)
		}
		if r.URL.Path != "/emails" {
			t.Errorf("path = %s; want /emails", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer re_test_123" {
			t.Errorf("authorization = %q", auth)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("couldn't read body: %v", err)
		}
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("couldn't unmarshal body: %v", err)
		}
		_, _ = w.Write([]byte(`{"id": "email_123"}`))
	}))
	defer server.Close()

	client := New(&Config{
		Key:  "re_test_123",
		Host: server.URL,
		Wait: 1 * time.Millisecond,
	})
	id, err := client.SendSongEmail(context.Background(), &SongEmail{
		To:            "buyer@example.com",
		RecipientName: "Mia",
		Subject:       "dinosaurs",
		DownloadURL:   "https://songs.example/full-audio/81226",
		ShareURL:      "https://songs.example/s/abc123",
	})
	if err != nil {
		t.Fatalf("SendSongEmail() error: %v", err)
	}
	if id != "email_123" {
		t.Errorf("id = %q; want %q", id, "email_123")
	}
	if got.From != fromEmail {
		t.Errorf("from = %q; want %q", got.From, fromEmail)
	}
	if len(got.To) != 1 || got.To[0] != "buyer@example.com" {
		t.Errorf("to = %v", got.To)
	}
	if want := "🎵 Your song about Mia is ready!"; got.Subject != want {
		t.Errorf("subject = %q; want %q", got.Subject, want)
	}
	for _, want := range []string{
		"A song about Mia and their love for dinosaurs",
		"https://songs.example/full-audio/81226",
		"https://songs.example/s/abc123",
	} {
		if !strings.Contains(got.HTML, want) {
			t.Errorf("html missing %q", want)
		}
		if !strings.Contains(got.Text, want) {
			t.Errorf("text missing %q", want)
		}
	}
	if !strings.Contains(got.Text, "© 2025 ShoutoutSong") {
		t.Errorf("text missing footer:\n%s", got.Text)
	}
}

func TestSendSongEmailMissingTo(t *testing.T) {
	client := New(&Config{Key: "re_test_123", Wait: 1 * time.Millisecond})
	if _, err := client.SendSongEmail(context.Background(), &SongEmail{RecipientName: "Mia"}); err == nil {
		t.Fatal("SendSongEmail() expected error on missing address")
	}
}

func TestSendSongEmailUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message": "invalid from address"}`))
	}))
	defer server.Close()

	client := New(&Config{Key: "re_test_123", Host: server.URL, Wait: 1 * time.Millisecond})
	_, err := client.SendSongEmail(context.Background(), &SongEmail{
		To:            "buyer@example.com",
		RecipientName: "Mia",
	})
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("SendSongEmail() error = %v; want 422", err)
	}
}
