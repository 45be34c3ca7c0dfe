package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewCheckoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s; want POST", r.Method)
		}
		if r.URL.Path != "/checkout/sessions" {
			t.Errorf("path = %s; want /checkout/sessions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
			t.Errorf("content-type = %q", got)
		}
		if got := r.Header.Get("Idempotency-Key"); got == "" {
			t.Error("missing idempotency key")
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("couldn't parse form: %v", err)
		}
		form := map[string]string{
			"mode":                    "payment",
			"line_items[0][price]":    "price_123",
			"line_items[0][quantity]": "1",
			"success_url":             "https://front.example/success?song_id=81226",
			"cancel_url":              "https://front.example/cancel",
			"client_reference_id":     "81226",
			"metadata[song_id]":       "81226",
		}
		for k, want := range form {
			if got := r.PostForm.Get(k); got != want {
				t.Errorf("form[%q] = %q; want %q", k, got, want)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "cs_test_123", "url": "https://checkout.stripe.com/c/pay/cs_test_123"}`))
	}))
	defer server.Close()

	client := New(&Config{
		Key:  "sk_test_123",
		Host: server.URL,
		Wait: 1 * time.Millisecond,
	})
	session, err := client.NewCheckoutSession(context.Background(), &CheckoutParams{
		PriceID:    "price_123",
		Reference:  "81226",
		SuccessURL: "https://front.example/success?song_id=81226",
		CancelURL:  "https://front.example/cancel",
		Metadata:   map[string]string{"song_id": "81226"},
	})
	if err != nil {
		t.Fatalf("NewCheckoutSession() error: %v", err)
	}
	if session.ID != "cs_test_123" {
		t.Errorf("session.ID = %q", session.ID)
	}
	if session.URL != "https://checkout.stripe.com/c/pay/cs_test_123" {
		t.Errorf("session.URL = %q", session.URL)
	}
}

func TestNewCheckoutSessionNoURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "cs_test_123"}`))
	}))
	defer server.Close()

	client := New(&Config{Key: "sk_test_123", Host: server.URL, Wait: 1 * time.Millisecond})
	_, err := client.NewCheckoutSession(context.Background(), &CheckoutParams{
		PriceID:    "price_123",
		SuccessURL: "https://front.example/success",
		CancelURL:  "https://front.example/cancel",
	})
	if err == nil {
		t.Fatal("NewCheckoutSession() expected error on missing url")
	}
}

const eventPayload = `{
	"id": "evt_123",
	"type": "checkout.session.completed",
	"data": {
		"object": {
			"id": "cs_test_123",
			"payment_status": "paid",
			"client_reference_id": "81226",
			"customer_details": {"email": "buyer@example.com", "name": "Buyer"},
			"metadata": {"song_id": "81226"}
		}
	}
}`

func TestConstructEvent(t *testing.T) {
	secret := "whsec_test"
	at := time.Unix(1700000000, 0)
	now := func() time.Time { return at.Add(1 * time.Minute) }
	header := SignPayload(at, []byte(eventPayload), secret)

	event, err := constructEvent([]byte(eventPayload), header, secret, signatureTolerance, now)
	if err != nil {
		t.Fatalf("constructEvent() error: %v", err)
	}
	if event.Type != EventCheckoutSessionCompleted {
		t.Errorf("event.Type = %q", event.Type)
	}
	session, err := event.CheckoutSession()
	if err != nil {
		t.Fatalf("CheckoutSession() error: %v", err)
	}
	if session.Metadata["song_id"] != "81226" {
		t.Errorf("metadata song_id = %q", session.Metadata["song_id"])
	}
	if session.CustomerDetails == nil || session.CustomerDetails.Email != "buyer@example.com" {
		t.Errorf("customer details = %+v", session.CustomerDetails)
	}
	if session.PaymentStatus != "paid" {
		t.Errorf("payment status = %q", session.PaymentStatus)
	}
}

func TestConstructEventInvalid(t *testing.T) {
	secret := "whsec_test"
	at := time.Unix(1700000000, 0)
	now := func() time.Time { return at.Add(1 * time.Minute) }
	valid := SignPayload(at, []byte(eventPayload), secret)

	tests := []struct {
		name    string
		payload string
		header  string
		now     func() time.Time
	}{
		{
			name:    "missing header",
			payload: eventPayload,
			header:  "",
			now:     now,
		},
		{
			name:    "tampered payload",
			payload: eventPayload + " ",
			header:  valid,
			now:     now,
		},
		{
			name:    "wrong secret",
			payload: eventPayload,
			header:  SignPayload(at, []byte(eventPayload), "whsec_other"),
			now:     now,
		},
		{
			name:    "expired timestamp",
			payload: eventPayload,
			header:  valid,
			now:     func() time.Time { return at.Add(6 * time.Minute) },
		},
		{
			name:    "malformed timestamp",
			payload: eventPayload,
			header:  "t=abc,v1=deadbeef",
			now:     now,
		},
		{
			name:    "no signatures",
			payload: eventPayload,
			header:  "t=1700000000",
			now:     now,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := constructEvent([]byte(tt.payload), tt.header, secret, signatureTolerance, tt.now)
			if !errors.Is(err, ErrSignature) {
				t.Fatalf("constructEvent() error = %v; want ErrSignature", err)
			}
		})
	}
}

func TestConstructEventSecondSignature(t *testing.T) {
	// A header may carry several v1 signatures during secret rollover.
	secret := "whsec_test"
	at := time.Unix(1700000000, 0)
	now := func() time.Time { return at.Add(1 * time.Minute) }
	old := SignPayload(at, []byte(eventPayload), "whsec_old")
	valid := SignPayload(at, []byte(eventPayload), secret)
	header := old + ",v1=" + valid[len("t=1700000000,v1="):]

	event, err := constructEvent([]byte(eventPayload), header, secret, signatureTolerance, now)
	if err != nil {
		t.Fatalf("constructEvent() error: %v", err)
	}
	if event.ID != "evt_123" {
		t.Errorf("event.ID = %q", event.ID)
	}
}
