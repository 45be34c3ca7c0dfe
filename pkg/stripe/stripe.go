package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CheckoutParams holds the inputs for a hosted checkout session with a
// single line item.
type CheckoutParams struct {
	PriceID    string
	Reference  string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type CheckoutSession struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	CustomerDetails   *CustomerDetails  `json:"customer_details"`
	Metadata          map[string]string `json:"metadata"`
}

// NewCheckoutSession creates a payment mode checkout session and returns
// its hosted payment page URL along with the session.
func (c *Client) NewCheckoutSession(ctx context.Context, params *CheckoutParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if params.Reference != "" {
		form.Set("client_reference_id", params.Reference)
	}
	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}
	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "checkout/sessions", form, &session); err != nil {
		return nil, fmt.Errorf("stripe: couldn't create checkout session: %w", err)
	}
	if session.URL == "" {
		return nil, errors.New("stripe: checkout session has no url")
	}
	return &session, nil
}

// EventCheckoutSessionCompleted is sent when a buyer completes payment.
const EventCheckoutSessionCompleted = "checkout.session.completed"

type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession decodes the event payload as a checkout session.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var session CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return nil, fmt.Errorf("stripe: couldn't unmarshal event object: %w", err)
	}
	return &session, nil
}

// ErrSignature is returned when a webhook payload doesn't match its
// signature header.
var ErrSignature = errors.New("stripe: invalid webhook signature")

const signatureTolerance = 5 * time.Minute

// ConstructEvent verifies the signature header of a webhook payload
// against the configured webhook secret and decodes the event.
func (c *Client) ConstructEvent(payload []byte, header string) (*Event, error) {
	return constructEvent(payload, header, c.webhookSecret, signatureTolerance, time.Now)
}

func constructEvent(payload []byte, header, secret string, tolerance time.Duration, now func() time.Time) (*Event, error) {
	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return nil, err
	}
	if now().Sub(time.Unix(timestamp, 0)) > tolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrSignature)
	}
	expected := computeSignature(timestamp, payload, secret)
	var match bool
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			match = true
			break
		}
	}
	if !match {
		return nil, ErrSignature
	}
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("stripe: couldn't unmarshal event: %w", err)
	}
	return &event, nil
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", ErrSignature)
	}
	var timestamp int64
	var signatures [][]byte
	for _, pair := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return 0, nil, fmt.Errorf("%w: malformed signature header", ErrSignature)
		}
		switch k {
		case "t":
			t, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: malformed timestamp", ErrSignature)
			}
			timestamp = t
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				// Ignore undecodable signatures, another scheme may match
				continue
			}
			signatures = append(signatures, sig)
		default:
			// Ignore unknown schemes
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: missing timestamp or signatures", ErrSignature)
	}
	return timestamp, signatures, nil
}

func computeSignature(timestamp int64, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	return mac.Sum(nil)
}

// SignPayload builds a signature header for a payload, as the webhook
// sender would. Useful for local testing against the webhook endpoint.
func SignPayload(t time.Time, payload []byte, secret string) string {
	timestamp := t.Unix()
	sig := computeSignature(timestamp, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(sig))
}
