package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/shoutoutsong/shoutout/pkg/ratelimit"
)

type Client struct {
	client        *http.Client
	debug         bool
	ratelimit     ratelimit.Lock
	key           string
	webhookSecret string
	host          string
}

type Config struct {
	Wait          time.Duration
	Debug         bool
	Client        *http.Client
	Key           string
	WebhookSecret string
	Host          string
}

const defaultHost = "https://api.stripe.com/v1"

// New returns a client for the Stripe API.
func New(cfg *Config) *Client {
	wait := cfg.Wait
	if wait == 0 {
		wait = 1 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 2 * time.Minute,
		}
	}
	host := strings.TrimSuffix(cfg.Host, "/")
	if host == "" {
		host = defaultHost
	}
	return &Client{
		client:        client,
		ratelimit:     ratelimit.New(wait),
		debug:         cfg.Debug,
		key:           cfg.Key,
		webhookSecret: cfg.WebhookSecret,
		host:          host,
	}
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

var backoff = []time.Duration{
	30 * time.Second,
	1 * time.Minute,
	2 * time.Minute,
}

func (c *Client) do(ctx context.Context, method, path string, in url.Values, out any) error {
	maxAttempts := 3
	attempts := 0
	// Stripe dedupes retried POSTs by idempotency key, so it must stay
	// the same across attempts of a single call.
	idempotencyKey, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("stripe: couldn't generate idempotency key: %w", err)
	}
	for {
		if err != nil {
			log.Println("retrying...", err)
		}
		err = c.doAttempt(ctx, method, path, in, out, idempotencyKey)
		if err == nil {
			return nil
		}
		// Increase attempts and check if we should stop
		attempts++
		if attempts >= maxAttempts {
			return err
		}
		// If the error is temporary retry
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			continue
		}

		// Check status code
		var retry bool
		var errStatus errStatusCode
		if errors.As(err, &errStatus) {
			switch int(errStatus) {
			case http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusTooManyRequests, 520:
				// Retry on these status codes
				retry = true
			default:
				return err
			}
		}
		if !retry {
			return err
		}

		// Wait before retrying
		idx := attempts - 1
		if idx >= len(backoff) {
			idx = len(backoff) - 1
		}
		wait := backoff[idx]
		c.log("stripe: server seems to be down, waiting %s before retrying", wait)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

type errStatusCode int

func (e errStatusCode) Error() string {
	return fmt.Sprintf("%d", e)
}

func (c *Client) doAttempt(ctx context.Context, method, path string, in url.Values, out any, idempotencyKey string) error {
	var reqBody io.Reader
	var encoded string
	if in != nil {
		encoded = in.Encode()
		reqBody = strings.NewReader(encoded)
	}
	c.log("stripe: do %s %s %s", method, path, encoded)

	u := fmt.Sprintf("%s/%s", c.host, path)
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("stripe: couldn't create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("authorization", fmt.Sprintf("Bearer %s", c.key))
	if in != nil {
		req.Header.Set("content-type", "application/x-www-form-urlencoded")
	}
	if method == http.MethodPost {
		req.Header.Set("idempotency-key", idempotencyKey)
	}

	unlock := c.ratelimit.Lock(ctx)
	defer unlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe: couldn't %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("stripe: couldn't read response body: %w", err)
	}
	c.log("stripe: response %s %s %d %s", method, path, resp.StatusCode, string(respBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMessage := string(respBody)
		if len(errMessage) > 100 {
			errMessage = errMessage[:100] + "..."
		}
		return fmt.Errorf("stripe: %s %s returned (%s): %w", method, u, errMessage, errStatusCode(resp.StatusCode))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("stripe: couldn't unmarshal response body (%T): %w", out, err)
		}
	}
	return nil
}
