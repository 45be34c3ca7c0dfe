package klaviyo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shoutoutsong/shoutout/pkg/ratelimit"
)

type Client struct {
	client    *http.Client
	debug     bool
	ratelimit ratelimit.Lock
	key       string
	listID    string
	host      string
}

type Config struct {
	Wait   time.Duration
	Debug  bool
	Client *http.Client
	Key    string
	ListID string
	Host   string
}

const (
	defaultHost = "https://a.klaviyo.com"
	apiRevision = "2024-10-15"
)

// New returns a client for the Klaviyo marketing API.
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
		client:    client,
		ratelimit: ratelimit.New(wait),
		debug:     cfg.Debug,
		key:       cfg.Key,
		listID:    cfg.ListID,
		host:      host,
	}
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

type subscribeRequest struct {
	Data subscribeData `json:"data"`
}

type subscribeData struct {
	Type          string                 `json:"type"`
	Attributes    subscribeAttributes    `json:"attributes"`
	Relationships subscribeRelationships `json:"relationships"`
}

type subscribeAttributes struct {
	CustomSource string      `json:"custom_source,omitempty"`
	Profiles     profileList `json:"profiles"`
}

type profileList struct {
	Data []profile `json:"data"`
}

type profile struct {
	Type       string            `json:"type"`
	Attributes profileAttributes `json:"attributes"`
}

type profileAttributes struct {
	Email         string        `json:"email"`
	Subscriptions subscriptions `json:"subscriptions"`
}

type subscriptions struct {
	Email emailChannel `json:"email"`
}

type emailChannel struct {
	Marketing marketing `json:"marketing"`
}

type marketing struct {
	Consent string `json:"consent"`
}

type subscribeRelationships struct {
	List listRelationship `json:"list"`
}

type listRelationship struct {
	Data listData `json:"data"`
}

type listData struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Subscribe adds an email address to the configured list with marketing
// consent. The job is processed asynchronously on the vendor side.
func (c *Client) Subscribe(ctx context.Context, email, source string) error {
	if c.key == "" || c.listID == "" {
		return errors.New("klaviyo: api key or list id not configured")
	}
	if email == "" {
		return errors.New("klaviyo: missing email")
	}
	req := &subscribeRequest{
		Data: subscribeData{
			Type: "profile-subscription-bulk-create-job",
			Attributes: subscribeAttributes{
				CustomSource: source,
				Profiles: profileList{
					Data: []profile{{
						Type: "profile",
						Attributes: profileAttributes{
							Email: email,
							Subscriptions: subscriptions{
								Email: emailChannel{
									Marketing: marketing{Consent: "SUBSCRIBED"},
								},
							},
						},
					}},
				},
			},
			Relationships: subscribeRelationships{
				List: listRelationship{
					Data: listData{Type: "list", ID: c.listID},
				},
			},
		},
	}
	if err := c.do(ctx, http.MethodPost, "api/profile-subscription-bulk-create-jobs/", req); err != nil {
		return fmt.Errorf("klaviyo: couldn't subscribe: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in any) error {
	var reqBody io.Reader
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("klaviyo: couldn't marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}
	c.log("klaviyo: do %s %s %s", method, path, string(body))

	u := fmt.Sprintf("%s/%s", c.host, path)
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("klaviyo: couldn't create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("authorization", fmt.Sprintf("Klaviyo-API-Key %s", c.key))
	req.Header.Set("content-type", "application/json")
	req.Header.Set("revision", apiRevision)

	unlock := c.ratelimit.Lock(ctx)
	defer unlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("klaviyo: couldn't %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("klaviyo: couldn't read response body: %w", err)
	}
	c.log("klaviyo: response %s %s %d %s", method, path, resp.StatusCode, string(respBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMessage := string(respBody)
		if len(errMessage) > 100 {
			errMessage = errMessage[:100] + "..."
		}
		return fmt.Errorf("klaviyo: %s %s returned %d (%s)", method, u, resp.StatusCode, errMessage)
	}
	return nil
}
