package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
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
	host      string
}

type Config struct {
	Wait   time.Duration
	Debug  bool
	Client *http.Client
	Key    string
	Host   string
}

const defaultHost = "https://api.resend.com"

// New returns a client for the Resend email API.
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
		host:      host,
	}
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// fromEmail must belong to a domain verified on the Resend account.
const fromEmail = "ShoutoutSong <songs@shoutoutsong.com>"

// SongEmail holds the fields of a song delivery email.
type SongEmail struct {
	To            string
	RecipientName string
	Subject       string
	DownloadURL   string
	ShareURL      string
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// SendSongEmail sends the song delivery email and returns the message ID.
func (c *Client) SendSongEmail(ctx context.Context, email *SongEmail) (string, error) {
	if email.To == "" {
		return "", errors.New("resend: missing recipient address")
	}
	var html bytes.Buffer
	if err := tpl.Execute(&html, email); err != nil {
		return "", fmt.Errorf("resend: couldn't render email template: %w", err)
	}
	req := &sendRequest{
		From:    fromEmail,
		To:      []string{email.To},
		Subject: fmt.Sprintf("🎵 Your song about %s is ready!", email.RecipientName),
		HTML:    html.String(),
		Text:    textBody(email),
	}
	var resp sendResponse
	if err := c.do(ctx, http.MethodPost, "emails", req, &resp); err != nil {
		return "", fmt.Errorf("resend: couldn't send email: %w", err)
	}
	return resp.ID, nil
}

const textTemplate = `Your Shoutout Song is Ready! 🎉

A song about %s and their love for %s

Download: %s
Share: %s

Make another: https://shoutoutsong.com

---
© 2025 ShoutoutSong`

func textBody(email *SongEmail) string {
	return fmt.Sprintf(textTemplate, email.RecipientName, email.Subject, email.DownloadURL, email.ShareURL)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("resend: couldn't marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}
	c.log("resend: do %s %s %s", method, path, string(body))

	u := fmt.Sprintf("%s/%s", c.host, path)
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("resend: couldn't create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("authorization", fmt.Sprintf("Bearer %s", c.key))
	req.Header.Set("content-type", "application/json")

	unlock := c.ratelimit.Lock(ctx)
	defer unlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend: couldn't %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("resend: couldn't read response body: %w", err)
	}
	c.log("resend: response %s %s %d %s", method, path, resp.StatusCode, string(respBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMessage := string(respBody)
		if len(errMessage) > 100 {
			errMessage = errMessage[:100] + "..."
		}
		return fmt.Errorf("resend: %s %s returned %d (%s)", method, u, resp.StatusCode, errMessage)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("resend: couldn't unmarshal response body (%T): %w", out, err)
		}
	}
	return nil
}

var tpl = template.Must(template.New("song").Parse(songTemplate))

const songTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#faf7f2;font-family:Arial,Helvetica,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:32px 16px;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="max-width:480px;background-color:#ffffff;border-radius:12px;padding:32px;">
<tr><td align="center" style="font-size:28px;padding-bottom:8px;">🎵</td></tr>
<tr><td align="center" style="font-size:24px;font-weight:bold;color:#1f2430;padding-bottom:16px;">Your Shoutout Song is Ready! 🎉</td></tr>
<tr><td align="center" style="font-size:16px;color:#5a6072;padding-bottom:24px;">A song about {{.RecipientName}} and their love for {{.Subject}}</td></tr>
<tr><td align="center" style="padding-bottom:16px;"><a href="{{.DownloadURL}}" style="display:inline-block;background-color:#ff5a5f;color:#ffffff;text-decoration:none;font-size:16px;font-weight:bold;padding:14px 32px;border-radius:999px;">Download your song</a></td></tr>
<tr><td align="center" style="font-size:14px;color:#5a6072;padding-bottom:24px;">Or share it with friends and family:<br><a href="{{.ShareURL}}" style="color:#ff5a5f;">{{.ShareURL}}</a></td></tr>
<tr><td align="center" style="font-size:14px;color:#9aa0ae;border-top:1px solid #eceef2;padding-top:24px;">Want another one? <a href="https://shoutoutsong.com" style="color:#ff5a5f;">Make another song</a><br><br>© 2025 ShoutoutSong</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`
