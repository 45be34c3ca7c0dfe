package mureka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Task statuses reported by the vendor.
const (
	StatusPreparing = "preparing"
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusStreaming = "streaming"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusTimeouted = "timeouted"
	StatusCancelled = "cancelled"
)

type GenerateRequest struct {
	Lyrics   string
	Prompt   string
	Duration int
	Genre    string
}

type generateRequest struct {
	Model    string `json:"model"`
	Lyrics   string `json:"lyrics"`
	Prompt   string `json:"prompt,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Genre    string `json:"genre,omitempty"`
}

type Task struct {
	ID           json.Number `json:"id"`
	Status       string      `json:"status"`
	FailedReason string      `json:"failed_reason,omitempty"`
	Model        string      `json:"model,omitempty"`
	CreatedAt    int64       `json:"created_at,omitempty"`
	FinishedAt   int64       `json:"finished_at,omitempty"`
	Choices      []Choice    `json:"choices,omitempty"`
}

// Choice is one candidate rendering of a task. The vendor populates
// different URL fields depending on format and generation mode.
type Choice struct {
	Index     int    `json:"index"`
	URL       string `json:"url,omitempty"`
	FLACURL   string `json:"flac_url,omitempty"`
	StreamURL string `json:"stream_url,omitempty"`
	Duration  int    `json:"duration,omitempty"`
}

// AudioURL returns a playable URL from the first choice, or an empty
// string when the task has no audio yet.
func (t *Task) AudioURL() string {
	if len(t.Choices) == 0 {
		return ""
	}
	choice := t.Choices[0]
	for _, u := range []string{choice.URL, choice.FLACURL, choice.StreamURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

// Finished reports whether the task reached a terminal status.
func (t *Task) Finished() bool {
	switch t.Status {
	case StatusSucceeded, StatusFailed, StatusTimeouted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Generate submits a generation job and returns its task id.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	in := &generateRequest{
		Model:    "auto",
		Lyrics:   req.Lyrics,
		Prompt:   req.Prompt,
		Duration: req.Duration,
		Genre:    req.Genre,
	}
	var task Task
	if _, err := c.do(ctx, "POST", "song/generate", in, &task); err != nil {
		return "", fmt.Errorf("mureka: couldn't generate song: %w", err)
	}
	id := task.ID.String()
	if id == "" {
		return "", fmt.Errorf("mureka: generate response didn't contain a task id")
	}
	return id, nil
}

// Query returns the current state of a task along with the raw vendor
// payload, so callers can pass it through untouched.
func (c *Client) Query(ctx context.Context, taskID string) (*Task, []byte, error) {
	var task Task
	raw, err := c.do(ctx, "GET", fmt.Sprintf("song/query/%s", taskID), nil, &task)
	if err != nil {
		return nil, nil, fmt.Errorf("mureka: couldn't query task %s: %w", taskID, err)
	}
	return &task, raw, nil
}

// Wait polls a task until it reaches a terminal status.
func (c *Client) Wait(ctx context.Context, taskID string, interval time.Duration) (*Task, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	for {
		task, _, err := c.Query(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if task.Finished() {
			return task, nil
		}
		c.log("mureka: task %s is %s", taskID, task.Status)
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
