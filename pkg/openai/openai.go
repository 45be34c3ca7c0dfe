package openai

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type Config struct {
	Debug  bool
	Token  string
	Model  string
	Host   string
	Client *http.Client
}

type Client struct {
	client *openai.Client
	model  string
	debug  bool
}

const defaultModel = "gpt-4.1-mini"

// New returns a client for the OpenAI chat completion API.
func New(cfg *Config) *Client {
	conf := openai.DefaultConfig(cfg.Token)
	if cfg.Host != "" {
		conf.BaseURL = cfg.Host
	}
	if cfg.Client != nil {
		conf.HTTPClient = cfg.Client
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		client: openai.NewClientWithConfig(conf),
		model:  model,
		debug:  cfg.Debug,
	}
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// ChatCompletion sends a system and user message pair and returns the
// model's reply with surrounding whitespace trimmed.
func (c *Client) ChatCompletion(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	c.log("openai: chat completion model=%s temperature=%.2f max_tokens=%d", c.model, temperature, maxTokens)
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: couldn't create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
