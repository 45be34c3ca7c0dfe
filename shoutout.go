package shoutout

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/shoutoutsong/shoutout/pkg/lyrics"
	"github.com/shoutoutsong/shoutout/pkg/mureka"
	"github.com/shoutoutsong/shoutout/pkg/openai"
)

type Config struct {
	Wait  time.Duration
	Debug bool

	OpenAIKey   string
	OpenAIModel string
	MurekaKey   string
}

// Song is the result of a completed generation.
type Song struct {
	TaskID   string
	Status   string
	Lyrics   string
	AudioURL string
}

// GenerateKidSong writes lyrics for a kids song, renders it and waits
// for the audio. If output is set the song is downloaded there.
func GenerateKidSong(ctx context.Context, cfg *Config, req *lyrics.KidRequest, durationSeconds int, output string) (*Song, error) {
	req.ApplyDefaults()
	gen := lyrics.New(openai.New(&openai.Config{
		Debug: cfg.Debug,
		Token: cfg.OpenAIKey,
		Model: cfg.OpenAIModel,
	}))
	text, err := gen.Kid(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("couldn't generate lyrics: %w", err)
	}
	if durationSeconds == 0 {
		durationSeconds = 60
	}
	return renderSong(ctx, cfg, &mureka.GenerateRequest{
		Lyrics:   text,
		Prompt:   lyrics.KidStyle(req.ChildName, req.Theme, req.Occasion),
		Duration: durationSeconds,
		Genre:    "pop",
	}, output)
}

// GenerateAdultSong is the grown-up counterpart of GenerateKidSong.
func GenerateAdultSong(ctx context.Context, cfg *Config, req *lyrics.AdultRequest, durationSeconds int, output string) (*Song, error) {
	req.ApplyDefaults()
	gen := lyrics.New(openai.New(&openai.Config{
		Debug: cfg.Debug,
		Token: cfg.OpenAIKey,
		Model: cfg.OpenAIModel,
	}))
	text, err := gen.Adult(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("couldn't generate lyrics: %w", err)
	}
	if durationSeconds == 0 {
		durationSeconds = 75
	}
	return renderSong(ctx, cfg, &mureka.GenerateRequest{
		Lyrics:   text,
		Prompt:   lyrics.AdultStyle(req.RecipientName, req.Relationship, req.Occasion, req.Genre, req.Vibe),
		Duration: durationSeconds,
		Genre:    req.Genre,
	}, output)
}

func renderSong(ctx context.Context, cfg *Config, req *mureka.GenerateRequest, output string) (*Song, error) {
	client := mureka.New(&mureka.Config{
		Debug: cfg.Debug,
		Key:   cfg.MurekaKey,
	})
	taskID, err := client.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("couldn't generate song: %w", err)
	}
	task, err := client.Wait(ctx, taskID, cfg.Wait)
	if err != nil {
		return nil, fmt.Errorf("couldn't wait for song: %w", err)
	}
	if task.Status != mureka.StatusSucceeded {
		return nil, fmt.Errorf("generation %s: %s", task.Status, task.FailedReason)
	}
	song := &Song{
		TaskID:   taskID,
		Status:   task.Status,
		Lyrics:   req.Lyrics,
		AudioURL: task.AudioURL(),
	}
	log.Println("task:", song.TaskID)
	log.Println("audio:", song.AudioURL)

	if output != "" {
		httpClient := &http.Client{
			Timeout: 2 * time.Minute,
		}
		if err := download(ctx, httpClient, song.AudioURL, output); err != nil {
			return nil, err
		}
	}
	return song, nil
}

func download(ctx context.Context, client *http.Client, url, output string) error {
	// Create request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("couldn't create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("couldn't download song: %w", err)
	}
	defer resp.Body.Close()

	// Write audio to output
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("couldn't create output file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("couldn't write to output file: %w", err)
	}
	return nil
}
