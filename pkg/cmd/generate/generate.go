package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shoutoutsong/shoutout/pkg/lyrics"
	"github.com/shoutoutsong/shoutout/pkg/mureka"
	"github.com/shoutoutsong/shoutout/pkg/openai"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Debug bool
	Wait  time.Duration

	OpenAIKey   string
	OpenAIModel string
	OpenAIHost  string
	MurekaKey   string
	MurekaHost  string

	Input  string
	Output string
	Limit  int
	NoWait bool

	// Single song fields, used when no input file is given.
	Kind           string
	ChildName      string
	Theme          string
	RecipientName  string
	Relationship   string
	Occasion       string
	StoryOrDetails string
	Genre          string
	Vibe           string
	VoiceType      string
	Duration       int
}

type item struct {
	Kind           string `json:"kind" csv:"kind" yaml:"kind"`
	ChildName      string `json:"child_name" csv:"child_name" yaml:"child_name"`
	Theme          string `json:"theme" csv:"theme" yaml:"theme"`
	RecipientName  string `json:"recipient_name" csv:"recipient_name" yaml:"recipient_name"`
	Relationship   string `json:"relationship" csv:"relationship" yaml:"relationship"`
	Occasion       string `json:"occasion" csv:"occasion" yaml:"occasion"`
	StoryOrDetails string `json:"story_or_details" csv:"story_or_details" yaml:"story_or_details"`
	Genre          string `json:"genre" csv:"genre" yaml:"genre"`
	Vibe           string `json:"vibe" csv:"vibe" yaml:"vibe"`
	VoiceType      string `json:"voice_type" csv:"voice_type" yaml:"voice_type"`
	Duration       int    `json:"duration_seconds" csv:"duration_seconds" yaml:"duration_seconds"`
}

type result struct {
	TaskID   string `json:"task_id" csv:"task_id" yaml:"task_id"`
	Kind     string `json:"kind" csv:"kind" yaml:"kind"`
	Status   string `json:"status" csv:"status" yaml:"status"`
	AudioURL string `json:"audio_url,omitempty" csv:"audio_url" yaml:"audio_url,omitempty"`
	Lyrics   string `json:"lyrics" csv:"lyrics" yaml:"lyrics"`
}

// Run generates songs from the command line, either a single one from
// flags or a batch from a json, csv or yaml file.
func Run(ctx context.Context, cfg *Config) error {
	var count int
	log.Println("generate: started")
	defer func() {
		log.Printf("generate: ended (%d)\n", count)
	}()

	debug := func(format string, args ...interface{}) {
		if !cfg.Debug {
			return
		}
		format += "\n"
		log.Printf(format, args...)
	}

	items, err := load(cfg)
	if err != nil {
		return err
	}

	gen := lyrics.New(openai.New(&openai.Config{
		Debug: cfg.Debug,
		Token: cfg.OpenAIKey,
		Model: cfg.OpenAIModel,
		Host:  cfg.OpenAIHost,
	}))
	client := mureka.New(&mureka.Config{
		Debug: cfg.Debug,
		Key:   cfg.MurekaKey,
		Host:  cfg.MurekaHost,
	})

	var results []*result
	for _, it := range items {
		if cfg.Limit > 0 && count >= cfg.Limit {
			break
		}
		js, _ := json.Marshal(it)
		debug("generate: %s", string(js))

		res, err := generate(ctx, gen, client, it, cfg)
		if err != nil {
			return err
		}
		log.Println("generate: task:", res.TaskID)
		if res.AudioURL != "" {
			log.Println("generate: audio:", res.AudioURL)
		}
		results = append(results, res)
		count++
	}
	return save(cfg.Output, results)
}

func generate(ctx context.Context, gen *lyrics.Generator, client *mureka.Client, it *item, cfg *Config) (*result, error) {
	kind := it.Kind
	if kind == "" {
		kind = "adult"
		if it.ChildName != "" {
			kind = "kid"
		}
	}

	var text, prompt, genre string
	duration := it.Duration
	switch kind {
	case "kid":
		if it.ChildName == "" || it.Theme == "" {
			return nil, fmt.Errorf("generate: child name and theme not set")
		}
		req := &lyrics.KidRequest{
			ChildName: it.ChildName,
			Theme:     it.Theme,
			Occasion:  it.Occasion,
			Vibe:      it.Vibe,
			VoiceType: it.VoiceType,
		}
		req.ApplyDefaults()
		var err error
		text, err = gen.Kid(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		prompt = lyrics.KidStyle(it.ChildName, it.Theme, req.Occasion)
		genre = "pop"
		if duration == 0 {
			duration = 60
		}
	case "adult":
		if it.RecipientName == "" || it.StoryOrDetails == "" {
			return nil, fmt.Errorf("generate: recipient name and story not set")
		}
		req := &lyrics.AdultRequest{
			RecipientName:  it.RecipientName,
			Relationship:   it.Relationship,
			Occasion:       it.Occasion,
			StoryOrDetails: it.StoryOrDetails,
			Genre:          it.Genre,
			Vibe:           it.Vibe,
			VoiceType:      it.VoiceType,
		}
		req.ApplyDefaults()
		var err error
		text, err = gen.Adult(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		prompt = lyrics.AdultStyle(it.RecipientName, req.Relationship, req.Occasion, req.Genre, req.Vibe)
		genre = req.Genre
		if duration == 0 {
			duration = 75
		}
	default:
		return nil, fmt.Errorf("generate: unsupported kind: %s", kind)
	}

	taskID, err := client.Generate(ctx, &mureka.GenerateRequest{
		Lyrics:   text,
		Prompt:   prompt,
		Duration: duration,
		Genre:    genre,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	res := &result{
		TaskID: taskID,
		Kind:   kind,
		Status: "pending",
		Lyrics: text,
	}
	if cfg.NoWait {
		return res, nil
	}
	task, err := client.Wait(ctx, taskID, cfg.Wait)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	res.Status = task.Status
	res.AudioURL = task.AudioURL()
	return res, nil
}

func load(cfg *Config) ([]*item, error) {
	if cfg.Input == "" {
		return []*item{{
			Kind:           cfg.Kind,
			ChildName:      cfg.ChildName,
			Theme:          cfg.Theme,
			RecipientName:  cfg.RecipientName,
			Relationship:   cfg.Relationship,
			Occasion:       cfg.Occasion,
			StoryOrDetails: cfg.StoryOrDetails,
			Genre:          cfg.Genre,
			Vibe:           cfg.Vibe,
			VoiceType:      cfg.VoiceType,
			Duration:       cfg.Duration,
		}}, nil
	}
	b, err := os.ReadFile(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("generate: couldn't read input file: %w", err)
	}
	var items []*item
	switch ext := filepath.Ext(cfg.Input); ext {
	case ".json":
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, fmt.Errorf("generate: couldn't unmarshal items: %w", err)
		}
	case ".csv":
		if err := gocsv.UnmarshalBytes(b, &items); err != nil {
			return nil, fmt.Errorf("generate: couldn't unmarshal items: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &items); err != nil {
			return nil, fmt.Errorf("generate: couldn't unmarshal items: %w", err)
		}
	default:
		return nil, fmt.Errorf("generate: unsupported input format: %s", ext)
	}
	return items, nil
}

func save(output string, results []*result) error {
	if output == "" {
		b, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("generate: couldn't marshal results: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}
	var b []byte
	var err error
	switch ext := filepath.Ext(output); ext {
	case ".json":
		b, err = json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("generate: couldn't marshal results: %w", err)
		}
	case ".csv":
		b, err = gocsv.MarshalBytes(results)
		if err != nil {
			return fmt.Errorf("generate: couldn't marshal results: %w", err)
		}
	case ".yaml", ".yml":
		b, err = yaml.Marshal(results)
		if err != nil {
			return fmt.Errorf("generate: couldn't marshal results: %w", err)
		}
	default:
		return fmt.Errorf("generate: unsupported output format: %s", ext)
	}
	if err := os.WriteFile(output, b, 0644); err != nil {
		return fmt.Errorf("generate: couldn't write output file: %w", err)
	}
	return nil
}
