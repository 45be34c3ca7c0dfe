package share

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shoutoutsong/shoutout/pkg/mureka"
	"github.com/shoutoutsong/shoutout/pkg/sharestore"
)

type Config struct {
	Debug      bool
	MurekaKey  string
	MurekaHost string
	SharePath  string
	ShareTTL   time.Duration
	PublicURL  string

	SongID        string
	Title         string
	RecipientName string
	Subject       string
	Lyrics        string

	// Token switches to lookup mode and prints the stored record.
	Token string
}

// Run creates a share link for a finished song, or resolves an
// existing token when one is given.
func Run(ctx context.Context, cfg *Config) error {
	log.Println("share: started")
	defer log.Println("share: ended")

	store := sharestore.New(&sharestore.Config{
		Path:  cfg.SharePath,
		TTL:   cfg.ShareTTL,
		Debug: cfg.Debug,
	})

	if cfg.Token != "" {
		record, err := store.Get(ctx, cfg.Token)
		if err != nil {
			return fmt.Errorf("share: %w", err)
		}
		b, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("share: couldn't marshal record: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}

	if cfg.SongID == "" {
		return fmt.Errorf("share: song id not set")
	}
	client := mureka.New(&mureka.Config{
		Debug: cfg.Debug,
		Key:   cfg.MurekaKey,
		Host:  cfg.MurekaHost,
	})
	task, _, err := client.Query(ctx, cfg.SongID)
	if err != nil {
		return fmt.Errorf("share: %w", err)
	}
	audioURL := task.AudioURL()
	if audioURL == "" {
		return fmt.Errorf("share: audio not ready for song %s", cfg.SongID)
	}

	record, err := store.Create(ctx, &sharestore.Params{
		SongID:        cfg.SongID,
		AudioURL:      audioURL,
		Title:         cfg.Title,
		RecipientName: cfg.RecipientName,
		Subject:       cfg.Subject,
		Lyrics:        cfg.Lyrics,
	})
	if err != nil {
		return fmt.Errorf("share: %w", err)
	}

	public := cfg.PublicURL
	if public == "" {
		public = "http://localhost:8000"
	}
	public = strings.TrimSuffix(public, "/")
	log.Println("share: token:", record.Token)
	fmt.Printf("%s/s/%s\n", public, record.Token)
	return nil
}
