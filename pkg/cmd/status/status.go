package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/shoutoutsong/shoutout/pkg/mureka"
)

type Config struct {
	Debug      bool
	MurekaKey  string
	MurekaHost string

	TaskID   string
	Watch    bool
	Interval time.Duration
}

// Run prints the vendor status of a generation task. With watch
// enabled it polls until the task reaches a terminal status.
func Run(ctx context.Context, cfg *Config) error {
	log.Println("status: started")
	defer log.Println("status: ended")

	if cfg.TaskID == "" {
		return fmt.Errorf("status: task id not set")
	}
	client := mureka.New(&mureka.Config{
		Debug: cfg.Debug,
		Key:   cfg.MurekaKey,
		Host:  cfg.MurekaHost,
	})

	if cfg.Watch {
		task, err := client.Wait(ctx, cfg.TaskID, cfg.Interval)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		log.Println("status:", task.Status)
		if u := task.AudioURL(); u != "" {
			log.Println("audio:", u)
		}
		b, err := json.MarshalIndent(task, "", "  ")
		if err != nil {
			return fmt.Errorf("status: couldn't marshal task: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}

	task, raw, err := client.Query(ctx, cfg.TaskID)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	log.Println("status:", task.Status)
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}
