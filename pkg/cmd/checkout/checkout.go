package checkout

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/pkg/browser"
	"github.com/shoutoutsong/shoutout/pkg/stripe"
)

type Config struct {
	Debug       bool
	StripeKey   string
	StripePrice string
	StripeHost  string
	FrontendURL string

	SongID        string
	RecipientName string
	Subject       string
	Open          bool
}

// Run creates a checkout session for a generated song and prints its
// payment URL.
func Run(ctx context.Context, cfg *Config) error {
	log.Println("checkout: started")
	defer log.Println("checkout: ended")

	if cfg.SongID == "" {
		return fmt.Errorf("checkout: song id not set")
	}
	if cfg.StripeKey == "" || cfg.StripePrice == "" {
		return fmt.Errorf("checkout: stripe credentials not set")
	}
	frontend := cfg.FrontendURL
	if frontend == "" {
		frontend = "https://shoutoutsong.com"
	}
	frontend = strings.TrimSuffix(frontend, "/")

	client := stripe.New(&stripe.Config{
		Debug: cfg.Debug,
		Key:   cfg.StripeKey,
		Host:  cfg.StripeHost,
	})

	metadata := map[string]string{"song_id": cfg.SongID}
	if cfg.RecipientName != "" {
		metadata["recipient_name"] = cfg.RecipientName
	}
	if cfg.Subject != "" {
		metadata["subject"] = cfg.Subject
	}
	session, err := client.NewCheckoutSession(ctx, &stripe.CheckoutParams{
		PriceID:    cfg.StripePrice,
		Reference:  cfg.SongID,
		SuccessURL: fmt.Sprintf("%s/success?song_id=%s", frontend, url.QueryEscape(cfg.SongID)),
		CancelURL:  fmt.Sprintf("%s/cancel", frontend),
		Metadata:   metadata,
	})
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	log.Println("checkout: url:", session.URL)
	fmt.Println(session.URL)

	if cfg.Open {
		if err := browser.OpenURL(session.URL); err != nil {
			log.Printf("checkout: couldn't open browser: %v\n", err)
		}
	}
	return nil
}
