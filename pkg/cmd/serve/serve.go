package serve

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/shoutoutsong/shoutout/pkg/filestore"
	"github.com/shoutoutsong/shoutout/pkg/klaviyo"
	"github.com/shoutoutsong/shoutout/pkg/lyrics"
	"github.com/shoutoutsong/shoutout/pkg/mureka"
	"github.com/shoutoutsong/shoutout/pkg/openai"
	"github.com/shoutoutsong/shoutout/pkg/resend"
	"github.com/shoutoutsong/shoutout/pkg/sharestore"
	"github.com/shoutoutsong/shoutout/pkg/stripe"
)

type Config struct {
	Debug bool
	Addr  string

	// FrontendURL is where buyers land after checkout, PublicURL is
	// where this backend is reachable for links we hand out.
	FrontendURL string
	PublicURL   string

	OpenAIKey   string
	OpenAIModel string
	OpenAIHost  string

	MurekaKey  string
	MurekaHost string

	StripeKey           string
	StripePrice         string
	StripeWebhookSecret string
	StripeHost          string

	ResendKey  string
	ResendHost string

	KlaviyoKey  string
	KlaviyoList string
	KlaviyoHost string

	SharePath string
	ShareTTL  time.Duration

	FSType string
	FSConn string
}

type lyricsGenerator interface {
	Kid(ctx context.Context, req *lyrics.KidRequest) (string, error)
	Adult(ctx context.Context, req *lyrics.AdultRequest) (string, error)
}

type songClient interface {
	Generate(ctx context.Context, req *mureka.GenerateRequest) (string, error)
	Query(ctx context.Context, taskID string) (*mureka.Task, []byte, error)
}

type paymentClient interface {
	NewCheckoutSession(ctx context.Context, params *stripe.CheckoutParams) (*stripe.CheckoutSession, error)
	ConstructEvent(payload []byte, header string) (*stripe.Event, error)
}

type emailClient interface {
	SendSongEmail(ctx context.Context, email *resend.SongEmail) (string, error)
}

type listClient interface {
	Subscribe(ctx context.Context, email, source string) error
}

type server struct {
	cfg      *Config
	debug    func(format string, args ...interface{})
	validate *validator.Validate
	store    *sharestore.Store
	lyrics   lyricsGenerator
	songs    songClient
	payments paymentClient
	emails   emailClient
	list     listClient
	fs       *filestore.Store
	client   *http.Client
}

func newServer(cfg *Config) (*server, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:8000"
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "https://shoutoutsong.com"
	}
	cfg.FrontendURL = strings.TrimSuffix(cfg.FrontendURL, "/")
	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("http://%s", cfg.Addr)
	}
	cfg.PublicURL = strings.TrimSuffix(cfg.PublicURL, "/")

	debug := func(format string, args ...interface{}) {
		if !cfg.Debug {
			return
		}
		format += "\n"
		log.Printf(format, args...)
	}

	var fs *filestore.Store
	if cfg.FSType != "" {
		candidate, err := filestore.New(cfg.FSType, cfg.FSConn, cfg.Debug)
		if err != nil {
			return nil, fmt.Errorf("serve: couldn't create file storage: %w", err)
		}
		fs = candidate
	}

	return &server{
		cfg:      cfg,
		debug:    debug,
		validate: validator.New(),
		store: sharestore.New(&sharestore.Config{
			Path:  cfg.SharePath,
			TTL:   cfg.ShareTTL,
			Debug: cfg.Debug,
		}),
		lyrics: lyrics.New(openai.New(&openai.Config{
			Debug: cfg.Debug,
			Token: cfg.OpenAIKey,
			Model: cfg.OpenAIModel,
			Host:  cfg.OpenAIHost,
		})),
		songs: mureka.New(&mureka.Config{
			Debug: cfg.Debug,
			Key:   cfg.MurekaKey,
			Host:  cfg.MurekaHost,
		}),
		payments: stripe.New(&stripe.Config{
			Debug:         cfg.Debug,
			Key:           cfg.StripeKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Host:          cfg.StripeHost,
		}),
		emails: resend.New(&resend.Config{
			Debug: cfg.Debug,
			Key:   cfg.ResendKey,
			Host:  cfg.ResendHost,
		}),
		list: klaviyo.New(&klaviyo.Config{
			Debug:  cfg.Debug,
			Key:    cfg.KlaviyoKey,
			ListID: cfg.KlaviyoList,
			Host:   cfg.KlaviyoHost,
		}),
		fs: fs,
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}, nil
}

// warnMissing logs which credentials are absent. The server still
// starts and fails the affected requests at call time.
func (s *server) warnMissing() {
	checks := []struct {
		name  string
		value string
	}{
		{"openai api key", s.cfg.OpenAIKey},
		{"mureka api key", s.cfg.MurekaKey},
		{"stripe secret key", s.cfg.StripeKey},
		{"stripe price id", s.cfg.StripePrice},
		{"stripe webhook secret", s.cfg.StripeWebhookSecret},
		{"resend api key", s.cfg.ResendKey},
		{"klaviyo api key", s.cfg.KlaviyoKey},
		{"klaviyo list id", s.cfg.KlaviyoList},
	}
	for _, c := range checks {
		if c.value == "" {
			log.Printf("serve: warning: %s not set, requests needing it will fail\n", c.name)
		}
	}
}

func (s *server) router() http.Handler {
	mux := chi.NewRouter()

	// Add middleware
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(60 * time.Second))
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Create subrouter for api endpoints
	r := mux.Group(func(r chi.Router) {
		if s.cfg.Debug {
			r.Use(middleware.Logger)
		}
	})

	r.Get("/", s.handleHealth)
	r.Post("/generate-kid-song", s.handleGenerateKidSong)
	r.Post("/generate-adult-song", s.handleGenerateAdultSong)
	r.Get("/song-status/{taskID}", s.handleSongStatus)
	r.Get("/full-audio/{taskID}", s.handleFullAudio)
	r.Post("/create-checkout-session", s.handleCreateCheckoutSession)
	r.Post("/stripe-webhook", s.handleStripeWebhook)
	r.Post("/create-share-link", s.handleCreateShareLink)
	r.Get("/share/{token}", s.handleGetShare)
	r.Get("/s/{token}", s.handleUnfurl)
	r.Post("/subscribe", s.handleSubscribe)

	return mux
}

// Serve starts the backend HTTP server.
func Serve(ctx context.Context, cfg *Config) error {
	log.Println("serve: server started")
	defer log.Println("serve: server ended")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := newServer(cfg)
	if err != nil {
		return err
	}
	s.warnMissing()

	// Create server
	split := strings.Split(cfg.Addr, ":")
	if len(split) != 2 {
		return fmt.Errorf("serve: invalid address: %s", cfg.Addr)
	}
	host := split[0]
	port, err := strconv.Atoi(split[1])
	if err != nil {
		return fmt.Errorf("serve: invalid port: %s", split[1])
	}
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: s.router(),
	}
	go func() {
		note := fmt.Sprintf("http://%s:%d", host, port)
		if host == "" {
			note = fmt.Sprintf("all interfaces http://localhost:%d", port)
		}
		log.Printf("Starting server on %s", note)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v\n", err)
			cancel()
		}
	}()

	<-ctx.Done()
	return nil
}
