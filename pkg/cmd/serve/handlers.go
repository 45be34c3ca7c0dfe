package serve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/shoutoutsong/shoutout/pkg/lyrics"
	"github.com/shoutoutsong/shoutout/pkg/mureka"
	"github.com/shoutoutsong/shoutout/pkg/resend"
	"github.com/shoutoutsong/shoutout/pkg/sharestore"
	"github.com/shoutoutsong/shoutout/pkg/sound"
	"github.com/shoutoutsong/shoutout/pkg/stripe"
)

const (
	defaultKidDuration   = 60
	defaultAdultDuration = 75

	webhookMaxBytes = 65536

	fallbackRecipient = "someone special"
	fallbackSubject   = "something special"
	subscribeSource   = "song_purchase"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *server) error(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Detail: detail})
}

// decode parses and validates a JSON request body, writing a 400
// response on failure.
func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		s.error(w, r, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.error(w, r, http.StatusBadRequest, validationDetail(err))
		return false
	}
	return true
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("Invalid value for %s", verrs[0].Field())
	}
	return "Invalid request"
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"message": "Shoutout Song backend is running 🎵"})
}

type kidSongRequest struct {
	ChildName       string `json:"child_name" validate:"required"`
	Theme           string `json:"theme" validate:"required"`
	Occasion        string `json:"occasion"`
	Vibe            string `json:"vibe"`
	VoiceType       string `json:"voice_type"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=20,lte=180"`
}

type adultSongRequest struct {
	RecipientName   string `json:"recipient_name" validate:"required"`
	Relationship    string `json:"relationship"`
	Occasion        string `json:"occasion"`
	StoryOrDetails  string `json:"story_or_details" validate:"required"`
	Genre           string `json:"genre"`
	Vibe            string `json:"vibe"`
	VoiceType       string `json:"voice_type"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=30,lte=240"`
}

type generateResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
	Lyrics string `json:"lyrics"`
	Kind   string `json:"kind"`
}

func (s *server) handleGenerateKidSong(w http.ResponseWriter, r *http.Request) {
	if s.cfg.OpenAIKey == "" || s.cfg.MurekaKey == "" {
		s.error(w, r, http.StatusInternalServerError, "Song generation is not configured")
		return
	}
	var req kidSongRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.error(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DurationSeconds == 0 {
		req.DurationSeconds = defaultKidDuration
	}
	if err := s.validate.Struct(&req); err != nil {
		s.error(w, r, http.StatusBadRequest, validationDetail(err))
		return
	}

	lreq := &lyrics.KidRequest{
		ChildName: req.ChildName,
		Theme:     req.Theme,
		Occasion:  req.Occasion,
		Vibe:      req.Vibe,
		VoiceType: req.VoiceType,
	}
	lreq.ApplyDefaults()
	text, err := s.lyrics.Kid(r.Context(), lreq)
	if err != nil {
		log.Println("serve: couldn't generate kid lyrics:", err)
		s.error(w, r, http.StatusBadGateway, "Lyrics vendor error")
		return
	}

	taskID, err := s.songs.Generate(r.Context(), &mureka.GenerateRequest{
		Lyrics:   text,
		Prompt:   lyrics.KidStyle(req.ChildName, req.Theme, lreq.Occasion),
		Duration: req.DurationSeconds,
		Genre:    "pop",
	})
	if err != nil {
		log.Println("serve: couldn't start song generation:", err)
		s.error(w, r, http.StatusBadGateway, "Song vendor error")
		return
	}

	render.JSON(w, r, generateResponse{
		Status: "pending",
		TaskID: taskID,
		Lyrics: text,
		Kind:   "kid",
	})
}

func (s *server) handleGenerateAdultSong(w http.ResponseWriter, r *http.Request) {
	if s.cfg.OpenAIKey == "" || s.cfg.MurekaKey == "" {
		s.error(w, r, http.StatusInternalServerError, "Song generation is not configured")
		return
	}
	var req adultSongRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.error(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DurationSeconds == 0 {
		req.DurationSeconds = defaultAdultDuration
	}
	if err := s.validate.Struct(&req); err != nil {
		s.error(w, r, http.StatusBadRequest, validationDetail(err))
		return
	}

	lreq := &lyrics.AdultRequest{
		RecipientName:  req.RecipientName,
		Relationship:   req.Relationship,
		Occasion:       req.Occasion,
		StoryOrDetails: req.StoryOrDetails,
		Genre:          req.Genre,
		Vibe:           req.Vibe,
		VoiceType:      req.VoiceType,
	}
	lreq.ApplyDefaults()
	text, err := s.lyrics.Adult(r.Context(), lreq)
	if err != nil {
		log.Println("serve: couldn't generate adult lyrics:", err)
		s.error(w, r, http.StatusBadGateway, "Lyrics vendor error")
		return
	}

	taskID, err := s.songs.Generate(r.Context(), &mureka.GenerateRequest{
		Lyrics:   text,
		Prompt:   lyrics.AdultStyle(req.RecipientName, lreq.Relationship, lreq.Occasion, lreq.Genre, lreq.Vibe),
		Duration: req.DurationSeconds,
		Genre:    lreq.Genre,
	})
	if err != nil {
		log.Println("serve: couldn't start song generation:", err)
		s.error(w, r, http.StatusBadGateway, "Song vendor error")
		return
	}

	render.JSON(w, r, generateResponse{
		Status: "pending",
		TaskID: taskID,
		Lyrics: text,
		Kind:   "adult",
	})
}

// handleSongStatus proxies the vendor status payload untouched, so the
// frontend can follow fields we don't model.
func (s *server) handleSongStatus(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MurekaKey == "" {
		s.error(w, r, http.StatusInternalServerError, "Song generation is not configured")
		return
	}
	taskID := chi.URLParam(r, "taskID")
	_, raw, err := s.songs.Query(r.Context(), taskID)
	if err != nil {
		log.Println("serve: couldn't query song status:", err)
		s.error(w, r, http.StatusBadGateway, "Song vendor error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

var filenamePattern = regexp.MustCompile(`[^a-zA-Z0-9 _-]+`)

func sanitizeFilename(name string) string {
	name = filenamePattern.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	return strings.ReplaceAll(name, " ", "-")
}

func (s *server) handleFullAudio(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MurekaKey == "" {
		s.error(w, r, http.StatusInternalServerError, "Song generation is not configured")
		return
	}
	taskID := chi.URLParam(r, "taskID")
	task, _, err := s.songs.Query(r.Context(), taskID)
	if err != nil {
		log.Println("serve: couldn't query song audio:", err)
		s.error(w, r, http.StatusBadGateway, "Song vendor error")
		return
	}
	audioURL := task.AudioURL()
	if audioURL == "" {
		s.error(w, r, http.StatusNotFound, "Audio not ready")
		return
	}
	filename := sanitizeFilename(r.URL.Query().Get("title"))
	if filename == "" {
		filename = "shoutout-song"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".mp3"))
	http.Redirect(w, r, audioURL, http.StatusFound)
}

type checkoutRequest struct {
	SongID        string `json:"song_id" validate:"required"`
	RecipientName string `json:"recipient_name"`
	Subject       string `json:"subject"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

func (s *server) handleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.cfg.StripeKey == "" || s.cfg.StripePrice == "" {
		s.error(w, r, http.StatusInternalServerError, "Payments are not configured")
		return
	}

	metadata := map[string]string{"song_id": req.SongID}
	if req.RecipientName != "" {
		metadata["recipient_name"] = req.RecipientName
	}
	if req.Subject != "" {
		metadata["subject"] = req.Subject
	}
	session, err := s.payments.NewCheckoutSession(r.Context(), &stripe.CheckoutParams{
		PriceID:    s.cfg.StripePrice,
		Reference:  req.SongID,
		SuccessURL: fmt.Sprintf("%s/success?song_id=%s", s.cfg.FrontendURL, url.QueryEscape(req.SongID)),
		CancelURL:  fmt.Sprintf("%s/cancel", s.cfg.FrontendURL),
		Metadata:   metadata,
	})
	if err != nil {
		log.Println("serve: couldn't create checkout session:", err)
		s.error(w, r, http.StatusBadGateway, "Payment vendor error")
		return
	}
	render.JSON(w, r, checkoutResponse{CheckoutURL: session.URL})
}

func (s *server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.StripeWebhookSecret == "" {
		s.error(w, r, http.StatusInternalServerError, "Webhook is not configured")
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookMaxBytes))
	if err != nil {
		s.error(w, r, http.StatusBadRequest, "Couldn't read request body")
		return
	}
	event, err := s.payments.ConstructEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Println("serve: invalid webhook signature:", err)
		s.error(w, r, http.StatusBadRequest, "Invalid signature")
		return
	}
	if event.Type != stripe.EventCheckoutSessionCompleted {
		render.JSON(w, r, map[string]string{"status": "ignored"})
		return
	}
	session, err := event.CheckoutSession()
	if err != nil {
		log.Println("serve: couldn't parse checkout session:", err)
		s.error(w, r, http.StatusBadRequest, "Invalid event payload")
		return
	}
	var email string
	if session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}
	if email == "" {
		log.Println("serve: checkout completed without customer email")
		render.JSON(w, r, map[string]string{"status": "no email"})
		return
	}
	s.fulfill(r.Context(), session, email)
	render.JSON(w, r, map[string]string{"status": "success"})
}

// fulfill runs the post-payment side effects. Each step is wrapped so
// one failure doesn't stop the rest, and none of them changes the 200
// acknowledgment to the payment vendor.
func (s *server) fulfill(ctx context.Context, session *stripe.CheckoutSession, email string) {
	songID := session.Metadata["song_id"]
	if songID == "" {
		songID = session.ClientReferenceID
	}
	if songID == "" {
		log.Println("serve: checkout session has no song id")
		return
	}
	recipient := session.Metadata["recipient_name"]
	if recipient == "" {
		recipient = fallbackRecipient
	}
	subject := session.Metadata["subject"]
	if subject == "" {
		subject = fallbackSubject
	}

	downloadURL := fmt.Sprintf("%s/full-audio/%s", s.cfg.PublicURL, songID)
	shareURL := downloadURL

	var audioURL string
	task, _, err := s.songs.Query(ctx, songID)
	if err != nil {
		log.Println("serve: couldn't query song for fulfillment:", err)
	} else {
		audioURL = task.AudioURL()
	}

	if audioURL == "" {
		log.Println("serve: no audio available yet for song", songID)
	} else {
		record, err := s.store.Create(ctx, &sharestore.Params{
			SongID:        songID,
			AudioURL:      audioURL,
			RecipientName: session.Metadata["recipient_name"],
			Subject:       session.Metadata["subject"],
		})
		if err != nil {
			log.Println("serve: couldn't create share link:", err)
		} else {
			shareURL = fmt.Sprintf("%s/s/%s", s.cfg.PublicURL, record.Token)
		}

		s.archive(ctx, songID, audioURL)

		if s.cfg.ResendKey == "" {
			log.Println("serve: resend api key not set, skipping email")
		} else if _, err := s.emails.SendSongEmail(ctx, &resend.SongEmail{
			To:            email,
			RecipientName: recipient,
			Subject:       subject,
			DownloadURL:   downloadURL,
			ShareURL:      shareURL,
		}); err != nil {
			log.Println("serve: couldn't send email:", err)
		}
	}

	if err := s.list.Subscribe(ctx, email, subscribeSource); err != nil {
		log.Println("serve: couldn't subscribe email:", err)
	}
}

// archive stores a copy of the purchased audio if a file store is
// configured. Vendor URLs expire after a while, the archive doesn't.
func (s *server) archive(ctx context.Context, songID, audioURL string) {
	if s.fs == nil {
		return
	}
	b, err := s.download(ctx, audioURL)
	if err != nil {
		log.Println("serve: couldn't download audio:", err)
		return
	}
	duration, err := sound.Probe(b)
	if err != nil {
		log.Println("serve: couldn't probe audio:", err)
		return
	}
	s.debug("serve: archiving song %s (%s)", songID, duration)
	f, err := os.CreateTemp("", "shoutout-*.mp3")
	if err != nil {
		log.Println("serve: couldn't create temp file:", err)
		return
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		log.Println("serve: couldn't write temp file:", err)
		return
	}
	if err := f.Close(); err != nil {
		log.Println("serve: couldn't close temp file:", err)
		return
	}
	if err := s.fs.SetMP3(ctx, tmp, songID); err != nil {
		log.Println("serve: couldn't archive audio:", err)
	}
}

func (s *server) download(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("serve: couldn't create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serve: couldn't download %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serve: download %s returned %d", u, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("serve: couldn't read audio: %w", err)
	}
	return b, nil
}

type shareLinkRequest struct {
	SongID        string `json:"song_id" validate:"required"`
	Title         string `json:"title"`
	RecipientName string `json:"recipient_name"`
	Subject       string `json:"subject"`
	Lyrics        string `json:"lyrics"`
}

type shareLinkResponse struct {
	ShareURL string `json:"share_url"`
}

func (s *server) handleCreateShareLink(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MurekaKey == "" {
		s.error(w, r, http.StatusInternalServerError, "Song generation is not configured")
		return
	}
	var req shareLinkRequest
	if !s.decode(w, r, &req) {
		return
	}
	task, _, err := s.songs.Query(r.Context(), req.SongID)
	if err != nil {
		log.Println("serve: couldn't query song for share link:", err)
		s.error(w, r, http.StatusBadGateway, "Song vendor error")
		return
	}
	audioURL := task.AudioURL()
	if audioURL == "" {
		s.error(w, r, http.StatusNotFound, "Song not ready")
		return
	}
	record, err := s.store.Create(r.Context(), &sharestore.Params{
		SongID:        req.SongID,
		AudioURL:      audioURL,
		Title:         req.Title,
		RecipientName: req.RecipientName,
		Subject:       req.Subject,
		Lyrics:        req.Lyrics,
	})
	if err != nil {
		log.Println("serve: couldn't persist share link:", err)
		s.error(w, r, http.StatusInternalServerError, "Couldn't persist share link")
		return
	}
	render.JSON(w, r, shareLinkResponse{
		ShareURL: fmt.Sprintf("%s/s/%s", s.cfg.PublicURL, record.Token),
	})
}

func (s *server) handleGetShare(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	record, err := s.store.Get(r.Context(), token)
	if err != nil {
		s.error(w, r, http.StatusNotFound, "Share link not found")
		return
	}
	render.JSON(w, r, record)
}

type subscribeRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Source string `json:"source"`
}

type subscribeResponse struct {
	Success      bool `json:"success"`
	KlaviyoAdded bool `json:"klaviyo_added"`
}

// handleSubscribe always reports success to the caller, the signup
// form shouldn't break over a vendor hiccup.
func (s *server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !s.decode(w, r, &req) {
		return
	}
	added := true
	if err := s.list.Subscribe(r.Context(), req.Email, req.Source); err != nil {
		log.Println("serve: couldn't subscribe email:", err)
		added = false
	}
	render.JSON(w, r, subscribeResponse{Success: true, KlaviyoAdded: added})
}
