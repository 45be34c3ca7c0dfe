package sharestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrNotFound is returned for unknown and expired tokens alike, so a
// caller can't tell whether a token ever existed.
var ErrNotFound = errors.New("sharestore: not found")

const (
	// DefaultTTL keeps share links alive for a year.
	DefaultTTL = 8760 * time.Hour

	DefaultTitle    = "Your Shoutout Song"
	DefaultSubtitle = "A personalized song made just for you"

	defaultPath = "share_links.json"
)

// Record is a share link entry. Token and CreatedAt are assigned by the
// store on creation and never mutated afterwards.
type Record struct {
	Token         string `json:"token"`
	SongID        string `json:"song_id"`
	AudioURL      string `json:"audio_url"`
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	RecipientName string `json:"recipient_name,omitempty"`
	Subject       string `json:"subject,omitempty"`
	Lyrics        string `json:"lyrics,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

// Params holds the caller-supplied fields of a new share link.
type Params struct {
	SongID        string
	AudioURL      string
	Title         string
	Subtitle      string
	RecipientName string
	Subject       string
	Lyrics        string
}

// Store is a file backed token to record mapping with lazy expiry.
// Every operation reloads the file, mutates a full in-memory copy and
// rewrites the file, serialized by an in-process lock. That keeps the
// on-disk document the single source of truth across restarts and
// multiple store instances in the same process.
type Store struct {
	lck   sync.Mutex
	path  string
	ttl   time.Duration
	debug bool
	now   func() time.Time
}

type Config struct {
	Path  string
	TTL   time.Duration
	Debug bool
}

// New returns a share store backed by the given JSON file. The file is
// created on first write.
func New(cfg *Config) *Store {
	path := cfg.Path
	if path == "" {
		path = defaultPath
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Store{
		path:  path,
		ttl:   ttl,
		debug: cfg.Debug,
		now:   time.Now,
	}
}

func (s *Store) log(format string, args ...interface{}) {
	if s.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// Create inserts a new record and persists the store before returning.
// Empty display strings default to fixed placeholders. The returned
// record carries the generated token.
func (s *Store) Create(ctx context.Context, params *Params) (*Record, error) {
	s.lck.Lock()
	defer s.lck.Unlock()

	m := s.load()
	s.sweep(m)

	token, err := s.newToken(m)
	if err != nil {
		return nil, err
	}
	record := &Record{
		Token:         token,
		SongID:        params.SongID,
		AudioURL:      params.AudioURL,
		Title:         params.Title,
		Subtitle:      params.Subtitle,
		RecipientName: params.RecipientName,
		Subject:       params.Subject,
		Lyrics:        params.Lyrics,
		CreatedAt:     s.now().Unix(),
	}
	if record.Title == "" {
		record.Title = DefaultTitle
	}
	if record.Subtitle == "" {
		record.Subtitle = DefaultSubtitle
	}
	m[token] = record
	if err := s.save(m); err != nil {
		return nil, err
	}
	s.log("sharestore: created %s for song %s", token, record.SongID)
	return record, nil
}

// Get returns the record for a token, or ErrNotFound once it has
// expired or was never issued.
func (s *Store) Get(ctx context.Context, token string) (*Record, error) {
	s.lck.Lock()
	defer s.lck.Unlock()

	m := s.load()
	if removed := s.sweep(m); removed > 0 {
		// Persist the cleanup, but never fail a read over it
		if err := s.save(m); err != nil {
			log.Println("sharestore: couldn't persist expiry sweep:", err)
		}
	}
	record, ok := m[token]
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

// load reads the whole store file. A missing, unreadable or corrupt
// file yields an empty store instead of an error.
func (s *Store) load() map[string]*Record {
	m := map[string]*Record{}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return m
	}
	if err != nil {
		log.Println("sharestore: couldn't read store file:", err)
		return m
	}
	if err := json.Unmarshal(b, &m); err != nil {
		log.Println("sharestore: couldn't parse store file, starting empty:", err)
		return map[string]*Record{}
	}
	return m
}

// save writes the whole store to a temp file and renames it over the
// store path, so a crash mid-write can't corrupt the previous contents.
func (s *Store) save(m map[string]*Record) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("sharestore: couldn't marshal store: %w", err)
	}
	dir := filepath.Dir(s.path)
	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-")
	if err != nil {
		return fmt.Errorf("sharestore: couldn't create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sharestore: couldn't write store: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("sharestore: couldn't close store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("sharestore: couldn't replace store file: %w", err)
	}
	return nil
}

// sweep drops expired records and reports how many were removed. It
// scans every record on every store operation, which is fine at the
// record counts a single tenant produces but would need an indexed
// expiry to scale beyond that.
func (s *Store) sweep(m map[string]*Record) int {
	limit := int64(s.ttl / time.Second)
	now := s.now().Unix()
	var removed int
	for token, record := range m {
		if now-record.CreatedAt > limit {
			delete(m, token)
			removed++
		}
	}
	if removed > 0 {
		s.log("sharestore: expired %d records", removed)
	}
	return removed
}

func (s *Store) newToken(m map[string]*Record) (string, error) {
	for i := 0; i < 5; i++ {
		token, err := gonanoid.New()
		if err != nil {
			return "", fmt.Errorf("sharestore: couldn't generate token: %w", err)
		}
		if _, ok := m[token]; !ok {
			return token, nil
		}
	}
	return "", errors.New("sharestore: couldn't generate a unique token")
}
