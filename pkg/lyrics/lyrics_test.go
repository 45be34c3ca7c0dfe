package lyrics

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeCompleter struct {
	system      string
	user        string
	temperature float32
	maxTokens   int
	text        string
	err         error
}

func (f *fakeCompleter) ChatCompletion(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	f.system = system
	f.user = user
	f.temperature = temperature
	f.maxTokens = maxTokens
	return f.text, f.err
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		table    map[string]string
		tag      string
		fallback string
		want     string
	}{
		{
			name:     "known kid vibe",
			table:    kidVibes,
			tag:      "lullaby",
			fallback: kidVibeFallback,
			want:     "gentle, soothing lullaby with calm, simple lines",
		},
		{
			name:     "unknown kid vibe",
			table:    kidVibes,
			tag:      "metal",
			fallback: kidVibeFallback,
			want:     "fun, melodic kids song",
		},
		{
			name:     "empty kid occasion",
			table:    kidOccasions,
			tag:      "",
			fallback: kidOccasionFallback,
			want:     "This is a fun song they can enjoy any day.",
		},
		{
			name:     "known adult vibe",
			table:    adultVibes,
			tag:      "silly",
			fallback: adultVibeFallback,
			want:     "very playful, comedic, goofy, roast-style but not cruel",
		},
		{
			name:     "unknown adult voice",
			table:    adultVoices,
			tag:      "robot",
			fallback: adultVoiceFallback,
			want:     "The vocal style is flexible, any expressive pop voice.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lookup(tt.table, tt.tag, tt.fallback)
			if got != tt.want {
				t.Fatalf("lookup(%q) = %q; want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestKidRequestApplyDefaults(t *testing.T) {
	req := &KidRequest{
		ChildName: "Mia",
		Theme:     "dinosaurs",
	}
	req.ApplyDefaults()
	if req.Occasion != "everyday" {
		t.Errorf("Occasion = %q; want %q", req.Occasion, "everyday")
	}
	if req.Vibe != "sunny_kids" {
		t.Errorf("Vibe = %q; want %q", req.Vibe, "sunny_kids")
	}
	if req.VoiceType != "any" {
		t.Errorf("VoiceType = %q; want %q", req.VoiceType, "any")
	}

	// Set fields survive.
	req = &KidRequest{
		ChildName: "Mia",
		Theme:     "dinosaurs",
		Occasion:  "birthday",
		Vibe:      "lullaby",
		VoiceType: "female",
	}
	req.ApplyDefaults()
	if req.Occasion != "birthday" || req.Vibe != "lullaby" || req.VoiceType != "female" {
		t.Fatalf("ApplyDefaults overwrote set fields: %+v", req)
	}
}

func TestAdultRequestApplyDefaults(t *testing.T) {
	req := &AdultRequest{
		RecipientName:  "Sam",
		StoryOrDetails: "loves hiking",
	}
	req.ApplyDefaults()
	if req.Relationship != "friend" {
		t.Errorf("Relationship = %q; want %q", req.Relationship, "friend")
	}
	if req.Occasion != "birthday" {
		t.Errorf("Occasion = %q; want %q", req.Occasion, "birthday")
	}
	if req.Genre != "pop" {
		t.Errorf("Genre = %q; want %q", req.Genre, "pop")
	}
	if req.Vibe != "fun" {
		t.Errorf("Vibe = %q; want %q", req.Vibe, "fun")
	}
	if req.VoiceType != "any" {
		t.Errorf("VoiceType = %q; want %q", req.VoiceType, "any")
	}
}

func TestKidPrompt(t *testing.T) {
	req := &KidRequest{
		ChildName: "Mia",
		Theme:     "dinosaurs",
		Occasion:  "birthday",
		Vibe:      "party_kids",
		VoiceType: "child",
	}
	got := kidPrompt(req)
	wants := []string{
		"a child named Mia",
		"Theme: dinosaurs",
		"Occasion: birthday",
		"turning a new age",
		"high-energy kids party song",
		"child-like singing voice",
		"the child's name Mia several times",
	}
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("kidPrompt() missing %q:\n%s", want, got)
		}
	}
}

func TestAdultPrompt(t *testing.T) {
	req := &AdultRequest{
		RecipientName:  "Sam",
		Relationship:   "partner",
		Occasion:       "anniversary",
		StoryOrDetails: "we met at a bus stop in the rain",
		Genre:          "country",
		Vibe:           "romantic",
		VoiceType:      "male",
	}
	got := adultPrompt(req)
	wants := []string{
		"Recipient: Sam",
		"Relationship to the singer: partner",
		"Occasion: anniversary",
		"Genre: country",
		"tender, intimate, loving, romantic",
		"male pop singer",
		"we met at a bus stop in the rain",
		"personal to Sam",
		"appropriate for a country track",
	}
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("adultPrompt() missing %q:\n%s", want, got)
		}
	}
}

func TestGeneratorKid(t *testing.T) {
	fake := &fakeCompleter{text: "Verse 1:\nMia, Mia..."}
	g := New(fake)
	req := &KidRequest{ChildName: "Mia", Theme: "space"}
	req.ApplyDefaults()
	got, err := g.Kid(context.Background(), req)
	if err != nil {
		t.Fatalf("Kid() error: %v", err)
	}
	if got != "Verse 1:\nMia, Mia..." {
		t.Errorf("Kid() = %q", got)
	}
	if !strings.Contains(fake.system, "children's songwriter") {
		t.Errorf("system prompt = %q", fake.system)
	}
	if fake.temperature != 0.9 {
		t.Errorf("temperature = %v; want 0.9", fake.temperature)
	}
	if fake.maxTokens != 400 {
		t.Errorf("maxTokens = %d; want 400", fake.maxTokens)
	}
}

func TestGeneratorAdult(t *testing.T) {
	fake := &fakeCompleter{text: "Chorus:\nSam..."}
	g := New(fake)
	req := &AdultRequest{RecipientName: "Sam", StoryOrDetails: "loves hiking"}
	req.ApplyDefaults()
	got, err := g.Adult(context.Background(), req)
	if err != nil {
		t.Fatalf("Adult() error: %v", err)
	}
	if got != "Chorus:\nSam..." {
		t.Errorf("Adult() = %q", got)
	}
	if !strings.Contains(fake.system, "pop songwriter") {
		t.Errorf("system prompt = %q", fake.system)
	}
	if fake.temperature != 0.95 {
		t.Errorf("temperature = %v; want 0.95", fake.temperature)
	}
	if fake.maxTokens != 600 {
		t.Errorf("maxTokens = %d; want 600", fake.maxTokens)
	}
}

func TestGeneratorError(t *testing.T) {
	wantErr := errors.New("rate limited")
	g := New(&fakeCompleter{err: wantErr})
	if _, err := g.Kid(context.Background(), &KidRequest{ChildName: "Mia"}); !errors.Is(err, wantErr) {
		t.Fatalf("Kid() error = %v; want wrapped %v", err, wantErr)
	}
	if _, err := g.Adult(context.Background(), &AdultRequest{RecipientName: "Sam"}); !errors.Is(err, wantErr) {
		t.Fatalf("Adult() error = %v; want wrapped %v", err, wantErr)
	}
}

func TestStylePrompts(t *testing.T) {
	got := KidStyle("Mia", "dinosaurs", "birthday")
	want := "Song for Mia. Theme: dinosaurs. Occasion: birthday. Fun, playful kids music."
	if got != want {
		t.Errorf("KidStyle() = %q; want %q", got, want)
	}

	got = AdultStyle("Sam", "friend", "birthday", "pop", "fun")
	want = "Song for Sam (friend). Occasion: birthday. Genre: pop. Vibe: fun."
	if got != want {
		t.Errorf("AdultStyle() = %q; want %q", got, want)
	}
}
