package lyrics

import (
	"context"
	"fmt"
)

// Completer generates a chat completion. *openai.Client satisfies it.
type Completer interface {
	ChatCompletion(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error)
}

type Generator struct {
	client Completer
}

// New returns a lyrics generator backed by the given completion client.
func New(client Completer) *Generator {
	return &Generator{
		client: client,
	}
}

type KidRequest struct {
	ChildName string
	Theme     string
	Occasion  string
	Vibe      string
	VoiceType string
}

type AdultRequest struct {
	RecipientName  string
	Relationship   string
	Occasion       string
	StoryOrDetails string
	Genre          string
	Vibe           string
	VoiceType      string
}

// ApplyDefaults fills empty fields with the standard kid request defaults.
func (r *KidRequest) ApplyDefaults() {
	if r.Occasion == "" {
		r.Occasion = "everyday"
	}
	if r.Vibe == "" {
		r.Vibe = "sunny_kids"
	}
	if r.VoiceType == "" {
		r.VoiceType = "any"
	}
}

// ApplyDefaults fills empty fields with the standard adult request defaults.
func (r *AdultRequest) ApplyDefaults() {
	if r.Relationship == "" {
		r.Relationship = "friend"
	}
	if r.Occasion == "" {
		r.Occasion = "birthday"
	}
	if r.Genre == "" {
		r.Genre = "pop"
	}
	if r.Vibe == "" {
		r.Vibe = "fun"
	}
	if r.VoiceType == "" {
		r.VoiceType = "any"
	}
}

const (
	kidSystemPrompt = "You are a professional children's songwriter. " +
		"You write short, catchy, age-appropriate lyrics for kids."
	kidTemperature = 0.9
	kidMaxTokens   = 400

	adultSystemPrompt = "You are a professional pop songwriter who writes custom songs for people. " +
		"You focus on clear hooks, emotional impact, and singable, modern phrasing."
	adultTemperature = 0.95
	adultMaxTokens   = 600
)

// Tag to descriptive text tables. Unknown tags fall back to the neutral
// entry instead of failing.
var kidVibes = map[string]string{
	"sunny_kids": "bright, upbeat, playful kids song with a catchy chorus",
	"lullaby":    "gentle, soothing lullaby with calm, simple lines",
	"pop_kids":   "modern, bouncy pop song for kids with a strong hook",
	"party_kids": "high-energy kids party song that makes you want to dance",
}

const kidVibeFallback = "fun, melodic kids song"

var kidOccasions = map[string]string{
	"everyday":  "This is for everyday listening, a fun surprise for the child.",
	"birthday":  "This is for their birthday – mention celebration and turning a new age (but don't guess the exact age).",
	"holiday":   "This is for a holiday – make it cozy and festive, without naming specific religious details.",
	"milestone": "This is for a big milestone like school, sports, or learning something new.",
	"custom":    "This is for a special custom moment chosen by the parent.",
}

const kidOccasionFallback = "This is a fun song they can enjoy any day."

var kidVoices = map[string]string{
	"male":   "Imagine a friendly dad / big brother style voice.",
	"female": "Imagine a warm mom / big sister style voice.",
	"child":  "Imagine a natural, child-like singing voice (not squeaky).",
}

const kidVoiceFallback = "Use a neutral, friendly singing voice."

var adultVibes = map[string]string{
	"fun":       "fun, upbeat, playful, light-hearted",
	"heartfelt": "emotional, sincere, warm, grateful",
	"epic":      "big, cinematic, anthemic, inspiring",
	"silly":     "very playful, comedic, goofy, roast-style but not cruel",
	"romantic":  "tender, intimate, loving, romantic",
}

const adultVibeFallback = "engaging and modern"

var adultVoices = map[string]string{
	"male":   "Imagine a natural male pop singer performing this.",
	"female": "Imagine a natural female pop singer performing this.",
}

const adultVoiceFallback = "The vocal style is flexible, any expressive pop voice."

func lookup(table map[string]string, tag, fallback string) string {
	if v, ok := table[tag]; ok {
		return v
	}
	return fallback
}

const kidPromptTemplate = `Write original, kid-safe song lyrics for a child named %[1]s.

Theme: %[2]s
Occasion: %[3]s
Occasion description: %[4]s
Vibe: %[5]s
Voice hint: %[6]s

Guidelines:
- Age target: roughly 3–8 years old.
- Keep language very simple and positive.
- Make it easy to sing along.
- Include the child's name %[1]s several times, especially in the chorus.
- Do NOT mention AI, technology, or that this is generated.
- Avoid anything scary, violent, mean, or romantic.

Structure:
- 1 short verse
- 1 very catchy chorus
- 1 more short verse
- Repeat the chorus at the end.

Output format:
Write plain lyrics with labeled sections like:
Verse 1:
...
Chorus:
...
Verse 2:
...
Chorus:
...

Do NOT use markdown formatting like **bold** or bullet points.`

const adultPromptTemplate = `Write original song lyrics for an adult listener.

Recipient: %[1]s
Relationship to the singer: %[2]s
Occasion: %[3]s
Genre: %[4]s
Vibe: %[5]s
Voice hint: %[6]s

Details to weave into the song:
%[7]s

Guidelines:
- Make this feel personal to %[1]s.
- Include their name several times, especially in the chorus.
- Lean into the tone: %[5]s.
- Avoid explicit content, slurs, or cruel insults. Gentle roasting is OK if 'roast' or 'funny' is implied, but keep it light and affectionate.
- Do NOT mention AI, technology, or that this is generated.
- Keep it in a modern, singable style appropriate for a %[4]s track.

Structure:
- Short intro line (optional)
- Verse 1
- Chorus (big, memorable hook)
- Verse 2
- Chorus (slightly varied or repeated)
- Optional short bridge (2–4 lines)
- Final chorus

Output format:
Write plain lyrics with labeled sections like:
Intro:
...
Verse 1:
...
Chorus:
...
etc.

Do NOT use markdown formatting like **bold** or bullet points.`

func kidPrompt(req *KidRequest) string {
	return fmt.Sprintf(kidPromptTemplate,
		req.ChildName,
		req.Theme,
		req.Occasion,
		lookup(kidOccasions, req.Occasion, kidOccasionFallback),
		lookup(kidVibes, req.Vibe, kidVibeFallback),
		lookup(kidVoices, req.VoiceType, kidVoiceFallback),
	)
}

func adultPrompt(req *AdultRequest) string {
	return fmt.Sprintf(adultPromptTemplate,
		req.RecipientName,
		req.Relationship,
		req.Occasion,
		req.Genre,
		lookup(adultVibes, req.Vibe, adultVibeFallback),
		lookup(adultVoices, req.VoiceType, adultVoiceFallback),
		req.StoryOrDetails,
	)
}

// Kid generates fun, kid-safe lyrics for ages roughly 3 to 8.
func (g *Generator) Kid(ctx context.Context, req *KidRequest) (string, error) {
	text, err := g.client.ChatCompletion(ctx, kidSystemPrompt, kidPrompt(req), kidTemperature, kidMaxTokens)
	if err != nil {
		return "", fmt.Errorf("lyrics: couldn't generate kid lyrics: %w", err)
	}
	return text, nil
}

// Adult generates lyrics for adult and special occasion songs.
func (g *Generator) Adult(ctx context.Context, req *AdultRequest) (string, error) {
	text, err := g.client.ChatCompletion(ctx, adultSystemPrompt, adultPrompt(req), adultTemperature, adultMaxTokens)
	if err != nil {
		return "", fmt.Errorf("lyrics: couldn't generate adult lyrics: %w", err)
	}
	return text, nil
}

// KidStyle returns the style prompt forwarded to the music vendor for a
// kid song. Kid songs always use the pop genre on the vendor side.
func KidStyle(childName, theme, occasion string) string {
	return fmt.Sprintf("Song for %s. Theme: %s. Occasion: %s. Fun, playful kids music.",
		childName, theme, occasion)
}

// AdultStyle returns the style prompt forwarded to the music vendor for
// an adult song.
func AdultStyle(recipientName, relationship, occasion, genre, vibe string) string {
	return fmt.Sprintf("Song for %s (%s). Occasion: %s. Genre: %s. Vibe: %s.",
		recipientName, relationship, occasion, genre, vibe)
}
