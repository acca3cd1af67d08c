package generation

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Defaults applied by Request.Normalize.
const (
	DefaultDifficulty = "medium"

	// MaxContextRunes bounds the source text sent to a model.
	MaxContextRunes = 4000

	// fallbackTextRunes bounds the text of a fallback flashcard.
	fallbackTextRunes = 200
)

// DefaultModes are the item types requested when none are given.
var DefaultModes = []string{"flashcard", "quiz"}

// Request describes what to generate.
type Request struct {
	// Context is the source material, usually a content item's description.
	Context    string   `json:"context"`
	Difficulty string   `json:"difficulty,omitempty"`
	Modes      []string `json:"modes,omitempty"`
}

// Normalize fills in the default difficulty and modes and truncates the
// context to MaxContextRunes.
func (r Request) Normalize() Request {
	if strings.TrimSpace(r.Difficulty) == "" {
		r.Difficulty = DefaultDifficulty
	}
	if len(r.Modes) == 0 {
		r.Modes = append([]string(nil), DefaultModes...)
	}
	r.Context = truncateRunes(r.Context, MaxContextRunes)
	return r
}

// Item is one generated review item. Content is opaque JSON whose shape
// depends on Type; quizzes carry question, choices and answerIndex.
type Item struct {
	Type       string          `json:"type"`
	Difficulty string          `json:"difficulty"`
	Content    json.RawMessage `json:"content"`
	Tags       []string        `json:"tags,omitempty"`
}

// Generator produces review items from source material.
type Generator interface {
	// GenerateReviewItems returns at least one item for a non-empty context.
	GenerateReviewItems(ctx context.Context, req Request) ([]Item, error)
}

// FallbackItem wraps text as a single flashcard. It is what generators
// return when a model is unavailable or answers with something other than
// JSON.
func FallbackItem(text, difficulty string) Item {
	if difficulty == "" {
		difficulty = DefaultDifficulty
	}
	content, _ := json.Marshal(map[string]string{"text": text})
	return Item{
		Type:       "flashcard",
		Difficulty: difficulty,
		Content:    content,
	}
}

// MockGenerator is a deterministic Generator that needs no external
// service. It returns one flashcard holding the start of the context.
type MockGenerator struct{}

// GenerateReviewItems implements Generator.
func (MockGenerator) GenerateReviewItems(ctx context.Context, req Request) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Context) == "" {
		return nil, ErrEmptyContext
	}
	req = req.Normalize()
	return []Item{FallbackItem(truncateRunes(req.Context, fallbackTextRunes), req.Difficulty)}, nil
}

// ParseItems decodes a model answer. A JSON array is returned as is, a single
// object is wrapped, and anything else becomes a fallback flashcard holding
// the raw text. Items without content are dropped and items without a
// difficulty inherit the requested one.
func ParseItems(text, difficulty string) []Item {
	text = stripCodeFence(text)

	var items []Item
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		var single Item
		if err := json.Unmarshal([]byte(text), &single); err != nil || len(single.Content) == 0 {
			return []Item{FallbackItem(text, difficulty)}
		}
		items = []Item{single}
	}

	out := make([]Item, 0, len(items))
	for _, it := range items {
		if len(it.Content) == 0 || string(it.Content) == "null" {
			continue
		}
		if it.Type == "" {
			it.Type = "flashcard"
		}
		if it.Difficulty == "" {
			it.Difficulty = difficulty
		}
		out = append(out, it)
	}
	if len(out) == 0 {
		return []Item{FallbackItem(text, difficulty)}
	}
	return out
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
