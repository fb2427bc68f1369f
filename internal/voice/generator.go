package voice

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/pkg/provider/tts"
	"github.com/ordervox/ordervox/pkg/types"
)

// repeatSuffix is appended when the classifier was unsure about the turn.
const repeatSuffix = " Could you please repeat that?"

// cannedTexts are the spoken renderings of the fixed phrase types, used to
// synthesize a canned file the first time it is missing from the store.
var cannedTexts = map[dialog.PhraseType]string{
	dialog.PhraseGreeting:           "Hi, welcome! What can I get for you today?",
	dialog.PhraseItemAddedSuccess:   "Your order has been updated. Would you like anything else?",
	dialog.PhraseItemUnavailable:    "Sorry, we don't have that.",
	dialog.PhraseQuantityTooHigh:    "Sorry, that's more than we can do for a single item.",
	dialog.PhraseOrderConfirm:       "Great, your order is confirmed. Please pull forward.",
	dialog.PhraseOrderComplete:      "Thank you! Please pull forward to the window.",
	dialog.PhraseComeAgain:          "Sorry, could you say that again?",
	dialog.PhraseDidntUnderstand:    "I'm sorry, I didn't understand. Could you please try again?",
	dialog.PhraseCantHelpRightNow:   "I'm sorry, I can't help with that right now.",
	dialog.PhraseNoOrderYet:         "You don't have an order yet. What can I get you?",
	dialog.PhraseAddItemsFirst:      "Let's add some items to your order first.",
	dialog.PhraseOrderBeingPrepared: "Your order is already being prepared. Please pull forward.",
	dialog.PhraseSafetyBlocked:      "Sorry, I can't help with that. What can I get you to eat or drink?",
}

// CannedText returns the fixed wording behind a canned phrase type. The
// orchestrator uses it to decide whether a reply can be served from
// pre-rendered audio.
func CannedText(p dialog.PhraseType) (string, bool) {
	t, ok := cannedTexts[p]
	return t, ok
}

// Request describes the audio needed for one turn.
type Request struct {
	PhraseType   dialog.PhraseType
	RestaurantID int

	// CustomText, when set, is spoken instead of the canned text and always
	// goes through the TTS cache.
	CustomText string

	// LowConfidence appends a repeat prompt to whatever is spoken.
	LowConfidence bool
}

// Result is the generated audio plus the exact text it speaks.
type Result struct {
	AudioURL string
	Text     string
}

// Generator decides between the canned-phrase path and the TTS cache.
type Generator struct {
	cache  *Cache
	fs     afs.Service
	logger *slog.Logger
}

// NewGenerator builds a Generator sharing the cache's object store.
func NewGenerator(cache *Cache, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{cache: cache, fs: cache.fs, logger: logger}
}

// Generate returns the audio URL for one turn's reply.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	text := req.CustomText
	if text == "" {
		text = cannedTexts[req.PhraseType]
	}
	if req.LowConfidence {
		text += repeatSuffix
	}
	if text == "" {
		return Result{}, fmt.Errorf("voice: no text for phrase type %q", req.PhraseType)
	}

	// Dynamic phrases, custom wording, and low-confidence suffixes all vary
	// per turn, so they go through the content-addressed cache. Everything
	// else is a fixed file per restaurant.
	if req.PhraseType.IsDynamic() || req.CustomText != "" || req.LowConfidence {
		u, err := g.cache.URL(ctx, req.RestaurantID, text)
		if err != nil {
			return Result{}, err
		}
		return Result{AudioURL: u, Text: text}, nil
	}
	u, err := g.canned(ctx, req.RestaurantID, req.PhraseType, text)
	if err != nil {
		return Result{}, err
	}
	return Result{AudioURL: u, Text: text}, nil
}

// canned serves the pre-rendered file for a phrase type, synthesizing and
// storing it on first miss.
func (g *Generator) canned(ctx context.Context, restaurantID int, phrase dialog.PhraseType, text string) (string, error) {
	objPath := fmt.Sprintf("canned-phrases/restaurant-%d/%s.mp3", restaurantID, phrase)
	objURL := g.cache.baseURL + "/" + objPath

	exists, err := g.fs.Exists(ctx, objURL)
	if err != nil {
		return "", fmt.Errorf("voice: probe %s: %w", objURL, err)
	}
	if !exists {
		audio, err := tts.SynthesizeAll(ctx, g.cache.tts, text, g.cache.voice)
		if err != nil {
			return "", fmt.Errorf("voice: synthesize canned %s: %w", phrase, err)
		}
		if err := g.fs.Upload(ctx, objURL, file.DefaultFileOsMode, bytes.NewReader(audio)); err != nil {
			return "", fmt.Errorf("voice: store %s: %w", objURL, err)
		}
		g.logger.Info("canned phrase rendered",
			"restaurant_id", restaurantID, "phrase_type", phrase)
	}
	return g.cache.publicURL(objPath), nil
}

// SaveRecording retains a raw customer clip for later review, keyed by
// restaurant and filename.
func (g *Generator) SaveRecording(ctx context.Context, restaurantID int, filename string, clip types.AudioClip) (string, error) {
	objPath := fmt.Sprintf("restaurants/%d/audio/%s", restaurantID, path.Base(filename))
	objURL := g.cache.baseURL + "/" + objPath
	if err := g.fs.Upload(ctx, objURL, file.DefaultFileOsMode, bytes.NewReader(clip.Data)); err != nil {
		return "", fmt.Errorf("voice: store recording %s: %w", objURL, err)
	}
	return g.cache.publicURL(objPath), nil
}
