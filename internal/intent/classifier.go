// Package intent classifies customer utterances into order intents using an
// LLM with a strict JSON output contract. The classifier is purely
// descriptive: it never touches the menu or the order for validation.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/session"
	"github.com/ordervox/ordervox/pkg/provider/llm"
)

// DefaultThreshold is the confidence floor below which an intent is coerced
// to UNKNOWN.
const DefaultThreshold = 0.8

// degradedConfidence is reported when the LLM call itself fails.
const degradedConfidence = 0.1

// Result is the classifier's answer for one utterance.
type Result struct {
	Intent        dialog.IntentType `json:"intent"`
	Confidence    float64           `json:"confidence"`
	CleansedInput string            `json:"cleansed_input"`

	// LowConfidence is set when the raw confidence fell below the threshold
	// and Intent was coerced to UNKNOWN.
	LowConfidence bool `json:"-"`
}

// Input carries everything the classifier may see for one turn.
type Input struct {
	Transcript string
	// History holds at most [session.ClassifierHistory] recent turns.
	History []session.Turn
	// OrderSummary is the spoken rendering of the current order.
	OrderSummary string
	// State is the session's current conversational state.
	State dialog.State
}

// Classifier wraps an LLM provider with the classification contract.
type Classifier struct {
	provider  llm.Provider
	threshold float64
	timeout   time.Duration
	logger    *slog.Logger
}

// Option is a functional option for configuring the Classifier.
type Option func(*Classifier)

// WithThreshold overrides the confidence floor.
func WithThreshold(t float64) Option {
	return func(c *Classifier) {
		if t > 0 {
			c.threshold = t
		}
	}
}

// WithTimeout bounds each classification call.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// NewClassifier creates a Classifier backed by provider.
func NewClassifier(provider llm.Provider, opts ...Option) *Classifier {
	c := &Classifier{
		provider:  provider,
		threshold: DefaultThreshold,
		timeout:   10 * time.Second,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

const systemPrompt = `You classify one drive-thru customer utterance.

Valid intents:
ADD_ITEM, REMOVE_ITEM, MODIFY_ITEM, SET_QUANTITY, CLEAR_ORDER,
CONFIRM_ORDER, REPEAT, QUESTION, SMALL_TALK, UNKNOWN

Respond with ONLY a JSON object, no prose, no code fences:
{"intent": "<one of the intents>", "confidence": <0.0-1.0>, "cleansed_input": "<the utterance with fillers and disfluencies removed, punctuation normalized>"}

Rules:
- "that's it", "that's all", "I'm done" while an order exists mean CONFIRM_ORDER.
- A bare "yes" while the order is being confirmed means CONFIRM_ORDER.
- Mentions of food or drink to order mean ADD_ITEM.
- "make that two", "change X to Y" mean SET_QUANTITY or MODIFY_ITEM.
- Questions about the menu or prices mean QUESTION.
- When genuinely unsure, answer UNKNOWN with low confidence.`

// wireResult is the JSON shape the model must produce.
type wireResult struct {
	Intent        string  `json:"intent"`
	Confidence    float64 `json:"confidence"`
	CleansedInput string  `json:"cleansed_input"`
}

// Classify maps one transcript to an intent. It never returns an error: any
// LLM or parse failure degrades to {UNKNOWN, 0.1, raw transcript} so the
// pipeline can take its low-confidence exit.
func (c *Classifier) Classify(ctx context.Context, in Input) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     c.buildMessages(in),
		Temperature:  0.0,
		MaxTokens:    256,
	})
	if err != nil {
		c.logger.Warn("intent classification failed; degrading to UNKNOWN", "error", err)
		return c.degraded(in.Transcript)
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &wire); err != nil {
		c.logger.Warn("intent response is not valid JSON; degrading to UNKNOWN",
			"error", err, "response", truncate(resp.Content, 200))
		return c.degraded(in.Transcript)
	}

	intent := dialog.IntentType(strings.ToUpper(strings.TrimSpace(wire.Intent)))
	if !intent.IsClassifiable() {
		c.logger.Warn("intent response names unknown intent; degrading to UNKNOWN", "intent", wire.Intent)
		return c.degraded(in.Transcript)
	}

	cleansed := strings.TrimSpace(wire.CleansedInput)
	if cleansed == "" {
		cleansed = in.Transcript
	}
	res := Result{Intent: intent, Confidence: clamp01(wire.Confidence), CleansedInput: cleansed}
	if res.Confidence < c.threshold {
		c.logger.Debug("intent confidence below floor; coercing to UNKNOWN",
			"intent", res.Intent, "confidence", res.Confidence, "threshold", c.threshold)
		res.Intent = dialog.IntentUnknown
		res.LowConfidence = true
	}
	return res
}

// degraded is the canonical failure result.
func (c *Classifier) degraded(transcript string) Result {
	return Result{
		Intent:        dialog.IntentUnknown,
		Confidence:    degradedConfidence,
		CleansedInput: transcript,
		LowConfidence: true,
	}
}

// buildMessages renders history, order, and state as context turns followed
// by the utterance to classify.
func (c *Classifier) buildMessages(in Input) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation state: %s\n", in.State)
	if in.OrderSummary != "" {
		fmt.Fprintf(&b, "Current order: %s\n", in.OrderSummary)
	}
	if len(in.History) > 0 {
		b.WriteString("Recent turns:\n")
		for _, t := range in.History {
			fmt.Fprintf(&b, "  customer: %s\n  assistant: %s\n", t.CleansedInput, t.ResponseText)
		}
	}
	fmt.Fprintf(&b, "\nClassify this utterance: %q", in.Transcript)
	return []llm.Message{{Role: "user", Content: b.String()}}
}

// extractJSON tolerates models that wrap the object in code fences or prose.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
