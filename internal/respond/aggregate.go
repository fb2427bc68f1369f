// Package respond turns an executed command batch into the single utterance
// spoken back to the customer, and picks the phrase type that decides
// whether pre-rendered audio can be used.
package respond

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ordervox/ordervox/internal/command"
	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/order"
)

// FallbackText is spoken when a turn produced nothing usable.
const FallbackText = "I'm sorry, I didn't understand. Could you please try again?"

// Response is the textual side of one turn.
type Response struct {
	Text       string
	PhraseType dialog.PhraseType
}

// Aggregator folds batch results into one reply. Every failed turn still
// produces speech; silence is never an option.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator builds an Aggregator.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// Aggregate produces the turn's reply from the executed batch.
func (a *Aggregator) Aggregate(b *command.Batch) Response {
	var parts []string

	if b.OrderChanged {
		parts = append(parts, "Your order has been updated.")
	}

	// Non-mutating successes (summaries, answers, confirmations) speak for
	// themselves.
	for i, r := range b.Results {
		if !r.Succeeded() || r.ResponseType == order.ResponseClarification || r.Message == "" {
			continue
		}
		if i < len(b.Intents) && b.Intents[i].MutatesOrder() {
			continue
		}
		parts = append(parts, r.Message)
	}

	missing, unnamed := unavailableItems(b.Results)
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("Sorry, we don't have %s.", joinAnd(missing)))
	}
	parts = append(parts, unnamed...)

	for _, r := range b.Results {
		if r.ErrorCode == order.CodeQuantityExceedsLimit {
			parts = append(parts, r.Message)
		}
	}

	clarifying := false
	if q := consolidateClarifications(b.Results); q != "" {
		clarifying = true
		parts = append(parts, q)
	}

	if len(parts) == 0 {
		parts = append(parts, FallbackText)
	} else if b.Failed == 0 && !clarifying && b.CommandFamily != dialog.IntentConfirmOrder {
		parts = append(parts, "Would you like anything else?")
	}

	resp := Response{Text: strings.Join(parts, " "), PhraseType: a.phraseType(b, clarifying)}
	a.logger.Debug("aggregated response",
		"outcome", b.Outcome, "phrase_type", resp.PhraseType, "text", resp.Text)
	return resp
}

// phraseType picks the most specific phrase for the batch. Mixed batches
// force TTS through CUSTOM_RESPONSE; pure outcomes can use canned audio.
func (a *Aggregator) phraseType(b *command.Batch, clarifying bool) dialog.PhraseType {
	switch {
	case clarifying:
		return dialog.PhraseClarificationQuestion
	case b.Failed == 0 && b.CommandFamily == dialog.IntentConfirmOrder:
		return dialog.PhraseOrderConfirm
	case b.Failed == 0:
		return dialog.PhraseItemAddedSuccess
	case b.Succeeded == 0 && b.ByCode[order.CodeQuantityExceedsLimit] > 0:
		return dialog.PhraseQuantityTooHigh
	case b.Succeeded == 0 && (b.ByCode[order.CodeItemUnavailable] > 0 || b.ByCode[order.CodeItemNotFound] > 0):
		return dialog.PhraseItemUnavailable
	case b.Succeeded == 0:
		return dialog.PhraseDidntUnderstand
	default:
		return dialog.PhraseCustomResponse
	}
}

// unavailableItems collects the names behind unavailability failures,
// de-duplicated, in result order. Failures without a structured name keep
// their customer-facing message verbatim.
func unavailableItems(results []*order.Result) (names, unnamed []string) {
	seen := make(map[string]bool)
	for _, r := range results {
		if r.ErrorCode != order.CodeItemUnavailable && r.ErrorCode != order.CodeItemNotFound {
			continue
		}
		name, _ := r.Data["requested_item"].(string)
		if name == "" {
			unnamed = append(unnamed, r.Message)
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, unnamed
}

// joinAnd renders a spoken list: "a", "a and b", "a, b, and c".
func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}
