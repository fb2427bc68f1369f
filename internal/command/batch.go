package command

import (
	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/order"
)

// Outcome summarizes how a whole batch went.
type Outcome string

const (
	OutcomeAllSuccess         Outcome = "ALL_SUCCESS"
	OutcomePartialContinue    Outcome = "PARTIAL_SUCCESS_CONTINUE"
	OutcomePartialAsk         Outcome = "PARTIAL_SUCCESS_ASK"
	OutcomeAllFailed          Outcome = "ALL_FAILED"
	OutcomeNeedsClarification Outcome = "NEEDS_CLARIFICATION"
)

// FollowUp tells the orchestrator what to do after the response is spoken.
type FollowUp string

const (
	FollowUpContinue FollowUp = "CONTINUE"
	FollowUpAsk      FollowUp = "ASK"
	FollowUpStop     FollowUp = "STOP"
)

// Batch is the aggregate outcome of one executed command batch.
type Batch struct {
	Results []*order.Result
	Intents []dialog.IntentType

	Total     int
	Succeeded int
	Failed    int

	ByCategory map[order.ErrorCategory]int
	ByCode     map[order.ErrorCode]int

	// CommandFamily is the most common intent in the batch, first seen wins
	// ties.
	CommandFamily dialog.IntentType

	Outcome        Outcome
	FirstErrorCode order.ErrorCode
	FollowUp       FollowUp

	// OrderChanged is set when any mutating command succeeded.
	OrderChanged bool
}

// Analyze derives the batch fields from per-command results. intents[i]
// must correspond to results[i].
func Analyze(intents []dialog.IntentType, results []*order.Result) *Batch {
	b := &Batch{
		Results:    results,
		Intents:    intents,
		Total:      len(results),
		ByCategory: make(map[order.ErrorCategory]int),
		ByCode:     make(map[order.ErrorCode]int),
	}

	clarifying := false
	for i, r := range results {
		if r.Succeeded() {
			b.Succeeded++
			if i < len(intents) && intents[i].MutatesOrder() {
				b.OrderChanged = true
			}
			if r.ResponseType == order.ResponseClarification {
				clarifying = true
			}
			continue
		}
		b.Failed++
		b.ByCategory[r.ErrorCategory]++
		if r.ErrorCode != "" {
			b.ByCode[r.ErrorCode]++
			if b.FirstErrorCode == "" {
				b.FirstErrorCode = r.ErrorCode
			}
		}
	}

	b.CommandFamily = mostCommonIntent(intents)

	switch {
	case clarifying:
		b.Outcome = OutcomeNeedsClarification
	case b.Total > 0 && b.Failed == 0:
		b.Outcome = OutcomeAllSuccess
	case b.Total > 0 && b.Succeeded == 0:
		b.Outcome = OutcomeAllFailed
	case b.ByCategory[order.CategoryBusiness] > 0 || b.ByCategory[order.CategoryValidation] > 0:
		b.Outcome = OutcomePartialAsk
	default:
		b.Outcome = OutcomePartialContinue
	}

	switch {
	case b.ByCategory[order.CategorySystem] > 0:
		b.FollowUp = FollowUpStop
	case clarifying, b.Failed > 0:
		b.FollowUp = FollowUpAsk
	default:
		b.FollowUp = FollowUpContinue
	}
	return b
}

// mostCommonIntent picks the dominant intent; earlier intents win ties.
func mostCommonIntent(intents []dialog.IntentType) dialog.IntentType {
	if len(intents) == 0 {
		return dialog.IntentUnknown
	}
	counts := make(map[dialog.IntentType]int, len(intents))
	best := intents[0]
	for _, it := range intents {
		counts[it]++
		if counts[it] > counts[best] {
			best = it
		}
	}
	return best
}
