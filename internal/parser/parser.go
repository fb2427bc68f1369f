// Package parser turns a classified utterance into command dicts. Simple
// intents are handled by keyword rules; ADD_ITEM, REMOVE_ITEM, and
// MODIFY_ITEM go through LLM-backed parsers. The router guarantees the
// pipeline always receives at least one valid dict.
package parser

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ordervox/ordervox/internal/command"
	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/menu"
	"github.com/ordervox/ordervox/internal/order"
	"github.com/ordervox/ordervox/internal/session"
	"github.com/ordervox/ordervox/pkg/provider/llm"
)

// Input is the per-turn context a parser may use. Each parser reads only
// the fields it needs, which keeps LLM prompts small.
type Input struct {
	Utterance    string
	Intent       dialog.IntentType
	RestaurantID int
	Order        *order.State
	History      []session.Turn
}

// Parser produces command dicts for one intent family.
type Parser interface {
	Parse(ctx context.Context, in Input) ([]command.Dict, error)
}

// Router dispatches on intent to the registered parser and validates every
// emitted dict. It never fails: parser errors and empty output degrade to a
// single UNKNOWN dict.
type Router struct {
	parsers   map[dialog.IntentType]Parser
	validator command.Validator
	logger    *slog.Logger
}

// NewRouter wires the default parser set: rule parsers for the simple
// intents, LLM parsers for item manipulation.
func NewRouter(provider llm.Provider, m menu.Reader, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{parsers: make(map[dialog.IntentType]Parser), logger: logger}

	for _, intent := range []dialog.IntentType{
		dialog.IntentClearOrder, dialog.IntentConfirmOrder, dialog.IntentRepeat,
		dialog.IntentSmallTalk, dialog.IntentUnknown,
	} {
		r.parsers[intent] = ruleParser{intent: intent}
	}
	r.parsers[dialog.IntentQuestion] = &questionParser{menu: m}
	r.parsers[dialog.IntentAddItem] = NewItemResolver(provider, m, logger)
	r.parsers[dialog.IntentRemoveItem] = &lineItemParser{intent: dialog.IntentRemoveItem, provider: provider, logger: logger}
	r.parsers[dialog.IntentModifyItem] = &lineItemParser{intent: dialog.IntentModifyItem, provider: provider, logger: logger}
	r.parsers[dialog.IntentSetQuantity] = &lineItemParser{intent: dialog.IntentSetQuantity, provider: provider, logger: logger}
	return r
}

// Register replaces the parser for one intent. Tests use it to substitute
// fakes.
func (r *Router) Register(intent dialog.IntentType, p Parser) {
	r.parsers[intent] = p
}

// Parse routes the input and returns validated dicts, never an empty slice.
func (r *Router) Parse(ctx context.Context, in Input) []command.Dict {
	p, ok := r.parsers[in.Intent]
	if !ok {
		r.logger.Warn("no parser for intent; falling back to UNKNOWN", "intent", in.Intent)
		return []command.Dict{unknownDict()}
	}

	dicts, err := p.Parse(ctx, in)
	if err != nil {
		r.logger.Warn("parser failed; falling back to UNKNOWN",
			"intent", in.Intent, "error", err)
		return []command.Dict{unknownDict()}
	}

	valid := dicts[:0]
	for _, d := range dicts {
		if errs := r.validator.Validate(d); len(errs) > 0 {
			r.logger.Warn("dropping invalid dict from parser",
				"intent", d.Intent, "errors", strings.Join(errs, "; "))
			continue
		}
		valid = append(valid, d)
	}
	if len(valid) == 0 {
		return []command.Dict{unknownDict()}
	}
	return valid
}

func unknownDict() command.Dict {
	return command.Dict{Intent: dialog.IntentUnknown, Confidence: 1.0}
}
