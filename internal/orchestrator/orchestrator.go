// Package orchestrator composes one audio turn: transcription, the safety
// gate, intent classification, the FSM, parsing, command execution,
// response aggregation, and voice generation. The pipeline is straight-line
// with two gated early exits (blocked or low-confidence input; transitions
// that need no commands).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ordervox/ordervox/internal/command"
	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/intent"
	"github.com/ordervox/ordervox/internal/parser"
	"github.com/ordervox/ordervox/internal/respond"
	"github.com/ordervox/ordervox/internal/safety"
	"github.com/ordervox/ordervox/internal/session"
	"github.com/ordervox/ordervox/internal/voice"
	"github.com/ordervox/ordervox/pkg/provider/stt"
	"github.com/ordervox/ordervox/pkg/types"
)

// DefaultTurnTimeout is the end-to-end budget for one turn.
const DefaultTurnTimeout = 20 * time.Second

// recoveryTimeout bounds the come-again reply spoken after the turn budget
// is exhausted, so the recovery TTS cannot hang indefinitely.
const recoveryTimeout = 5 * time.Second

// ErrTurnInProgress is returned when a turn arrives while another turn for
// the same session is still running. The HTTP layer maps it to 409.
var ErrTurnInProgress = errors.New("orchestrator: turn already in progress for session")

// SessionStore is the slice of the session store the orchestrator needs.
type SessionStore interface {
	Current(ctx context.Context) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Update(ctx context.Context, sess *session.Session) error
}

// Classifier maps one utterance to an intent.
type Classifier interface {
	Classify(ctx context.Context, in intent.Input) intent.Result
}

// CommandParser produces command dicts for a classified utterance.
type CommandParser interface {
	Parse(ctx context.Context, in parser.Input) []command.Dict
}

// BatchExecutor runs one turn's command batch.
type BatchExecutor interface {
	Execute(ctx context.Context, req command.Request) *command.Batch
}

// Aggregator folds a batch into one reply.
type Aggregator interface {
	Aggregate(b *command.Batch) respond.Response
}

// VoiceGenerator renders a reply as audio.
type VoiceGenerator interface {
	Generate(ctx context.Context, req voice.Request) (voice.Result, error)
}

// TurnRequest is one incoming customer utterance.
type TurnRequest struct {
	// SessionID selects the session; empty means the current session.
	SessionID string
	Clip      types.AudioClip
}

// TurnResult is everything the HTTP layer reports back for one turn.
type TurnResult struct {
	SessionID         string            `json:"session_id"`
	Transcript        string            `json:"transcript"`
	ResponseText      string            `json:"response_text"`
	AudioURL          string            `json:"audio_url"`
	Intent            dialog.IntentType `json:"intent_type"`
	PhraseType        dialog.PhraseType `json:"phrase_type"`
	OrderStateChanged bool              `json:"order_state_changed"`
	BatchOutcome      command.Outcome   `json:"batch_outcome,omitempty"`
	FollowUp          command.FollowUp  `json:"follow_up_action,omitempty"`
}

// Orchestrator wires the pipeline stages together. All stages are supplied
// as interfaces so they can be substituted independently.
type Orchestrator struct {
	sessions   SessionStore
	stt        stt.Provider
	gate       *safety.Gate
	classifier Classifier
	parser     CommandParser
	executor   BatchExecutor
	aggregator Aggregator
	voice      VoiceGenerator

	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]bool
}

// New builds an Orchestrator. A non-positive timeout falls back to
// [DefaultTurnTimeout].
func New(sessions SessionStore, transcriber stt.Provider, gate *safety.Gate, classifier Classifier, cmdParser CommandParser, executor BatchExecutor, aggregator Aggregator, voiceGen VoiceGenerator, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTurnTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions:   sessions,
		stt:        transcriber,
		gate:       gate,
		classifier: classifier,
		parser:     cmdParser,
		executor:   executor,
		aggregator: aggregator,
		voice:      voiceGen,
		timeout:    timeout,
		logger:     logger,
		active:     make(map[string]bool),
	}
}

// ProcessAudio runs one turn end to end. Overlapping turns on the same
// session are rejected with [ErrTurnInProgress]; an exhausted turn budget
// degrades to the COME_AGAIN phrase.
func (o *Orchestrator) ProcessAudio(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	sess, err := o.lookupSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if !o.acquire(sess.ID) {
		return nil, fmt.Errorf("%w: %s", ErrTurnInProgress, sess.ID)
	}
	defer o.release(sess.ID)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := o.runTurn(ctx, sess, req.Clip)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		o.logger.Warn("turn budget exhausted", "session_id", sess.ID)
		// The turn context is already dead; the recovery speech gets its own
		// short budget instead of running unbounded.
		rctx, rcancel := context.WithTimeout(context.WithoutCancel(ctx), recoveryTimeout)
		defer rcancel()
		return o.speak(rctx, sess, turnState{
			transcript: "",
			intent:     dialog.IntentUnknown,
			phrase:     dialog.PhraseComeAgain,
		})
	}
	return res, err
}

// lookupSession resolves the explicit or current session.
func (o *Orchestrator) lookupSession(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return o.sessions.Current(ctx)
	}
	return o.sessions.Get(ctx, id)
}

// turnState carries what the tail of the pipeline needs to finish a turn.
type turnState struct {
	transcript   string
	cleansed     string
	intent       dialog.IntentType
	confidence   float64
	phrase       dialog.PhraseType
	customText   string
	lowConf      bool
	orderChanged bool
	outcome      command.Outcome
	followUp     command.FollowUp
}

func (o *Orchestrator) runTurn(ctx context.Context, sess *session.Session, clip types.AudioClip) (*TurnResult, error) {
	transcript, err := o.stt.Transcribe(ctx, clip)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		o.logger.Error("transcription failed", "session_id", sess.ID, "error", err)
		return o.speak(ctx, sess, turnState{intent: dialog.IntentUnknown, phrase: dialog.PhraseDidntUnderstand})
	}
	if transcript.Text == "" {
		return o.speak(ctx, sess, turnState{intent: dialog.IntentUnknown, phrase: dialog.PhraseDidntUnderstand})
	}

	verdict := o.gate.Score(transcript.Text)
	if verdict.Blocked {
		o.logger.Warn("utterance blocked by safety gate",
			"session_id", sess.ID, "score", verdict.Score)
		return o.speak(ctx, sess, turnState{
			transcript: transcript.Text,
			intent:     dialog.IntentUnknown,
			phrase:     dialog.PhraseSafetyBlocked,
		})
	}
	sanitized := o.gate.Sanitize(transcript.Text)

	cls := o.classifier.Classify(ctx, intent.Input{
		Transcript:   sanitized,
		History:      sess.RecentHistory(session.ClassifierHistory),
		OrderSummary: sess.Order.Summary(),
		State:        sess.State,
	})
	if cls.LowConfidence {
		return o.speak(ctx, sess, turnState{
			transcript: transcript.Text,
			cleansed:   cls.CleansedInput,
			intent:     dialog.IntentUnknown,
			confidence: cls.Confidence,
			phrase:     dialog.PhraseDidntUnderstand,
			lowConf:    true,
		})
	}

	tr := dialog.Lookup(sess.State, cls.Intent)
	if tr.IsValid && tr.TargetState != sess.State {
		sess.State = tr.TargetState
		// Advancing the conversational state before execution is tolerated:
		// the update is idempotent and a lost write only costs a retry.
		if err := o.sessions.Update(ctx, sess); err != nil {
			o.logger.Warn("state transition not persisted",
				"session_id", sess.ID, "state", sess.State, "error", err)
		}
	}

	st := turnState{
		transcript: transcript.Text,
		cleansed:   cls.CleansedInput,
		intent:     cls.Intent,
		confidence: cls.Confidence,
		phrase:     tr.PhraseType,
	}

	if !tr.IsValid || !tr.RequiresCommand {
		if tr.PhraseType == dialog.PhraseOrderSummary {
			st.customText = sess.Order.Summary() + " Is that right?"
		}
		return o.speak(ctx, sess, st)
	}

	dicts := o.parser.Parse(ctx, parser.Input{
		Utterance:    cls.CleansedInput,
		Intent:       cls.Intent,
		RestaurantID: sess.RestaurantID,
		Order:        sess.Order,
		History:      sess.RecentHistory(session.ClassifierHistory),
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := o.executor.Execute(ctx, command.Request{
		SessionID:    sess.ID,
		RestaurantID: sess.RestaurantID,
		Order:        sess.Order,
		Dicts:        dicts,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg := o.aggregator.Aggregate(batch)
	st.phrase = agg.PhraseType
	st.customText = agg.Text
	st.orderChanged = batch.OrderChanged
	st.outcome = batch.Outcome
	st.followUp = batch.FollowUp

	// A clean batch lets the FSM's more specific phrase win, so a confirmed
	// order closes with ORDER_COMPLETE and a repeat speaks ORDER_REPEAT.
	if batch.Failed == 0 && batch.Outcome != command.OutcomeNeedsClarification {
		switch tr.PhraseType {
		case dialog.PhraseOrderComplete, dialog.PhraseOrderRepeat:
			st.phrase = tr.PhraseType
		}
	}

	// A confirmed order leaving the pipeline in CLOSING is complete: the
	// session store archives it and clears the lane.
	if sess.State == dialog.StateClosing &&
		batch.CommandFamily == dialog.IntentConfirmOrder && batch.Failed == 0 {
		sess.Status = session.StatusCompleted
	}

	return o.speak(ctx, sess, st)
}

// speak renders the reply, appends the turn record, and persists the
// session. Voice and persistence failures degrade: the text reply always
// comes back.
func (o *Orchestrator) speak(ctx context.Context, sess *session.Session, st turnState) (*TurnResult, error) {
	text := st.customText
	if text == "" {
		if canned, ok := voice.CannedText(st.phrase); ok {
			text = canned
		}
	}

	vreq := voice.Request{
		PhraseType:    st.phrase,
		RestaurantID:  sess.RestaurantID,
		LowConfidence: st.lowConf,
	}
	// Wording that matches the canned file exactly can be served from
	// pre-rendered audio; anything else goes through the TTS cache.
	if canned, ok := voice.CannedText(st.phrase); !ok || st.customText != "" && st.customText != canned {
		vreq.CustomText = st.customText
	}

	var audioURL string
	if vres, err := o.voice.Generate(ctx, vreq); err != nil {
		o.logger.Error("voice generation failed",
			"session_id", sess.ID, "phrase_type", st.phrase, "error", err)
	} else {
		audioURL = vres.AudioURL
		text = vres.Text
	}

	sess.AppendTurn(session.Turn{
		UserInput:         st.transcript,
		CleansedInput:     st.cleansed,
		Intent:            st.intent,
		Confidence:        st.confidence,
		ResponseText:      text,
		PhraseType:        st.phrase,
		OrderStateChanged: st.orderChanged,
		Timestamp:         time.Now().UTC(),
	})
	if err := o.sessions.Update(ctx, sess); err != nil {
		o.logger.Error("session not persisted after turn",
			"session_id", sess.ID, "error", err)
	}

	return &TurnResult{
		SessionID:         sess.ID,
		Transcript:        st.transcript,
		ResponseText:      text,
		AudioURL:          audioURL,
		Intent:            st.intent,
		PhraseType:        st.phrase,
		OrderStateChanged: st.orderChanged,
		BatchOutcome:      st.outcome,
		FollowUp:          st.followUp,
	}, nil
}

// acquire marks a session busy; false means a turn is already running.
func (o *Orchestrator) acquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[id] {
		return false
	}
	o.active[id] = true
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, id)
}
