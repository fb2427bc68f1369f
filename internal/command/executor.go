package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ordervox/ordervox/internal/config"
	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/menu"
	"github.com/ordervox/ordervox/internal/order"
)

// txBeginner is the slice of pgxpool.Pool the executor needs. Tests run
// without a database by passing nil.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Executor runs a batch of command dicts for one turn: validate,
// materialize, execute sequentially under a single transaction, analyze.
type Executor struct {
	service   *order.Service
	menu      menu.Reader
	inventory InventoryStore
	pool      txBeginner
	cfg       config.OrderingConfig
	validator Validator
	logger    *slog.Logger
}

// NewExecutor builds an Executor. pool and inventory may be nil, which
// disables the turn transaction and inventory checking.
func NewExecutor(service *order.Service, m menu.Reader, inventory InventoryStore, pool txBeginner, cfg config.OrderingConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		service:   service,
		menu:      m,
		inventory: inventory,
		pool:      pool,
		cfg:       cfg,
		logger:    logger,
	}
}

// Request is one turn's worth of commands against one session.
type Request struct {
	SessionID    string
	RestaurantID int
	// Order is the session's working order copy; commands mutate it in
	// place. The caller persists it only after the turn commits.
	Order *order.State
	Dicts []Dict
}

// Execute runs the batch. A failing command never aborts the rest of the
// batch; a panicking command is converted to a SYSTEM result. The turn
// transaction commits only when no command panicked or reported a SYSTEM
// failure, so a turn that half-mutated the database rolls back whole.
func (e *Executor) Execute(ctx context.Context, req Request) *Batch {
	if len(req.Dicts) == 0 {
		res := order.Failure(order.CategoryValidation, order.CodeInvalidInputFormat, "No commands generated")
		return Analyze([]dialog.IntentType{dialog.IntentUnknown}, []*order.Result{res})
	}

	// Validate everything up front. Invalid dicts keep their slot in the
	// results so the batch accounting reflects what the parser produced.
	intents := make([]dialog.IntentType, len(req.Dicts))
	results := make([]*order.Result, len(req.Dicts))
	commands := make([]Command, len(req.Dicts))
	for i, d := range req.Dicts {
		intents[i] = d.Intent
		if errs := e.validator.Validate(d); len(errs) > 0 {
			e.logger.Warn("dropping invalid command dict",
				"session_id", req.SessionID, "intent", d.Intent, "errors", errs)
			results[i] = order.Failure(order.CategoryValidation, order.CodeMissingRequiredField,
				strings.Join(errs, "; "))
			continue
		}
		cmd, err := New(d)
		if err != nil {
			e.logger.Warn("no command variant for dict", "session_id", req.SessionID, "intent", d.Intent)
			results[i] = order.Failure(order.CategoryValidation, order.CodeInvalidInputFormat,
				"I'm sorry, I didn't understand. Could you please try again?")
			continue
		}
		commands[i] = cmd
	}

	cmdCtx := &Context{
		SessionID:    req.SessionID,
		RestaurantID: req.RestaurantID,
		OrderID:      req.SessionID,
		Order:        req.Order,
		Service:      e.service,
		Menu:         e.menu,
		Inventory:    e.inventory,
		Cfg:          e.cfg,
		Logger:       e.logger,
	}

	var tx pgx.Tx
	if e.pool != nil {
		var err error
		tx, err = e.pool.Begin(ctx)
		if err != nil {
			e.logger.Error("begin turn transaction failed", "session_id", req.SessionID, "error", err)
			res := order.SystemFailure(order.CodeDatabaseError, "Sorry, something went wrong on our end.")
			return Analyze(intents, fillResults(results, res))
		}
		cmdCtx.Tx = tx
	}

	panicked := false
	for i, cmd := range commands {
		if cmd == nil {
			continue
		}
		res, p := e.runOne(ctx, cmd, cmdCtx)
		results[i] = res
		panicked = panicked || p
	}

	abort := panicked
	if !abort {
		for _, r := range results {
			if r != nil && r.ErrorCategory == order.CategorySystem {
				abort = true
				break
			}
		}
	}

	if tx != nil {
		if abort {
			if err := tx.Rollback(ctx); err != nil {
				e.logger.Error("rollback failed", "session_id", req.SessionID, "error", err)
			}
		} else if err := tx.Commit(ctx); err != nil {
			e.logger.Error("commit turn transaction failed", "session_id", req.SessionID, "error", err)
			intents = append(intents, dialog.IntentUnknown)
			results = append(results,
				order.SystemFailure(order.CodeDatabaseError, "Sorry, something went wrong on our end."))
		}
	}

	b := Analyze(intents, results)
	e.logger.Info("command batch executed",
		"session_id", req.SessionID,
		"commands", b.Total,
		"succeeded", b.Succeeded,
		"failed", b.Failed,
		"outcome", b.Outcome,
		"follow_up", b.FollowUp,
	)
	return b
}

// runOne executes a single command, converting a panic into a SYSTEM result.
func (e *Executor) runOne(ctx context.Context, cmd Command, cmdCtx *Context) (res *order.Result, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("command panicked",
				"session_id", cmdCtx.SessionID, "intent", cmd.Intent(), "panic", r)
			res = order.SystemFailure(order.CodeInternalError, "Sorry, something went wrong on our end.")
			panicked = true
		}
	}()
	return cmd.Execute(ctx, cmdCtx), false
}

// fillResults replaces every still-nil slot with res, for turn-level
// failures that pre-empt execution.
func fillResults(results []*order.Result, res *order.Result) []*order.Result {
	for i, r := range results {
		if r == nil {
			results[i] = res
		}
	}
	return results
}
