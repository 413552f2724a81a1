// Package worker implements C17: the per-connector event loop that
// drives C1-C11 against one connector's upstream engine and target
// applier, forever, with per-event recovery. Grounded on the teacher's
// migration/migration.go top-level orchestration shape (a top-level
// Migrate(...) sequentially driving diff -> dialect.Generate -> apply,
// with each stage's error short-circuiting the next), adapted from "one
// offline batch run" to "one event, forever" (SPEC_FULL.md §4.13).
// processDDL/processDML each carry a github.com/pingcap/failpoint hook
// (ddlExecuteFailure/dmlExecuteFailure) so a test can force a target-
// execution failure deterministically and assert the fatal-for-event
// classification without needing a real flaky applier.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/pingcap/failpoint"
	"go.uber.org/zap"

	"synchdb/internal/applier"
	"synchdb/internal/connector"
	"synchdb/internal/convert"
	"synchdb/internal/ddl"
	"synchdb/internal/dml"
	"synchdb/internal/engine"
	"synchdb/internal/envelope"
	"synchdb/internal/logging"
	"synchdb/internal/model"
	"synchdb/internal/rules"
	"synchdb/internal/schemacache"
)

// Worker owns one connector's event loop.
type Worker struct {
	Name     string
	Dialect  model.SourceDialect
	Kind     engine.ConnectorKind
	SourceDB string

	Shared *connector.SharedState
	Engine engine.Engine
	Logger *zap.Logger

	DDLTranslator *ddl.Translator
	DMLParser     *dml.Parser
	DMLTranslator *dml.Translator
	Applier       applier.Applier
	Cache         *schemacache.Cache

	// PollInterval is how long the loop waits between engine.Poll calls
	// when SYNCING and no request is pending (SPEC_FULL.md §4.13 step 1).
	PollInterval time.Duration
}

// New wires one connector's full pipeline (C1 through C11) from already-
// constructed dependencies. Callers (synchdb-worker's start command)
// assemble the rule store, schema cache, and applier first, since those
// carry their own fallible construction (file I/O, DB connections).
func New(
	name string,
	dialect model.SourceDialect,
	kind engine.ConnectorKind,
	sourceDB string,
	shared *connector.SharedState,
	eng engine.Engine,
	logger *zap.Logger,
	ruleStore *rules.Store,
	cache *schemacache.Cache,
	app applier.Applier,
	mode dml.Mode,
	pollInterval time.Duration,
) *Worker {
	converter := convert.New(ruleStore, expressionEvaluator(app))

	return &Worker{
		Name:          name,
		Dialect:       dialect,
		Kind:          kind,
		SourceDB:      sourceDB,
		Shared:        shared,
		Engine:        eng,
		Logger:        logger,
		DDLTranslator: ddl.NewTranslator(dialect, ruleStore, cache),
		DMLParser:     dml.NewParser(ruleStore, cache),
		DMLTranslator: dml.NewTranslator(mode, converter),
		Applier:       app,
		Cache:         cache,
		PollInterval:  pollInterval,
	}
}

// Run is the per-connector loop of SPEC_FULL.md §4.13. It returns when
// ctx is cancelled or a stop request is processed.
func (w *Worker) Run(ctx context.Context) error {
	if snap, _ := w.Shared.Get(w.Name); snap.State == connector.StateInitializing {
		w.Shared.SetState(w.Name, connector.StateSyncing)
	}

	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if stop, err := w.handlePendingRequest(ctx); err != nil {
			w.Logger.Error("request handling failed", zap.Error(err))
		} else if stop {
			return nil
		}

		snap, ok := w.Shared.Get(w.Name)
		if !ok {
			return fmt.Errorf("worker: connector %q vanished from shared state", w.Name)
		}
		if snap.State != connector.StateSyncing {
			continue
		}

		if err := w.pollAndProcess(ctx); err != nil {
			w.Logger.Error("poll failed", zap.Error(err))
		}
	}
}

// handlePendingRequest copies the request slot out under the lock,
// releases it, and only then acts (SPEC_FULL.md §5's "never holds the
// lock across upstream or target-database calls"). Returns stop=true
// when the request was "stop", so Run can exit its loop.
func (w *Worker) handlePendingRequest(ctx context.Context) (stop bool, err error) {
	req, ok := w.Shared.TakeRequest(w.Name)
	if !ok {
		return false, nil
	}

	if req.Kind == connector.RequestStop {
		if err := w.Engine.Stop(ctx); err != nil {
			w.Logger.Warn("engine stop failed during shutdown", zap.Error(err))
		}
		w.Shared.SetState(w.Name, connector.StateStopped)
		return true, nil
	}

	if err := w.Shared.ApplyRequest(w.Name, req); err != nil {
		return false, err
	}

	if req.Kind == connector.RequestSetOffset {
		if err := w.Engine.SetOffset(ctx, "", w.Kind, w.SourceDB, req.Offset); err != nil {
			return false, fmt.Errorf("worker: persist offset: %w", err)
		}
		if err := w.Shared.CompleteOffsetUpdate(w.Name); err != nil {
			return false, err
		}
	}
	return false, nil
}

// pollAndProcess drains one batch of events and processes each in turn,
// advancing FSM substates and classifying failures per §7/§4.13 step 3.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	events, err := w.Engine.Poll(ctx)
	if err != nil {
		return fmt.Errorf("worker: poll: %w", err)
	}

	for _, raw := range events {
		w.processEvent(ctx, raw)
	}
	return nil
}

// processEvent runs the per-event pipeline: decode, branch DDL or DML,
// execute, advance substates. A failure is classified, recorded on
// shared state, and the loop continues to the next event — no retry
// (§5's "failure semantics inside one event").
func (w *Worker) processEvent(ctx context.Context, raw string) {
	w.Shared.SetSubstate(w.Name, connector.SubstateParsing)

	env, err := envelope.Parse([]byte(raw))
	if err != nil {
		w.recordFailure(err)
		return
	}

	switch env.GetString("payload.source.snapshot", true) {
	case "true", "last":
		w.Shared.SetStage(w.Name, connector.StageInitialSnapshot)
	default:
		w.Shared.SetStage(w.Name, connector.StageChangeDataCapture)
	}

	op := env.GetString("payload.op", false)
	if op == envelope.Null {
		w.processDDL(ctx, env)
	} else {
		w.processDML(ctx, env)
	}

	w.Shared.SetSubstate(w.Name, connector.SubstateIdle)
	w.Shared.IncrementProcessed(w.Name)
}

func (w *Worker) processDDL(ctx context.Context, env *envelope.Envelope) {
	rec, err := ddl.Parse(env)
	if err != nil {
		w.recordFailure(err)
		return
	}
	if rec == nil {
		// Not actually a DDL event (both id and kind absent): nothing to
		// translate or apply.
		return
	}

	w.Shared.SetSubstate(w.Name, connector.SubstateConverting)
	stmts, err := w.DDLTranslator.Translate(rec)
	if err != nil {
		w.recordFailure(err)
		return
	}

	w.Shared.SetSubstate(w.Name, connector.SubstateExecuting)
	for _, stmt := range stmts {
		execErr := w.Applier.ExecuteDDL(ctx, stmt)
		failpoint.Inject("ddlExecuteFailure", func(val failpoint.Value) {
			execErr = fmt.Errorf("worker: injected ddl failure: %v", val)
		})
		if execErr != nil {
			w.recordFailure(execErr)
			return
		}
	}
	w.Shared.IncrementDDL(w.Name)
}

func (w *Worker) processDML(ctx context.Context, env *envelope.Envelope) {
	rec, err := w.DMLParser.Parse(ctx, env)
	if err != nil {
		w.recordFailure(err)
		return
	}

	w.Shared.SetSubstate(w.Name, connector.SubstateConverting)
	change, err := w.DMLTranslator.TranslateChange(rec)
	if err != nil {
		w.recordFailure(err)
		return
	}

	w.Shared.SetSubstate(w.Name, connector.SubstateExecuting)
	execErr := w.Applier.ExecuteDML(ctx, change)
	failpoint.Inject("dmlExecuteFailure", func(val failpoint.Value) {
		execErr = fmt.Errorf("worker: injected dml failure: %v", val)
	})
	if execErr != nil {
		w.recordFailure(execErr)
		return
	}
	w.Shared.IncrementDML(w.Name)
}

func (w *Worker) recordFailure(err error) {
	w.Shared.SetError(w.Name, err, time.Now())
	w.Shared.SetSubstate(w.Name, connector.SubstateIdle)
	logging.Log(w.Logger, logging.KindFatalForEvent, "event processing failed", zap.Error(err))
}

// expressionEvaluator narrows the Applier's (ctx, expr, value, wkb, srid)
// -> (string, error) transform-expression contract down to C9's
// convert.ExpressionEvaluator shape (expression, s, w, r -> string,
// error), binding context.Background() since C9's Converter has no
// context-aware call path of its own — it is pure, in-process value
// conversion that only needs the applier's round trip for the one
// dialect-specific expression-evaluation step.
func expressionEvaluator(app applier.Applier) convert.ExpressionEvaluator {
	return func(expression string, s, w, r string) (string, error) {
		return app.EvaluateTransformExpression(context.Background(), expression, &s, &w, &r)
	}
}
