// Package connector implements C11 (the connector control FSM) and C16
// (statistics): the per-connector shared state spec.md §3/§5 describes as
// a single reader/writer lock guarding an array of ActiveConnectors, plus
// the legal-transition table of spec.md §4.7. Grounded on the pack's
// supervised-background-loop pattern (a mutex-guarded status struct
// mutated under one lock, copy-out-then-act for requests) since the
// teacher itself is a one-shot CLI with no direct analog.
package connector

import (
	"fmt"
	"sync"
	"time"

	"synchdb/internal/model"
)

// State is the connector's FSM state, spec.md §4.7.
type State string

const (
	StateInitializing State = "INITIALIZING"
	StateSyncing       State = "SYNCING"
	StatePaused        State = "PAUSED"
	StateOffsetUpdate  State = "OFFSET_UPDATE"
	StateStopped       State = "STOPPED"
)

// Substate is the transient, within-one-event phase spec.md §4.7
// describes ("PARSING → CONVERTING → EXECUTING → SYNCING"). It only has
// meaning while State == StateSyncing.
type Substate string

const (
	SubstateIdle      Substate = ""
	SubstateParsing    Substate = "PARSING"
	SubstateConverting Substate = "CONVERTING"
	SubstateExecuting  Substate = "EXECUTING"
)

// Stage distinguishes initial snapshot from steady-state change data
// capture, derived from the envelope's payload.source.snapshot field
// (SPEC_FULL.md §12 — supplemented from original_source/synchdb.c, which
// additionally tracks this as a human-readable string alongside State).
type Stage string

const (
	StageInitialSnapshot    Stage = "INITIAL_SNAPSHOT"
	StageChangeDataCapture Stage = "CHANGE_DATA_CAPTURE"
)

// RequestKind is one of the legal external requests of spec.md §4.7's
// table.
type RequestKind string

const (
	RequestPause     RequestKind = "pause"
	RequestResume    RequestKind = "resume"
	RequestSetOffset RequestKind = "set-offset"
	RequestStop      RequestKind = "stop"
)

// Request is one pending entry in a connector's single-item mailbox.
type Request struct {
	Kind   RequestKind
	Offset string // only meaningful for RequestSetOffset
}

// Statistics is C16: plain counters mutated only under the owning
// SharedState's lock.
type Statistics struct {
	EventsProcessed int64
	DDLCount        int64
	DMLCount        int64
	BadEventCount   int64
	LastErrorTime   time.Time
	LastError       string
}

// ActiveConnector is one connector's entry in spec.md §3's shared state.
type ActiveConnector struct {
	Name         string
	PID          int
	State        State
	Substate     Substate
	Stage        Stage
	Dialect      model.SourceDialect
	ErrMsg       string
	DbzOffset    string
	SnapshotMode string
	Stats        Statistics

	requestPending bool
	request        Request
}

// Snapshot is a read-only copy of one connector's state, returned to
// callers that must not hold the lock (the admin CLI's status command,
// tests).
type Snapshot struct {
	ActiveConnector
	RequestPending bool
	PendingRequest Request
}

// SharedState is spec.md §3's SynchdbSharedState: one reader/writer lock
// guarding a map of ActiveConnectors, keyed by connector name (the
// teacher has no per-process-array analog since smf is a one-shot CLI;
// a map serves the same "array of active connectors" role idiomatically).
type SharedState struct {
	mu         sync.RWMutex
	connectors map[string]*ActiveConnector
}

// New builds an empty SharedState.
func New() *SharedState {
	return &SharedState{connectors: make(map[string]*ActiveConnector)}
}

// Register adds a connector in StateInitializing. Registering a name
// twice replaces the prior entry (used by tests and by a worker restart).
func (s *SharedState) Register(name string, pid int, dialect model.SourceDialect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectors[name] = &ActiveConnector{Name: name, PID: pid, State: StateInitializing, Dialect: dialect}
}

// Get returns a read-only snapshot of one connector's state.
func (s *SharedState) Get(name string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connectors[name]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(c), true
}

func snapshotOf(c *ActiveConnector) Snapshot {
	return Snapshot{ActiveConnector: *c, RequestPending: c.requestPending, PendingRequest: c.request}
}

// SetState unconditionally sets a connector's top-level State (used at
// startup and by the worker loop's own FSM-driven transitions; external
// requests must instead go through SubmitRequest + TakeRequest +
// ApplyRequest so the legality table in spec.md §4.7 is enforced).
func (s *SharedState) SetState(name string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.connectors[name]; ok {
		c.State = state
	}
}

// SetSubstate records the transient within-event phase.
func (s *SharedState) SetSubstate(name string, sub Substate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.connectors[name]; ok {
		c.Substate = sub
	}
}

// SetStage records snapshot-vs-CDC stage.
func (s *SharedState) SetStage(name string, stage Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.connectors[name]; ok {
		c.Stage = stage
	}
}

// SetError records a fatal-for-event error message and bumps the
// bad-event counter under the shared lock (spec.md §7: "every failure
// path sets the connector's errmsg and increments counters").
func (s *SharedState) SetError(name string, err error, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connectors[name]
	if !ok {
		return
	}
	c.ErrMsg = err.Error()
	c.Stats.LastError = err.Error()
	c.Stats.LastErrorTime = now
	c.Stats.BadEventCount++
}

// IncrementDDL/IncrementDML/IncrementProcessed bump the matching
// statistics counter under the shared lock.
func (s *SharedState) IncrementDDL(name string)       { s.bump(name, func(st *Statistics) { st.DDLCount++ }) }
func (s *SharedState) IncrementDML(name string)       { s.bump(name, func(st *Statistics) { st.DMLCount++ }) }
func (s *SharedState) IncrementProcessed(name string) { s.bump(name, func(st *Statistics) { st.EventsProcessed++ }) }

func (s *SharedState) bump(name string, f func(*Statistics)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.connectors[name]; ok {
		f(&c.Stats)
	}
}

// SubmitRequest implements spec.md §4.7's single-item mailbox: it fails
// if a request is already pending, rather than overwriting or blocking.
func (s *SharedState) SubmitRequest(name string, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connectors[name]
	if !ok {
		return fmt.Errorf("connector: unknown connector %q", name)
	}
	if c.requestPending {
		return fmt.Errorf("connector: a request is already pending for %q", name)
	}
	c.requestPending = true
	c.request = req
	return nil
}

// TakeRequest copies out and clears the pending request, if any, under
// the lock, per spec.md §5's "copies the request slot under the lock,
// releases, and then acts" rule — callers must not call back into this
// SharedState while holding the returned value.
func (s *SharedState) TakeRequest(name string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connectors[name]
	if !ok || !c.requestPending {
		return Request{}, false
	}
	req := c.request
	c.requestPending = false
	c.request = Request{}
	return req, true
}

// NextState implements spec.md §4.7's legality table as a pure function:
// it reports the resulting state for a request issued from a given
// current state, or ok=false if the combination is illegal ("any other
// combination is rejected").
func NextState(current State, kind RequestKind) (next State, ok bool) {
	switch {
	case current == StateSyncing && kind == RequestPause:
		return StatePaused, true
	case current == StatePaused && kind == RequestResume:
		return StateSyncing, true
	case current == StatePaused && kind == RequestSetOffset:
		return StateOffsetUpdate, true
	case kind == RequestStop:
		return StateStopped, true
	default:
		return current, false
	}
}

// ApplyRequest validates and applies one pending request's state
// transition per NextState. For RequestSetOffset the caller (the worker
// loop) must separately persist the offset via the engine and then call
// CompleteOffsetUpdate to return to PAUSED — ApplyRequest only performs
// the PAUSED -> OFFSET_UPDATE half, matching the two-step table entry in
// spec.md §4.7.
func (s *SharedState) ApplyRequest(name string, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connectors[name]
	if !ok {
		return fmt.Errorf("connector: unknown connector %q", name)
	}
	next, legal := NextState(c.State, req.Kind)
	if !legal {
		return fmt.Errorf("connector: request %q is not legal from state %q", req.Kind, c.State)
	}
	if req.Kind == RequestSetOffset {
		c.DbzOffset = req.Offset
	}
	c.State = next
	return nil
}

// CompleteOffsetUpdate transitions OFFSET_UPDATE back to PAUSED, the
// second half of the set-offset request.
func (s *SharedState) CompleteOffsetUpdate(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connectors[name]
	if !ok {
		return fmt.Errorf("connector: unknown connector %q", name)
	}
	if c.State != StateOffsetUpdate {
		return fmt.Errorf("connector: %q is not in OFFSET_UPDATE (in %q)", name, c.State)
	}
	c.State = StatePaused
	return nil
}
