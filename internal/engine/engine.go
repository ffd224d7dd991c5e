package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/fable/internal/change"
	"github.com/roach88/fable/internal/digest"
	"github.com/roach88/fable/internal/rule"
	"github.com/roach88/fable/internal/store"
	"github.com/roach88/fable/internal/world"
)

// Journal persists sessions and turns. Implemented by *store.Store.
type Journal interface {
	BeginSession(ctx context.Context, s store.Session) (store.Session, error)
	WriteTurn(ctx context.Context, t store.TurnRecord) error
}

// Turn is the outcome of one trigger.
type Turn struct {
	Seq     int64
	Trigger string

	// RuleID is empty and Matched false for a fallback turn.
	RuleID  string
	Matched bool
	Weight  int

	// Text is the fired rule's text, or the trigger id on fallback.
	Text string

	// World is the world after the turn.
	World world.Store
}

// Engine runs turns against one evolving world.
//
// Thread-safety model:
//   - Step(): one caller at a time; turns never interleave
//   - Enqueue(), Stop(), World(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine, and not
//     concurrently with Step()
//
// INVARIANTS:
//   - rules order never changes after construction
//   - the world only advances after the journal accepted the turn
type Engine struct {
	mu    sync.RWMutex
	world world.Store

	rules       []rule.Rule
	rulesDigest string

	journal      Journal
	sessionID    string
	sessionGen   SessionIDGenerator
	sessionReady bool

	clock  *Clock
	queue  *triggerQueue
	quota  *QuotaEnforcer
	logger *slog.Logger
	onTurn func(Turn)
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal journals every session header and turn to j.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithSessionID sets the session id. Used to resume a journaled session.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		e.sessionID = id
	}
}

// WithSessionIDGenerator sets how a fresh session id is generated when
// WithSessionID is not given. Default: UUIDv7Generator.
func WithSessionIDGenerator(g SessionIDGenerator) Option {
	return func(e *Engine) {
		e.sessionGen = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the turn clock. Used to resume at a journaled seq.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithMaxTurns bounds the number of turns this engine will run.
// Default: DefaultMaxTurns. Zero disables the bound.
func WithMaxTurns(n int) Option {
	return func(e *Engine) {
		e.quota = NewQuotaEnforcer(n)
	}
}

// WithTurnHandler registers a callback invoked after each turn completed
// by the Run loop.
func WithTurnHandler(f func(Turn)) Option {
	return func(e *Engine) {
		e.onTurn = f
	}
}

// New creates an Engine over the starting world w and rules.
//
// The rules slice is copied so later mutation by the caller cannot change
// evaluation. Rule ids must be unique; the compiler guarantees this.
func New(w world.Store, rules []rule.Rule, opts ...Option) (*Engine, error) {
	var rulesCopy []rule.Rule
	if rules != nil {
		rulesCopy = make([]rule.Rule, len(rules))
		copy(rulesCopy, rules)
	}

	rd, err := digest.Rules(rulesCopy)
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}

	e := &Engine{
		world:       w,
		rules:       rulesCopy,
		rulesDigest: rd,
		sessionGen:  UUIDv7Generator{},
		clock:       NewClock(),
		queue:       newTriggerQueue(),
		quota:       NewQuotaEnforcer(DefaultMaxTurns),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.sessionID == "" {
		e.sessionID = e.sessionGen.Generate()
	}

	return e, nil
}

// SessionID returns the id turns are journaled under.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// RulesDigest returns the digest of the engine's rule set.
func (e *Engine) RulesDigest() string {
	return e.rulesDigest
}

// Rules returns the rules in evaluation order.
func (e *Engine) Rules() []rule.Rule {
	return e.rules
}

// World returns the current world.
func (e *Engine) World() world.Store {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.world
}

// Clock returns the turn clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Step runs one complete turn for trigger.
//
// Finding no rule is not an error: the returned Turn has Matched false,
// the world unchanged and Text set to trigger. Errors come only from the
// host side (cancelled context, quota, journal) and leave the engine on
// its previous world.
func (e *Engine) Step(ctx context.Context, trigger string) (Turn, error) {
	if err := ctx.Err(); err != nil {
		return Turn{}, err
	}
	if err := e.quota.Check(e.sessionID); err != nil {
		return Turn{}, err
	}
	if err := e.ensureSession(ctx); err != nil {
		return Turn{}, err
	}

	current := e.World()
	turn := Turn{
		Seq:     e.clock.Current() + 1,
		Trigger: trigger,
		Text:    trigger,
		World:   current,
	}

	if r, ok := rule.FindMatchingRule(trigger, e.rules, current); ok {
		turn.RuleID = r.ID
		turn.Matched = true
		turn.Weight = rule.Weight(r)
		turn.Text = r.Text
		turn.World = change.Apply(r.Changes, trigger, current)
	}

	if e.journal != nil {
		rec := store.TurnRecord{
			SessionID: e.sessionID,
			Seq:       turn.Seq,
			Trigger:   turn.Trigger,
			RuleID:    turn.RuleID,
			Matched:   turn.Matched,
			Weight:    turn.Weight,
			Text:      turn.Text,
			World:     turn.World,
		}
		if err := e.journal.WriteTurn(ctx, rec); err != nil {
			return Turn{}, NewJournalError(e.sessionID, trigger, err)
		}
	}

	e.clock.Next()
	e.quota.Record()
	e.mu.Lock()
	e.world = turn.World
	e.mu.Unlock()

	if turn.Matched {
		e.logger.Debug("rule fired",
			"session", e.sessionID,
			"seq", turn.Seq,
			"trigger", trigger,
			"rule_id", turn.RuleID,
			"weight", turn.Weight,
		)
	} else {
		e.logger.Debug("no rule matched; fallback turn",
			"session", e.sessionID,
			"seq", turn.Seq,
			"trigger", trigger,
		)
	}

	return turn, nil
}

// ensureSession writes the session header once, on the first turn.
// A resumed session keeps its stored header; a different rules digest is
// logged since replay of that session will diverge.
func (e *Engine) ensureSession(ctx context.Context) error {
	if e.journal == nil || e.sessionReady {
		return nil
	}

	stored, err := e.journal.BeginSession(ctx, store.Session{
		ID:          e.sessionID,
		RulesDigest: e.rulesDigest,
		CreatedSeq:  e.clock.Current(),
		World:       e.World(),
	})
	if err != nil {
		return NewJournalError(e.sessionID, "", err)
	}

	if stored.RulesDigest != e.rulesDigest {
		e.logger.Warn("session was started with a different rule set",
			"session", e.sessionID,
			"stored_rules_digest", stored.RulesDigest,
			"rules_digest", e.rulesDigest,
		)
	}

	e.sessionReady = true
	e.logger.Info("session started",
		"session", e.sessionID,
		"seq", e.clock.Current(),
		"entities", e.World().Len(),
		"rules", len(e.rules),
	)
	return nil
}

// Enqueue submits a trigger for the Run loop.
// Safe from any goroutine. Returns false if the engine has been stopped.
func (e *Engine) Enqueue(trigger string) bool {
	return e.queue.Enqueue(trigger)
}

// QueueLen returns the number of pending triggers.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Stop closes the trigger queue. Run drains what is already queued and
// then returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Run drains the trigger queue, one turn at a time, until the context is
// cancelled or Stop has been called and the queue is empty.
//
// A failed turn is logged with its trigger and the loop continues; the
// world stays where the last successful turn left it. Retrying inside the
// loop would make the journal depend on timing.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "session", e.sessionID)

	for {
		trigger, ok := e.queue.TryDequeue()
		if ok {
			turn, err := e.Step(ctx, trigger)
			if err != nil {
				e.logger.Error("turn failed",
					"error", err,
					"session", e.sessionID,
					"trigger", trigger,
					"seq", e.clock.Current()+1,
				)
				continue
			}
			if e.onTurn != nil {
				e.onTurn(turn)
			}
			continue
		}

		if e.queue.Drained() {
			e.logger.Info("engine stopping: queue closed", "session", e.sessionID)
			return nil
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled", "session", e.sessionID)
			e.queue.Close()
			return ctx.Err()
		case <-e.queue.Wait():
		}
	}
}
