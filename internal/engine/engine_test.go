package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fable/internal/change"
	"github.com/roach88/fable/internal/query"
	"github.com/roach88/fable/internal/rule"
	"github.com/roach88/fable/internal/store"
	"github.com/roach88/fable/internal/world"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testWorld() world.Store {
	return world.FromEntities(map[string]world.Entity{
		"player": {
			Tags:  world.NewTagSet("hero"),
			Stats: map[string]int64{"gold": 12},
			Links: map[string]string{"room": "hall"},
		},
		"hall":  {Tags: world.NewTagSet("room")},
		"door1": {Tags: world.NewTagSet("door", "locked")},
	})
}

// testRules: a specific unlock rule, a general door rule, and a paid rule
// keyed on the trigger id "tip".
func testRules() []rule.Rule {
	return []rule.Rule{
		{
			ID:      "knock",
			Trigger: rule.EntityTrigger{Matcher: query.General{Queries: []query.Query{query.HasTag{Tag: "door"}}}},
			Text:    "You knock.",
		},
		{
			ID: "unlock",
			Trigger: rule.EntityTrigger{Matcher: query.Specific{
				ID:      query.Literal("door1"),
				Queries: []query.Query{query.HasTag{Tag: "locked"}},
			}},
			Changes: []change.EntityUpdate{
				change.Update{Target: query.Self, Changes: []change.Change{change.RemoveTag{Tag: "locked"}}},
			},
			Text: "The lock clicks.",
		},
		{
			ID:      "tip",
			Trigger: rule.SpecificTrigger{ID: "tip"},
			Conditions: []query.Matcher{query.Specific{ID: query.Literal("player"), Queries: []query.Query{
				query.HasStat{Key: "gold", Cmp: query.GT, Value: query.StatValue(0)},
			}}},
			Changes: []change.EntityUpdate{
				change.Update{Target: query.Literal("player"), Changes: []change.Change{change.DecStat{Key: "gold", By: 5}}},
			},
			Text: "You tip the bard.",
		},
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithLogger(discardLogger()),
		WithSessionIDGenerator(NewFixedGenerator("session-1")),
	}
	e, err := New(testWorld(), testRules(), append(base, opts...)...)
	require.NoError(t, err)
	return e
}

// failingJournal accepts sessions and rejects every turn.
type failingJournal struct{}

func (failingJournal) BeginSession(_ context.Context, s store.Session) (store.Session, error) {
	return s, nil
}

func (failingJournal) WriteTurn(context.Context, store.TurnRecord) error {
	return errors.New("disk full")
}

func TestEngine_New(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, "session-1", e.SessionID())
	assert.Len(t, e.RulesDigest(), 64)
	assert.Len(t, e.Rules(), 3)
	assert.Equal(t, int64(0), e.Clock().Current())
	assert.Equal(t, 3, e.World().Len())
}

func TestEngine_RulesAreCopied(t *testing.T) {
	rules := testRules()
	e, err := New(testWorld(), rules, WithLogger(discardLogger()))
	require.NoError(t, err)

	rules[1].ID = "mutated"
	assert.Equal(t, "unlock", e.Rules()[1].ID)
}

func TestEngine_StepFiresMostSpecificRule(t *testing.T) {
	e := newTestEngine(t)

	turn, err := e.Step(context.Background(), "door1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), turn.Seq)
	assert.True(t, turn.Matched)
	assert.Equal(t, "unlock", turn.RuleID)
	assert.Equal(t, 101, turn.Weight)
	assert.Equal(t, "The lock clicks.", turn.Text)

	door, _ := e.World().Get("door1")
	assert.False(t, door.HasTag("locked"))

	// unlocked now, so only the general rule is left
	turn, err = e.Step(context.Background(), "door1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), turn.Seq)
	assert.Equal(t, "knock", turn.RuleID)
}

func TestEngine_StepFallback(t *testing.T) {
	e := newTestEngine(t)
	before := e.World()

	turn, err := e.Step(context.Background(), "dance")
	require.NoError(t, err)

	assert.False(t, turn.Matched)
	assert.Empty(t, turn.RuleID)
	assert.Equal(t, "dance", turn.Text, "fallback narration is the trigger id")
	assert.Equal(t, before.Records(), e.World().Records())
	assert.Equal(t, int64(1), e.Clock().Current(), "fallback turns still take a seq")
}

func TestEngine_StepConditionsGateRule(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// 12 -> 7 -> 2 -> -3, then the condition gold > 0 fails
	for i := 0; i < 3; i++ {
		turn, err := e.Step(ctx, "tip")
		require.NoError(t, err)
		assert.True(t, turn.Matched, "tip %d", i)
	}
	turn, err := e.Step(ctx, "tip")
	require.NoError(t, err)
	assert.False(t, turn.Matched)

	player, _ := e.World().Get("player")
	assert.Equal(t, int64(-3), player.Stat("gold"))
}

func TestEngine_StepJournalFailureDoesNotAdvance(t *testing.T) {
	e := newTestEngine(t, WithJournal(failingJournal{}))
	before := e.World()

	_, err := e.Step(context.Background(), "door1")
	require.Error(t, err)
	assert.True(t, IsJournalError(err))
	assert.ErrorContains(t, err, "disk full")

	assert.Equal(t, before.Records(), e.World().Records(), "world not advanced")
	assert.Equal(t, int64(0), e.Clock().Current(), "seq not consumed")
}

func TestEngine_StepCancelledContext(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Step(ctx, "door1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_StepQuota(t *testing.T) {
	e := newTestEngine(t, WithMaxTurns(1))
	ctx := context.Background()

	_, err := e.Step(ctx, "look")
	require.NoError(t, err)
	_, err = e.Step(ctx, "look")
	assert.True(t, IsQuotaError(err))
}

func TestEngine_Journaled(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, WithJournal(s))
	ctx := context.Background()

	for _, trig := range []string{"door1", "dance", "tip"} {
		_, err := e.Step(ctx, trig)
		require.NoError(t, err)
	}

	sess, err := s.ReadSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, e.RulesDigest(), sess.RulesDigest)
	assert.Equal(t, int64(0), sess.CreatedSeq)
	assert.Equal(t, testWorld().Records(), sess.World.Records(), "session keeps its starting world")

	turns, err := s.ReadTurns(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "unlock", turns[0].RuleID)
	assert.False(t, turns[1].Matched)
	assert.Equal(t, "dance", turns[1].Text)
	assert.Equal(t, "tip", turns[2].RuleID)
	assert.Equal(t, e.World().Records(), turns[2].World.Records())
}

func TestEngine_ResumeFromJournal(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := newTestEngine(t, WithJournal(s))
	_, err := first.Step(ctx, "door1")
	require.NoError(t, err)

	w, seq, err := s.LatestWorld(ctx, "session-1")
	require.NoError(t, err)

	resumed, err := New(w, testRules(),
		WithJournal(s),
		WithSessionID("session-1"),
		WithClock(NewClockAt(seq)),
		WithLogger(discardLogger()),
	)
	require.NoError(t, err)

	turn, err := resumed.Step(ctx, "door1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), turn.Seq)
	assert.Equal(t, "knock", turn.RuleID, "door stayed unlocked across the restart")

	turns, err := s.ReadTurns(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestEngine_RunDrainsQueueInOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []Turn
	)
	e := newTestEngine(t, WithTurnHandler(func(turn Turn) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, turn)
	}))

	for _, trig := range []string{"door1", "door1", "dance"} {
		require.True(t, e.Enqueue(trig))
	}
	assert.Equal(t, 3, e.QueueLen())
	e.Stop()
	assert.False(t, e.Enqueue("late"), "stopped engine refuses triggers")

	require.NoError(t, e.Run(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, "unlock", seen[0].RuleID)
	assert.Equal(t, "knock", seen[1].RuleID)
	assert.False(t, seen[2].Matched)
	for i, turn := range seen {
		assert.Equal(t, int64(i+1), turn.Seq)
	}
}

func TestEngine_RunContinuesAfterFailedTurn(t *testing.T) {
	var count int
	e := newTestEngine(t, WithMaxTurns(1), WithTurnHandler(func(Turn) { count++ }))

	e.Enqueue("door1")
	e.Enqueue("door1") // over quota: logged, loop continues
	e.Stop()

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 1, count)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	e.Enqueue("door1")
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, e.Enqueue("late"), "cancel closes the queue")
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
