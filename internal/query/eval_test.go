package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fable/internal/world"
)

// testWorld is a small store shared by the evaluation tests.
func testWorld() world.Store {
	return world.FromEntities(map[string]world.Entity{
		"player": {
			Tags:  world.NewTagSet("hero"),
			Stats: map[string]int64{"gold": 12, "hp": 5},
			Links: map[string]string{"room": "hall", "pet": "ghost-cat", "owner": "guild"},
		},
		"merchant": {
			Tags:  world.NewTagSet("npc"),
			Stats: map[string]int64{"gold": 20},
			Links: map[string]string{"room": "hall", "owner": "guild"},
		},
		"hall": {
			Tags: world.NewTagSet("room", "lit"),
		},
		"cellar": {
			Tags: world.NewTagSet("room"),
		},
		"door1": {
			Tags:  world.NewTagSet("door", "locked"),
			Links: map[string]string{"room": "cellar"},
		},
	})
}

func mustGet(t *testing.T, s world.Store, id string) world.Entity {
	t.Helper()
	e, ok := s.Get(id)
	require.True(t, ok, "fixture entity %q missing", id)
	return e
}

func TestEval_HasTag(t *testing.T) {
	s := testWorld()
	for _, id := range s.IDs() {
		e := mustGet(t, s, id)
		for _, tag := range []string{"hero", "npc", "room", "lit", "door", "locked", "nothing"} {
			assert.Equal(t, e.HasTag(tag), Eval(HasTag{Tag: tag}, s, e), "%s has %s", id, tag)
		}
	}
}

func TestEval_HasStatLiteral(t *testing.T) {
	s := testWorld()
	player := mustGet(t, s, "player")

	testCases := []struct {
		name string
		q    HasStat
		want bool
	}{
		{"gt holds", HasStat{Key: "gold", Cmp: GT, Value: StatValue(10)}, true},
		{"gt fails on equal", HasStat{Key: "gold", Cmp: GT, Value: StatValue(12)}, false},
		{"eq", HasStat{Key: "gold", Cmp: EQ, Value: StatValue(12)}, true},
		{"lt", HasStat{Key: "hp", Cmp: LT, Value: StatValue(6)}, true},
		{"missing stat equals zero", HasStat{Key: "xp", Cmp: EQ, Value: StatValue(0)}, true},
		{"missing stat below negative fails", HasStat{Key: "xp", Cmp: LT, Value: StatValue(-1)}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Eval(tc.q, s, player))
		})
	}
}

func TestEval_DefaultStatIsZeroEverywhere(t *testing.T) {
	s := testWorld()
	q := HasStat{Key: "never-set", Cmp: EQ, Value: StatValue(0)}
	for _, id := range s.IDs() {
		assert.True(t, Eval(q, s, mustGet(t, s, id)), id)
	}
}

func TestEval_HasStatReference(t *testing.T) {
	s := testWorld()
	player := mustGet(t, s, "player")

	assert.True(t, Eval(HasStat{Key: "gold", Cmp: LT, Value: StatRef{Entity: Literal("merchant"), Key: "gold"}}, s, player))
	assert.False(t, Eval(HasStat{Key: "gold", Cmp: GT, Value: StatRef{Entity: Literal("merchant"), Key: "gold"}}, s, player))

	// hall has no gold; compare against its default zero
	assert.True(t, Eval(HasStat{Key: "gold", Cmp: GT, Value: StatRef{Entity: Literal("hall"), Key: "gold"}}, s, player))

	// absent entity fails regardless of comparator
	for _, cmp := range []Comparator{LT, EQ, GT} {
		q := HasStat{Key: "xp", Cmp: cmp, Value: StatRef{Entity: Literal("ghost"), Key: "xp"}}
		assert.False(t, Eval(q, s, player), "comparison against absent entity with %s", cmp)
	}
}

func TestEval_HasLinkSpecific(t *testing.T) {
	s := testWorld()
	player := mustGet(t, s, "player")

	testCases := []struct {
		name string
		q    HasLink
		want bool
	}{
		{
			name: "target id matches",
			q:    HasLink{Key: "room", Target: LinkMatch{Matcher: Specific{ID: Literal("hall")}}},
			want: true,
		},
		{
			name: "target id differs",
			q:    HasLink{Key: "room", Target: LinkMatch{Matcher: Specific{ID: Literal("cellar")}}},
			want: false,
		},
		{
			name: "target satisfies queries",
			q:    HasLink{Key: "room", Target: LinkMatch{Matcher: Specific{ID: Literal("hall"), Queries: []Query{HasTag{Tag: "lit"}}}}},
			want: true,
		},
		{
			name: "target fails queries",
			q:    HasLink{Key: "room", Target: LinkMatch{Matcher: Specific{ID: Literal("hall"), Queries: []Query{HasTag{Tag: "dark"}}}}},
			want: false,
		},
		{
			name: "missing link key",
			q:    HasLink{Key: "weapon", Target: LinkMatch{Matcher: Specific{ID: Literal("hall")}}},
			want: false,
		},
		{
			name: "dangling target",
			q:    HasLink{Key: "pet", Target: LinkMatch{Matcher: Specific{ID: Literal("ghost-cat")}}},
			want: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Eval(tc.q, s, player))
		})
	}
}

func TestEval_HasLinkGeneral(t *testing.T) {
	s := testWorld()
	lit := HasLink{Key: "room", Target: LinkMatch{Matcher: General{Queries: []Query{HasTag{Tag: "lit"}}}}}
	anyTarget := HasLink{Key: "pet", Target: LinkMatch{Matcher: General{}}}

	assert.True(t, Eval(lit, s, mustGet(t, s, "player")))
	assert.False(t, Eval(lit, s, mustGet(t, s, "door1")), "cellar is not lit")
	assert.False(t, Eval(anyTarget, s, mustGet(t, s, "player")), "general submatcher needs an existing target")
}

func TestEval_DanglingLinkIsNonMatching(t *testing.T) {
	s := testWorld()
	player := mustGet(t, s, "player")

	target, ok := player.Link("pet")
	require.True(t, ok)
	require.False(t, s.Has(target))

	assert.False(t, Eval(HasLink{Key: "pet", Target: LinkMatch{Matcher: Specific{ID: Literal(target)}}}, s, player))
	_, resolved := s.ResolveLink("player", "pet")
	assert.False(t, resolved)

	// removing a target turns a live link into a dangling one
	after := s.Remove("hall")
	q := HasLink{Key: "room", Target: LinkMatch{Matcher: Specific{ID: Literal("hall")}}}
	assert.True(t, Eval(q, s, player))
	assert.False(t, Eval(q, after, player))
}

func TestEval_HasLinkReference(t *testing.T) {
	s := testWorld()
	player := mustGet(t, s, "player")

	assert.True(t, Eval(HasLink{Key: "room", Target: LinkRef{Entity: Literal("merchant"), Key: "room"}}, s, player))
	assert.True(t, Eval(HasLink{Key: "owner", Target: LinkRef{Entity: Literal("merchant"), Key: "owner"}}, s, player),
		"reference compares raw ids; the target need not exist")
	assert.False(t, Eval(HasLink{Key: "room", Target: LinkRef{Entity: Literal("door1"), Key: "room"}}, s, player))
	assert.False(t, Eval(HasLink{Key: "room", Target: LinkRef{Entity: Literal("merchant"), Key: "pet"}}, s, player),
		"other link absent")
	assert.False(t, Eval(HasLink{Key: "weapon", Target: LinkRef{Entity: Literal("merchant"), Key: "weapon"}}, s, player),
		"both absent is not equal")
	assert.False(t, Eval(HasLink{Key: "room", Target: LinkRef{Entity: Literal("ghost"), Key: "room"}}, s, player))
}

func TestEval_NegationInvolution(t *testing.T) {
	s := testWorld()
	queries := []Query{
		HasTag{Tag: "hero"},
		HasTag{Tag: "missing"},
		HasStat{Key: "gold", Cmp: GT, Value: StatValue(10)},
		HasStat{Key: "gold", Cmp: EQ, Value: StatRef{Entity: Literal("ghost"), Key: "gold"}},
		HasLink{Key: "room", Target: LinkMatch{Matcher: General{Queries: []Query{HasTag{Tag: "lit"}}}}},
		HasLink{Key: "pet", Target: LinkMatch{Matcher: Specific{ID: Literal("ghost-cat")}}},
		Not{Query: HasTag{Tag: "door"}},
	}

	for _, id := range s.IDs() {
		e := mustGet(t, s, id)
		for _, q := range queries {
			assert.Equal(t, Eval(q, s, e), Eval(Not{Query: Not{Query: q}}, s, e), "%s: %s", id, Format(q))
			assert.NotEqual(t, Eval(q, s, e), Eval(Not{Query: q}, s, e), "%s: %s", id, Format(q))
		}
	}
}

func TestEvaluate_Specific(t *testing.T) {
	s := testWorld()

	got := Evaluate(Specific{ID: Literal("door1"), Queries: []Query{HasTag{Tag: "locked"}}}, s)
	require.Len(t, got, 1)
	assert.Equal(t, "door1", got[0].ID)
	assert.True(t, got[0].Entity.HasTag("door"))

	assert.Empty(t, Evaluate(Specific{ID: Literal("door1"), Queries: []Query{HasTag{Tag: "open"}}}, s))
	assert.Empty(t, Evaluate(Specific{ID: Literal("ghost")}, s))
}

func TestEvaluate_GeneralInIDOrder(t *testing.T) {
	s := testWorld()

	got := Evaluate(General{Queries: []Query{HasTag{Tag: "room"}}}, s)
	ids := make([]string, len(got))
	for i, m := range got {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"cellar", "hall"}, ids)

	all := Evaluate(General{}, s)
	assert.Len(t, all, s.Len(), "empty query list selects every entity")
	assert.Empty(t, Evaluate(General{Queries: []Query{HasTag{Tag: "dragon"}}}, s))
}

func TestMatches_AgreesWithEvaluate(t *testing.T) {
	s := testWorld()
	matchers := []Matcher{
		Specific{ID: Literal("player")},
		Specific{ID: Literal("ghost")},
		Specific{ID: Literal("player"), Queries: []Query{HasTag{Tag: "npc"}}},
		General{Queries: []Query{HasTag{Tag: "npc"}}},
		General{Queries: []Query{HasTag{Tag: "dragon"}}},
		General{},
	}
	for _, m := range matchers {
		assert.Equal(t, len(Evaluate(m, s)) > 0, Matches(m, s), FormatMatcher(m))
	}
}

func TestEvaluate_UnboundSelfNeverMatches(t *testing.T) {
	s := testWorld()
	assert.Empty(t, Evaluate(Specific{ID: Self}, s))
	assert.False(t, Matches(General{Queries: []Query{
		HasStat{Key: "gold", Cmp: EQ, Value: StatRef{Entity: Self, Key: "gold"}},
	}}, s))
}

func TestEvaluate_RoundTripPreservesResults(t *testing.T) {
	s := testWorld()
	rebuilt := world.FromRecords(s.Records())

	matchers := []Matcher{
		General{Queries: []Query{HasTag{Tag: "room"}}},
		General{Queries: []Query{HasStat{Key: "gold", Cmp: GT, Value: StatValue(0)}}},
		General{Queries: []Query{HasLink{Key: "room", Target: LinkMatch{Matcher: Specific{ID: Literal("hall")}}}}},
		Specific{ID: Literal("door1"), Queries: []Query{Not{Query: HasTag{Tag: "open"}}}},
	}
	for _, m := range matchers {
		assert.Equal(t, Evaluate(m, s), Evaluate(m, rebuilt), FormatMatcher(m))
	}
}
