package digest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fable/internal/change"
	"github.com/roach88/fable/internal/query"
	"github.com/roach88/fable/internal/rule"
	"github.com/roach88/fable/internal/world"
)

func TestMarshal_Basic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"min int64", int64(-9223372036854775808), "-9223372036854775808"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"string slice", []string{"a", "b"}, `["a","b"]`},
		{"empty object", map[string]any{}, "{}"},
		{"stats", map[string]int64{"hp": 3, "gold": 10}, `{"gold":10,"hp":3}`},
		{"links", map[string]string{"room": "hall"}, `{"room":"hall"}`},
		{"nested", map[string]any{"z": map[string]any{"b": 1, "a": 2}, "a": 3}, `{"a":3,"z":{"a":2,"b":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshal_Rejects(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)
	_, err = Marshal(1.5)
	assert.Error(t, err)
	_, err = Marshal([]any{"ok", 2.0})
	assert.ErrorContains(t, err, "array[1]")
	_, err = Marshal(struct{}{})
	assert.Error(t, err)
	_, err = Marshal("bad \xff byte")
	assert.ErrorContains(t, err, "invalid UTF-8")
	_, err = Marshal(map[string]any{"\xfe": 1})
	assert.ErrorContains(t, err, "invalid UTF-8")
}

func TestMarshal_Strings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"quote and backslash", `say "hi" \o/`, `"say \"hi\" \\o/"`},
		{"newline and tab", "a\nb\tc", `"a\nb\tc"`},
		{"control character", "\x01", `"\u0001"`},
		{"line separator kept literal", "a\u2028b", "\"a\u2028b\""},
		{"decomposed form kept", "e\u0301", "\"e\u0301\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(MustMarshal(tt.input)))
		})
	}
}

func TestMarshal_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D.. which sort before U+FF61
	obj := map[string]any{"\uff61": 1, "\U0001F600": 2}
	assert.Equal(t, "{\"\U0001F600\":2,\"\uff61\":1}", string(MustMarshal(obj)))
}

func testWorld() world.Store {
	return world.FromEntities(map[string]world.Entity{
		"player": {
			Tags:  world.NewTagSet("hero"),
			Stats: map[string]int64{"gold": 12},
			Links: map[string]string{"room": "hall"},
		},
		"hall": {Tags: world.NewTagSet("room", "lit")},
	})
}

func TestWorldValue_TupleForm(t *testing.T) {
	got := string(MustMarshal(WorldValue(testWorld())))
	want := `[{"id":"hall","links":{},"stats":{},"tags":["lit","room"]},` +
		`{"id":"player","links":{"room":"hall"},"stats":{"gold":12},"tags":["hero"]}]`
	assert.Equal(t, want, got)
}

func TestWorldValue_DecodesAsRecords(t *testing.T) {
	s := testWorld()
	var records []world.Record
	require.NoError(t, json.Unmarshal(MustMarshal(WorldValue(s)), &records))
	assert.Equal(t, s.Records(), records)
}

func TestWorld_Digest(t *testing.T) {
	s := testWorld()
	d1, err := World(s)
	require.NoError(t, err)
	assert.Len(t, d1, 64)

	assert.Equal(t, d1, MustWorld(world.FromRecords(s.Records())), "round trip keeps the digest")

	changed := s.Update("player", func(e world.Entity) world.Entity { return e.WithStat("gold", 13) })
	assert.NotEqual(t, d1, MustWorld(changed))
	assert.NotEqual(t, d1, hashWithDomain(DomainRules, MustMarshal(WorldValue(s))), "domains separate digests")
}

func TestWorld_DigestDistinguishesNormalizationForms(t *testing.T) {
	composed := world.New().Insert("caf\u00e9", world.NewEntity())
	decomposed := world.New().Insert("cafe\u0301", world.NewEntity())
	assert.NotEqual(t, MustWorld(composed), MustWorld(decomposed))
}

func TestWorld_RejectsInvalidUTF8(t *testing.T) {
	s := world.New().Insert("bad\xff", world.NewEntity())
	_, err := World(s)
	assert.ErrorContains(t, err, "invalid UTF-8")
}

func TestRuleValue(t *testing.T) {
	r := rule.Rule{
		ID:      "open",
		Trigger: rule.EntityTrigger{Matcher: query.Specific{ID: query.Literal("door1"), Queries: []query.Query{query.HasTag{Tag: "locked"}}}},
		Conditions: []query.Matcher{
			query.General{Queries: []query.Query{
				query.HasStat{Key: "gold", Cmp: query.GT, Value: query.StatRef{Entity: query.Self, Key: "gold"}},
				query.Not{Query: query.HasLink{Key: "room", Target: query.LinkRef{Entity: query.Self, Key: "room"}}},
			}},
		},
		Changes: []change.EntityUpdate{
			change.Update{Target: query.Self, Changes: []change.Change{
				change.RemoveTag{Tag: "locked"},
				change.IncStat{Key: "hp", By: 1},
				change.SetLink{Key: "room", Target: change.LinkLookup{From: query.Literal("door1"), Key: "room"}},
			}},
			change.Despawn{Target: query.Literal("key")},
		},
		Text: "Open.",
	}

	want := `{"changes":[{"do":[{"remove_tag":"locked"},{"by":1,"inc":"hp"},{"from":{"entity":"door1","link":"room"},"link":"room"}],"update":"$"},{"despawn":"key"}],` +
		`"conditions":[{"where":[{"gt":{"entity":"$","stat":"gold"},"stat":"gold"},{"not":{"link":"room","same_as":{"entity":"$","link":"room"}}}]}],` +
		`"id":"open","text":"Open.",` +
		`"trigger":{"entity":"door1","where":[{"tag":"locked"}]}}`
	assert.Equal(t, want, string(MustMarshal(RuleValue(r))))
}

func TestRules_OrderSensitive(t *testing.T) {
	a := rule.Rule{ID: "a", Trigger: rule.SpecificTrigger{ID: "look"}}
	b := rule.Rule{ID: "b", Trigger: rule.SpecificTrigger{ID: "look"}}

	ab, err := Rules([]rule.Rule{a, b})
	require.NoError(t, err)
	ba, err := Rules([]rule.Rule{b, a})
	require.NoError(t, err)
	assert.NotEqual(t, ab, ba)
}
