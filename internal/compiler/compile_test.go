package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fable/internal/change"
	"github.com/roach88/fable/internal/query"
	"github.com/roach88/fable/internal/rule"
)

func ruleByID(t *testing.T, p *Program, id string) rule.Rule {
	t.Helper()
	for _, r := range p.Rules {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("rule %q not compiled", id)
	return rule.Rule{}
}

func TestLoadDirTavern(t *testing.T) {
	p, errs := LoadDir("testdata/tavern", LoadModeFailFast)
	require.Empty(t, errs)

	assert.Equal(t, 2, p.FileCount)
	assert.Equal(t, []string{"cellar", "door1", "hall", "merchant", "player"}, p.World.IDs())
	assert.Len(t, p.Rules, 5)

	player, ok := p.World.Get("player")
	require.True(t, ok)
	assert.True(t, player.HasTag("hero"))
	assert.Equal(t, int64(12), player.Stat("gold"))
	room, _ := player.Link("room")
	assert.Equal(t, "hall", room)

	weights := map[string]int{}
	for _, r := range p.Rules {
		weights[r.ID] = rule.Weight(r)
	}
	assert.Equal(t, map[string]int{
		"knock":     1,
		"unlock":    112,
		"haggle":    111,
		"ring-bell": 0,
		"descend":   3,
	}, weights)
}

func TestLoadDirRuleShapes(t *testing.T) {
	p, errs := LoadDir("testdata/tavern", LoadModeFailFast)
	require.Empty(t, errs)

	unlock := ruleByID(t, p, "unlock")
	assert.Equal(t, rule.EntityTrigger{Matcher: query.Specific{
		ID:      query.Literal("door1"),
		Queries: []query.Query{query.HasTag{Tag: "locked"}},
	}}, unlock.Trigger)
	assert.Equal(t, []change.EntityUpdate{
		change.Update{Target: query.Self, Changes: []change.Change{change.RemoveTag{Tag: "locked"}}},
		change.Update{Target: query.Literal("player"), Changes: []change.Change{change.DecStat{Key: "gold", By: 10}}},
	}, unlock.Changes)

	haggle := ruleByID(t, p, "haggle")
	require.Len(t, haggle.Conditions, 1)
	assert.Equal(t, "player[gold<merchant.gold]", query.FormatMatcher(haggle.Conditions[0]))

	bell := ruleByID(t, p, "ring-bell")
	assert.Equal(t, rule.SpecificTrigger{ID: "bell"}, bell.Trigger)
	require.Len(t, bell.Changes, 2)
	assert.Equal(t, change.UpdateAll{
		Queries: []query.Query{
			query.HasTag{Tag: "npc"},
			query.HasLink{Key: "room", Target: query.LinkRef{Entity: query.Literal("player"), Key: "room"}},
		},
		Changes: []change.Change{change.AddTag{Tag: "alert"}},
	}, bell.Changes[0])
	assert.Equal(t, change.Spawn{
		ID: query.Literal("guard"),
		Changes: []change.Change{
			change.AddTag{Tag: "npc"},
			change.SetLink{Key: "room", Target: change.LinkLookup{From: query.Literal("player"), Key: "room"}},
		},
	}, bell.Changes[1])

	descend := ruleByID(t, p, "descend")
	assert.Equal(t, "*[door, !locked, room->cellar]", query.FormatMatcher(descend.Conditions[0]))
	assert.Equal(t, change.Update{Target: query.Literal("player"), Changes: []change.Change{
		change.SetLink{Key: "room", Target: change.LinkTo{ID: query.Literal("cellar")}},
		change.SetStat{Key: "hp", Value: 5},
	}}, descend.Changes[0])
}

func TestLoadDirCollectAll(t *testing.T) {
	_, errs := LoadDir("testdata/broken", LoadModeCollectAll)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "entity.player.stats.gold")
	assert.Contains(t, errs[0].Error(), "float")
	assert.Contains(t, errs[1].Error(), "rule.nowhere.trigger")

	_, errs = LoadDir("testdata/broken", LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoadDirErrors(t *testing.T) {
	empty := t.TempDir()
	file := filepath.Join(empty, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing", filepath.Join(empty, "nope"), ErrCodeNotFound},
		{"not a directory", file, ErrCodeNotFound},
		{"no cue files", empty, ErrCodeNoFiles},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := LoadDir(tt.dir, LoadModeFailFast)
			require.Len(t, errs, 1)
			assert.True(t, IsLoadError(errs[0]))
			assert.Contains(t, errs[0].Error(), tt.code)
		})
	}
}

func TestLoadDirEmptyDefinition(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.cue"), []byte("package empty\n"), 0644))

	_, errs := LoadDir(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeEmpty)
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte("package x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.cue"), []byte("package x"), 0644))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestCompileStringQueries(t *testing.T) {
	p, err := CompileString(`
		entity: a: {}
		rule: r: {
			trigger: where: [
				{tag: "x"},
				{not: {not: {tag: "y"}}},
				{stat: "hp", eq: 3},
				{stat: "hp", gt: {entity: "$", stat: "max"}},
				{link: "owner", to: {}},
				{link: "owner", to: {entity: "guild", where: [{tag: "open"}]}},
				{link: "room", same_as: {entity: "$", link: "room"}},
			]
		}
	`, "queries.cue")
	require.NoError(t, err)

	require.Len(t, p.Rules, 1)
	et, ok := p.Rules[0].Trigger.(rule.EntityTrigger)
	require.True(t, ok)
	assert.Equal(t, "*[x, !!y, hp=3, hp>$.max, owner->*, owner->guild[open], room=$.room]",
		query.FormatMatcher(et.Matcher))
}

func TestCompileStringNormalizesNames(t *testing.T) {
	// the entity label is decomposed, every reference is composed
	p, err := CompileString(`
		entity: "cafe\u0301": {tags: ["ope\u0301n"], stats: "cre\u0300me": 1, links: "ne\u0301": "hall"}
		entity: hall: {}
		rule: "caf\u00e9-visit": {
			trigger: "caf\u00e9"
			conditions: [{entity: "caf\u00e9", where: [{tag: "op\u00e9n"}, {stat: "cr\u00e8me", eq: 1}]}]
		}
	`, "names.cue")
	require.NoError(t, err)

	assert.Equal(t, []string{"caf\u00e9", "hall"}, p.World.IDs())
	e, ok := p.World.Get("caf\u00e9")
	require.True(t, ok)
	assert.True(t, e.HasTag("op\u00e9n"))
	assert.Equal(t, int64(1), e.Stat("cr\u00e8me"))
	target, _ := e.Link("n\u00e9")
	assert.Equal(t, "hall", target)

	require.Len(t, p.Rules, 1)
	r := p.Rules[0]
	assert.Equal(t, "caf\u00e9-visit", r.ID)
	assert.Equal(t, rule.SpecificTrigger{ID: "caf\u00e9"}, r.Trigger)
	assert.True(t, rule.ConditionsHold(r, "caf\u00e9", p.World))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "caf\u00e9", NormalizeName("cafe\u0301"))
	assert.Equal(t, "caf\u00e9", NormalizeName("caf\u00e9"))
	assert.Equal(t, "$", NormalizeName("$"))
}

func TestCompileStringChanges(t *testing.T) {
	p, err := CompileString(`
		rule: r: {
			trigger: "go"
			changes: [
				{update: "$", do: [{set: "hp", to: -2}, {inc: "xp", by: 3}]},
				{spawn: "ghost"},
				{despawn: "$"},
			]
		}
	`, "changes.cue")
	require.NoError(t, err)

	assert.Equal(t, []change.EntityUpdate{
		change.Update{Target: query.Self, Changes: []change.Change{
			change.SetStat{Key: "hp", Value: -2},
			change.IncStat{Key: "xp", By: 3},
		}},
		change.Spawn{ID: query.Literal("ghost")},
		change.Despawn{Target: query.Self},
	}, p.Rules[0].Changes)
	assert.Empty(t, p.Rules[0].Text)
}

func TestCompileStringRejects(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		msg   string
	}{
		{
			name:  "unknown entity field",
			src:   `entity: a: {colour: "red"}`,
			field: "entity.a.colour",
			msg:   "unknown field",
		},
		{
			name:  "float stat",
			src:   `entity: a: stats: hp: 2.5`,
			field: "entity.a.stats.hp",
			msg:   "float",
		},
		{
			name:  "string tag list",
			src:   `entity: a: tags: "door"`,
			field: "entity.a.tags",
			msg:   "expected list",
		},
		{
			name:  "missing trigger",
			src:   `rule: r: text: "hi"`,
			field: "rule.r.trigger",
			msg:   "required",
		},
		{
			name:  "empty specific trigger",
			src:   `rule: r: trigger: ""`,
			field: "rule.r.trigger",
			msg:   "must not be empty",
		},
		{
			name:  "unknown query form",
			src:   `rule: r: trigger: where: [{colour: "red"}]`,
			field: "rule.r.trigger.where[0]",
			msg:   "expected one of",
		},
		{
			name:  "ambiguous query",
			src:   `rule: r: trigger: where: [{tag: "a", not: {tag: "b"}}]`,
			field: "rule.r.trigger.where[0]",
			msg:   "ambiguous",
		},
		{
			name:  "stat without comparator",
			src:   `rule: r: trigger: where: [{stat: "hp"}]`,
			field: "rule.r.trigger.where[0]",
			msg:   "expected one of lt, eq, gt",
		},
		{
			name:  "two comparators",
			src:   `rule: r: trigger: where: [{stat: "hp", lt: 1, gt: 0}]`,
			field: "rule.r.trigger.where[0]",
			msg:   "ambiguous",
		},
		{
			name:  "float comparison",
			src:   `rule: r: trigger: where: [{stat: "hp", lt: 0.5}]`,
			field: "rule.r.trigger.where[0].lt",
			msg:   "float",
		},
		{
			name:  "update without do",
			src:   `rule: r: {trigger: "t", changes: [{update: "$"}]}`,
			field: "rule.r.changes[0].do",
			msg:   "required",
		},
		{
			name:  "inc without by",
			src:   `rule: r: {trigger: "t", changes: [{update: "$", do: [{inc: "hp"}]}]}`,
			field: "rule.r.changes[0].do[0].by",
			msg:   "required",
		},
		{
			name:  "empty tag",
			src:   `rule: r: {trigger: "t", changes: [{update: "$", do: [{add_tag: ""}]}]}`,
			field: "rule.r.changes[0].do[0].add_tag",
			msg:   "must not be empty",
		},
		{
			name:  "link with both targets",
			src:   `rule: r: {trigger: "t", changes: [{update: "$", do: [{link: "k", to: "a", from: {entity: "b", link: "k"}}]}]}`,
			field: "rule.r.changes[0].do[0]",
			msg:   "ambiguous",
		},
		{
			name:  "non-string text",
			src:   `rule: r: {trigger: "t", text: 3}`,
			field: "rule.r.text",
			msg:   "expected string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.src, "bad.cue")
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.msg)
		})
	}
}

func TestCompileStringSyntaxError(t *testing.T) {
	_, err := CompileString(`entity: a: {`, "syntax.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "syntax.cue")
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "rule.r.trigger", Message: "trigger is required"}
	assert.Equal(t, "rule.r.trigger: trigger is required", err.Error())
}

func TestCompileErrorCarriesPosition(t *testing.T) {
	_, err := CompileString("entity: a: {\n\ttags: [\"x\"]\n\tstats: hp: 1.5\n}\n", "pos.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, 3, ce.Pos.Line())
	assert.Contains(t, err.Error(), "pos.cue:3:")
}
