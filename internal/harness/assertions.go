package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/fable/internal/world"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			rule := event.RuleID
			if !event.Matched {
				rule = "(fallback)"
			}
			fmt.Fprintf(&buf, "  [%d] %s -> %s\n", event.Seq, event.Trigger, rule)
		}
	}

	return buf.String()
}

// assertTag checks that entity carries (want true) or lacks the tag.
func assertTag(w world.Store, a Assertion, want bool) error {
	e, ok := w.Get(a.Entity)
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("entity %s present", a.Entity),
			Actual:   "entity not found",
		}
	}
	if e.HasTag(a.Tag) == want {
		return nil
	}
	verb := "has"
	if !want {
		verb = "lacks"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s %s tag %q", a.Entity, verb, a.Tag),
		Actual:   fmt.Sprintf("tags %v", e.Tags.Sorted()),
	}
}

// assertStat checks an exact stat value. A missing stat reads as 0.
func assertStat(w world.Store, a Assertion) error {
	e, ok := w.Get(a.Entity)
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("entity %s present", a.Entity),
			Actual:   "entity not found",
		}
	}
	if got := e.Stat(a.Stat); got != *a.Value {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s.%s = %d", a.Entity, a.Stat, *a.Value),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// assertLink checks the raw link value. A dangling link still matches.
func assertLink(w world.Store, a Assertion) error {
	e, _ := w.Get(a.Entity)
	got, ok := e.Link(a.Link)
	if ok && got == a.Target {
		return nil
	}
	actual := "link not set"
	if ok {
		actual = fmt.Sprintf("points at %s", got)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s.%s -> %s", a.Entity, a.Link, a.Target),
		Actual:   actual,
	}
}

func assertPresence(w world.Store, a Assertion, want bool) error {
	if w.Has(a.Entity) == want {
		return nil
	}
	expected, actual := "present", "absent"
	if !want {
		expected, actual = actual, expected
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("entity %s %s", a.Entity, expected),
		Actual:   actual,
	}
}

// assertRuleFired checks how often a rule fired. Without a count it must
// fire at least once.
func assertRuleFired(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Matched && event.RuleID == a.Rule {
			count++
		}
	}

	if a.Count == nil {
		if count > 0 {
			return nil
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("rule %s fired", a.Rule),
			Actual:   "never fired",
			Trace:    trace,
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d firings of %s", *a.Count, a.Rule),
			Actual:   fmt.Sprintf("%d firings", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertRuleOrder checks that rules first fired in the listed order.
// Rules don't need to be consecutive (intervening turns are allowed).
func assertRuleOrder(trace []TraceEvent, a Assertion) error {
	// Find first position of each expected rule, 1-indexed for readability
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Matched && positions[event.RuleID] == 0 {
			positions[event.RuleID] = i + 1
		}
	}

	for _, id := range a.Rules {
		if positions[id] == 0 {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("all rules fired: %v", a.Rules),
				Actual:   fmt.Sprintf("missing rule: %s", id),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Rules); i++ {
		prev, curr := a.Rules[i-1], a.Rules[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("rules in order: %v", a.Rules),
				Actual: fmt.Sprintf("%s (turn %d) should be before %s (turn %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// EvaluateAssertions checks every assertion against the trace and the
// final world. Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, w world.Store) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertHasTag:
			err = assertTag(w, a, true)
		case AssertLacksTag:
			err = assertTag(w, a, false)
		case AssertStat:
			err = assertStat(w, a)
		case AssertLink:
			err = assertLink(w, a)
		case AssertPresent:
			err = assertPresence(w, a, true)
		case AssertAbsent:
			err = assertPresence(w, a, false)
		case AssertRuleFired:
			err = assertRuleFired(result.Trace, a)
		case AssertRuleOrder:
			err = assertRuleOrder(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}
