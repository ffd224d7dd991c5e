package query

// SelfID is the authored spelling of a self reference.
const SelfID = "$"

// Ref names an entity: either a literal id or Self.
type Ref struct {
	id   string
	self bool
}

// Self refers to the triggering entity.
var Self = Ref{self: true}

// Literal returns a Ref to the entity with the given id.
func Literal(id string) Ref {
	return Ref{id: id}
}

// ParseRef converts authored text to a Ref. "$" becomes Self.
func ParseRef(s string) Ref {
	if s == SelfID {
		return Self
	}
	return Literal(s)
}

// IsSelf reports whether r is an unbound self reference.
func (r Ref) IsSelf() bool {
	return r.self
}

// ID returns the id r names. An unbound Self returns SelfID.
func (r Ref) ID() string {
	if r.self {
		return SelfID
	}
	return r.id
}

// Bind resolves Self to trigger. Literal refs are returned unchanged.
func (r Ref) Bind(trigger string) Ref {
	if r.self {
		return Literal(trigger)
	}
	return r
}

func (r Ref) String() string {
	return r.ID()
}

// Comparator is the relation used by HasStat.
type Comparator int

const (
	LT Comparator = iota + 1
	EQ
	GT
)

// Compare applies the comparator to a (left) and b (right).
func (c Comparator) Compare(a, b int64) bool {
	switch c {
	case LT:
		return a < b
	case EQ:
		return a == b
	case GT:
		return a > b
	default:
		return false
	}
}

func (c Comparator) String() string {
	switch c {
	case LT:
		return "<"
	case EQ:
		return "="
	case GT:
		return ">"
	default:
		return "?"
	}
}

// Query is a predicate over a single entity.
//
// Variants: HasTag, HasStat, HasLink, Not.
type Query interface {
	queryNode()
}

// HasTag holds when the entity carries Tag.
type HasTag struct {
	Tag string
}

func (HasTag) queryNode() {}

// HasStat compares the entity's stat at Key against Value.
type HasStat struct {
	Key   string
	Cmp   Comparator
	Value StatSpec
}

func (HasStat) queryNode() {}

// HasLink constrains the entity's link at Key.
type HasLink struct {
	Key    string
	Target LinkSpec
}

func (HasLink) queryNode() {}

// Not negates Query.
type Not struct {
	Query Query
}

func (Not) queryNode() {}

// StatSpec is the right-hand side of a stat comparison.
//
// Variants: StatValue, StatRef.
type StatSpec interface {
	statSpec()
}

// StatValue is a literal integer.
type StatValue int64

func (StatValue) statSpec() {}

// StatRef reads stat Key from another entity.
// The comparison fails when that entity is absent.
type StatRef struct {
	Entity Ref
	Key    string
}

func (StatRef) statSpec() {}

// LinkSpec is the constraint on a link's target.
//
// Variants: LinkMatch, LinkRef.
type LinkSpec interface {
	linkSpec()
}

// LinkMatch requires the link target to satisfy Matcher. A Specific
// matcher additionally pins the target id.
type LinkMatch struct {
	Matcher Matcher
}

func (LinkMatch) linkSpec() {}

// LinkRef requires the link to hold the same id as another entity's link
// at Key.
type LinkRef struct {
	Entity Ref
	Key    string
}

func (LinkRef) linkSpec() {}

// Matcher selects entities from a Store.
//
// Variants: Specific, General.
type Matcher interface {
	matcherNode()
}

// Specific selects the single entity ID if it satisfies all Queries.
type Specific struct {
	ID      Ref
	Queries []Query
}

func (Specific) matcherNode() {}

// General selects every entity satisfying all Queries.
type General struct {
	Queries []Query
}

func (General) matcherNode() {}

// QueriesOf returns the queries of m.
func QueriesOf(m Matcher) []Query {
	switch m := m.(type) {
	case Specific:
		return m.Queries
	case General:
		return m.Queries
	default:
		return nil
	}
}

// IsSpecific reports whether m names a single entity.
func IsSpecific(m Matcher) bool {
	_, ok := m.(Specific)
	return ok
}
