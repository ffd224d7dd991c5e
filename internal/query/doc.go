// Package query implements the matcher language evaluated against a
// world.Store.
//
// A Query is a single boolean predicate over one entity. A Matcher selects
// entities: Specific names one entity, General selects every entity
// satisfying its queries. Queries inside a Matcher are AND-ed; there is no
// OR at this level.
//
// SEALED INTERFACES:
//
// Query, Matcher, StatSpec and LinkSpec are sealed with marker methods so
// evaluation can switch exhaustively over the variants:
//
//	switch q := q.(type) {
//	case HasTag:
//	case HasStat:
//	case HasLink:
//	case Not:
//	}
//
// SELF REFERENCES:
//
// Entity references are Ref values, either a literal id or Self. Self
// stands for the entity whose trigger started the current evaluation and
// is written "$" in authored content. Bind rewrites every Self to a literal
// id. A bound Ref stays literal under further binding, so substituting
// twice cannot change a matcher.
//
// An unbound Self evaluates as the literal id "$", which never names a
// stored entity.
//
// All evaluation is pure: the Store is only read. Anything missing (an
// absent entity, stat, or link target) makes the predicate false.
package query
