// Package harness runs playthrough scenarios against the engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: unlock_door
//	description: "Paying the locksmith opens the cellar door"
//	specs: ../specs           # directory of CUE files, or inline source:
//	session: my-session       # optional, defaults to test-session
//	flow:
//	  - trigger: door1
//	    expect:
//	      rule: unlock
//	  - trigger: dance
//	    expect:
//	      matched: false
//	assertions:
//	  - type: lacks_tag
//	    entity: door1
//	    tag: locked
//	  - type: stat
//	    entity: player
//	    stat: gold
//	    value: 2
//
// # Assertion Types
//
//   - has_tag, lacks_tag: entity carries or lacks a tag
//   - stat: entity's stat equals value (missing stats read as 0)
//   - link: entity's link points at target
//   - present, absent: entity exists or not
//   - rule_fired: rule fired count times (at least once if count is unset)
//   - rule_order: rules first fired in the listed order
//
// # Determinism
//
// Each run uses a fresh in-memory journal, a fixed session id and the
// engine's logical clock, so traces are identical across runs. After the
// flow the journal is replayed; a divergence fails the scenario. Golden
// snapshots (RunWithGolden) hold the trace and final world as canonical
// JSON.
package harness
