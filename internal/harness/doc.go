// Package harness runs scripted constraint sessions from YAML scenarios.
//
// A scenario starts a fresh session, applies a flow of edits and queries,
// then checks assertions against the final store, model and journal.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	domain: domain.cue            # optional, default domain otherwise
//	flow:
//	  - add:
//	      kind: must_select
//	      participant1: Dean
//	      shop: Fruit Shop
//	      items: [Papaya, Rambutan]
//	    expect:
//	      outcome: applied
//	  - add:
//	      kind: same_selection
//	      participant1: Adam
//	      participant2: Bobby
//	      shop: Fruit Shop
//	    confirm: true
//	    expect:
//	      outcome: conflicts_resolved
//	      removed: 1
//	  - solve:
//	      items: {participant: Adam, shop: Fruit Shop, items: [Papaya]}
//	    expect:
//	      count: 6
//	assertions:
//	  - type: solution_count
//	    count: 12
//	  - type: history_order
//	    ops: [override, add, rebuild]
//
// # Assertion Types
//
//   - solution_count: unfiltered solution count of the final model
//   - infeasible: the final model has no solution
//   - constraint_count: number of stored records, defaults included
//   - constraint_present / constraint_absent: a record by description
//   - history_order: journal ops occur in the given order
//   - history_count: a journal op occurs exactly N times
//
// # Deterministic Testing
//
// Sessions run with sequential record and entry IDs, a step clock and an
// in-memory journal, so transcripts compare byte for byte against golden
// files.
package harness
