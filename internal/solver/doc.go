// Package solver is a small finite-domain constraint model with an
// exhaustive-search entry point.
//
// The model mirrors the primitives a CP-SAT style backend exposes: integer
// variables over closed ranges, booleans, linear (in)equalities, enforcement
// literals ("only enforce if"), an exactly-one helper and model cloning.
// SearchAll visits every feasible total assignment exactly once and reports
// it through a callback.
//
// Search is plain depth-first backtracking in variable-creation order with
// each constraint checked as soon as its last variable is bound. That is
// adequate for the small domains this module targets and keeps enumeration
// order deterministic.
package solver
