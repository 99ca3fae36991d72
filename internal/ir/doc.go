// Package ir provides the canonical types for foodcsp: the domain registry
// (participants and shops) and constraint records.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Constraint kinds are a closed enum decided at construction, never
//     re-derived from display text
//   - Item codes are catalog positions; a shop's item order is its identity
//   - Eligibility is a per-shop capability checked through Registry.IsEligible
//   - All JSON tags use snake_case
package ir
