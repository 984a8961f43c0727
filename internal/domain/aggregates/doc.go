// Package aggregates defines domain-facing aggregate contracts and the
// canonical aggregate error.
//
// Contracts avoid persistence and transport details; each one is a write
// boundary whose invariants are enforced atomically.
package aggregates
