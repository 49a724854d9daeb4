// Package rules holds the cross-entity checks run against a composed target
// state before anything is written: vacant-space derivation, payload integrity
// and the space and lease-window invariants. Every function is pure.
package rules
