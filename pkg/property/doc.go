// Package property defines the versioned property aggregate: the core version
// record, its broker and tenant collections, audit records, the error kinds
// reported to callers, and "major.minor" version arithmetic.
package property
