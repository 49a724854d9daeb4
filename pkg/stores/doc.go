// Package stores persists rent roll aggregates.
//
// Two backends implement Backend: SQLStore over database/sql (SQLite through
// modernc.org/sqlite, or Postgres through pgx) with embedded golang-migrate
// migrations, and MemoryStore, an in-process map store without transactions.
// Broker and tenant rows reference their aggregate instance by its generated id
// and carry a denormalized (property_id, version) copy for querying.
package stores
