// Package stores persists loops, sub-loops and equivalence classes.
//
// Two backends implement Store: SQLiteStore keeps records in SQLite with
// WAL mode and embedded golang-migrate migrations, and BadgerStore keeps
// JSON records in an embedded badger key-value database. Open selects a
// backend from Options, connects it and applies migrations.
//
// Both backends group saved loops into equivalence classes through
// AssignClass and expose ancestry through Lineage. CheckIntegrity walks a
// store and reports broken invariants.
package stores
