// Package persistence implements a persistence context on top of bun: an
// identity map with snapshot based dirty checking, flushed as full-row
// updates. Bulk updates go straight to the database and leave managed
// entities stale until the context is cleared.
package persistence
