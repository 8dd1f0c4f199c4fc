// Package repository provides a generic repository abstraction built on Bun
// for CRUD operations, sorting, pagination, transactions, and upsert support,
// plus the member and team repositories built on it.
package repository
