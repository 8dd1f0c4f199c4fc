// Package database provides connection management, configuration, logging,
// query hooks, driver error translation, model registration, migrations and
// SQL seed files, all built on top of Bun.
package database
