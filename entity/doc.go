// Package entity holds the Member and Team tables and the MemberDto
// projection. Importing it registers both models for migration.
package entity
