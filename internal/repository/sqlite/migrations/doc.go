// Package migrations embeds the SQL schema files applied by
// repository/sqlite's schema self-healing on startup. Files are
// applied in lexical order; each carries an "-- +migrate Up" and
// "-- +migrate Down" marker pair, matching the teacher's per-service
// storage layout (internal/services/*/storage/sqlite/migrations).
package migrations
