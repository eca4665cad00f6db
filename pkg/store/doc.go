// Package store implements the document store behind the aggregation and
// alerting engine on database/sql.
//
// Collections map to tables: raw_extraction_events, raw_api_usage_events,
// metric_windows, alerts, notifications. Each supports range queries on its
// time column and bulk deletes for retention. Map-valued fields (category
// counts, error breakdowns, window snapshots) are stored as JSON text.
//
// Both PostgreSQL (lib/pq) and SQLite (go-sqlite3) are supported; queries
// use $n placeholders, which both drivers accept. SQLite is intended for
// single-node deployments and local development.
package store
