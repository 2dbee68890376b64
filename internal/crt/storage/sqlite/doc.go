// Package sqlite persists CRT reconstruction results in the SQLite database
// managed by internal/db: runs, per-event summaries, clusters with their
// member hits, and truth matches for clusters and hits.
package sqlite
