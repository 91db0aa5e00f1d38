// Package catalog persists transcode jobs and export outcomes in SQLite.
//
// The catalog is an audit trail, not a work queue: the transcode runner owns
// job execution and only reports transitions here. Rows from a previous
// process that were still running are marked failed on open so `drip jobs`
// never shows phantom work.
package catalog
