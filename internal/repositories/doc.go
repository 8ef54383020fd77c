// Package repositories implements SQLite persistence for build history and the chart cache.
//
// Key Implementations:
//   - [BuildRepository] : Finished builds and their per-entry results, with soft deletes
//   - [ChartRepository] : Scraped chart entries keyed by year
//
// Sequence numbers provide stable, human-readable ordering (e.g., build #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
