// Package tasks builds a year-end chart playlist on a music catalog with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines two operations:
//
//  1. [Engine.Build] : Full chart → playlist build
//     - Resolves the authenticated user
//     - Creates a private "Billboard Top 100 - <year>" playlist
//     - Searches each entry once (title plus artist filter) and adds the first hit
//     - Returns a [models.BuildSummary] with matched, not found and errored entries
//
//  2. [Engine.Preview] : Search-only dry run
//     - Reports found / not found per entry without creating anything
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Concurrency
//
// Entries are resolved by a bounded worker group. Results are stored by chart index so the
// summary keeps chart order no matter which call finishes first. Request pacing is the
// catalog client's job (see services.WithRateLimiter).
//
// # Implementation
//
// [PlaylistEngine] implements [Engine] with dependencies on:
//   - [services.Service] : catalog client (search, playlist create, add)
//   - [Matcher] : one search per entry, no retries
package tasks
