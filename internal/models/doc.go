// Package models defines domain entities and persistence interfaces for the chartx playlist builder.
//
// The package contains two categories of types:
//
// 1. Value types passed between the chart source, the auth flow and the builder
//   - [Credentials] : Client id/secret supplied by the user for one session
//   - [AuthState] : CSRF state issued with an authorize redirect, consumed once
//   - [TokenInfo] : Access/refresh token pair, replaced wholesale on refresh
//   - [ChartEntry] : One (title, artist, rank) row of a year-end chart
//   - [MatchResult] : Outcome of resolving one chart entry to a remote track
//   - [BuildSummary] : Ordered results and counts of one playlist build
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [BuildRecord] : A finished build with its status and counts
//
// Persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
