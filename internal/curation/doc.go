// Package curation implements the interactive playlist curation engine.
//
// # Pipeline
//
// Tracks flow through four stages, each pulling from the previous one on demand:
//
//  1. [TrackStream] : lazy, finite, non-restartable pages of a remote playlist
//  2. [AutoFilter] : applies the keep [Predicate], recording rejections in the [RemovalSet]
//  3. [DecisionLoop] : holds the cursor and advances on Accept/Reject
//  4. [FinalizeGuard] : commits the [RemovalSet] exactly once when the session ends
//
// The decision loop is single-threaded; callers deliver one input at a time.
// The finalize guard is the only component built for concurrent callers, since
// the save key, a termination signal and the process exit path may all fire it.
//
// # Failure Policy
//
// A failed page fetch surfaces as [*FetchError] and can be retried without losing
// tracks. A failed removal surfaces as [*CommitError]; every removal is attempted
// and the failures are reported together. Errors inside the finalize action are
// logged and never escape the guard.
package curation
