// Package ui implements the interactive curation screen using bubbletea's Elm architecture.
//
// The [Model] moves through three views:
//  1. curating : one track at a time with cover art, keep (→) or drop (←)
//  2. saving : live finalization progress while removals are committed
//  3. done : the outcome summary, shown until the program is terminated
//
// Decisions run as commands so a page fetch never freezes rendering; while one is in flight
// further decisions are ignored, so the [Curator] only ever sees one input at a time.
// Cover art loads in its own command and is dropped if the cursor has moved on.
//
// The model never ends the program itself. Saving triggers the finalize action, which
// cancels the program context once it has committed.
package ui
