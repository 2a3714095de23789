// Package models defines the domain entities shared by the curation engine, the Spotify client and the persistence layer.
//
// Track data flows in one direction:
//   - [Page] : one page of a remote playlist as returned by a service
//   - [Batch] : the ordered tracks of one page, the unit the curation engine traverses
//   - [Track] : a single playlist entry with its [Artwork] reference
//
// Curation results are recorded as:
//   - [Removal] : a track slated for deletion, with the [Reason] it was dropped
//   - [Run] : the summary of one curation session, persisted for history
//
// [Session] is the authenticated credential bundle produced by the session resolver.
package models
