// Package state keeps the client's canonical view of the backend.
//
// The Synchronizer holds one configuration, one active profile and the last
// status snapshot. Local edits land there first and are then pushed through
// the REST client. Messages from the event channel replace their entity
// wholesale, with no merging.
//
// # Rules
//
//   - A configuration is pushed only when both devices are set
//   - Enabling processing without both devices is rejected before any push
//   - Profile values are clamped to their parameter ranges
//   - A status message changes only the status
//   - A failed push keeps the local edit and reports the error
//
// # Coalescing
//
// With Options.CoalesceWindow set, bursts of profile edits (slider drags)
// collapse into one push of the last edit once the window passes without a
// new edit. Flush sends it early.
package state
