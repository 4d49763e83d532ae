// Package session implements the Session Registry component.
//
// The registry is a process-wide bidirectional map between usernames and
// live connection handles:
//   - at most one handle per username (a re-register replaces the mapping)
//   - at most one username per handle
//   - every operation is atomic with respect to the paired maps
//   - iteration works on point-in-time snapshots, never the live maps
package session
