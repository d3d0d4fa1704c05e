// Package backend provides the simulated systems the tool layer operates
// against: a CRM, a document store, an account system and a notification
// sink. All four are deterministic in-memory state machines seeded from
// fixtures; they perform no I/O. Backends are process-wide and shared by
// concurrent workflows, so each serializes its own operations with a mutex.
package backend
