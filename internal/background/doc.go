// Package background hands long transfers to a facility that runs outside
// the share action and records their outcome in a durable store.
//
// A Coordinator creates a Record per transfer, schedules it with a
// Facility and, when the transfer ends, moves the file into the shared
// directory and notifies the user. Completions arrive either pushed by the
// facility while the process is alive or through Reconcile after a
// relaunch.
//
// Records only move forward: a record is created Scheduled and finished at
// most once, as Completed or Failed. Both stores enforce this per record,
// so processes sharing a store never lose each other's updates.
package background
