// Package progress tracks and displays transfer progress.
//
// A [Snapshot] is an immutable view of bytes received against bytes expected.
// The transfer engine emits snapshots through a [Func]; nothing here is ever
// persisted.
//
// # Reporter
//
// [Reporter] renders snapshots for a terminal:
//
//	r := progress.NewReporter(progress.Options{Title: meta.Title})
//	r.Start()
//	defer r.Stop()
//	engine.Transfer(ctx, meta, r.Update)
//
// Output is refreshed on a fixed interval rather than on every snapshot.
package progress
