// Package aria2 is a small JSON-RPC client for the aria2 download daemon.
//
// aria2 keeps running after yeet exits, which makes it a background transfer
// facility that survives process death. Downloads are addressed by GIDs
// derived from record ids with GIDFor.
package aria2
