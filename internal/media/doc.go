// Package media defines the resolved video metadata and the error taxonomy
// shared by the resolver, the transfer engine and the orchestrator.
//
// Errors are sentinels meant for errors.Is:
//
//	if errors.Is(err, media.ErrAuthRequired) {
//	    // offer login
//	}
//
// A structured backend reply is a *BackendError, which unwraps to the
// sentinel matching its status or machine code.
package media
