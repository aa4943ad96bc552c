// Package orchestrator drives a single share action: resolve the page URL,
// decide between an immediate and a background transfer, and report the
// outcome.
//
// A Session moves through these states:
//
//	Idle -> ResolvingMetadata
//	ResolvingMetadata -> Transferring | AwaitingSizeDecision | LoginRequired | Failed
//	AwaitingSizeDecision -> Transferring (ChooseWait) | AwaitingNotifyHandoff (ChooseNotify)
//	AwaitingNotifyHandoff -> AwaitingNotifyHandoff{RecordID} | Failed
//	Transferring -> Transferring (progress) | Succeeded | Failed
//	LoginRequired -> ResolvingMetadata (SupplyCredentials)
//	Failed -> ResolvingMetadata (Retry)
//	ResolvingMetadata | AwaitingSizeDecision | Transferring -> Cancelled (Cancel)
//
// Project derives everything a front end displays from a State.
package orchestrator
