// Copyright (c) 2026 OpenG7. All rights reserved.

package session

import "context"

// # Session Persistence

// Persistence defines the key-value contract for per-user session records.
//
// Implementations must return a pristine [NewRecord] (not an error) when the
// user has no stored state yet, so the state machine can apply the legacy
// carve-out without special-casing "missing" versus "empty".
type Persistence interface {

	/*
		Get loads the user's session record.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - *Record: Stored state, or a pristine record when none exists
		  - error: Store connectivity or decoding failures
	*/
	Get(context context.Context, userID string) (*Record, error)

	/*
		Set persists the user's session record, replacing any previous state.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - record: *Record

		Returns:
		  - error: Store connectivity or encoding failures
	*/
	Set(context context.Context, userID string, record *Record) error
}
