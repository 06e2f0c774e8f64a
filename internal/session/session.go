// Copyright (c) 2026 OpenG7. All rights reserved.

/*
Package session implements per-user versioned session state.

# Session Binding

Every access token minted after login carries a `(sid, sv)` pair. A token is
accepted only while the session id still names an un-revoked session AND the
version matches the user's current session version. Bumping the version
("rotate") therefore invalidates every outstanding token at once, without
waiting for JWT expiry.

# State Model

Each user owns a single [Record]: a monotonic version counter plus a bounded
history of [Session] entries sorted by most-recent activity. The record is
persisted as one JSON document behind the [Persistence] interface, so the
backing store can be Redis in production and in-memory in tests without
touching the state machine.
*/
package session

import (
	"sort"
	"time"
)

// DefaultVersion is the version a user's record starts at before any
// session has ever been created. Token session versions start here too,
// which is what makes the legacy-token carve-out checkable.
const DefaultVersion int64 = 1

// # Enumerations

// RevokeReason explains why a session stopped being usable.
type RevokeReason string

const (
	RevokeLogout       RevokeReason = "logout"
	RevokeLogoutOthers RevokeReason = "logout-others"
	RevokeSecurity     RevokeReason = "security"
	RevokeIdleTimeout  RevokeReason = "idle-timeout"
)

// RejectReason explains why validation denied a request.
type RejectReason string

const (
	RejectMissingClaims  RejectReason = "missing-claims"
	RejectStaleVersion   RejectReason = "stale-version"
	RejectSessionRevoked RejectReason = "session-revoked"
	RejectIdleTimeout    RejectReason = "idle-timeout"
)

// # Entities

// Session is one issued login session.
type Session struct {
	ID            string       `json:"id"`
	Version       int64        `json:"version"`
	CreatedAt     time.Time    `json:"createdAt"`
	LastSeenAt    time.Time    `json:"lastSeenAt"`
	RevokedAt     *time.Time   `json:"revokedAt,omitempty"`
	RevokedReason RevokeReason `json:"revokedReason,omitempty"`
	UserAgent     string       `json:"userAgent,omitempty"`
	IPAddress     string       `json:"ipAddress,omitempty"`
}

// Active reports whether the session has not been revoked.
func (s *Session) Active() bool {
	return s.RevokedAt == nil
}

// Record is the complete per-user session state.
type Record struct {
	Version  int64     `json:"version"`
	Sessions []Session `json:"sessions"`
}

// NewRecord returns the pristine state for a user with no session history.
func NewRecord() *Record {
	return &Record{Version: DefaultVersion}
}

// Untouched reports whether the record has never been modified. This is the
// narrow carve-out under which legacy tokens (no session binding) are still
// accepted; it must not be widened or rotation stops being a guarantee.
func (r *Record) Untouched() bool {
	return r.Version == DefaultVersion && len(r.Sessions) == 0
}

// Find returns the session with the given id, or nil.
func (r *Record) Find(id string) *Session {
	for i := range r.Sessions {
		if r.Sessions[i].ID == id {
			return &r.Sessions[i]
		}
	}
	return nil
}

// ActiveCount returns the number of un-revoked sessions.
func (r *Record) ActiveCount() int {
	count := 0
	for i := range r.Sessions {
		if r.Sessions[i].Active() {
			count++
		}
	}
	return count
}

// sortByActivity orders sessions by most recent activity first with id as a
// stable tie-break.
func (r *Record) sortByActivity() {
	sort.SliceStable(r.Sessions, func(i, j int) bool {
		if r.Sessions[i].LastSeenAt.Equal(r.Sessions[j].LastSeenAt) {
			return r.Sessions[i].ID > r.Sessions[j].ID
		}
		return r.Sessions[i].LastSeenAt.After(r.Sessions[j].LastSeenAt)
	})
}

// trim drops the least-recently-seen sessions beyond the history cap.
func (r *Record) trim(limit int) {
	r.sortByActivity()
	if len(r.Sessions) > limit {
		r.Sessions = r.Sessions[:limit]
	}
}

// # Request Inputs & Outputs

// RequestMeta is the client fingerprint captured alongside session activity.
type RequestMeta struct {
	UserAgent string
	IPAddress string
}

// Claims is the session binding extracted from an access token. A legacy
// token carries neither field.
type Claims struct {
	SessionID string
	Version   int64
}

// Bound reports whether the claims carry a usable (sid, sv) pair.
func (c Claims) Bound() bool {
	return c.SessionID != "" && c.Version > 0
}

// Verdict is the outcome of validating a request's session binding.
type Verdict struct {
	Valid  bool
	Reason RejectReason
}

// View is the client-facing rendering of one session in a snapshot.
type View struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Current       bool         `json:"current"`
	CreatedAt     time.Time    `json:"createdAt"`
	LastSeenAt    time.Time    `json:"lastSeenAt"`
	RevokedReason RevokeReason `json:"revokedReason,omitempty"`
	UserAgent     string       `json:"userAgent,omitempty"`
	IPAddress     string       `json:"ipAddress,omitempty"`
}
