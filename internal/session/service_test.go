// Copyright (c) 2026 OpenG7. All rights reserved.

package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/constants"
)

// countingStore wraps MemoryStore to observe write amplification.
type countingStore struct {
	*MemoryStore
	writes int
}

func (store *countingStore) Set(ctx context.Context, userID string, record *Record) error {
	store.writes++
	return store.MemoryStore.Set(ctx, userID, record)
}

// clock is a controllable time source for driving throttle and expiry.
type clock struct {
	current time.Time
}

func (c *clock) now() time.Time {
	return c.current
}

func (c *clock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestService(idleTimeout time.Duration) (*Service, *countingStore, *clock) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	testClock := &clock{current: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}

	service := NewService(store, idleTimeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
	service.now = testClock.now

	return service, store, testClock
}

func claimsFor(s *Session) Claims {
	return Claims{SessionID: s.ID, Version: s.Version}
}

/*
TestValidate_LegacyCarveOut verifies that tokens without session binding are
accepted only while the user's record has never been touched.
*/
func TestValidate_LegacyCarveOut(t *testing.T) {
	service, _, _ := newTestService(0)
	ctx := context.Background()

	// 1. Pristine record: legacy token accepted
	verdict, err := service.Validate(ctx, "user-1", Claims{}, RequestMeta{})
	require.NoError(t, err)
	assert.True(t, verdict.Valid)

	// 2. Any session activity closes the carve-out
	_, err = service.Create(ctx, "user-1", RequestMeta{})
	require.NoError(t, err)

	verdict, err = service.Validate(ctx, "user-1", Claims{}, RequestMeta{})
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, RejectMissingClaims, verdict.Reason)
}

/*
TestValidate_StaleVersion verifies that a token minted at an older version is
rejected even when its session id matches an un-revoked historical session.
*/
func TestValidate_StaleVersion(t *testing.T) {
	service, _, _ := newTestService(0)
	ctx := context.Background()

	created, err := service.Create(ctx, "user-1", RequestMeta{})
	require.NoError(t, err)
	staleClaims := claimsFor(created)

	_, _, err = service.Rotate(ctx, "user-1", RequestMeta{})
	require.NoError(t, err)

	verdict, err := service.Validate(ctx, "user-1", staleClaims, RequestMeta{})
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, RejectStaleVersion, verdict.Reason)
}

/*
TestValidate_UnknownSession verifies rejection when the session id is not in
the record.
*/
func TestValidate_UnknownSession(t *testing.T) {
	service, _, _ := newTestService(0)
	ctx := context.Background()

	created, err := service.Create(ctx, "user-1", RequestMeta{})
	require.NoError(t, err)

	verdict, err := service.Validate(ctx, "user-1", Claims{SessionID: "forged", Version: created.Version}, RequestMeta{})
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, RejectSessionRevoked, verdict.Reason)
}

/*
TestValidate_IdleTimeout verifies that an untouched session expires exactly
once with reason idle-timeout, is persisted as revoked, and reports
session-revoked on subsequent validations.
*/
func TestValidate_IdleTimeout(t *testing.T) {
	idleTimeout := 30 * time.Minute
	service, store, testClock := newTestService(idleTimeout)
	ctx := context.Background()

	created, err := service.Create(ctx, "user-1", RequestMeta{})
	require.NoError(t, err)

	// 1. Just inside the window: still valid
	testClock.advance(idleTimeout - time.Second)
	verdict, err := service.Validate(ctx, "user-1", claimsFor(created), RequestMeta{})
	require.NoError(t, err)
	assert.True(t, verdict.Valid)

	// 2. Past the window (measured from the touched lastSeenAt): expires once
	testClock.advance(idleTimeout)
	verdict, err = service.Validate(ctx, "user-1", claimsFor(created), RequestMeta{})
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, RejectIdleTimeout, verdict.Reason)

	// 3. The revocation was persisted with the idle-timeout reason
	record, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	stored := record.Find(created.ID)
	require.NotNil(t, stored)
	assert.False(t, stored.Active())
	assert.Equal(t, RevokeIdleTimeout, stored.RevokedReason)

	// 4. A second validate on the same session is a plain revocation
	verdict, err = service.Validate(ctx, "user-1", claimsFor(created), RequestMeta{})
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, RejectSessionRevoked, verdict.Reason)
}

/*
TestValidate_IdleTimeoutDisabled verifies that a zero timeout never expires
sessions.
*/
func TestValidate_IdleTimeoutDisabled(t *testing.T) {
	service, _, testClock := newTestService(0)
	ctx := context.Background()

	created, err := service.Create(ctx, "user-1", RequestMeta{})
	require.NoError(t, err)

	testClock.advance(100 * 24 * time.Hour)

	verdict, err := service.Validate(ctx, "user-1", claimsFor(created), RequestMeta{})
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
}

/*
TestValidate_TouchThrottle verifies that lastSeenAt writes are throttled to
once per touch interval.
*/
func TestValidate_TouchThrottle(t *testing.T) {
	service, store, testClock := newTestService(0)
	ctx := context.Background()

	created, err := service.Create(ctx, "user-1", RequestMeta{})
	require.NoError(t, err)
	writesAfterCreate := store.writes

	// 1. Rapid validations inside the interval persist nothing
	for range 5 {
		testClock.advance(time.Second)
		verdict, err := service.Validate(ctx, "user-1", claimsFor(created), RequestMeta{})
		require.NoError(t, err)
		require.True(t, verdict.Valid)
	}
	assert.Equal(t, writesAfterCreate, store.writes)

	// 2. Crossing the interval persists exactly one touch
	testClock.advance(constants.SessionTouchInterval)
	verdict, err := service.Validate(ctx, "user-1", claimsFor(created), RequestMeta{UserAgent: "cli/1.0", IPAddress: "203.0.113.9"})
	require.NoError(t, err)
	require.True(t, verdict.Valid)
	assert.Equal(t, writesAfterCreate+1, store.writes)

	record, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	stored := record.Find(created.ID)
	require.NotNil(t, stored)
	assert.True(t, stored.LastSeenAt.After(created.LastSeenAt))
	assert.Equal(t, "cli/1.0", stored.UserAgent)
	assert.Equal(t, "203.0.113.9", stored.IPAddress)
}

/*
TestRotate verifies that rotation revokes every active session, bumps the
version, and leaves exactly one fresh session usable.
*/
func TestRotate(t *testing.T) {
	service, store, _ := newTestService(0)
	ctx := context.Background()

	for range 3 {
		_, err := service.Create(ctx, "user-1", RequestMeta{})
		require.NoError(t, err)
	}

	fresh, revokedCount, err := service.Rotate(ctx, "user-1", RequestMeta{UserAgent: "browser"})
	require.NoError(t, err)
	assert.Equal(t, 3, revokedCount)
	assert.Equal(t, DefaultVersion+1, fresh.Version)

	record, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion+1, record.Version)
	assert.Equal(t, 1, record.ActiveCount())

	// The fresh session validates; a second rotate revokes only it
	verdict, err := service.Validate(ctx, "user-1", claimsFor(fresh), RequestMeta{})
	require.NoError(t, err)
	assert.True(t, verdict.Valid)

	_, revokedCount, err = service.Rotate(ctx, "user-1", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, revokedCount)
}

/*
TestCreate_HistoryCap verifies least-recently-seen eviction past the cap.
*/
func TestCreate_HistoryCap(t *testing.T) {
	service, store, testClock := newTestService(0)
	ctx := context.Background()

	var oldest *Session
	for i := 0; i < constants.SessionHistoryCap+2; i++ {
		created, err := service.Create(ctx, "user-1", RequestMeta{})
		require.NoError(t, err)
		if i == 0 {
			oldest = created
		}
		testClock.advance(time.Minute)
	}

	record, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, record.Sessions, constants.SessionHistoryCap)
	assert.Nil(t, record.Find(oldest.ID))
}

/*
TestSnapshot verifies ordering, status rendering, and the current flag.
*/
func TestSnapshot(t *testing.T) {
	service, _, testClock := newTestService(0)
	ctx := context.Background()

	first, err := service.Create(ctx, "user-1", RequestMeta{UserAgent: "old-device"})
	require.NoError(t, err)
	testClock.advance(time.Hour)

	current, err := service.Create(ctx, "user-1", RequestMeta{UserAgent: "new-device"})
	require.NoError(t, err)

	views, err := service.Snapshot(ctx, "user-1", claimsFor(current))
	require.NoError(t, err)
	require.Len(t, views, 2)

	// Most recent first
	assert.Equal(t, current.ID, views[0].ID)
	assert.True(t, views[0].Current)
	assert.Equal(t, "active", views[0].Status)

	assert.Equal(t, first.ID, views[1].ID)
	assert.False(t, views[1].Current)
}
