// Copyright (c) 2026 OpenG7. All rights reserved.

package account

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/apperr"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/sec"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/webhookurl"
	"github.com/OpenG7/openg7-platform-sub001/internal/users/auth"
)

// # Test Doubles

type memoryProfiles struct {
	mu       sync.Mutex
	byUserID map[string]*Profile
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{byUserID: map[string]*Profile{}}
}

func (store *memoryProfiles) FindByUserID(_ context.Context, userID string) (*Profile, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if profile, ok := store.byUserID[userID]; ok {
		copied := *profile
		return &copied, nil
	}
	return nil, apperr.NotFound("Profile")
}

func (store *memoryProfiles) Upsert(_ context.Context, profile *Profile) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	profile.UpdatedAt = time.Now()
	copied := *profile
	store.byUserID[profile.UserID] = &copied
	return nil
}

type memoryAccounts struct {
	mu   sync.Mutex
	byID map[string]*auth.User
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{byID: map[string]*auth.User{}}
}

func (store *memoryAccounts) add(user *auth.User) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.byID[user.ID] = user
}

func (store *memoryAccounts) FindByID(_ context.Context, id string) (*auth.User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if user, ok := store.byID[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, apperr.NotFound("User")
}

func (store *memoryAccounts) EmailInUse(_ context.Context, email string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, user := range store.byID {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (store *memoryAccounts) SetPendingEmail(_ context.Context, userID, email string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if user, ok := store.byID[userID]; ok {
		user.PendingEmail = email
	}
	return nil
}

func (store *memoryAccounts) ConfirmEmail(_ context.Context, userID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	user, ok := store.byID[userID]
	if !ok || user.PendingEmail == "" {
		return apperr.NotFound("Pending email")
	}
	user.Email = user.PendingEmail
	user.PendingEmail = ""
	user.IsVerified = true
	return nil
}

type memoryTokens struct {
	mu     sync.Mutex
	owners map[string]string
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{owners: map[string]string{}}
}

func (store *memoryTokens) Set(_ context.Context, hash, userID string, _ time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.owners[hash] = userID
	return nil
}

func (store *memoryTokens) Get(_ context.Context, hash string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if userID, ok := store.owners[hash]; ok {
		return userID, nil
	}
	return "", apperr.NotFound("Token")
}

func (store *memoryTokens) Delete(_ context.Context, hash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.owners, hash)
	return nil
}

type sentMail struct {
	to   string
	body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, body: body})
	return nil
}

// # Fixture

type fixture struct {
	service  *Service
	accounts *memoryAccounts
	profiles *memoryProfiles
	mail     *recordingMailer
}

func newFixture(policy webhookurl.Policy) *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts := newMemoryAccounts()
	profiles := newMemoryProfiles()
	mail := &recordingMailer{}

	service := NewService(accounts, profiles, newMemoryTokens(), mail, policy, logger)
	return &fixture{service: service, accounts: accounts, profiles: profiles, mail: mail}
}

func (fx *fixture) seedUser(t *testing.T, id, email, password string) *auth.User {
	t.Helper()
	hash, err := sec.HashPassword(password)
	require.NoError(t, err)
	user := &auth.User{ID: id, Username: "u-" + id, Email: email, PasswordHash: hash, Role: sec.RoleMember}
	fx.accounts.add(user)
	return user
}

// # Profile

func TestGetProfile_DefaultWhenMissing(t *testing.T) {
	fx := newFixture(webhookurl.Policy{})

	profile, err := fx.service.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", profile.UserID)
	assert.NotNil(t, profile.NotificationPrefs)
	assert.Empty(t, profile.NotificationPrefs)
}

func TestUpdateProfile_RoundTrip(t *testing.T) {
	fx := newFixture(webhookurl.Policy{AllowPrivateNetworks: true, AllowLocalhost: true})

	prefs := map[string]any{
		"emailOptIn": true,
		"webhookUrl": "https://hooks.example.com/openg7",
		"frequency":  "daily-digest",
		"quietHours": map[string]any{
			"enabled": true, "start": "22:00", "end": "06:00", "timezone": "America/Toronto",
		},
		"customKey": "survives untouched",
	}

	saved, err := fx.service.UpdateProfile(context.Background(), "user-1", UpdateProfileInput{
		DisplayName:       "Prairie Grain Co-op",
		Province:          "SK",
		Language:          "en",
		NotificationPrefs: prefs,
	})
	require.NoError(t, err)
	assert.Equal(t, "survives untouched", saved.NotificationPrefs["customKey"])

	loaded, err := fx.service.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Prairie Grain Co-op", loaded.DisplayName)
	assert.Equal(t, "daily-digest", loaded.NotificationPrefs["frequency"])
}

func TestUpdateProfile_RejectsBadPreferences(t *testing.T) {
	fx := newFixture(webhookurl.Policy{HTTPSOnly: true})

	cases := []struct {
		name  string
		prefs map[string]any
		field string
	}{
		{
			name:  "webhook blocked by policy",
			prefs: map[string]any{"webhookUrl": "http://hooks.example.com/x"},
			field: "notificationPrefs.webhookUrl",
		},
		{
			name:  "unknown frequency",
			prefs: map[string]any{"frequency": "hourly"},
			field: "notificationPrefs.frequency",
		},
		{
			name:  "malformed quiet hours start",
			prefs: map[string]any{"quietHours": map[string]any{"start": "25:99"}},
			field: "notificationPrefs.quietHours.start",
		},
		{
			name:  "fictional timezone",
			prefs: map[string]any{"quietHours": map[string]any{"timezone": "Mars/Olympus"}},
			field: "notificationPrefs.quietHours.timezone",
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := fx.service.UpdateProfile(context.Background(), "user-1", UpdateProfileInput{
				NotificationPrefs: testCase.prefs,
			})
			appErr := apperr.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
			require.NotEmpty(t, appErr.Details)
			assert.Equal(t, testCase.field, appErr.Details[0].Field)
		})
	}
}

// # Notification Directory

func TestNotificationDirectory(t *testing.T) {
	fx := newFixture(webhookurl.Policy{AllowPrivateNetworks: true, AllowLocalhost: true})
	fx.seedUser(t, "user-1", "alice@example.com", "correct horse battery")

	email, err := fx.service.EmailAddress(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	// Missing profile yields an empty, non-nil document.
	prefs, err := fx.service.NotificationPrefs(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotNil(t, prefs)
	assert.Empty(t, prefs)
}

// # Email Change

func TestEmailChange_Flow(t *testing.T) {
	fx := newFixture(webhookurl.Policy{})
	fx.seedUser(t, "user-1", "alice@example.com", "correct horse battery")
	fx.seedUser(t, "user-2", "bob@example.com", "another password")

	// Wrong password is rejected before anything is stored.
	err := fx.service.RequestEmailChange(context.Background(), "user-1", "wrong", "new@example.com")
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "Current password is incorrect", appErr.Message)

	// Taken addresses conflict.
	err = fx.service.RequestEmailChange(context.Background(), "user-1", "correct horse battery", "bob@example.com")
	appErr = apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)

	// Happy path: pending address stored, token mailed to the new address.
	require.NoError(t, fx.service.RequestEmailChange(
		context.Background(), "user-1", "correct horse battery", "new@example.com"))

	user, err := fx.accounts.FindByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "new@example.com", user.PendingEmail)

	require.Len(t, fx.mail.sent, 1)
	assert.Equal(t, "new@example.com", fx.mail.sent[0].to)

	index := strings.LastIndex(fx.mail.sent[0].body, "\n\n")
	require.NotEqual(t, -1, index)
	token := strings.TrimSpace(fx.mail.sent[0].body[index+2:])

	require.NoError(t, fx.service.ConfirmEmailChange(context.Background(), token))

	user, err = fx.accounts.FindByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Empty(t, user.PendingEmail)
	assert.True(t, user.IsVerified)

	// The token is single use.
	err = fx.service.ConfirmEmailChange(context.Background(), token)
	appErr = apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "UNAUTHORIZED", appErr.Code)
}
