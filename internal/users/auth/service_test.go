// Copyright (c) 2026 OpenG7. All rights reserved.

package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/apperr"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/sec"
	"github.com/OpenG7/openg7-platform-sub001/internal/session"
)

// # Test Doubles

type memoryUsers struct {
	mu   sync.Mutex
	byID map[string]*User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]*User{}}
}

func (store *memoryUsers) Create(_ context.Context, user *User) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	copied := *user
	store.byID[user.ID] = &copied
	return nil
}

func (store *memoryUsers) FindByID(_ context.Context, id string) (*User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if user, ok := store.byID[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, apperr.NotFound("User")
}

func (store *memoryUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, user := range store.byID {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (store *memoryUsers) FindByUsername(_ context.Context, username string) (*User, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, user := range store.byID {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (store *memoryUsers) UpdatePassword(_ context.Context, userID, newHash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if user, ok := store.byID[userID]; ok {
		user.PasswordHash = newHash
	}
	return nil
}

func (store *memoryUsers) MarkVerified(_ context.Context, userID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if user, ok := store.byID[userID]; ok {
		user.IsVerified = true
	}
	return nil
}

func (store *memoryUsers) SoftDelete(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.byID, id)
	return nil
}

type memoryRefresh struct {
	mu     sync.Mutex
	grants map[string]RefreshGrant
}

func newMemoryRefresh() *memoryRefresh {
	return &memoryRefresh{grants: map[string]RefreshGrant{}}
}

func (store *memoryRefresh) Set(_ context.Context, hash string, grant RefreshGrant, _ time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.grants[hash] = grant
	return nil
}

func (store *memoryRefresh) Get(_ context.Context, hash string) (*RefreshGrant, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if grant, ok := store.grants[hash]; ok {
		return &grant, nil
	}
	return nil, apperr.NotFound("Refresh token")
}

func (store *memoryRefresh) Delete(_ context.Context, hash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.grants, hash)
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

// stubTokens mints inspectable fake JWTs.
type stubTokens struct{}

func (stubTokens) GenerateAccessToken(userID, _, _, sessionID string, sessionVersion int64, _ time.Duration) (string, error) {
	return fmt.Sprintf("jwt.%s.%s.%d", userID, sessionID, sessionVersion), nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

// # Fixture

type fixture struct {
	service  *Service
	users    *memoryUsers
	sessions *session.Service
	mail     *recordingMailer
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := newMemoryUsers()
	sessions := session.NewService(session.NewMemoryStore(), time.Hour, logger)
	mail := &recordingMailer{}

	service := NewService(
		users, sessions, newMemoryRefresh(), newMemoryTokens(), newMemoryTokens(),
		stubTokens{}, mail, logger,
	)

	return &fixture{service: service, users: users, sessions: sessions, mail: mail}
}

func (fx *fixture) register(t *testing.T, username, email, password string) *Credentials {
	t.Helper()
	credentials, err := fx.service.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	}, session.RequestMeta{})
	require.NoError(t, err)
	return credentials
}

// sessionBinding decomposes a stub access token ("jwt.<uid>.<sid>.<sv>")
// into the session claims it embeds.
func sessionBinding(t *testing.T, accessToken string) (string, session.Claims) {
	t.Helper()
	parts := strings.Split(accessToken, ".")
	require.Len(t, parts, 4)
	version, err := strconv.ParseInt(parts[3], 10, 64)
	require.NoError(t, err)
	return parts[1], session.Claims{SessionID: parts[2], Version: version}
}

// requireLiveBinding asserts the access token is bound to a session the
// session service still accepts.
func requireLiveBinding(t *testing.T, sessions *session.Service, accessToken string) {
	t.Helper()
	userID, claims := sessionBinding(t, accessToken)
	verdict, err := sessions.Validate(context.Background(), userID, claims, session.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, verdict.Valid, "reason: %s", verdict.Reason)
}

// mailToken extracts the token appended after the blank line in outbound
// token emails.
func mailToken(t *testing.T, mail sentMail) string {
	t.Helper()
	index := strings.LastIndex(mail.body, "\n\n")
	require.NotEqual(t, -1, index)
	return strings.TrimSpace(mail.body[index+2:])
}

// # Registration

func TestRegister(t *testing.T) {
	fx := newFixture()

	credentials := fx.register(t, "alice", "alice@example.com", "correct horse battery")
	user := credentials.User

	assert.Equal(t, sec.RoleMember, user.Role)
	assert.False(t, user.IsVerified)
	assert.NotEqual(t, "correct horse battery", user.PasswordHash)
	assert.True(t, sec.CheckPasswordHash("correct horse battery", user.PasswordHash))

	// Registration signs the account in: the token pair is bound to a live
	// session of the new user.
	require.NotEmpty(t, credentials.RefreshToken)
	tokenUserID, claims := sessionBinding(t, credentials.AccessToken)
	assert.Equal(t, user.ID, tokenUserID)
	assert.NotEmpty(t, claims.SessionID)
	requireLiveBinding(t, fx.sessions, credentials.AccessToken)

	views, err := fx.sessions.Snapshot(context.Background(), user.ID, session.Claims{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, claims.SessionID, views[0].ID)

	// Verification email went out with a usable token.
	require.Equal(t, 1, fx.mail.count())
	assert.Equal(t, "alice@example.com", fx.mail.last().to)

	token := mailToken(t, fx.mail.last())
	verifiedCredentials, err := fx.service.VerifyEmail(context.Background(), token, session.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, verifiedCredentials.User.IsVerified)
	requireLiveBinding(t, fx.sessions, verifiedCredentials.AccessToken)

	verified, err := fx.users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	// Token is single use.
	_, err = fx.service.VerifyEmail(context.Background(), token, session.RequestMeta{})
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestRegister_Conflicts(t *testing.T) {
	fx := newFixture()
	fx.register(t, "alice", "alice@example.com", "correct horse battery")

	_, err := fx.service.Register(context.Background(), RegisterInput{
		Username: "alice2", Email: "alice@example.com", Password: "something else",
	}, session.RequestMeta{})
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "Email is already registered", appErr.Message)

	_, err = fx.service.Register(context.Background(), RegisterInput{
		Username: "alice", Email: "other@example.com", Password: "something else",
	}, session.RequestMeta{})
	appErr = apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "Username is already taken", appErr.Message)
}

// # Login

func TestLogin(t *testing.T) {
	fx := newFixture()
	user := fx.register(t, "alice", "alice@example.com", "correct horse battery").User

	byEmail, err := fx.service.Login(context.Background(),
		LoginInput{Identifier: "alice@example.com", Password: "correct horse battery"},
		session.RequestMeta{UserAgent: "test", IPAddress: "203.0.113.9"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.User.ID)
	assert.NotEmpty(t, byEmail.RefreshToken)
	assert.True(t, strings.HasPrefix(byEmail.AccessToken, "jwt."+user.ID+"."))

	byUsername, err := fx.service.Login(context.Background(),
		LoginInput{Identifier: "alice", Password: "correct horse battery"},
		session.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, user.ID, byUsername.User.ID)

	// Each login is its own session.
	assert.NotEqual(t, byEmail.AccessToken, byUsername.AccessToken)
}

func TestLogin_GenericFailure(t *testing.T) {
	fx := newFixture()
	fx.register(t, "alice", "alice@example.com", "correct horse battery")

	// Wrong password and unknown identifier must be indistinguishable.
	_, wrongPassword := fx.service.Login(context.Background(),
		LoginInput{Identifier: "alice", Password: "nope"}, session.RequestMeta{})
	_, unknownUser := fx.service.Login(context.Background(),
		LoginInput{Identifier: "mallory", Password: "nope"}, session.RequestMeta{})

	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.Equal(t, "Invalid login credentials", wrongPassword.Error())
}

// # Refresh

func TestRefreshSession_RotatesToken(t *testing.T) {
	fx := newFixture()
	fx.register(t, "alice", "alice@example.com", "correct horse battery")

	login, err := fx.service.Login(context.Background(),
		LoginInput{Identifier: "alice", Password: "correct horse battery"}, session.RequestMeta{})
	require.NoError(t, err)

	refreshed, err := fx.service.RefreshSession(context.Background(), login.RefreshToken, session.RequestMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, login.AccessToken, refreshed.AccessToken) // same session, same version

	// The consumed token cannot be replayed.
	_, err = fx.service.RefreshSession(context.Background(), login.RefreshToken, session.RequestMeta{})
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "Invalid or expired refresh token", appErr.Message)
}

func TestRefreshSession_Missing(t *testing.T) {
	fx := newFixture()

	_, err := fx.service.RefreshSession(context.Background(), "", session.RequestMeta{})
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "Missing refresh token", appErr.Message)
}

// # Logout

func TestLogout(t *testing.T) {
	fx := newFixture()
	user := fx.register(t, "alice", "alice@example.com", "correct horse battery").User

	login, err := fx.service.Login(context.Background(),
		LoginInput{Identifier: "alice", Password: "correct horse battery"}, session.RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, fx.service.Logout(context.Background(), login.RefreshToken))

	// The session is gone on both halves.
	_, err = fx.service.RefreshSession(context.Background(), login.RefreshToken, session.RequestMeta{})
	require.Error(t, err)

	// Only the presented session dies; the registration session stays live.
	_, loginClaims := sessionBinding(t, login.AccessToken)
	views, err := fx.sessions.Snapshot(context.Background(), user.ID, session.Claims{})
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, view := range views {
		if view.ID == loginClaims.SessionID {
			assert.Equal(t, "revoked", view.Status)
		} else {
			assert.Equal(t, "active", view.Status)
		}
	}

	// Replaying the logout is harmless.
	require.NoError(t, fx.service.Logout(context.Background(), login.RefreshToken))
	require.NoError(t, fx.service.Logout(context.Background(), ""))
}

// # Password Lifecycle

func TestResetPassword_Flow(t *testing.T) {
	fx := newFixture()
	fx.register(t, "alice", "alice@example.com", "correct horse battery")

	login, err := fx.service.Login(context.Background(),
		LoginInput{Identifier: "alice", Password: "correct horse battery"}, session.RequestMeta{})
	require.NoError(t, err)

	// Unknown addresses are swallowed without a mail.
	before := fx.mail.count()
	require.NoError(t, fx.service.RequestPasswordReset(context.Background(), "nobody@example.com"))
	assert.Equal(t, before, fx.mail.count())

	require.NoError(t, fx.service.RequestPasswordReset(context.Background(), "alice@example.com"))
	token := mailToken(t, fx.mail.last())

	reset, err := fx.service.ResetPassword(context.Background(), token, "brand new password", session.RequestMeta{})
	require.NoError(t, err)

	// Old credentials and old sessions are both dead.
	_, err = fx.service.Login(context.Background(),
		LoginInput{Identifier: "alice", Password: "correct horse battery"}, session.RequestMeta{})
	require.Error(t, err)

	_, err = fx.service.RefreshSession(context.Background(), login.RefreshToken, session.RequestMeta{})
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "Session is no longer active", appErr.Message)

	// The reset response carries the only surviving pair, bound to the
	// bumped record version.
	_, oldClaims := sessionBinding(t, login.AccessToken)
	_, newClaims := sessionBinding(t, reset.AccessToken)
	assert.Greater(t, newClaims.Version, oldClaims.Version)
	requireLiveBinding(t, fx.sessions, reset.AccessToken)

	_, err = fx.service.RefreshSession(context.Background(), reset.RefreshToken, session.RequestMeta{})
	require.NoError(t, err)

	_, err = fx.service.Login(context.Background(),
		LoginInput{Identifier: "alice", Password: "brand new password"}, session.RequestMeta{})
	require.NoError(t, err)

	// The reset token was consumed.
	_, err = fx.service.ResetPassword(context.Background(), token, "again", session.RequestMeta{})
	appErr = apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "Invalid or expired reset token", appErr.Message)
}

func TestChangePassword(t *testing.T) {
	fx := newFixture()
	user := fx.register(t, "alice", "alice@example.com", "correct horse battery").User

	first, err := fx.service.Login(context.Background(),
		LoginInput{Identifier: "alice", Password: "correct horse battery"}, session.RequestMeta{})
	require.NoError(t, err)

	_, err = fx.service.ChangePassword(context.Background(),
		user.ID, "wrong", "brand new password", session.RequestMeta{})
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "Current password is incorrect", appErr.Message)

	fresh, err := fx.service.ChangePassword(context.Background(),
		user.ID, "correct horse battery", "brand new password", session.RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.AccessToken)

	// The rotation killed the pre-change session.
	_, err = fx.service.RefreshSession(context.Background(), first.RefreshToken, session.RequestMeta{})
	require.Error(t, err)

	// The fresh pair keeps working.
	_, err = fx.service.RefreshSession(context.Background(), fresh.RefreshToken, session.RequestMeta{})
	require.NoError(t, err)
}
