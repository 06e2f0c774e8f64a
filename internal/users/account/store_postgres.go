// Copyright (c) 2026 OpenG7. All rights reserved.

package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/apperr"
	"github.com/OpenG7/openg7-platform-sub001/internal/users/auth"
)

// # Profile Repository

// PostgresProfileRepository implements ProfileRepository using pgx.
type PostgresProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a PostgreSQL implementation of ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

/*
FindByUserID retrieves the profile row for a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *Profile: Hydrated profile, preferences decoded from JSONB
  - error: apperr.NotFound when no row exists
*/
func (repository *PostgresProfileRepository) FindByUserID(context context.Context, userID string) (*Profile, error) {
	const query = `
		SELECT userid, COALESCE(displayname, ''), COALESCE(organization, ''),
		       COALESCE(province, ''), COALESCE(language, ''),
		       COALESCE(notificationprefs, '{}'::jsonb), updatedat
		FROM users.profile
		WHERE userid = $1`

	profile := &Profile{}
	err := repository.pool.QueryRow(context, query, userID).Scan(
		&profile.UserID,
		&profile.DisplayName,
		&profile.Organization,
		&profile.Province,
		&profile.Language,
		&profile.NotificationPrefs,
		&profile.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Profile")
		}
		return nil, fmt.Errorf("postgres_profile_repo_find_failed: %w", err)
	}

	if profile.NotificationPrefs == nil {
		profile.NotificationPrefs = map[string]any{}
	}

	return profile, nil
}

/*
Upsert creates or replaces the user's profile row.

Parameters:
  - context: context.Context
  - profile: *Profile

Returns:
  - error: Persistence failures
*/
func (repository *PostgresProfileRepository) Upsert(context context.Context, profile *Profile) error {
	const query = `
		INSERT INTO users.profile (userid, displayname, organization, province, language, notificationprefs, updatedat)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (userid) DO UPDATE
		SET displayname = EXCLUDED.displayname,
		    organization = EXCLUDED.organization,
		    province = EXCLUDED.province,
		    language = EXCLUDED.language,
		    notificationprefs = EXCLUDED.notificationprefs,
		    updatedat = EXCLUDED.updatedat`

	profile.UpdatedAt = time.Now()
	_, err := repository.pool.Exec(context, query,
		profile.UserID,
		profile.DisplayName,
		profile.Organization,
		profile.Province,
		profile.Language,
		profile.NotificationPrefs,
		profile.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_profile_repo_upsert_failed: %w", err)
	}

	return nil
}

// # Account Repository

// PostgresAccountRepository implements AccountRepository using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a PostgreSQL implementation of AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

/*
FindByID retrieves the account with the given ID.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *auth.User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*auth.User, error) {
	const query = `
		SELECT id, username, email, passwordhash, COALESCE(displayname, ''), role, isverified,
		       COALESCE(pendingemail, ''), createdat, updatedat
		FROM users.account
		WHERE id = $1 AND deletedat IS NULL`

	user := &auth.User{}
	err := repository.pool.QueryRow(context, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Role,
		&user.IsVerified,
		&user.PendingEmail,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_failed: %w", err)
	}

	return user, nil
}

/*
EmailInUse reports whether an email already belongs to a live account.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - bool: True when taken
  - error: Database errors
*/
func (repository *PostgresAccountRepository) EmailInUse(context context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users.account WHERE email = $1 AND deletedat IS NULL)`

	var taken bool
	if err := repository.pool.QueryRow(context, query, email).Scan(&taken); err != nil {
		return false, fmt.Errorf("postgres_account_repo_email_in_use_failed: %w", err)
	}

	return taken, nil
}

/*
SetPendingEmail records the address awaiting confirmation.

Parameters:
  - context: context.Context
  - userID: string
  - email: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresAccountRepository) SetPendingEmail(context context.Context, userID, email string) error {
	const query = `
		UPDATE users.account
		SET pendingemail = $2, updatedat = $3
		WHERE id = $1 AND deletedat IS NULL`

	_, err := repository.pool.Exec(context, query, userID, email, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_set_pending_email_failed: %w", err)
	}

	return nil
}

/*
ConfirmEmail promotes pendingemail to the live address and re-verifies the
account.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: apperr.NotFound when no pending email exists
*/
func (repository *PostgresAccountRepository) ConfirmEmail(context context.Context, userID string) error {
	const query = `
		UPDATE users.account
		SET email = pendingemail, pendingemail = NULL, isverified = TRUE, updatedat = $2
		WHERE id = $1 AND pendingemail IS NOT NULL AND deletedat IS NULL`

	tag, err := repository.pool.Exec(context, query, userID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_confirm_email_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Pending email")
	}

	return nil
}
