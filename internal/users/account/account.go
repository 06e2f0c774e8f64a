// Copyright (c) 2026 OpenG7. All rights reserved.

/*
Package account handles the user's profile and notification preferences, and
the email change flow.

# Architecture

  - Entities: Profile (users.profile row, preferences stored as raw JSONB).
  - Domain: Depends on the auth package for the User entity and the one-time
    token store backing email change confirmations.
  - Trust: Notification preferences are persisted exactly as submitted after
    a shape check; consumers re-resolve them defensively on every read.
*/
package account

import (
	"context"
	"time"

	"github.com/OpenG7/openg7-platform-sub001/internal/users/auth"
)

// # Domain Entities

// Profile is the public-facing account profile plus notification settings.
type Profile struct {
	UserID            string         `json:"userId"`
	DisplayName       string         `json:"displayName,omitempty"`
	Organization      string         `json:"organization,omitempty"`
	Province          string         `json:"province,omitempty"`
	Language          string         `json:"language,omitempty"`
	NotificationPrefs map[string]any `json:"notificationPrefs"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// # Data Access Contracts

// ProfileRepository persists users.profile rows.
type ProfileRepository interface {

	/*
		FindByUserID returns the profile for a user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - *Profile: Hydrated profile
		  - error: apperr.NotFound when the user never saved one
	*/
	FindByUserID(context context.Context, userID string) (*Profile, error)

	/*
		Upsert creates or replaces the user's profile row.

		Parameters:
		  - context: context.Context
		  - profile: *Profile

		Returns:
		  - error: Persistence failures
	*/
	Upsert(context context.Context, profile *Profile) error
}

// AccountRepository is the slice of users.account the profile surface needs.
type AccountRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *auth.User: Hydrated account
		  - error: apperr.NotFound or database errors
	*/
	FindByID(context context.Context, id string) (*auth.User, error)

	/*
		EmailInUse reports whether an email already belongs to a live account.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - bool: True when taken
		  - error: Database errors
	*/
	EmailInUse(context context.Context, email string) (bool, error)

	/*
		SetPendingEmail records the address awaiting confirmation.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - email: string

		Returns:
		  - error: Persistence failures
	*/
	SetPendingEmail(context context.Context, userID, email string) error

	/*
		ConfirmEmail promotes pendingemail to the live address and re-verifies
		the account.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: apperr.NotFound when no pending email exists
	*/
	ConfirmEmail(context context.Context, userID string) error
}
