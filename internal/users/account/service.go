// Copyright (c) 2026 OpenG7. All rights reserved.

package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/apperr"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/mailer"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/sec"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/validate"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/webhookurl"
	"github.com/OpenG7/openg7-platform-sub001/internal/users/auth"
	"github.com/OpenG7/openg7-platform-sub001/pkg/parse"
)

// emailChangeTokenTTL bounds how long a pending address stays confirmable.
const emailChangeTokenTTL = 24 * time.Hour

// emailChangeTokenLength is the byte length of the confirmation token.
const emailChangeTokenLength = 32

// # Service Layer

// Service orchestrates profile reads/writes and the email change flow.
type Service struct {
	accounts      AccountRepository
	profiles      ProfileRepository
	emailTokens   auth.OneTimeTokenRepository
	mail          mailer.Mailer
	webhookPolicy webhookurl.Policy
	logger        *slog.Logger
}

// NewService constructs a new [Service] with its dependencies. The webhook
// policy guards URLs saved into notification preferences.
func NewService(
	accounts AccountRepository,
	profiles ProfileRepository,
	emailTokens auth.OneTimeTokenRepository,
	mail mailer.Mailer,
	webhookPolicy webhookurl.Policy,
	logger *slog.Logger,
) *Service {
	return &Service{
		accounts:      accounts,
		profiles:      profiles,
		emailTokens:   emailTokens,
		mail:          mail,
		webhookPolicy: webhookPolicy,
		logger:        logger,
	}
}

// # Profile Management

/*
GetProfile returns the user's profile, or an empty default when the user has
never saved one.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *Profile: Hydrated or default profile
  - error: Execution failures
*/
func (service *Service) GetProfile(context context.Context, userID string) (*Profile, error) {
	profile, err := service.profiles.FindByUserID(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return &Profile{UserID: userID, NotificationPrefs: map[string]any{}}, nil
		}
		return nil, fmt.Errorf("account_service_get_profile_failed: %w", err)
	}
	return profile, nil
}

// UpdateProfileInput defines the mutable profile fields.
type UpdateProfileInput struct {
	DisplayName       string
	Organization      string
	Province          string
	Language          string
	NotificationPrefs map[string]any
}

/*
UpdateProfile validates and persists the user's profile.

Description: Notification preferences are persisted as submitted, but the
fields the platform acts on are shape-checked first: the webhook URL must
pass the delivery policy, quiet hours must be well-formed HH:MM strings with
a real IANA timezone, and the frequency must be a known value. Unknown keys
pass through untouched.

Parameters:
  - context: context.Context
  - userID: string
  - input: UpdateProfileInput

Returns:
  - *Profile: The persisted profile
  - error: apperr.ValidationError on a rejected preference shape
*/
func (service *Service) UpdateProfile(context context.Context, userID string, input UpdateProfileInput) (*Profile, error) {

	preferences := input.NotificationPrefs
	if preferences == nil {
		preferences = map[string]any{}
	}

	if err := service.validatePreferences(preferences); err != nil {
		return nil, err
	}

	profile := &Profile{
		UserID:            userID,
		DisplayName:       input.DisplayName,
		Organization:      input.Organization,
		Province:          input.Province,
		Language:          input.Language,
		NotificationPrefs: preferences,
	}

	if err := service.profiles.Upsert(context, profile); err != nil {
		return nil, err
	}

	service.logger.Info("profile_updated", slog.String("user_id", userID))
	return profile, nil
}

// validatePreferences rejects preference documents the platform could never
// act on. Anything it does not recognize is left alone.
func (service *Service) validatePreferences(preferences map[string]any) error {

	validator := &validate.Validator{}

	if webhookURL := parse.String(preferences["webhookUrl"], ""); webhookURL != "" {
		verdict := webhookurl.Validate(webhookURL, service.webhookPolicy)
		validator.Custom("notificationPrefs.webhookUrl", !verdict.Valid, verdict.Message)
	}

	if rawFrequency, present := preferences["frequency"]; present {
		frequency := parse.String(rawFrequency, "")
		validator.OneOf("notificationPrefs.frequency", frequency, "instant", "daily-digest")
	}

	if quiet := parse.Object(preferences["quietHours"]); quiet != nil {
		if raw, present := quiet["start"]; present {
			validator.HHMM("notificationPrefs.quietHours.start", parse.String(raw, ""))
		}
		if raw, present := quiet["end"]; present {
			validator.HHMM("notificationPrefs.quietHours.end", parse.String(raw, ""))
		}
		if raw, present := quiet["timezone"]; present {
			validator.Timezone("notificationPrefs.quietHours.timezone", parse.String(raw, ""))
		}
	}

	return validator.Err()
}

// # Notification Directory

/*
NotificationPrefs returns the raw preference document for a user. Consumers
resolve it defensively; a missing profile yields an empty document.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - map[string]any: The stored document, possibly empty
  - error: Execution failures
*/
func (service *Service) NotificationPrefs(context context.Context, userID string) (map[string]any, error) {
	profile, err := service.GetProfile(context, userID)
	if err != nil {
		return nil, err
	}
	return profile.NotificationPrefs, nil
}

/*
EmailAddress returns the user's confirmed email address.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - string: The live address (never the pending one)
  - error: apperr.NotFound for unknown users
*/
func (service *Service) EmailAddress(context context.Context, userID string) (string, error) {
	user, err := service.accounts.FindByID(context, userID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// # Email Change

/*
RequestEmailChange stores a pending address and issues a confirmation token.

Description: Requires the current password so a hijacked browser session
cannot silently redirect the account. The token is mailed to the NEW address;
the live address keeps working until the token is confirmed.

Parameters:
  - context: context.Context
  - userID: string
  - currentPassword: string
  - newEmail: string

Returns:
  - error: apperr.Unauthorized on a wrong password, apperr.Conflict when the
    address is taken
*/
func (service *Service) RequestEmailChange(context context.Context, userID, currentPassword, newEmail string) error {

	user, err := service.accounts.FindByID(context, userID)
	if err != nil {
		return err
	}

	if !sec.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}

	if newEmail == user.Email {
		return apperr.Conflict("This is already your email address")
	}

	taken, err := service.accounts.EmailInUse(context, newEmail)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict("Email is already registered")
	}

	if err := service.accounts.SetPendingEmail(context, userID, newEmail); err != nil {
		return err
	}

	token, err := sec.GenerateSecureToken(emailChangeTokenLength)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := service.emailTokens.Set(context, sec.HashToken(token), userID, emailChangeTokenTTL); err != nil {
		return err
	}

	subject := "OpenG7: confirm your new email address"
	body := fmt.Sprintf("Confirm this address for your OpenG7 account within 24 hours:\n\n%s", token)
	if err := service.mail.Send(context, newEmail, subject, body); err != nil {
		service.logger.Warn("email_change_mail_failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	service.logger.Info("email_change_requested", slog.String("user_id", userID))
	return nil
}

/*
ConfirmEmailChange consumes a confirmation token and promotes the pending
address.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: apperr.Unauthorized on a bad token, apperr.NotFound when no
    pending address remains
*/
func (service *Service) ConfirmEmailChange(context context.Context, token string) error {

	tokenHash := sec.HashToken(token)
	userID, err := service.emailTokens.Get(context, tokenHash)
	if err != nil {
		if apperr.IsNotFound(err) {
			return apperr.Unauthorized("Invalid or expired confirmation token")
		}
		return err
	}

	if err := service.accounts.ConfirmEmail(context, userID); err != nil {
		return err
	}

	if err := service.emailTokens.Delete(context, tokenHash); err != nil {
		return err
	}

	service.logger.Info("email_change_confirmed", slog.String("user_id", userID))
	return nil
}
