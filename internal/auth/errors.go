package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/edgard/tgcollector/internal/errs"
)

// Typed login outcomes. All carry errs.CodeAuthentication.
var (
	ErrNoPendingSession = errs.New(errs.CodeAuthentication, "no pending login session")
	ErrCodeExpired      = errs.New(errs.CodeAuthentication, "login code expired")
	ErrInvalidCode      = errs.New(errs.CodeAuthentication, "invalid login code")
	ErrPhoneInvalid     = errs.New(errs.CodeAuthentication, "invalid phone number")
	ErrPhoneBanned      = errs.New(errs.CodeAuthentication, "phone number banned")
	ErrRateLimited      = errs.New(errs.CodeAuthentication, "too many attempts, try again later")
	ErrPasswordRequired = errs.New(errs.CodeAuthentication, "two-step verification password required")
)

// platformErrors maps platform error markers to typed outcomes. Matching is
// by substring, first hit wins.
var platformErrors = []struct {
	marker string
	target error
}{
	{"PHONE_NUMBER_INVALID", ErrPhoneInvalid},
	{"PHONE_NUMBER_BANNED", ErrPhoneBanned},
	{"PHONE_NUMBER_FLOOD", ErrRateLimited},
	{"FLOOD_WAIT", ErrRateLimited},
	{"PHONE_CODE_INVALID", ErrInvalidCode},
	{"PHONE_CODE_EXPIRED", ErrCodeExpired},
	{"SESSION_PASSWORD_NEEDED", ErrPasswordRequired},
}

// MapPlatformError turns a platform login error into a typed outcome that
// still wraps the original. Unknown errors become an opaque authentication
// error carrying the platform message.
func MapPlatformError(err error) error {
	if err == nil {
		return nil
	}
	var appErr errs.ApplicationError
	if errors.As(err, &appErr) {
		return err
	}

	msg := err.Error()
	for _, pe := range platformErrors {
		if strings.Contains(msg, pe.marker) {
			return fmt.Errorf("%w: %w", pe.target, err)
		}
	}
	return errs.NewAuthenticationError("platform rejected login", err)
}
