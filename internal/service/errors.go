package service

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Error kinds.  Every error returned by AuthService wraps exactly one of
// these, so callers classify with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrDependency   = errors.New("dependency failure")
)

// Error codes attached with oops.
const (
	CodeInvalidUsername = "INVALID_USERNAME"
	CodeInvalidEmail    = "INVALID_EMAIL"
	CodeWeakPassword    = "WEAK_PASSWORD"
	CodeLongPassword    = "PASSWORD_TOO_LONG"
	CodeNoFields        = "NO_FIELDS"
	CodeDuplicateUser   = "DUPLICATE_USER"
	CodeUserNotFound    = "USER_NOT_FOUND"
	CodeBadPassword     = "INVALID_PASSWORD"
	CodeTokenMissing    = "TOKEN_MISSING"
	CodeTokenInvalid    = "TOKEN_INVALID"
	CodeEmailNotFound   = "EMAIL_NOT_FOUND"
	CodeInvalidOTP      = "INVALID_OTP"
	CodeStore           = "STORE_ERROR"
	CodeHash            = "HASH_ERROR"
	CodeToken           = "TOKEN_ERROR"
	CodeRandom          = "RANDOM_ERROR"
)

// Messages shown to callers.
const (
	MsgSignupUsername   = "Username must contain only alphabets (lowercase or uppercase, no spaces)."
	MsgSignupEmail      = "Please provide a valid email address (e.g., user@example.com)."
	MsgSignupPassword   = "Password must be strong: at least 8 characters, including uppercase, lowercase, number, and any special character."
	MsgSignupDuplicate  = "Username or Email already exists"
	MsgEncryptionFailed = "Encryption failed"
	MsgDatabaseFailed   = "Database failed"
	MsgUserNotFound     = "User not found"
	MsgInvalidPassword  = "Invalid password"
	MsgDatabaseError    = "Database error"
	MsgUpdateUsername   = "Username must contain only alphabets."
	MsgUpdateEmail      = "Invalid email format."
	MsgUpdatePassword   = "Password must be strong (8+ chars, Upper, Lower, Num, Special)."
	MsgPasswordTooLong  = "Password is too long (at most 72 bytes)."
	MsgNoFields         = "No fields provided for update."
	MsgUpdateDuplicate  = "Username or Email already taken."
	MsgUpdateFailed     = "Update failed"
	MsgEmailNotFound    = "Email not found"
	MsgInvalidOTP       = "Invalid or expired OTP"
	MsgTokenMissing     = "Access denied. Token missing."
	MsgTokenInvalid     = "Invalid or expired token."
	MsgInternal         = "Internal server error"
)

// fail builds an error of the given kind carrying a caller-facing message.
func fail(kind error, code, message string) error {
	return oops.Code(code).
		With("message", message).
		Wrap(kind)
}

// failDep wraps a collaborator failure.  The cause stays in the chain for
// server-side logs; callers only ever see message.
func failDep(code, message string, cause error) error {
	return oops.Code(code).
		With("message", message).
		Wrap(fmt.Errorf("%w: %w", ErrDependency, cause))
}

// Message extracts the caller-facing message from err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return MsgInternal
	}
	if msg, ok := oopsErr.Context()["message"].(string); ok && msg != "" {
		return msg
	}
	return MsgInternal
}
