package model

import "time"

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are used by the repository and service layers; handlers define
// their own response types.
//
// Fields:
//  ID              – server-assigned primary key.
//  Username        – unique, alphabetic-only login name.
//  Email           – unique email address.
//  PasswordHash    – bcrypt hash of the current password (users.password).
//  ResetCode       – six digit reset code, nil unless a reset is in flight.
//  ResetCodeExpiry – expiry of ResetCode; nil exactly when ResetCode is nil.
//  CreatedAt       – timestamp of creation.
type User struct {
	ID              uint64     // users.id
	Username        string     // users.username
	Email           string     // users.email
	PasswordHash    string     // users.password
	ResetCode       *string    // users.reset_otp (nullable)
	ResetCodeExpiry *time.Time // users.reset_otp_expires (nullable)
	CreatedAt       time.Time  // users.created_at
}

// ProfileChanges lists the columns a profile update may touch.  Nil fields
// are left unchanged.  PasswordHash is already hashed by the caller.
type ProfileChanges struct {
	Username     *string
	Email        *string
	PasswordHash *string
}

// Empty reports whether no field was supplied.
func (p ProfileChanges) Empty() bool {
	return p.Username == nil && p.Email == nil && p.PasswordHash == nil
}
