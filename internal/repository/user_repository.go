package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/cardioai-backend/internal/model"
)

const userColumns = "id,username,email,password,reset_otp,reset_otp_expires,created_at"

// UserRepo reads and writes the users table.  Every method runs
// independent parameterized statements; the pool hands each one its own
// connection, so no connection is shared between requests.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns its ID.  A username or email clash
// yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, username, email, passwordHash string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, password) VALUES (?,?,?)",
		username, email, passwordHash)
	if err != nil {
		return 0, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdateProfile writes only the supplied columns of user id.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, ch model.ProfileChanges) error {
	var (
		sets []string
		args []any
	)
	if ch.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *ch.Username)
	}
	if ch.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *ch.Email)
	}
	if ch.PasswordHash != nil {
		sets = append(sets, "password = ?")
		args = append(args, *ch.PasswordHash)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	return classify(err)
}

// SetResetCode stores code and its expiry on the user owning email in one
// statement, replacing any code already in flight.  It returns false when no
// user has that email.
func (r *UserRepo) SetResetCode(ctx context.Context, email, code string, expires time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_otp = ?, reset_otp_expires = ? WHERE email = ?",
		code, expires.UTC(), email)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindByResetCode returns the user owning email whose reset code equals code
// and expires after now.  Any mismatch yields ErrNotFound.
func (r *UserRepo) FindByResetCode(ctx context.Context, email, code string, now time.Time) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? AND reset_otp = ? AND reset_otp_expires > ? LIMIT 1",
		email, code, now.UTC()))
}

// ConsumeResetCode replaces the password hash and clears both reset columns,
// but only while the code still matches and has not expired.  The check and
// the clear happen in one statement, so a code can be consumed once.
func (r *UserRepo) ConsumeResetCode(ctx context.Context, email, code, passwordHash string, now time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password = ?, reset_otp = NULL, reset_otp_expires = NULL
		 WHERE email = ? AND reset_otp = ? AND reset_otp_expires > ?`,
		passwordHash, email, code, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping verifies the store is reachable.
func (r *UserRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var (
		u       model.User
		code    sql.NullString
		expires sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &code, &expires, &u.CreatedAt)
	if err != nil {
		return model.User{}, classify(err)
	}
	if code.Valid {
		u.ResetCode = &code.String
	}
	if expires.Valid {
		t := expires.Time.UTC()
		u.ResetCodeExpiry = &t
	}
	return u, nil
}
