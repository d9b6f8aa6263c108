// Package service holds the credential lifecycle: signup, login, profile
// changes and the reset-code flow.  Handlers translate HTTP to these calls
// and back; nothing here knows about echo.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/cardioai-backend/internal/logging"
	"github.com/iliyamo/cardioai-backend/internal/model"
	"github.com/iliyamo/cardioai-backend/internal/notify"
	"github.com/iliyamo/cardioai-backend/internal/repository"
	"github.com/iliyamo/cardioai-backend/internal/utils"
)

// UserStore is the slice of the users table the service needs.
// *repository.UserRepo satisfies it.
type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string) (uint64, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdateProfile(ctx context.Context, id uint64, ch model.ProfileChanges) error
	SetResetCode(ctx context.Context, email, code string, expires time.Time) (bool, error)
	FindByResetCode(ctx context.Context, email, code string, now time.Time) (model.User, error)
	ConsumeResetCode(ctx context.Context, email, code, passwordHash string, now time.Time) (bool, error)
}

// PasswordHasher hashes and checks passwords.  utils.Hasher satisfies it.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// Options carries the tunables read from config.
type Options struct {
	JWTSecret    string
	AccessTTL    time.Duration
	ResetCodeTTL time.Duration
	MailTimeout  time.Duration
}

// AuthService implements the credential operations.  It holds no per-user
// state; all of it lives in the store, so one instance serves every request.
type AuthService struct {
	users  UserStore
	hasher PasswordHasher
	mail   notify.Sender
	opts   Options

	now     func() time.Time
	newCode func() (string, error)
}

func NewAuthService(users UserStore, hasher PasswordHasher, mail notify.Sender, opts Options) *AuthService {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.ResetCodeTTL <= 0 {
		opts.ResetCodeTTL = 10 * time.Minute
	}
	if opts.MailTimeout <= 0 {
		opts.MailTimeout = 30 * time.Second
	}
	return &AuthService{
		users:   users,
		hasher:  hasher,
		mail:    mail,
		opts:    opts,
		now:     time.Now,
		newCode: utils.GenerateResetCode,
	}
}

// Identity is who a verified token says the caller is.
type Identity struct {
	ID       uint64
	Username string
}

type SignupInput struct {
	Username string
	Email    string
	Password string
}

type LoginResult struct {
	Token    string
	Username string
	Expires  time.Time
}

// UpdateInput lists the requested profile changes.  Empty strings mean the
// field was not supplied.
type UpdateInput struct {
	Username string
	Email    string
	Password string
}

// Signup validates all three fields, then stores the user with a hashed
// password.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (uint64, error) {
	if !utils.ValidUsername(in.Username) {
		return 0, fail(ErrValidation, CodeInvalidUsername, MsgSignupUsername)
	}
	if !utils.ValidEmail(in.Email) {
		return 0, fail(ErrValidation, CodeInvalidEmail, MsgSignupEmail)
	}
	if !utils.StrongPassword(in.Password) {
		return 0, fail(ErrValidation, CodeWeakPassword, MsgSignupPassword)
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return 0, fail(ErrValidation, CodeLongPassword, MsgPasswordTooLong)
	}
	if err != nil {
		return 0, failDep(CodeHash, MsgEncryptionFailed, err)
	}

	id, err := s.users.Create(ctx, in.Username, in.Email, hash)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return 0, fail(ErrConflict, CodeDuplicateUser, MsgSignupDuplicate)
	case err != nil:
		return 0, failDep(CodeStore, MsgDatabaseFailed, err)
	}
	logging.FromContext(ctx).Info("user registered", "user_id", id, "username", in.Username)
	return id, nil
}

// Login checks username and password and issues a session token.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return LoginResult{}, fail(ErrUnauthorized, CodeUserNotFound, MsgUserNotFound)
	case err != nil:
		return LoginResult{}, failDep(CodeStore, MsgDatabaseError, err)
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return LoginResult{}, fail(ErrUnauthorized, CodeBadPassword, MsgInvalidPassword)
	}

	tok, err := utils.NewAccessToken(s.opts.JWTSecret, u.ID, u.Username, s.opts.AccessTTL, s.now())
	if err != nil {
		return LoginResult{}, failDep(CodeToken, MsgInternal, err)
	}
	return LoginResult{Token: tok.Token, Username: u.Username, Expires: tok.Exp}, nil
}

// Authenticate verifies a bearer token.  An empty token is reported as
// missing, anything else that fails verification as invalid.
func (s *AuthService) Authenticate(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, fail(ErrUnauthorized, CodeTokenMissing, MsgTokenMissing)
	}
	cl, err := utils.ParseAccessToken(s.opts.JWTSecret, raw, s.now)
	if err != nil {
		return Identity{}, fail(ErrForbidden, CodeTokenInvalid, MsgTokenInvalid)
	}
	return Identity{ID: cl.ID, Username: cl.Username}, nil
}

// Profile returns the stored record of the authenticated user.
func (s *AuthService) Profile(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.User{}, fail(ErrNotFound, CodeUserNotFound, MsgUserNotFound)
	case err != nil:
		return model.User{}, failDep(CodeStore, MsgDatabaseError, err)
	}
	return u, nil
}

// UpdateProfile applies the supplied fields, each checked with the signup
// rules.  It returns the username the caller should now display.
func (s *AuthService) UpdateProfile(ctx context.Context, who Identity, in UpdateInput) (string, error) {
	var ch model.ProfileChanges
	if in.Username != "" {
		if !utils.ValidUsername(in.Username) {
			return "", fail(ErrValidation, CodeInvalidUsername, MsgUpdateUsername)
		}
		ch.Username = &in.Username
	}
	if in.Email != "" {
		if !utils.ValidEmail(in.Email) {
			return "", fail(ErrValidation, CodeInvalidEmail, MsgUpdateEmail)
		}
		ch.Email = &in.Email
	}
	if in.Password != "" {
		if !utils.StrongPassword(in.Password) {
			return "", fail(ErrValidation, CodeWeakPassword, MsgUpdatePassword)
		}
		hash, err := s.hasher.Hash(in.Password)
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return "", fail(ErrValidation, CodeLongPassword, MsgPasswordTooLong)
		}
		if err != nil {
			return "", failDep(CodeHash, MsgUpdateFailed, err)
		}
		ch.PasswordHash = &hash
	}
	if ch.Empty() {
		return "", fail(ErrValidation, CodeNoFields, MsgNoFields)
	}

	err := s.users.UpdateProfile(ctx, who.ID, ch)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return "", fail(ErrConflict, CodeDuplicateUser, MsgUpdateDuplicate)
	case err != nil:
		return "", failDep(CodeStore, MsgUpdateFailed, err)
	}

	if ch.Username != nil {
		return *ch.Username, nil
	}
	return who.Username, nil
}

// ForgotPassword stores a fresh reset code for email, replacing any earlier
// one, and mails it.  delivered is false when the mail could not be handed
// off; the code is then written to the server log instead and the call still
// succeeds.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (delivered bool, err error) {
	if email == "" {
		return false, fail(ErrNotFound, CodeEmailNotFound, MsgEmailNotFound)
	}
	code, err := s.newCode()
	if err != nil {
		return false, failDep(CodeRandom, MsgDatabaseError, err)
	}
	expires := s.now().Add(s.opts.ResetCodeTTL)

	ok, err := s.users.SetResetCode(ctx, email, code, expires)
	if err != nil {
		return false, failDep(CodeStore, MsgDatabaseError, err)
	}
	if !ok {
		return false, fail(ErrNotFound, CodeEmailNotFound, MsgEmailNotFound)
	}

	log := logging.FromContext(ctx)
	msg, err := notify.ResetCodeMessage(email, code, s.opts.ResetCodeTTL)
	if err == nil {
		// the code is already stored; the caller's store deadline does not
		// apply to the relay
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.MailTimeout)
		err = s.mail.Send(mctx, msg)
		cancel()
	}
	if err != nil {
		log.Error("reset code email failed", "email", email, "err", err)
		log.Warn("reset code fallback", "email", email, "fallback_otp", code, "expires_at", expires.UTC())
		return false, nil
	}
	log.Info("reset code email sent", "email", email)
	return true, nil
}

// VerifyOTP checks that code is the live reset code for email.  It changes
// nothing.  Unknown email, wrong code and expired code are reported the same
// way.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	if email == "" || code == "" {
		return fail(ErrValidation, CodeInvalidOTP, MsgInvalidOTP)
	}
	_, err := s.users.FindByResetCode(ctx, email, code, s.now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fail(ErrValidation, CodeInvalidOTP, MsgInvalidOTP)
	case err != nil:
		return failDep(CodeStore, MsgDatabaseError, err)
	}
	return nil
}

// ResetPassword replaces the password of the user owning a live reset code
// and clears the code.  The replace-and-clear is a single conditional
// update, so of two concurrent resets with the same code only one succeeds.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if !utils.StrongPassword(newPassword) {
		return fail(ErrValidation, CodeWeakPassword, MsgUpdatePassword)
	}
	if err := s.VerifyOTP(ctx, email, code); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return fail(ErrValidation, CodeLongPassword, MsgPasswordTooLong)
	}
	if err != nil {
		return failDep(CodeHash, MsgUpdateFailed, err)
	}

	ok, err := s.users.ConsumeResetCode(ctx, email, code, hash, s.now())
	if err != nil {
		return failDep(CodeStore, MsgUpdateFailed, err)
	}
	if !ok {
		// expired or consumed between the check and the update
		return fail(ErrValidation, CodeInvalidOTP, MsgInvalidOTP)
	}
	logging.FromContext(ctx).Info("password reset", "email", email)
	return nil
}
