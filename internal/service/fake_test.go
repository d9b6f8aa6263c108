package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/cardioai-backend/internal/model"
	"github.com/iliyamo/cardioai-backend/internal/notify"
	"github.com/iliyamo/cardioai-backend/internal/repository"
)

// memStore mimics the users table, including its unique keys and the
// conditional reset statements.
type memStore struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]*model.User
	err    error // returned by every call when set
	writes int
}

func newMemStore() *memStore { return &memStore{users: map[uint64]*model.User{}} }

func (m *memStore) clash(id uint64, username, email string) bool {
	for _, u := range m.users {
		if u.ID == id {
			continue
		}
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return true
		}
	}
	return false
}

func (m *memStore) Create(_ context.Context, username, email, hash string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if m.clash(0, username, email) {
		return 0, repository.ErrDuplicate
	}
	m.nextID++
	m.writes++
	m.users[m.nextID] = &model.User{ID: m.nextID, Username: username, Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	return m.nextID, nil
}

func (m *memStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.User{}, m.err
	}
	for _, u := range m.users {
		if u.Username == username {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.User{}, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return *u, nil
}

func (m *memStore) UpdateProfile(_ context.Context, id uint64, ch model.ProfileChanges) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	var name, email string
	if ch.Username != nil {
		name = *ch.Username
	}
	if ch.Email != nil {
		email = *ch.Email
	}
	if m.clash(id, name, email) {
		return repository.ErrDuplicate
	}
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	m.writes++
	if ch.Username != nil {
		u.Username = *ch.Username
	}
	if ch.Email != nil {
		u.Email = *ch.Email
	}
	if ch.PasswordHash != nil {
		u.PasswordHash = *ch.PasswordHash
	}
	return nil
}

func (m *memStore) byEmail(email string) *model.User {
	for _, u := range m.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *memStore) SetResetCode(_ context.Context, email, code string, expires time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	u := m.byEmail(email)
	if u == nil {
		return false, nil
	}
	m.writes++
	c, e := code, expires
	u.ResetCode, u.ResetCodeExpiry = &c, &e
	return true, nil
}

func (m *memStore) live(email, code string, now time.Time) *model.User {
	u := m.byEmail(email)
	if u == nil || !resetPending(*u, now) || *u.ResetCode != code {
		return nil
	}
	return u
}

func (m *memStore) FindByResetCode(_ context.Context, email, code string, now time.Time) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.User{}, m.err
	}
	u := m.live(email, code, now)
	if u == nil {
		return model.User{}, repository.ErrNotFound
	}
	return *u, nil
}

func (m *memStore) ConsumeResetCode(_ context.Context, email, code, hash string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	u := m.live(email, code, now)
	if u == nil {
		return false, nil
	}
	m.writes++
	u.PasswordHash = hash
	u.ResetCode, u.ResetCodeExpiry = nil, nil
	return true, nil
}

func (m *memStore) user(username string) model.User {
	u, _ := m.GetByUsername(context.Background(), username)
	return u
}

// outbox records sent mail and can be told to fail.
type outbox struct {
	mu      sync.Mutex
	sent    []notify.Message
	err     error
	ctxErrs []error
}

func (o *outbox) Send(ctx context.Context, m notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ctxErrs = append(o.ctxErrs, ctx.Err())
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, m)
	return nil
}

// brokenHasher fails every Hash call.
type brokenHasher struct{}

func (brokenHasher) Hash(string) (string, error) { return "", errors.New("rng exhausted") }
func (brokenHasher) Verify(string, string) bool  { return false }

// resetPending reports whether u holds a reset code still valid at now.
func resetPending(u model.User, now time.Time) bool {
	return u.ResetCode != nil && u.ResetCodeExpiry != nil && u.ResetCodeExpiry.After(now)
}
