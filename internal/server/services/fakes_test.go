package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/gatekeeper/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
	"github.com/google/uuid"
)

// --- clock ---

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// --- users repository ---

type fakeUsersRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*models.User

	createErr error
	getErr    error
	updateErr error
	deleteErr error
	listErr   error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: map[string]*models.User{}}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

// add stores u directly, bypassing conflict checks.
func (f *fakeUsersRepo) add(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Date(2026, 1, 1, 0, 0, f.seq, 0, time.UTC)
	}
	f.users[u.ID] = cloneUser(u)
	return cloneUser(u)
}

func (f *fakeUsersRepo) find(match func(*models.User) bool) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if !u.IsDeleted() && match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, err := f.find(func(x *models.User) bool { return x.Email == u.Email || x.Username == u.Username }); err == nil {
		return nil, common.ErrorConflict
	}
	return f.add(cloneUser(u)), nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Username == username })
}

func (f *fakeUsersRepo) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == login || u.Username == login })
}

func (f *fakeUsersRepo) Update(ctx context.Context, u *models.User) (*models.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	for _, other := range f.users {
		if other.ID != u.ID && !other.IsDeleted() && other.Email == u.Email {
			return nil, common.ErrorConflict
		}
	}
	f.users[u.ID] = cloneUser(u)
	return cloneUser(u), nil
}

func (f *fakeUsersRepo) SoftDelete(ctx context.Context, id string, now time.Time) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.IsDeleted() {
		return common.ErrorNotFound
	}
	u.DeletedAt = &now
	return nil
}

func (f *fakeUsersRepo) live() []*models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.User
	for _, u := range f.users {
		if !u.IsDeleted() {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeUsersRepo) List(ctx context.Context, skip, limit int) ([]*models.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	all := f.live()
	if skip >= len(all) {
		return nil, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end], nil
}

func (f *fakeUsersRepo) Count(ctx context.Context) (int64, error) {
	if f.listErr != nil {
		return 0, f.listErr
	}
	return int64(len(f.live())), nil
}

// --- refresh token repository ---

type fakeRefreshRepo struct {
	mu     sync.Mutex
	seq    int
	tokens map[string]*models.RefreshToken

	createErr error
	findErr   error
	revokeErr error
	sweepErr  error
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tokens[token]; ok {
		return nil, common.ErrorConflict
	}
	f.seq++
	rt := &models.RefreshToken{ID: fmt.Sprintf("rt%d", f.seq), UserID: userID, Token: token, ExpiresAt: expiresAt}
	f.tokens[token] = rt
	c := *rt
	return &c, nil
}

func (f *fakeRefreshRepo) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *rt
	return &c, nil
}

func (f *fakeRefreshRepo) FindValidByToken(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error) {
	rt, err := f.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !rt.IsValid(now) {
		return nil, common.ErrorNotFound
	}
	return rt, nil
}

func (f *fakeRefreshRepo) Revoke(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error) {
	if f.revokeErr != nil {
		return nil, f.revokeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	rt.Revoke(now)
	c := *rt
	return &c, nil
}

func (f *fakeRefreshRepo) RevokeAllForUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
	if f.revokeErr != nil {
		return nil, f.revokeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.RefreshToken
	for _, rt := range f.tokens {
		if rt.UserID == userID && !rt.IsRevoked() {
			rt.Revoke(now)
			c := *rt
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeRefreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if f.sweepErr != nil {
		return 0, f.sweepErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, rt := range f.tokens {
		if rt.ExpiresAt.Before(now) {
			delete(f.tokens, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshRepo) live(userID string, now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rt := range f.tokens {
		if rt.UserID == userID && rt.IsValid(now) {
			n++
		}
	}
	return n
}

// --- repository manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }

// --- denylist ---

type fakeDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Duration

	setErr error
	getErr error
}

func newFakeDenylist() *fakeDenylist {
	return &fakeDenylist{entries: map[string]time.Duration{}}
}

func (d *fakeDenylist) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if d.setErr != nil {
		return d.setErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[token] = ttl
	return nil
}

func (d *fakeDenylist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	if d.getErr != nil {
		return false, d.getErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[token]
	return ok, nil
}

// --- environment ---

const (
	testAccessTTL  = 30 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
)

type testEnv struct {
	db     *sql.DB
	mock   sqlmock.Sqlmock
	clock  *fakeClock
	codec  *auth.TokenCodec
	hasher *auth.BcryptHasher
	users  *fakeUsersRepo
	tokens *fakeRefreshRepo
	deny   *fakeDenylist
	rm     *fakeRepoManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := newClock()
	users := newFakeUsersRepo()
	tokens := newFakeRefreshRepo()
	return &testEnv{
		db:     db,
		mock:   mock,
		clock:  clock,
		codec:  auth.NewTokenCodec([]byte("test-secret"), testAccessTTL, testRefreshTTL, auth.WithClock(clock.Now)),
		hasher: auth.NewBcryptHasher(4),
		users:  users,
		tokens: tokens,
		deny:   newFakeDenylist(),
		rm:     &fakeRepoManager{u: users, r: tokens},
	}
}

func (e *testEnv) authService() *AuthService {
	return NewAuthService(e.db, e.rm, e.codec, e.hasher, e.deny, logging.Nop(), WithClock(e.clock.Now))
}

func (e *testEnv) userService() *UserService {
	cfg := &config.Config{DefaultPageSize: 2, MaxPageSize: 3}
	return NewUserService(e.db, e.rm, e.hasher, cfg, logging.Nop(), WithClock(e.clock.Now))
}

// seedUser stores an active user with the given password.
func (e *testEnv) seedUser(t *testing.T, email, username, password string) *models.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return e.users.add(&models.User{Email: email, Username: username, PasswordHash: hash, IsActive: true})
}

func (e *testEnv) expectTx(commit bool) {
	e.mock.ExpectBegin()
	if commit {
		e.mock.ExpectCommit()
	} else {
		e.mock.ExpectRollback()
	}
}

func (e *testEnv) verify(t *testing.T) {
	t.Helper()
	if err := e.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
