package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auth-vault/internal/domain"
	"auth-vault/internal/email"
	"auth-vault/internal/repository"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	saves        int
	createErr    error
	saveErr      error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	id, ok := m.usersByEmail[email]
	m.mu.Unlock()
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) Save(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.usersByID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.usersByID[user.ID] = user
	return nil
}

type otpKey struct {
	email   string
	purpose domain.OTPPurpose
}

type mockOTPRepo struct {
	mu      sync.Mutex
	records map[otpKey]domain.OTPRecord
	getErr  error
}

func newMockOTPRepo() *mockOTPRepo {
	return &mockOTPRepo{records: make(map[otpKey]domain.OTPRecord)}
}

func (m *mockOTPRepo) Upsert(_ context.Context, record domain.OTPRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[otpKey{record.Email, record.Purpose}] = record
	return nil
}

func (m *mockOTPRepo) Get(_ context.Context, email string, purpose domain.OTPPurpose) (domain.OTPRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.OTPRecord{}, m.getErr
	}
	rec, ok := m.records[otpKey{email, purpose}]
	if !ok {
		return domain.OTPRecord{}, pgx.ErrNoRows
	}
	return rec, nil
}

func (m *mockOTPRepo) Consume(_ context.Context, email string, purpose domain.OTPPurpose, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := otpKey{email, purpose}
	rec, ok := m.records[key]
	if !ok || rec.CodeHash != codeHash {
		return false, nil
	}
	delete(m.records, key)
	return true, nil
}

func (m *mockOTPRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, rec := range m.records {
		if rec.ExpiresAt.Before(before) {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}

func (m *mockOTPRepo) get(email string, purpose domain.OTPPurpose) (domain.OTPRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[otpKey{email, purpose}]
	return rec, ok
}

type mockEmailSender struct {
	sent []email.Message
	err  error
}

func (m *mockEmailSender) Send(_ context.Context, msg email.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *mockEmailSender) lastCode(t *testing.T) string {
	t.Helper()
	if len(m.sent) == 0 {
		t.Fatalf("expected an email to be sent")
	}
	data, ok := m.sent[len(m.sent)-1].Data.(email.OTPMailData)
	if !ok {
		t.Fatalf("unexpected mail payload %T", m.sent[len(m.sent)-1].Data)
	}
	return data.OTP
}

type mockLimiter struct {
	allow bool
	wait  time.Duration
	keys  []string
}

func (m *mockLimiter) Allow(_ context.Context, key string) (bool, time.Duration) {
	m.keys = append(m.keys, key)
	if m.allow {
		return true, 0
	}
	return false, m.wait
}

type failingSessionStore struct {
	SessionStore
	deleteErr error
}

func (f *failingSessionStore) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.SessionStore.Delete(ctx, id)
}

var errStoreDown = errors.New("store down")

// fastHasher mantiene argon2id pero con costos minimos para tests.
func fastHasher() PasswordHasher {
	return NewArgon2Hasher(Argon2Params{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
}

type authFixture struct {
	users    *mockUserRepo
	otps     *mockOTPRepo
	ledger   *OTPLedger
	sender   *mockEmailSender
	limiter  *mockLimiter
	sessions *SessionService
	auth     *AuthService
	profile  *UserService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:    newMockUserRepo(),
		otps:     newMockOTPRepo(),
		sender:   &mockEmailSender{},
		limiter:  &mockLimiter{allow: true},
		sessions: NewSessionService("test-secret", 24*time.Hour, NewMemorySessionStore()),
	}
	f.ledger = NewOTPLedger(f.otps)
	f.auth = NewAuthService(zap.NewNop(), f.users, fastHasher(), f.ledger, f.sender, f.limiter, f.sessions)
	f.profile = NewUserService(zap.NewNop(), f.users)
	return f
}

// registerVerified deja un usuario verificado listo para login.
func (f *authFixture) registerVerified(t *testing.T, emailAddr, password string) domain.SessionState {
	t.Helper()
	ctx := context.Background()
	if err := f.auth.Register(ctx, RegisterInput{FirstName: "Alice", Email: emailAddr, Password: password}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, sess, err := f.auth.VerifyEmail(ctx, domain.SessionState{}, emailAddr, f.sender.lastCode(t))
	if err != nil {
		t.Fatalf("verify email: %v", err)
	}
	return sess
}
