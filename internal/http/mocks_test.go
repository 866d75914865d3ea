package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auth-vault/internal/domain"
	"auth-vault/internal/email"
	"auth-vault/internal/repository"
	"auth-vault/internal/service"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
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
	if _, ok := m.usersByID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.usersByID[user.ID] = user
	return nil
}

type mockOTPRepo struct {
	mu      sync.Mutex
	records map[string]domain.OTPRecord
}

func newMockOTPRepo() *mockOTPRepo {
	return &mockOTPRepo{records: make(map[string]domain.OTPRecord)}
}

func otpKey(email string, purpose domain.OTPPurpose) string {
	return purpose.String() + "|" + email
}

func (m *mockOTPRepo) Upsert(_ context.Context, record domain.OTPRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[otpKey(record.Email, record.Purpose)] = record
	return nil
}

func (m *mockOTPRepo) Get(_ context.Context, email string, purpose domain.OTPPurpose) (domain.OTPRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[otpKey(email, purpose)]
	if !ok {
		return domain.OTPRecord{}, pgx.ErrNoRows
	}
	return rec, nil
}

func (m *mockOTPRepo) Consume(_ context.Context, email string, purpose domain.OTPPurpose, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := otpKey(email, purpose)
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

type mockEmailSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (m *mockEmailSender) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *mockEmailSender) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
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
}

func (m *mockLimiter) Allow(_ context.Context, _ string) (bool, time.Duration) {
	if m.allow {
		return true, 0
	}
	return false, m.wait
}

var errStoreDown = errors.New("session store down")

// switchableSessionStore envuelve el store en memoria y puede simular una caida.
type switchableSessionStore struct {
	service.SessionStore
	mu   sync.Mutex
	down bool
}

func (s *switchableSessionStore) setDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

func (s *switchableSessionStore) isDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.down
}

func (s *switchableSessionStore) Load(ctx context.Context, id string) (domain.Identity, bool, error) {
	if s.isDown() {
		return domain.Identity{}, false, errStoreDown
	}
	return s.SessionStore.Load(ctx, id)
}

func (s *switchableSessionStore) Delete(ctx context.Context, id string) error {
	if s.isDown() {
		return errStoreDown
	}
	return s.SessionStore.Delete(ctx, id)
}

type testApp struct {
	router  *gin.Engine
	users   *mockUserRepo
	sender  *mockEmailSender
	limiter *mockLimiter
	store   *switchableSessionStore
	cookie  SessionCookie
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := newMockUserRepo()
	sender := &mockEmailSender{}
	limiter := &mockLimiter{allow: true}
	store := &switchableSessionStore{SessionStore: service.NewMemorySessionStore()}
	sessions := service.NewSessionService("test-secret", time.Hour, store)
	hasher := service.NewArgon2Hasher(service.Argon2Params{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	ledger := service.NewOTPLedger(newMockOTPRepo())
	cookie := SessionCookie{Name: "sid", MaxAge: time.Hour}

	authSvc := service.NewAuthService(zap.NewNop(), users, hasher, ledger, sender, limiter, sessions)
	userSvc := service.NewUserService(zap.NewNop(), users)

	r := NewRouter(RouterDeps{
		Logger:         zap.NewNop(),
		Sessions:       sessions,
		Cookie:         cookie,
		AuthH:          NewAuthHandler(zap.NewNop(), authSvc, cookie),
		UserH:          NewUserHandler(zap.NewNop(), userSvc),
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return &testApp{router: r, users: users, sender: sender, limiter: limiter, store: store, cookie: cookie}
}

func performRequest(r http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type envelopeResponse struct {
	Success bool            `json:"success"`
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelopeResponse {
	t.Helper()
	var env envelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return env
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// registerAndVerify registra un usuario, verifica el email y devuelve la cookie.
func (a *testApp) registerAndVerify(t *testing.T, emailAddr, password string) *http.Cookie {
	t.Helper()
	rec := performRequest(a.router, http.MethodPost, "/auth/register", map[string]string{
		"firstname": "Alice",
		"email":     emailAddr,
		"password":  password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	rec = performRequest(a.router, http.MethodPost, "/auth/verify-email", map[string]string{
		"email": emailAddr,
		"otp":   a.sender.lastCode(t),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	c := sessionCookie(t, rec, a.cookie.Name)
	if c == nil || c.Value == "" {
		t.Fatalf("expected session cookie")
	}
	return c
}
