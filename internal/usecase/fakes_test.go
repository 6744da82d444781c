package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/core/issue"
	"github.com/ulut0002/base-backend/internal/infra/config"
	"github.com/ulut0002/base-backend/internal/infra/security"
	"github.com/ulut0002/base-backend/internal/infra/telemetry"
	"github.com/ulut0002/base-backend/internal/repository"
)

const testSecret = "test-secret-0123456789abcdefghij"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memUsers struct {
	mu    sync.Mutex
	now   func() time.Time
	order []string
	byID  map[string]domain.User

	creates int
	saves   int

	findErr error
	saveErr error
}

func newMemUsers(now func() time.Time) *memUsers {
	return &memUsers{now: now, byID: map[string]domain.User{}}
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.match(func(u domain.User) bool { return strings.EqualFold(u.Username, username) })
}

func (m *memUsers) FindByIdentity(_ context.Context, q domain.IdentityQuery) (*domain.User, error) {
	if q.IsEmpty() {
		return nil, repository.ErrNotFound
	}
	return m.match(func(u domain.User) bool {
		eq := func(a, b string) bool { return b != "" && strings.EqualFold(a, b) }
		return eq(u.Username, q.UsernameOrEmail) || eq(u.Email, q.UsernameOrEmail) ||
			eq(u.Username, q.Username) || eq(u.Email, q.Email) ||
			eq(u.NormalizedEmail, q.NormalizedEmail)
	})
}

func (m *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	return m.match(func(u domain.User) bool { return u.ID == id })
}

func (m *memUsers) match(pred func(domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, id := range m.order {
		if u := m.byID[id]; pred(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, in domain.NewUser) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Username, in.Username) || strings.EqualFold(u.Email, in.Email) {
			return nil, repository.ErrConflict
		}
	}

	m.creates++
	now := m.now().UTC()
	u := domain.User{
		ID:              fmt.Sprintf("user-%d", m.creates),
		Username:        in.Username,
		Email:           in.Email,
		NormalizedEmail: in.NormalizedEmail,
		PasswordHash:    in.PasswordHash,
		Role:            in.Role,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.byID[u.ID] = u
	m.order = append(m.order, u.ID)
	return &u, nil
}

func (m *memUsers) Save(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.byID[u.ID]; !ok {
		return repository.ErrNotFound
	}
	m.saves++
	m.byID[u.ID] = u
	return nil
}

// put stores u directly, bypassing Create.
func (m *memUsers) put(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		m.order = append(m.order, u.ID)
	}
	m.byID[u.ID] = u
}

func (m *memUsers) get(id string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

type issuance struct {
	userID string
	kind   domain.CodeKind
	at     time.Time
}

type memCodes struct {
	mu        sync.Mutex
	codes     []domain.VerificationCode
	issuances []issuance

	err error
}

func (m *memCodes) Insert(_ context.Context, code domain.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if code.IssueCount == 0 {
		code.IssueCount = 1
	}
	if code.LastIssuedAt.IsZero() {
		code.LastIssuedAt = code.CreatedAt
	}
	code.LinkToken = ""
	m.codes = append(m.codes, code)
	m.issuances = append(m.issuances, issuance{userID: code.UserID, kind: code.Kind, at: code.LastIssuedAt})
	return nil
}

func (m *memCodes) find(pred func(domain.VerificationCode) bool) (*domain.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for i := len(m.codes) - 1; i >= 0; i-- {
		if c := m.codes[i]; pred(c) {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memCodes) FindActive(_ context.Context, userID string, kind domain.CodeKind, now time.Time) (*domain.VerificationCode, error) {
	return m.find(func(c domain.VerificationCode) bool {
		return c.UserID == userID && c.Kind == kind && c.Status == domain.CodeStatusPending && c.ExpiresAt.After(now)
	})
}

func (m *memCodes) FindPending(_ context.Context, kind domain.CodeKind, code, hash string) (*domain.VerificationCode, error) {
	return m.find(func(c domain.VerificationCode) bool {
		return c.Kind == kind && c.Status == domain.CodeStatusPending && c.Code == code && c.LinkTokenHash == hash
	})
}

func (m *memCodes) FindPendingByHash(_ context.Context, kind domain.CodeKind, hash string) (*domain.VerificationCode, error) {
	return m.find(func(c domain.VerificationCode) bool {
		return c.Kind == kind && c.Status == domain.CodeStatusPending && c.LinkTokenHash == hash
	})
}

func (m *memCodes) update(id string, apply func(*domain.VerificationCode)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i := range m.codes {
		if m.codes[i].ID == id && m.codes[i].Status == domain.CodeStatusPending {
			apply(&m.codes[i])
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memCodes) MarkVerified(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(c *domain.VerificationCode) {
		c.Status = domain.CodeStatusVerified
		c.VerifiedAt = &at
	})
}

func (m *memCodes) Reissue(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(c *domain.VerificationCode) {
		c.IssueCount++
		c.LastIssuedAt = at
		m.issuances = append(m.issuances, issuance{userID: c.UserID, kind: c.Kind, at: at})
	})
}

func (m *memCodes) RecordFailedAttempt(_ context.Context, id string, maxAttempts int) error {
	return m.update(id, func(c *domain.VerificationCode) {
		c.FailedAttempts++
		if c.FailedAttempts >= maxAttempts {
			c.Status = domain.CodeStatusExpired
		}
	})
}

func (m *memCodes) CountIssuedSince(_ context.Context, userID string, kind domain.CodeKind, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, i := range m.issuances {
		if i.userID == userID && i.kind == kind && !i.at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memCodes) PruneIssuances(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	kept := m.issuances[:0]
	for _, i := range m.issuances {
		if i.at.Before(before) {
			continue
		}
		kept = append(kept, i)
	}
	pruned := len(m.issuances) - len(kept)
	m.issuances = kept
	return pruned, nil
}

func (m *memCodes) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	kept := m.codes[:0]
	deleted := 0
	for _, c := range m.codes {
		if c.Status == domain.CodeStatusExpired || (c.Status == domain.CodeStatusPending && c.ExpiresAt.Before(now)) {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	m.codes = kept
	return deleted, nil
}

func (m *memCodes) rows(userID string, kind domain.CodeKind) []domain.VerificationCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VerificationCode
	for _, c := range m.codes {
		if c.UserID == userID && c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []domain.MailMessage
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg domain.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last(t *testing.T) domain.MailMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail was sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type recordingEvents struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	changed    []domain.PasswordChangedEvent
	issued     []domain.VerificationCodeIssuedEvent
	verified   []domain.UserVerifiedEvent
}

func (e *recordingEvents) PublishUserRegistered(_ context.Context, ev domain.UserRegisteredEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = append(e.registered, ev)
	return nil
}

func (e *recordingEvents) PublishPasswordChanged(_ context.Context, ev domain.PasswordChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changed = append(e.changed, ev)
	return nil
}

func (e *recordingEvents) PublishVerificationCodeIssued(_ context.Context, ev domain.VerificationCodeIssuedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.issued = append(e.issued, ev)
	return nil
}

func (e *recordingEvents) PublishUserVerified(_ context.Context, ev domain.UserVerifiedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verified = append(e.verified, ev)
	return nil
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		App: config.AppSettings{Name: "credential-service", Env: "test"},
		Auth: config.AuthSettings{
			JWTSecret:       testSecret,
			JWTIssuer:       "credential-service",
			UsernameMin:     3,
			UsernameMax:     50,
			NormalizeEmails: true,
			Password: config.PasswordSettings{
				MinLength:    8,
				RequireDigit: true,
			},
		},
		Session: config.SessionSettings{
			CookieName: "session",
			TTL:        time.Hour,
			RefreshTTL: 2 * time.Hour,
		},
		Recovery: config.RecoverySettings{
			CodeLength: 5,
			PasswordReset: config.CodePolicy{
				Window:      15 * time.Minute,
				MaxRequests: 2,
				Expiration:  10 * time.Minute,
			},
			EmailVerification: config.CodePolicy{
				Window:      time.Hour,
				MaxRequests: 3,
				Expiration:  30 * time.Minute,
			},
		},
		Mail: config.MailSettings{LinkBaseURL: "https://app.example.com"},
	}
}

type fixture struct {
	cfg      *config.AppConfig
	clock    *testClock
	users    *memUsers
	codes    *memCodes
	mailer   *recordingMailer
	events   *recordingEvents
	sessions *security.SessionIssuer
	metrics  *telemetry.RecoveryMetrics
	ledger   *VerificationCodeLedger
	auth     *AuthService
	recovery *RecoveryEngine
}

func newFixture(t *testing.T, mutate ...func(*config.AppConfig)) *fixture {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	clock := newTestClock()
	f := &fixture{
		cfg:    cfg,
		clock:  clock,
		users:  newMemUsers(clock.Now),
		codes:  &memCodes{},
		mailer: &recordingMailer{},
		events: &recordingEvents{},
	}

	hasher, err := security.NewHasher(security.HasherConfig{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	var sessions *security.SessionIssuer
	if strings.TrimSpace(cfg.Auth.JWTSecret) != "" {
		sessions, err = security.NewSessionIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			t.Fatalf("NewSessionIssuer: %v", err)
		}
		sessions.WithClock(clock.Now)
		f.sessions = sessions
	}

	log := zaptest.NewLogger(t)
	if sessions != nil {
		f.auth = NewAuthService(cfg, f.users, hasher, sessions, f.events, log)
	} else {
		f.auth = NewAuthService(cfg, f.users, hasher, nil, f.events, log)
	}
	f.auth.WithClock(clock.Now)

	f.metrics, err = telemetry.NewRecoveryMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewRecoveryMetrics: %v", err)
	}
	f.ledger = NewVerificationCodeLedger(f.codes, cfg.Recovery.CodeLength)
	f.recovery = NewRecoveryEngine(cfg, f.auth, f.users, f.ledger, f.mailer, f.events, f.metrics, log).WithClock(clock.Now)
	f.recovery.detach = func(fn func()) { fn() }

	return f
}

func (f *fixture) register(t *testing.T, username, email, password string) *domain.User {
	t.Helper()
	res := f.auth.Register(context.Background(), RegisterInput{Username: username, Email: email, Password: password})
	if !res.Succeeded() {
		t.Fatalf("register %s: %+v", username, res.Issues.Issues())
	}
	return res.User
}

func strPtr(s string) *string { return &s }

func hasCode(c *issue.Collector, code issue.Code) bool {
	for _, i := range c.Issues() {
		if i.Code == code {
			return true
		}
	}
	return false
}

func firstErrorCode(c *issue.Collector) issue.Code {
	i, ok := c.FirstError()
	if !ok {
		return ""
	}
	return i.Code
}
