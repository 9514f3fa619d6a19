package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/academy-auth/internal/config"
	"github.com/iliyamo/academy-auth/internal/model"
	q "github.com/iliyamo/academy-auth/internal/queue"
	"github.com/iliyamo/academy-auth/internal/repository"
	"github.com/iliyamo/academy-auth/internal/utils"
)

// mockUserStore is an in-memory UserStore. Uniqueness of
// (tenant, email) is enforced atomically inside Create, under the same
// lock that performs the insert, mirroring the database unique key.
type mockUserStore struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
	byKey  map[string]uint64 // tenant+"\x00"+email -> id
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		byID:  make(map[uint64]model.User),
		byKey: make(map[string]uint64),
	}
}

func userKey(tenantID, email string) string { return tenantID + "\x00" + email }

func (m *mockUserStore) Create(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userKey(u.TenantID, u.Email)
	if _, dup := m.byKey[key]; dup {
		return repository.ErrEmailExists
	}
	m.nextID++
	u.ID = m.nextID
	m.byID[u.ID] = *u
	m.byKey[key] = u.ID
	return nil
}

func (m *mockUserStore) GetByEmail(ctx context.Context, tenantID, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[userKey(tenantID, email)]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return m.byID[id], nil
}

func (m *mockUserStore) GetByID(ctx context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

// setStatus mimics the external approval workflow.
func (m *mockUserStore) setStatus(id uint64, st model.UserStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID[id]
	u.Status = st
	m.byID[id] = u
}

func (m *mockUserStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// mockTokenStore is an in-memory TokenStore keyed by token string.
type mockTokenStore struct {
	mu      sync.Mutex
	nextID  uint64
	byToken map[string]model.RefreshToken
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{byToken: make(map[string]model.RefreshToken)}
}

func (m *mockTokenStore) Store(ctx context.Context, t *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	m.byToken[t.Token] = *t
	return nil
}

func (m *mockTokenStore) FindByToken(ctx context.Context, token string) (model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byToken[token]
	if !ok {
		return model.RefreshToken{}, repository.ErrTokenNotFound
	}
	return t, nil
}

func (m *mockTokenStore) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byToken, token)
	return nil
}

func (m *mockTokenStore) DeleteByUser(ctx context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, t := range m.byToken {
		if t.UserID == userID {
			delete(m.byToken, tok)
		}
	}
	return nil
}

func (m *mockTokenStore) countForUser(userID uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.byToken {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// overwrite replaces a stored record, used to back-date expiries.
func (m *mockTokenStore) overwrite(t model.RefreshToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byToken[t.Token] = t
}

// recordingPublisher captures published events; failErr makes every
// publish fail to exercise the fire-and-forget contract.
type recordingPublisher struct {
	mu      sync.Mutex
	events  []q.UserEvent
	failErr error
}

func (p *recordingPublisher) Publish(ctx context.Context, e q.UserEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return p.failErr
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []q.UserEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []q.UserEvent
	for _, e := range p.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      "test-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
	}
}

type fixture struct {
	svc    *AuthService
	users  *mockUserStore
	tokens *mockTokenStore
	pub    *recordingPublisher
}

func newFixture() *fixture {
	users := newMockUserStore()
	tokens := newMockTokenStore()
	pub := &recordingPublisher{}
	return &fixture{
		svc:    NewAuthService(testConfig(), users, tokens, pub),
		users:  users,
		tokens: tokens,
		pub:    pub,
	}
}

func registerInput(email, tenant string) RegisterInput {
	academy := uint64(42)
	return RegisterInput{
		Name:      "Ada Lovelace",
		Email:     email,
		Password:  "s3cret-pass",
		Role:      model.RoleStudent,
		TenantID:  tenant,
		AcademyID: &academy,
		Phone:     "+1-555-0101",
	}
}

// registerActive registers a user and promotes it to ACTIVE the way
// the external approval workflow would.
func (f *fixture) registerActive(t *testing.T, email, tenant string) model.User {
	t.Helper()
	if _, err := f.svc.Register(context.Background(), registerInput(email, tenant)); err != nil {
		t.Fatalf("register: %v", err)
	}
	u, err := f.users.GetByEmail(context.Background(), tenant, email)
	if err != nil {
		t.Fatalf("lookup registered user: %v", err)
	}
	f.users.setStatus(u.ID, model.StatusActive)
	u.Status = model.StatusActive
	return u
}

func TestRegisterCreatesPendingUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	msg, err := f.svc.Register(ctx, registerInput("ada@example.com", "tenant-a"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.Contains(msg, "approval") {
		t.Errorf("expected pending-approval acknowledgment, got %q", msg)
	}

	u, err := f.users.GetByEmail(ctx, "tenant-a", "ada@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u.Status != model.StatusPendingApproval {
		t.Errorf("status = %s, want %s", u.Status, model.StatusPendingApproval)
	}
	if u.PasswordHash == "s3cret-pass" || u.PasswordHash == "" {
		t.Errorf("password stored in non-hashed form")
	}

	// Correct credentials must not authenticate before approval.
	if _, err := f.svc.Login(ctx, "ada@example.com", "s3cret-pass", "tenant-a"); err != ErrAccountNotActive {
		t.Errorf("login before approval: err = %v, want ErrAccountNotActive", err)
	}

	regs := f.pub.ofType(q.EventUserRegistered)
	if len(regs) != 1 {
		t.Fatalf("USER_REGISTERED events = %d, want 1", len(regs))
	}
	ev := regs[0]
	if ev.UserID != u.ID || ev.Email != u.Email || ev.TenantID != "tenant-a" || ev.Role != string(model.RoleStudent) {
		t.Errorf("unexpected registration event payload: %+v", ev)
	}
	if ev.AcademyID == nil || *ev.AcademyID != 42 {
		t.Errorf("registration event missing academy id: %+v", ev)
	}
}

func TestRegisterDuplicateTenantEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, registerInput("ada@example.com", "tenant-a")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := f.svc.Register(ctx, registerInput("ada@example.com", "tenant-a")); err != repository.ErrEmailExists {
		t.Fatalf("second register: err = %v, want ErrEmailExists", err)
	}
	if got := f.users.count(); got != 1 {
		t.Errorf("user count = %d, want 1", got)
	}

	// The same email in a different tenant is a different identity.
	if _, err := f.svc.Register(ctx, registerInput("ada@example.com", "tenant-b")); err != nil {
		t.Errorf("register in second tenant: %v", err)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.registerActive(t, "ada@example.com", "tenant-a")

	if _, err := f.svc.Login(ctx, "nobody@example.com", "s3cret-pass", "tenant-a"); err != ErrInvalidCredentials {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := f.svc.Login(ctx, "ada@example.com", "wrong-pass", "tenant-a"); err != ErrInvalidCredentials {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	// A tenant mismatch must look exactly like an unknown account.
	if _, err := f.svc.Login(ctx, "ada@example.com", "s3cret-pass", "tenant-b"); err != ErrInvalidCredentials {
		t.Errorf("wrong tenant: err = %v, want ErrInvalidCredentials", err)
	}

	if got := f.tokens.countForUser(u.ID); got != 0 {
		t.Errorf("refresh tokens after failed logins = %d, want 0", got)
	}
	if got := len(f.pub.ofType(q.EventUserLogin)); got != 0 {
		t.Errorf("USER_LOGIN events after failed logins = %d, want 0", got)
	}
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.registerActive(t, "ada@example.com", "tenant-a")

	sess, err := f.svc.Login(ctx, "ada@example.com", "s3cret-pass", "tenant-a")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.UserID != u.ID || sess.Email != u.Email || sess.TenantID != "tenant-a" || sess.Role != string(model.RoleStudent) {
		t.Errorf("unexpected session identity: %+v", sess)
	}
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		t.Fatalf("session missing tokens: %+v", sess)
	}

	access, err := utils.VerifyToken("test-secret", sess.AccessToken)
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if access.TokenType != utils.TokenTypeAccess || access.UserID != u.ID || access.TenantID != "tenant-a" {
		t.Errorf("unexpected access claims: %+v", access)
	}
	refresh, err := utils.VerifyToken("test-secret", sess.RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh token: %v", err)
	}
	if refresh.TokenType != utils.TokenTypeRefresh {
		t.Errorf("refresh token typ = %q, want %q", refresh.TokenType, utils.TokenTypeRefresh)
	}

	rec, err := f.tokens.FindByToken(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh record not stored: %v", err)
	}
	wantExp := time.Now().UTC().Add(7 * 24 * time.Hour)
	if diff := rec.ExpiresAt.Sub(wantExp); diff < -time.Minute || diff > time.Minute {
		t.Errorf("record expiry = %v, want about %v", rec.ExpiresAt, wantExp)
	}

	logins := f.pub.ofType(q.EventUserLogin)
	if len(logins) != 1 {
		t.Fatalf("USER_LOGIN events = %d, want 1", len(logins))
	}
	if logins[0].UserID != u.ID || logins[0].Role != "" {
		t.Errorf("unexpected login event payload: %+v", logins[0])
	}
}

// Back-to-back logins by the same user happen within the same second;
// each must still mint its own refresh token and its own store record.
func TestLoginTwiceIssuesDistinctRefreshTokens(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.registerActive(t, "ada@example.com", "tenant-a")

	sess1, err := f.svc.Login(ctx, "ada@example.com", "s3cret-pass", "tenant-a")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	sess2, err := f.svc.Login(ctx, "ada@example.com", "s3cret-pass", "tenant-a")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if sess1.RefreshToken == sess2.RefreshToken {
		t.Fatalf("two logins produced the same refresh token string")
	}
	if got := f.tokens.countForUser(u.ID); got != 2 {
		t.Errorf("refresh records = %d, want 2", got)
	}
	// Both tokens are independently exchangeable.
	for _, raw := range []string{sess1.RefreshToken, sess2.RefreshToken} {
		if _, err := f.svc.Refresh(ctx, raw); err != nil {
			t.Errorf("refresh: %v", err)
		}
	}
}

func TestRegisterRejectsInvalidRole(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	in := registerInput("ada@example.com", "tenant-a")
	in.Role = model.Role("SUPERHERO")
	if _, err := f.svc.Register(ctx, in); err != ErrInvalidRole {
		t.Fatalf("register with unknown role: err = %v, want ErrInvalidRole", err)
	}
	if got := f.users.count(); got != 0 {
		t.Errorf("user count = %d, want 0", got)
	}
	if got := len(f.pub.ofType(q.EventUserRegistered)); got != 0 {
		t.Errorf("USER_REGISTERED events = %d, want 0", got)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.registerActive(t, "ada@example.com", "tenant-a")

	if _, err := f.svc.Refresh(ctx, "not-a-token"); err != utils.ErrInvalidToken {
		t.Errorf("garbage token: err = %v, want ErrInvalidToken", err)
	}

	// An access token is well signed but has the wrong typ claim.
	sess, err := f.svc.Login(ctx, "ada@example.com", "s3cret-pass", "tenant-a")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, sess.AccessToken); err != utils.ErrInvalidToken {
		t.Errorf("access token as refresh: err = %v, want ErrInvalidToken", err)
	}

	// Well signed, right typ, but never stored (e.g. already revoked).
	minted, err := utils.NewRefreshToken("test-secret", &u, 7)
	if err != nil {
		t.Fatalf("mint refresh: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, minted.Token); err != repository.ErrTokenNotFound {
		t.Errorf("unstored token: err = %v, want ErrTokenNotFound", err)
	}
}

func TestRefreshExpiredDeletesRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerActive(t, "ada@example.com", "tenant-a")

	sess, err := f.svc.Login(ctx, "ada@example.com", "s3cret-pass", "tenant-a")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Back-date the stored record; the JWT itself is still unexpired,
	// so only the server-side record check can catch this.
	rec, err := f.tokens.FindByToken(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("find record: %v", err)
	}
	rec.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	f.tokens.overwrite(rec)

	if _, err := f.svc.Refresh(ctx, sess.RefreshToken); err != ErrTokenExpired {
		t.Fatalf("expired record: err = %v, want ErrTokenExpired", err)
	}
	// Cleanup-on-detection: the record is gone, so a retry reports the
	// token as unknown rather than expired.
	if _, err := f.svc.Refresh(ctx, sess.RefreshToken); err != repository.ErrTokenNotFound {
		t.Errorf("retry after cleanup: err = %v, want ErrTokenNotFound", err)
	}
}

func TestRefreshReturnsNewAccessSameRefresh(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.registerActive(t, "ada@example.com", "tenant-a")

	sess, err := f.svc.Login(ctx, "ada@example.com", "s3cret-pass", "tenant-a")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	eventsBefore := len(f.pub.ofType(q.EventUserLogin))

	refreshed, err := f.svc.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken != sess.RefreshToken {
		t.Errorf("refresh token rotated; want the same string back")
	}
	claims, err := utils.VerifyToken("test-secret", refreshed.AccessToken)
	if err != nil {
		t.Fatalf("verify new access token: %v", err)
	}
	if claims.UserID != u.ID {
		t.Errorf("new access token user = %d, want %d", claims.UserID, u.ID)
	}
	if refreshed.Message != "Token refreshed" {
		t.Errorf("message = %q", refreshed.Message)
	}

	// No event is published on refresh.
	if got := len(f.pub.ofType(q.EventUserLogin)); got != eventsBefore {
		t.Errorf("USER_LOGIN events changed on refresh: %d -> %d", eventsBefore, got)
	}
	if got := len(f.pub.ofType(q.EventUserLogout)); got != 0 {
		t.Errorf("USER_LOGOUT events on refresh = %d, want 0", got)
	}
}

func TestLogoutRevokesAllTokens(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.registerActive(t, "ada@example.com", "tenant-a")

	// Two logins leave two live refresh records.
	sess1, err := f.svc.Login(ctx, "ada@example.com", "s3cret-pass", "tenant-a")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	sess2, err := f.svc.Login(ctx, "ada@example.com", "s3cret-pass", "tenant-a")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if sess1.RefreshToken == sess2.RefreshToken {
		t.Fatalf("both logins minted the same refresh token")
	}
	if got := f.tokens.countForUser(u.ID); got != 2 {
		t.Fatalf("refresh records = %d, want 2", got)
	}

	principal, err := utils.VerifyToken("test-secret", sess1.AccessToken)
	if err != nil {
		t.Fatalf("verify principal: %v", err)
	}
	if err := f.svc.Logout(ctx, &principal); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if got := f.tokens.countForUser(u.ID); got != 0 {
		t.Errorf("refresh records after logout = %d, want 0", got)
	}
	if got := len(f.pub.ofType(q.EventUserLogout)); got != 1 {
		t.Errorf("USER_LOGOUT events = %d, want 1", got)
	}

	// Both refresh tokens are now unusable.
	if _, err := f.svc.Refresh(ctx, sess1.RefreshToken); err != repository.ErrTokenNotFound {
		t.Errorf("refresh after logout: err = %v, want ErrTokenNotFound", err)
	}
}

func TestLogoutWithoutPrincipalIsNoop(t *testing.T) {
	f := newFixture()
	if err := f.svc.Logout(context.Background(), nil); err != nil {
		t.Fatalf("logout without principal: %v", err)
	}
	if got := len(f.pub.ofType(q.EventUserLogout)); got != 0 {
		t.Errorf("USER_LOGOUT events = %d, want 0", got)
	}
}

func TestValidateStalenessWindow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.registerActive(t, "ada@example.com", "tenant-a")
	sess, err := f.svc.Login(ctx, "ada@example.com", "s3cret-pass", "tenant-a")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	principal, err := utils.VerifyToken("test-secret", sess.AccessToken)
	if err != nil {
		t.Fatalf("verify principal: %v", err)
	}
	if err := f.svc.Logout(ctx, &principal); err != nil {
		t.Fatalf("logout: %v", err)
	}

	// Validate is signature-and-expiry only: the access token stays
	// valid after logout until its embedded expiry passes.
	if !f.svc.Validate(sess.AccessToken) {
		t.Errorf("access token should validate during the staleness window")
	}
	if f.svc.Validate("garbage.token.here") {
		t.Errorf("garbage token must not validate")
	}
}

func TestEventPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture()
	f.pub.failErr = context.DeadlineExceeded
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, registerInput("ada@example.com", "tenant-a")); err != nil {
		t.Fatalf("register with failing publisher: %v", err)
	}
	u, _ := f.users.GetByEmail(ctx, "tenant-a", "ada@example.com")
	f.users.setStatus(u.ID, model.StatusActive)

	sess, err := f.svc.Login(ctx, "ada@example.com", "s3cret-pass", "tenant-a")
	if err != nil {
		t.Fatalf("login with failing publisher: %v", err)
	}
	// The primary mutation is durable even though publishing failed.
	if _, err := f.tokens.FindByToken(ctx, sess.RefreshToken); err != nil {
		t.Errorf("refresh record missing after publish failure: %v", err)
	}
}

func TestConcurrentRegistrationSingleWinner(t *testing.T) {
	f := newFixture()
	const n = 16

	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(context.Background(), registerInput("ada@example.com", "tenant-a"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch err {
		case nil:
			ok++
		case repository.ErrEmailExists:
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != n-1 {
		t.Errorf("successes = %d, duplicates = %d, want 1 and %d", ok, dup, n-1)
	}
	if got := f.users.count(); got != 1 {
		t.Errorf("user count = %d, want 1", got)
	}
}
