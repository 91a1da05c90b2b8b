package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/metrics"
	"github.com/prn-tf/mediahost/internal/otp"
	"github.com/prn-tf/mediahost/internal/pkg/crypto"
	"github.com/prn-tf/mediahost/internal/session"
)

// =============================================================================
// Mocks
// =============================================================================

// MockUserRepository is an in-memory repository.UserRepository.
type MockUserRepository struct {
	users  map[int64]*domain.User
	nextID int64
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[int64]*domain.User), nextID: 1}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

// MockAPIKeyRepository is an in-memory repository.APIKeyRepository.
type MockAPIKeyRepository struct {
	keys map[string]*domain.APIKey
}

func NewMockAPIKeyRepository() *MockAPIKeyRepository {
	return &MockAPIKeyRepository{keys: make(map[string]*domain.APIKey)}
}

func (m *MockAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	m.keys[key.HashedToken] = key
	return nil
}

func (m *MockAPIKeyRepository) GetByHashedToken(ctx context.Context, hashedToken string) (*domain.APIKey, error) {
	if k, ok := m.keys[hashedToken]; ok {
		return k, nil
	}
	return nil, domain.ErrAPIKeyNotFound
}

func (m *MockAPIKeyRepository) GetByKeyID(ctx context.Context, keyID uuid.UUID) (*domain.APIKey, error) {
	for _, k := range m.keys {
		if k.KeyID == keyID {
			return k, nil
		}
	}
	return nil, domain.ErrAPIKeyNotFound
}

func (m *MockAPIKeyRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.APIKey, error) {
	var out []*domain.APIKey
	for _, k := range m.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *MockAPIKeyRepository) DeleteByKeyID(ctx context.Context, keyID uuid.UUID) error {
	for hash, k := range m.keys {
		if k.KeyID == keyID {
			delete(m.keys, hash)
			return nil
		}
	}
	return domain.ErrAPIKeyNotFound
}

func (m *MockAPIKeyRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	for hash, k := range m.keys {
		if k.UserID == userID {
			delete(m.keys, hash)
		}
	}
	return nil
}

// =============================================================================
// Fixture
// =============================================================================

type gateFixture struct {
	gate      *Gate
	users     *MockUserRepository
	keys      *MockAPIKeyRepository
	tokens    *session.TokenService
	encryptor *crypto.Encryptor
	user      *domain.User
	otpSecret string
}

const (
	testPassword = "Sup3rSecret!"
	testAdminKey = "admin-break-glass-key"
)

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	encryptor, err := crypto.NewEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	secret, err := otp.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	secretEnc, err := encryptor.EncryptString(secret)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}

	users := NewMockUserRepository()
	user := domain.NewUser("alice1", crypto.HashString(testPassword+"salt"), "salt", secretEnc, 1<<20, 1<<30)
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create user: %v", err)
	}

	keys := NewMockAPIKeyRepository()
	tokens := session.NewTokenService([]byte("gate-test-secret"), "https://mediahost.test", session.NewMemoryStore(), zerolog.Nop())

	verifier := NewCredentialVerifier(users, keys, tokens, zerolog.Nop())
	m := metrics.New(prometheus.NewRegistry())
	gate := NewGate(verifier, users, encryptor, []string{testAdminKey}, m, zerolog.Nop())

	return &gateFixture{
		gate:      gate,
		users:     users,
		keys:      keys,
		tokens:    tokens,
		encryptor: encryptor,
		user:      user,
		otpSecret: secret,
	}
}

func requireFailure(t *testing.T, result ClientAuthentication, status int, message string) {
	t.Helper()
	f, ok := result.(Failure)
	if !ok {
		t.Fatalf("expected Failure, got %T", result)
	}
	if f.StatusCode != status {
		t.Errorf("StatusCode = %d, want %d", f.StatusCode, status)
	}
	if f.Message != message {
		t.Errorf("Message = %q, want %q", f.Message, message)
	}
}

func (f *gateFixture) mintSession(t *testing.T) string {
	t.Helper()
	now := time.Now()
	token, err := f.tokens.Mint(session.MintInput{
		UserID:    f.user.ID,
		Rights:    domain.FullRightSet(),
		IssuedAt:  now,
		ExpiresAt: now.Add(15 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return token
}

// =============================================================================
// Tests
// =============================================================================

func TestAuthorizeBasic(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	p := Presentation{Scheme: SchemeBasic, Username: "alice1", Password: testPassword}

	result := f.gate.Authorize(ctx, domain.RightGenerateSession, p)
	success, ok := result.(SuccessBasic)
	if !ok {
		t.Fatalf("expected SuccessBasic, got %#v", result)
	}
	if success.User.ID != f.user.ID {
		t.Errorf("User.ID = %d, want %d", success.User.ID, f.user.ID)
	}

	// Passwords bootstrap sessions and nothing else.
	requireFailure(t, f.gate.Authorize(ctx, domain.RightUploadFile, p),
		http.StatusForbidden, "You may not perform this action.")
}

func TestAuthorizeBasicFailures(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	requireFailure(t,
		f.gate.Authorize(ctx, domain.RightGenerateSession, Presentation{Scheme: SchemeBasic, Username: "alice1", Password: "wrong"}),
		http.StatusUnauthorized, "Incorrect password.")

	requireFailure(t,
		f.gate.Authorize(ctx, domain.RightGenerateSession, Presentation{Scheme: SchemeBasic, Username: "nobody", Password: testPassword}),
		http.StatusNotFound, "There is no user with that username.")

	requireFailure(t,
		f.gate.Authorize(ctx, domain.RightGenerateSession, Presentation{Scheme: SchemeNone}),
		http.StatusBadRequest, "Improper authentication header.")
}

func TestAuthorizeSession(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	p := Presentation{Scheme: SchemeBearer, Token: f.mintSession(t)}

	result := f.gate.Authorize(ctx, domain.RightUploadFile, p)
	success, ok := result.(SuccessSession)
	if !ok {
		t.Fatalf("expected SuccessSession, got %#v", result)
	}
	if success.Rights != domain.FullRightSet() {
		t.Errorf("Rights = %b, want full set", success.Rights)
	}

	requireFailure(t,
		f.gate.Authorize(ctx, domain.RightUploadFile, Presentation{Scheme: SchemeBearer, Token: "garbage"}),
		http.StatusBadRequest, "The specified session is invalid.")
}

func TestAuthorizeAPIKeyMask(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	token := "some-api-key-token"
	key := domain.NewAPIKey(f.user.ID, "uploads only", crypto.HashString(token), domain.NewRightSet(domain.RightUploadFile))
	if err := f.keys.Create(ctx, key); err != nil {
		t.Fatalf("Create key: %v", err)
	}

	p := Presentation{Scheme: SchemeAPIKey, Token: token}

	result := f.gate.Authorize(ctx, domain.RightUploadFile, p)
	success, ok := result.(SuccessAPIKey)
	if !ok {
		t.Fatalf("expected SuccessAPIKey, got %#v", result)
	}
	if success.Admin {
		t.Error("expected a regular key, not admin")
	}

	// The stored mask bounds what the key may do.
	requireFailure(t, f.gate.Authorize(ctx, domain.RightDeleteFile, p),
		http.StatusForbidden, "You may not perform this action.")

	requireFailure(t,
		f.gate.Authorize(ctx, domain.RightUploadFile, Presentation{Scheme: SchemeAPIKey, Token: "unknown"}),
		http.StatusNotFound, "The specified API key is invalid.")
}

func TestAuthorizeAdminKey(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	requireFailure(t,
		f.gate.Authorize(ctx, domain.RightUploadFile, Presentation{Scheme: SchemeAPIKey, Token: testAdminKey}),
		http.StatusBadRequest, "No X-Behalf-Of header for the specified admin API key.")

	requireFailure(t,
		f.gate.Authorize(ctx, domain.RightUploadFile, Presentation{Scheme: SchemeAPIKey, Token: testAdminKey, BehalfOf: "nobody"}),
		http.StatusBadRequest, "The X-Behalf-Of username does not exist.")

	p := Presentation{Scheme: SchemeAPIKey, Token: testAdminKey, BehalfOf: "alice1"}

	result := f.gate.Authorize(ctx, domain.RightDeleteAccount, p)
	success, ok := result.(SuccessAPIKey)
	if !ok {
		t.Fatalf("expected SuccessAPIKey, got %#v", result)
	}
	if !success.Admin {
		t.Error("expected admin result")
	}
	if success.User.ID != f.user.ID {
		t.Errorf("acting user = %d, want %d", success.User.ID, f.user.ID)
	}
	if success.Rights != domain.FullRightSet() {
		t.Error("expected the admin override to grant every right")
	}
	// Note: delete-account demands OTP, which the admin override waives.
}

func TestAuthorizeOTP(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	bearer := f.mintSession(t)

	requireFailure(t,
		f.gate.Authorize(ctx, domain.RightResetPassword, Presentation{Scheme: SchemeBearer, Token: bearer}),
		http.StatusBadRequest, "OTP not provided.")

	requireFailure(t,
		f.gate.Authorize(ctx, domain.RightResetPassword, Presentation{Scheme: SchemeBearer, Token: bearer, OTP: "000000"}),
		http.StatusForbidden, "Incorrect OTP provided.")

	code, err := otp.Code(f.otpSecret, time.Now())
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	result := f.gate.Authorize(ctx, domain.RightResetPassword, Presentation{Scheme: SchemeBearer, Token: bearer, OTP: code})
	if _, ok := result.(SuccessSession); !ok {
		t.Fatalf("expected SuccessSession with valid OTP, got %#v", result)
	}

	// Rights without the OTP flag never ask for a code.
	result = f.gate.Authorize(ctx, domain.RightUploadFile, Presentation{Scheme: SchemeBearer, Token: bearer})
	if _, ok := result.(SuccessSession); !ok {
		t.Fatalf("expected SuccessSession without OTP, got %#v", result)
	}
}
