package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/unisearch/internal/model"
	"github.com/hitoshi/unisearch/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	createFn      func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)

func testConfig() ServiceConfig {
	return ServiceConfig{SessionMaxAge: 86400, BcryptCost: bcrypt.MinCost}
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

// --- テスト ---

func TestNewService_DefaultsBcryptCost(t *testing.T) {
	svc := NewService(nil, nil, ServiceConfig{SessionMaxAge: 60})
	if svc.config.BcryptCost != bcrypt.DefaultCost {
		t.Errorf("BcryptCost = %d, want %d", svc.config.BcryptCost, bcrypt.DefaultCost)
	}
}

func TestSignup_CreatesUserAndSession(t *testing.T) {
	ctx := context.Background()

	var createdUser *model.User
	var createdSession *model.Session

	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	svc := NewService(userRepo, sessionRepo, testConfig())

	user, session, err := svc.Signup(ctx, "  Alice@Example.com ", "correct horse", " Alice ")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	if createdUser == nil || user.ID != createdUser.ID {
		t.Fatal("expected user to be created")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized", user.Email)
	}
	if user.Name != "Alice" {
		t.Errorf("name = %q, want %q", user.Name, "Alice")
	}
	if user.PasswordHash == "correct horse" {
		t.Fatal("password must not be stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}

	if createdSession == nil || session.ID != createdSession.ID {
		t.Fatal("expected session to be created")
	}
	if len(session.ID) != 64 {
		t.Errorf("len(session.ID) = %d, want 64", len(session.ID))
	}
	if session.UserID != user.ID {
		t.Errorf("session userID = %q, want %q", session.UserID, user.ID)
	}
	if session.ExpiresAt.Before(time.Now().Add(23 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want about 24h ahead", session.ExpiresAt)
	}
}

func TestSignup_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "empty email", email: "", password: "longenough"},
		{name: "malformed email", email: "not-an-email", password: "longenough"},
		{name: "display name form", email: "Bob <bob@example.com>", password: "longenough"},
		{name: "short password", email: "bob@example.com", password: "short"},
		{name: "too long password", email: "bob@example.com", password: string(make([]byte, 73))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userRepo := &mockUserRepo{
				createFn: func(ctx context.Context, user *model.User) error {
					t.Fatal("Create must not be called for invalid input")
					return nil
				},
			}
			svc := NewService(userRepo, &mockSessionRepo{}, testConfig())

			_, _, err := svc.Signup(context.Background(), tt.email, tt.password, "")
			if !errors.Is(err, model.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestSignup_EmailTaken(t *testing.T) {
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return model.ErrEmailTaken
		},
	}
	sessionCreated := false
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			sessionCreated = true
			return nil
		},
	}
	svc := NewService(userRepo, sessionRepo, testConfig())

	_, _, err := svc.Signup(context.Background(), "taken@example.com", "longenough", "")
	if !errors.Is(err, model.ErrEmailTaken) {
		t.Errorf("error = %v, want ErrEmailTaken", err)
	}
	if sessionCreated {
		t.Error("session must not be created when signup fails")
	}
}

func TestLogin_ValidPassword_CreatesSession(t *testing.T) {
	hash := hashPassword(t, "correct horse")
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			if email != "alice@example.com" {
				t.Errorf("email = %q, want normalized", email)
			}
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash}, nil
		},
	}
	var createdSession *model.Session
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}
	svc := NewService(userRepo, sessionRepo, testConfig())

	session, err := svc.Login(context.Background(), "Alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if session.UserID != "user-1" || createdSession == nil {
		t.Errorf("session = %+v", session)
	}
}

func TestLogin_WrongPassword_ReturnsInvalidCredentials(t *testing.T) {
	hash := hashPassword(t, "correct horse")
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash}, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			t.Fatal("session must not be created")
			return nil
		},
	}
	svc := NewService(userRepo, sessionRepo, testConfig())

	_, err := svc.Login(context.Background(), "alice@example.com", "battery staple")
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_UnknownUser_ReturnsInvalidCredentials(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSessionRepo{}, testConfig())

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever1")
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_RepositoryError_IsNotInvalidCredentials(t *testing.T) {
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return nil, errors.New("db error")
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, testConfig())

	_, err := svc.Login(context.Background(), "alice@example.com", "whatever1")
	if err == nil || errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("error = %v, want repository error", err)
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	ctx := context.Background()

	var deletedSessionID string

	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedSessionID = id
			return nil
		},
	}

	svc := NewService(nil, sessionRepo, testConfig())

	err := svc.Logout(ctx, "session-to-delete")
	if err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if deletedSessionID != "session-to-delete" {
		t.Errorf("deleted session ID = %q, want %q", deletedSessionID, "session-to-delete")
	}
}

func TestLogout_EmptySessionID_ReturnsError(t *testing.T) {
	svc := NewService(nil, nil, testConfig())

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestGetCurrentUser_ValidSession_ReturnsUser(t *testing.T) {
	ctx := context.Background()

	userID := "user-id-123"

	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{
				ID:        "session-valid",
				UserID:    userID,
				ExpiresAt: time.Now().Add(1 * time.Hour),
			}, nil
		},
	}

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{
				ID:    userID,
				Email: "user@example.com",
				Name:  "Test User",
			}, nil
		},
	}

	svc := NewService(userRepo, sessionRepo, testConfig())

	user, err := svc.GetCurrentUser(ctx, "session-valid")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user == nil || user.ID != userID {
		t.Errorf("user = %+v, want ID %q", user, userID)
	}
}

func TestGetCurrentUser_ExpiredSession_ReturnsUnauthenticated(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			// 期限切れセッション -> リポジトリはnilを返す
			return nil, nil
		},
	}

	svc := NewService(nil, sessionRepo, testConfig())

	_, err := svc.GetCurrentUser(context.Background(), "expired-session")
	if !errors.Is(err, model.ErrUnauthenticated) {
		t.Fatalf("error = %v, want ErrUnauthenticated", err)
	}
}

func TestGetCurrentUser_EmptySessionID_ReturnsUnauthenticated(t *testing.T) {
	svc := NewService(nil, nil, testConfig())

	_, err := svc.GetCurrentUser(context.Background(), "")
	if !errors.Is(err, model.ErrUnauthenticated) {
		t.Fatalf("error = %v, want ErrUnauthenticated", err)
	}
}
