package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"quill/api/internal/store"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users         map[string]store.User
	emailIndex    map[string]string // email -> userID
	verifications map[string]store.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:         make(map[string]store.User),
		emailIndex:    make(map[string]string),
		verifications: make(map[string]store.User),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func (m *mockUserStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if user, ok := m.users[userID]; ok {
		user.VerificationToken = token
		user.VerificationExpiresAt = &expiresAt
		m.users[userID] = user
		m.verifications[token] = user
	}
	return nil
}

func (m *mockUserStore) VerifyUserEmail(ctx context.Context, token string) error {
	if user, ok := m.verifications[token]; ok {
		user.IsEmailVerified = true
		m.users[user.ID] = user
		m.emailIndex[user.Email] = user.ID
		return nil
	}
	return errors.New("invalid token")
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	if user, ok := m.users[userID]; ok {
		user.PasswordHash = passwordHash
		m.users[userID] = user
		return nil
	}
	return errors.New("user not found")
}

func TestRegisterCreatesUser(t *testing.T) {
	m := newMockUserStore()
	svc := NewService(m)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Username: "avery",
		Email:    "avery@example.com",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if resp.UserID == "" {
		t.Fatal("expected user ID")
	}
	if resp.VerificationToken == "" {
		t.Fatal("expected verification token")
	}

	user, err := m.GetUserByEmail(context.Background(), "avery@example.com")
	if err != nil {
		t.Fatalf("user not persisted: %v", err)
	}
	if user.PasswordHash == "secret1" {
		t.Fatal("password must be hashed, not stored in clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")); err != nil {
		t.Fatalf("hash does not match original password: %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	m := newMockUserStore()
	svc := NewService(m)

	if _, err := svc.Register(context.Background(), RegisterRequest{Username: "a", Email: "dup@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), RegisterRequest{Username: "b", Email: "dup@example.com", Password: "secret2"}); err == nil {
		t.Fatal("expected duplicate email error")
	}
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	svc := NewService(newMockUserStore())
	cases := []RegisterRequest{
		{Email: "a@b.c", Password: "secret1"},
		{Username: "a", Password: "secret1"},
		{Username: "a", Email: "a@b.c"},
		{Username: "a", Email: "a@b.c", Password: "short"},
	}
	for _, req := range cases {
		if _, err := svc.Register(context.Background(), req); err == nil {
			t.Fatalf("expected validation error for %+v", req)
		}
	}
}

func TestLogin(t *testing.T) {
	m := newMockUserStore()
	svc := NewService(m)

	resp, err := svc.Register(context.Background(), RegisterRequest{Username: "avery", Email: "avery@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	user, err := svc.Login(context.Background(), LoginRequest{Email: "avery@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != resp.UserID {
		t.Fatalf("expected user %s, got %s", resp.UserID, user.ID)
	}

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "avery@example.com", Password: "wrong"}); err == nil {
		t.Fatal("expected invalid password error")
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "secret1"}); err == nil {
		t.Fatal("expected unknown user error")
	}
}

func TestChangePassword(t *testing.T) {
	m := newMockUserStore()
	svc := NewService(m)

	resp, err := svc.Register(context.Background(), RegisterRequest{Username: "avery", Email: "avery@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := svc.ChangePassword(context.Background(), resp.UserID, "wrong", "newsecret"); err == nil {
		t.Fatal("expected current password check to fail")
	}
	if err := svc.ChangePassword(context.Background(), resp.UserID, "secret1", "short"); err == nil {
		t.Fatal("expected minimum length error")
	}
	if err := svc.ChangePassword(context.Background(), resp.UserID, "secret1", "newsecret"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "avery@example.com", Password: "newsecret"}); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestResetPassword(t *testing.T) {
	m := newMockUserStore()
	svc := NewService(m)

	if _, err := svc.Register(context.Background(), RegisterRequest{Username: "avery", Email: "avery@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := svc.ResetPassword(context.Background(), "nobody@example.com", "newsecret"); err == nil {
		t.Fatal("expected unknown user error")
	}
	if err := svc.ResetPassword(context.Background(), "avery@example.com", "newsecret"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "avery@example.com", Password: "newsecret"}); err != nil {
		t.Fatalf("login with reset password failed: %v", err)
	}
}

func TestVerifyEmailFlow(t *testing.T) {
	m := newMockUserStore()
	svc := NewService(m)

	resp, err := svc.Register(context.Background(), RegisterRequest{Username: "avery", Email: "avery@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := svc.VerifyEmail(context.Background(), "bogus"); err == nil {
		t.Fatal("expected invalid token error")
	}
	if err := svc.VerifyEmail(context.Background(), resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	user, _ := m.GetUserByEmail(context.Background(), "avery@example.com")
	if !user.IsEmailVerified {
		t.Fatal("expected user to be verified")
	}

	if _, err := svc.ResendVerification(context.Background(), "avery@example.com"); err == nil {
		t.Fatal("expected resend to fail for verified account")
	}
}

func TestResendVerification(t *testing.T) {
	m := newMockUserStore()
	svc := NewService(m)

	resp, err := svc.Register(context.Background(), RegisterRequest{Username: "avery", Email: "avery@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	token, err := svc.ResendVerification(context.Background(), "avery@example.com")
	if err != nil {
		t.Fatalf("ResendVerification failed: %v", err)
	}
	if token == "" || token == resp.VerificationToken {
		t.Fatalf("expected a fresh token, got %q", token)
	}
	if err := svc.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("verify with resent token failed: %v", err)
	}
}
