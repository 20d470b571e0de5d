package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/openclose/ledger/pkg/middleware"
)

type fakeStore struct {
	byEmail map[string]User
}

func newFakeStore() *fakeStore {
	return &fakeStore{byEmail: make(map[string]User)}
}

func (f *fakeStore) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = "u1"
	}
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, err := NewService(newFakeStore(), "test")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	u, err := svc.Register(context.Background(), "a@example.com", "correct horse", "A")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.PasswordHash == "correct horse" || u.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}

	if _, err := svc.Register(context.Background(), "b@example.com", "short", "B"); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, err := NewService(newFakeStore(), "test")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Register(context.Background(), "a@example.com", "correct horse", "A"); err != nil {
		t.Fatalf("register: %v", err)
	}

	token, err := svc.Login(context.Background(), "a@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// The issued token must pass the HTTP middleware's verification.
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequireAuth(svc.PublicKey()))
	r.GET("/whoami", func(c *gin.Context) {
		userID, err := middleware.UserIDFromGinContext(c)
		if err != nil {
			t.Fatalf("user id missing: %v", err)
		}
		if userID != "u1" {
			t.Fatalf("unexpected user id %s", userID)
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	res = httptest.NewRecorder()
	r.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, err := NewService(newFakeStore(), "test")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Register(context.Background(), "a@example.com", "correct horse", "A"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(context.Background(), "a@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}
