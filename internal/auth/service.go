package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned on a failed login. The message is the
// same for unknown users and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

const tokenTTL = time.Hour

// Service authenticates users and issues access tokens.
type Service interface {
	Register(ctx context.Context, email, password, displayName string) (User, error)
	Login(ctx context.Context, email, password string) (string, error)
	PublicKey() *rsa.PublicKey
}

type service struct {
	store      Store
	privateKey *rsa.PrivateKey
	issuer     string
}

// NewService creates a new auth service with a freshly generated signing key.
// Tokens do not survive a restart; clients re-authenticate.
func NewService(store Store, issuer string) (Service, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &service{store: store, privateKey: privateKey, issuer: issuer}, nil
}

func (s *service) Register(ctx context.Context, email, password, displayName string) (User, error) {
	if email == "" || password == "" {
		return User{}, fmt.Errorf("email and password are required")
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	u, err := s.store.CreateUser(ctx, User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
	})
	if err != nil {
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": u.ID,
		"iss": s.issuer,
		"exp": now.Add(tokenTTL).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(s.privateKey)
}

// PublicKey exposes the verification key for the auth middleware.
func (s *service) PublicKey() *rsa.PublicKey {
	return &s.privateKey.PublicKey
}
