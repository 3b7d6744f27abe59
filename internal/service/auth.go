package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/octobees/contact-crawler/internal/auth"
)

// ErrInvalidCredentials hides which part of the credential pair failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService validates the single operator credential configured through
// the environment and issues JWTs for it.
type AuthService struct {
	operatorEmail string
	passwordHash  string
	jwt           *auth.JWTManager
}

// NewAuthService constructs a new AuthService. The hash is a bcrypt
// digest of the operator password.
func NewAuthService(operatorEmail, passwordHash string, jwtManager *auth.JWTManager) *AuthService {
	return &AuthService{
		operatorEmail: strings.ToLower(strings.TrimSpace(operatorEmail)),
		passwordHash:  passwordHash,
		jwt:           jwtManager,
	}
}

// Login validates credentials and returns a JWT.
func (s *AuthService) Login(_ context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", errors.New("email and password must not be empty")
	}
	if s.operatorEmail == "" || s.passwordHash == "" {
		return "", errors.New("operator credential is not configured")
	}

	if strings.ToLower(strings.TrimSpace(email)) != s.operatorEmail {
		// Burn a comparison anyway so both failure paths cost the same.
		bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password))
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.jwt.GenerateToken("operator", s.operatorEmail)
}
