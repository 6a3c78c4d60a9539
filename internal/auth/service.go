// Package auth issues and validates JWT sessions for the Admin API.
// The service is backed by an *audit.Store instead of a raw *gorm.DB
// so the same connection lifecycle serves both audit records and user
// accounts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sentineld/avengine/internal/audit"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrStoreUnavailable   = errors.New("account store unavailable")
)

const tokenLifetime = 24 * time.Hour
const devSecretFallback = "default_secret_for_dev"

// Claims is the JWT payload minted for an authenticated admin user.
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and validates JWT sessions against the audit store's
// AdminUser table.
type Service struct {
	store  *audit.Store
	log    *zap.Logger
	secret []byte
}

// New builds a Service. The signing secret comes from JWT_SECRET; an
// unset variable falls back to a development default and logs a
// warning.
func New(store *audit.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = devSecretFallback
		log.Warn("using default JWT secret, set JWT_SECRET for production")
	}
	return &Service{store: store, log: log, secret: []byte(secret)}
}

// GenerateToken signs a 24-hour JWT for user.
func (s *Service) GenerateToken(user *audit.AdminUser) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "sentineld",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and verifies tokenString, then re-fetches the
// user from the store to confirm the account is still active.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*audit.AdminUser, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	user, err := s.store.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// AuthenticateUser verifies a username/password pair against the
// stored bcrypt hash.
func (s *Service) AuthenticateUser(ctx context.Context, username, password string) (*audit.AdminUser, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	user, err := s.store.AuthorizeUser(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CreateUser hashes password and inserts a new admin account.
func (s *Service) CreateUser(ctx context.Context, username, password, role string) (*audit.AdminUser, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := audit.AdminUser{Username: username, PasswordHash: string(hash), Role: role, IsActive: true}
	return s.store.CreateUser(ctx, user)
}

// ChangePassword verifies oldPassword before overwriting the stored
// hash with newPassword.
func (s *Service) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	if s.store == nil {
		return ErrStoreUnavailable
	}
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, userID, string(hash))
}
