package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RubachokBoss/evalmate/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "evalmate"

// Claims is the payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role models.Role `json:"role"`
}

type AuthService interface {
	// CheckLogin reports whether the credentials match the registry for role.
	CheckLogin(username, password string, role models.Role) bool
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	Authenticate(token string) (*models.Session, error)
	Logout(session *models.Session)
}

type authService struct {
	registries map[models.Role]map[string]string
	secret     []byte
	ttl        time.Duration
	now        func() time.Time
	logger     zerolog.Logger

	mu      sync.Mutex
	revoked map[string]time.Time // token id -> expiry
}

// NewAuthService takes username -> bcrypt hash registries for both roles.
func NewAuthService(teachers, students map[string]string, secret string, ttl time.Duration, logger zerolog.Logger) AuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &authService{
		registries: map[models.Role]map[string]string{
			models.RoleTeacher: normalizeRegistry(teachers),
			models.RoleStudent: normalizeRegistry(students),
		},
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		revoked: make(map[string]time.Time),
	}
}

// Имена пользователей сравниваются без учёта регистра: viper приводит ключи к нижнему регистру
func normalizeRegistry(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for username, hash := range in {
		out[normalizeUsername(username)] = hash
	}
	return out
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *authService) CheckLogin(username, password string, role models.Role) bool {
	registry, ok := s.registries[role]
	if !ok {
		return false
	}
	hash, ok := registry[normalizeUsername(username)]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}

	username := normalizeUsername(req.Username)
	if !s.CheckLogin(username, req.Password, req.Role) {
		s.logger.Warn().Str("username", username).Str("role", req.Role.String()).Msg("Failed login attempt")
		return nil, &AuthError{Err: ErrInvalidCredentials}
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tokenIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: req.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info().Str("username", username).Str("role", req.Role.String()).Msg("User logged in")

	return &models.LoginResponse{
		Token:     token,
		Username:  username,
		Role:      req.Role,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *authService) Authenticate(tokenString string) (*models.Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("%w: %v", ErrInvalidToken, err)}
	}
	if !claims.Role.Valid() || claims.ExpiresAt == nil {
		return nil, &AuthError{Err: ErrInvalidToken}
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, &AuthError{Err: ErrInvalidToken}
	}

	return &models.Session{
		ID:        claims.ID,
		Username:  claims.Subject,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the session's token until it would have expired anyway.
func (s *authService) Logout(session *models.Session) {
	if session == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, expiry := range s.revoked {
		if now.After(expiry) {
			delete(s.revoked, id)
		}
	}
	s.revoked[session.ID] = session.ExpiresAt

	s.logger.Info().Str("username", session.Username).Msg("User logged out")
}

// HashPassword produces a registry entry for the auth configuration.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
