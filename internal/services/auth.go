package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fastcrud/apiserver/internal/logging"
	"github.com/fastcrud/apiserver/internal/security"
	"github.com/fastcrud/apiserver/internal/store"
	"github.com/fastcrud/apiserver/types"
	"github.com/google/uuid"
)

const TokenTypeBearer = "Bearer"

// AccessToken is the result of a successful login.
type AccessToken struct {
	AccessToken string
	TokenType   string
}

// AuthService authenticates credentials and resolves bearer tokens.
type AuthService struct {
	repo      UserRepository
	hasher    security.PasswordHasher
	tokens    security.TokenCodec
	logger    *slog.Logger
	dummyHash string
}

// NewAuthService wires the authentication use-cases. It hashes a random
// password once so that logins for unknown emails still pay for a full
// hash comparison.
func NewAuthService(repo UserRepository, hasher security.PasswordHasher, tokens security.TokenCodec, logger *slog.Logger) (*AuthService, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("dummy password: %w", err)
	}
	dummyHash, err := hasher.Hash(hex.EncodeToString(buf[:]))
	if err != nil {
		return nil, fmt.Errorf("dummy password hash: %w", err)
	}

	return &AuthService{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		logger:    logger,
		dummyHash: dummyHash,
	}, nil
}

// Authenticate verifies email and password and issues an access token.
// Unknown emails and wrong passwords both yield ErrAuthenticationFailed.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (AccessToken, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return AccessToken{}, storageFailure("authenticate", err)
		}
		s.hasher.Verify(password, s.dummyHash)
		s.logger.DebugContext(ctx, "authentication failed", "reason", "unknown email")
		return AccessToken{}, ErrAuthenticationFailed
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.DebugContext(ctx, "authentication failed", "reason", "password mismatch", "user_id", user.ID)
		return AccessToken{}, ErrAuthenticationFailed
	}

	token, err := s.tokens.Issue(user.ID.String(), nil)
	if err != nil {
		return AccessToken{}, fmt.Errorf("issue token: %w", err)
	}

	s.logger.InfoContext(ctx, "user authenticated", "user_id", user.ID)
	return AccessToken{AccessToken: token, TokenType: TokenTypeBearer}, nil
}

// ResolveSession validates a bearer token and loads the user it names.
// Token problems and missing users yield ErrNotAuthenticated.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (types.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return types.User{}, ErrNotAuthenticated
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return types.User{}, ErrNotAuthenticated
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.DebugContext(ctx, "session subject not found", "user_id", id)
			return types.User{}, ErrNotAuthenticated
		}
		return types.User{}, storageFailure("resolve session", err)
	}
	return user, nil
}
