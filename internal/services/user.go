package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fastcrud/apiserver/internal/logging"
	"github.com/fastcrud/apiserver/internal/security"
	"github.com/fastcrud/apiserver/internal/store"
	"github.com/fastcrud/apiserver/types"
	"github.com/google/uuid"
)

// UserRepository defines persistence operations for users. Implementations
// must enforce email and phone uniqueness atomically and report violations
// as store.ConflictError.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByPhone(ctx context.Context, phone string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
}

// UpdateInput replaces the mutable fields of an account. An empty Password
// keeps the current one.
type UpdateInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	hasher security.PasswordHasher
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewUserService wires the user use-cases. events and logger may be nil.
func NewUserService(repo UserRepository, hasher security.PasswordHasher, events EventPublisher, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &UserService{
		repo:   repo,
		hasher: hasher,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Register creates a new active account after checking that neither the
// email nor the phone is taken. The store's own constraint settles races
// between concurrent registrations.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	if err := requireFields(in.Email, in.Phone, in.Password); err != nil {
		return types.User{}, err
	}

	if err := s.ensureAvailable(ctx, "register", in.Email, in.Phone, uuid.Nil); err != nil {
		return types.User{}, err
	}

	hashed, err := s.hashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hashed,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
	})
	if err != nil {
		return types.User{}, mapWriteError("register", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	publishUserEvent(ctx, s.events, s.logger, EventUserRegistered, user, s.now())
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, mapReadError("get user", err)
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return types.User{}, mapReadError("get user by email", err)
	}
	return user, nil
}

// Update replaces the account's profile and identity fields.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (types.User, error) {
	if strings.TrimSpace(in.Email) == "" {
		return types.User{}, &ValidationError{Field: "email", Reason: "is required"}
	}
	if strings.TrimSpace(in.Phone) == "" {
		return types.User{}, &ValidationError{Field: "phone", Reason: "is required"}
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, mapReadError("update user", err)
	}

	email, phone := "", ""
	if in.Email != current.Email {
		email = in.Email
	}
	if in.Phone != current.Phone {
		phone = in.Phone
	}
	if err := s.ensureAvailable(ctx, "update user", email, phone, current.ID); err != nil {
		return types.User{}, err
	}

	current.Email = in.Email
	current.Phone = in.Phone
	current.FirstName = in.FirstName
	current.LastName = in.LastName
	if in.Password != "" {
		hashed, err := s.hashPassword(in.Password)
		if err != nil {
			return types.User{}, err
		}
		current.PasswordHash = hashed
	}

	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return types.User{}, mapWriteError("update user", err)
	}
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapReadError("delete user", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapReadError("delete user", err)
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", id)
	publishUserEvent(ctx, s.events, s.logger, EventUserDeleted, user, s.now())
	return nil
}

// RequireSelf allows an authenticated user to act only on their own account.
func RequireSelf(actor types.User, target uuid.UUID) error {
	if actor.ID == uuid.Nil || actor.ID != target {
		return ErrPermissionDenied
	}
	return nil
}

// ensureAvailable checks email then phone against existing users other than
// self. Empty values are skipped.
func (s *UserService) ensureAvailable(ctx context.Context, op, email, phone string, self uuid.UUID) error {
	if email != "" {
		existing, err := s.repo.GetByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != self:
			return &ConflictError{Field: "email"}
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return storageFailure(op, err)
		}
	}
	if phone != "" {
		existing, err := s.repo.GetByPhone(ctx, phone)
		switch {
		case err == nil && existing.ID != self:
			return &ConflictError{Field: "phone"}
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return storageFailure(op, err)
		}
	}
	return nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrInvalidInput) {
			return "", &ValidationError{Field: "password", Reason: "must be between 1 and 72 bytes"}
		}
		return "", err
	}
	return hashed, nil
}

func requireFields(email, phone, password string) error {
	switch {
	case strings.TrimSpace(email) == "":
		return &ValidationError{Field: "email", Reason: "is required"}
	case strings.TrimSpace(phone) == "":
		return &ValidationError{Field: "phone", Reason: "is required"}
	case password == "":
		return &ValidationError{Field: "password", Reason: "is required"}
	}
	return nil
}

func mapReadError(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return storageFailure(op, err)
}

func mapWriteError(op string, err error) error {
	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		return &ConflictError{Field: conflict.Field}
	}
	return mapReadError(op, err)
}
