package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civictrack-be/models"
	"civictrack-be/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const minPasswordLength = 6

type UserService struct {
	users repository.UserRepository
	now   func() time.Time
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users, now: time.Now}
}

// Register creates a citizen account. A taken email is ErrConflict.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, invalidArgument("name and email are required")
	}
	if len(password) < minPasswordLength {
		return nil, invalidArgument("password must be at least %d characters", minPasswordLength)
	}

	now := s.now()
	user := &models.User{
		Name:      name,
		Email:     email,
		Password:  password,
		Role:      models.RoleCitizen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.HashPassword(); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: user with this email already exists", ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords both
// return ErrUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, err
	}
	if !user.ComparePassword(password) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

// EnsureAdmin promotes the account with the given email to admin, creating
// it first when it does not exist.
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		user, err = s.Register(ctx, name, email, password)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if err := s.users.SetRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("promote user: %w", err)
	}
	user.Role = models.RoleAdmin
	return user, nil
}
