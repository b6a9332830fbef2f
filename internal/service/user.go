package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/mdvault/internal/apperrors"
	"github.com/atinyakov/mdvault/internal/models"
)

// ErrBadCredentials is returned when login fails. It deliberately does
// not distinguish an unknown user from a wrong password.
var ErrBadCredentials = errors.New("invalid username or password")

// UserRepository defines the persistence operations required by the
// UserService.
type UserRepository interface {
	// CreateUser claims a username and inserts the row under a lock.
	CreateUser(ctx context.Context, username string, passwordHash []byte) (*models.User, error)
	// GetUserByName fetches a user, (nil, nil) if absent.
	GetUserByName(ctx context.Context, username string) (*models.User, error)
}

// UserService implements registration and login.
type UserService struct {
	repo UserRepository
}

// NewUserService constructs a UserService with the provided repository.
func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Register creates a new user. The bcrypt hash is computed before the
// repository transaction opens so no database lock is held during the
// slow hashing work.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" {
		return nil, apperrors.NewValidation(username, "username is empty")
	}
	if len(password) < 8 {
		return nil, apperrors.NewValidation(username, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateUser(ctx, username, hash)
}

// Authenticate verifies a username/password pair and returns the user.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.GetUserByName(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return u, nil
}
