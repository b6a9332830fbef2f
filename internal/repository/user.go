package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/atinyakov/mdvault/internal/models"
)

// ErrUsernameTaken is returned when a registration races or repeats an
// existing username.
var ErrUsernameTaken = errors.New("username already taken")

// PostgresUserRepository implements user persistence against a
// PostgreSQL database.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository using
// the provided *sql.DB.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// CreateUser claims a username and inserts the user row in one
// transaction. The existing-name check runs under a row lock so two
// concurrent registrations for the same name cannot both succeed.
// passwordHash must be computed by the caller before this call so the
// transaction never holds locks across slow hashing work.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, username string, passwordHash []byte) (*models.User, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username = $1 FOR UPDATE`, username,
	).Scan(&existing)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check username: %w", err)
	}

	u := models.User{ID: uuid.NewString(), Username: username, PasswordHash: passwordHash}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (id, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, u.ID, u.Username, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &u, nil
}

// GetUserByName fetches a user by username. Returns (nil, nil) when no
// row exists.
func (r *PostgresUserRepository) GetUserByName(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at FROM users WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetUserByName: %w", err)
	}
	return &u, nil
}
