package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("db: not found")

// User is an API account. PasswordHash is a bcrypt hash, never the
// plaintext.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Users provides account and watchlist persistence.
type Users struct {
	pool *pgxpool.Pool
}

func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool}
}

func (u *Users) Create(ctx context.Context, user User) error {
	_, err := u.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`,
		user.ID, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("create user %s: %w", user.Email, err)
	}
	return nil
}

func (u *Users) GetByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := u.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %s: %w", email, err)
	}
	return user, nil
}

// Watch adds a document to a user's watchlist; watching twice is a
// no-op.
func (u *Users) Watch(ctx context.Context, userID, documentID string) error {
	_, err := u.pool.Exec(ctx, `
		INSERT INTO watchlist (user_id, document_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, documentID)
	if err != nil {
		return fmt.Errorf("watch %s for user %s: %w", documentID, userID, err)
	}
	return nil
}

func (u *Users) Unwatch(ctx context.Context, userID, documentID string) error {
	_, err := u.pool.Exec(ctx, `
		DELETE FROM watchlist WHERE user_id = $1 AND document_id = $2`, userID, documentID)
	if err != nil {
		return fmt.Errorf("unwatch %s for user %s: %w", documentID, userID, err)
	}
	return nil
}

func (u *Users) Watchlist(ctx context.Context, userID string) ([]string, error) {
	rows, err := u.pool.Query(ctx, `
		SELECT document_id FROM watchlist WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan watchlist row: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
