package session

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Repository resolves and manages user records.
type Repository interface {
	GetUserByToken(ctx context.Context, token string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUserTier(ctx context.Context, id string, tier Tier) error
	CountUsers(ctx context.Context) (int, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, token, tier, created_at)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.Token, string(u.Tier), u.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetUserByToken(ctx context.Context, token string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, token, tier, created_at FROM users WHERE token = ?
	`, token)
	return scanUser(row)
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, token, tier, created_at FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

func (r *SQLiteRepository) UpdateUserTier(ctx context.Context, id string, tier Tier) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET tier = ? WHERE id = ?
	`, string(tier), id)
	return err
}

func (r *SQLiteRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var tier, createdAt string

	err := row.Scan(&u.ID, &u.Token, &tier, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u.Tier = Tier(tier)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}
