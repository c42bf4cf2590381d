package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"musicfiles/internal/model"
)

const userColumns = `id, public_id, username, email, first_name, last_name, phone,
	        password_hash, refresh_token, refresh_token_expires_at, created_at, updated_at`

// UserRepository is the identity store: it owns user rows, role assignments
// and the per-user refresh token.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findOne(ctx, `lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return r.findOne(ctx, `lower(username) = lower($1)`, strings.TrimSpace(username))
}

func (r *UserRepository) FindByPublicID(ctx context.Context, publicID string) (model.User, error) {
	return r.findOne(ctx, `public_id = $1`, publicID)
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg any) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.PublicID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Phone,
			&u.PasswordHash, &u.RefreshToken, &u.RefreshTokenExpiresAt, &u.CreatedAt, &u.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`,
		strings.TrimSpace(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(username) = lower($1))`,
		strings.TrimSpace(username)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return exists, nil
}

// Create inserts the user and its initial role in one transaction. Duplicate
// email or username races resolve through the unique indexes and surface as
// the matching sentinel error.
func (r *UserRepository) Create(ctx context.Context, u model.User, role model.Role) (model.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.User{}, fmt.Errorf("begin create user: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO users (public_id, username, email, first_name, last_name, phone, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 RETURNING id`,
		u.PublicID, u.Username, u.Email, u.FirstName, u.LastName, u.Phone, u.PasswordHash, u.CreatedAt).
		Scan(&u.ID)
	if err != nil {
		return model.User{}, mapUniqueViolation(err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, u.ID, string(role)); err != nil {
		return model.User{}, fmt.Errorf("assign role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.User{}, fmt.Errorf("commit create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) AddRole(ctx context.Context, userID int64, role model.Role) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, string(role))
	if err != nil {
		return fmt.Errorf("add role: %w", err)
	}
	return nil
}

func (r *UserRepository) ListRoles(ctx context.Context, userID int64) ([]model.Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]model.Role, 0, 2)
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, model.Role(role))
	}
	return roles, rows.Err()
}

// SetRefreshToken overwrites the stored refresh token at login. Any previous
// token becomes unusable immediately.
func (r *UserRepository) SetRefreshToken(ctx context.Context, publicID string, token string, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = $2, refresh_token_expires_at = $3, updated_at = now()
		 WHERE public_id = $1`,
		publicID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// RotateRefreshToken replaces the stored refresh token only if it still
// equals previous. The WHERE clause is the compare-and-swap: of two requests
// racing with the same token, exactly one observes a row update and the
// other gets false.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, publicID string, previous string, next string, expiresAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = $3, refresh_token_expires_at = $4, updated_at = now()
		 WHERE public_id = $1 AND refresh_token = $2`,
		publicID, previous, next, expiresAt)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClearRefreshToken drops the stored refresh token, forcing a full login.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, publicID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = NULL, refresh_token_expires_at = NULL, updated_at = now()
		 WHERE public_id = $1`,
		publicID)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return model.ErrEmailTaken
		case strings.Contains(pgErr.ConstraintName, "username"):
			return model.ErrUsernameTaken
		}
	}
	return fmt.Errorf("create user: %w", err)
}
