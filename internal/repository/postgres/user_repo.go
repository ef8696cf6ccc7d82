package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"pollhub/internal/domain/user"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO users (id, username, email, first_name, last_name, password_hash)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at
    `
	err = tx.QueryRowContext(ctx, query,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash,
	).Scan(&u.CreatedAt)
	if err != nil {
		if pgErr := uniqueViolation(err); pgErr != nil {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return user.ErrEmailTaken
			}
			return user.ErrUsernameTaken
		}
		return err
	}

	for _, role := range u.Roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role_name) VALUES ($1, $2)`,
			u.ID, role,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.getOne(ctx, `WHERE username = $1`, username)
}

func (r *UserRepo) GetByUsernameOrEmail(ctx context.Context, value string) (*user.User, error) {
	return r.getOne(ctx, `WHERE username = $1 OR email = $1`, value)
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*user.User, error) {
	query := `
        SELECT id, username, email, first_name, last_name, password_hash, created_at
        FROM users ` + where
	u := &user.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}

	roles, err := r.loadRoles(ctx, []string{u.ID})
	if err != nil {
		return nil, err
	}
	u.Roles = roles[u.ID]
	return u, nil
}

func (r *UserRepo) GetByIDs(ctx context.Context, ids []string) ([]user.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
        SELECT id, username, email, first_name, last_name, password_hash, created_at
        FROM users WHERE id = ANY($1)
    `, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
			&u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	roles, err := r.loadRoles(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
	}
	return users, nil
}

func (r *UserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *UserRepo) exists(ctx context.Context, query, arg string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&exists)
	return exists, err
}

func (r *UserRepo) loadRoles(ctx context.Context, userIDs []string) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT user_id, role_name FROM user_roles WHERE user_id = ANY($1)
    `, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make(map[string][]string, len(userIDs))
	for rows.Next() {
		var userID, role string
		if err := rows.Scan(&userID, &role); err != nil {
			return nil, err
		}
		roles[userID] = append(roles[userID], role)
	}
	return roles, rows.Err()
}

func uniqueViolation(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr
	}
	return nil
}
