package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hash), nil
}

// Register creates a user with a bcrypt-hashed password.
func (d *Database) Register(ctx context.Context, username, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, invalid("username", "is required")
	}
	if strings.TrimSpace(password) == "" {
		return 0, invalid("password", "is required")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return 0, err
	}

	var id int64
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO users(username,password_hash) VALUES(?,?)`, username, hash)
		if err != nil {
			if uniqueViolation(err, "users.username") {
				return fmt.Errorf("%s: %w", username, ErrDuplicateUsername)
			}
			return fmt.Errorf("insert user: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Authenticate verifies the password and returns the matching user. Unknown
// usernames and wrong passwords both yield ErrInvalidCredentials.
func (d *Database) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var u User
	err := d.db.QueryRowContext(ctx, `SELECT id, username, password_hash FROM users WHERE username=?`,
		strings.TrimSpace(username)).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}
	return &u, nil
}

// GetUser fetches a single user.
func (d *Database) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := d.db.QueryRowContext(ctx, `SELECT id, username, password_hash FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users.
func (d *Database) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, username, password_hash FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// ResetPassword replaces a user's password.
func (d *Database) ResetPassword(ctx context.Context, id int64, password string) error {
	if strings.TrimSpace(password) == "" {
		return invalid("password", "is required")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET password_hash=? WHERE id=?`, hash, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("user", id)
		}
		return nil
	})
}
