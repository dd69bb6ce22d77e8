package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUsernameTaken is returned by CreateUser on a duplicate username.
	ErrUsernameTaken = errors.New("username taken")
	// ErrUserInUse is returned by DeleteUser while projects still name the
	// user as creator.
	ErrUserInUse = errors.New("user still referenced")
)

const userColumns = "id, username, email, password_hash, role, is_active, last_login, date_joined"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var active int
	var lastLogin sql.NullInt64
	var joined int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &active, &lastLogin, &joined); err != nil {
		return nil, err
	}
	u.IsActive = active != 0
	u.LastLogin = nullMillis(lastLogin)
	u.DateJoined = fromMillis(joined)
	return &u, nil
}

// CreateUser inserts u and sets its ID.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.Role == "" {
		u.Role = RoleMember
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now()
	}
	var lastLogin any
	if u.LastLogin != nil {
		lastLogin = toMillis(*u.LastLogin)
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, role, is_active, last_login, date_joined)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.Role, boolInt(u.IsActive), lastLogin, toMillis(u.DateJoined),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UsersByID loads the given users keyed by ID. Unknown IDs are absent from
// the result.
func (s *Store) UsersByID(ctx context.Context, ids []int64) (map[int64]*User, error) {
	out := make(map[int64]*User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.q.QueryContext(ctx, "SELECT "+userColumns+" FROM users WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.q.ExecContext(ctx, "UPDATE users SET last_login = ? WHERE id = ?", toMillis(at), id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	res, err := s.q.ExecContext(ctx, "UPDATE users SET is_active = ? WHERE id = ?", boolInt(active), id)
	if err != nil {
		return fmt.Errorf("update user active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetUserRole(ctx context.Context, id int64, role string) error {
	res, err := s.q.ExecContext(ctx, "UPDATE users SET role = ? WHERE id = ?", role, id)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateUserEmail(ctx context.Context, id int64, email string) error {
	_, err := s.q.ExecContext(ctx, "UPDATE users SET email = ? WHERE id = ?", email, id)
	if err != nil {
		return fmt.Errorf("update user email: %w", err)
	}
	return nil
}

// DeleteUser removes a user. Owned teams and authored comments go with it;
// tasks keep their rows with the creator or assignee cleared.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserInUse
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateInactiveUsers flips is_active off for active users whose last
// login is before cutoff. Users that never logged in are untouched.
func (s *Store) DeactivateInactiveUsers(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		"UPDATE users SET is_active = 0 WHERE is_active = 1 AND last_login < ?",
		toMillis(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate users: %w", err)
	}
	return res.RowsAffected()
}
