package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"merlionpos/internal/domain"
	"merlionpos/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.TrimSpace(strings.ToLower(user.Username))
	if user.Username == "" || user.Password == "" {
		return fmt.Errorf("%w: username and password required", store.ErrInvalidInput)
	}
	if user.Role == "" {
		user.Role = "cashier"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_users (username, password, recovery_email, role, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username, user.Password, nullIfEmpty(user.RecoveryEmail),
		user.Role, boolToInt(user.Active), fmtTime(time.Now().UTC()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %s taken", store.ErrInvalidInput, user.Username)
		}
		return err
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	username = strings.TrimSpace(strings.ToLower(username))

	var (
		u         domain.UserAccount
		active    int
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password, COALESCE(recovery_email, ''), COALESCE(role, 'cashier'),
		        COALESCE(active, 1), COALESCE(created_at, '')
		 FROM app_users WHERE username = ?`, username).
		Scan(&u.Username, &u.Password, &u.RecoveryEmail, &u.Role, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Active = active != 0
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, COALESCE(recovery_email, ''), COALESCE(role, 'cashier'),
		        COALESCE(active, 1), COALESCE(created_at, '')
		 FROM app_users ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var (
			u         domain.UserAccount
			active    int
			createdAt string
		)
		if err := rows.Scan(&u.Username, &u.RecoveryEmail, &u.Role, &active, &createdAt); err != nil {
			return nil, err
		}
		u.Active = active != 0
		u.CreatedAt = parseTime(createdAt)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password required", store.ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE app_users SET password = ? WHERE username = ?`, password, username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
