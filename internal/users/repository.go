package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository предоставляет доступ к таблице users
type Repository struct {
	db *sql.DB
}

// NewRepository создает новый репозиторий пользователей
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Save сохраняет профиль пользователя, заменяя прежний
func (r *Repository) Save(ctx context.Context, user *User) error {
	query := `
		INSERT OR REPLACE INTO users (user_id, faculty_id, faculty_name, group_id, group_name, last_activity, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`

	_, err := r.db.ExecContext(ctx, query,
		user.UserID, user.FacultyID, user.FacultyName, user.GroupID, user.GroupName, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save user %d: %w", user.UserID, err)
	}

	return nil
}

// Get возвращает профиль пользователя. Если профиля нет, возвращается (nil, nil).
func (r *Repository) Get(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT user_id, faculty_id, faculty_name, group_id, group_name, is_active
		FROM users
		WHERE user_id = ?`

	user := &User{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID,
		&user.FacultyID,
		&user.FacultyName,
		&user.GroupID,
		&user.GroupName,
		&user.IsActive,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	return user, nil
}

// ListBroadcastTargets возвращает всех пользователей для ежедневной рассылки
func (r *Repository) ListBroadcastTargets(ctx context.Context) ([]BroadcastTarget, error) {
	query := `
		SELECT user_id, faculty_id, group_id
		FROM users`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list broadcast targets: %w", err)
	}
	defer rows.Close()

	var targets []BroadcastTarget
	for rows.Next() {
		var t BroadcastTarget
		if err := rows.Scan(&t.UserID, &t.FacultyID, &t.GroupID); err != nil {
			return nil, fmt.Errorf("failed to scan broadcast target: %w", err)
		}
		targets = append(targets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return targets, nil
}

// Deactivate помечает пользователя неактивным (заблокировал бота)
func (r *Repository) Deactivate(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_active = 0 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user %d: %w", userID, err)
	}

	return nil
}

// Delete удаляет профиль пользователя
func (r *Repository) Delete(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}

	return nil
}

// Count возвращает количество пользователей в базе
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}

	return count, nil
}
