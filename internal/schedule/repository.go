package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CacheRepository хранит распарсенное расписание в таблице schedule_cache.
// Запись действительна, пока не истек TTL и пока у сохраненных пар есть
// номер: записи старого формата без номеров перечитываются заново.
type CacheRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewCacheRepository создает репозиторий кеша расписания
func NewCacheRepository(db *sql.DB, ttl time.Duration) *CacheRepository {
	return &CacheRepository{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}
}

// Get возвращает пары из кеша. Второй результат false означает промах:
// записи нет, она устарела или имеет старый формат.
func (r *CacheRepository) Get(ctx context.Context, facultyID, groupID string, date time.Time) ([]Lesson, bool, error) {
	query := `
		SELECT schedule_data, updated_at
		FROM schedule_cache
		WHERE group_id = ? AND faculty_id = ? AND target_date = ?`

	var data string
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, groupID, facultyID, dateKey(date)).Scan(&data, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read schedule cache: %w", err)
	}

	if r.now().Sub(updatedAt) >= r.ttl {
		return nil, false, nil
	}

	var lessons []Lesson
	if err := json.Unmarshal([]byte(data), &lessons); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached schedule: %w", err)
	}

	// Записи, сохраненные до появления нумерации пар, не содержат поля
	// number — их нужно перечитать с сайта даже в пределах TTL
	if len(lessons) > 0 && lessons[0].Number == 0 {
		return nil, false, nil
	}

	return lessons, true, nil
}

// Put сохраняет пары в кеш, полностью заменяя прежнюю запись по ключу
func (r *CacheRepository) Put(ctx context.Context, facultyID, groupID string, date time.Time, lessons []Lesson) error {
	data, err := json.Marshal(lessons)
	if err != nil {
		return fmt.Errorf("failed to encode schedule for cache: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO schedule_cache (group_id, faculty_id, target_date, schedule_data, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query, groupID, facultyID, dateKey(date), string(data), r.now())
	if err != nil {
		return fmt.Errorf("failed to write schedule cache: %w", err)
	}

	return nil
}

func dateKey(date time.Time) string {
	return date.Format("2006-01-02")
}
