package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/rsreu-dev/rsreu-schedule-bot/internal/db"
)

func newTestCache(t *testing.T) (*CacheRepository, *time.Time) {
	t.Helper()

	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	repo := NewCacheRepository(conn, 6*time.Hour)
	current := time.Date(2026, time.February, 20, 6, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return current }

	return repo, &current
}

func sampleLessons() []Lesson {
	return []Lesson{
		{Number: 1, Start: "08:10", End: "09:45", Type: TypeLecture, Subject: "Метрология", Teacher: "доц. Кряков В.Г.", Audience: "302 C"},
		{Number: 2, Start: "09:55", End: "11:30", Type: TypeLab, Subject: "Схемотехника ЭС", Teacher: "доц. Копейкин Ю.А.", Audience: "333 C"},
	}
}

func TestCachePutGet(t *testing.T) {
	repo, _ := newTestCache(t)
	ctx := context.Background()

	if err := repo.Put(ctx, "9", "3077", testDate, sampleLessons()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	lessons, ok, err := repo.Get(ctx, "9", "3077", testDate)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want hit")
	}
	if len(lessons) != 2 || lessons[0].Subject != "Метрология" || lessons[1].Number != 2 {
		t.Errorf("Get() lessons = %+v", lessons)
	}
}

func TestCacheMissWhenAbsent(t *testing.T) {
	repo, _ := newTestCache(t)

	_, ok, err := repo.Get(context.Background(), "9", "3077", testDate)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true for absent entry")
	}
}

func TestCacheMissAfterTTL(t *testing.T) {
	repo, current := newTestCache(t)
	ctx := context.Background()

	if err := repo.Put(ctx, "9", "3077", testDate, sampleLessons()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Ровно на границе TTL запись уже недействительна
	*current = current.Add(6 * time.Hour)

	_, ok, err := repo.Get(ctx, "9", "3077", testDate)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true after TTL expiry")
	}
}

func TestCacheHitJustInsideTTL(t *testing.T) {
	repo, current := newTestCache(t)
	ctx := context.Background()

	if err := repo.Put(ctx, "9", "3077", testDate, sampleLessons()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	*current = current.Add(6*time.Hour - time.Second)

	_, ok, err := repo.Get(ctx, "9", "3077", testDate)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Error("Get() ok = false within TTL")
	}
}

// Записи, сохраненные до появления нумерации пар, должны перечитываться
// даже в пределах TTL.
func TestCacheMissOnLegacyShape(t *testing.T) {
	repo, _ := newTestCache(t)
	ctx := context.Background()

	legacy := `[{"start":"08:10","end":"09:45","type":"лекция","subject":"Метрология","teacher":"доц. Кряков В.Г.","audience":"302 C"}]`
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO schedule_cache (group_id, faculty_id, target_date, schedule_data, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		"3077", "9", dateKey(testDate), legacy, repo.now())
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	_, ok, err := repo.Get(ctx, "9", "3077", testDate)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true for legacy-shape entry")
	}
}

func TestCachePutReplaces(t *testing.T) {
	repo, _ := newTestCache(t)
	ctx := context.Background()

	if err := repo.Put(ctx, "9", "3077", testDate, sampleLessons()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	replacement := []Lesson{{Number: 1, Start: "13:10", End: "14:45", Type: TypePractice, Subject: "Физкультура", Teacher: TeacherPlaceholder, Audience: AudiencePlaceholder}}
	if err := repo.Put(ctx, "9", "3077", testDate, replacement); err != nil {
		t.Fatalf("Put() replace error = %v", err)
	}

	lessons, ok, err := repo.Get(ctx, "9", "3077", testDate)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false after replace")
	}
	if len(lessons) != 1 || lessons[0].Subject != "Физкультура" {
		t.Errorf("Get() lessons = %+v, want replacement", lessons)
	}
}
