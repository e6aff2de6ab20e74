package notifications

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rsreu-dev/rsreu-schedule-bot/internal/schedule"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/telegram"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/users"
)

func newTestBroadcast(store UserStore, schedules ScheduleProvider, sender telegram.Sender, now time.Time) *BroadcastScheduler {
	reminders := NewReminderScheduler(schedules, store, sender, time.UTC)
	reminders.now = func() time.Time { return now }

	b := NewBroadcastScheduler(store, schedules, reminders, sender, time.UTC, 6, 0)
	b.pacing = time.Millisecond
	b.now = func() time.Time { return now }
	return b
}

func broadcastStore() *stubStore {
	return &stubStore{
		user: &users.User{
			UserID:      1,
			FacultyID:   "9",
			FacultyName: "ФВТ",
			GroupID:     "3077",
			GroupName:   "430",
			IsActive:    true,
		},
		targets: []users.BroadcastTarget{{UserID: 1, FacultyID: "9", GroupID: "3077"}},
	}
}

// Повторные тики в ту же минуту не дублируют рассылку
func TestTickRunsOncePerDay(t *testing.T) {
	sender := &recordingSender{}
	now := time.Date(2026, time.February, 20, 6, 0, 10, 0, time.UTC)
	b := newTestBroadcast(broadcastStore(), &stubSchedules{lessons: []schedule.Lesson{lessonAt(1, "08:10")}}, sender, now)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		b.tick(ctx)
	}

	if got := sender.count(); got != 1 {
		t.Errorf("отправлено %d сообщений, want 1", got)
	}
}

func TestTickOutsideWindow(t *testing.T) {
	sender := &recordingSender{}
	now := time.Date(2026, time.February, 20, 6, 1, 0, 0, time.UTC)
	b := newTestBroadcast(broadcastStore(), &stubSchedules{lessons: []schedule.Lesson{lessonAt(1, "08:10")}}, sender, now)

	b.tick(context.Background())

	if got := sender.count(); got != 0 {
		t.Errorf("отправлено %d сообщений вне окна рассылки, want 0", got)
	}
}

func TestTickRunsAgainNextDay(t *testing.T) {
	sender := &recordingSender{}
	store := broadcastStore()
	schedules := &stubSchedules{lessons: []schedule.Lesson{lessonAt(1, "08:10")}}

	now := time.Date(2026, time.February, 20, 6, 0, 0, 0, time.UTC)
	b := newTestBroadcast(store, schedules, sender, now)

	ctx := context.Background()
	b.tick(ctx)

	// Следующий день, та же минута
	next := now.Add(24 * time.Hour)
	b.now = func() time.Time { return next }
	b.reminders.now = b.now
	b.tick(ctx)

	if got := sender.count(); got != 2 {
		t.Errorf("отправлено %d сообщений за два дня, want 2", got)
	}
}

func TestBroadcastSkipsEmptySchedule(t *testing.T) {
	sender := &recordingSender{}
	now := time.Date(2026, time.February, 20, 6, 0, 0, 0, time.UTC)
	b := newTestBroadcast(broadcastStore(), &stubSchedules{}, sender, now)

	b.tick(context.Background())

	if got := sender.count(); got != 0 {
		t.Errorf("отправлено %d сообщений при пустом расписании, want 0", got)
	}
}

func TestBroadcastMessageContents(t *testing.T) {
	sender := &recordingSender{}
	now := time.Date(2026, time.February, 20, 6, 0, 0, 0, time.UTC)
	b := newTestBroadcast(broadcastStore(), &stubSchedules{lessons: []schedule.Lesson{lessonAt(1, "08:10")}}, sender, now)

	b.tick(context.Background())

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.messages) != 1 {
		t.Fatalf("отправлено %d сообщений, want 1", len(sender.messages))
	}
	msg := sender.messages[0]
	for _, want := range []string{"Пятница, 20 февраля", "ФВТ", "430", "Метрология"} {
		if !strings.Contains(msg, want) {
			t.Errorf("в сообщении нет %q: %q", want, msg)
		}
	}
}

// failingSender отказывает выбранным получателям
type failingSender struct {
	recordingSender
	failFor map[int64]error
}

func (s *failingSender) SendMessage(chatID int64, text string) error {
	if err, ok := s.failFor[chatID]; ok {
		return err
	}
	return s.recordingSender.SendMessage(chatID, text)
}

func TestBroadcastDeactivatesBlockedUser(t *testing.T) {
	store := broadcastStore()
	sender := &failingSender{
		failFor: map[int64]error{1: fmt.Errorf("api: %w", telegram.ErrBlockedByUser)},
	}
	now := time.Date(2026, time.February, 20, 6, 0, 0, 0, time.UTC)
	b := newTestBroadcast(store, &stubSchedules{lessons: []schedule.Lesson{lessonAt(1, "08:10")}}, sender, now)

	b.tick(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.deactivated) != 1 || store.deactivated[0] != 1 {
		t.Errorf("deactivated = %v, want [1]", store.deactivated)
	}
}

// Ошибка по одному получателю не прерывает рассылку остальным
func TestBroadcastContinuesAfterFailure(t *testing.T) {
	store := broadcastStore()
	store.targets = []users.BroadcastTarget{
		{UserID: 1, FacultyID: "9", GroupID: "3077"},
		{UserID: 2, FacultyID: "9", GroupID: "3077"},
	}
	sender := &failingSender{
		failFor: map[int64]error{1: fmt.Errorf("telegram: internal server error")},
	}
	now := time.Date(2026, time.February, 20, 6, 0, 0, 0, time.UTC)
	b := newTestBroadcast(store, &stubSchedules{lessons: []schedule.Lesson{lessonAt(1, "08:10")}}, sender, now)

	b.tick(context.Background())

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.chats) != 1 || sender.chats[0] != 2 {
		t.Errorf("chats = %v, want [2]", sender.chats)
	}
}

func TestSafeTickRecoversPanic(t *testing.T) {
	b := newTestBroadcast(broadcastStore(), &stubSchedules{}, &recordingSender{}, time.Now())
	b.now = func() time.Time { panic("clock broke") }

	err := b.safeTick(context.Background())
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Errorf("safeTick() error = %v, want panic wrapped", err)
	}
}
