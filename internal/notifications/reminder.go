// Package notifications реализует напоминания о парах и ежедневную рассылку
// расписания подписчикам
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rsreu-dev/rsreu-schedule-bot/internal/schedule"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/telegram"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/users"
)

// ReminderLead за сколько до начала пары отправляется напоминание
const ReminderLead = 20 * time.Minute

// ScheduleProvider выдает расписание группы на дату. Реализуется schedule.Service.
type ScheduleProvider interface {
	GetDailySchedule(ctx context.Context, facultyID, groupID string, date time.Time, useCache bool) []schedule.Lesson
}

// UserStore доступ к профилям подписчиков. Реализуется users.Repository.
type UserStore interface {
	Get(ctx context.Context, userID int64) (*users.User, error)
	ListBroadcastTargets(ctx context.Context) ([]users.BroadcastTarget, error)
	Deactivate(ctx context.Context, userID int64) error
}

// ReminderScheduler ставит напоминания о парах: по одному таймеру на каждую
// пару, начало которой еще не ближе чем за 20 минут. Напоминания живут только
// в памяти процесса и при перезапуске теряются.
type ReminderScheduler struct {
	schedules ScheduleProvider
	store     UserStore
	sender    telegram.Sender
	loc       *time.Location
	now       func() time.Time

	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

// NewReminderScheduler создает планировщик напоминаний
func NewReminderScheduler(schedules ScheduleProvider, store UserStore, sender telegram.Sender, loc *time.Location) *ReminderScheduler {
	return &ReminderScheduler{
		schedules: schedules,
		store:     store,
		sender:    sender,
		loc:       loc,
		now:       time.Now,
		tasks:     make(map[string]context.CancelFunc),
	}
}

// Schedule ставит напоминания пользователю на дату. Прежние напоминания под
// тем же ключом (пользователь, дата) снимаются целиком, так что повторный
// вызов — например после смены группы — не плодит дубликатов. Пары, до
// которых осталось меньше 20 минут, пропускаются: задним числом не напоминаем.
func (s *ReminderScheduler) Schedule(ctx context.Context, userID int64, facultyID, groupID string, date time.Time) {
	key := taskKey(userID, date)
	taskCtx := s.replaceTask(ctx, key)

	lessons := s.schedules.GetDailySchedule(ctx, facultyID, groupID, date, true)
	if len(lessons) == 0 {
		return
	}

	now := s.now().In(s.loc)
	armed := 0

	for _, lesson := range lessons {
		fireAt, ok := s.reminderTime(lesson, date)
		if !ok {
			log.Printf("Не удалось разобрать время пары %q для пользователя %d", lesson.Start, userID)
			continue
		}
		if !fireAt.After(now) {
			continue
		}

		go s.waitAndSend(taskCtx, key, userID, lesson, fireAt)
		armed++
	}

	log.Printf("Пользователю %d поставлено напоминаний на %s: %d", userID, date.Format("2006-01-02"), armed)
}

// Cancel снимает все непрозвучавшие напоминания пользователя на дату
func (s *ReminderScheduler) Cancel(userID int64, date time.Time) {
	s.dropTask(taskKey(userID, date))
}

// dropTask снимает задачу по ключу вместе со всеми ее таймерами
func (s *ReminderScheduler) dropTask(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.tasks[key]; ok {
		cancel()
		delete(s.tasks, key)
	}
}

// replaceTask снимает прежнюю задачу по ключу и регистрирует новую.
// Выполняется под мьютексом, поэтому два вызова Schedule по одному ключу
// не могут переплестись.
func (s *ReminderScheduler) replaceTask(ctx context.Context, key string) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.tasks[key]; ok {
		cancel()
	}

	taskCtx, cancel := context.WithCancel(ctx)
	s.tasks[key] = cancel
	return taskCtx
}

// reminderTime вычисляет момент отправки напоминания: начало пары минус 20 минут
func (s *ReminderScheduler) reminderTime(lesson schedule.Lesson, date time.Time) (time.Time, bool) {
	start, err := time.Parse("15:04", lesson.Start)
	if err != nil {
		return time.Time{}, false
	}

	lessonAt := time.Date(date.Year(), date.Month(), date.Day(), start.Hour(), start.Minute(), 0, 0, s.loc)
	return lessonAt.Add(-ReminderLead), true
}

// waitAndSend ждет момента напоминания и отправляет его. Отмена задачи
// снимает еще не прозвучавшие таймеры; уже отправленные напоминания она
// не затрагивает.
func (s *ReminderScheduler) waitAndSend(ctx context.Context, key string, userID int64, lesson schedule.Lesson, fireAt time.Time) {
	timer := time.NewTimer(fireAt.Sub(s.now()))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	err := s.sender.SendMessage(userID, schedule.FormatReminderMessage(lesson))
	if err == nil {
		return
	}

	if errors.Is(err, telegram.ErrBlockedByUser) {
		log.Printf("Пользователь %d заблокировал бота, деактивируем", userID)
		// Остальные таймеры этого дня снимаем: доставка больше не пройдет
		s.dropTask(key)
		if derr := s.store.Deactivate(context.Background(), userID); derr != nil {
			log.Printf("Ошибка деактивации пользователя %d: %v", userID, derr)
		}
		return
	}

	log.Printf("Ошибка отправки напоминания пользователю %d: %v", userID, err)
}

func taskKey(userID int64, date time.Time) string {
	return fmt.Sprintf("%d_%s", userID, date.Format("2006-01-02"))
}
