package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rsreu-dev/rsreu-schedule-bot/internal/schedule"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/telegram"
)

// BroadcastScheduler раз в сутки, в настроенное время, рассылает всем
// подписчикам расписание на день и заново ставит им напоминания.
// Цикл опрашивает часы каждые 30 секунд; дата последнего запуска защищает
// от повторной рассылки, пока минута срабатывания не прошла. Если процесс
// был выключен в момент срабатывания, рассылка за этот день пропускается.
type BroadcastScheduler struct {
	store     UserStore
	schedules ScheduleProvider
	reminders *ReminderScheduler
	sender    telegram.Sender
	loc       *time.Location

	hour   int
	minute int

	interval time.Duration
	cooldown time.Duration
	pacing   time.Duration
	now      func() time.Time

	lastRun string
}

// NewBroadcastScheduler создает планировщик ежедневной рассылки
func NewBroadcastScheduler(store UserStore, schedules ScheduleProvider, reminders *ReminderScheduler,
	sender telegram.Sender, loc *time.Location, hour, minute int) *BroadcastScheduler {
	return &BroadcastScheduler{
		store:     store,
		schedules: schedules,
		reminders: reminders,
		sender:    sender,
		loc:       loc,
		hour:      hour,
		minute:    minute,
		interval:  30 * time.Second,
		cooldown:  time.Minute,
		pacing:    500 * time.Millisecond,
		now:       time.Now,
	}
}

// Run крутит цикл рассылки до завершения процесса. Сбой одного тика
// логируется, и после паузы цикл продолжается — планировщик не должен
// умирать из-за единичной ошибки.
func (b *BroadcastScheduler) Run(ctx context.Context) {
	log.Printf("Фоновая задача рассылки запущена, время рассылки %02d:%02d", b.hour, b.minute)

	for {
		wait := b.interval
		if err := b.safeTick(ctx); err != nil {
			log.Printf("Критическая ошибка в цикле рассылки: %v", err)
			wait = b.cooldown
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			log.Println("Остановка цикла рассылки")
			return
		}
	}
}

func (b *BroadcastScheduler) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	b.tick(ctx)
	return nil
}

// tick проверяет, наступила ли минута рассылки и не было ли рассылки сегодня
func (b *BroadcastScheduler) tick(ctx context.Context) {
	now := b.now().In(b.loc)

	if now.Hour() != b.hour || now.Minute() != b.minute {
		return
	}

	today := now.Format("2006-01-02")
	if b.lastRun == today {
		return
	}

	log.Printf("Начинаю ежедневную рассылку за %s", today)
	b.broadcast(ctx, now)
	b.lastRun = today
}

// broadcast рассылает расписание всем подписчикам. Ошибка по одному
// получателю не прерывает рассылку остальным.
func (b *BroadcastScheduler) broadcast(ctx context.Context, now time.Time) {
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.loc)

	targets, err := b.store.ListBroadcastTargets(ctx)
	if err != nil {
		log.Printf("Ошибка получения списка подписчиков: %v", err)
		return
	}

	log.Printf("Начинаю рассылку %d пользователям", len(targets))
	if len(targets) == 0 {
		return
	}

	var sent, skipped, failed int

	for _, target := range targets {
		switch b.sendDaily(ctx, target.UserID, target.FacultyID, target.GroupID, date) {
		case deliverySent:
			sent++
		case deliverySkipped:
			skipped++
		case deliveryFailed:
			failed++
		}

		select {
		case <-time.After(b.pacing):
		case <-ctx.Done():
			return
		}
	}

	log.Printf("Итого: %d отправлено, %d пропущено, %d ошибок", sent, skipped, failed)
}

type deliveryResult int

const (
	deliverySent deliveryResult = iota
	deliverySkipped
	deliveryFailed
)

// sendDaily отправляет одному пользователю расписание на день и заново
// ставит его напоминания
func (b *BroadcastScheduler) sendDaily(ctx context.Context, userID int64, facultyID, groupID string, date time.Time) deliveryResult {
	user, err := b.store.Get(ctx, userID)
	if err != nil {
		log.Printf("Ошибка чтения профиля пользователя %d: %v", userID, err)
		return deliveryFailed
	}
	if user == nil {
		return deliverySkipped
	}

	lessons := b.schedules.GetDailySchedule(ctx, facultyID, groupID, date, true)
	if len(lessons) == 0 {
		log.Printf("У пользователя %d нет пар на сегодня", userID)
		return deliverySkipped
	}

	message := schedule.FormatDailyMessage(date, user.FacultyName, user.GroupName, lessons)

	if err := b.sender.SendMessage(userID, message); err != nil {
		if errors.Is(err, telegram.ErrBlockedByUser) {
			log.Printf("Пользователь %d заблокировал бота, деактивируем", userID)
			if derr := b.store.Deactivate(ctx, userID); derr != nil {
				log.Printf("Ошибка деактивации пользователя %d: %v", userID, derr)
			}
		} else {
			log.Printf("Ошибка отправки пользователю %d: %v", userID, err)
		}
		return deliveryFailed
	}

	b.reminders.Schedule(ctx, userID, facultyID, groupID, date)
	return deliverySent
}
