// Telegram-бот расписания РГРТУ: ежедневная рассылка расписания
// и напоминания за 20 минут до пары
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rsreu-dev/rsreu-schedule-bot/internal/bot"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/config"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/db"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/fetcher"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/groups"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/notifications"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/schedule"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/telegram"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/users"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadConfig("./configs/config.yaml")
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		log.Fatalf("Ошибка загрузки часового пояса %s: %v", cfg.Schedule.Timezone, err)
	}

	// Открываем базу данных
	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Ошибка открытия базы данных: %v", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("Ошибка закрытия базы данных: %v", err)
		}
	}()

	log.Println("База данных инициализирована")

	// Создаем бота
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Fatalf("Ошибка создания бота: %v", err)
	}
	log.Printf("Авторизован как: %s", api.Self.UserName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем компоненты
	sender := telegram.NewClient(api)

	pageFetcher := fetcher.New(fetcher.Config{
		MaxRequestsPerMinute: cfg.Fetcher.MaxRequestsPerMinute,
		Timeout:              cfg.Fetcher.Timeout,
		Retries:              cfg.Fetcher.Retries,
	})

	cacheRepo := schedule.NewCacheRepository(conn, time.Duration(cfg.Schedule.CacheTTLHours)*time.Hour)
	scheduleService := schedule.NewService(pageFetcher, cacheRepo, cfg.Schedule.BaseURL)

	userRepo := users.NewRepository(conn)

	groupIndex := groups.NewIndex(pageFetcher, cfg.Schedule.BaseURL)

	reminderScheduler := notifications.NewReminderScheduler(scheduleService, userRepo, sender, loc)
	broadcastScheduler := notifications.NewBroadcastScheduler(
		userRepo, scheduleService, reminderScheduler, sender, loc, cfg.Broadcast.Hour, cfg.Broadcast.Minute)

	handler := bot.NewHandler(sender, userRepo, scheduleService, groupIndex, loc, cfg.Broadcast.Hour, cfg.Broadcast.Minute)

	// Справочник групп загружается в фоне: до завершения загрузки бот
	// отвечает на команды, но просит повторить выбор группы позже
	go groupIndex.LoadAll(ctx)

	// Запускаем цикл ежедневной рассылки
	go broadcastScheduler.Run(ctx)

	// Настройка получения обновлений
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	go func() {
		for update := range updates {
			handler.HandleUpdate(ctx, update)
		}
	}()

	log.Println("Бот запущен")

	<-ctx.Done()
	log.Println("Получен сигнал завершения, останавливаем бота...")
	api.StopReceivingUpdates()
	log.Println("Бот остановлен")
}
