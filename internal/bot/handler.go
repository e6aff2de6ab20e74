// Package bot реализует команды и диалоги Telegram-бота
package bot

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rsreu-dev/rsreu-schedule-bot/internal/groups"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/notifications"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/schedule"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/telegram"
	"github.com/rsreu-dev/rsreu-schedule-bot/internal/users"
)

// Handler обрабатывает входящие сообщения бота
type Handler struct {
	sender    telegram.Sender
	users     *users.Repository
	schedules notifications.ScheduleProvider
	groups    *groups.Index
	loc       *time.Location

	broadcastHour   int
	broadcastMinute int

	// Чаты, от которых ждем ввода номера группы
	mu              sync.Mutex
	waitingForGroup map[int64]bool
}

// NewHandler создает обработчик команд
func NewHandler(sender telegram.Sender, usersRepo *users.Repository, schedules notifications.ScheduleProvider,
	index *groups.Index, loc *time.Location, broadcastHour, broadcastMinute int) *Handler {
	return &Handler{
		sender:          sender,
		users:           usersRepo,
		schedules:       schedules,
		groups:          index,
		loc:             loc,
		broadcastHour:   broadcastHour,
		broadcastMinute: broadcastMinute,
		waitingForGroup: make(map[int64]bool),
	}
}

// HandleUpdate — основной обработчик входящих обновлений
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	if update.Message.IsCommand() {
		h.handleCommand(ctx, chatID, update.Message.Command())
		return
	}

	// Если пользователь находится в процессе выбора группы
	if h.isWaitingForGroup(chatID) {
		h.processGroupInput(ctx, chatID, text)
		return
	}

	h.reply(chatID, "❌ Неизвестная команда.\nИспользуй /help для списка команд")
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, command string) {
	log.Printf("Команда /%s от пользователя %d", command, chatID)

	switch command {
	case "start":
		h.cmdStart(ctx, chatID)
	case "help":
		h.cmdHelp(ctx, chatID)
	case "group":
		h.cmdGroup(ctx, chatID)
	case "settings":
		h.cmdSettings(ctx, chatID)
	case "today":
		h.cmdDay(ctx, chatID, h.today(), "сегодня")
	case "tomorrow":
		h.cmdDay(ctx, chatID, h.today().AddDate(0, 0, 1), "завтра")
	case "reset":
		h.cmdReset(ctx, chatID)
	default:
		h.reply(chatID, "❌ Неизвестная команда.\nИспользуй /help для списка команд")
	}
}

func (h *Handler) cmdStart(ctx context.Context, chatID int64) {
	h.clearState(chatID)

	user, err := h.users.Get(ctx, chatID)
	if err != nil {
		log.Printf("Ошибка чтения профиля пользователя %d: %v", chatID, err)
	}

	if user != nil {
		h.reply(chatID, fmt.Sprintf(
			"ℹ️ <b>Ты уже зарегистрирован!</b>\n\n🎓 %s, гр. %s\n\nНапиши /group чтобы сменить группу.\n/help - помощь",
			html.EscapeString(user.FacultyName), html.EscapeString(user.GroupName)))
		return
	}

	h.reply(chatID, "👋 <b>Привет! Я бот для расписания РГРТУ.</b>\n\nДля начала работы <b>введи номер своей группы</b> (например: 430, 520М, ИО1):")
	h.setWaitingForGroup(chatID)
}

func (h *Handler) cmdHelp(ctx context.Context, chatID int64) {
	user, err := h.users.Get(ctx, chatID)
	if err != nil {
		log.Printf("Ошибка чтения профиля пользователя %d: %v", chatID, err)
	}

	if user != nil {
		h.reply(chatID, "📚 <b>Все доступные команды:</b>\n\n"+
			"<code>/start</code> — главное меню\n"+
			"<code>/group</code> — сменить группу\n"+
			"<code>/today</code> — расписание на сегодня\n"+
			"<code>/tomorrow</code> — расписание на завтра\n"+
			"<code>/settings</code> — настройки\n"+
			"<code>/reset</code> — сбросить настройки\n"+
			"<code>/help</code> — это сообщение")
		return
	}

	h.reply(chatID, "📚 <b>Все доступные команды:</b>\n\n"+
		"<code>/start</code> — начать регистрацию\n"+
		"<code>/help</code> — это сообщение\n\n"+
		"<i>После регистрации станут доступны другие команды.</i>")
}

func (h *Handler) cmdGroup(ctx context.Context, chatID int64) {
	user, err := h.users.Get(ctx, chatID)
	if err != nil {
		log.Printf("Ошибка чтения профиля пользователя %d: %v", chatID, err)
	}
	if user == nil {
		h.replyNeedRegistration(chatID)
		return
	}

	h.setWaitingForGroup(chatID)
	h.reply(chatID, fmt.Sprintf("👥 Введи номер новой группы (сейчас: %s):", html.EscapeString(user.GroupName)))
}

func (h *Handler) cmdSettings(ctx context.Context, chatID int64) {
	user, err := h.users.Get(ctx, chatID)
	if err != nil {
		log.Printf("Ошибка чтения профиля пользователя %d: %v", chatID, err)
	}
	if user == nil {
		h.replyNeedRegistration(chatID)
		return
	}

	h.reply(chatID, fmt.Sprintf(
		"⚙️ <b>Твои настройки</b>\n\n🎓 Факультет: %s\n👥 Группа: %s\n\n<code>/group</code> — сменить группу\n<code>/reset</code> — сбросить настройки",
		html.EscapeString(user.FacultyName), html.EscapeString(user.GroupName)))
}

func (h *Handler) cmdDay(ctx context.Context, chatID int64, date time.Time, dayWord string) {
	user, err := h.users.Get(ctx, chatID)
	if err != nil {
		log.Printf("Ошибка чтения профиля пользователя %d: %v", chatID, err)
	}
	if user == nil {
		h.replyNeedRegistration(chatID)
		return
	}

	lessons := h.schedules.GetDailySchedule(ctx, user.FacultyID, user.GroupID, date, true)
	if len(lessons) == 0 {
		h.reply(chatID, fmt.Sprintf("📅 На %s пар нет", dayWord))
		return
	}

	h.reply(chatID, schedule.FormatDailyMessage(date, user.FacultyName, user.GroupName, lessons))
}

func (h *Handler) cmdReset(ctx context.Context, chatID int64) {
	h.clearState(chatID)

	if err := h.users.Delete(ctx, chatID); err != nil {
		log.Printf("Ошибка удаления пользователя %d: %v", chatID, err)
	}

	h.reply(chatID, "✅ <b>Настройки сброшены.</b>\n\nТы удален из базы данных.\nИспользуй /start для новой регистрации.")
}

// processGroupInput разбирает введенный номер группы и сохраняет профиль.
// Пока справочник групп не загружен, пустой результат поиска ничего не
// значит, поэтому пользователя просят повторить попытку позже.
func (h *Handler) processGroupInput(ctx context.Context, chatID int64, text string) {
	if !h.groups.Loaded() {
		h.reply(chatID, "⏳ Списки групп еще загружаются, попробуй через минуту.")
		return
	}

	entry, ok := h.groups.Lookup(text)
	if !ok {
		h.reply(chatID, fmt.Sprintf(
			"❌ Группа '%s' не найдена.\n\nПримеры групп:\n520, 520М, 522, 523, 524, 525",
			html.EscapeString(text)))
		return
	}

	groupName := strings.ToUpper(strings.TrimSpace(text))
	err := h.users.Save(ctx, &users.User{
		UserID:      chatID,
		FacultyID:   entry.FacultyID,
		FacultyName: entry.FacultyName,
		GroupID:     entry.GroupID,
		GroupName:   groupName,
	})
	if err != nil {
		log.Printf("Ошибка сохранения пользователя %d: %v", chatID, err)
		h.reply(chatID, "❌ Не получилось сохранить настройки, попробуй еще раз.")
		return
	}

	h.clearState(chatID)
	log.Printf("Пользователь %d сохранен: %s - %s", chatID, entry.FacultyName, groupName)

	h.reply(chatID, fmt.Sprintf(
		"✅ <b>Регистрация завершена!</b>\n\n🎓 %s, гр. %s\n\n📅 <b>Что дальше?</b>\n• Каждое утро в %02d:%02d я буду присылать расписание\n• За 20 минут до пары придет напоминание",
		html.EscapeString(entry.FacultyName), html.EscapeString(groupName), h.broadcastHour, h.broadcastMinute))
}

func (h *Handler) replyNeedRegistration(chatID int64) {
	h.reply(chatID, "❌ <b>Сначала нужно зарегистрироваться!</b>\n\nНапиши /start чтобы начать.")
}

func (h *Handler) reply(chatID int64, text string) {
	if err := h.sender.SendMessage(chatID, text); err != nil {
		log.Printf("Ошибка отправки сообщения в чат %d: %v", chatID, err)
	}
}

func (h *Handler) today() time.Time {
	now := time.Now().In(h.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
}

func (h *Handler) isWaitingForGroup(chatID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitingForGroup[chatID]
}

func (h *Handler) setWaitingForGroup(chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.waitingForGroup[chatID] = true
}

func (h *Handler) clearState(chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.waitingForGroup, chatID)
}
