package schedule

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// FormatDailyMessage собирает HTML-сообщение с расписанием на день:
// заголовок с датой, факультетом и группой, затем блок на каждую пару
func FormatDailyMessage(date time.Time, facultyName, groupName string, lessons []Lesson) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("📅 <b>%s, %d %s | %s, гр. %s</b>",
		weekdayNames[date.Weekday()],
		date.Day(),
		monthGenitive[date.Month()],
		html.EscapeString(facultyName),
		html.EscapeString(groupName),
	))
	parts = append(parts, "")

	for _, lesson := range lessons {
		parts = append(parts, fmt.Sprintf("<b>%d-я пара:</b> <code>%s – %s</code> — <b>%s (%s)</b>",
			lesson.Number,
			lesson.Start,
			lesson.End,
			html.EscapeString(lesson.Subject),
			ShortType(lesson.Type),
		))
		parts = append(parts, fmt.Sprintf("Ауд. %s • %s",
			html.EscapeString(lesson.Audience),
			html.EscapeString(lesson.Teacher),
		))
		parts = append(parts, "")
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// FormatReminderMessage собирает напоминание, отправляемое за 20 минут до пары
func FormatReminderMessage(lesson Lesson) string {
	return fmt.Sprintf(
		"⏰ <b>Напоминание!</b>\nЧерез 20 минут, в %s, начинается:\n\n<b>%s (%s)</b>\nАуд. %s • %s",
		lesson.Start,
		html.EscapeString(lesson.Subject),
		ShortType(lesson.Type),
		html.EscapeString(lesson.Audience),
		html.EscapeString(lesson.Teacher),
	)
}
