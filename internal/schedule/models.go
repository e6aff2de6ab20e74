// Package schedule отвечает за получение, разбор, кеширование и
// форматирование расписания занятий
package schedule

import "time"

// Типы занятий в той форме, в которой их показывает сайт расписания
const (
	TypeLecture  = "лекция"
	TypeLab      = "лабораторная"
	TypePractice = "практика"
)

// Подстановки для полей, которые не удалось извлечь из разметки
const (
	SubjectPlaceholder  = "Предмет"
	TeacherPlaceholder  = "Не указан"
	AudiencePlaceholder = "Не указана"
)

// Lesson одна пара в расписании на конкретный день.
// JSON-теги совпадают с форматом записи в schedule_cache.
type Lesson struct {
	Number   int    `json:"number"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Type     string `json:"type"`
	Subject  string `json:"subject"`
	Teacher  string `json:"teacher"`
	Audience string `json:"audience"`
}

// ShortType возвращает сокращение типа занятия для сообщений
func ShortType(lessonType string) string {
	switch lessonType {
	case TypeLecture:
		return "лек"
	case TypePractice:
		return "пр"
	case TypeLab:
		return "лаб"
	}
	return lessonType
}

var monthGenitive = map[time.Month]string{
	time.January:   "января",
	time.February:  "февраля",
	time.March:     "марта",
	time.April:     "апреля",
	time.May:       "мая",
	time.June:      "июня",
	time.July:      "июля",
	time.August:    "августа",
	time.September: "сентября",
	time.October:   "октября",
	time.November:  "ноября",
	time.December:  "декабря",
}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "Понедельник",
	time.Tuesday:   "Вторник",
	time.Wednesday: "Среда",
	time.Thursday:  "Четверг",
	time.Friday:    "Пятница",
	time.Saturday:  "Суббота",
	time.Sunday:    "Воскресенье",
}
