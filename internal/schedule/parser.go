package schedule

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ParseDailySchedule разбирает HTML недельного расписания и возвращает пары
// на указанную дату. Номер пары равен позиции строки в таблице, а не времени
// начала. Проблемы разметки не являются ошибками: функция логирует причину
// и возвращает пустой список.
func ParseDailySchedule(html string, targetDate time.Time) []Lesson {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Printf("Ошибка разбора HTML: %v", err)
		return nil
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		log.Println("Таблица расписания не найдена")
		return nil
	}

	dayIndex := findDayColumn(table, targetDate)
	if dayIndex < 0 {
		log.Printf("День %d %s не найден в заголовке таблицы", targetDate.Day(), monthGenitive[targetDate.Month()])
		return nil
	}

	var lessons []Lesson
	table.Find("tr").Slice(1, goquery.ToEnd).Each(func(rowIdx int, row *goquery.Selection) {
		lesson, ok := parseRow(row, rowIdx+1, dayIndex)
		if !ok {
			return
		}
		lessons = append(lessons, lesson)
		log.Printf("Добавлена %d-я пара: %s-%s %s", lesson.Number, lesson.Start, lesson.End, lesson.Subject)
	})

	log.Printf("Всего найдено пар: %d", len(lessons))
	return lessons
}

// findDayColumn ищет колонку нужного дня в строке заголовка. Заголовки на
// сайте оформлены непоследовательно, поэтому совпадением считается и полная
// строка "число месяц", и просто число.
func findDayColumn(table *goquery.Selection, targetDate time.Time) int {
	dateStr := strings.ToLower(fmt.Sprintf("%d %s", targetDate.Day(), monthGenitive[targetDate.Month()]))
	dayStr := strconv.Itoa(targetDate.Day())

	dayIndex := -1
	table.Find("tr").First().Find("th").EachWithBreak(func(i int, th *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(th.Text()))
		if strings.Contains(text, dateStr) || strings.Contains(text, dayStr) {
			dayIndex = i
			return false
		}
		return true
	})
	return dayIndex
}

// parseRow извлекает одну пару из строки таблицы. number — позиция строки,
// начиная с 1.
func parseRow(row *goquery.Selection, number, dayIndex int) (Lesson, bool) {
	cells := row.Find("td")
	if cells.Length() == 0 || cells.Length() <= dayIndex {
		return Lesson{}, false
	}

	// Первая ячейка строки содержит время начала и окончания во вложенных div
	timeDivs := cells.First().Find("div")
	if timeDivs.Length() < 2 {
		return Lesson{}, false
	}
	start := strings.TrimSpace(timeDivs.Eq(0).Text())
	end := strings.TrimSpace(timeDivs.Eq(1).Text())

	lessonCell := cells.Eq(dayIndex)
	if strings.TrimSpace(lessonCell.Text()) == "" {
		// Пустая ячейка — в этот день пары нет, это не ошибка
		return Lesson{}, false
	}

	info := lessonCell.Find("div").First()
	if info.Length() == 0 {
		return Lesson{}, false
	}

	lessonType, badgeText := classifyType(info)

	cellText := normalizeSpace(info.Text())
	if badgeText != "" {
		cellText = strings.TrimSpace(strings.Replace(cellText, badgeText, "", 1))
	}

	subject := SubjectPlaceholder
	teacher := TeacherPlaceholder
	if link := info.Find("a[href*='/schedule-frame/lecturer']").First(); link.Length() > 0 {
		teacher = normalizeSpace(link.Text())
		if idx := strings.Index(cellText, teacher); idx >= 0 {
			part := strings.TrimSpace(cellText[:idx])
			part = strings.TrimRight(part, ",")
			if part != "" {
				subject = part
			}
		}
	}

	audience := AudiencePlaceholder
	if link := info.Find("a[href*='/schedule-frame/classroom']").First(); link.Length() > 0 {
		audience = normalizeSpace(link.Text())
	}

	return Lesson{
		Number:   number,
		Start:    start,
		End:      end,
		Type:     lessonType,
		Subject:  subject,
		Teacher:  teacher,
		Audience: audience,
	}, true
}

// classifyType определяет тип занятия по бейджу в ячейке. Нераспознанный
// или отсутствующий бейдж считается лекцией.
func classifyType(info *goquery.Selection) (lessonType, badgeText string) {
	lessonType = TypeLecture

	badge := info.Find("span.schedule-lesson-type-badge").First()
	if badge.Length() == 0 {
		return lessonType, ""
	}

	badgeText = strings.TrimSpace(badge.Text())
	switch {
	case strings.Contains(badgeText, "Лек"):
		lessonType = TypeLecture
	case strings.Contains(badgeText, "Лаб"):
		lessonType = TypeLab
	case strings.Contains(badgeText, "Упр"), strings.Contains(badgeText, "Пр"):
		lessonType = TypePractice
	}
	return lessonType, badgeText
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
