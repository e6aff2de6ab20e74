package schedule

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"
)

// HTMLFetcher загружает страницу по URL. Реализуется пакетом fetcher.
type HTMLFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Service оркестрирует получение расписания: кеш, загрузка, разбор
type Service struct {
	fetcher HTMLFetcher
	cache   *CacheRepository
	baseURL string
}

// NewService создает сервис расписания
func NewService(fetcher HTMLFetcher, cache *CacheRepository, baseURL string) *Service {
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		baseURL: baseURL,
	}
}

// GetDailySchedule возвращает пары группы на дату. Сначала проверяется кеш,
// при промахе страница загружается и разбирается заново. Непустой результат
// сохраняется в кеш; пустой не сохраняется, чтобы временный сбой не
// закрепился на все время TTL. Ошибки деградируют до пустого списка.
func (s *Service) GetDailySchedule(ctx context.Context, facultyID, groupID string, date time.Time, useCache bool) []Lesson {
	if useCache {
		lessons, ok, err := s.cache.Get(ctx, facultyID, groupID, date)
		if err != nil {
			log.Printf("Ошибка чтения кеша расписания: %v", err)
		}
		if ok {
			return lessons
		}
	}

	pageURL := s.scheduleURL(facultyID, groupID, date)
	log.Printf("Запрос расписания: %s", pageURL)

	html, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		log.Printf("Расписание недоступно: %v", err)
		return nil
	}

	lessons := ParseDailySchedule(html, date)

	if useCache && len(lessons) > 0 {
		if err := s.cache.Put(ctx, facultyID, groupID, date, lessons); err != nil {
			log.Printf("Ошибка записи кеша расписания: %v", err)
		}
	}

	return lessons
}

// scheduleURL строит адрес недельного расписания группы
func (s *Service) scheduleURL(facultyID, groupID string, date time.Time) string {
	year, week := date.ISOWeek()

	params := url.Values{}
	params.Set("faculty", facultyID)
	params.Set("group", groupID)
	params.Set("week", strconv.Itoa(week))
	params.Set("year", strconv.Itoa(year))

	return fmt.Sprintf("%s/schedule-frame/group?%s", s.baseURL, params.Encode())
}
