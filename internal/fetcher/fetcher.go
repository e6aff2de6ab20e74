// Package fetcher реализует загрузку HTML-страниц сайта расписания
// с ограничением частоты запросов и повторными попытками
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// ErrUnavailable возвращается, когда все попытки запроса исчерпаны.
// Для вызывающего кода это "расписание сейчас недоступно", а не фатальная ошибка.
var ErrUnavailable = errors.New("schedule source is unavailable")

// Config конфигурация загрузчика
type Config struct {
	MaxRequestsPerMinute int
	Window               time.Duration
	Timeout              time.Duration
	Retries              int
	RetryDelay           time.Duration
}

// Fetcher выполняет HTTP-запросы в пределах скользящего окна лимита
type Fetcher struct {
	client       *http.Client
	maxPerWindow int
	window       time.Duration
	retries      int
	retryDelay   time.Duration

	mu         sync.Mutex
	timestamps []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New создает новый загрузчик
func New(cfg Config) *Fetcher {
	if cfg.MaxRequestsPerMinute == 0 {
		cfg.MaxRequestsPerMinute = 30
	}
	if cfg.Window == 0 {
		cfg.Window = time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	return &Fetcher{
		client:       &http.Client{Timeout: cfg.Timeout},
		maxPerWindow: cfg.MaxRequestsPerMinute,
		window:       cfg.Window,
		retries:      cfg.Retries,
		retryDelay:   cfg.RetryDelay,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// Fetch загружает страницу по URL. При неуспехе всех попыток возвращает ErrUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	for attempt := 1; attempt <= f.retries; attempt++ {
		if err := f.waitForSlot(ctx); err != nil {
			return "", err
		}

		log.Printf("Попытка %d/%d: %s", attempt, f.retries, url)

		body, err := f.doRequest(ctx, url)
		if err == nil {
			log.Printf("Успешно получен HTML (%d символов)", len(body))
			return body, nil
		}

		log.Printf("Ошибка запроса %d/%d: %v", attempt, f.retries, err)

		if attempt < f.retries {
			wait := f.retryDelay * time.Duration(attempt)
			log.Printf("Ожидание %s перед следующей попыткой", wait)
			if err := f.sleep(ctx, wait); err != nil {
				return "", err
			}
		}
	}

	log.Printf("Все %d попыток провалились для %s", f.retries, url)
	return "", ErrUnavailable
}

func (f *Fetcher) doRequest(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	// Сайт отдает разметку только браузерным клиентам
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Connection", "keep-alive")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}

// waitForSlot блокирует вызов, пока в скользящем окне не освободится место.
// После ожидания окно перепроверяется заново, так что лимит не превышается
// даже при конкурентных вызовах.
func (f *Fetcher) waitForSlot(ctx context.Context) error {
	for {
		f.mu.Lock()
		now := f.now()

		// Убираем из окна устаревшие отметки
		cutoff := now.Add(-f.window)
		kept := f.timestamps[:0]
		for _, ts := range f.timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		f.timestamps = kept

		if len(f.timestamps) < f.maxPerWindow {
			f.timestamps = append(f.timestamps, now)
			f.mu.Unlock()
			return nil
		}

		wait := f.window - now.Sub(f.timestamps[0])
		f.mu.Unlock()

		log.Printf("Достигнут лимит запросов, ожидание %s", wait)
		if err := f.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
