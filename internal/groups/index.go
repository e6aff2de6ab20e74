// Package groups строит отображение названий групп на идентификаторы
// факультета и группы, которыми оперирует сайт расписания
package groups

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// HTMLFetcher загружает страницу по URL. Реализуется пакетом fetcher.
type HTMLFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Entry идентификаторы, соответствующие одной группе
type Entry struct {
	FacultyID   string
	FacultyName string
	GroupID     string
}

// Index справочник групп. Заполняется фоновой загрузкой при старте процесса;
// до завершения загрузки Lookup может не находить существующие группы,
// поэтому вызывающий код обязан проверять Loaded().
type Index struct {
	fetcher HTMLFetcher
	baseURL string
	pacing  time.Duration

	mu      sync.RWMutex
	entries map[string]Entry
	loaded  bool
}

// NewIndex создает пустой справочник групп
func NewIndex(fetcher HTMLFetcher, baseURL string) *Index {
	return &Index{
		fetcher: fetcher,
		baseURL: baseURL,
		pacing:  time.Second,
		entries: make(map[string]Entry),
	}
}

// Loaded сообщает, просмотрены ли все факультеты
func (idx *Index) Loaded() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.loaded
}

// Lookup ищет группу по названию без учета регистра
func (idx *Index) Lookup(label string) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entry, ok := idx.entries[strings.ToUpper(strings.TrimSpace(label))]
	return entry, ok
}

// Size возвращает количество загруженных групп
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// LoadAll загружает список факультетов и группы каждого из них.
// Справочник пополняется по мере обхода; флаг loaded выставляется в конце,
// в том числе при неудаче, чтобы вызывающий код не ждал вечно.
func (idx *Index) LoadAll(ctx context.Context) {
	idx.mu.Lock()
	idx.entries = make(map[string]Entry)
	idx.loaded = false
	idx.mu.Unlock()

	defer func() {
		idx.mu.Lock()
		idx.loaded = true
		idx.mu.Unlock()
		log.Printf("Все группы загружены в справочник (всего %d групп)", idx.Size())
	}()

	html, err := idx.fetcher.Fetch(ctx, fmt.Sprintf("%s/schedule-frame/group", idx.baseURL))
	if err != nil {
		log.Printf("Не удалось загрузить главную страницу расписания: %v", err)
		return
	}

	faculties, err := parseFaculties(html)
	if err != nil {
		log.Printf("Ошибка разбора списка факультетов: %v", err)
		return
	}

	log.Printf("Найдено факультетов: %d", len(faculties))

	for _, f := range faculties {
		if err := idx.loadFaculty(ctx, f.id, f.name); err != nil {
			log.Printf("Ошибка загрузки групп для %s: %v", f.name, err)
		}

		// Небольшая пауза, чтобы не бомбить сайт запросами подряд
		select {
		case <-time.After(idx.pacing):
		case <-ctx.Done():
			return
		}
	}
}

type faculty struct {
	id   string
	name string
}

// parseFaculties извлекает факультеты из селектора на главной странице
func parseFaculties(html string) ([]faculty, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	sel := doc.Find("select[name='faculty']").First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("faculty selector not found")
	}

	var faculties []faculty
	sel.Find("option").Each(func(i int, opt *goquery.Selection) {
		id, _ := opt.Attr("value")
		name := strings.TrimSpace(opt.Text())
		if id == "" || id == "0" {
			return
		}
		faculties = append(faculties, faculty{id: id, name: name})
	})

	return faculties, nil
}

// groupOption один элемент JSON-массива :options в разметке страницы факультета
type groupOption struct {
	Label string      `json:"label"`
	Value json.Number `json:"value"`
}

// loadFaculty добавляет в справочник группы одного факультета
func (idx *Index) loadFaculty(ctx context.Context, facultyID, facultyName string) error {
	url := fmt.Sprintf("%s/schedule-frame/group?faculty=%s&group=&date=", idx.baseURL, facultyID)

	html, err := idx.fetcher.Fetch(ctx, url)
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	optionsJSON, ok := doc.Find("div[data-component='SelectAutocomplete']").First().Attr(":options")
	if !ok {
		return fmt.Errorf("group options payload not found")
	}

	var options []groupOption
	if err := json.Unmarshal([]byte(optionsJSON), &options); err != nil {
		return fmt.Errorf("failed to decode group options: %w", err)
	}

	added := 0
	for _, opt := range options {
		value := opt.Value.String()
		if opt.Label == "" || value == "" || value == "0" {
			continue
		}
		if strings.Contains(opt.Label, "Не выбрана") {
			continue
		}

		idx.mu.Lock()
		idx.entries[strings.ToUpper(opt.Label)] = Entry{
			FacultyID:   facultyID,
			FacultyName: facultyName,
			GroupID:     value,
		}
		idx.mu.Unlock()
		added++
	}

	log.Printf("Загружено групп для %s: %d", facultyName, added)
	return nil
}
