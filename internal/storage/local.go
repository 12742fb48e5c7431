package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kirillm/trade-state/internal/domain"
)

// LocalStore реализует domain.Backend поверх локальных JSON-файлов.
// Каждой коллекции соответствует один файл <base>_<collection> со списком
// документов в читаемом виде.
//
// Осознанные ограничения простой схемы:
//   - Append перечитывает и переписывает файл целиком, поэтому схема не
//     рассчитана на неограниченный рост и высокую частоту записи. Система
//     пишет не чаще одного раза за торговый цикл, этого достаточно.
//   - Файл не защищен от конкурирующих писателей; предполагается один
//     логический писатель на процесс. Реализация под конкурентный доступ
//     должна добавить блокировку по коллекции или перейти на append-only лог.
type LocalStore struct {
	basePath string
}

// NewLocalStore создает локальное хранилище, при необходимости создав
// каталог под базовый путь. Это последний рубеж менеджера: ошибка здесь
// оставляет его неинициализированным.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("%w: empty fallback path", domain.ErrInvalidInput)
	}

	if dir := filepath.Dir(basePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create fallback directory: %w", err)
		}
	}

	return &LocalStore{basePath: basePath}, nil
}

// collectionPath возвращает путь файла коллекции
func (s *LocalStore) collectionPath(collection string) string {
	return s.basePath + "_" + collection
}

// Append дописывает документ в файл коллекции
func (s *LocalStore) Append(_ context.Context, collection string, doc domain.Document) error {
	if _, err := domain.DocumentTimestamp(doc); err != nil {
		return err
	}

	docs, err := s.readAll(collection)
	if err != nil {
		return err
	}
	docs = append(docs, doc)
	return s.writeAll(collection, docs)
}

// ReplaceSingleton переписывает файл коллекции единственным документом.
// Ключ в файловой схеме не нужен: файл и есть singleton.
func (s *LocalStore) ReplaceSingleton(_ context.Context, collection, _ string, doc domain.Document) error {
	return s.writeAll(collection, []domain.Document{doc})
}

// Query читает файл целиком, фильтрует и сортирует в памяти
func (s *LocalStore) Query(_ context.Context, collection string, opts domain.QueryOptions) ([]domain.Document, error) {
	docs, err := s.readAll(collection)
	if err != nil {
		return nil, err
	}

	if opts.FilterField != "" {
		filtered := docs[:0]
		for _, doc := range docs {
			if value, ok := doc[opts.FilterField].(string); ok && value == opts.FilterValue {
				filtered = append(filtered, doc)
			}
		}
		docs = filtered
	}

	type stamped struct {
		doc domain.Document
		ts  time.Time
	}
	ordered := make([]stamped, 0, len(docs))
	for _, doc := range docs {
		ts, err := domain.DocumentTimestamp(doc)
		if err != nil {
			// Документ без отметки времени уходит в конец выборки
			ts = time.Time{}
		}
		ordered = append(ordered, stamped{doc: doc, ts: ts})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ts.After(ordered[j].ts)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	result := make([]domain.Document, 0, len(ordered))
	for _, entry := range ordered {
		result = append(result, entry.doc)
	}
	return result, nil
}

// Close для файлового хранилища ничего не делает
func (s *LocalStore) Close() error {
	return nil
}

// readAll читает все документы коллекции; отсутствие файла — пустая коллекция
func (s *LocalStore) readAll(collection string) ([]domain.Document, error) {
	data, err := os.ReadFile(s.collectionPath(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read collection file: %w", err)
	}

	var docs []domain.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse collection file: %w", err)
	}
	return docs, nil
}

// writeAll переписывает файл коллекции через временный файл и rename,
// чтобы падение посреди записи не усекло уже сохраненные данные
func (s *LocalStore) writeAll(collection string, docs []domain.Document) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}

	path := s.collectionPath(collection)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write collection file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace collection file: %w", err)
	}
	return nil
}
