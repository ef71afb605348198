// Пакет localstore — встроенный бэкенд хранилища без внешних сервисов.
// Каждая запись лежит в одном документе {id}.record.json: метаданные
// плюс payload, закодированный в base64. Документ — единственный
// источник истины; поверх него держится потокобезопасный in-memory
// индекс метаданных, пересобираемый из директории при старте.
//
// Все операции записи атомарны: temp → fsync → rename.
package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pcicdon2/claims-csrt/internal/domain/model"
	"github.com/pcicdon2/claims-csrt/internal/store"
)

// recordSuffix — суффикс документа записи.
const recordSuffix = ".record.json"

// recordDoc — формат документа на диске: запись плюс байты файла.
// encoding/json кодирует []byte как base64, отдельного кодека не нужно.
type recordDoc struct {
	model.FileRecord
	Payload []byte `json:"payload"`
}

// Store — встроенный бэкенд. Реализует store.Store.
type Store struct {
	dataDir string
	logger  *slog.Logger

	mu      sync.RWMutex
	records map[int64]*model.FileRecord // id → метаданные (без payload)
}

// Open создаёт бэкенд и строит индекс из документов в dataDir.
// Директория создаётся при отсутствии. Невалидные документы
// пропускаются с записью в лог: один битый файл не должен
// блокировать запуск сервиса.
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	s := &Store{
		dataDir: dataDir,
		logger:  logger.With(slog.String("component", "localstore")),
		records: make(map[int64]*model.FileRecord),
	}

	if err := s.buildIndex(); err != nil {
		return nil, err
	}

	return s, nil
}

// buildIndex сканирует dataDir и заполняет in-memory индекс
// метаданными из всех документов записей.
func (s *Store) buildIndex() error {
	pattern := filepath.Join(s.dataDir, "*"+recordSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("ошибка сканирования директории %s: %w", s.dataDir, err)
	}

	for _, path := range matches {
		doc, err := readDoc(path)
		if err != nil {
			s.logger.Warn("Пропущен невалидный документ записи",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		rec := doc.FileRecord
		s.records[rec.ID] = &rec
	}

	s.logger.Info("Индекс записей построен",
		slog.Int("records", len(s.records)),
		slog.String("data_dir", s.dataDir),
	)

	return nil
}

// recordPath возвращает путь документа записи по id.
func (s *Store) recordPath(id int64) string {
	return filepath.Join(s.dataDir, strconv.FormatInt(id, 10)+recordSuffix)
}

// Put сохраняет запись с payload. Идентификатор присваивается здесь:
// миллисекундный timestamp с jitter (model.NewLocalID). Коллизия id
// маловероятна, но обрабатывается повторной генерацией.
func (s *Store) Put(ctx context.Context, rec *model.FileRecord, payload []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := model.NewLocalID(time.Now())
	for attempts := 0; ; attempts++ {
		if _, exists := s.records[id]; !exists {
			break
		}
		if attempts >= 10 {
			return 0, store.ErrConflict
		}
		id = model.NewLocalID(time.Now())
	}

	saved := *rec
	saved.ID = id
	saved.FilePath = "" // payload внутри документа, отдельного пути нет

	doc := recordDoc{FileRecord: saved, Payload: payload}
	if err := s.writeDoc(s.recordPath(id), &doc); err != nil {
		return 0, err
	}

	s.records[id] = &saved
	return id, nil
}

// Get возвращает копию записи из индекса.
func (s *Store) Get(ctx context.Context, id int64) (*model.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	copied := *rec
	return &copied, nil
}

// Open читает документ записи с диска и возвращает поток payload.
func (s *Store) Open(ctx context.Context, id int64) (io.ReadCloser, *model.FileRecord, error) {
	s.mu.RLock()
	_, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, store.ErrNotFound
	}

	doc, err := readDoc(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, store.ErrNotFound
		}
		return nil, nil, fmt.Errorf("ошибка чтения документа записи %d: %w", id, err)
	}

	rec := doc.FileRecord
	return io.NopCloser(bytes.NewReader(doc.Payload)), &rec, nil
}

// ListByOffice возвращает записи офиса, новые первыми.
func (s *Store) ListByOffice(ctx context.Context, office string) ([]*model.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.FileRecord, 0)
	for _, rec := range s.records {
		if rec.Office != office {
			continue
		}
		copied := *rec
		result = append(result, &copied)
	}

	sortNewestFirst(result)
	return result, nil
}

// ListAll возвращает записи всех офисов, новые первыми.
func (s *Store) ListAll(ctx context.Context) ([]*model.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.FileRecord, 0, len(s.records))
	for _, rec := range s.records {
		copied := *rec
		result = append(result, &copied)
	}

	sortNewestFirst(result)
	return result, nil
}

// CountByScope считает записи с точным совпадением офиса и аджастера.
func (s *Store) CountByScope(ctx context.Context, office, adjuster string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rec := range s.records {
		if rec.Office == office && rec.Adjuster == adjuster {
			count++
		}
	}
	return count, nil
}

// MarkDownloaded проставляет download_date записи и переписывает
// документ на диске.
func (s *Store) MarkDownloaded(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return store.ErrNotFound
	}

	doc, err := readDoc(s.recordPath(id))
	if err != nil {
		return fmt.Errorf("ошибка чтения документа записи %d: %w", id, err)
	}

	downloadedAt := at
	doc.DownloadedAt = &downloadedAt
	if err := s.writeDoc(s.recordPath(id), doc); err != nil {
		return err
	}

	rec.DownloadedAt = &downloadedAt
	return nil
}

// Delete удаляет документ записи и элемент индекса.
// Повторный вызов возвращает ErrNotFound.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return store.ErrNotFound
	}

	if err := os.Remove(s.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления документа записи %d: %w", id, err)
	}

	delete(s.records, id)
	return nil
}

// Close — no-op: бэкенд не держит внешних соединений.
func (s *Store) Close() {}

// writeDoc атомарно записывает документ записи на диск.
// Паттерн: JSON → temp файл → fsync → atomic rename.
func (s *Store) writeDoc(path string, doc *recordDoc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("ошибка сериализации документа записи: %w", err)
	}

	tmpPath := path + ".tmp." + uuid.New().String()[:8]

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// readDoc читает и десериализует документ записи.
func readDoc(path string) (*recordDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc recordDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ошибка десериализации %s: %w", path, err)
	}

	return &doc, nil
}

// sortNewestFirst сортирует записи по дате загрузки, новые первыми.
func sortNewestFirst(records []*model.FileRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].UploadedAt.After(records[j].UploadedAt)
	})
}
