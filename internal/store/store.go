// Пакет store — контракт хранилища файлов (Backend Selector).
// Две реализации — localstore (встроенное keyed-хранилище) и
// pgstore (PostgreSQL + файловая система) — обязаны предоставлять
// идентичную семантику: слой-коллаборатор не знает, какой бэкенд
// сконфигурирован.
package store

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/pcicdon2/claims-csrt/internal/domain/model"
)

// Ошибки слоя хранилища.
var (
	// ErrNotFound — запись с таким id не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — запись с таким id уже существует.
	ErrConflict = errors.New("запись с таким id уже существует")
)

// Store — контракт хранилища записей файлов.
//
// Инварианты, общие для обоих бэкендов:
//   - Put сохраняет метаданные и байты атомарно с точки зрения
//     читателя: запись либо видна целиком, либо не видна. Серверный
//     бэкенд пишет байты ДО метаданных и удаляет байты при ошибке
//     вставки, чтобы не оставлять ни метаданных без байтов,
//     ни осиротевших байтов.
//   - ListByOffice/ListAll сортируют по дате загрузки, новые первыми;
//     офис без файлов — пустой срез, не ошибка.
//   - CountByScope — строгое сравнение офиса и аджастера с учётом
//     регистра; операция только для чтения, без побочных эффектов.
//   - Delete по несуществующему id возвращает ErrNotFound; байты,
//     уже отсутствующие на диске, не считаются ошибкой удаления.
type Store interface {
	// Put сохраняет запись и её байты, возвращает присвоенный id.
	// Идентификатор присваивает бэкенд: локальный — из timestamp
	// с jitter, серверный — auto-increment базы. rec.ID на входе
	// игнорируется.
	Put(ctx context.Context, rec *model.FileRecord, payload []byte) (int64, error)

	// Get возвращает запись по id или ErrNotFound.
	Get(ctx context.Context, id int64) (*model.FileRecord, error)

	// Open возвращает поток байтов файла вместе с записью.
	// Вызывающий код обязан закрыть ReadCloser.
	Open(ctx context.Context, id int64) (io.ReadCloser, *model.FileRecord, error)

	// ListByOffice возвращает все записи офиса, новые первыми.
	ListByOffice(ctx context.Context, office string) ([]*model.FileRecord, error)

	// ListAll возвращает все записи всех офисов, новые первыми.
	ListAll(ctx context.Context) ([]*model.FileRecord, error)

	// CountByScope возвращает количество записей с точным совпадением
	// офиса и аджастера.
	CountByScope(ctx context.Context, office, adjuster string) (int, error)

	// MarkDownloaded проставляет download_date записи.
	MarkDownloaded(ctx context.Context, id int64, at time.Time) error

	// Delete удаляет метаданные и байты. ErrNotFound если записи нет.
	Delete(ctx context.Context, id int64) error

	// Close освобождает ресурсы бэкенда.
	Close()
}
