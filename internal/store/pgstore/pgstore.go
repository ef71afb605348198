// Пакет pgstore — серверный бэкенд хранилища: метаданные в таблице
// peo_files PostgreSQL, байты — на файловой системе по пути
// {office}/{adjuster}/{name} (пакет filestore).
//
// Порядок записи фиксирован: сначала байты на диск, затем строка
// метаданных. При ошибке вставки записанные байты удаляются, чтобы
// не оставлять ни строку без байтов, ни осиротевшие байты.
package pgstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pcicdon2/claims-csrt/internal/domain/model"
	"github.com/pcicdon2/claims-csrt/internal/storage/filestore"
	"github.com/pcicdon2/claims-csrt/internal/store"
)

// DBTX — общий интерфейс для pgxpool.Pool и pgx.Tx.
// Позволяет использовать один и тот же код с пулом и транзакцией.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Closer — закрытие пула подключений. pgxpool.Pool реализует.
type Closer interface {
	Close()
}

// Store — серверный бэкенд. Реализует store.Store.
type Store struct {
	db     DBTX
	closer Closer
	files  *filestore.FileStore
	logger *slog.Logger
}

// New создаёт серверный бэкенд поверх пула подключений и файлового
// хранилища. closer может быть nil (например, в тестах с транзакцией).
func New(db DBTX, closer Closer, files *filestore.FileStore, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		closer: closer,
		files:  files,
		logger: logger.With(slog.String("component", "pgstore")),
	}
}

const selectColumns = `id, name, original_name, file_path, type, size,
		peo_office, adjuster, upload_date, download_date, auto_delete_scheduled`

// Put сохраняет байты на диск, затем вставляет строку метаданных.
// Возвращает id, присвоенный базой. При ошибке вставки байты
// удаляются с диска.
func (s *Store) Put(ctx context.Context, rec *model.FileRecord, payload []byte) (int64, error) {
	storagePath := filestore.StoragePath(rec.Office, rec.Adjuster, rec.Name)

	if _, err := s.files.SaveFile(storagePath, bytes.NewReader(payload)); err != nil {
		return 0, fmt.Errorf("ошибка сохранения байтов файла: %w", err)
	}

	query := `
		INSERT INTO peo_files (name, original_name, file_path, type, size,
			peo_office, adjuster, upload_date, auto_delete_scheduled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	var id int64
	err := s.db.QueryRow(ctx, query,
		rec.Name, rec.OriginalName, storagePath, rec.ContentType, rec.Size,
		rec.Office, rec.Adjuster, rec.UploadedAt, rec.AutoDeleteScheduled,
	).Scan(&id)
	if err != nil {
		// Метаданные не записаны — убираем только что записанные байты
		if cleanupErr := s.files.DeleteFile(storagePath); cleanupErr != nil {
			s.logger.Warn("Не удалось удалить байты после ошибки вставки",
				slog.String("path", storagePath),
				slog.String("error", cleanupErr.Error()),
			)
		}
		return 0, fmt.Errorf("ошибка вставки записи файла: %w", err)
	}

	return id, nil
}

// Get возвращает запись по id.
func (s *Store) Get(ctx context.Context, id int64) (*model.FileRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM peo_files WHERE id = $1`

	rec, err := scanRecord(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи файла: %w", err)
	}
	return rec, nil
}

// Open возвращает поток байтов с диска вместе с записью.
func (s *Store) Open(ctx context.Context, id int64) (io.ReadCloser, *model.FileRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.files.ReadFile(rec.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка открытия байтов файла %d: %w", id, err)
	}

	return f, rec, nil
}

// ListByOffice возвращает записи офиса, новые первыми.
func (s *Store) ListByOffice(ctx context.Context, office string) ([]*model.FileRecord, error) {
	query := `SELECT ` + selectColumns + `
		FROM peo_files
		WHERE peo_office = $1
		ORDER BY upload_date DESC`

	rows, err := s.db.Query(ctx, query, office)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов офиса: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListAll возвращает записи всех офисов, новые первыми.
func (s *Store) ListAll(ctx context.Context) ([]*model.FileRecord, error) {
	query := `SELECT ` + selectColumns + `
		FROM peo_files
		ORDER BY upload_date DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// CountByScope считает записи с точным совпадением офиса и аджастера.
func (s *Store) CountByScope(ctx context.Context, office, adjuster string) (int, error) {
	query := `SELECT COUNT(*) FROM peo_files WHERE peo_office = $1 AND adjuster = $2`

	var count int
	if err := s.db.QueryRow(ctx, query, office, adjuster).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return count, nil
}

// MarkDownloaded проставляет download_date записи.
func (s *Store) MarkDownloaded(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE peo_files SET download_date = $2 WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("ошибка обновления даты скачивания: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete удаляет строку метаданных, затем байты с диска.
// Удаление метаданных авторитетно: отсутствующие или неудаляемые
// байты логируются, но не считаются ошибкой операции.
func (s *Store) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM peo_files WHERE id = $1 RETURNING file_path`

	var filePath string
	err := s.db.QueryRow(ctx, query, id).Scan(&filePath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}

	if err := s.files.DeleteFile(filePath); err != nil {
		s.logger.Warn("Метаданные удалены, но байты удалить не удалось",
			slog.Int64("id", id),
			slog.String("path", filePath),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// Close закрывает пул подключений.
func (s *Store) Close() {
	if s.closer != nil {
		s.closer.Close()
	}
}

// scanRecord сканирует одну строку peo_files в FileRecord.
func scanRecord(row pgx.Row) (*model.FileRecord, error) {
	rec := &model.FileRecord{}
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.OriginalName, &rec.FilePath, &rec.ContentType,
		&rec.Size, &rec.Office, &rec.Adjuster, &rec.UploadedAt,
		&rec.DownloadedAt, &rec.AutoDeleteScheduled,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// collectRecords сканирует все строки результата в срез записей.
// Пустой результат — пустой срез, не nil.
func collectRecords(rows pgx.Rows) ([]*model.FileRecord, error) {
	result := make([]*model.FileRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи файла: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения результата: %w", err)
	}
	return result, nil
}
