// Пакет service — бизнес-логика сервиса документов: загрузка пакетов
// с порядковыми именами, списки и подсчёт по scope, просмотр,
// скачивание с опциональным отложенным автоудалением, явное удаление.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pcicdon2/claims-csrt/internal/domain/model"
	"github.com/pcicdon2/claims-csrt/internal/store"
)

// Ошибки валидации загрузки. Проверки выполняются до любой записи:
// невалидный запрос не оставляет следов в хранилище.
var (
	ErrUnknownOffice = errors.New("неизвестный офис")
	ErrEmptyAdjuster = errors.New("аджастер не указан")
	ErrEmptyBatch    = errors.New("пакет загрузки пуст")
	ErrEmptyPayload  = errors.New("файл пуст")
	ErrFileTooLarge  = errors.New("файл превышает максимальный размер")
)

// Prometheus метрики операций с файлами.
var (
	filesUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csrt_files_uploaded_total",
		Help: "Общее количество загруженных файлов",
	})
	filesDownloadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csrt_files_downloaded_total",
		Help: "Общее количество скачиваний файлов",
	})
	filesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csrt_files_deleted_total",
		Help: "Общее количество явно удалённых файлов",
	})
	uploadErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csrt_upload_errors_total",
		Help: "Общее количество файлов, не сохранённых при загрузке",
	})
)

// FileService — операции с файлами поверх выбранного бэкенда.
// Слой-коллаборатор (HTTP-обработчики) работает только с ним.
type FileService struct {
	store       store.Store
	seq         *Sequencer
	expirer     *Expirer
	cache       *RecordCache
	maxFileSize int64
	logger      *slog.Logger
}

// NewFileService создаёт сервис файлов.
// expirer и cache обязательны: сервис не проверяет их на nil.
func NewFileService(st store.Store, seq *Sequencer, expirer *Expirer, cache *RecordCache, maxFileSize int64, logger *slog.Logger) *FileService {
	return &FileService{
		store:       st,
		seq:         seq,
		expirer:     expirer,
		cache:       cache,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "files")),
	}
}

// Offices возвращает реестр офисов.
func (s *FileService) Offices() []model.Office {
	return model.Offices()
}

// UploadBatch сохраняет пакет файлов для пары (офис, аджастер).
//
// Валидация всего пакета выполняется до любой записи. Имена
// присваиваются секвенсором один раз на пакет. Дальше файлы
// сохраняются независимо: ошибка одного файла не блокирует
// остальные, результат содержит фактически сохранённые записи.
// Ошибка возвращается только если не сохранён ни один файл.
func (s *FileService) UploadBatch(ctx context.Context, office, adjuster string, files []model.UploadFile) ([]*model.FileRecord, error) {
	if err := s.validateBatch(office, adjuster, files); err != nil {
		return nil, err
	}

	if err := s.seq.AssignNames(ctx, office, adjuster, files); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	saved := make([]*model.FileRecord, 0, len(files))
	var lastErr error

	for i := range files {
		rec := &model.FileRecord{
			Name:         files[i].Name,
			OriginalName: files[i].OriginalName,
			ContentType:  files[i].ContentType,
			Size:         files[i].Size,
			Office:       office,
			Adjuster:     adjuster,
			UploadedAt:   now,
		}

		id, err := s.store.Put(ctx, rec, files[i].Payload)
		if err != nil {
			uploadErrorsTotal.Inc()
			lastErr = err
			s.logger.Error("Файл пакета не сохранён",
				slog.String("name", rec.Name),
				slog.String("office", office),
				slog.String("adjuster", adjuster),
				slog.String("error", err.Error()),
			)
			continue
		}

		rec.ID = id
		saved = append(saved, rec)
		filesUploadedTotal.Inc()

		s.logger.Info("Файл сохранён",
			slog.Int64("id", id),
			slog.String("name", rec.Name),
			slog.String("office", office),
			slog.String("adjuster", adjuster),
			slog.Int64("size", rec.Size),
		)
	}

	if len(saved) == 0 && lastErr != nil {
		return nil, fmt.Errorf("ни один файл пакета не сохранён: %w", lastErr)
	}

	return saved, nil
}

// validateBatch проверяет пакет целиком до любой записи.
func (s *FileService) validateBatch(office, adjuster string, files []model.UploadFile) error {
	if !model.ValidOffice(office) {
		return fmt.Errorf("%w: %q", ErrUnknownOffice, office)
	}
	if adjuster == "" {
		return ErrEmptyAdjuster
	}
	if len(files) == 0 {
		return ErrEmptyBatch
	}
	for i := range files {
		if len(files[i].Payload) == 0 {
			return fmt.Errorf("%w: %q", ErrEmptyPayload, files[i].OriginalName)
		}
		if int64(len(files[i].Payload)) > s.maxFileSize {
			return fmt.Errorf("%w: %q (%d байт)", ErrFileTooLarge, files[i].OriginalName, len(files[i].Payload))
		}
	}
	return nil
}

// GetFile возвращает запись по id, используя LRU-кэш метаданных.
func (s *FileService) GetFile(ctx context.Context, id int64) (*model.FileRecord, error) {
	if rec, ok := s.cache.Get(id); ok {
		return rec, nil
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(id, rec)
	return rec, nil
}

// ListFiles возвращает файлы офиса, новые первыми.
// Офис без файлов — пустой срез. Неизвестный офис — ошибка валидации.
func (s *FileService) ListFiles(ctx context.Context, office string) ([]*model.FileRecord, error) {
	if !model.ValidOffice(office) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOffice, office)
	}
	return s.store.ListByOffice(ctx, office)
}

// ListAll возвращает файлы всех офисов, новые первыми.
func (s *FileService) ListAll(ctx context.Context) ([]*model.FileRecord, error) {
	return s.store.ListAll(ctx)
}

// FileCount возвращает количество файлов пары (офис, аджастер).
// Пара без загрузок — ноль, не ошибка.
func (s *FileService) FileCount(ctx context.Context, office, adjuster string) (int, error) {
	if !model.ValidOffice(office) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOffice, office)
	}
	return s.store.CountByScope(ctx, office, adjuster)
}

// ViewFile возвращает запись и полные байты файла для рендеринга
// на стороне клиента (data-URL). Без побочных эффектов: просмотр
// не трогает download_date и не планирует автоудаление.
func (s *FileService) ViewFile(ctx context.Context, id int64) (*model.FileRecord, []byte, error) {
	rc, rec, err := s.store.Open(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка чтения байтов файла %d: %w", id, err)
	}

	s.cache.Set(id, rec)
	return rec, payload, nil
}

// DownloadFile открывает поток байтов для скачивания и проставляет
// download_date. autoExpire=true помечает скачивание из просмотра:
// после него планируется молчаливое отложенное удаление. Обычное
// скачивание удаление никогда не планирует.
//
// Вызывающий код обязан закрыть ReadCloser.
func (s *FileService) DownloadFile(ctx context.Context, id int64, autoExpire bool) (io.ReadCloser, *model.FileRecord, error) {
	rc, rec, err := s.store.Open(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	if err := s.store.MarkDownloaded(ctx, id, now); err != nil {
		// Скачивание важнее отметки: файл отдаём, проблему логируем
		s.logger.Error("Не удалось проставить дату скачивания",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
	} else {
		rec.DownloadedAt = &now
	}
	s.cache.Delete(id)

	if autoExpire {
		s.expirer.Schedule(id)
	}

	filesDownloadedTotal.Inc()
	s.logger.Info("Файл скачан",
		slog.Int64("id", id),
		slog.String("name", rec.Name),
		slog.Bool("auto_expire", autoExpire),
	)

	return rc, rec, nil
}

// DeleteFile явно удаляет файл. Повторное удаление того же id
// возвращает store.ErrNotFound. Ожидающий таймер автоудаления
// отменяется: файла больше нет, срабатывать нечему.
func (s *FileService) DeleteFile(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Delete(id)
	s.expirer.Cancel(id)
	filesDeletedTotal.Inc()

	s.logger.Info("Файл удалён", slog.Int64("id", id))
	return nil
}

