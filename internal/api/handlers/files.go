// files.go — HTTP handlers файловых операций: список офисов, списки
// файлов, загрузка, скачивание, просмотр, подсчёт, удаление.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pcicdon2/claims-csrt/internal/api/errors"
	"github.com/pcicdon2/claims-csrt/internal/domain/model"
	"github.com/pcicdon2/claims-csrt/internal/service"
	"github.com/pcicdon2/claims-csrt/internal/store"
)

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	svc *service.FileService
	// maxBodySize — лимит тела запроса загрузки: максимальный размер
	// файла плюс запас на base64 (4/3) и остальные поля JSON
	maxBodySize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(svc *service.FileService, maxFileSize int64, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		svc:         svc,
		maxBodySize: maxFileSize*4/3 + 1<<20,
		logger:      logger.With(slog.String("component", "handlers")),
	}
}

// uploadRequest — тело POST /api/upload. Поля именованы как в
// запросах клиента: peoOffice, originalName, data (data-URL base64).
type uploadRequest struct {
	// Name — отображаемое имя, если клиент его уже вычислил (опционально)
	Name string `json:"name"`
	// OriginalName — оригинальное имя файла
	OriginalName string `json:"originalName"`
	// Data — содержимое файла: data-URL или чистый base64
	Data string `json:"data"`
	// Type — MIME-тип
	Type string `json:"type"`
	// Size — заявленный размер в байтах (информационный)
	Size int64 `json:"size"`
	// PeoOffice — код офиса
	PeoOffice string `json:"peoOffice"`
	// Adjuster — имя аджастера
	Adjuster string `json:"adjuster"`
}

// uploadResponse — тело успешного ответа загрузки.
type uploadResponse struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id"`
	Name    string `json:"name"`
}

// viewResponse — тело ответа просмотра: запись плюс data-URL
// для рендеринга на стороне клиента.
type viewResponse struct {
	*model.FileRecord
	DataURL string `json:"dataUrl"`
}

// successResponse — тело ответа операций без данных.
type successResponse struct {
	Success bool `json:"success"`
}

// countResponse — тело ответа подсчёта файлов.
type countResponse struct {
	Count int `json:"count"`
}

// ListOffices обрабатывает GET /api/offices.
func (h *FilesHandler) ListOffices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Offices())
}

// ListAllFiles обрабатывает GET /api/files — все файлы всех офисов.
func (h *FilesHandler) ListAllFiles(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.ListAll(r.Context())
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// ListFiles обрабатывает GET /api/files/{office}.
// Офис без файлов — пустой массив, не ошибка.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	office := chi.URLParam(r, "office")

	records, err := h.svc.ListFiles(r.Context(), office)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GetFile обрабатывает GET /api/file/{id}.
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.GetFile(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CountFiles обрабатывает GET /api/count/{office}/{adjuster}.
// Пара без загрузок — {"count": 0}.
func (h *FilesHandler) CountFiles(w http.ResponseWriter, r *http.Request) {
	office := chi.URLParam(r, "office")
	adjuster := chi.URLParam(r, "adjuster")

	count, err := h.svc.FileCount(r.Context(), office, adjuster)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

// UploadFile обрабатывает POST /api/upload.
// Тело — JSON с base64 data-URL. Когда name пуст, имя присваивает
// секвенсор.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.FileTooLarge(w, "Тело запроса превышает максимальный размер")
			return
		}
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	payload, err := decodeDataURL(req.Data)
	if err != nil {
		apierrors.ValidationError(w, "Некорректное поле data: "+err.Error())
		return
	}

	files := []model.UploadFile{{
		Name:         req.Name,
		Payload:      payload,
		OriginalName: req.OriginalName,
		ContentType:  req.Type,
		Size:         int64(len(payload)),
	}}

	saved, err := h.svc.UploadBatch(r.Context(), req.PeoOffice, req.Adjuster, files)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		ID:      saved[0].ID,
		Name:    saved[0].Name,
	})
}

// DownloadFile обрабатывает GET /api/download/{id}.
// Отдаёт attachment и проставляет дату скачивания. Параметр
// autoExpire=true помечает скачивание из просмотра: после него
// планируется молчаливое отложенное удаление файла.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	autoExpire := r.URL.Query().Get("autoExpire") == "true"

	rc, rec, err := h.svc.DownloadFile(r.Context(), id, autoExpire)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	defer rc.Close()

	contentType := rec.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(rec.Size, 10))

	if _, err := io.Copy(w, rc); err != nil {
		// Заголовки уже отправлены, остаётся только залогировать
		h.logger.Error("Ошибка отдачи байтов файла",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
	}
}

// ViewFile обрабатывает GET /api/view/{id}.
// Возвращает запись и содержимое файла как data-URL. Побочных
// эффектов нет: дата скачивания не меняется, удаление не планируется.
func (h *FilesHandler) ViewFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	rec, payload, err := h.svc.ViewFile(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	contentType := rec.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(payload)

	writeJSON(w, http.StatusOK, viewResponse{FileRecord: rec, DataURL: dataURL})
}

// DeleteFile обрабатывает DELETE /api/file/{id}.
// Повторное удаление того же id — 404.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteFile(r.Context(), id); err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// serviceError преобразует ошибку сервисного слоя в HTTP-ответ.
func (h *FilesHandler) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.FileTooLarge(w, err.Error())
	case errors.Is(err, service.ErrUnknownOffice),
		errors.Is(err, service.ErrEmptyAdjuster),
		errors.Is(err, service.ErrEmptyBatch),
		errors.Is(err, service.ErrEmptyPayload):
		apierrors.ValidationError(w, err.Error())
	default:
		h.logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// parseID извлекает и валидирует {id} из пути.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор файла: "+raw)
		return 0, false
	}
	return id, true
}

// decodeDataURL декодирует поле data запроса загрузки.
// Принимает data-URL (data:image/png;base64,...) и чистый base64.
func decodeDataURL(data string) ([]byte, error) {
	if data == "" {
		return nil, fmt.Errorf("пустое содержимое")
	}
	if idx := strings.Index(data, "base64,"); idx >= 0 {
		data = data[idx+len("base64,"):]
	}
	payload, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("невалидный base64: %w", err)
	}
	return payload, nil
}

// writeJSON записывает успешный JSON-ответ.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
