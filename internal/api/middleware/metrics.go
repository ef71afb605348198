// metrics.go — Prometheus HTTP метрики сервиса документов.
// Регистрирует метрики: csrt_http_requests_total,
// csrt_http_request_duration_seconds. Бизнес-метрики (загрузки,
// скачивания, автоудаления) регистрируются в сервисном слое.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csrt_http_requests_total",
			Help: "Общее количество HTTP-запросов к сервису документов",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csrt_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к сервису документов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик: id и параметры scope
			// заменяются плейсхолдерами, иначе кардинальность растёт
			// с каждым файлом
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет переменные сегменты пути плейсхолдерами.
// /api/file/12345 → /api/file/{id}, /api/files/butuan → /api/files/{office},
// /api/count/butuan/Santos → /api/count/{office}/{adjuster}.
func normalizePath(path string) string {
	switch {
	case path == "/health/live", path == "/health/ready", path == "/metrics",
		path == "/api/offices", path == "/api/files", path == "/api/upload":
		return path
	case strings.HasPrefix(path, "/api/file/"):
		return "/api/file/{id}"
	case strings.HasPrefix(path, "/api/download/"):
		return "/api/download/{id}"
	case strings.HasPrefix(path, "/api/view/"):
		return "/api/view/{id}"
	case strings.HasPrefix(path, "/api/files/"):
		return "/api/files/{office}"
	case strings.HasPrefix(path, "/api/count/"):
		return "/api/count/{office}/{adjuster}"
	}
	return path
}
