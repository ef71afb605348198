// cache.go — LRU-кэш записей файлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable. Кэширует только
// метаданные: payload всегда читается из хранилища.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pcicdon2/claims-csrt/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csrt_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей файлов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csrt_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей файлов.",
	})
)

// RecordCache — LRU-кэш записей файлов с автоматическим TTL.
// Per-process: каждый экземпляр сервиса держит собственный кэш.
type RecordCache struct {
	cache *expirable.LRU[int64, *model.FileRecord]
}

// NewRecordCache создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewRecordCache(maxSize int, ttl time.Duration) *RecordCache {
	cache := expirable.NewLRU[int64, *model.FileRecord](maxSize, nil, ttl)
	return &RecordCache{cache: cache}
}

// Get возвращает запись из кэша по id.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *RecordCache) Get(id int64) (*model.FileRecord, bool) {
	val, ok := c.cache.Get(id)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *RecordCache) Set(id int64, rec *model.FileRecord) {
	c.cache.Add(id, rec)
}

// Delete удаляет запись из кэша. Вызывается при удалении файла
// и при изменении download_date.
func (c *RecordCache) Delete(id int64) {
	c.cache.Remove(id)
}
