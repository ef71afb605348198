// expiry.go — отложенное автоудаление файлов после скачивания
// из просмотра.
//
// Таймеры живут только в памяти процесса и не персистятся: рестарт
// сервиса отменяет все запланированные удаления. Срабатывание
// таймера удаляет файл безусловно и молча — у этого пути нет
// пользовательского интерфейса, ошибки только логируются.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pcicdon2/claims-csrt/internal/store"
)

// Prometheus метрики автоудаления.
var (
	expiryScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csrt_expiry_scheduled_total",
		Help: "Общее количество запланированных автоудалений",
	})
	expiryFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csrt_expiry_fired_total",
		Help: "Общее количество сработавших автоудалений",
	})
	expiryErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csrt_expiry_errors_total",
		Help: "Общее количество ошибок при автоудалении",
	})
	expiryPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "csrt_expiry_pending",
		Help: "Текущее количество ожидающих таймеров автоудаления",
	})
)

// Timer — минимальный контракт отложенного вызова.
// time.Timer реализует Stop; фабрика по умолчанию — time.AfterFunc.
type Timer interface {
	Stop() bool
}

// TimerFactory создаёт таймер, вызывающий f через d.
// Подменяется в тестах для детерминированного срабатывания.
type TimerFactory func(d time.Duration, f func()) Timer

// Expirer — планировщик отложенных удалений. Удаляет напрямую
// через хранилище и инвалидирует кэш записей.
type Expirer struct {
	delay    time.Duration
	store    store.Store
	cache    *RecordCache
	newTimer TimerFactory
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[int64]Timer
}

// NewExpirer создаёт планировщик. timerFactory может быть nil —
// тогда используется time.AfterFunc.
func NewExpirer(delay time.Duration, st store.Store, cache *RecordCache, timerFactory TimerFactory, logger *slog.Logger) *Expirer {
	if timerFactory == nil {
		timerFactory = func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		}
	}
	return &Expirer{
		delay:    delay,
		store:    st,
		cache:    cache,
		newTimer: timerFactory,
		logger:   logger.With(slog.String("component", "expirer")),
		timers:   make(map[int64]Timer),
	}
}

// Schedule планирует отложенное удаление файла. Повторный вызов для
// того же id сбрасывает уже идущий таймер и начинает отсчёт заново.
func (e *Expirer) Schedule(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.timers[id]; ok {
		t.Stop()
		expiryPending.Dec()
	}

	e.timers[id] = e.newTimer(e.delay, func() { e.fire(id) })
	expiryScheduledTotal.Inc()
	expiryPending.Inc()

	e.logger.Debug("Автоудаление запланировано",
		slog.Int64("id", id),
		slog.Duration("delay", e.delay),
	)
}

// Cancel отменяет запланированное удаление. Возвращает true, если
// таймер существовал. Вызывается при явном удалении файла.
func (e *Expirer) Cancel(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.timers[id]
	if !ok {
		return false
	}

	t.Stop()
	delete(e.timers, id)
	expiryPending.Dec()

	e.logger.Debug("Автоудаление отменено", slog.Int64("id", id))
	return true
}

// Stop отменяет все таймеры. Вызывается при остановке сервиса.
func (e *Expirer) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
		expiryPending.Dec()
	}

	e.logger.Info("Планировщик автоудаления остановлен")
}

// fire выполняет удаление при срабатывании таймера.
// Файл, уже удалённый явно, не считается ошибкой.
func (e *Expirer) fire(id int64) {
	e.mu.Lock()
	if _, ok := e.timers[id]; ok {
		delete(e.timers, id)
		expiryPending.Dec()
	}
	e.mu.Unlock()

	expiryFiredTotal.Inc()

	err := e.store.Delete(context.Background(), id)
	switch {
	case err == nil:
		e.cache.Delete(id)
		e.logger.Info("Файл удалён по таймеру автоудаления", slog.Int64("id", id))
	case errors.Is(err, store.ErrNotFound):
		e.logger.Debug("Файл уже удалён к моменту автоудаления", slog.Int64("id", id))
	default:
		expiryErrorsTotal.Inc()
		e.logger.Error("Ошибка автоудаления файла",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
	}
}
