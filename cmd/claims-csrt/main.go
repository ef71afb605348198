// Точка входа сервиса документов ПЭО: загрузка, хранение и
// жизненный цикл файлов заявок на страховые выплаты.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/pcicdon2/claims-csrt/internal/api/handlers"
	"github.com/pcicdon2/claims-csrt/internal/config"
	"github.com/pcicdon2/claims-csrt/internal/database"
	"github.com/pcicdon2/claims-csrt/internal/server"
	"github.com/pcicdon2/claims-csrt/internal/service"
	"github.com/pcicdon2/claims-csrt/internal/storage/filestore"
	"github.com/pcicdon2/claims-csrt/internal/store"
	"github.com/pcicdon2/claims-csrt/internal/store/localstore"
	"github.com/pcicdon2/claims-csrt/internal/store/pgstore"
)

func main() {
	// .env для локальной разработки; в проде переменные задаёт окружение
	_ = godotenv.Load()

	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Сервис документов запускается",
		slog.String("version", config.Version),
		slog.String("backend", cfg.Backend),
		slog.Int("port", cfg.Port),
	)

	// --- Инициализация компонентов ---

	// 1. Бэкенд хранилища
	var st store.Store
	var dbChecker handlers.ReadinessChecker

	switch cfg.Backend {
	case config.BackendPostgres:
		ctx := context.Background()

		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к базе данных", slog.String("error", err.Error()))
			os.Exit(1)
		}

		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка применения миграций", slog.String("error", err.Error()))
			os.Exit(1)
		}

		files, err := filestore.New(cfg.DataDir)
		if err != nil {
			logger.Error("Ошибка инициализации файлового хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}

		st = pgstore.New(pool, pool, files, logger)
		dbChecker = database.NewReadinessChecker(pool)

	case config.BackendLocal:
		local, err := localstore.Open(cfg.DataDir, logger)
		if err != nil {
			logger.Error("Ошибка инициализации локального хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}
		st = local
	}
	defer st.Close()

	// 2. Сервисный слой
	cache := service.NewRecordCache(cfg.CacheSize, cfg.CacheTTL)
	seq := service.NewSequencer(st)
	expirer := service.NewExpirer(cfg.AutoExpireDelay, st, cache, nil, logger)
	fileSvc := service.NewFileService(st, seq, expirer, cache, cfg.MaxFileSize, logger)

	// 3. Handlers
	filesHandler := handlers.NewFilesHandler(fileSvc, cfg.MaxFileSize, logger)
	healthHandler := handlers.NewHealthHandler(cfg.DataDir, dbChecker)

	// 4. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, filesHandler, healthHandler)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Рестарт отменяет все запланированные автоудаления: таймеры
	// живут только в памяти процесса
	expirer.Stop()

	logger.Info("Сервис документов остановлен")
}
