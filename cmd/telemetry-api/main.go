package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aerotrace/telemetry-backend/internal/auth"
	"github.com/aerotrace/telemetry-backend/internal/config"
	"github.com/aerotrace/telemetry-backend/internal/handler"
	"github.com/aerotrace/telemetry-backend/internal/metrics"
	"github.com/aerotrace/telemetry-backend/internal/models"
	"github.com/aerotrace/telemetry-backend/internal/mqtt"
	"github.com/aerotrace/telemetry-backend/internal/repository"
	"github.com/aerotrace/telemetry-backend/internal/service"
	"github.com/aerotrace/telemetry-backend/pkg/utils"
)

var (
	// Version, Commit и BuildTime устанавливаются при сборке через ldflags
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализируем логирование
	logger := utils.NewLogger(config.LogLevel(), config.LogFormat())
	utils.SetDefaultLogger(logger)
	logger.WithField("version", Version).Info("Starting UAV Telemetry Backend")
	metrics.SetAppInfo(Version, Commit, BuildTime)

	// Создаем контекст приложения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализируем Redis репозиторий
	redisRepo, err := repository.NewRedisRepository(&cfg.Redis, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize Redis repository")
	}
	defer redisRepo.Close()

	// Проверяем соединение с Redis
	if err := redisRepo.Ping(ctx); err != nil {
		logger.WithField("error", err).Fatal("Failed to connect to Redis")
	}
	logger.Info("Connected to Redis")
	metrics.RedisConnectionStatus.Set(1)

	// Инициализируем MySQL репозиторий (опционально)
	var mysqlRepo *repository.MySQLRepository
	var batchWriter *service.BatchWriter
	if cfg.MySQL.DSN != "" {
		mysqlRepo, err = repository.NewMySQLRepository(&cfg.MySQL, logger)
		if err != nil {
			logger.WithField("error", err).Warn("Failed to initialize MySQL repository")
		} else {
			defer mysqlRepo.Close()
			if err := mysqlRepo.Ping(ctx); err != nil {
				logger.WithField("error", err).Warn("Failed to connect to MySQL")
			} else if err := mysqlRepo.EnsureSchema(ctx); err != nil {
				logger.WithField("error", err).Warn("Failed to ensure MySQL schema")
			} else {
				logger.Info("Connected to MySQL")
				metrics.MySQLConnectionStatus.Set(1)
				batchWriter = service.NewBatchWriter(mysqlRepo, logger, service.DefaultBatchConfig())
				defer batchWriter.Stop()
			}
		}
	}

	// Сервис валидации логов полетов
	validation := service.NewValidationService(logger, &service.ValidationConfig{
		MaxSamples: cfg.Upload.MaxSamples,
	})

	// Аутентификация: кеш токенов в Redis + внешний account service
	authCache := auth.NewCache(redisRepo.GetClient(), cfg.Auth.CacheTTL)
	authValidator := auth.NewValidator(cfg.Auth.Endpoint, authCache, logger.Logrus())
	authMW := auth.NewMiddleware(authValidator, logger.Logrus())

	// WebSocket трансляция живой телеметрии
	liveHandler := handler.NewLiveHandler()

	// REST handler и HTTP сервер
	restHandler := handler.NewRESTHandler(redisRepo, validation, batchWriter, logger, cfg.Analytics.HistoryLimit)
	server := handler.NewServer(cfg, restHandler, liveHandler, authMW, logger)

	// Приемник живой телеметрии: ретрансляция в WebSocket и асинхронная
	// запись измерений с привязкой к полету в историю
	messageHandler := func(msg *mqtt.TelemetryMessage) error {
		liveHandler.Broadcast(msg)

		if batchWriter != nil && msg.FlightID != "" {
			if err := batchWriter.QueueSamples(msg.FlightID, []models.PositionSample{msg.Sample}); err != nil {
				return err
			}
		}
		return nil
	}

	// Инициализируем MQTT клиент с готовым messageHandler
	mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger, messageHandler)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize MQTT client")
	}
	defer mqttClient.Disconnect()

	// Подключаемся к MQTT
	if err := mqttClient.Connect(); err != nil {
		logger.WithField("error", err).Fatal("Failed to connect to MQTT broker")
	}
	logger.Info("Connected to MQTT broker")

	// Запускаем HTTP сервер в горутине
	go func() {
		if err := server.Start(); err != nil {
			logger.WithField("error", err).Fatal("Failed to start HTTP server")
		}
	}()

	// Периодическая очистка старой истории
	if mysqlRepo != nil {
		go cleanupLoop(ctx, mysqlRepo, logger)
	}

	// Ждем сигнала остановки
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.WithField("signal", sig).Info("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Отменяем контекст приложения
	cancel()

	// Останавливаем HTTP сервер
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithField("error", err).Error("HTTP server shutdown error")
	}

	logger.Info("Server stopped gracefully")
}

// cleanupLoop периодически удаляет устаревшую историю полетов из MySQL
func cleanupLoop(ctx context.Context, repo *repository.MySQLRepository, logger *utils.Logger) {
	const retention = 365 * 24 * time.Hour

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.CleanupOldFlights(ctx, retention); err != nil {
				logger.WithField("error", err).Error("History cleanup failed")
			}
		}
	}
}
