package repository

import (
	"context"
	"errors"
	"time"

	"github.com/aerotrace/telemetry-backend/internal/models"
)

// ErrFlightNotFound возвращается при запросе несуществующего полета
var ErrFlightNotFound = errors.New("flight not found")

// Repository интерфейс горячего хранилища полетов
type Repository interface {
	// Проверка соединения
	Ping(ctx context.Context) error
	Close() error

	// Операции с полетами
	SaveFlight(ctx context.Context, flight *models.Flight, samples []models.PositionSample) error
	GetFlight(ctx context.Context, userID, flightID string) (*models.Flight, error)
	GetFlightSamples(ctx context.Context, userID, flightID string) ([]models.PositionSample, error)
	ListFlights(ctx context.Context, userID string, limit int) ([]*models.Flight, error)
	DeleteFlight(ctx context.Context, userID, flightID string) error

	// Данные для кросс-полетной аналитики, упорядоченные по времени загрузки
	ListFlightRecords(ctx context.Context, userID string, limit int) ([]models.FlightRecord, error)

	// Статистика
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// HistoryRepository интерфейс долговременного хранилища истории полетов
type HistoryRepository interface {
	// Проверка соединения
	Ping(ctx context.Context) error
	Close() error

	// Сохранение истории
	SaveFlightToHistory(ctx context.Context, flight *models.Flight) error
	SaveSamplesBatch(ctx context.Context, flightID string, samples []models.PositionSample) error

	// Загрузка истории для аналитики
	ListFlightRecords(ctx context.Context, userID string, limit int) ([]models.FlightRecord, error)

	// Обслуживание
	CleanupOldFlights(ctx context.Context, olderThan time.Duration) error
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// Ensure implementations
var _ Repository = (*RedisRepository)(nil)
var _ HistoryRepository = (*MySQLRepository)(nil)
