package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aerotrace/telemetry-backend/internal/config"
	"github.com/aerotrace/telemetry-backend/internal/metrics"
	"github.com/aerotrace/telemetry-backend/internal/models"
	"github.com/aerotrace/telemetry-backend/pkg/utils"
)

const (
	// Префиксы ключей
	FlightPrefix      = "flight:"          // flight:{id} - HSET с метаданными
	FlightSamplesKey  = "flight:%s:samples" // Список измерений полета
	FlightMetricsKey  = "flight:%s:metrics" // JSON с вычисленными метриками
	UserFlightsKey    = "user:%s:flights"   // Z-SET полетов пользователя по времени загрузки
	StatsPrefix       = "stats:"           // stats:{metric}

	// TTL для данных
	FlightTTL = 90 * 24 * time.Hour // Горячее хранилище держит полеты 90 дней
)

// RedisRepository горячее хранилище полетов и метрик
type RedisRepository struct {
	client *redis.Client
	logger *utils.Logger
	config *config.RedisConfig
}

// NewRedisRepository создает новый Redis репозиторий
func NewRedisRepository(cfg *config.RedisConfig, logger *utils.Logger) (*RedisRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	// Парсим Redis URL
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Дополнительные настройки
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.ConnMaxIdleTime = 30 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	return &RedisRepository{
		client: client,
		logger: logger,
		config: cfg,
	}, nil
}

// Ping проверяет соединение с Redis
func (r *RedisRepository) Ping(ctx context.Context) error {
	_, err := r.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// GetClient возвращает Redis клиент для внешнего использования
// (например, для кеширования auth токенов)
func (r *RedisRepository) GetClient() *redis.Client {
	return r.client
}

// SaveFlight сохраняет полет, его измерения и метрики одним пайплайном
func (r *RedisRepository) SaveFlight(ctx context.Context, flight *models.Flight, samples []models.PositionSample) error {
	if flight == nil {
		return fmt.Errorf("flight cannot be nil")
	}
	if err := flight.Validate(); err != nil {
		return fmt.Errorf("invalid flight: %w", err)
	}

	start := time.Now()
	pipe := r.client.Pipeline()

	// Метаданные в HSET
	flightKey := FlightPrefix + flight.ID
	pipe.HSet(ctx, flightKey, map[string]interface{}{
		"user_id":       flight.UserID,
		"name":          flight.Name,
		"created_at":    flight.CreatedAt.Unix(),
		"battery_start": flight.BatteryStart,
		"sample_count":  flight.SampleCount,
	})
	pipe.Expire(ctx, flightKey, FlightTTL)

	// Измерения одним RPUSH, чтобы сохранить порядок по времени
	if len(samples) > 0 {
		samplesKey := fmt.Sprintf(FlightSamplesKey, flight.ID)
		values := make([]interface{}, 0, len(samples))
		for i := range samples {
			data, err := json.Marshal(&samples[i])
			if err != nil {
				return fmt.Errorf("failed to marshal sample %d: %w", i, err)
			}
			values = append(values, data)
		}
		pipe.Del(ctx, samplesKey)
		pipe.RPush(ctx, samplesKey, values...)
		pipe.Expire(ctx, samplesKey, FlightTTL)
	}

	// Метрики как JSON
	if flight.Metrics != nil {
		metricsData, err := json.Marshal(flight.Metrics)
		if err != nil {
			return fmt.Errorf("failed to marshal metrics: %w", err)
		}
		metricsKey := fmt.Sprintf(FlightMetricsKey, flight.ID)
		pipe.Set(ctx, metricsKey, metricsData, FlightTTL)
	}

	// Индекс полетов пользователя, упорядоченный по времени загрузки
	pipe.ZAdd(ctx, fmt.Sprintf(UserFlightsKey, flight.UserID), redis.Z{
		Score:  float64(flight.CreatedAt.Unix()),
		Member: flight.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("save_flight").Inc()
		return fmt.Errorf("failed to save flight: %w", err)
	}

	r.client.Incr(ctx, StatsPrefix+"flights:saved")
	metrics.StoredFlights.Inc()
	metrics.RedisOperationDuration.WithLabelValues("save_flight").Observe(time.Since(start).Seconds())

	r.logger.WithFields(map[string]interface{}{
		"flight_id":    flight.ID,
		"user_id":      flight.UserID,
		"sample_count": flight.SampleCount,
	}).Debug("Flight saved to Redis")

	return nil
}

// GetFlight возвращает метаданные полета вместе с вычисленными метриками
func (r *RedisRepository) GetFlight(ctx context.Context, userID, flightID string) (*models.Flight, error) {
	start := time.Now()

	data, err := r.client.HGetAll(ctx, FlightPrefix+flightID).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("get_flight").Inc()
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}
	if len(data) == 0 || data["user_id"] != userID {
		return nil, ErrFlightNotFound
	}

	flight, err := flightFromHash(flightID, data)
	if err != nil {
		return nil, err
	}

	// Метрики хранятся отдельным ключом
	metricsData, err := r.client.Get(ctx, fmt.Sprintf(FlightMetricsKey, flightID)).Bytes()
	if err == nil {
		var m models.TrajectoryMetrics
		if err := json.Unmarshal(metricsData, &m); err == nil {
			flight.Metrics = &m
		}
	} else if err != redis.Nil {
		metrics.RedisOperationErrors.WithLabelValues("get_flight").Inc()
		return nil, fmt.Errorf("failed to get flight metrics: %w", err)
	}

	metrics.RedisOperationDuration.WithLabelValues("get_flight").Observe(time.Since(start).Seconds())
	return flight, nil
}

// GetFlightSamples возвращает измерения полета в исходном порядке
func (r *RedisRepository) GetFlightSamples(ctx context.Context, userID, flightID string) ([]models.PositionSample, error) {
	// Проверяем принадлежность полета пользователю
	owner, err := r.client.HGet(ctx, FlightPrefix+flightID, "user_id").Result()
	if err == redis.Nil || (err == nil && owner != userID) {
		return nil, ErrFlightNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check flight owner: %w", err)
	}

	raw, err := r.client.LRange(ctx, fmt.Sprintf(FlightSamplesKey, flightID), 0, -1).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("get_samples").Inc()
		return nil, fmt.Errorf("failed to get flight samples: %w", err)
	}

	samples := make([]models.PositionSample, 0, len(raw))
	for _, item := range raw {
		var s models.PositionSample
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			r.logger.WithField("flight_id", flightID).WithField("error", err).Warn("Skipping corrupted sample")
			continue
		}
		samples = append(samples, s)
	}

	return samples, nil
}

// ListFlights возвращает полеты пользователя, новые первыми
func (r *RedisRepository) ListFlights(ctx context.Context, userID string, limit int) ([]*models.Flight, error) {
	ids, err := r.client.ZRevRange(ctx, fmt.Sprintf(UserFlightsKey, userID), 0, int64(limit-1)).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("list_flights").Inc()
		return nil, fmt.Errorf("failed to list flights: %w", err)
	}

	flights := make([]*models.Flight, 0, len(ids))
	for _, id := range ids {
		flight, err := r.GetFlight(ctx, userID, id)
		if err == ErrFlightNotFound {
			// Полет истек по TTL, но остался в индексе
			continue
		}
		if err != nil {
			return nil, err
		}
		flights = append(flights, flight)
	}

	return flights, nil
}

// ListFlightRecords возвращает историю полетов для аналитики,
// упорядоченную по времени загрузки (старые первыми)
func (r *RedisRepository) ListFlightRecords(ctx context.Context, userID string, limit int) ([]models.FlightRecord, error) {
	ids, err := r.client.ZRange(ctx, fmt.Sprintf(UserFlightsKey, userID), 0, int64(limit-1)).Result()
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("list_records").Inc()
		return nil, fmt.Errorf("failed to list flight records: %w", err)
	}

	records := make([]models.FlightRecord, 0, len(ids))
	for _, id := range ids {
		flight, err := r.GetFlight(ctx, userID, id)
		if err == ErrFlightNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, flight.Record())
	}

	return records, nil
}

// DeleteFlight удаляет полет, его измерения и метрики
func (r *RedisRepository) DeleteFlight(ctx context.Context, userID, flightID string) error {
	owner, err := r.client.HGet(ctx, FlightPrefix+flightID, "user_id").Result()
	if err == redis.Nil || (err == nil && owner != userID) {
		return ErrFlightNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check flight owner: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, FlightPrefix+flightID)
	pipe.Del(ctx, fmt.Sprintf(FlightSamplesKey, flightID))
	pipe.Del(ctx, fmt.Sprintf(FlightMetricsKey, flightID))
	pipe.ZRem(ctx, fmt.Sprintf(UserFlightsKey, userID), flightID)

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("delete_flight").Inc()
		return fmt.Errorf("failed to delete flight: %w", err)
	}

	metrics.StoredFlights.Dec()
	return nil
}

// GetStats возвращает статистику хранилища
func (r *RedisRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	saved, err := r.client.Get(ctx, StatsPrefix+"flights:saved").Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	dbSize, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get db size: %w", err)
	}

	return map[string]interface{}{
		"flights_saved": saved,
		"db_keys":       dbSize,
	}, nil
}

// flightFromHash восстанавливает метаданные полета из Redis HSET
func flightFromHash(id string, data map[string]string) (*models.Flight, error) {
	flight := &models.Flight{
		ID:     id,
		UserID: data["user_id"],
		Name:   data["name"],
	}

	if v := data["created_at"]; v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at for flight %s: %w", id, err)
		}
		flight.CreatedAt = time.Unix(ts, 0).UTC()
	}

	if v := data["battery_start"]; v != "" {
		if battery, err := strconv.ParseFloat(v, 64); err == nil {
			flight.BatteryStart = battery
		}
	}

	if v := data["sample_count"]; v != "" {
		if count, err := strconv.Atoi(v); err == nil {
			flight.SampleCount = count
		}
	}

	return flight, nil
}
