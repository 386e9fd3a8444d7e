package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/aerotrace/telemetry-backend/internal/config"
	"github.com/aerotrace/telemetry-backend/internal/metrics"
	"github.com/aerotrace/telemetry-backend/internal/models"
	"github.com/aerotrace/telemetry-backend/pkg/utils"
)

// MySQLRepository долговременное хранилище истории полетов
type MySQLRepository struct {
	db     *sql.DB
	logger *utils.Logger
	config *config.MySQLConfig
}

// NewMySQLRepository создает новый MySQL репозиторий
func NewMySQLRepository(cfg *config.MySQLConfig, logger *utils.Logger) (*MySQLRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql DSN is required")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	// Настройки connection pool
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	return &MySQLRepository{
		db:     db,
		logger: logger,
		config: cfg,
	}, nil
}

// Ping проверяет соединение с MySQL
func (r *MySQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close закрывает соединение с MySQL
func (r *MySQLRepository) Close() error {
	return r.db.Close()
}

// EnsureSchema создает таблицы истории, если их еще нет
func (r *MySQLRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS flights (
			id            VARCHAR(64)  NOT NULL PRIMARY KEY,
			user_id       VARCHAR(64)  NOT NULL,
			name          VARCHAR(255) NOT NULL DEFAULT '',
			created_at    DATETIME     NOT NULL,
			battery_start DOUBLE       NOT NULL DEFAULT 0,
			sample_count  INT          NOT NULL DEFAULT 0,
			metrics       JSON         NULL,
			INDEX idx_flights_user_created (user_id, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS flight_samples (
			flight_id       VARCHAR(64) NOT NULL,
			seq             INT         NOT NULL,
			x               DOUBLE      NOT NULL,
			y               DOUBLE      NOT NULL,
			z               DOUBLE      NOT NULL,
			target_x        DOUBLE      NULL,
			target_y        DOUBLE      NULL,
			target_z        DOUBLE      NULL,
			ts              DOUBLE      NOT NULL,
			error           DOUBLE      NOT NULL DEFAULT 0,
			phase           VARCHAR(16) NOT NULL DEFAULT '',
			stabilized      TINYINT(1)  NOT NULL DEFAULT 0,
			network_quality DOUBLE      NULL,
			PRIMARY KEY (flight_id, seq)
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	return nil
}

// SaveFlightToHistory сохраняет или обновляет запись полета
func (r *MySQLRepository) SaveFlightToHistory(ctx context.Context, flight *models.Flight) error {
	if flight == nil {
		return fmt.Errorf("flight cannot be nil")
	}

	var metricsJSON interface{}
	if flight.Metrics != nil {
		data, err := json.Marshal(flight.Metrics)
		if err != nil {
			return fmt.Errorf("failed to marshal metrics: %w", err)
		}
		metricsJSON = string(data)
	}

	query := `
		INSERT INTO flights (id, user_id, name, created_at, battery_start, sample_count, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			battery_start = VALUES(battery_start),
			sample_count = VALUES(sample_count),
			metrics = VALUES(metrics)
	`

	_, err := r.db.ExecContext(ctx, query,
		flight.ID, flight.UserID, flight.Name, flight.CreatedAt.UTC(),
		flight.BatteryStart, flight.SampleCount, metricsJSON)
	if err != nil {
		metrics.MySQLWriteErrors.WithLabelValues("flights").Inc()
		return fmt.Errorf("failed to save flight to history: %w", err)
	}

	return nil
}

// SaveSamplesBatch сохраняет измерения полета одним multi-row INSERT
func (r *MySQLRepository) SaveSamplesBatch(ctx context.Context, flightID string, samples []models.PositionSample) error {
	if len(samples) == 0 {
		return nil
	}

	start := time.Now()

	var sb strings.Builder
	sb.WriteString(`INSERT INTO flight_samples
		(flight_id, seq, x, y, z, target_x, target_y, target_z, ts, error, phase, stabilized, network_quality)
		VALUES `)

	args := make([]interface{}, 0, len(samples)*13)
	for i := range samples {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")

		s := &samples[i]
		var tx, ty, tz interface{}
		if s.Target != nil {
			tx, ty, tz = s.Target.X, s.Target.Y, s.Target.Z
		}
		var quality interface{}
		if s.NetworkQuality != nil {
			quality = *s.NetworkQuality
		}

		args = append(args, flightID, i,
			s.Position.X, s.Position.Y, s.Position.Z,
			tx, ty, tz,
			s.Time, s.Error, string(s.Phase), s.Stabilized, quality)
	}

	sb.WriteString(" ON DUPLICATE KEY UPDATE error = VALUES(error)")

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		metrics.MySQLWriteErrors.WithLabelValues("samples").Inc()
		return fmt.Errorf("failed to save samples batch: %w", err)
	}

	metrics.MySQLBatchSize.WithLabelValues("samples").Observe(float64(len(samples)))
	metrics.MySQLBatchDuration.WithLabelValues("samples").Observe(time.Since(start).Seconds())

	return nil
}

// ListFlightRecords возвращает историю полетов пользователя для
// аналитики, упорядоченную по времени загрузки (старые первыми)
func (r *MySQLRepository) ListFlightRecords(ctx context.Context, userID string, limit int) ([]models.FlightRecord, error) {
	query := `
		SELECT id, name, created_at, battery_start, metrics
		FROM flights
		WHERE user_id = ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query flight records: %w", err)
	}
	defer rows.Close()

	var records []models.FlightRecord
	for rows.Next() {
		var rec models.FlightRecord
		var createdAt time.Time
		var metricsJSON sql.NullString

		if err := rows.Scan(&rec.ID, &rec.Name, &createdAt, &rec.BatteryStart, &metricsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan flight record: %w", err)
		}
		rec.CreatedAt = createdAt.UTC()

		if metricsJSON.Valid && metricsJSON.String != "" {
			var m models.TrajectoryMetrics
			if err := json.Unmarshal([]byte(metricsJSON.String), &m); err != nil {
				r.logger.WithField("flight_id", rec.ID).WithField("error", err).Warn("Skipping flight with corrupted metrics")
				continue
			}
			rec.Metrics = &m
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flight records: %w", err)
	}

	return records, nil
}

// CleanupOldFlights удаляет полеты старше заданного возраста
func (r *MySQLRepository) CleanupOldFlights(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).UTC()

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM flight_samples WHERE flight_id IN (SELECT id FROM flights WHERE created_at < ?)`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup old samples: %w", err)
	}
	samplesDeleted, _ := result.RowsAffected()

	result, err = r.db.ExecContext(ctx, `DELETE FROM flights WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup old flights: %w", err)
	}
	flightsDeleted, _ := result.RowsAffected()

	r.logger.WithFields(map[string]interface{}{
		"flights_deleted": flightsDeleted,
		"samples_deleted": samplesDeleted,
		"cutoff":          cutoff,
	}).Info("Cleaned up old flight history")

	return nil
}

// GetStats возвращает статистику истории
func (r *MySQLRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	var flightCount, sampleCount int64

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flights`).Scan(&flightCount); err != nil {
		return nil, fmt.Errorf("failed to count flights: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flight_samples`).Scan(&sampleCount); err != nil {
		return nil, fmt.Errorf("failed to count samples: %w", err)
	}

	return map[string]interface{}{
		"flights": flightCount,
		"samples": sampleCount,
	}, nil
}
