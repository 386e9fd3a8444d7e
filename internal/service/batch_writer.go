package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aerotrace/telemetry-backend/internal/metrics"
	"github.com/aerotrace/telemetry-backend/internal/models"
	"github.com/aerotrace/telemetry-backend/internal/repository"
	"github.com/aerotrace/telemetry-backend/pkg/utils"
)

// SampleBatch измерения одного полета для отложенного сохранения
type SampleBatch struct {
	FlightID string
	Samples  []models.PositionSample
}

// BatchWriter асинхронный writer для батчевого сохранения истории в MySQL
type BatchWriter struct {
	history repository.HistoryRepository
	logger  *utils.Logger
	config  *BatchConfig

	// Каналы для разных типов данных
	flightChan chan *models.Flight
	sampleChan chan *SampleBatch

	// Буферы для батчинга
	flightBuffer []*models.Flight

	// Контроль жизненного цикла
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// BatchConfig конфигурация батчера
type BatchConfig struct {
	BatchSize     int           `json:"batch_size"`     // Размер батча полетов
	FlushInterval time.Duration `json:"flush_interval"` // Интервал принудительного flush
	ChannelBuffer int           `json:"channel_buffer"` // Размер буфера канала
	MaxRetries    int           `json:"max_retries"`    // Максимум повторов
	RetryDelay    time.Duration `json:"retry_delay"`    // Задержка между повторами
}

// DefaultBatchConfig возвращает конфигурацию по умолчанию
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		ChannelBuffer: 1000,
		MaxRetries:    3,
		RetryDelay:    100 * time.Millisecond,
	}
}

// NewBatchWriter создает новый BatchWriter и запускает worker'ы
func NewBatchWriter(history repository.HistoryRepository, logger *utils.Logger, config *BatchConfig) *BatchWriter {
	if config == nil {
		config = DefaultBatchConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	bw := &BatchWriter{
		history: history,
		logger:  logger,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,

		flightChan: make(chan *models.Flight, config.ChannelBuffer),
		sampleChan: make(chan *SampleBatch, config.ChannelBuffer),

		flightBuffer: make([]*models.Flight, 0, config.BatchSize),
	}

	bw.wg.Add(1)
	go bw.flightWorker()

	bw.wg.Add(1)
	go bw.sampleWorker()

	bw.logger.WithField("batch_size", config.BatchSize).
		WithField("flush_interval", config.FlushInterval).
		Info("Started MySQL batch writer")

	return bw
}

// QueueFlight добавляет полет в очередь для сохранения в историю
func (bw *BatchWriter) QueueFlight(flight *models.Flight) error {
	select {
	case bw.flightChan <- flight:
		metrics.MySQLQueueSize.WithLabelValues("flights").Set(float64(len(bw.flightChan)))
		return nil
	case <-bw.ctx.Done():
		return fmt.Errorf("batch writer is shutting down")
	default:
		metrics.MySQLWriteErrors.WithLabelValues("flights").Inc()
		return fmt.Errorf("flight queue is full")
	}
}

// QueueSamples добавляет измерения полета в очередь для сохранения
func (bw *BatchWriter) QueueSamples(flightID string, samples []models.PositionSample) error {
	batch := &SampleBatch{FlightID: flightID, Samples: samples}

	select {
	case bw.sampleChan <- batch:
		metrics.MySQLQueueSize.WithLabelValues("samples").Set(float64(len(bw.sampleChan)))
		return nil
	case <-bw.ctx.Done():
		return fmt.Errorf("batch writer is shutting down")
	default:
		metrics.MySQLWriteErrors.WithLabelValues("samples").Inc()
		return fmt.Errorf("sample queue is full")
	}
}

// flightWorker накапливает полеты и флашит их батчами
func (bw *BatchWriter) flightWorker() {
	defer bw.wg.Done()

	ticker := time.NewTicker(bw.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case flight := <-bw.flightChan:
			bw.flightBuffer = append(bw.flightBuffer, flight)

			// Флашим при достижении размера батча
			if len(bw.flightBuffer) >= bw.config.BatchSize {
				bw.flushFlights()
			}

		case <-ticker.C:
			// Периодический flush даже если батч не полный
			if len(bw.flightBuffer) > 0 {
				bw.flushFlights()
			}

		case <-bw.ctx.Done():
			// Финальный flush при завершении
			bw.drainFlights()
			return
		}
	}
}

// sampleWorker сохраняет батчи измерений по мере поступления.
// Измерения уже приходят сгруппированными по полету, дополнительное
// накопление не требуется.
func (bw *BatchWriter) sampleWorker() {
	defer bw.wg.Done()

	for {
		select {
		case batch := <-bw.sampleChan:
			bw.writeSamples(batch)

		case <-bw.ctx.Done():
			for {
				select {
				case batch := <-bw.sampleChan:
					bw.writeSamples(batch)
				default:
					return
				}
			}
		}
	}
}

// flushFlights сохраняет накопленные полеты с повторами при ошибках
func (bw *BatchWriter) flushFlights() {
	if len(bw.flightBuffer) == 0 {
		return
	}

	start := time.Now()
	batch := bw.flightBuffer
	bw.flightBuffer = make([]*models.Flight, 0, bw.config.BatchSize)

	for _, flight := range batch {
		var err error
		for attempt := 0; attempt <= bw.config.MaxRetries; attempt++ {
			if attempt > 0 {
				time.Sleep(bw.config.RetryDelay)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err = bw.history.SaveFlightToHistory(ctx, flight)
			cancel()

			if err == nil {
				break
			}
		}

		if err != nil {
			metrics.MySQLWriteErrors.WithLabelValues("flights").Inc()
			bw.logger.WithField("flight_id", flight.ID).
				WithField("error", err).
				Error("Failed to persist flight to history")
		}
	}

	metrics.MySQLBatchSize.WithLabelValues("flights").Observe(float64(len(batch)))
	metrics.MySQLBatchDuration.WithLabelValues("flights").Observe(time.Since(start).Seconds())
}

// drainFlights забирает остатки из канала и флашит все
func (bw *BatchWriter) drainFlights() {
	for {
		select {
		case flight := <-bw.flightChan:
			bw.flightBuffer = append(bw.flightBuffer, flight)
		default:
			bw.flushFlights()
			return
		}
	}
}

// writeSamples сохраняет один батч измерений с повторами
func (bw *BatchWriter) writeSamples(batch *SampleBatch) {
	var err error
	for attempt := 0; attempt <= bw.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(bw.config.RetryDelay)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = bw.history.SaveSamplesBatch(ctx, batch.FlightID, batch.Samples)
		cancel()

		if err == nil {
			return
		}
	}

	metrics.MySQLWriteErrors.WithLabelValues("samples").Inc()
	bw.logger.WithField("flight_id", batch.FlightID).
		WithField("sample_count", len(batch.Samples)).
		WithField("error", err).
		Error("Failed to persist samples to history")
}

// Stop останавливает batch writer, дожидаясь сохранения остатков
func (bw *BatchWriter) Stop() {
	bw.logger.Info("Stopping MySQL batch writer")
	bw.cancel()
	bw.wg.Wait()
}
