package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/aerotrace/telemetry-backend/internal/metrics"
	"github.com/aerotrace/telemetry-backend/internal/models"
	"github.com/aerotrace/telemetry-backend/pkg/utils"
)

// ValidationError ошибка формы входных данных. Аналитический движок
// такие проверки не выполняет и принимает только уже проверенные данные.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationConfig ограничения проверки загружаемых логов
type ValidationConfig struct {
	MaxSamples int // Максимум измерений в одном логе
}

// DefaultValidationConfig возвращает конфигурацию по умолчанию
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		MaxSamples: 100000,
	}
}

// ValidationService проверяет и нормализует загружаемые логи полетов
// перед передачей в аналитический движок
type ValidationService struct {
	config *ValidationConfig
	logger *utils.Logger
}

// NewValidationService создает новый сервис валидации
func NewValidationService(logger *utils.Logger, config *ValidationConfig) *ValidationService {
	if config == nil {
		config = DefaultValidationConfig()
	}

	return &ValidationService{
		config: config,
		logger: logger,
	}
}

// ValidateFlightLog проверяет форму загруженного лога. При успехе лог
// дополнительно нормализуется: пустая фаза заменяется на transit, а
// отсутствующая ошибка вычисляется по целевой позиции.
func (s *ValidationService) ValidateFlightLog(log *models.FlightLog) error {
	if log == nil {
		return s.reject("", "flight log is required")
	}

	if len(log.Samples) == 0 {
		return s.reject("samples", "at least one sample is required")
	}

	if len(log.Samples) > s.config.MaxSamples {
		return s.reject("samples", fmt.Sprintf("too many samples: %d (limit %d)", len(log.Samples), s.config.MaxSamples))
	}

	prevTime := math.Inf(-1)
	for i := range log.Samples {
		sample := &log.Samples[i]

		if err := sample.Validate(); err != nil {
			return s.reject(fmt.Sprintf("samples[%d]", i), err.Error())
		}

		if sample.Time < prevTime {
			return s.reject(fmt.Sprintf("samples[%d]", i), "samples must be ordered by time")
		}
		prevTime = sample.Time
	}

	if log.BatteryStart < 0 {
		return s.reject("battery_start", "battery voltage cannot be negative")
	}

	s.normalize(log)

	metrics.ValidationAcceptedLogs.Inc()
	metrics.ValidationAcceptedSamples.Add(float64(len(log.Samples)))

	return nil
}

// normalize подставляет значения по умолчанию в необязательные поля
func (s *ValidationService) normalize(log *models.FlightLog) {
	for i := range log.Samples {
		sample := &log.Samples[i]

		if sample.Phase == "" {
			sample.Phase = models.PhaseTransit
		}

		if sample.Error == 0 && sample.Target != nil {
			sample.Error = sample.Position.DistanceTo(*sample.Target)
		}
	}
}

// reject логирует отказ и возвращает типизированную ошибку
func (s *ValidationService) reject(field, message string) error {
	metrics.ValidationRejectedLogs.Inc()
	metrics.UploadRejected.WithLabelValues(rejectReason(field)).Inc()

	s.logger.WithFields(map[string]interface{}{
		"field":  field,
		"reason": message,
	}).Debug("Flight log rejected")

	return &ValidationError{Field: field, Message: message}
}

// rejectReason сводит поле к метке с ограниченной кардинальностью
func rejectReason(field string) string {
	switch {
	case field == "":
		return "missing_log"
	case field == "samples":
		return "bad_sample_count"
	case strings.HasPrefix(field, "samples["):
		return "invalid_sample"
	default:
		return field
	}
}
