package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aerotrace/telemetry-backend/internal/models"
	"github.com/aerotrace/telemetry-backend/pkg/utils"
)

// TelemetryMessage одно сообщение живой телеметрии от дрона
type TelemetryMessage struct {
	DeviceID  string                `json:"device_id"` // ID дрона (из топика)
	FlightID  string                `json:"flight_id"` // Текущий полет, если дрон его сообщает
	Timestamp time.Time             `json:"timestamp"` // Время получения сообщения
	Battery   float64               `json:"battery"`   // Напряжение батареи, В
	Sample    models.PositionSample `json:"sample"`    // Телеметрическое измерение
}

// telemetryPayload формат JSON полезной нагрузки в топике uav/{id}/telemetry
type telemetryPayload struct {
	FlightID string                `json:"flight_id,omitempty"`
	Battery  float64               `json:"battery,omitempty"`
	Sample   models.PositionSample `json:"sample"`
}

// Parser разбирает сообщения живой телеметрии
type Parser struct {
	logger *utils.Logger
}

// NewParser создает новый парсер телеметрии
func NewParser(logger *utils.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse разбирает сообщение из топика uav/{device_id}/telemetry.
// Возвращает nil без ошибки для топиков, не относящихся к телеметрии.
func (p *Parser) Parse(topic string, payload []byte) (*TelemetryMessage, error) {
	deviceID, ok := deviceFromTopic(topic)
	if !ok {
		p.logger.WithField("topic", topic).Debug("Skipping non-telemetry topic")
		return nil, nil
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	var body telemetryPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("failed to decode telemetry payload: %w", err)
	}

	if err := body.Sample.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry sample: %w", err)
	}

	return &TelemetryMessage{
		DeviceID:  deviceID,
		FlightID:  body.FlightID,
		Timestamp: time.Now().UTC(),
		Battery:   body.Battery,
		Sample:    body.Sample,
	}, nil
}

// deviceFromTopic извлекает ID дрона из топика uav/{device_id}/telemetry
func deviceFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "uav" || parts[2] != "telemetry" {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
