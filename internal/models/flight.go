package models

import (
	"fmt"
	"time"
)

// Flight запись об одном загруженном полете
type Flight struct {
	// Идентификация
	ID     string `json:"id"`      // Уникальный идентификатор полета
	UserID string `json:"user_id"` // Владелец записи
	Name   string `json:"name"`    // Человекочитаемое имя полета

	// Происхождение
	CreatedAt    time.Time `json:"created_at"`              // Время загрузки
	BatteryStart float64   `json:"battery_start,omitempty"` // Напряжение батареи на старте, В
	SampleCount  int       `json:"sample_count"`            // Количество измерений

	// Вычисленные метрики, nil до завершения анализа
	Metrics *TrajectoryMetrics `json:"metrics,omitempty"`
}

// Validate проверяет минимальную корректность записи полета
func (f *Flight) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("flight id is required")
	}
	if f.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// FlightRecord облегченное представление полета для кросс-полетной
// аналитики: метаданные плюс уже вычисленные метрики.
type FlightRecord struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	CreatedAt    time.Time          `json:"created_at"`
	BatteryStart float64            `json:"battery_start,omitempty"`
	Metrics      *TrajectoryMetrics `json:"metrics"`
}

// Record возвращает представление полета для аналитики
func (f *Flight) Record() FlightRecord {
	return FlightRecord{
		ID:           f.ID,
		Name:         f.Name,
		CreatedAt:    f.CreatedAt,
		BatteryStart: f.BatteryStart,
		Metrics:      f.Metrics,
	}
}

// FlightLog полезная нагрузка загрузки: измерения плюс необязательный
// идеальный маршрут
type FlightLog struct {
	Name      string           `json:"name"`
	Samples   []PositionSample `json:"samples"`
	IdealPath []Vector3        `json:"ideal_path,omitempty"`

	BatteryStart float64 `json:"battery_start,omitempty"`
}
