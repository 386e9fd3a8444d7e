package models

import (
	"fmt"
	"math"
)

// FlightPhase режим управления полетом в момент измерения
type FlightPhase string

const (
	PhaseWaypoint FlightPhase = "waypoint" // Удержание точки
	PhaseTransit  FlightPhase = "transit"  // Перелет между точками
)

// Valid проверяет, что фаза является одной из известных
func (p FlightPhase) Valid() bool {
	return p == PhaseWaypoint || p == PhaseTransit
}

// Vector3 позиция в локальной декартовой системе координат (метры)
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DistanceTo возвращает евклидово расстояние до другой точки в метрах
func (v Vector3) DistanceTo(other Vector3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// DistanceXY возвращает расстояние в горизонтальной плоскости (без высоты)
func (v Vector3) DistanceXY(other Vector3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// DefaultNetworkQuality качество связи, принимаемое при отсутствии измерения
const DefaultNetworkQuality = 100.0

// PositionSample одно телеметрическое наблюдение дрона
type PositionSample struct {
	// Позиция
	Position Vector3  `json:"position"`         // Фактические координаты
	Target   *Vector3 `json:"target,omitempty"` // Целевая позиция в этот момент (опционально)

	// Время и ошибка
	Time  float64 `json:"time"`  // Метка времени в секундах
	Error float64 `json:"error"` // Расстояние до целевой позиции в метрах

	// Состояние полета
	Phase      FlightPhase `json:"phase"`      // Режим управления: waypoint или transit
	Stabilized bool        `json:"stabilized"` // Дрон удерживал позицию в этот момент

	// Качество связи 0-100, nil означает отсутствие измерения
	NetworkQuality *float64 `json:"network_quality,omitempty"`
}

// QualityOrDefault возвращает качество связи, подставляя 100 при отсутствии
func (s *PositionSample) QualityOrDefault() float64 {
	if s.NetworkQuality == nil {
		return DefaultNetworkQuality
	}
	return *s.NetworkQuality
}

// PositionError возвращает ошибку позиционирования. Если ошибка не была
// предвычислена, но целевая позиция известна, считает расстояние до цели.
func (s *PositionSample) PositionError() float64 {
	if s.Error > 0 || s.Target == nil {
		return s.Error
	}
	return s.Position.DistanceTo(*s.Target)
}

// Validate проверяет корректность одного измерения. Вызывается на границе
// загрузки, аналитический движок принимает только уже проверенные данные.
func (s *PositionSample) Validate() error {
	if math.IsNaN(s.Position.X) || math.IsNaN(s.Position.Y) || math.IsNaN(s.Position.Z) {
		return fmt.Errorf("position contains NaN")
	}

	if math.IsNaN(s.Time) || math.IsInf(s.Time, 0) {
		return fmt.Errorf("invalid time: %f", s.Time)
	}

	if s.Error < 0 {
		return fmt.Errorf("negative error: %f", s.Error)
	}

	if s.Phase != "" && !s.Phase.Valid() {
		return fmt.Errorf("invalid phase: %s", s.Phase)
	}

	if s.NetworkQuality != nil {
		if q := *s.NetworkQuality; q < 0 || q > 100 {
			return fmt.Errorf("network quality out of range: %f", q)
		}
	}

	return nil
}
