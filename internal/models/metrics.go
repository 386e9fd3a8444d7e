package models

// ErrorStats описательная статистика по серии ошибок позиционирования
type ErrorStats struct {
	Average float64 `json:"average"` // Средняя ошибка в метрах
	Median  float64 `json:"median"`  // Медианная ошибка
	Min     float64 `json:"min"`     // Минимальная ошибка
	Max     float64 `json:"max"`     // Максимальная ошибка
}

// PathAccuracy точность следования маршруту
type PathAccuracy struct {
	Overall  ErrorStats `json:"overall"`  // Полная 3D ошибка
	XY       ErrorStats `json:"xy"`       // Ошибка в горизонтальной плоскости
	Altitude ErrorStats `json:"altitude"` // Ошибка по высоте
}

// PhaseStats метрики одной фазы полета
type PhaseStats struct {
	Count             int     `json:"count"`              // Количество измерений в фазе
	AverageError      float64 `json:"average_error"`      // Средняя ошибка в метрах
	StabilizationRate float64 `json:"stabilization_rate"` // Доля стабилизированных измерений 0-1
}

// PhaseBreakdown разбивка метрик по фазам полета
type PhaseBreakdown struct {
	Waypoint PhaseStats `json:"waypoint"` // Удержание точек
	Transit  PhaseStats `json:"transit"`  // Перелеты между точками
}

// Stability характеристики устойчивости полета
type Stability struct {
	StabilizationRatio float64 `json:"stabilization_ratio"` // Доля стабилизированных измерений 0-1
	ErrorVariance      float64 `json:"error_variance"`      // Стандартное отклонение ошибки в метрах
	Score              float64 `json:"score"`               // Оценка устойчивости 0-100
}

// Efficiency эффективность пройденного маршрута
type Efficiency struct {
	ActualDistance  float64 `json:"actual_distance"`  // Фактически пройденный путь в метрах
	IdealDistance   float64 `json:"ideal_distance"`   // Длина идеального маршрута в метрах
	EfficiencyRatio float64 `json:"efficiency_ratio"` // ideal/actual, не более 1.0
}

// FlightSummary сводные характеристики полета
type FlightSummary struct {
	SampleCount int     `json:"sample_count"` // Количество измерений
	Duration    float64 `json:"duration"`     // Длительность полета в секундах
	AvgSpeed    float64 `json:"avg_speed"`    // Средняя скорость м/с
	MaxSpeed    float64 `json:"max_speed"`    // Оценка максимальной скорости м/с
}

// BucketStats метрики одной категории качества связи
type BucketStats struct {
	Count             int     `json:"count"`              // Количество измерений в категории
	Percentage        float64 `json:"percentage"`         // Доля от общего числа измерений, %
	AverageError      float64 `json:"average_error"`      // Средняя ошибка в метрах
	StabilizationRate float64 `json:"stabilization_rate"` // Доля стабилизированных измерений 0-1
}

// Recommendation рекомендация по итогам анализа качества связи
type Recommendation struct {
	Priority string `json:"priority"` // high | medium | low
	Message  string `json:"message"`
}

// NetworkImpact влияние качества связи на точность позиционирования.
// Категории без измерений отсутствуют в Buckets, чтобы потребитель мог
// отличить "нет данных" от нулевой ошибки.
type NetworkImpact struct {
	Buckets             map[string]BucketStats `json:"buckets"`
	Correlation         float64                `json:"correlation"`          // Пирсон между качеством и ошибкой
	CorrelationStrength string                 `json:"correlation_strength"` // weak | moderate | strong
	Interpretation      string                 `json:"interpretation"`
	Recommendations     []Recommendation       `json:"recommendations,omitempty"`
}

// TrajectoryMetrics полный набор метрик одного полета. Создается один раз
// после загрузки полета и больше не изменяется.
type TrajectoryMetrics struct {
	PathAccuracy   PathAccuracy   `json:"path_accuracy"`
	PhaseBreakdown PhaseBreakdown `json:"phase_breakdown"`
	Stability      Stability      `json:"stability"`
	Efficiency     Efficiency     `json:"efficiency"`
	Summary        FlightSummary  `json:"summary"`
	NetworkImpact  *NetworkImpact `json:"network_impact,omitempty"`
}
