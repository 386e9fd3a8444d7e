package models

import "time"

// TrendDirection направление изменения метрики между половинами серии
type TrendDirection string

const (
	TrendImproving        TrendDirection = "improving"
	TrendDeclining        TrendDirection = "declining"
	TrendStable           TrendDirection = "stable"
	TrendInsufficientData TrendDirection = "insufficient_data"
)

// TrendPeriod размер календарной корзины для трендов
type TrendPeriod string

const (
	PeriodDaily   TrendPeriod = "daily"
	PeriodWeekly  TrendPeriod = "weekly"
	PeriodMonthly TrendPeriod = "monthly"
)

// Valid проверяет, что период является одним из поддерживаемых
func (p TrendPeriod) Valid() bool {
	return p == PeriodDaily || p == PeriodWeekly || p == PeriodMonthly
}

// ComparisonInsight один вывод сравнительного анализа полетов
type ComparisonInsight struct {
	Type       string  `json:"type"`        // best_stability | best_efficiency | best_accuracy | network_sensitivity
	FlightID   string  `json:"flight_id,omitempty"`
	FlightName string  `json:"flight_name,omitempty"`
	Value      float64 `json:"value"`
	Message    string  `json:"message"`
}

// ComparisonSummary сводка по набору сравниваемых полетов
type ComparisonSummary struct {
	FlightCount          int     `json:"flight_count"`
	AvgStability         float64 `json:"avg_stability"`          // Средняя оценка устойчивости 0-100
	AvgEfficiency        float64 `json:"avg_efficiency"`         // Средний коэффициент эффективности 0-1
	AvgAccuracy          float64 `json:"avg_accuracy"`           // Средняя ошибка позиционирования в метрах
	AvgSmoothness        float64 `json:"avg_smoothness"`         // Средняя плавность 0-100
	PerformanceVariation string  `json:"performance_variation"`  // Low | Medium | High
}

// TrendPoint одна точка временного ряда производительности
type TrendPoint struct {
	Bucket      time.Time `json:"bucket"`       // Начало календарной корзины
	Value       float64   `json:"value"`        // Среднее значение метрики в корзине
	FlightCount int       `json:"flight_count"` // Количество полетов в корзине
}

// TrendSummary результат анализа трендов по истории полетов
type TrendSummary struct {
	Metric    string         `json:"metric"`
	Period    TrendPeriod    `json:"period"`
	Direction TrendDirection `json:"direction"`
	Points    []TrendPoint   `json:"points"`
}
