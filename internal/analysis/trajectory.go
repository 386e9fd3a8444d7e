// Package analysis реализует аналитический движок телеметрии: метрики
// траектории одного полета, влияние качества связи и кросс-полетную
// аналитику. Все функции чистые, не изменяют входные данные и не
// выполняют I/O; вырожденные входы дают нулевые или явно обозначенные
// "insufficient data" результаты.
package analysis

import (
	"github.com/aerotrace/telemetry-backend/internal/models"
	"github.com/aerotrace/telemetry-backend/internal/stats"
)

// Константы поведения движка. Значения зафиксированы для совместимости
// отчетов между версиями — не менять без пересчета сохраненных метрик.
const (
	// StabilityScale линейный масштаб перевода дисперсии ошибки (метры)
	// в оценку устойчивости 0-100
	StabilityScale = 1000.0

	// EfficiencyFallback нейтральное значение коэффициента эффективности
	// при отсутствии или вырожденности идеального маршрута
	EfficiencyFallback = 0.85

	// MaxSpeedFactor эвристика оценки максимальной скорости по средней
	MaxSpeedFactor = 1.5
)

// Analyze вычисляет полный набор метрик траектории одного полета.
// samples должны быть упорядочены по времени; ideal может быть nil.
// Пустой список измерений дает нулевые метрики, не ошибку.
func Analyze(samples []models.PositionSample, ideal []models.Vector3) *models.TrajectoryMetrics {
	return &models.TrajectoryMetrics{
		PathAccuracy:   pathAccuracy(samples),
		PhaseBreakdown: phaseBreakdown(samples),
		Stability:      stability(samples),
		Efficiency:     efficiency(samples, ideal),
		Summary:        summarize(samples),
	}
}

// pathAccuracy собирает статистику ошибки позиционирования: полную 3D,
// горизонтальную и высотную. Компоненты считаются только по измерениям
// с известной целевой позицией.
func pathAccuracy(samples []models.PositionSample) models.PathAccuracy {
	errors := make([]float64, 0, len(samples))
	var xyErrors, altErrors []float64

	for i := range samples {
		s := &samples[i]
		errors = append(errors, s.PositionError())

		if s.Target != nil {
			xyErrors = append(xyErrors, s.Position.DistanceXY(*s.Target))
			altErr := s.Position.Z - s.Target.Z
			if altErr < 0 {
				altErr = -altErr
			}
			altErrors = append(altErrors, altErr)
		}
	}

	return models.PathAccuracy{
		Overall:  toErrorStats(stats.Calculate(errors)),
		XY:       toErrorStats(stats.Calculate(xyErrors)),
		Altitude: toErrorStats(stats.Calculate(altErrors)),
	}
}

func toErrorStats(s stats.Stats) models.ErrorStats {
	return models.ErrorStats{
		Average: s.Average,
		Median:  s.Median,
		Min:     s.Min,
		Max:     s.Max,
	}
}

// phaseBreakdown разбивает измерения по фазам полета и считает метрики
// каждой фазы независимо. Пустая фаза дает нулевые значения, не NaN.
func phaseBreakdown(samples []models.PositionSample) models.PhaseBreakdown {
	return models.PhaseBreakdown{
		Waypoint: phaseStats(samples, models.PhaseWaypoint),
		Transit:  phaseStats(samples, models.PhaseTransit),
	}
}

func phaseStats(samples []models.PositionSample, phase models.FlightPhase) models.PhaseStats {
	var count, stabilized int
	var errorSum float64

	for i := range samples {
		s := &samples[i]
		if s.Phase != phase {
			continue
		}
		count++
		errorSum += s.PositionError()
		if s.Stabilized {
			stabilized++
		}
	}

	if count == 0 {
		return models.PhaseStats{}
	}

	return models.PhaseStats{
		Count:             count,
		AverageError:      errorSum / float64(count),
		StabilizationRate: float64(stabilized) / float64(count),
	}
}

// stability вычисляет характеристики устойчивости. Оценка — линейная
// шкала от дисперсии ошибки: score = 100 − stddev*StabilityScale,
// ограниченная диапазоном 0-100.
func stability(samples []models.PositionSample) models.Stability {
	if len(samples) == 0 {
		return models.Stability{}
	}

	errors := make([]float64, len(samples))
	stabilized := 0
	for i := range samples {
		errors[i] = samples[i].PositionError()
		if samples[i].Stabilized {
			stabilized++
		}
	}

	variance := stats.StdDev(errors)

	score := 100 - variance*StabilityScale
	if score < 0 {
		score = 0
	}

	return models.Stability{
		StabilizationRatio: float64(stabilized) / float64(len(samples)),
		ErrorVariance:      variance,
		Score:              score,
	}
}

// efficiency сравнивает фактически пройденный путь с идеальным маршрутом.
// При отсутствии или вырожденности идеального маршрута коэффициент
// принимает фиксированное нейтральное значение EfficiencyFallback.
func efficiency(samples []models.PositionSample, ideal []models.Vector3) models.Efficiency {
	actual := 0.0
	for i := 1; i < len(samples); i++ {
		actual += samples[i-1].Position.DistanceTo(samples[i].Position)
	}

	idealDist := 0.0
	for i := 1; i < len(ideal); i++ {
		idealDist += ideal[i-1].DistanceTo(ideal[i])
	}

	ratio := EfficiencyFallback
	if idealDist > 0 {
		// Неподвижный дрон при ненулевом идеальном маршруте дает
		// бесконечное отношение, ограничиваем единицей
		ratio = 1.0
		if actual > 0 {
			ratio = idealDist / actual
			if ratio > 1.0 {
				ratio = 1.0
			}
		}
	}

	return models.Efficiency{
		ActualDistance:  actual,
		IdealDistance:   idealDist,
		EfficiencyRatio: ratio,
	}
}

// summarize собирает сводные характеристики полета. Максимальная
// скорость — эвристика от средней, истинный по-точечный ряд скоростей
// движок не строит.
func summarize(samples []models.PositionSample) models.FlightSummary {
	summary := models.FlightSummary{SampleCount: len(samples)}
	if len(samples) < 2 {
		return summary
	}

	distance := 0.0
	for i := 1; i < len(samples); i++ {
		distance += samples[i-1].Position.DistanceTo(samples[i].Position)
	}

	summary.Duration = samples[len(samples)-1].Time - samples[0].Time
	if summary.Duration > 0 {
		summary.AvgSpeed = distance / summary.Duration
		summary.MaxSpeed = summary.AvgSpeed * MaxSpeedFactor
	}

	return summary
}
