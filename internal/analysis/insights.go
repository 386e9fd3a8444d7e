package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/aerotrace/telemetry-backend/internal/models"
	"github.com/aerotrace/telemetry-backend/internal/stats"
)

// Пороги кросс-полетной аналитики. Как и константы движка траектории,
// значения зафиксированы для стабильности отчетов.
const (
	// trendThreshold относительное отклонение средних половин серии,
	// при превышении которого тренд считается значимым
	trendThreshold = 0.10

	// systemicCorrThreshold средняя корреляция качество/ошибка, ниже
	// которой фиксируется системная чувствительность к сети
	systemicCorrThreshold = -0.3

	// Границы классификации разброса производительности по стандартному
	// отклонению оценок устойчивости
	variationLow    = 5.0
	variationMedium = 15.0

	// Пороги типовых проблем истории полетов
	highErrorMeters    = 0.1  // Средняя ошибка, считающаяся высокой
	highErrorShare     = 0.5  // Доля полетов с высокой ошибкой
	lowBatteryVolts    = 3.9  // Стартовое напряжение, считающееся низким
	lowBatteryShare    = 0.3  // Доля полетов с низким стартовым напряжением
)

// Ключи метрик для временных рядов производительности
const (
	MetricStability  = "stability"
	MetricEfficiency = "efficiency"
	MetricAccuracy   = "accuracy"
	MetricSmoothness = "smoothness"
)

// TrendDirection классифицирует направление тренда серии сравнением
// средних первой и второй половины (деление по индексу). Серия короче
// двух точек дает insufficient_data. Алгоритм намеренно грубый и
// сохраняется как есть ради совместимости отчетов.
func TrendDirection(series []float64) models.TrendDirection {
	if len(series) < 2 {
		return models.TrendInsufficientData
	}

	mid := len(series) / 2
	first := mean(series[:mid])
	second := mean(series[mid:])

	if first == 0 {
		if second > 0 {
			return models.TrendImproving
		}
		if second < 0 {
			return models.TrendDeclining
		}
		return models.TrendStable
	}

	change := (second - first) / first
	switch {
	case change > trendThreshold:
		return models.TrendImproving
	case change < -trendThreshold:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// ComparativeInsights находит лучшие полеты по устойчивости,
// эффективности и точности. Равные значения разрешаются в пользу
// первого полета во входном порядке. Дополнительно помечается системная
// чувствительность к качеству связи, если средняя корреляция по всем
// сравниваемым полетам ниже порога.
func ComparativeInsights(flights []models.FlightRecord) []models.ComparisonInsight {
	var insights []models.ComparisonInsight

	withMetrics := filterAnalyzed(flights)
	if len(withMetrics) == 0 {
		return insights
	}

	bestStability := withMetrics[0]
	bestEfficiency := withMetrics[0]
	bestAccuracy := withMetrics[0]

	var corrSum float64
	corrCount := 0

	for _, f := range withMetrics {
		m := f.Metrics
		if m.Stability.Score > bestStability.Metrics.Stability.Score {
			bestStability = f
		}
		if m.Efficiency.EfficiencyRatio > bestEfficiency.Metrics.Efficiency.EfficiencyRatio {
			bestEfficiency = f
		}
		if m.PathAccuracy.Overall.Average < bestAccuracy.Metrics.PathAccuracy.Overall.Average {
			bestAccuracy = f
		}
		if m.NetworkImpact != nil {
			corrSum += m.NetworkImpact.Correlation
			corrCount++
		}
	}

	insights = append(insights,
		models.ComparisonInsight{
			Type:       "best_stability",
			FlightID:   bestStability.ID,
			FlightName: bestStability.Name,
			Value:      bestStability.Metrics.Stability.Score,
			Message:    fmt.Sprintf("%s had the highest stability score (%.1f)", bestStability.Name, bestStability.Metrics.Stability.Score),
		},
		models.ComparisonInsight{
			Type:       "best_efficiency",
			FlightID:   bestEfficiency.ID,
			FlightName: bestEfficiency.Name,
			Value:      bestEfficiency.Metrics.Efficiency.EfficiencyRatio,
			Message:    fmt.Sprintf("%s flew the most direct path (efficiency %.2f)", bestEfficiency.Name, bestEfficiency.Metrics.Efficiency.EfficiencyRatio),
		},
		models.ComparisonInsight{
			Type:       "best_accuracy",
			FlightID:   bestAccuracy.ID,
			FlightName: bestAccuracy.Name,
			Value:      bestAccuracy.Metrics.PathAccuracy.Overall.Average,
			Message:    fmt.Sprintf("%s had the lowest average positioning error (%.3f m)", bestAccuracy.Name, bestAccuracy.Metrics.PathAccuracy.Overall.Average),
		},
	)

	if corrCount > 0 {
		meanCorr := corrSum / float64(corrCount)
		if meanCorr < systemicCorrThreshold {
			insights = append(insights, models.ComparisonInsight{
				Type:    "network_sensitivity",
				Value:   meanCorr,
				Message: fmt.Sprintf("Positioning error consistently rises with degraded network quality across flights (mean correlation %.2f)", meanCorr),
			})
		}
	}

	return insights
}

// SummarizeComparison возвращает средние показатели по набору полетов и
// классификацию разброса производительности.
func SummarizeComparison(flights []models.FlightRecord) models.ComparisonSummary {
	withMetrics := filterAnalyzed(flights)
	summary := models.ComparisonSummary{FlightCount: len(withMetrics)}
	if len(withMetrics) == 0 {
		summary.PerformanceVariation = "Low"
		return summary
	}

	stabilityScores := make([]float64, len(withMetrics))
	for i, f := range withMetrics {
		m := f.Metrics
		stabilityScores[i] = m.Stability.Score
		summary.AvgStability += m.Stability.Score
		summary.AvgEfficiency += m.Efficiency.EfficiencyRatio
		summary.AvgAccuracy += m.PathAccuracy.Overall.Average
		summary.AvgSmoothness += smoothness(m)
	}

	n := float64(len(withMetrics))
	summary.AvgStability /= n
	summary.AvgEfficiency /= n
	summary.AvgAccuracy /= n
	summary.AvgSmoothness /= n

	switch sd := stats.StdDev(stabilityScores); {
	case sd < variationLow:
		summary.PerformanceVariation = "Low"
	case sd < variationMedium:
		summary.PerformanceVariation = "Medium"
	default:
		summary.PerformanceVariation = "High"
	}

	return summary
}

// smoothness выражает плавность полета как долю стабилизированных
// измерений в шкале 0-100
func smoothness(m *models.TrajectoryMetrics) float64 {
	return m.Stability.StabilizationRatio * 100
}

// PerformanceTrends строит временной ряд выбранной метрики по
// календарным корзинам и классифицирует его направление.
func PerformanceTrends(flights []models.FlightRecord, metric string, period models.TrendPeriod) (*models.TrendSummary, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("unsupported trend period: %s", period)
	}

	type bucketAcc struct {
		sum   float64
		count int
	}
	buckets := make(map[time.Time]*bucketAcc)

	for _, f := range filterAnalyzed(flights) {
		value, ok := metricValue(f.Metrics, metric)
		if !ok {
			return nil, fmt.Errorf("unsupported trend metric: %s", metric)
		}

		key := bucketStart(f.CreatedAt, period)
		b := buckets[key]
		if b == nil {
			b = &bucketAcc{}
			buckets[key] = b
		}
		b.sum += value
		b.count++
	}

	points := make([]models.TrendPoint, 0, len(buckets))
	for key, b := range buckets {
		points = append(points, models.TrendPoint{
			Bucket:      key,
			Value:       b.sum / float64(b.count),
			FlightCount: b.count,
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Bucket.Before(points[j].Bucket)
	})

	series := make([]float64, len(points))
	for i, p := range points {
		series[i] = p.Value
	}

	return &models.TrendSummary{
		Metric:    metric,
		Period:    period,
		Direction: TrendDirection(series),
		Points:    points,
	}, nil
}

// bucketStart возвращает начало календарной корзины для момента времени.
// Недельные корзины выравниваются на воскресенье.
func bucketStart(t time.Time, period models.TrendPeriod) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case models.PeriodWeekly:
		return day.AddDate(0, 0, -int(day.Weekday()))
	case models.PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// metricValue извлекает значение метрики для временных рядов
func metricValue(m *models.TrajectoryMetrics, metric string) (float64, bool) {
	switch metric {
	case MetricStability:
		return m.Stability.Score, true
	case MetricEfficiency:
		return m.Efficiency.EfficiencyRatio, true
	case MetricAccuracy:
		return m.PathAccuracy.Overall.Average, true
	case MetricSmoothness:
		return smoothness(m), true
	default:
		return 0, false
	}
}

// IdentifyCommonIssues применяет фиксированные правила к истории полетов
// и возвращает человекочитаемые описания системных проблем.
func IdentifyCommonIssues(flights []models.FlightRecord) []string {
	var issues []string

	withMetrics := filterAnalyzed(flights)
	if len(withMetrics) == 0 {
		return issues
	}

	highError := 0
	for _, f := range withMetrics {
		if f.Metrics.PathAccuracy.Overall.Average > highErrorMeters {
			highError++
		}
	}
	if float64(highError) > float64(len(withMetrics))*highErrorShare {
		issues = append(issues, fmt.Sprintf(
			"More than 50%% of flights (%d of %d) show high positioning error above %.1f m; consider recalibrating the positioning system",
			highError, len(withMetrics), highErrorMeters))
	}

	lowBattery := 0
	for _, f := range flights {
		if f.BatteryStart > 0 && f.BatteryStart < lowBatteryVolts {
			lowBattery++
		}
	}
	if len(flights) > 0 && float64(lowBattery) > float64(len(flights))*lowBatteryShare {
		issues = append(issues, fmt.Sprintf(
			"More than 30%% of flights (%d of %d) started below %.1f V; low battery degrades flight performance",
			lowBattery, len(flights), lowBatteryVolts))
	}

	return issues
}

// filterAnalyzed отбрасывает полеты без вычисленных метрик
func filterAnalyzed(flights []models.FlightRecord) []models.FlightRecord {
	out := make([]models.FlightRecord, 0, len(flights))
	for _, f := range flights {
		if f.Metrics != nil {
			out = append(out, f)
		}
	}
	return out
}
