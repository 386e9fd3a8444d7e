package analysis

import (
	"fmt"

	"github.com/aerotrace/telemetry-backend/internal/models"
	"github.com/aerotrace/telemetry-backend/internal/stats"
)

// Границы категорий качества связи. Нижняя граница включается в свою
// категорию: poor <50 ≤ fair <70 ≤ good <90 ≤ excellent.
const (
	BucketExcellent = "excellent"
	BucketGood      = "good"
	BucketFair      = "fair"
	BucketPoor      = "poor"

	excellentThreshold = 90.0
	goodThreshold      = 70.0
	fairThreshold      = 50.0
)

// Пороги правил рекомендаций и силы корреляции
const (
	poorShareThreshold     = 10.0 // % измерений в категории poor
	degradedShareThreshold = 30.0 // % измерений в категориях fair+poor
	strongNegativeCorr     = -0.5 // Корреляция для high-priority рекомендации

	moderateCorrThreshold = 0.3
	strongCorrThreshold   = 0.7
)

// QualityBucket возвращает категорию для значения качества связи 0-100
func QualityBucket(quality float64) string {
	switch {
	case quality >= excellentThreshold:
		return BucketExcellent
	case quality >= goodThreshold:
		return BucketGood
	case quality >= fairThreshold:
		return BucketFair
	default:
		return BucketPoor
	}
}

// AnalyzeNetworkImpact сегментирует измерения по категориям качества
// связи и оценивает связь качества с ошибкой позиционирования.
// Отсутствующее качество считается идеальным (100). Категории без
// измерений в результат не включаются.
func AnalyzeNetworkImpact(samples []models.PositionSample) *models.NetworkImpact {
	type bucketAcc struct {
		count      int
		stabilized int
		errorSum   float64
	}
	acc := make(map[string]*bucketAcc, 4)

	qualities := make([]float64, len(samples))
	errors := make([]float64, len(samples))

	for i := range samples {
		s := &samples[i]
		q := s.QualityOrDefault()
		e := s.PositionError()

		qualities[i] = q
		errors[i] = e

		name := QualityBucket(q)
		b := acc[name]
		if b == nil {
			b = &bucketAcc{}
			acc[name] = b
		}
		b.count++
		b.errorSum += e
		if s.Stabilized {
			b.stabilized++
		}
	}

	impact := &models.NetworkImpact{
		Buckets: make(map[string]models.BucketStats, len(acc)),
	}

	total := len(samples)
	for name, b := range acc {
		impact.Buckets[name] = models.BucketStats{
			Count:             b.count,
			Percentage:        float64(b.count) / float64(total) * 100,
			AverageError:      b.errorSum / float64(b.count),
			StabilizationRate: float64(b.stabilized) / float64(b.count),
		}
	}

	impact.Correlation = stats.Correlation(qualities, errors)
	impact.CorrelationStrength = correlationStrength(impact.Correlation)
	impact.Interpretation = interpretCorrelation(impact.Correlation)
	impact.Recommendations = buildRecommendations(impact)

	return impact
}

// correlationStrength классифицирует силу корреляции по модулю
func correlationStrength(r float64) string {
	abs := r
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= strongCorrThreshold:
		return "strong"
	case abs >= moderateCorrThreshold:
		return "moderate"
	default:
		return "weak"
	}
}

func interpretCorrelation(r float64) string {
	switch strength := correlationStrength(r); {
	case r < 0 && strength != "weak":
		return "Lower network quality is associated with higher positioning error"
	case r > 0 && strength != "weak":
		return "Higher network quality is associated with higher positioning error, which is unusual and may indicate other dominating factors"
	default:
		return "Network quality shows no meaningful relationship with positioning error"
	}
}

// buildRecommendations применяет фиксированную таблицу правил к долям
// категорий и корреляции. Пороги зафиксированы, это декларативная
// политика, не подбираемая по данным.
func buildRecommendations(impact *models.NetworkImpact) []models.Recommendation {
	var recs []models.Recommendation

	if poor, ok := impact.Buckets[BucketPoor]; ok && poor.Percentage > poorShareThreshold {
		recs = append(recs, models.Recommendation{
			Priority: "high",
			Message: fmt.Sprintf("%.1f%% of samples were taken with poor network quality; consider improving radio coverage in the flight area",
				poor.Percentage),
		})
	}

	degraded := impact.Buckets[BucketFair].Percentage + impact.Buckets[BucketPoor].Percentage
	if degraded > degradedShareThreshold {
		recs = append(recs, models.Recommendation{
			Priority: "medium",
			Message: fmt.Sprintf("%.1f%% of samples had degraded network quality; positioning accuracy may be unreliable",
				degraded),
		})
	}

	if impact.Correlation < strongNegativeCorr {
		recs = append(recs, models.Recommendation{
			Priority: "high",
			Message:  "Positioning error is strongly coupled to network quality; flight control may depend on link stability",
		})
	}

	return recs
}
