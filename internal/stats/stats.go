// Package stats содержит описательную статистику, используемую всеми
// аналитическими компонентами. Все функции чистые и безопасны для
// конкурентного вызова; вырожденные входы дают нулевой результат, а не
// ошибку.
package stats

import (
	"math"
	"sort"
)

// Stats базовая описательная статистика серии значений
type Stats struct {
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Calculate возвращает среднее, медиану, минимум и максимум серии.
// Для пустой серии возвращается нулевая структура.
func Calculate(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	// Медиана без интерполяции: при четной длине берется верхний из
	// двух средних элементов отсортированной копии
	return Stats{
		Average: sum / float64(len(values)),
		Median:  sorted[len(sorted)/2],
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
	}
}

// StdDev возвращает стандартное отклонение генеральной совокупности.
// Для пустой серии возвращается 0.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}

	return math.Sqrt(sumSq / float64(len(values)))
}

// Correlation возвращает коэффициент корреляции Пирсона между двумя
// сериями. Несовпадение длин, пустой вход и нулевая дисперсия любой из
// серий дают 0 — это определенный вырожденный случай, не ошибка.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}

	n := float64(len(x))

	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	denom := math.Sqrt(varX * varY)
	if denom == 0 {
		return 0
	}

	return cov / denom
}
