package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aerotrace/telemetry-backend/internal/analysis"
	"github.com/aerotrace/telemetry-backend/internal/auth"
	"github.com/aerotrace/telemetry-backend/internal/metrics"
	"github.com/aerotrace/telemetry-backend/internal/models"
	"github.com/aerotrace/telemetry-backend/internal/repository"
	"github.com/aerotrace/telemetry-backend/internal/service"
	"github.com/aerotrace/telemetry-backend/pkg/utils"
)

// RESTHandler обработчик REST API endpoints
type RESTHandler struct {
	repo         repository.Repository
	validation   *service.ValidationService
	batchWriter  *service.BatchWriter
	logger       *utils.Logger
	historyLimit int
	timeout      time.Duration
}

// NewRESTHandler создает новый REST handler
func NewRESTHandler(repo repository.Repository, validation *service.ValidationService, batchWriter *service.BatchWriter, logger *utils.Logger, historyLimit int) *RESTHandler {
	return &RESTHandler{
		repo:         repo,
		validation:   validation,
		batchWriter:  batchWriter,
		logger:       logger,
		historyLimit: historyLimit,
		timeout:      30 * time.Second,
	}
}

// PostFlight принимает лог полета, анализирует траекторию и сохраняет результат
// POST /api/v1/flights
func (h *RESTHandler) PostFlight(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "unauthorized",
			"message": "Authentication required",
		})
		return
	}

	var log models.FlightLog
	if err := c.ShouldBindJSON(&log); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_body",
			"message": "Request body must be a valid flight log",
		})
		return
	}

	if err := h.validation.ValidateFlightLog(&log); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_flight_log",
			"message": err.Error(),
		})
		return
	}

	// Анализ траектории
	start := time.Now()
	flightMetrics := analysis.Analyze(log.Samples, log.IdealPath)
	flightMetrics.NetworkImpact = analysis.AnalyzeNetworkImpact(log.Samples)
	metrics.AnalysisDuration.WithLabelValues("trajectory").Observe(time.Since(start).Seconds())
	metrics.FlightsAnalyzed.Inc()
	metrics.SamplesAnalyzed.Add(float64(len(log.Samples)))

	flight := &models.Flight{
		ID:           newFlightID(),
		UserID:       userID,
		Name:         log.Name,
		CreatedAt:    time.Now().UTC(),
		BatteryStart: log.BatteryStart,
		SampleCount:  len(log.Samples),
		Metrics:      flightMetrics,
	}
	if flight.Name == "" {
		flight.Name = "flight-" + flight.CreatedAt.Format("20060102-150405")
	}

	if err := h.repo.SaveFlight(ctx, flight, log.Samples); err != nil {
		h.logger.WithField("error", err).Error("Failed to save flight")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "Failed to save flight",
		})
		return
	}

	// Асинхронная запись в долговременную историю
	if h.batchWriter != nil {
		if err := h.batchWriter.QueueFlight(flight); err != nil {
			h.logger.WithField("error", err).Warn("Failed to queue flight for history")
		}
		if err := h.batchWriter.QueueSamples(flight.ID, log.Samples); err != nil {
			h.logger.WithField("error", err).Warn("Failed to queue samples for history")
		}
	}

	h.logger.WithFields(map[string]interface{}{
		"flight_id": flight.ID,
		"user_id":   userID,
		"samples":   flight.SampleCount,
	}).Info("Flight analyzed and stored")

	c.JSON(http.StatusCreated, flight)
}

// GetFlights возвращает список полетов пользователя, новые первыми
// GET /api/v1/flights?limit=50
func (h *RESTHandler) GetFlights(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "unauthorized",
			"message": "Authentication required",
		})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "invalid_limit",
				"message": "Limit must be between 1 and 1000",
			})
			return
		}
		limit = parsed
	}

	flights, err := h.repo.ListFlights(ctx, userID, limit)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to list flights")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "Failed to retrieve flights",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"flights": flights,
		"count":   len(flights),
	})
}

// GetFlight возвращает один полет вместе с метриками
// GET /api/v1/flights/:id
func (h *RESTHandler) GetFlight(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	userID, flightID, ok := h.flightRequest(c)
	if !ok {
		return
	}

	flight, err := h.repo.GetFlight(ctx, userID, flightID)
	if err != nil {
		h.respondFlightError(c, flightID, err)
		return
	}

	c.JSON(http.StatusOK, flight)
}

// GetFlightMetrics возвращает только метрики траектории полета
// GET /api/v1/flights/:id/metrics
func (h *RESTHandler) GetFlightMetrics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	userID, flightID, ok := h.flightRequest(c)
	if !ok {
		return
	}

	flight, err := h.repo.GetFlight(ctx, userID, flightID)
	if err != nil {
		h.respondFlightError(c, flightID, err)
		return
	}

	if flight.Metrics == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "metrics_not_found",
			"message": "Flight has no computed metrics",
		})
		return
	}

	c.JSON(http.StatusOK, flight.Metrics)
}

// GetFlightNetwork пересчитывает влияние качества сети по сохраненным измерениям
// GET /api/v1/flights/:id/network
func (h *RESTHandler) GetFlightNetwork(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	userID, flightID, ok := h.flightRequest(c)
	if !ok {
		return
	}

	samples, err := h.repo.GetFlightSamples(ctx, userID, flightID)
	if err != nil {
		h.respondFlightError(c, flightID, err)
		return
	}

	start := time.Now()
	impact := analysis.AnalyzeNetworkImpact(samples)
	metrics.AnalysisDuration.WithLabelValues("network").Observe(time.Since(start).Seconds())

	c.JSON(http.StatusOK, impact)
}

// DeleteFlight удаляет полет из горячего хранилища
// DELETE /api/v1/flights/:id
func (h *RESTHandler) DeleteFlight(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	userID, flightID, ok := h.flightRequest(c)
	if !ok {
		return
	}

	if err := h.repo.DeleteFlight(ctx, userID, flightID); err != nil {
		h.respondFlightError(c, flightID, err)
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"flight_id": flightID,
		"user_id":   userID,
	}).Info("Flight deleted")

	c.Status(http.StatusNoContent)
}

// GetInsights возвращает сравнительные инсайты по истории полетов
// GET /api/v1/analytics/insights
func (h *RESTHandler) GetInsights(c *gin.Context) {
	flights, ok := h.loadHistory(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"insights":     analysis.ComparativeInsights(flights),
		"flight_count": len(flights),
	})
}

// GetSummary возвращает агрегированную сводку по истории полетов
// GET /api/v1/analytics/summary
func (h *RESTHandler) GetSummary(c *gin.Context) {
	flights, ok := h.loadHistory(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, analysis.SummarizeComparison(flights))
}

// GetTrends возвращает динамику метрики по временным корзинам
// GET /api/v1/analytics/trends?metric=stability&period=weekly
func (h *RESTHandler) GetTrends(c *gin.Context) {
	metric := c.DefaultQuery("metric", analysis.MetricStability)
	period := models.TrendPeriod(c.DefaultQuery("period", string(models.PeriodWeekly)))
	if !period.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_period",
			"message": "Period must be daily, weekly or monthly",
		})
		return
	}

	flights, ok := h.loadHistory(c)
	if !ok {
		return
	}

	trend, err := analysis.PerformanceTrends(flights, metric, period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_metric",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, trend)
}

// GetIssues возвращает системные проблемы, общие для истории полетов
// GET /api/v1/analytics/issues
func (h *RESTHandler) GetIssues(c *gin.Context) {
	flights, ok := h.loadHistory(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issues":       analysis.IdentifyCommonIssues(flights),
		"flight_count": len(flights),
	})
}

// flightRequest извлекает user_id и идентификатор полета из запроса
func (h *RESTHandler) flightRequest(c *gin.Context) (string, string, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "unauthorized",
			"message": "Authentication required",
		})
		return "", "", false
	}

	flightID := c.Param("id")
	if flightID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_flight_id",
			"message": "Flight ID is required",
		})
		return "", "", false
	}

	return userID, flightID, true
}

// loadHistory загружает историю полетов пользователя для аналитики
func (h *RESTHandler) loadHistory(c *gin.Context) ([]models.FlightRecord, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "unauthorized",
			"message": "Authentication required",
		})
		return nil, false
	}

	flights, err := h.repo.ListFlightRecords(ctx, userID, h.historyLimit)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to load flight history")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "Failed to load flight history",
		})
		return nil, false
	}

	return flights, true
}

// respondFlightError преобразует ошибку репозитория в HTTP ответ
func (h *RESTHandler) respondFlightError(c *gin.Context, flightID string, err error) {
	if errors.Is(err, repository.ErrFlightNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "flight_not_found",
			"message": "Flight not found",
		})
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"flight_id": flightID,
		"error":     err,
	}).Error("Flight request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "Failed to process flight request",
	})
}

// newFlightID генерирует уникальный идентификатор полета
func newFlightID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}
