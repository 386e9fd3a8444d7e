package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aerotrace/telemetry-backend/internal/models"
	"github.com/aerotrace/telemetry-backend/internal/repository"
	"github.com/aerotrace/telemetry-backend/internal/service"
	"github.com/aerotrace/telemetry-backend/pkg/utils"
)

// MockRepository для тестирования
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) SaveFlight(ctx context.Context, flight *models.Flight, samples []models.PositionSample) error {
	args := m.Called(ctx, flight, samples)
	return args.Error(0)
}

func (m *MockRepository) GetFlight(ctx context.Context, userID, flightID string) (*models.Flight, error) {
	args := m.Called(ctx, userID, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flight), args.Error(1)
}

func (m *MockRepository) GetFlightSamples(ctx context.Context, userID, flightID string) ([]models.PositionSample, error) {
	args := m.Called(ctx, userID, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PositionSample), args.Error(1)
}

func (m *MockRepository) ListFlights(ctx context.Context, userID string, limit int) ([]*models.Flight, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Flight), args.Error(1)
}

func (m *MockRepository) DeleteFlight(ctx context.Context, userID, flightID string) error {
	args := m.Called(ctx, userID, flightID)
	return args.Error(0)
}

func (m *MockRepository) ListFlightRecords(ctx context.Context, userID string, limit int) ([]models.FlightRecord, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FlightRecord), args.Error(1)
}

func (m *MockRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func setupTestRouter(repo repository.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)

	logger := utils.NewLogger("error", "text")
	validation := service.NewValidationService(logger, nil)
	restHandler := NewRESTHandler(repo, validation, nil, logger, 100)

	router := gin.New()
	// Тестовая аутентификация вместо полного auth middleware
	router.Use(func(c *gin.Context) {
		c.Set("user_id", "user-1")
		c.Next()
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/flights", restHandler.PostFlight)
		v1.GET("/flights", restHandler.GetFlights)
		v1.GET("/flights/:id", restHandler.GetFlight)
		v1.GET("/flights/:id/metrics", restHandler.GetFlightMetrics)
		v1.GET("/flights/:id/network", restHandler.GetFlightNetwork)
		v1.DELETE("/flights/:id", restHandler.DeleteFlight)
		v1.GET("/analytics/insights", restHandler.GetInsights)
		v1.GET("/analytics/summary", restHandler.GetSummary)
		v1.GET("/analytics/trends", restHandler.GetTrends)
		v1.GET("/analytics/issues", restHandler.GetIssues)
	}

	return router
}

func testFlightLogBody(t *testing.T) []byte {
	t.Helper()

	log := models.FlightLog{
		Name: "test-flight",
		Samples: []models.PositionSample{
			{Position: models.Vector3{X: 0}, Time: 0, Error: 0.01, Phase: models.PhaseTransit},
			{Position: models.Vector3{X: 1}, Time: 1, Error: 0.03, Phase: models.PhaseTransit},
		},
		IdealPath:    []models.Vector3{{X: 0}, {X: 1}},
		BatteryStart: 4.1,
	}

	body, err := json.Marshal(&log)
	require.NoError(t, err)
	return body
}

func TestPostFlight(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := &MockRepository{}
		repo.On("SaveFlight", mock.Anything, mock.AnythingOfType("*models.Flight"), mock.Anything).Return(nil)

		router := setupTestRouter(repo)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/flights", bytes.NewReader(testFlightLogBody(t)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)

		var flight models.Flight
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &flight))
		assert.NotEmpty(t, flight.ID)
		assert.Equal(t, "user-1", flight.UserID)
		assert.Equal(t, 2, flight.SampleCount)
		require.NotNil(t, flight.Metrics)
		assert.InDelta(t, 0.02, flight.Metrics.PathAccuracy.Overall.Average, 1e-9)
		assert.InDelta(t, 1.0, flight.Metrics.Efficiency.EfficiencyRatio, 1e-9)
		require.NotNil(t, flight.Metrics.NetworkImpact)

		repo.AssertExpectations(t)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		router := setupTestRouter(&MockRepository{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/flights", bytes.NewReader([]byte("not json")))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("EmptySamples", func(t *testing.T) {
		router := setupTestRouter(&MockRepository{})

		body, err := json.Marshal(&models.FlightLog{Name: "empty"})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/flights", bytes.NewReader(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_flight_log", resp["code"])
	})
}

func TestGetFlight(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		flight := &models.Flight{
			ID:        "f1",
			UserID:    "user-1",
			Name:      "survey",
			CreatedAt: time.Now().UTC(),
			Metrics:   &models.TrajectoryMetrics{Stability: models.Stability{Score: 90}},
		}

		repo := &MockRepository{}
		repo.On("GetFlight", mock.Anything, "user-1", "f1").Return(flight, nil)

		router := setupTestRouter(repo)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/flights/f1", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var got models.Flight
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "f1", got.ID)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := &MockRepository{}
		repo.On("GetFlight", mock.Anything, "user-1", "missing").Return(nil, repository.ErrFlightNotFound)

		router := setupTestRouter(repo)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/flights/missing", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "flight_not_found", resp["code"])
	})
}

func TestGetFlights(t *testing.T) {
	t.Run("DefaultLimit", func(t *testing.T) {
		repo := &MockRepository{}
		repo.On("ListFlights", mock.Anything, "user-1", 50).Return([]*models.Flight{
			{ID: "f1", UserID: "user-1"},
			{ID: "f2", UserID: "user-1"},
		}, nil)

		router := setupTestRouter(repo)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/flights", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Flights []models.Flight `json:"flights"`
			Count   int             `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("InvalidLimit", func(t *testing.T) {
		router := setupTestRouter(&MockRepository{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/flights?limit=0", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetFlightNetwork(t *testing.T) {
	quality := 30.0
	samples := []models.PositionSample{
		{Error: 0.01, Time: 0},
		{Error: 0.25, Time: 1, NetworkQuality: &quality},
	}

	repo := &MockRepository{}
	repo.On("GetFlightSamples", mock.Anything, "user-1", "f1").Return(samples, nil)

	router := setupTestRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/flights/f1/network", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var impact models.NetworkImpact
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &impact))
	assert.Contains(t, impact.Buckets, "excellent")
	assert.Contains(t, impact.Buckets, "poor")
}

func TestDeleteFlight(t *testing.T) {
	repo := &MockRepository{}
	repo.On("DeleteFlight", mock.Anything, "user-1", "f1").Return(nil)

	router := setupTestRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/api/v1/flights/f1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	repo.AssertExpectations(t)
}

func TestAnalyticsEndpoints(t *testing.T) {
	history := []models.FlightRecord{
		{
			ID:        "f1",
			Name:      "f1",
			CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			Metrics: &models.TrajectoryMetrics{
				Stability:    models.Stability{Score: 60, StabilizationRatio: 0.6},
				Efficiency:   models.Efficiency{EfficiencyRatio: 0.8},
				PathAccuracy: models.PathAccuracy{Overall: models.ErrorStats{Average: 0.05}},
			},
		},
		{
			ID:        "f2",
			Name:      "f2",
			CreatedAt: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
			Metrics: &models.TrajectoryMetrics{
				Stability:    models.Stability{Score: 90, StabilizationRatio: 0.9},
				Efficiency:   models.Efficiency{EfficiencyRatio: 0.95},
				PathAccuracy: models.PathAccuracy{Overall: models.ErrorStats{Average: 0.02}},
			},
		},
	}

	newRouter := func() *gin.Engine {
		repo := &MockRepository{}
		repo.On("ListFlightRecords", mock.Anything, "user-1", 100).Return(history, nil)
		return setupTestRouter(repo)
	}

	t.Run("Insights", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/analytics/insights", nil)
		newRouter().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Insights    []models.ComparisonInsight `json:"insights"`
			FlightCount int                        `json:"flight_count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.FlightCount)
		require.NotEmpty(t, resp.Insights)

		for _, ins := range resp.Insights {
			if ins.Type == "best_stability" {
				assert.Equal(t, "f2", ins.FlightID)
			}
		}
	})

	t.Run("Summary", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/analytics/summary", nil)
		newRouter().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var summary models.ComparisonSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
		assert.Equal(t, 2, summary.FlightCount)
		assert.InDelta(t, 75.0, summary.AvgStability, 1e-9)
	})

	t.Run("Trends", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/analytics/trends?metric=stability&period=weekly", nil)
		newRouter().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var trend models.TrendSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trend))
		assert.Equal(t, "stability", trend.Metric)
		assert.Len(t, trend.Points, 2)
	})

	t.Run("TrendsInvalidPeriod", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/analytics/trends?period=yearly", nil)
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Issues", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/analytics/issues", nil)
		newRouter().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Issues      []string `json:"issues"`
			FlightCount int      `json:"flight_count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.Issues)
	})
}
