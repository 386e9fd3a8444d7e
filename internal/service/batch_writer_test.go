package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerotrace/telemetry-backend/internal/models"
	"github.com/aerotrace/telemetry-backend/pkg/utils"
)

// mockHistory потокобезопасная запись вызовов HistoryRepository
type mockHistory struct {
	mu        sync.Mutex
	flights   []*models.Flight
	batches   map[string]int
	failSaves int
}

func newMockHistory() *mockHistory {
	return &mockHistory{batches: make(map[string]int)}
}

func (m *mockHistory) Ping(ctx context.Context) error { return nil }
func (m *mockHistory) Close() error                   { return nil }

func (m *mockHistory) SaveFlightToHistory(ctx context.Context, flight *models.Flight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves > 0 {
		m.failSaves--
		return assert.AnError
	}
	m.flights = append(m.flights, flight)
	return nil
}

func (m *mockHistory) SaveSamplesBatch(ctx context.Context, flightID string, samples []models.PositionSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[flightID] += len(samples)
	return nil
}

func (m *mockHistory) ListFlightRecords(ctx context.Context, userID string, limit int) ([]models.FlightRecord, error) {
	return nil, nil
}

func (m *mockHistory) CleanupOldFlights(ctx context.Context, olderThan time.Duration) error {
	return nil
}

func (m *mockHistory) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return nil, nil
}

func (m *mockHistory) flightCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flights)
}

func (m *mockHistory) sampleCount(flightID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches[flightID]
}

func testBatchConfig() *BatchConfig {
	return &BatchConfig{
		BatchSize:     2,
		FlushInterval: 20 * time.Millisecond,
		ChannelBuffer: 10,
		MaxRetries:    2,
		RetryDelay:    time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBatchWriter_FlushOnBatchSize(t *testing.T) {
	history := newMockHistory()
	logger := utils.NewLogger("error", "text")
	bw := NewBatchWriter(history, logger, testBatchConfig())
	defer bw.Stop()

	require.NoError(t, bw.QueueFlight(&models.Flight{ID: "f1", UserID: "u1"}))
	require.NoError(t, bw.QueueFlight(&models.Flight{ID: "f2", UserID: "u1"}))

	waitFor(t, func() bool { return history.flightCount() == 2 })
}

func TestBatchWriter_FlushOnInterval(t *testing.T) {
	history := newMockHistory()
	logger := utils.NewLogger("error", "text")
	bw := NewBatchWriter(history, logger, testBatchConfig())
	defer bw.Stop()

	require.NoError(t, bw.QueueFlight(&models.Flight{ID: "f1", UserID: "u1"}))

	// Один полет меньше размера батча, сохранение произойдет по таймеру
	waitFor(t, func() bool { return history.flightCount() == 1 })
}

func TestBatchWriter_SamplesWrittenImmediately(t *testing.T) {
	history := newMockHistory()
	logger := utils.NewLogger("error", "text")
	bw := NewBatchWriter(history, logger, testBatchConfig())
	defer bw.Stop()

	samples := []models.PositionSample{{Time: 0}, {Time: 1}, {Time: 2}}
	require.NoError(t, bw.QueueSamples("f1", samples))

	waitFor(t, func() bool { return history.sampleCount("f1") == 3 })
}

func TestBatchWriter_RetriesTransientFailure(t *testing.T) {
	history := newMockHistory()
	history.failSaves = 1 // Первая попытка падает, повтор успешен

	logger := utils.NewLogger("error", "text")
	bw := NewBatchWriter(history, logger, testBatchConfig())
	defer bw.Stop()

	require.NoError(t, bw.QueueFlight(&models.Flight{ID: "f1", UserID: "u1"}))

	waitFor(t, func() bool { return history.flightCount() == 1 })
}

func TestBatchWriter_StopDrainsQueues(t *testing.T) {
	history := newMockHistory()
	logger := utils.NewLogger("error", "text")
	bw := NewBatchWriter(history, logger, testBatchConfig())

	require.NoError(t, bw.QueueFlight(&models.Flight{ID: "f1", UserID: "u1"}))
	require.NoError(t, bw.QueueSamples("f1", []models.PositionSample{{Time: 0}}))

	bw.Stop()

	assert.Equal(t, 1, history.flightCount())
	assert.Equal(t, 1, history.sampleCount("f1"))
}

func TestBatchWriter_QueueAfterStop(t *testing.T) {
	history := newMockHistory()
	logger := utils.NewLogger("error", "text")
	bw := NewBatchWriter(history, logger, testBatchConfig())
	bw.Stop()

	// После остановки буфер канала может принять еще несколько отправок,
	// но как только он заполнится, очередь обязана вернуть ошибку
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = bw.QueueFlight(&models.Flight{ID: "f1", UserID: "u1"})
	}
	assert.Error(t, err)
}
