package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uav_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uav_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Метрики аналитического движка
	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uav_analysis_duration_seconds",
			Help:    "Duration of trajectory analysis in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"}, // trajectory, network_impact, insights, trends
	)

	FlightsAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uav_flights_analyzed_total",
			Help: "Total number of flights processed by the trajectory engine",
		},
	)

	SamplesAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uav_samples_analyzed_total",
			Help: "Total number of telemetry samples processed",
		},
	)

	UploadRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uav_uploads_rejected_total",
			Help: "Total number of flight log uploads rejected by validation",
		},
		[]string{"reason"},
	)

	// WebSocket метрики
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uav_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uav_websocket_messages_out_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WebSocketErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uav_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
	)

	// MQTT метрики
	MQTTMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uav_mqtt_messages_received_total",
			Help: "Total number of MQTT telemetry messages received",
		},
		[]string{"device_id"},
	)

	MQTTParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uav_mqtt_parse_errors_total",
			Help: "Total number of MQTT message parse errors",
		},
	)

	MQTTConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uav_mqtt_connection_status",
			Help: "MQTT connection status (1 = connected, 0 = disconnected)",
		},
	)

	// Redis метрики
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uav_redis_operation_duration_seconds",
			Help:    "Duration of Redis operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	RedisOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uav_redis_operation_errors_total",
			Help: "Total number of Redis operation errors",
		},
		[]string{"operation"},
	)

	// MySQL batch writer метрики
	MySQLBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uav_mysql_batch_size",
			Help:    "Size of MySQL batch inserts",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2000, 5000},
		},
		[]string{"entity_type"}, // flights, samples
	)

	MySQLBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uav_mysql_batch_duration_seconds",
			Help:    "Duration of MySQL batch operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"entity_type"},
	)

	MySQLQueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "uav_mysql_queue_size",
			Help: "Current size of MySQL writer queues",
		},
		[]string{"queue_type"},
	)

	MySQLWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uav_mysql_write_errors_total",
			Help: "Total number of MySQL write errors",
		},
		[]string{"entity_type"},
	)

	// Общие метрики приложения
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "uav_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "build_time"},
	)

	StoredFlights = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uav_stored_flights_total",
			Help: "Total number of flights currently stored",
		},
	)

	// Статус соединений
	MySQLConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uav_mysql_connection_status",
			Help: "MySQL connection status (1 = connected, 0 = disconnected)",
		},
	)

	RedisConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uav_redis_connection_status",
			Help: "Redis connection status (1 = connected, 0 = disconnected)",
		},
	)
)

// SetAppInfo устанавливает информацию о версии приложения
func SetAppInfo(version, commit, buildTime string) {
	AppInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
