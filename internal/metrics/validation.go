package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValidationAcceptedLogs количество принятых логов полетов
	ValidationAcceptedLogs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uav_validation_accepted_logs_total",
		Help: "Number of flight logs that passed upload validation",
	})

	// ValidationAcceptedSamples количество измерений в принятых логах
	ValidationAcceptedSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uav_validation_accepted_samples_total",
		Help: "Number of telemetry samples in accepted flight logs",
	})

	// ValidationRejectedLogs количество отклоненных логов полетов
	ValidationRejectedLogs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uav_validation_rejected_logs_total",
		Help: "Number of flight logs rejected by upload validation",
	})
)
