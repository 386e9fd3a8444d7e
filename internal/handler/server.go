package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/aerotrace/telemetry-backend/internal/auth"
	"github.com/aerotrace/telemetry-backend/internal/config"
	"github.com/aerotrace/telemetry-backend/internal/metrics"
	"github.com/aerotrace/telemetry-backend/pkg/utils"
)

// Server HTTP сервер API телеметрии
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	logger      *utils.Logger
	config      *config.Config
	restHandler *RESTHandler
	liveHandler *LiveHandler
	authMW      *auth.Middleware
}

// NewServer создает новый HTTP сервер
func NewServer(cfg *config.Config, restHandler *RESTHandler, liveHandler *LiveHandler, authMW *auth.Middleware, logger *utils.Logger) *Server {
	// Production mode для Gin
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(LoggerMiddleware(logger))
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(RateLimitMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(metrics.HTTPMetricsMiddleware())

	server := &Server{
		router:      router,
		logger:      logger,
		config:      cfg,
		restHandler: restHandler,
		liveHandler: liveHandler,
		authMW:      authMW,
	}

	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Регистрация маршрутов
	server.setupRoutes()

	return server
}

// setupRoutes настраивает маршруты API
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	// Метрики Prometheus
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 группа, все endpoints требуют аутентификации
	v1 := s.router.Group("/api/v1")
	v1.Use(s.authMW.Authenticate())
	{
		v1.POST("/flights", s.withBodyLimit(s.restHandler.PostFlight))
		v1.GET("/flights", s.restHandler.GetFlights)
		v1.GET("/flights/:id", s.restHandler.GetFlight)
		v1.GET("/flights/:id/metrics", s.restHandler.GetFlightMetrics)
		v1.GET("/flights/:id/network", s.restHandler.GetFlightNetwork)
		v1.DELETE("/flights/:id", s.restHandler.DeleteFlight)

		v1.GET("/analytics/insights", s.restHandler.GetInsights)
		v1.GET("/analytics/summary", s.restHandler.GetSummary)
		v1.GET("/analytics/trends", s.restHandler.GetTrends)
		v1.GET("/analytics/issues", s.restHandler.GetIssues)
	}

	// WebSocket трансляция живой телеметрии
	s.router.GET("/ws/v1/live", s.liveHandler.HandleLive)
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"address": s.config.Server.Address,
		"mode":    gin.Mode(),
	}).Info("Starting HTTP server")

	return s.httpServer.ListenAndServe()
}

// Shutdown корректное завершение сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// withBodyLimit ограничивает размер тела запроса перед обработкой
func (s *Server) withBodyLimit(next gin.HandlerFunc) gin.HandlerFunc {
	limit := s.config.Upload.MaxBodyBytes
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		next(c)
	}
}

// Health check endpoint
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   time.Now().Unix(),
		"version":     "1.0.0",
		"ws_clients":  s.liveHandler.ClientCount(),
		"environment": s.config.Environment,
	})
}

// ==================== Middleware ====================

// LoggerMiddleware логирование запросов
func LoggerMiddleware(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Обработка запроса
		c.Next()

		// Логирование
		latency := time.Since(start)

		logger.WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}).Info("HTTP request completed")
	}
}

// CORSMiddleware настройка CORS
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // В production указать конкретные домены
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// RateLimitMiddleware ограничение частоты запросов
func RateLimitMiddleware() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(100), 200) // 100 req/sec, burst 200

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    "rate_limit_exceeded",
				"message": "Too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware заголовки безопасности
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
