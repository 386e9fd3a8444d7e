package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/aerotrace/telemetry-backend/internal/metrics"
	"github.com/aerotrace/telemetry-backend/internal/mqtt"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	clientSendSize = 256
)

// LiveHandler транслирует живую телеметрию подключенным WebSocket клиентам
type LiveHandler struct {
	upgrader websocket.Upgrader
	logger   *logrus.Entry

	clients map[*liveClient]struct{}
	mu      sync.RWMutex
}

// liveClient одно WebSocket соединение с необязательным фильтром по дрону
type liveClient struct {
	conn     *websocket.Conn
	send     chan []byte
	deviceID string // Пустая строка означает все дроны
}

// liveEvent кадр, отправляемый клиентам
type liveEvent struct {
	DeviceID  string      `json:"device_id"`
	FlightID  string      `json:"flight_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Battery   float64     `json:"battery,omitempty"`
	Sample    interface{} `json:"sample"`
}

// NewLiveHandler создает новый обработчик живой телеметрии
func NewLiveHandler() *LiveHandler {
	return &LiveHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  logrus.New().WithField("component", "live"),
		clients: make(map[*liveClient]struct{}),
	}
}

// HandleLive обрабатывает WebSocket подключения на /ws/v1/live.
// Параметр device ограничивает поток телеметрией одного дрона.
func (h *LiveHandler) HandleLive(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to upgrade to WebSocket")
		metrics.WebSocketErrors.Inc()
		return
	}

	client := &liveClient{
		conn:     conn,
		send:     make(chan []byte, clientSendSize),
		deviceID: c.Query("device"),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	metrics.WebSocketConnections.Inc()

	h.logger.WithField("device", client.deviceID).Debug("WebSocket client connected")

	go h.writePump(client)
	go h.readPump(client)
}

// Broadcast отправляет телеметрическое сообщение всем подходящим клиентам
func (h *LiveHandler) Broadcast(msg *mqtt.TelemetryMessage) {
	event := liveEvent{
		DeviceID:  msg.DeviceID,
		FlightID:  msg.FlightID,
		Timestamp: msg.Timestamp.Unix(),
		Battery:   msg.Battery,
		Sample:    msg.Sample,
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to marshal live event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.deviceID != "" && client.deviceID != msg.DeviceID {
			continue
		}
		select {
		case client.send <- data:
			metrics.WebSocketMessagesOut.Inc()
		default:
			// Медленный клиент, кадр пропускается
		}
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *LiveHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump отправляет кадры клиенту и поддерживает соединение ping'ами
func (h *LiveHandler) writePump(client *liveClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.disconnect(client)
	}()

	for {
		select {
		case data, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.WebSocketErrors.Inc()
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump читает входящие сообщения, чтобы обрабатывать pong и закрытие
func (h *LiveHandler) readPump(client *liveClient) {
	defer h.disconnect(client)

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// disconnect удаляет клиента и закрывает соединение
func (h *LiveHandler) disconnect(client *liveClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		metrics.WebSocketConnections.Dec()
	}
	h.mu.Unlock()

	client.conn.Close()
}
