package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"token_screener/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	EventAlertTriggered = "alert.triggered"

	writeWait = 5 * time.Second
)

// Event is the envelope written to websocket clients.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// AlertEvent is the payload of EventAlertTriggered.
type AlertEvent struct {
	Alert   entity.PriceAlert `json:"alert"`
	Price   float64           `json:"price"`
	Message string            `json:"message"`
}

// Broadcaster pushes events to every connected websocket client.
type Broadcaster struct {
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
	logger   *zap.Logger
	now      func() time.Time
}

func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger.Named("Broadcaster"),
		now:      time.Now,
	}
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Publish writes one event to all clients. Clients that fail to keep up are dropped.
func (b *Broadcaster) Publish(eventType string, payload any) {
	msg, err := json.Marshal(Event{Type: eventType, At: b.now().UTC(), Data: payload})
	if err != nil {
		b.logger.Error("failed to marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.logger.Debug("dropping websocket client", zap.Error(err))
			_ = c.Close()
			delete(b.clients, c)
		}
	}
}

// Permitted reports whether anyone is listening.
func (b *Broadcaster) Permitted() bool { return b.Clients() > 0 }

func (b *Broadcaster) Notify(_ context.Context, alert entity.PriceAlert, price float64) error {
	b.Publish(EventAlertTriggered, AlertEvent{Alert: alert, Price: price, Message: alert.Message(price)})
	return nil
}

// Handler accepts websocket connections. Inbound messages are discarded.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()

		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				_ = conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		_ = c.Close()
		delete(b.clients, c)
	}
}
