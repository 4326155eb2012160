package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargex/backend/services/charging-service/internal/service"
)

const (
	watchWriteTimeout = 10 * time.Second
	watchPongWait     = 60 * time.Second
	watchPingPeriod   = 30 * time.Second
)

// WatchHandler streams projected session status over a websocket until the session ends.
type WatchHandler struct {
	sessions *service.SessionsService
	interval time.Duration
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewWatchHandler builds the stream handler.
func NewWatchHandler(sessions *service.SessionsService, interval time.Duration, logger *zap.Logger) *WatchHandler {
	if interval <= 0 {
		interval = time.Second
	}
	return &WatchHandler{
		sessions: sessions,
		interval: interval,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Watch handles GET /sessions/{id}/watch.
func (h *WatchHandler) Watch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.sessions.GetSession(id); err != nil {
		writeServiceError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	ping := time.NewTicker(watchPingPeriod)
	defer ping.Stop()

	for {
		session, err := h.sessions.PollStatus(r.Context(), id)
		if err != nil {
			h.close(conn, websocket.CloseGoingAway, "session no longer available")
			return
		}
		if err := h.write(conn, func() error { return conn.WriteJSON(newSessionView(session)) }); err != nil {
			h.logger.Debug("watch write failed", zap.String("session_id", id), zap.Error(err))
			return
		}
		if session.Status.Terminal() {
			h.close(conn, websocket.CloseNormalClosure, string(session.Status))
			return
		}

	wait:
		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case <-ping.C:
				if err := h.write(conn, func() error { return conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
					return
				}
			case <-ticker.C:
				break wait
			}
		}
	}
}

// readPump drains client frames so control messages are processed.
func (h *WatchHandler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(watchPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WatchHandler) write(conn *websocket.Conn, fn func() error) error {
	if err := conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout)); err != nil {
		return err
	}
	return fn()
}

func (h *WatchHandler) close(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(watchWriteTimeout))
}
