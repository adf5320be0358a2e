package api

import (
	"net/http"
	"time"

	"AlphaBot/internal/service/notify"
	"AlphaBot/internal/usecase"
	xhttp "AlphaBot/pkg/http"
	"AlphaBot/pkg/http/middleware"
	xlogger "AlphaBot/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
)

// streamFrame is one websocket message: the current bot view on connect, then events.
type streamFrame struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

// StreamHandler pushes BotEvents for one bot over a websocket.
type StreamHandler struct {
	logger     *xlogger.Logger
	dispatcher *usecase.BotDispatcher
	hub        *notify.Hub
	upgrader   websocket.Upgrader
	// beforeSnapshot runs between subscribing and reading the snapshot. Tests only.
	beforeSnapshot func()
}

func NewStreamHandler(logger *xlogger.Logger, dispatcher *usecase.BotDispatcher, hub *notify.Hub) *StreamHandler {
	return &StreamHandler{
		logger:     logger,
		dispatcher: dispatcher,
		hub:        hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// checkOrigin admits requests without an Origin header (non-browser clients) and
// browsers whose origin is allowed.
func checkOrigin(allow []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get(echo.HeaderOrigin)
		return origin == "" || middleware.OriginAllowed(allow, origin)
	}
}

func (h *StreamHandler) Stream(c echo.Context) error {
	botID := c.Param("id")

	// subscribe before reading the snapshot so no change is lost in between; events
	// already reflected in the snapshot are skipped by version below
	sub := h.hub.Subscribe(botID)
	defer sub.Close()

	if h.beforeSnapshot != nil {
		h.beforeSnapshot()
	}
	view, err := h.dispatcher.Snapshot(c.Request().Context(), botID)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.Debug("stream upgrade failed", xlogger.String("bot_id", botID), xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	h.logger.Debug("stream opened", xlogger.String("bot_id", botID), xlogger.String("remote", c.RealIP()))

	// read loop: handles pongs and notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, streamFrame{Kind: "snapshot", Data: view}); err != nil {
		return nil
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			h.logger.Debug("stream closed by client", xlogger.String("bot_id", botID))
			return nil
		case e, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return nil
			}
			if e.Version <= view.Version {
				continue
			}
			if err := h.write(conn, streamFrame{Kind: "event", Data: e}); err != nil {
				h.logger.Debug("stream write failed", xlogger.String("bot_id", botID), xlogger.Error(err))
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, frame streamFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}
