package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/phrazzld/omnimedia-api/internal/broadcast"
	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

// Control actions accepted on the WebSocket.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// controlMessageSchema describes the frames a client may send.
const controlMessageSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["action", "task_id"],
	"properties": {
		"action": {"type": "string", "enum": ["subscribe", "unsubscribe"]},
		"task_id": {"type": "string", "minLength": 1, "maxLength": 128}
	}
}`

// WSHandler upgrades /ws requests and serves subscribe/unsubscribe frames.
// Every connection is registered with the hub for its whole lifetime and
// receives task announcements plus events of the tasks it subscribed to.
type WSHandler struct {
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
	schema   *gojsonschema.Schema
	cfg      broadcast.WSConfig
	logger   *slog.Logger
}

// NewWSHandler creates a WSHandler. An empty allowedOrigins accepts any origin.
func NewWSHandler(
	hub *broadcast.Hub,
	allowedOrigins []string,
	cfg broadcast.WSConfig,
	logger *slog.Logger,
) (*WSHandler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(controlMessageSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile control message schema: %w", err)
	}

	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		schema: schema,
		cfg:    cfg,
		logger: logger.With("component", "ws_handler"),
	}, nil
}

// ServeHTTP implements http.Handler.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	ws := broadcast.NewWSConnection(conn, h.cfg, h.logger)
	h.hub.Register(ws)
	defer func() {
		h.hub.Disconnect(ws)
		_ = ws.Close()
	}()

	ctx := context.WithoutCancel(r.Context())
	for {
		data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed unexpectedly", "connection_id", ws.ID(), "error", err)
			}
			return
		}
		h.handleMessage(ctx, ws, data)
	}
}

func (h *WSHandler) handleMessage(ctx context.Context, ws *broadcast.WSConnection, data []byte) {
	msg, err := h.parseControlMessage(data)
	if err != nil {
		h.reply(ctx, ws, domain.Event{Type: domain.EventError, Data: ErrorData{Message: err.Error()}})
		return
	}

	switch msg.Action {
	case ActionSubscribe:
		h.hub.Subscribe(ws, msg.TaskID)
		h.reply(ctx, ws, domain.Event{TaskID: msg.TaskID, Type: domain.EventSubscriptionConfirmed})
	case ActionUnsubscribe:
		h.hub.Unsubscribe(ws, msg.TaskID)
		h.reply(ctx, ws, domain.Event{TaskID: msg.TaskID, Type: domain.EventUnsubscriptionConfirmed})
	}
}

// parseControlMessage validates data against the control message schema.
func (h *WSHandler) parseControlMessage(data []byte) (ControlMessage, error) {
	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return ControlMessage{}, fmt.Errorf("malformed message: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return ControlMessage{}, fmt.Errorf("invalid message: %s", strings.Join(problems, "; "))
	}

	var msg ControlMessage
	if err := decodeJSONBytes(data, &msg); err != nil {
		return ControlMessage{}, fmt.Errorf("malformed message: %w", err)
	}
	return msg, nil
}

func (h *WSHandler) reply(ctx context.Context, ws *broadcast.WSConnection, event domain.Event) {
	if err := ws.Send(ctx, event); err != nil {
		h.logger.Debug("failed to send reply", "connection_id", ws.ID(), "error", err)
	}
}

// originChecker allows same-host requests, requests without an Origin
// header and any origin in allowed. An empty allowed list accepts all.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		return slices.ContainsFunc(allowed, func(a string) bool {
			return strings.EqualFold(strings.TrimRight(a, "/"), origin)
		})
	}
}
