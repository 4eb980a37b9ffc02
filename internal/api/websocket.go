package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/knowledge-chat/backend/internal/chat"
	"github.com/knowledge-chat/backend/internal/events"
	"github.com/knowledge-chat/backend/internal/models"
	"github.com/knowledge-chat/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// WebSocket message types for the session protocol
const (
	// Client -> Server messages
	MsgTypePing        = "ping"
	MsgTypeDrag        = "upload:drag"
	MsgTypeTextDraft   = "text:draft"
	MsgTypeTextSubmit  = "text:submit"
	MsgTypeUploadReset = "upload:reset"
	MsgTypeChatDraft   = "chat:draft"
	MsgTypeChatKey     = "chat:key"
	MsgTypeChatAsk     = "chat:ask"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeEvent     = "event"
	MsgTypeAck       = "ack"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

const wsWriteTimeout = 10 * time.Second

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Drag payload
type DragPayload struct {
	Event string `json:"event"` // "enter", "over", "leave"
}

// Text payload for drafts and text submission
type TextPayload struct {
	Text string `json:"text"`
}

// Key payload for chat input key presses
type KeyPayload struct {
	Key   string `json:"key"`
	Shift bool   `json:"shift"`
}

// Ask payload
type AskPayload struct {
	Question string `json:"question"`
}

// WebSocket acknowledgement of a submission
type WSAckResponse struct {
	Outcome models.Outcome `json:"outcome"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) send(msg WSMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.ws.WriteJSON(msg)
}

func (c *wsConn) sendError(id, message, code string) {
	c.send(WSMessage{
		Type: MsgTypeError,
		ID:   id,
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
		}),
	})
}

// WebSocketHandler pushes session events and accepts user actions over one connection
type WebSocketHandler struct {
	sessions       SessionStore
	baseCtx        context.Context
	upgrader       websocket.Upgrader
	maxMessageSize int64
}

// NewWebSocketHandler creates a new WebSocket session handler
func NewWebSocketHandler(sessions SessionStore, baseCtx context.Context, maxMessageSize int64) *WebSocketHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &WebSocketHandler{
		sessions: sessions,
		baseCtx:  baseCtx,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// CORS middleware already filters origins
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		maxMessageSize: maxMessageSize,
	}
}

// HandleWebSocket upgrades HTTP connection to WebSocket and runs the session protocol
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	s, err := lookupSession(wsh.sessions, c)
	if err != nil {
		return err
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	if wsh.maxMessageSize > 0 {
		ws.SetReadLimit(wsh.maxMessageSize)
	}
	conn := &wsConn{ws: ws}

	sub, cancel := s.Events.Subscribe(events.DefaultBuffer)
	defer cancel()

	fmt.Printf("[WebSocket %s] Client connected\n", s.ID[:8])

	// Send welcome message with the full state
	conn.send(WSMessage{Type: MsgTypeConnected, ID: s.ID, Payload: mustJSON(s.Snapshot())})

	go func() {
		for e := range sub {
			if err := conn.send(WSMessage{Type: MsgTypeEvent, Payload: mustJSON(e), Timestamp: e.Timestamp}); err != nil {
				return
			}
		}
	}()

	// Main message loop
	for {
		var msg WSMessage
		err := ws.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				fmt.Printf("[WebSocket %s] Connection error: %v\n", s.ID[:8], err)
			}
			break
		}
		s.Touch()
		wsh.dispatch(conn, s, msg)
	}

	fmt.Printf("[WebSocket %s] Client disconnected\n", s.ID[:8])
	return nil
}

// dispatch handles one client message. Webhook calls run in their own
// goroutine so pings and drafts are not held up behind them.
func (wsh *WebSocketHandler) dispatch(conn *wsConn, s *session.Session, msg WSMessage) {
	switch msg.Type {
	case MsgTypePing:
		// Respond with pong to keep connection alive
		conn.send(WSMessage{Type: MsgTypePong, ID: msg.ID})

	case MsgTypeDrag:
		var p DragPayload
		if !decodePayload(conn, msg, &p) {
			return
		}
		if err := applyDrag(s.Upload, p.Event); err != nil {
			conn.sendError(msg.ID, err.Error(), "INVALID_PAYLOAD")
		}

	case MsgTypeTextDraft:
		var p TextPayload
		if decodePayload(conn, msg, &p) {
			s.Upload.SetText(p.Text)
		}

	case MsgTypeTextSubmit:
		var p TextPayload
		if !decodePayload(conn, msg, &p) {
			return
		}
		go wsh.runAsync(conn, msg.ID, func(ctx context.Context) (models.Outcome, error) {
			return s.Upload.SubmitText(ctx, p.Text), nil
		})

	case MsgTypeUploadReset:
		if err := s.Upload.Reset(); err != nil {
			conn.sendError(msg.ID, err.Error(), "UPLOAD_IN_FLIGHT")
		}

	case MsgTypeChatDraft:
		var p TextPayload
		if decodePayload(conn, msg, &p) {
			s.Chat.SetDraft(p.Text)
		}

	case MsgTypeChatKey:
		var p KeyPayload
		if !decodePayload(conn, msg, &p) {
			return
		}
		go wsh.runAsync(conn, msg.ID, func(ctx context.Context) (models.Outcome, error) {
			return s.Chat.KeyPress(ctx, p.Key, p.Shift)
		})

	case MsgTypeChatAsk:
		var p AskPayload
		if !decodePayload(conn, msg, &p) {
			return
		}
		go wsh.runAsync(conn, msg.ID, func(ctx context.Context) (models.Outcome, error) {
			return s.Chat.Ask(ctx, p.Question)
		})

	default:
		conn.sendError(msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE")
	}
}

func (wsh *WebSocketHandler) runAsync(conn *wsConn, id string, fn func(ctx context.Context) (models.Outcome, error)) {
	outcome, err := fn(wsh.baseCtx)
	if errors.Is(err, chat.ErrBusy) {
		conn.sendError(id, err.Error(), "BUSY")
		return
	}
	if err != nil {
		conn.sendError(id, err.Error(), "INTERNAL_ERROR")
		return
	}
	conn.send(WSMessage{Type: MsgTypeAck, ID: id, Payload: mustJSON(WSAckResponse{Outcome: outcome})})
}

func decodePayload(conn *wsConn, msg WSMessage, v interface{}) bool {
	if len(msg.Payload) == 0 {
		conn.sendError(msg.ID, "Missing payload", "INVALID_PAYLOAD")
		return false
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		conn.sendError(msg.ID, "Invalid payload: "+err.Error(), "INVALID_PAYLOAD")
		return false
	}
	return true
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
