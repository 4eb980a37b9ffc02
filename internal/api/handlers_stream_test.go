package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/knowledge-chat/backend/internal/events"
	"github.com/knowledge-chat/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseFrame struct {
	event string
	data  events.Event
}

// readSSE returns frames parsed from the stream, skipping comments.
func readSSE(t *testing.T, r *bufio.Reader) <-chan sseFrame {
	t.Helper()
	out := make(chan sseFrame, 64)
	go func() {
		defer close(out)
		var frame sseFrame
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				frame.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame.data)
			case line == "" && frame.event != "":
				out <- frame
				frame = sseFrame{}
			}
		}
	}()
	return out
}

func nextFrame(t *testing.T, frames <-chan sseFrame, want events.Type) sseFrame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-frames:
			require.True(t, ok, "stream closed before %s event", want)
			if f.event == string(want) {
				return f
			}
		case <-timeout:
			t.Fatalf("no %s event", want)
		}
	}
}

func TestStreamHandler_HandleEvents(t *testing.T) {
	a := newTestAPI(t)
	a.hook.Answer = "pushed"
	s := a.newSession(t)

	srv := httptest.NewServer(a.e)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sessions/" + s.ID + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := readSSE(t, bufio.NewReader(resp.Body))

	state := nextFrame(t, frames, events.TypeState)
	assert.Equal(t, s.ID, state.data.SessionID)

	body, _ := json.Marshal(askRequest{Question: "What is X?"})
	askResp, err := http.Post(srv.URL+"/api/sessions/"+s.ID+"/chat/ask", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	askResp.Body.Close()
	require.Equal(t, http.StatusOK, askResp.StatusCode)

	first := nextFrame(t, frames, events.TypeChat)
	raw, _ := json.Marshal(first.data.Payload)
	var view models.ChatView
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.True(t, view.Waiting, "the question is pushed before the answer")
	require.Len(t, view.Messages, 1)

	second := nextFrame(t, frames, events.TypeChat)
	raw, _ = json.Marshal(second.data.Payload)
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.False(t, view.Waiting)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "pushed", view.Messages[1].Content)
}

func TestStreamHandler_EndsWhenSessionDeleted(t *testing.T) {
	a := newTestAPI(t)
	s := a.newSession(t)

	srv := httptest.NewServer(a.e)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sessions/" + s.ID + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	frames := readSSE(t, bufio.NewReader(resp.Body))
	nextFrame(t, frames, events.TypeState)

	require.True(t, a.sessions.Delete(s.ID))

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("stream stayed open after the session was deleted")
		}
	}
}

func dialSession(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestWebSocketHandler(t *testing.T) {
	a := newTestAPI(t)
	a.hook.Answer = "over websocket"
	s := a.newSession(t)

	srv := httptest.NewServer(a.e)
	defer srv.Close()

	conn := dialSession(t, srv, s.ID)
	defer conn.Close()

	connected := readUntil(t, conn, MsgTypeConnected)
	var snap models.SessionSnapshot
	require.NoError(t, json.Unmarshal(connected.Payload, &snap))
	assert.Equal(t, s.ID, snap.ID)

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypePing, ID: "p1"}))
		pong := readUntil(t, conn, MsgTypePong)
		assert.Equal(t, "p1", pong.ID)
	})

	t.Run("drag", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypeDrag, Payload: mustJSON(DragPayload{Event: "enter"})}))
		readUntil(t, conn, MsgTypeEvent)
		assert.True(t, s.Upload.View().DragActive)

		require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypeDrag, Payload: mustJSON(DragPayload{Event: "leave"})}))
		readUntil(t, conn, MsgTypeEvent)
		assert.False(t, s.Upload.View().DragActive)
	})

	t.Run("ask", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(WSMessage{
			Type:    MsgTypeChatAsk,
			ID:      "q1",
			Payload: mustJSON(AskPayload{Question: "What is X?"}),
		}))

		ack := readUntil(t, conn, MsgTypeAck)
		assert.Equal(t, "q1", ack.ID)
		var payload WSAckResponse
		require.NoError(t, json.Unmarshal(ack.Payload, &payload))
		assert.Equal(t, models.OutcomeDelivered, payload.Outcome)

		msgs := s.Chat.Transcript()
		require.Len(t, msgs, 2)
		assert.Equal(t, "over websocket", msgs[1].Content)
	})

	t.Run("blank text is skipped", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(WSMessage{
			Type:    MsgTypeTextSubmit,
			ID:      "t1",
			Payload: mustJSON(TextPayload{Text: "   "}),
		}))
		ack := readUntil(t, conn, MsgTypeAck)
		var payload WSAckResponse
		require.NoError(t, json.Unmarshal(ack.Payload, &payload))
		assert.Equal(t, models.OutcomeSkipped, payload.Outcome)

		_, textCalls, _ := a.hook.Calls()
		assert.Zero(t, textCalls)
	})

	t.Run("unknown type", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(WSMessage{Type: "upload:init", ID: "u1"}))
		errMsg := readUntil(t, conn, MsgTypeError)
		var payload WSErrorResponse
		require.NoError(t, json.Unmarshal(errMsg.Payload, &payload))
		assert.Equal(t, "INVALID_TYPE", payload.Code)
	})

	t.Run("missing payload", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypeChatAsk, ID: "q2"}))
		errMsg := readUntil(t, conn, MsgTypeError)
		assert.Equal(t, "q2", errMsg.ID)
	})
}

func TestWebSocketHandler_UnknownSession(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
