package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"code-playground-go/internal/model"
	"code-playground-go/internal/playground"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialSession(t *testing.T, gw *fakeGatewayService) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(NewRouter(testConfig(1<<20), gw))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/session"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil 读取事件直到 match 返回 true。
func readUntil(t *testing.T, conn *websocket.Conn, match func(SessionEvent) bool) SessionEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var event SessionEvent
		require.NoError(t, conn.ReadJSON(&event))
		if match(event) {
			return event
		}
	}
}

func lastTurn(s *playground.Snapshot) model.Turn {
	return s.Turns[len(s.Turns)-1]
}

func TestSession_InitialSnapshot(t *testing.T) {
	conn := dialSession(t, &fakeGatewayService{})

	event := readUntil(t, conn, func(e SessionEvent) bool { return e.Type == "snapshot" })
	require.NotNil(t, event.Snapshot)
	require.Len(t, event.Snapshot.Turns, 1)
	assert.Equal(t, "Hi!", event.Snapshot.Turns[0].Content)
	assert.Equal(t, playground.DefaultInitialCode, event.Snapshot.Code)
}

func TestSession_ChatReconciles(t *testing.T) {
	gw := &fakeGatewayService{reply: "Try:\n```js\nlet x = 1\n```"}
	conn := dialSession(t, gw)

	require.NoError(t, conn.WriteJSON(SessionAction{Type: "chat", Text: "fix it"}))
	event := readUntil(t, conn, func(e SessionEvent) bool {
		return e.Type == "snapshot" && len(e.Snapshot.Turns) == 3 && lastTurn(e.Snapshot).State == model.TurnResolved
	})

	turn := lastTurn(event.Snapshot)
	assert.Equal(t, model.RenderCode, turn.RenderMode)
	assert.Equal(t, gw.reply, turn.Content)
	assert.False(t, event.Snapshot.ChatPending)

	require.NoError(t, conn.WriteJSON(SessionAction{Type: "apply", TurnID: turn.ID}))
	event = readUntil(t, conn, func(e SessionEvent) bool { return e.Type == "snapshot" && e.Snapshot.Code == "let x = 1" })
	assert.Len(t, event.Snapshot.Turns, 3)
}

func TestSession_EditThenAnalyze(t *testing.T) {
	gw := &fakeGatewayService{result: &model.ReviewResult{
		Suggestions: []model.Suggestion{{Kind: model.KindLogic, Severity: model.SeverityMedium, Message: "off by one"}},
	}}
	conn := dialSession(t, gw)

	require.NoError(t, conn.WriteJSON(SessionAction{Type: "edit", Code: "for (i = 0; i <= n; i++)"}))
	readUntil(t, conn, func(e SessionEvent) bool { return e.Type == "snapshot" && e.Snapshot.Code == "for (i = 0; i <= n; i++)" })

	require.NoError(t, conn.WriteJSON(SessionAction{Type: "analyze"}))
	event := readUntil(t, conn, func(e SessionEvent) bool {
		return e.Type == "snapshot" && !e.Snapshot.Analyzing && len(e.Snapshot.Suggestions) == 1
	})
	assert.Equal(t, "off by one", event.Snapshot.Suggestions[0].Message)
	assert.Equal(t, playground.AnalyzingText, lastTurn(event.Snapshot).Content)
}

func TestSession_RejectedActionsReportErrors(t *testing.T) {
	conn := dialSession(t, &fakeGatewayService{})

	require.NoError(t, conn.WriteJSON(SessionAction{Type: "apply", TurnID: 1}))
	event := readUntil(t, conn, func(e SessionEvent) bool { return e.Type == "error" })
	assert.Equal(t, playground.ErrNotCodeTurn.Error(), event.Message)

	require.NoError(t, conn.WriteJSON(SessionAction{Type: "dance"}))
	event = readUntil(t, conn, func(e SessionEvent) bool { return e.Type == "error" })
	assert.Equal(t, "unknown action type: dance", event.Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	event = readUntil(t, conn, func(e SessionEvent) bool { return e.Type == "error" })
	assert.Equal(t, "invalid action", event.Message)

	for _, frame := range []string{"", `{"type":`} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
		event = readUntil(t, conn, func(e SessionEvent) bool { return e.Type == "error" })
		assert.Equal(t, "invalid action", event.Message, "frame %q", frame)
	}

	require.NoError(t, conn.WriteJSON(SessionAction{Type: "chat", Text: "   "}))
	event = readUntil(t, conn, func(e SessionEvent) bool { return e.Type == "error" })
	assert.Equal(t, playground.ErrEmptyMessage.Error(), event.Message)
}

func TestSession_SurvivesTruncatedFrame(t *testing.T) {
	gw := &fakeGatewayService{reply: "sure"}
	conn := dialSession(t, gw)

	require.NoError(t, conn.WriteJSON(SessionAction{Type: "edit", Code: "let a = 1"}))
	readUntil(t, conn, func(e SessionEvent) bool { return e.Type == "snapshot" && e.Snapshot.Code == "let a = 1" })

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":`)))
	readUntil(t, conn, func(e SessionEvent) bool { return e.Type == "error" })

	require.NoError(t, conn.WriteJSON(SessionAction{Type: "chat", Text: "still there?"}))
	event := readUntil(t, conn, func(e SessionEvent) bool {
		return e.Type == "snapshot" && len(e.Snapshot.Turns) == 3 && lastTurn(e.Snapshot).State == model.TurnResolved
	})
	assert.Equal(t, "sure", lastTurn(event.Snapshot).Content)
	assert.Equal(t, "let a = 1", event.Snapshot.Code, "editor survives the bad frame")
}

func TestPublishLatest_KeepsNewest(t *testing.T) {
	ch := make(chan playground.Snapshot, 1)
	publishLatest(ch, playground.Snapshot{Version: 1})
	publishLatest(ch, playground.Snapshot{Version: 2})
	publishLatest(ch, playground.Snapshot{Version: 3})

	assert.Equal(t, uint64(3), (<-ch).Version)
	assert.Empty(t, ch)
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed([]string{"*"}, "http://a.example"))
	assert.True(t, originAllowed([]string{"http://a.example"}, "http://a.example"))
	assert.False(t, originAllowed([]string{"http://a.example"}, "http://b.example"))
	assert.True(t, originAllowed([]string{"http://a.example"}, ""))
}
