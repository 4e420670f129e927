package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
)

func startGateway(t *testing.T, signer *Signer, actorID string) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub()
	gw := NewGateway(hub, signer, nil, func(*http.Request) bool { return true })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actorID != "" {
			r = r.WithContext(execution.WithActor(r.Context(), &execution.Actor{ID: actorID}))
		}
		gw.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if actorID == "" {
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		return hub, nil
	}
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return hub, conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestGateway_JoinAndReceive(t *testing.T) {
	signer := NewSigner(testKey, "workspace", time.Hour)
	hub, conn := startGateway(t, signer, "u1")

	room := CompanyApplicationsRoom("c1")
	token := signer.Sign([]Room{room}, "u1").Rooms[0].Token

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join", "room": room.Path, "token": token}))
	ack := readFrame(t, conn)
	assert.Equal(t, "ack", ack["type"])
	assert.Equal(t, room.Path, ack["room"])
	assert.Equal(t, 1, hub.Members(room.Path))

	hub.Broadcast(room.Path, []byte(`{"room":"`+room.Path+`","action":"saved"}`))
	ev := readFrame(t, conn)
	assert.Equal(t, "saved", ev["action"])

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "leave", "room": room.Path}))
	assert.Equal(t, "ack", readFrame(t, conn)["type"])
	assert.Equal(t, 0, hub.Members(room.Path))
}

func TestGateway_RejectsTokenOfOtherActor(t *testing.T) {
	signer := NewSigner(testKey, "workspace", time.Hour)
	hub, conn := startGateway(t, signer, "u2")

	room := CompanyApplicationsRoom("c1")
	token := signer.Sign([]Room{room}, "u1").Rooms[0].Token

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join", "room": room.Path, "token": token}))
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "invalid room token", frame["error"])
	assert.Equal(t, 0, hub.Members(room.Path))
}

func TestGateway_BadFrames(t *testing.T) {
	_, conn := startGateway(t, NewSigner(testKey, "workspace", time.Hour), "u1")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, "malformed frame", readFrame(t, conn)["error"])

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "dance"}))
	assert.Equal(t, "unknown action", readFrame(t, conn)["error"])
}

func TestGateway_RequiresActor(t *testing.T) {
	startGateway(t, NewSigner(testKey, "workspace", time.Hour), "")
}
