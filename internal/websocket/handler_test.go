package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble/pkg/types"
)

// recordingDispatcher captures the hub-side callbacks.
type recordingDispatcher struct {
	mu            sync.Mutex
	connects      int
	disconnects   int
	envelopes     []types.Envelope
	panicOnAction string
}

func (d *recordingDispatcher) HandleConnect(conn *Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connects++
}

func (d *recordingDispatcher) Dispatch(conn *Connection, env *types.Envelope) {
	d.mu.Lock()
	d.envelopes = append(d.envelopes, *env)
	panicAction := d.panicOnAction
	d.mu.Unlock()
	if panicAction != "" && env.Action == panicAction {
		panic("handler exploded")
	}
}

func (d *recordingDispatcher) HandleDisconnect(conn *Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnects++
}

func (d *recordingDispatcher) snapshot() (int, int, []types.Envelope) {
	d.mu.Lock()
	defer d.mu.Unlock()
	envs := make([]types.Envelope, len(d.envelopes))
	copy(envs, d.envelopes)
	return d.connects, d.disconnects, envs
}

func dialHandler(t *testing.T, dispatcher Dispatcher) *websocket.Conn {
	t.Helper()
	registry := NewRegistry()
	handler := NewHandler(registry, dispatcher)

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHandlerDispatchesValidMessages(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	conn := dialHandler(t, dispatcher)

	require.NoError(t, conn.WriteJSON(types.Envelope{Action: types.ActionStartPerformance, RoomName: "aurora"}))

	require.Eventually(t, func() bool {
		_, _, envs := dispatcher.snapshot()
		return len(envs) == 1
	}, time.Second, 10*time.Millisecond)

	connects, _, envs := dispatcher.snapshot()
	assert.Equal(t, 1, connects)
	assert.Equal(t, types.ActionStartPerformance, envs[0].Action)
	assert.Equal(t, "aurora", envs[0].RoomName)
}

func TestHandlerRejectsMalformedMessages(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	conn := dialHandler(t, dispatcher)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	var out types.Outbound
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, types.ActionError, out.Action)

	_, _, envs := dispatcher.snapshot()
	assert.Empty(t, envs, "malformed messages never reach the dispatcher")
}

func TestHandlerRejectsInvalidEnvelope(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	conn := dialHandler(t, dispatcher)

	require.NoError(t, conn.WriteJSON(types.Envelope{Action: "no spaces allowed here!"}))

	var out types.Outbound
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, types.ActionError, out.Action)
}

func TestHandlerSurvivesPanicInDispatch(t *testing.T) {
	dispatcher := &recordingDispatcher{panicOnAction: types.ActionEndSong}
	conn := dialHandler(t, dispatcher)

	require.NoError(t, conn.WriteJSON(types.Envelope{Action: types.ActionEndSong}))

	var out types.Outbound
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, types.ActionError, out.Action)

	// The connection keeps working after the panic was contained.
	require.NoError(t, conn.WriteJSON(types.Envelope{Action: types.ActionPlayAgain}))
	require.Eventually(t, func() bool {
		_, _, envs := dispatcher.snapshot()
		return len(envs) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHandlerReportsDisconnect(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	conn := dialHandler(t, dispatcher)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		_, disconnects, _ := dispatcher.snapshot()
		return disconnects == 1
	}, time.Second, 10*time.Millisecond)
}
