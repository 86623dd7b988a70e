package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/speechbuddy/internal/llmtest"
	"github.com/xhad/speechbuddy/internal/types"
	"github.com/xhad/speechbuddy/pkg/llm"
	"github.com/xhad/speechbuddy/pkg/transcribe"
)

// scriptedGenerator fails for every transcript call listed in failOn.
type scriptedGenerator struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
}

func (g *scriptedGenerator) Generate(ctx context.Context, transcript string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failOn[g.calls] {
		return "", errors.New("provider unavailable")
	}
	return "reply " + transcript, nil
}

func (g *scriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// recordingTranscriber keeps every payload it is given.
type recordingTranscriber struct {
	mu    sync.Mutex
	audio [][]byte
}

func (r *recordingTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio = append(r.audio, audio)
	return transcribe.Placeholder, nil
}

func (r *recordingTranscriber) Payloads() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.audio...)
}

func newRelayServer(t *testing.T, gen types.Generator) *httptest.Server {
	t.Helper()
	return newRelayServerWithConfig(t, RelayConfig{
		Transcriber: transcribe.NewStub(),
		Generator:   gen,
	})
}

func newRelayServerWithConfig(t *testing.T, config RelayConfig) *httptest.Server {
	t.Helper()
	relay, err := NewRelay(config)
	require.NoError(t, err)
	srv := httptest.NewServer(relay.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendAudio(t *testing.T, conn *websocket.Conn, audio []byte) {
	t.Helper()
	frame := map[string]any{
		"event": EventAudioMessage,
		"data":  map[string]string{"audio": base64.StdEncoding.EncodeToString(audio)},
	}
	require.NoError(t, conn.WriteJSON(frame))
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, EventTextResponse, ev.Event)

	var resp TextResponse
	require.NoError(t, json.Unmarshal(ev.Data, &resp))
	return resp.Text
}

func TestRelayRoundTrip(t *testing.T) {
	model := &llmtest.FakeModel{}
	gen, err := llm.NewGenerator(model, llm.GeneratorConfig{})
	require.NoError(t, err)

	conn := dial(t, newRelayServer(t, gen))
	sendAudio(t, conn, []byte("fake webm bytes"))

	text := readText(t, conn)
	assert.Equal(t, "Act as a speech therapist and respond to this: "+transcribe.Placeholder, text)
	assert.Equal(t, 150, model.LastOptions().MaxTokens)
}

func TestRelayHandlesMessagesInOrder(t *testing.T) {
	gen := &scriptedGenerator{}
	conn := dial(t, newRelayServer(t, gen))

	for i := 0; i < 3; i++ {
		sendAudio(t, conn, []byte{byte(i)})
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, "reply "+transcribe.Placeholder, readText(t, conn))
	}
	assert.Equal(t, 3, gen.Calls())
}

func TestRelayGenerationFailureEmitsNothing(t *testing.T) {
	gen := &scriptedGenerator{failOn: map[int]bool{1: true}}
	conn := dial(t, newRelayServer(t, gen))

	sendAudio(t, conn, []byte("first"))
	sendAudio(t, conn, []byte("second"))

	// the first reply on the wire belongs to the second message
	assert.Equal(t, "reply "+transcribe.Placeholder, readText(t, conn))
	assert.Equal(t, 2, gen.Calls())
}

func TestRelayIgnoresBadFrames(t *testing.T) {
	gen := &scriptedGenerator{}
	conn := dial(t, newRelayServer(t, gen))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(map[string]any{"event": "ping"}))
	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": EventAudioMessage,
		"data":  "not an object",
	}))
	sendAudio(t, conn, nil)

	assert.Equal(t, "reply "+transcribe.Placeholder, readText(t, conn))
	assert.Equal(t, 1, gen.Calls())
}

func TestRelayPassesUndecodableAudioThrough(t *testing.T) {
	gen := &scriptedGenerator{}
	transcriber := &recordingTranscriber{}
	conn := dial(t, newRelayServerWithConfig(t, RelayConfig{
		Transcriber: transcriber,
		Generator:   gen,
	}))

	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": EventAudioMessage,
		"data":  map[string]string{"audio": "raw-webm-bytes!!"},
	}))
	sendAudio(t, conn, []byte("decoded"))

	assert.Equal(t, "reply "+transcribe.Placeholder, readText(t, conn))
	assert.Equal(t, "reply "+transcribe.Placeholder, readText(t, conn))
	assert.Equal(t, 2, gen.Calls())

	payloads := transcriber.Payloads()
	require.Len(t, payloads, 2)
	assert.Equal(t, []byte("raw-webm-bytes!!"), payloads[0])
	assert.Equal(t, []byte("decoded"), payloads[1])
}

func TestRelayClosesOversizedFrames(t *testing.T) {
	gen := &scriptedGenerator{}
	conn := dial(t, newRelayServerWithConfig(t, RelayConfig{
		Transcriber:    transcribe.NewStub(),
		Generator:      gen,
		MaxMessageSize: 512,
	}))

	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("a", 4096)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, gen.Calls())
}

func TestRelayPages(t *testing.T) {
	srv := newRelayServer(t, &scriptedGenerator{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/static/relay.js")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(srv.URL + "/static/relay.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewRelayRequiresDependencies(t *testing.T) {
	_, err := NewRelay(RelayConfig{Transcriber: transcribe.NewStub()})
	assert.Error(t, err)
}
