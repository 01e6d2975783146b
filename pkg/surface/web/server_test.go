package web

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/menta2k/frame-annotator/pkg/annotation"
	"github.com/menta2k/frame-annotator/pkg/surface"
)

func createTestImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	return img
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Options{JPEGQuality: 80}, zaptest.NewLogger(t))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (statusMessage, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, msgType)
	var st statusMessage
	require.NoError(t, json.Unmarshal(data, &st))

	msgType, jpg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, msgType)
	return st, jpg
}

func nextEvent(t *testing.T, s *Server) annotation.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := s.NextEvent(ctx)
	require.NoError(t, err)
	return ev
}

func TestIndexPage(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<canvas")
}

func TestFrameEndpoint(t *testing.T) {
	s, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/frame.jpg")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, s.Show(context.Background(), surface.Frame{Image: createTestImage(64, 36), Video: "clip", Index: 5}))

	resp, err = http.Get(ts.URL + "/frame.jpg")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	img, _, err := image.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestKeymapEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/keymap")
	require.NoError(t, err)
	defer resp.Body.Close()

	var bindings []map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bindings))
	assert.NotEmpty(t, bindings)
}

func TestWebSocketFramesAndEvents(t *testing.T) {
	s, ts := newTestServer(t)
	require.NoError(t, s.Show(context.Background(), surface.Frame{Image: createTestImage(64, 36), Video: "clip", Index: 10}))

	conn := dial(t, ts)

	// The latest frame is sent on connect
	st, jpg := readFrame(t, conn)
	assert.Equal(t, "clip", st.Video)
	assert.Equal(t, 10, st.Index)
	assert.Equal(t, 64, st.Width)
	assert.NotEmpty(t, jpg)

	// Subsequent frames are pushed
	require.NoError(t, s.Show(context.Background(), surface.Frame{Image: createTestImage(64, 36), Video: "clip", Index: 15, Message: "saved"}))
	st, _ = readFrame(t, conn)
	assert.Equal(t, 15, st.Index)
	assert.Equal(t, "saved", st.Message)

	messages := []clientMessage{
		{Type: "key", Key: "t"},
		{Type: "key", Key: "q"}, // unbound, dropped
		{Type: "key", Key: "7"},
		{Type: "down", X: 10, Y: 20},
		{Type: "move", X: 30, Y: 40},
		{Type: "up", X: 50, Y: 60},
	}
	for _, m := range messages {
		require.NoError(t, conn.WriteJSON(m))
	}

	assert.Equal(t, annotation.Key(annotation.RotateCCW15), nextEvent(t, s))
	assert.Equal(t, annotation.Class(7), nextEvent(t, s))
	assert.Equal(t, annotation.PointerDown(10, 20), nextEvent(t, s))
	assert.Equal(t, annotation.PointerMove(30, 40), nextEvent(t, s))
	assert.Equal(t, annotation.PointerUp(50, 60), nextEvent(t, s))
}

func TestNewFrameDropsQueuedEvents(t *testing.T) {
	s, ts := newTestServer(t)
	show := func(index int, message string) {
		require.NoError(t, s.Show(context.Background(), surface.Frame{Image: createTestImage(64, 36), Video: "clip", Index: index, Message: message}))
	}
	show(0, "")
	conn := dial(t, ts)
	readFrame(t, conn)

	// A double press commits frame 0 once; the second j is queued
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "key", Key: "j"}))
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "key", Key: "j"}))
	assert.Equal(t, annotation.Key(annotation.Commit), nextEvent(t, s))
	require.Eventually(t, func() bool { return len(s.events) == 1 }, 5*time.Second, 10*time.Millisecond)

	// Redrawing the same frame keeps queued input
	show(0, "saved")
	assert.Len(t, s.events, 1)

	show(5, "")
	assert.Empty(t, s.events)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := s.NextEvent(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNextEventAfterClose(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.Close())
	_, err := s.NextEvent(context.Background())
	assert.ErrorIs(t, err, surface.ErrClosed)
}

func TestNextEventCancelled(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.NextEvent(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
