package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

type chanBus struct{ ch chan []byte }

func (b *chanBus) Publish(context.Context, string, []byte) error { return nil }

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	if channel != domain.LogsChannel {
		return nil, errors.New("unexpected channel " + channel)
	}
	return b.ch, nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type fixedSeq int64

func (s fixedSeq) Seq() int64 { return int64(s) }

func logPayload(t *testing.T, seq int64, name string, eventID string) []byte {
	t.Helper()
	l := domain.Log{Name: name}
	if eventID != "" {
		l.Attrs = []domain.Attr{domain.Str("event_id", eventID)}
	}
	b, err := json.Marshal(domain.LogMessage{Seq: seq, TxID: "tx", Action: "market.place_wager", Log: l})
	require.NoError(t, err)
	return b
}

func startHub(t *testing.T) (*chanBus, *httptest.Server) {
	t.Helper()
	bus := &chanBus{ch: make(chan []byte, 8)}
	hub := NewHub(bus, fixedSeq(9), nil, slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", hub.HandleWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return bus, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readControl(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHubBinaryFrames(t *testing.T) {
	bus, srv := startHub(t)
	conn := dial(t, srv, "")

	hello := readControl(t, conn)
	assert.Equal(t, "hello", hello["type"])
	assert.Equal(t, float64(9), hello["seq"])

	bus.ch <- logPayload(t, 10, domain.LogWagerPlaced, "3")
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)

	var st structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &st))
	m := st.AsMap()
	assert.Equal(t, "log", m["type"])
	assert.Equal(t, float64(10), m["seq"])
	assert.Equal(t, domain.LogWagerPlaced, m["log"].(map[string]any)["name"])
}

func TestHubEventSubscription(t *testing.T) {
	bus, srv := startHub(t)
	conn := dial(t, srv, "?format=json&events=3")
	hello := readControl(t, conn)
	assert.Equal(t, []any{domain.EventLogsChannel(3)}, hello["channels"])

	bus.ch <- logPayload(t, 1, domain.LogTransfer, "")
	bus.ch <- logPayload(t, 2, domain.LogWagerPlaced, "4")
	bus.ch <- logPayload(t, 3, domain.LogWagerPlaced, "3")

	got := readControl(t, conn)
	assert.Equal(t, float64(3), got["seq"], "only event 3 logs arrive")

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "subscribe", "events": []uint64{4}}))
	ack := readControl(t, conn)
	assert.Equal(t, "subscribed", ack["type"])
	assert.Len(t, ack["channels"], 2)

	bus.ch <- logPayload(t, 4, domain.LogWagerPlaced, "4")
	got = readControl(t, conn)
	assert.Equal(t, float64(4), got["seq"])
}

func TestHubRejectsUnknownChannel(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv, "?format=json")
	readControl(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "subscribe", "channels": []string{"tiqet:lock:producer"}}))
	msg := readControl(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["error"], "unknown channel")
}

func TestIsEventChannel(t *testing.T) {
	assert.True(t, isEventChannel("tiqet:event:12:logs"))
	assert.False(t, isEventChannel("tiqet:event::logs"))
	assert.False(t, isEventChannel("tiqet:event:1x:logs"))
	assert.False(t, isEventChannel("tiqet:logs"))
}
