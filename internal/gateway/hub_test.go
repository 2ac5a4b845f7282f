package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crowdchess/crowdchess/internal/models"
)

func staticSnapshot(version int64) SnapshotFunc {
	return func(ctx context.Context, viewerID string) (*models.View, error) {
		return &models.View{
			Version: version,
			FEN:     models.StartFEN,
			Turn:    models.White,
		}, nil
	}
}

func startHub(t *testing.T, snapshot SnapshotFunc) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(DefaultConfig())
	hub.SetSnapshot(snapshot)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Subscribe(w, r, r.URL.Query().Get("viewer_id"))
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?viewer_id=tester"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg
}

func TestSubscribe(t *testing.T) {
	t.Run("first message is the full snapshot", func(t *testing.T) {
		_, srv := startHub(t, staticSnapshot(3))
		ws := dial(t, srv)

		msg := readMessage(t, ws)
		if msg.Type != MessageTypeSnapshot {
			t.Fatalf("expected snapshot, got %s", msg.Type)
		}
		if msg.Version != 3 {
			t.Fatalf("expected version 3, got %d", msg.Version)
		}
		if msg.View == nil || msg.View.FEN != models.StartFEN {
			t.Fatalf("expected full view in snapshot, got %+v", msg.View)
		}
	})

	t.Run("snapshot failure refuses the subscription", func(t *testing.T) {
		hub, srv := startHub(t, func(ctx context.Context, viewerID string) (*models.View, error) {
			return nil, errors.New("store down")
		})

		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
			t.Fatal("expected dial to fail when the snapshot cannot be derived")
		}
		if n := hub.ConnectionCount(); n != 0 {
			t.Fatalf("expected no registered observers, got %d", n)
		}
	})
}

func TestBroadcast(t *testing.T) {
	hub, srv := startHub(t, staticSnapshot(1))
	ws := dial(t, srv)

	if msg := readMessage(t, ws); msg.Type != MessageTypeSnapshot {
		t.Fatalf("expected snapshot first, got %s", msg.Type)
	}
	waitForObservers(t, hub, 1)

	hub.Broadcast(7)

	msg := readMessage(t, ws)
	if msg.Type != MessageTypeUpdate {
		t.Fatalf("expected update, got %s", msg.Type)
	}
	if msg.Version != 7 {
		t.Fatalf("expected version 7, got %d", msg.Version)
	}
	// Update notices are constant size: no view payload.
	if msg.View != nil {
		t.Fatalf("update notice must not inline the view, got %+v", msg.View)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, srv := startHub(t, staticSnapshot(1))
	ws := dial(t, srv)

	if msg := readMessage(t, ws); msg.Type != MessageTypeSnapshot {
		t.Fatalf("expected snapshot first, got %s", msg.Type)
	}
	waitForObservers(t, hub, 1)

	ws.Close()
	waitForObservers(t, hub, 0)
}

func waitForObservers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ConnectionCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d observers, got %d", want, hub.ConnectionCount())
}
