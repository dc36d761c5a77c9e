package ws

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pingpongpal/internal/broadcast"
	"pingpongpal/internal/game"
	"pingpongpal/internal/models"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *game.Service, *broadcast.Hub) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := game.NewService(logger)
	hub := broadcast.NewHub(logger)
	mux := http.NewServeMux()
	NewHandler(svc, hub, logger).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc, hub
}

func dial(t *testing.T, srv *httptest.Server, matchID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + matchID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) broadcast.Update {
	t.Helper()
	var u broadcast.Update
	if err := conn.ReadJSON(&u); err != nil {
		t.Fatalf("read: %v", err)
	}
	return u
}

func TestWebSocketIntents(t *testing.T) {
	srv, svc, _ := newTestServer(t)
	match, _ := svc.StartMatch(models.Config{Player0Name: "A", Player1Name: "B"})
	conn := dial(t, srv, match.ID)

	initial := readUpdate(t, conn)
	if initial.Match.ID != match.ID || initial.Match.CanUndo {
		t.Fatalf("initial = %+v", initial)
	}

	p1 := models.Player1
	if err := conn.WriteJSON(Intent{Action: ActionPoint, Player: &p1}); err != nil {
		t.Fatal(err)
	}
	u := readUpdate(t, conn)
	if u.Match.Players[1].Score != 1 || !u.Match.CanUndo {
		t.Fatalf("after point = %+v", u.Match)
	}

	if err := conn.WriteJSON(Intent{Action: ActionUndo}); err != nil {
		t.Fatal(err)
	}
	u = readUpdate(t, conn)
	if u.Match.Players[1].Score != 0 || u.Match.CanUndo || !models.HasKind(u.Events, models.EventUndo) {
		t.Fatalf("after undo = %+v", u)
	}
}

func TestWebSocketBadIntent(t *testing.T) {
	srv, svc, _ := newTestServer(t)
	match, _ := svc.StartMatch(models.Config{})
	conn := dial(t, srv, match.ID)
	readUpdate(t, conn)

	if err := conn.WriteJSON(Intent{Action: "serve"}); err != nil {
		t.Fatal(err)
	}
	var msg map[string]string
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg["error"] != errUnknownAction.Error() {
		t.Fatalf("message = %v", msg)
	}
}

func TestWebSocketUnknownMatch(t *testing.T) {
	srv, _, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded for unknown match")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("response = %v, want 404", resp)
	}
}

func TestWebSocketClosedWhenWriteFails(t *testing.T) {
	srv, svc, hub := newTestServer(t)
	hub.SetWriteTimeout(-time.Second)
	match, _ := svc.StartMatch(models.Config{})
	conn := dial(t, srv, match.ID)

	var u broadcast.Update
	err := conn.ReadJSON(&u)
	if err == nil {
		t.Fatalf("read succeeded: %+v", u)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		t.Fatal("server kept the connection open after its write failed")
	}
	if n := hub.Subscribers(match.ID); n != 0 {
		t.Fatalf("subscribers = %d, want 0", n)
	}
}
