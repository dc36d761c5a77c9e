package htmx

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"pingpongpal/internal/broadcast"
	"pingpongpal/internal/game"
	"pingpongpal/internal/models"
)

func newTestMux(t *testing.T) (*http.ServeMux, *game.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := game.NewService(logger)
	mux := http.NewServeMux()
	NewHandler(svc, broadcast.NewHub(logger), logger).RegisterRoutes(mux)
	return mux, svc
}

func post(mux http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func render(t *testing.T, view models.MatchView) string {
	t.Helper()
	html, err := renderToString(context.Background(), MatchContent(view))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return html
}

func TestSetupPage(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<!doctype html>", `name="player0Name"`, `name="player1Name"`, `name="startingServer" value="1"`, "Who Serves First?"} {
		if !strings.Contains(body, want) {
			t.Errorf("setup page missing %q", want)
		}
	}
}

func TestStartMatchForm(t *testing.T) {
	mux, svc := newTestMux(t)

	rec := post(mux, "/htmx/match", url.Values{
		"player0Name":    {"<Ana>"},
		"player1Name":    {"  "},
		"startingServer": {"1"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "&lt;Ana&gt;") || strings.Contains(body, "<Ana>") {
		t.Errorf("name not escaped: %s", body)
	}
	if !strings.Contains(body, "Player 2") {
		t.Errorf("default name missing: %s", body)
	}
	if !strings.Contains(body, `class="player red serving"`) {
		t.Errorf("player 2 should serve first: %s", body)
	}
	if svc.Len() != 1 {
		t.Fatalf("matches = %d, want 1", svc.Len())
	}

	if rec := post(mux, "/htmx/match", url.Values{"startingServer": {"7"}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad starting server status = %d", rec.Code)
	}
}

func TestScoreToWinTriggersCelebrationOnce(t *testing.T) {
	mux, svc := newTestMux(t)
	match, _ := svc.StartMatch(models.Config{Player0Name: "A", Player1Name: "B"})
	path := "/htmx/match/" + match.ID + "/point/1"

	var rec *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		rec = post(mux, path, nil)
		if i < 10 && rec.Header().Get("HX-Trigger") != "" {
			t.Fatalf("point %d triggered %q", i, rec.Header().Get("HX-Trigger"))
		}
	}
	if got := rec.Header().Get("HX-Trigger"); got != EventMatchWon {
		t.Fatalf("HX-Trigger = %q, want %q", got, EventMatchWon)
	}
	if !strings.Contains(rec.Body.String(), "WINNER!") {
		t.Fatalf("winner banner missing")
	}

	rec = post(mux, path, nil)
	if rec.Header().Get("HX-Trigger") != "" {
		t.Fatal("celebration triggered again for a decided match")
	}

	rec = post(mux, "/htmx/match/"+match.ID+"/undo", nil)
	if strings.Contains(rec.Body.String(), "WINNER!") {
		t.Fatal("winner banner still shown after undo")
	}
}

func TestUnknownMatchReturnsSetup(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := post(mux, "/htmx/match/nope/point/0", nil)
	if rec.Header().Get("HX-Retarget") != "#app" || !strings.Contains(rec.Body.String(), "Start Match") {
		t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
	}
}

func TestExitDiscardsMatch(t *testing.T) {
	mux, svc := newTestMux(t)
	match, _ := svc.StartMatch(models.Config{})

	rec := post(mux, "/htmx/match/"+match.ID+"/exit", nil)
	if !strings.Contains(rec.Body.String(), "Start Match") {
		t.Fatalf("exit did not return setup screen")
	}
	if _, ok := svc.GetMatch(match.ID); ok {
		t.Fatal("match still registered")
	}
}

func TestMatchContent(t *testing.T) {
	p0, p1 := models.Player0, models.Player1
	players := [2]models.Player{{Name: "A", Score: 10}, {Name: "B", Score: 10}}

	tests := []struct {
		name    string
		view    models.MatchView
		want    []string
		notWant []string
	}{
		{
			name:    "fresh match",
			view:    models.MatchView{ID: "m", Players: [2]models.Player{{Name: "A"}, {Name: "B"}}, Server: &p0},
			want:    []string{`class="player blue serving"`, `aria-label="Undo last point" disabled`},
			notWant: []string{"WINNER!", "Deuce"},
		},
		{
			name: "deuce",
			view: models.MatchView{ID: "m", Players: players, Server: &p0, Deuce: true, CanUndo: true},
			want: []string{"Deuce"},
		},
		{
			name: "game point",
			view: models.MatchView{ID: "m", Players: players, Server: &p1, GamePoint: &p1, CanUndo: true},
			want: []string{"Game point: B", `class="player red serving"`},
		},
		{
			name:    "escapes text and attributes",
			view:    models.MatchView{ID: `m"x`, Players: [2]models.Player{{Name: "<b>A</b>"}, {Name: "B"}}, Server: &p0},
			want:    []string{`hx-post="/htmx/match/m&#34;x/exit"`, `hx-post="/htmx/match/m&#34;x/point/0"`, "<h2>&lt;b&gt;A&lt;/b&gt;</h2>"},
			notWant: []string{"<b>A</b>", `m"x`},
		},
		{
			name:    "decided",
			view:    models.MatchView{ID: "m", Players: [2]models.Player{{Name: "A", Score: 11}, {Name: "B", Score: 9}}, Winner: &p0, CanUndo: true},
			want:    []string{"WINNER!", "11 - 9", "Undo Last Point", "New Match", `class="score" hx-post="/htmx/match/m/point/1" hx-target="#match-content" hx-swap="innerHTML" disabled`},
			notWant: []string{"serving", "server-badge"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := render(t, tt.view)
			for _, w := range tt.want {
				if !strings.Contains(html, w) {
					t.Errorf("missing %q", w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(html, w) {
					t.Errorf("unexpected %q", w)
				}
			}
		})
	}
}

func TestMatchWrapperListensForWin(t *testing.T) {
	p0 := models.Player0
	html, err := renderToString(context.Background(), MatchWrapper(models.MatchView{ID: "m", Server: &p0}))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{`sse-connect="/htmx/sse/m"`, `sse-swap="match-won"`, `sse-swap="match-update"`, `sse-swap="match-ended"`} {
		if !strings.Contains(html, want) {
			t.Errorf("wrapper missing %q", want)
		}
	}

	page, err := renderToString(context.Background(), Page(SetupScreen()))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(page, `"htmx:sseMessage"`) || !strings.Contains(page, `evt.target.id === "match-won"`) {
		t.Error("page does not celebrate on the match-won stream event")
	}
}

// openStream connects to the SSE endpoint and returns a reader yielding one event per call.
func openStream(t *testing.T, srv *httptest.Server, matchID string) func() (string, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/htmx/sse/"+matchID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	lines.Buffer(make([]byte, 64*1024), 1024*1024)
	return func() (string, string) {
		t.Helper()
		var event, data string
		for lines.Scan() {
			line := lines.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && event != "":
				return event, data
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return "", ""
	}
}

func TestSSEStream(t *testing.T) {
	mux, svc := newTestMux(t)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	match, _ := svc.StartMatch(models.Config{Player0Name: "A", Player1Name: "B"})
	nextEvent := openStream(t, srv, match.ID)

	if ev, _ := nextEvent(); ev != EventMatchUpdate {
		t.Fatalf("first event = %q", ev)
	}

	post(mux, "/htmx/match/"+match.ID+"/point/0", nil)
	ev, data := nextEvent()
	if ev != EventMatchUpdate || !strings.Contains(data, `<span class="points">1</span>`) {
		t.Fatalf("update event = %q %q", ev, data)
	}

	post(mux, "/htmx/match/"+match.ID+"/exit", nil)
	if ev, _ := nextEvent(); ev != EventMatchEnded {
		t.Fatalf("event after exit = %q", ev)
	}
}

func TestSSEStreamStripsCarriageReturns(t *testing.T) {
	mux, svc := newTestMux(t)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	match, _ := svc.StartMatch(models.Config{Player0Name: "Ana\rBob", Player1Name: "Cy\r\nDee"})
	nextEvent := openStream(t, srv, match.ID)

	ev, data := nextEvent()
	if ev != EventMatchUpdate {
		t.Fatalf("first event = %q", ev)
	}
	if strings.ContainsRune(data, '\r') {
		t.Fatalf("data line carries a carriage return: %q", data)
	}
	for _, want := range []string{"AnaBob", "CyDee", `<div class="court">`} {
		if !strings.Contains(data, want) {
			t.Errorf("data missing %q: %q", want, data)
		}
	}
	if !strings.HasSuffix(data, "</section></div>") {
		t.Errorf("fragment cut short: %q", data)
	}
}

func TestSSEStreamAnnouncesWin(t *testing.T) {
	mux, svc := newTestMux(t)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	match, _ := svc.StartMatch(models.Config{Player0Name: "A", Player1Name: "B"})
	nextEvent := openStream(t, srv, match.ID)
	nextEvent()

	path := "/htmx/match/" + match.ID + "/point/1"
	for i := 0; i < 10; i++ {
		post(mux, path, nil)
		if ev, _ := nextEvent(); ev != EventMatchUpdate {
			t.Fatalf("point %d event = %q", i, ev)
		}
	}

	post(mux, path, nil)
	if ev, data := nextEvent(); ev != EventMatchUpdate || !strings.Contains(data, "WINNER!") {
		t.Fatalf("winning update = %q %q", ev, data)
	}
	if ev, data := nextEvent(); ev != EventMatchWon || data != match.ID {
		t.Fatalf("win event = %q %q", ev, data)
	}
}
