package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/keyhole-dev/keyhole/pkg/store"
)

func demoReducer(s store.State, a store.Action) store.State {
	switch a.Kind() {
	case "increment":
		return s.With("counter", s["counter"].(int)+1)
	case "rename":
		name, _ := a.(store.Act).Payload.(string)
		return s.With("name", name)
	default:
		return s
	}
}

func newTestServer(t *testing.T) (*Server, *store.Store, *httptest.Server) {
	t.Helper()
	st, err := store.New(demoReducer, store.State{"counter": 0, "name": "demo"})
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}
	srv := New(st, Config{AllowAnyOrigin: true, EnableMetrics: true})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv, st, ts
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decoding %s: %v", url, err)
	}
}

func TestStateEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t)

	var state map[string]any
	getJSON(t, ts.URL+"/state", &state)
	if state["name"] != "demo" {
		t.Errorf("expected name demo, got %v", state["name"])
	}
	// JSON numbers decode as float64.
	if state["counter"] != float64(0) {
		t.Errorf("expected counter 0, got %v", state["counter"])
	}
}

func TestDispatchEndpoint(t *testing.T) {
	_, st, ts := newTestServer(t)

	body := bytes.NewBufferString(`{"type": "increment"}`)
	resp, err := http.Post(ts.URL+"/dispatch", "application/json", body)
	if err != nil {
		t.Fatalf("POST /dispatch: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /dispatch: status %d", resp.StatusCode)
	}

	var state map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decoding dispatch response: %v", err)
	}
	if state["counter"] != float64(1) {
		t.Errorf("expected counter 1 in response, got %v", state["counter"])
	}
	if got := st.State()["counter"]; got != 1 {
		t.Errorf("expected committed counter 1, got %v", got)
	}
}

func TestDispatchEndpointValidation(t *testing.T) {
	_, _, ts := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing type", `{"payload": 1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/dispatch", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("POST /dispatch: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	_, _, ts := newTestServer(t)

	var health map[string]string
	getJSON(t, ts.URL+"/healthz", &health)
	if health["status"] != "ok" {
		t.Errorf("expected status ok, got %v", health)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected /metrics mounted, got status %d", resp.StatusCode)
	}
}

func TestWebSocketStreamsTransitions(t *testing.T) {
	_, st, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", wsURL, err)
	}
	defer conn.Close()

	if err := st.Dispatch(store.Act{Type: "increment"}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading event: %v", err)
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("unmarshaling event: %v", err)
	}
	if event.Seq != 1 {
		t.Errorf("expected seq 1, got %d", event.Seq)
	}
	if len(event.Changed) != 1 || event.Changed[0] != "counter" {
		t.Errorf("expected changed [counter], got %v", event.Changed)
	}
	if event.State["counter"] != float64(1) {
		t.Errorf("expected state counter 1, got %v", event.State["counter"])
	}
}

func TestChangedKeys(t *testing.T) {
	oldState := store.State{"a": 1, "b": 2, "gone": 3}
	newState := store.State{"a": 1, "b": 5, "added": 4}

	got := changedKeys(oldState, newState)
	sort.Strings(got)
	want := []string{"added", "b", "gone"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

func TestShutdownDetachesFromStore(t *testing.T) {
	st, err := store.New(demoReducer, store.State{"counter": 0, "name": "demo"})
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}
	srv := New(st, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	// Dispatch after shutdown must not touch the detached server.
	seqBefore := srv.seq
	if err := st.Dispatch(store.Act{Type: "increment"}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if srv.seq != seqBefore {
		t.Error("shutdown server must not observe transitions")
	}
}
