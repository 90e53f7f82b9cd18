package monitor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/audiomesh/audiomesh/internal/monitor"
	"github.com/audiomesh/audiomesh/internal/render"
)

// staticSource returns fixed stats.
type staticSource struct{ stats render.Stats }

func (s *staticSource) Stats() render.Stats { return s.stats }

func TestWebSocketStreamsStats(t *testing.T) {
	src := &staticSource{stats: render.Stats{
		BlocksRendered: 42,
		NodeCount:      3,
		SampleRate:     48000,
		Workers:        7,
	}}
	srv := httptest.NewServer(monitor.New("", src).Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	var got render.Stats
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != src.stats {
		t.Fatalf("stats = %+v, want %+v", got, src.stats)
	}
}

func TestMetricsEndpointResponds(t *testing.T) {
	srv := httptest.NewServer(monitor.New("", &staticSource{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", resp.StatusCode)
	}
}
