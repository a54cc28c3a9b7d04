package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartevo/internal/model"
	"chartevo/internal/storage"
)

type fakeSource struct {
	mu      sync.Mutex
	runID   string
	gen     int
	pending []model.GenerationStats
}

func (f *fakeSource) RunID() string { return f.runID }

func (f *fakeSource) Generation() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

func (f *fakeSource) push(stats model.GenerationStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, stats)
	f.gen = stats.Generation + 1
}

func (f *fakeSource) DrainStats() []model.GenerationStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *fakeSource, *httptest.Server) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Init(ctx))
	run := model.RunRecord{VersionedRecord: storage.CurrentVersion(), ID: "run-1", PopulationSize: 10, Workers: 2, Seed: 3, Format: "3-2x5-4"}
	require.NoError(t, store.SaveRun(ctx, run))
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendGeneration(ctx, "run-1", model.GenerationStats{Generation: i, MaxFitness: float64(i)}))
	}

	source := &fakeSource{runID: "run-1", gen: 3}
	s, err := New(store, source, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Hub().Close()
		ts.Close()
	})
	return s, source, ts
}

func getJSON(t *testing.T, url string) (int, envelope) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestNewRequiresStoreAndSource(t *testing.T) {
	_, err := New(nil, &fakeSource{})
	assert.Error(t, err)
	_, err = New(storage.NewMemoryStore(), nil)
	assert.Error(t, err)
	_, err = New(storage.NewMemoryStore(), &fakeSource{}, WithStatsInterval(0))
	assert.Error(t, err)
}

func TestAddrUsesOptions(t *testing.T) {
	s, err := New(storage.NewMemoryStore(), &fakeSource{}, WithHost("127.0.0.1"), WithPort(9090))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", s.Addr())
}

func TestHealth(t *testing.T) {
	_, _, ts := newTestServer(t)
	status, body := getJSON(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, status)

	var data struct {
		RunID      string `json:"run_id"`
		Generation int    `json:"generation"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, "run-1", data.RunID)
	assert.Equal(t, 3, data.Generation)
}

func TestRunsAndStats(t *testing.T) {
	_, _, ts := newTestServer(t)

	status, body := getJSON(t, ts.URL+"/runs")
	require.Equal(t, http.StatusOK, status)
	var runs []model.RunRecord
	require.NoError(t, json.Unmarshal(body.Data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)

	status, body = getJSON(t, ts.URL+"/stats")
	require.Equal(t, http.StatusOK, status)
	var history runHistory
	require.NoError(t, json.Unmarshal(body.Data, &history))
	assert.Equal(t, "run-1", history.Run.ID)
	require.Len(t, history.Generations, 3)
	assert.Equal(t, 2.0, history.Generations[2].MaxFitness)

	status, body = getJSON(t, ts.URL+"/stats?run=missing")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, http.StatusNotFound, body.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "chartevo_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(4)

	_, _, ts := newTestServer(t, WithMetrics(reg, "/metrics"))
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "chartevo_test_total 4")
}

func TestMetricsDisabledWithoutGatherer(t *testing.T) {
	_, _, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamPushesDrainedStats(t *testing.T) {
	s, source, ts := newTestServer(t)
	conn := dial(t, ts)
	require.Eventually(t, func() bool { return s.Hub().Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, s.Flush())
	source.push(model.GenerationStats{Generation: 3, MaxFitness: 5, Trades: 7})
	source.push(model.GenerationStats{Generation: 4, MaxFitness: 6})
	assert.Equal(t, 2, s.Flush())

	for _, want := range []int{3, 4} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg streamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "run-1", msg.RunID)
		assert.Equal(t, want, msg.Generation)
	}
}

func TestBroadcastLoopFlushesOnTick(t *testing.T) {
	s, source, ts := newTestServer(t, WithStatsInterval(5*time.Millisecond))
	conn := dial(t, ts)
	require.Eventually(t, func() bool { return s.Hub().Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Broadcast(ctx) }()
	source.push(model.GenerationStats{Generation: 9})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg streamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, 9, msg.Generation)

	cancel()
	require.NoError(t, <-done)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	s, _, ts := newTestServer(t)
	conn := dial(t, ts)
	require.Eventually(t, func() bool { return s.Hub().Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	s.Hub().Close()
	assert.Equal(t, 0, s.Hub().Len())
	assert.Equal(t, 0, s.Hub().Broadcast([]byte("late")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s, err := New(storage.NewMemoryStore(), &fakeSource{}, WithHost("127.0.0.1"), WithPort(0))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
