package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	handler "github.com/newthinker/enercast/internal/api/handler/api"
	"github.com/newthinker/enercast/internal/api/job"
	"github.com/newthinker/enercast/internal/backtest"
	"github.com/newthinker/enercast/internal/config"
	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/metrics"
	"github.com/newthinker/enercast/internal/notifier"
	"github.com/newthinker/enercast/internal/notifier/webhook"
	"github.com/newthinker/enercast/internal/series"
	"github.com/newthinker/enercast/internal/storage/archive"
)

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *struct{ Code string } `json:"error"`
}

type jobView struct {
	JobID  string          `json:"job_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func wavePrices(n int) []core.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]core.PricePoint, n)
	for i := range points {
		points[i] = core.PricePoint{
			Time:  start.AddDate(0, 0, i),
			Price: 80 + 6*math.Sin(float64(i)/4) + 0.1*float64(i),
		}
	}
	return points
}

type testServer struct {
	srv     *Server
	runner  *handler.Runner
	reg     *metrics.Registry
	reports *archive.Reports
}

func newTestServer(t *testing.T, apiKey string) testServer {
	t.Helper()

	provider := series.NewMemory()
	require.NoError(t, provider.Put(core.CommodityBrent, wavePrices(60)))

	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	reports := archive.NewReports(store, zap.NewNop())

	reg := metrics.NewRegistry()
	defaults := config.Defaults()
	defaults.Backtest.TrainLength = 10
	defaults.Backtest.TestLength = 5
	defaults.Compare.Strategies = map[string]config.StrategyConfig{
		"fast":      {Kind: "momentum", Params: map[string]any{"lookback": 3}},
		"threshold": {Kind: "threshold"},
	}

	runner := &handler.Runner{
		Jobs: job.NewStore(100, time.Hour),
		Backtester: backtest.New(
			backtest.WithProvider(provider),
			backtest.WithRecorder(reg),
		),
		Defaults: defaults.Backtest,
		Compare:  defaults.Compare,
		Reports:  reports,
		Gauge:    reg,
	}

	srv, err := NewServer(Config{Host: "localhost", Port: 0, APIKey: apiKey}, Dependencies{
		Runner:  runner,
		Metrics: reg,
	}, zap.NewNop())
	require.NoError(t, err)
	return testServer{srv: srv, runner: runner, reg: reg, reports: reports}
}

func (ts testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, v))
}

// waitForJob polls until the job reaches a terminal status.
func (ts testServer) waitForJob(t *testing.T, id string) jobView {
	t.Helper()
	var view jobView
	require.Eventually(t, func() bool {
		w := ts.do(t, "GET", "/api/v1/jobs/"+id, nil)
		if w.Code != http.StatusOK {
			return false
		}
		decodeData(t, w, &view)
		return job.Status(view.Status).Finished()
	}, 10*time.Second, 10*time.Millisecond)
	return view
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, "test-key")

	w := ts.do(t, "GET", "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(metrics.RequestIDHeader))
}

func TestServer_NewServerRequiresRunner(t *testing.T) {
	_, err := NewServer(Config{}, Dependencies{}, zap.NewNop())
	assert.Error(t, err)
}

func TestServer_APIAuth(t *testing.T) {
	ts := newTestServer(t, "test-key")

	w := ts.do(t, "GET", "/api/v1/jobs", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("GET", "/api/v1/jobs", nil)
	req.Header.Set("X-API-Key", "test-key")
	w = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code, "metrics stay scrapeable")
}

func TestServer_BacktestInlinePrices(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, "POST", "/api/v1/backtests", map[string]any{
		"commodity": "power",
		"prices":    wavePrices(40),
		"model":     "drift",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var accepted jobView
	decodeData(t, w, &accepted)
	require.NotEmpty(t, accepted.JobID)
	assert.Equal(t, "pending", accepted.Status)

	view := ts.waitForJob(t, accepted.JobID)
	require.Equal(t, "complete", view.Status)

	var res struct {
		RunID       string                   `json:"run_id"`
		Commodity   string                   `json:"commodity"`
		Windows     []backtest.WindowSummary `json:"windows"`
		EquityCurve []float64                `json:"equity_curve"`
		ArchiveKey  string                   `json:"archive_key"`
	}
	require.NoError(t, json.Unmarshal(view.Result, &res))
	assert.Equal(t, "power", res.Commodity)
	assert.Len(t, res.Windows, 6)
	assert.Len(t, res.EquityCurve, 31)
	assert.Equal(t, "runs/"+res.RunID+"/result.json", res.ArchiveKey)

	w = ts.do(t, "GET", "/api/v1/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ids []string
	decodeData(t, w, &ids)
	assert.Equal(t, []string{res.RunID}, ids)

	w = ts.do(t, "GET", "/api/v1/runs/"+res.RunID+"/ledger", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "entry_index,"))
}

func TestServer_BacktestFromProvider(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, "POST", "/api/v1/backtests", map[string]any{"start": "2024-01-11"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted jobView
	decodeData(t, w, &accepted)

	view := ts.waitForJob(t, accepted.JobID)
	require.Equal(t, "complete", view.Status)

	var res struct {
		Commodity string                   `json:"commodity"`
		Windows   []backtest.WindowSummary `json:"windows"`
	}
	require.NoError(t, json.Unmarshal(view.Result, &res))
	assert.Equal(t, "brent", res.Commodity)
	assert.Len(t, res.Windows, 8, "50 points from the 11th day")
}

func TestServer_BacktestUnknownCommodityFails(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, "POST", "/api/v1/backtests", map[string]any{"commodity": "wti"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted jobView
	decodeData(t, w, &accepted)

	view := ts.waitForJob(t, accepted.JobID)
	assert.Equal(t, "failed", view.Status)
	require.NotNil(t, view.Error)
	assert.Equal(t, "NO_DATA", view.Error.Code)
}

func TestServer_BacktestRejectsInvalidConfig(t *testing.T) {
	ts := newTestServer(t, "")

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{"commission", map[string]any{"commission": 2.0}, "CONFIG_INVALID"},
		{"model", map[string]any{"model": "oracle"}, "CONFIG_INVALID"},
		{"strategy", map[string]any{"strategy": "astrology"}, "CONFIG_INVALID"},
		{"date", map[string]any{"start": "yesterday"}, "CONFIG_INVALID"},
		{"unsorted prices", map[string]any{"prices": []core.PricePoint{
			{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Price: 1},
			{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Price: 1},
		}}, "SERIES_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, "POST", "/api/v1/backtests", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var env envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/backtests", strings.NewReader("{"))
	ts.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Compare(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, "POST", "/api/v1/compare", map[string]any{"rank_by": "total_return"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var accepted jobView
	decodeData(t, w, &accepted)

	view := ts.waitForJob(t, accepted.JobID)
	require.Equal(t, "complete", view.Status)

	var res handler.CompareResult
	require.NoError(t, json.Unmarshal(view.Result, &res))
	assert.Equal(t, "total_return", res.RankBy)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "fast", res.Outcomes[0].Name)
	require.Len(t, res.Ranking, 2)
	assert.Equal(t, 1, res.Ranking[0].Rank)
	assert.GreaterOrEqual(t, res.Ranking[0].Metrics.TotalReturn, res.Ranking[1].Metrics.TotalReturn)

	ids, err := ts.reports.Runs(t.Context())
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestServer_CompareRejectsUnknownRanking(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, "POST", "/api/v1/compare", map[string]any{"rank_by": "vibes"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, "POST", "/api/v1/compare", map[string]any{
		"strategies": map[string]any{"bad": map[string]any{"kind": "breakout", "params": map[string]any{"lookback": 0}}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Jobs(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, "GET", "/api/v1/jobs/"+"5b0c1a4e-0000-4000-8000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, "DELETE", "/api/v1/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, "POST", "/api/v1/backtests", map[string]any{"prices": wavePrices(40)})
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted jobView
	decodeData(t, w, &accepted)
	ts.waitForJob(t, accepted.JobID)

	w = ts.do(t, "GET", "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	decodeData(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, accepted.JobID, list[0]["job_id"])
}

func TestServer_Catalog(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, "GET", "/api/v1/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var models struct {
		Models  []string `json:"models"`
		Default string   `json:"default"`
	}
	decodeData(t, w, &models)
	assert.Contains(t, models.Models, "drift")
	assert.Equal(t, "drift", models.Default)

	w = ts.do(t, "GET", "/api/v1/strategies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mean_reversion")
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, "POST", "/api/v1/backtests", map[string]any{"prices": wavePrices(40)})
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted jobView
	decodeData(t, w, &accepted)
	ts.waitForJob(t, accepted.JobID)

	w = ts.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `enercast_backtests_total{status="completed"} 1`)
	assert.Contains(t, body, `path="POST /api/v1/backtests"`)
}

func TestServer_NotifiesOnCompletion(t *testing.T) {
	events := make(chan notifier.Event, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev notifier.Event
		json.NewDecoder(r.Body).Decode(&ev)
		events <- ev
	}))
	defer hook.Close()

	ts := newTestServer(t, "")
	reg := notifier.NewRegistry()
	require.NoError(t, reg.Register(webhook.New(hook.URL, nil)))
	ts.runner.Notifiers = reg

	w := ts.do(t, "POST", "/api/v1/backtests", map[string]any{"prices": wavePrices(40)})
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted jobView
	decodeData(t, w, &accepted)

	select {
	case ev := <-events:
		assert.Equal(t, notifier.EventCompleted, ev.Type)
		assert.Equal(t, accepted.JobID, ev.JobID)
		assert.Len(t, ev.RunIDs, 1)
		assert.NotNil(t, ev.TotalReturn)
	case <-time.After(10 * time.Second):
		t.Fatal("no notification received")
	}
}
