package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hillwinds/benetl/internal/analytics"
	"github.com/hillwinds/benetl/internal/model"
	"github.com/hillwinds/benetl/internal/store"
)

// stubStore overrides only the read paths the router touches.
type stubStore struct {
	store.Store

	runs   []model.RunMetrics
	gaps   []analytics.Gap
	err    error
	gotLim int
}

func (s *stubStore) ListRunMetrics(_ context.Context, limit int) ([]model.RunMetrics, error) {
	s.gotLim = limit
	return s.runs, s.err
}

func (s *stubStore) Gaps(context.Context) ([]analytics.Gap, error) {
	return s.gaps, s.err
}

func (s *stubStore) Spikes(context.Context) ([]analytics.Spike, error) {
	return nil, s.err
}

func (s *stubStore) Roster(context.Context) ([]analytics.Mismatch, error) {
	return nil, s.err
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, NewRouter(&stubStore{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRuns(t *testing.T) {
	st := &stubStore{runs: []model.RunMetrics{{
		RunID:     "run-1",
		Status:    model.RunStatusComplete,
		RowsRead:  10,
		StartedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}}}

	rec := get(t, NewRouter(st), "/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, st.gotLim)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var runs []model.RunMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
}

func TestRuns_NoLimitParam(t *testing.T) {
	st := &stubStore{}
	rec := get(t, NewRouter(st), "/runs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, st.gotLim)
}

func TestAnalysisGaps(t *testing.T) {
	st := &stubStore{gaps: []analytics.Gap{{
		CompanyEIN: "11-111",
		PlanType:   "medical",
		GapStart:   time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		GapEnd:     time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		GapDays:    120,
	}}}

	rec := get(t, NewRouter(st), "/analysis/gaps")
	require.Equal(t, http.StatusOK, rec.Code)

	var gaps []analytics.Gap
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gaps))
	require.Len(t, gaps, 1)
	assert.Equal(t, 120, gaps[0].GapDays)
}

func TestServeDrainsInFlightRequests(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("done"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- Serve(ctx, &http.Server{Handler: mux}, ln) }()

	var body []byte
	reqErr := make(chan error, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			reqErr <- err
			return
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		reqErr <- err
	}()

	// Stop the server while the request is still being handled; the
	// response must complete rather than be aborted.
	<-started
	cancel()

	require.NoError(t, <-reqErr)
	assert.Equal(t, "done", string(body))
	require.NoError(t, <-serveErr)
}

func TestStoreErrorIs500(t *testing.T) {
	st := &stubStore{err: errors.New("db gone")}
	for _, path := range []string{"/runs", "/analysis/gaps", "/analysis/spikes", "/analysis/roster"} {
		rec := get(t, NewRouter(st), path)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "db gone")
	}
}
