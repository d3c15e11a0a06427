package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/jobstore"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/orchestrator"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/scheduler"
)

type fakeRunner struct {
	result *orchestrator.Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, req *domain.BacktestRequest) (*orchestrator.Result, error) {
	return f.result, f.err
}

func successResult() *orchestrator.Result {
	return &orchestrator.Result{
		Raw: &domain.RawExecutionResult{
			EquityCurve: map[string]float64{"2023-01-01T00:00:00Z": 10000},
			FinalValue:  10000,
			BarSize:     domain.BarDaily,
		},
		Metadata: domain.StrategyMetadata{Cadence: domain.DefaultCadence()},
	}
}

func newTestServer(t *testing.T, runner scheduler.Runner, jwksURL string) *Server {
	t.Helper()
	store, err := jobstore.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sched := scheduler.New(runner, store, nil, zerolog.Nop())
	return New(Config{
		Log:            zerolog.Nop(),
		Host:           "127.0.0.1",
		Port:           0,
		MaxRequestTime: time.Second,
		Scheduler:      sched,
		JWKSURL:        jwksURL,
	})
}

func validRequestBody() []byte {
	b, _ := json.Marshal(domain.BacktestRequest{
		StrategyCode:   "class S(Strategy):\n    universe = [\"AAPL\"]\n",
		StartDate:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		InitialCapital: 10000,
	})
	return b
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitAcceptsValidRequest(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{result: successResult()}, "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest/", bytes.NewReader(validRequestBody()))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["job_id"])
}

func TestSubmitRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest/", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsInvalidFields(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, "")
	body, _ := json.Marshal(domain.BacktestRequest{InitialCapital: -1})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// boundaryRequestBody returns a valid request body with one structural field
// overridden, for the 422 boundary cases spec.md §8 names.
func boundaryRequestBody(t *testing.T, mutate func(*domain.BacktestRequest)) []byte {
	t.Helper()
	req := domain.BacktestRequest{
		StrategyCode:   "class S(Strategy):\n    universe = [\"AAPL\"]\n",
		StartDate:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		InitialCapital: 10000,
	}
	mutate(&req)
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return b
}

func TestSubmitRejectsEndDateNotAfterStartDateWith422(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, "")
	body := boundaryRequestBody(t, func(r *domain.BacktestRequest) { r.EndDate = r.StartDate })
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmitRejectsOversizedStrategyCodeWith422(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, "")
	body := boundaryRequestBody(t, func(r *domain.BacktestRequest) {
		r.StrategyCode = string(make([]byte, domain.MaxStrategyCodeBytes+1))
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmitRejectsNonPositiveInitialCapitalWith422(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, "")
	body := boundaryRequestBody(t, func(r *domain.BacktestRequest) { r.InitialCapital = 0 })
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSyncRunRejectsStructuralBoundaryWith422(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, "")
	body := boundaryRequestBody(t, func(r *domain.BacktestRequest) { r.InitialCapital = -1 })
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest-sync", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// TestSyncRunReturns400ForAnalysisDerivedError confirms strategy-code/AST
// failures surfaced by the orchestrator (as opposed to structural request
// fields) still map to 400, not 422, so the two sources remain
// distinguishable on the wire.
func TestSyncRunReturns400ForAnalysisDerivedError(t *testing.T) {
	analysisErr := domain.NewValidationError("disallowed import: os")
	srv := newTestServer(t, &fakeRunner{err: analysisErr}, "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest-sync", bytes.NewReader(validRequestBody()))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPollUnknownJobReturns404(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, "")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/backtest/missing-job", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitThenPollRoundTrips(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{result: successResult()}, "")

	submitReq := httptest.NewRequest(http.MethodPost, "/api/v1/backtest/", bytes.NewReader(validRequestBody()))
	submitRec := httptest.NewRecorder()
	srv.router.ServeHTTP(submitRec, submitReq)
	require.Equal(t, http.StatusAccepted, submitRec.Code)

	var submitted map[string]string
	require.NoError(t, json.Unmarshal(submitRec.Body.Bytes(), &submitted))

	pollReq := httptest.NewRequest(http.MethodGet, "/api/v1/backtest/"+submitted["job_id"], nil)
	pollRec := httptest.NewRecorder()
	srv.router.ServeHTTP(pollRec, pollReq)
	require.Equal(t, http.StatusOK, pollRec.Code)

	var rec domain.JobRecord
	require.NoError(t, json.Unmarshal(pollRec.Body.Bytes(), &rec))
	require.Equal(t, domain.JobPending, rec.Status)
}

func TestCancelPendingJobReturns200(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, "")

	submitReq := httptest.NewRequest(http.MethodPost, "/api/v1/backtest/", bytes.NewReader(validRequestBody()))
	submitRec := httptest.NewRecorder()
	srv.router.ServeHTTP(submitRec, submitReq)
	var submitted map[string]string
	require.NoError(t, json.Unmarshal(submitRec.Body.Bytes(), &submitted))

	cancelReq := httptest.NewRequest(http.MethodDelete, "/api/v1/backtest/"+submitted["job_id"], nil)
	cancelRec := httptest.NewRecorder()
	srv.router.ServeHTTP(cancelRec, cancelReq)
	require.Equal(t, http.StatusOK, cancelRec.Code)
}

func TestCancelUnknownJobReturns404(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, "")
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/backtest/missing", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncRunReturnsShapedResult(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{result: successResult()}, "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest-sync", bytes.NewReader(validRequestBody()))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.BacktestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 10000.0, result.Parameters.StartingEquity)
}

func TestAuthMiddlewareRejectsMissingBearerWhenJWKSConfigured(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, "https://example.invalid/jwks.json")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest/", bytes.NewReader(validRequestBody()))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareNoOpWhenJWKSUnset(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{result: successResult()}, "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtest/", bytes.NewReader(validRequestBody()))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
}
