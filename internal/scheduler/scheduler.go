// Package scheduler admits backtest requests, bounds their concurrency via
// the orchestrator's semaphore, and exposes poll/cancel semantics over an
// in-memory job queue, a sqlite-backed job store, and a per-request KV
// store. It is the v1 single-process design the spec calls out as
// deliberately shaped so each piece can later be swapped for an external
// store without changing this package's contract, grounded on the
// teacher's internal/queue.Manager + internal/work.Processor split (a queue
// manager that accepts jobs, a single dispatch loop, and per-job processing
// functions) but reworked from a polling ticker-driven job-type registry
// into a blocking FIFO consumer over one job shape.
package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/jobstore"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/metrics"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/orchestrator"
)

// Runner is the orchestrator contract the scheduler depends on.
// internal/orchestrator.Orchestrator satisfies this.
type Runner interface {
	Run(ctx context.Context, req *domain.BacktestRequest) (*orchestrator.Result, error)
}

// Scheduler owns the job queue, the sqlite-backed job store, the KV store,
// and the single background consumer loop that dequeues job IDs and
// dispatches them to the orchestrator.
type Scheduler struct {
	queue  *Queue
	jobs   *jobstore.Store
	kv     *KVStore
	runner Runner
	bench  metrics.BenchmarkProvider
	log    zerolog.Logger
}

// New builds a Scheduler. runner is typically an internal/orchestrator.Orchestrator
// adapted to the Runner interface; bench supplies the ^GSPC series used for
// alpha/beta (may be nil to skip alpha/beta entirely).
func New(runner Runner, jobs *jobstore.Store, bench metrics.BenchmarkProvider, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		queue:  NewQueue(),
		jobs:   jobs,
		kv:     NewKVStore(),
		runner: runner,
		bench:  bench,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Submit generates a job ID, stores req in the KV store, creates a PENDING
// JobRecord, and enqueues the ID. It performs no pipeline work itself —
// submission must return in well under a second regardless of how many
// backtests are already pending.
func (s *Scheduler) Submit(req *domain.BacktestRequest) (string, error) {
	jobID := uuid.NewString()
	now := time.Now().UTC()
	if err := s.jobs.Create(jobID, now); err != nil {
		return "", err
	}
	s.kv.Put(jobID, req)
	s.queue.Enqueue(jobID)
	return jobID, nil
}

// Poll returns the JobRecord for jobID, or nil if unknown.
func (s *Scheduler) Poll(jobID string) (*domain.JobRecord, error) {
	return s.jobs.Get(jobID)
}

// Cancel marks jobID CANCELLED if it is still PENDING, evicting its KV
// entry. Returns the same CancelResult the HTTP layer maps to 200/404/409.
func (s *Scheduler) Cancel(jobID string) (jobstore.CancelResult, error) {
	result, err := s.jobs.Cancel(jobID)
	if err != nil {
		return result, err
	}
	if result == jobstore.CancelOK {
		s.kv.Delete(jobID)
	}
	return result, nil
}

// KVSize reports the number of live KV entries, used by load tests to
// assert the store drains after every submitted job reaches a terminal
// state.
func (s *Scheduler) KVSize() int {
	return s.kv.Len()
}

// Run starts the single-threaded consumer loop. It blocks until ctx is
// cancelled, at which point it closes the queue and returns. Launched
// per-job tasks started before cancellation are not waited on here; callers
// that need a clean shutdown should track their own WaitGroup around
// runJob if that matters for their deployment.
func (s *Scheduler) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.queue.Close()
	}()

	for {
		jobID, ok := s.queue.Dequeue()
		if !ok {
			return
		}
		rec, err := s.jobs.Get(jobID)
		if err != nil {
			s.log.Error().Str("job_id", jobID).Err(err).Msg("failed to load job record")
			continue
		}
		if rec == nil || rec.Status == domain.JobCancelled {
			s.kv.Delete(jobID)
			continue
		}
		go s.runJob(ctx, jobID)
	}
}

// RunSync executes req through the orchestrator and shapes the full
// response without touching the queue, job store, or KV store. It backs
// the optional POST /backtest-sync profiling endpoint; the caller is
// expected to impose its own request-timeout middleware.
func (s *Scheduler) RunSync(ctx context.Context, req *domain.BacktestRequest) (*domain.BacktestResult, error) {
	result, err := s.runner.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, "", req, result)
}

// runJob retrieves the stored request, transitions the record to RUNNING,
// invokes the orchestrator, and records the terminal outcome. The KV entry
// is always deleted on exit, success or failure, per the ownership rule in
// the design document.
func (s *Scheduler) runJob(ctx context.Context, jobID string) {
	defer s.kv.Delete(jobID)

	req := s.kv.Get(jobID)
	if req == nil {
		return
	}
	running, err := s.jobs.SetRunning(jobID, time.Now().UTC())
	if err != nil {
		s.log.Error().Str("job_id", jobID).Err(err).Msg("failed to mark job running")
		return
	}
	if !running {
		// Cancelled between dequeue and pickup.
		return
	}

	result, err := s.runner.Run(ctx, req)
	if err != nil {
		if serr := s.jobs.SetFailed(jobID, classifyError(err), time.Now().UTC()); serr != nil {
			s.log.Error().Str("job_id", jobID).Err(serr).Msg("failed to record job failure")
		}
		s.log.Warn().Str("job_id", jobID).Err(err).Msg("backtest failed")
		return
	}

	response, err := s.buildResponse(ctx, jobID, req, result)
	if err != nil {
		if serr := s.jobs.SetFailed(jobID, classifyError(err), time.Now().UTC()); serr != nil {
			s.log.Error().Str("job_id", jobID).Err(serr).Msg("failed to record job failure")
		}
		s.log.Error().Str("job_id", jobID).Err(err).Msg("metrics computation failed")
		return
	}

	if err := s.jobs.SetCompleted(jobID, response, time.Now().UTC()); err != nil {
		s.log.Error().Str("job_id", jobID).Err(err).Msg("failed to record job completion")
		return
	}
	s.log.Info().Str("job_id", jobID).Msg("backtest job completed")
}

// buildResponse shapes an orchestrator.Result into the full BacktestResult returned to
// clients: metrics, equity stats, candles, and orders. This is the
// "one layer up" step the design document reserves for the caller of the
// orchestrator rather than the orchestrator itself.
func (s *Scheduler) buildResponse(ctx context.Context, jobID string, req *domain.BacktestRequest, result *orchestrator.Result) (*domain.BacktestResult, error) {
	m, eq, err := metrics.Compute(ctx, result.Raw, req.InitialCapital, result.Metadata.Cadence, s.bench)
	if err != nil {
		return nil, err
	}

	candles := make([]domain.ResponseCandle, 0, len(result.Raw.OHLC))
	for ts, c := range result.Raw.OHLC {
		t, perr := time.Parse(time.RFC3339, ts)
		if perr != nil {
			continue
		}
		candles = append(candles, domain.ResponseCandle{
			Time:  t.Unix(),
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: c.Close,
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })

	orders := make([]domain.ResponseOrder, 0, len(result.Raw.Trades))
	for _, tr := range result.Raw.Trades {
		orders = append(orders, domain.ResponseOrder{
			ID:        tr.ID,
			Timestamp: tr.Timestamp,
			Ticker:    tr.Ticker,
			Type:      tr.Type,
			Price:     tr.Price,
			Amount:    tr.Amount,
		})
	}

	return &domain.BacktestResult{
		JobID: jobID,
		Parameters: domain.Parameters{
			Name:           req.Name,
			StartDate:      req.StartDate,
			EndDate:        req.EndDate,
			StartingEquity: req.InitialCapital,
		},
		Metrics:     m,
		EquityStats: eq,
		Candles:     candles,
		Orders:      orders,
	}, nil
}

// classifyError maps a pipeline error into the structured JobError the
// HTTP layer serializes. ValidationError and ExecutionError carry their own
// message list; anything else is an internal error.
func classifyError(err error) *domain.JobError {
	switch e := err.(type) {
	case *domain.ValidationError:
		return &domain.JobError{Kind: "validation", Messages: e.Errors.Messages()}
	case *domain.ExecutionError:
		return &domain.JobError{Kind: "execution", Messages: e.Errors.Messages()}
	default:
		return &domain.JobError{Kind: "internal", Messages: []string{err.Error()}}
	}
}
