// Package orchestrator wires the pipeline stages — static analysis,
// metadata extraction, market-data fetch, sandboxed execution, output
// validation — into a single Run call, gated by a process-wide concurrency
// cap. It never talks to the job queue or HTTP layer directly; the
// scheduler calls it once per dequeued job.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/analysis"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/metadata"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/validator"
)

// DataProvider is the market-data contract the orchestrator depends on.
// internal/marketdata.Provider satisfies this.
type DataProvider interface {
	GetData(ctx context.Context, symbols []string, start, end time.Time, barSize domain.BarSize) (*domain.MarketFrame, error)
}

// Executor is the sandboxed-execution contract. internal/executor.Executor
// satisfies this.
type Executor interface {
	Execute(ctx context.Context, payload domain.ExecutionPayload) (*domain.RawExecutionResult, error)
}

// Orchestrator sequences analysis -> metadata -> data fetch -> sandboxed
// execution -> output validation, bounded by a process-wide semaphore
// modeled on the teacher's worker-pool admission gate
// (internal/evaluation/workers.Pool), reworked from a goroutine pool into a
// plain buffered-channel semaphore since the orchestrator does not own the
// goroutines that call it — the scheduler does.
type Orchestrator struct {
	provider DataProvider
	executor Executor
	sem      chan struct{}
	log      zerolog.Logger
}

// New builds an Orchestrator whose in-flight backtest count never exceeds
// concurrency.
func New(provider DataProvider, executor Executor, concurrency int, log zerolog.Logger) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Orchestrator{
		provider: provider,
		executor: executor,
		sem:      make(chan struct{}, concurrency),
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// Result bundles the raw execution result together with the metadata the
// pipeline extracted along the way, since the HTTP layer needs the cadence
// to annualize metrics correctly.
type Result struct {
	Raw      *domain.RawExecutionResult
	Metadata domain.StrategyMetadata
}

// Run executes the full pipeline for req. It blocks on the concurrency
// semaphore before doing any work, so callers should not impose their own
// ordering expectations across concurrent Run calls.
func (o *Orchestrator) Run(ctx context.Context, req *domain.BacktestRequest) (*Result, error) {
	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-o.sem }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	mod := analysis.Analyze(req)
	if !req.Errors.Empty() {
		return nil, &domain.ValidationError{Errors: req.Errors}
	}

	meta, err := metadata.Extract(mod)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	frame, err := o.provider.GetData(ctx, meta.Universe, req.StartDate, req.EndDate, meta.Cadence.BarSize)
	if err != nil {
		return nil, domain.NewExecutionError(fmt.Sprintf("market data fetch failed: %v", err))
	}

	payload := buildPayload(req, meta, frame)

	raw, err := o.executor.Execute(ctx, payload)
	if err != nil {
		return nil, err
	}

	if err := validator.Validate(raw); err != nil {
		return nil, err
	}

	o.log.Info().
		Str("name", req.Name).
		Int("universe_size", len(meta.Universe)).
		Int("trades", len(raw.Trades)).
		Msg("backtest completed")

	return &Result{Raw: raw, Metadata: meta}, nil
}

// buildPayload converts the fetched MarketFrame into the column-oriented
// SeriesPayload shape the isolate boundary expects.
func buildPayload(req *domain.BacktestRequest, meta domain.StrategyMetadata, frame *domain.MarketFrame) domain.ExecutionPayload {
	marketData := make(map[string]domain.SeriesPayload, len(frame.Series))
	for symbol, bars := range frame.Series {
		sp := domain.SeriesPayload{
			Date:   make([]string, len(bars)),
			Open:   make([]float64, len(bars)),
			High:   make([]float64, len(bars)),
			Low:    make([]float64, len(bars)),
			Close:  make([]float64, len(bars)),
			Volume: make([]float64, len(bars)),
		}
		for i, b := range bars {
			sp.Date[i] = b.Time.Format(time.RFC3339)
			sp.Open[i] = b.Open
			sp.High[i] = b.High
			sp.Low[i] = b.Low
			sp.Close[i] = b.Close
			sp.Volume[i] = b.Volume
		}
		marketData[symbol] = sp
	}

	return domain.ExecutionPayload{
		StrategyCode:   req.StrategyCode,
		Name:           req.Name,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		InitialCapital: req.InitialCapital,
		Commission:     req.Commission,
		Slippage:       req.Slippage,
		BarSize:        meta.Cadence.BarSize,
		Execution:      meta.Cadence.Execution,
		MarketData:     marketData,
	}
}
