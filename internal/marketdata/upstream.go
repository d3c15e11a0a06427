package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// Upstream is the pluggable historical-data source. The interface is
// intentionally narrow: "symbols in, daily bars out, for a date range" —
// error, retry, and rate-limit handling are the adapter's responsibility.
type Upstream interface {
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// YahooUpstream is the default Upstream, fetching daily bars from Yahoo
// Finance's historical-chart endpoint, modeled on the teacher's
// trader-go/internal/clients/yahoo client (same http.Client with a 30s
// timeout, same retry-with-backoff helper).
type YahooUpstream struct {
	client *http.Client
	log    zerolog.Logger
	// MaxRetries bounds the exponential-backoff retry loop. Every failed
	// attempt is retried (network error, any non-200 status, undecodable
	// or empty response); failures are not classified as transient.
	MaxRetries int
}

// NewYahooUpstream builds a YahooUpstream with sensible defaults.
func NewYahooUpstream(log zerolog.Logger) *YahooUpstream {
	return &YahooUpstream{
		client:     &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("upstream", "yahoo").Logger(),
		MaxRetries: 3,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDaily fetches the daily OHLCV history for symbol across
// [start, end] from Yahoo Finance's chart API, retrying any failed attempt
// with exponential backoff up to MaxRetries times. Upstream failure on a symbol is
// terminal for that symbol: it returns an error, never a partial result.
func (y *YahooUpstream) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	endpoint := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s", url.PathEscape(symbol))
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")

	var lastErr error
	for attempt := 0; attempt <= y.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		bars, err := y.fetchOnce(ctx, endpoint+"?"+q.Encode(), symbol)
		if err == nil {
			return bars, nil
		}
		lastErr = err
		y.log.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt).Msg("upstream fetch failed, retrying")
	}
	return nil, fmt.Errorf("fetch %s from yahoo: %w", symbol, lastErr)
}

func (y *YahooUpstream) fetchOnce(ctx context.Context, u, symbol string) ([]domain.Bar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; hqg-backtester/1.0)")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo returned status %d for %s", resp.StatusCode, symbol)
	}

	var parsed chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode yahoo response for %s: %w", symbol, err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error for %s: %s", symbol, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no data returned for %s", symbol)
	}

	result := parsed.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]domain.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) {
			break
		}
		bar := domain.Bar{
			Time:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   valueAt(quote.Open, i),
			High:   valueAt(quote.High, i),
			Low:    valueAt(quote.Low, i),
			Close:  valueAt(quote.Close, i),
			Volume: valueAt(quote.Volume, i),
		}
		if isNaNBar(bar) {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func valueAt(s []float64, i int) float64 {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}
