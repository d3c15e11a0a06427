package metrics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

type lot struct {
	shares float64
	price  float64
}

// TradeStats FIFO-matches buys against sells per ticker and reports the
// fraction of closed lots that were profitable along with the mean
// percentage win and mean percentage loss, kept separate as spec.md §4.E
// requires.
func TradeStats(trades []domain.Trade) (winRate, avgWin, avgLoss float64, totalOrders int) {
	totalOrders = len(trades)
	open := map[string][]lot{}

	var wins, losses []float64
	for _, tr := range trades {
		switch tr.Type {
		case domain.Buy:
			open[tr.Ticker] = append(open[tr.Ticker], lot{shares: tr.Amount, price: tr.Price})
		case domain.Sell:
			remaining := tr.Amount
			queue := open[tr.Ticker]
			for remaining > 0 && len(queue) > 0 {
				l := &queue[0]
				matched := remaining
				if l.shares < matched {
					matched = l.shares
				}
				if l.price > 0 {
					pct := (tr.Price - l.price) / l.price
					if pct >= 0 {
						wins = append(wins, pct)
					} else {
						losses = append(losses, pct)
					}
				}
				l.shares -= matched
				remaining -= matched
				if l.shares <= 0 {
					queue = queue[1:]
				}
			}
			open[tr.Ticker] = queue
		}
	}

	closedLots := len(wins) + len(losses)
	if closedLots == 0 {
		return 0, 0, 0, totalOrders
	}
	winRate = float64(len(wins)) / float64(closedLots)
	if len(wins) > 0 {
		avgWin = stat.Mean(wins, nil)
	}
	if len(losses) > 0 {
		avgLoss = stat.Mean(losses, nil)
	}
	return winRate, avgWin, avgLoss, totalOrders
}
