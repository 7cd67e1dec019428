package ewscore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/khautala/swingmaster/internal/persistence"
)

// Entry-continuation confirmation (range/backtest only): five forward
// trading days after the entry-window open, counting closes above the
// rolling SMA5. Decidable on the fifth forward day; confirmed when at
// least three of five closes hold above the average.
const (
	continuationForwardDays = 5
	continuationMinAbove    = 3
	continuationSMAWindow   = 5
	continuationBackfillCal = 40 // calendar days of pre-entry history for the SMA
)

// Confirmer backfills entry_continuation_confirmed after a range run.
type Confirmer struct {
	states *persistence.StateRepo
	ohlc   *persistence.OHLCReader
}

// NewConfirmer wires the continuation pass.
func NewConfirmer(states *persistence.StateRepo, ohlc *persistence.OHLCReader) *Confirmer {
	return &Confirmer{states: states, ohlc: ohlc}
}

// Run confirms every entry-window episode opened in [dateFrom, dateTo]
// whose decision day has data. Returns the number of confirmations
// written.
func (c *Confirmer) Run(ctx context.Context, dateFrom, dateTo string) (int, error) {
	opens, err := c.states.EntryWindowOpens(ctx, dateFrom, dateTo)
	if err != nil {
		return 0, err
	}
	written := 0
	for _, open := range opens {
		ok, cerr := c.confirmEpisode(ctx, open.Ticker, open.Date)
		if cerr != nil {
			return written, fmt.Errorf("confirm %s entry on %s: %w", open.Ticker, open.Date, cerr)
		}
		if ok {
			written++
		}
	}
	return written, nil
}

func (c *Confirmer) confirmEpisode(ctx context.Context, ticker, entryDate string) (bool, error) {
	backfillFrom, err := shiftDate(entryDate, -continuationBackfillCal)
	if err != nil {
		return false, err
	}
	horizon, err := shiftDate(entryDate, 4*continuationForwardDays)
	if err != nil {
		return false, err
	}
	closes, err := c.ohlc.ClosesAround(ctx, ticker, backfillFrom, horizon)
	if err != nil {
		return false, err
	}

	// Rolling SMA5 over the full ascending series; forward days start
	// strictly after the entry date.
	above := 0
	fwd := 0
	decisionDate := ""
	for i, row := range closes {
		if row.Date <= entryDate {
			continue
		}
		fwd++
		if fwd > continuationForwardDays {
			break
		}
		if i+1 >= continuationSMAWindow {
			sum := 0.0
			for j := i + 1 - continuationSMAWindow; j <= i; j++ {
				sum += closes[j].Close
			}
			if row.Close > sum/float64(continuationSMAWindow) {
				above++
			}
		}
		if fwd == continuationForwardDays {
			decisionDate = row.Date
		}
	}
	if decisionDate == "" {
		// Fewer than five forward days yet; undecidable.
		return false, nil
	}

	confirmed := above >= continuationMinAbove
	if err := c.states.SetContinuationConfirmed(ctx, ticker, decisionDate, entryDate, confirmed); err != nil {
		return false, err
	}
	log.Debug().
		Str("ticker", ticker).
		Str("entry_date", entryDate).
		Str("decision_date", decisionDate).
		Int("above_5", above).
		Bool("confirmed", confirmed).
		Msg("entry continuation decided")
	return true, nil
}

func shiftDate(date string, days int) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", date, err)
	}
	return t.AddDate(0, 0, days).Format("2006-01-02"), nil
}
