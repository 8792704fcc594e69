// Package driver runs the periodic maintenance sweep shared by every
// town: idle-session detection, which marks idle sessions linkless
// without destroying them. Town mutation
// itself never happens on a tick; the tick loop only calls back into
// each controller's own serialization domain.
package driver

import (
	"context"
	"time"

	"github.com/pixil98/go-log"
)

const (
	// DefaultTickLength matches the teacher's world-tick cadence; town
	// maintenance doesn't need anything tighter.
	DefaultTickLength = time.Second * 2
)

// Ticker is implemented by anything the driver should sweep once per
// tick — in practice, a *towns.Store.
type Ticker interface {
	Tick(context.Context) error
}

// TownDriver drives the maintenance tick for every ticker handed to it.
type TownDriver struct {
	tickLength time.Duration
	tickers    []Ticker
}

// NewTownDriver builds a driver over the given tickers.
func NewTownDriver(tickers []Ticker, opts ...TownDriverOpt) *TownDriver {
	d := &TownDriver{
		tickLength: DefaultTickLength,
		tickers:    tickers,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Start runs the tick loop until ctx is canceled. Satisfies
// github.com/pixil98/go-service's Worker interface. Unlike the
// teacher's MudDriver, a single ticker's error never aborts the loop
// for every other town's maintenance — it's logged and the sweep moves
// on, since one town's store misbehaving shouldn't stop idle sweeps
// everywhere else.
func (d *TownDriver) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.tickLength)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs one maintenance pass over every ticker, logging a summary
// the way the teacher's ZoneManager.Tick logs its zone count, and
// logging (rather than propagating) any individual ticker's error so
// the rest of the sweep still runs.
func (d *TownDriver) Tick(ctx context.Context) {
	logger := log.GetLogger(ctx)
	logger.Infof("driver: sweeping %d ticker(s)", len(d.tickers))

	for i, t := range d.tickers {
		if err := t.Tick(ctx); err != nil {
			logger.WithError(err).Warnf("driver: ticker %d returned an error", i)
		}
	}
}
