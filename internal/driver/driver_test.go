package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

var errBoom = errors.New("boom")

type countingTicker struct {
	count int
	err   error
}

func (c *countingTicker) Tick(context.Context) error {
	c.count++
	return c.err
}

func TestTownDriver_Tick(t *testing.T) {
	a := &countingTicker{}
	b := &countingTicker{}
	d := NewTownDriver([]Ticker{a, b})

	d.Tick(context.Background())

	testutil.AssertEqual(t, "a ticks", a.count, 1)
	testutil.AssertEqual(t, "b ticks", b.count, 1)
}

func TestTownDriver_Tick_OneTickerErrorDoesNotStopTheRest(t *testing.T) {
	failing := &countingTicker{err: errBoom}
	ok := &countingTicker{}
	d := NewTownDriver([]Ticker{failing, ok})

	d.Tick(context.Background())

	testutil.AssertEqual(t, "failing ticks", failing.count, 1)
	testutil.AssertEqual(t, "ok ticks", ok.count, 1)
}

func TestTownDriver_Start_StopsOnContextCancel(t *testing.T) {
	ticker := &countingTicker{}
	d := NewTownDriver([]Ticker{ticker}, WithTickLength(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ticker.count == 0 {
		t.Fatal("expected at least one tick before the context expired")
	}
}
