package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
)

// Config is the top-level process configuration, mirroring the
// teacher's cmd/mud/command/Config: one struct per concern, each with
// its own Validate, aggregated here through an ErrorList so a single
// run reports every misconfiguration instead of the first one.
type Config struct {
	TickInterval string         `json:"tick_interval"`
	HTTP         HTTPConfig     `json:"http"`
	EventBus     EventBusConfig `json:"event_bus"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		el.Add(fmt.Errorf("parsing tick_interval: %w", err))
	} else if d < time.Second {
		el.Add(fmt.Errorf("tick_interval must be at least 1 second"))
	}

	el.Add(c.HTTP.validate())
	el.Add(c.EventBus.validate())

	return el.Err()
}

func (c *Config) tickInterval() time.Duration {
	d, _ := time.ParseDuration(c.TickInterval)
	return d
}
