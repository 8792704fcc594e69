package command

import (
	"fmt"
	"time"

	"github.com/covey-town/townd/internal/eventbus"
	"github.com/pixil98/go-errors"
)

// EventBusConfig configures the embedded NATS server that fans town
// events out to socket subscribers, mirroring the teacher's NatsConfig
// (cmd/mud/command/config_nats.go) field for field.
type EventBusConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	StartTimeout string `json:"start_timeout"`
}

func (c *EventBusConfig) validate() error {
	el := errors.NewErrorList()

	if c.StartTimeout != "" {
		if _, err := time.ParseDuration(c.StartTimeout); err != nil {
			el.Add(fmt.Errorf("parsing start_timeout: %w", err))
		}
	}

	return el.Err()
}

func (c *EventBusConfig) buildBus() (*eventbus.Bus, error) {
	var opts []eventbus.Opt
	if c.StartTimeout != "" {
		d, err := time.ParseDuration(c.StartTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing start_timeout: %w", err)
		}
		opts = append(opts, eventbus.WithStartTimeout(d))
	}
	if c.Host != "" {
		opts = append(opts, eventbus.WithHost(c.Host))
	}
	if c.Port != 0 {
		opts = append(opts, eventbus.WithPort(c.Port))
	}

	return eventbus.New(opts...)
}
