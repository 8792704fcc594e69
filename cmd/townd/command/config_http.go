package command

import (
	"fmt"

	"github.com/covey-town/townd/internal/eventbus"
	"github.com/covey-town/townd/internal/httpapi"
	"github.com/covey-town/townd/internal/towns"
	"github.com/pixil98/go-errors"
)

// HTTPConfig configures the registry/subscription HTTP surface.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

func (c *HTTPConfig) validate() error {
	el := errors.NewErrorList()
	if c.Addr == "" {
		el.Add(fmt.Errorf("addr is required"))
	}
	return el.Err()
}

func (c *HTTPConfig) buildServer(store *towns.Store, bus *eventbus.Bus) *httpapi.Server {
	return httpapi.NewServer(c.Addr, store, bus)
}
