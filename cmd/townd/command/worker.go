package command

import (
	"fmt"

	"github.com/covey-town/townd/internal/driver"
	"github.com/covey-town/townd/internal/town"
	"github.com/covey-town/townd/internal/towns"
	"github.com/pixil98/go-service"
)

// BuildWorkers wires the event bus, town registry, HTTP server and
// idle-sweep driver into a WorkerList, mirroring the teacher's
// cmd/mud/command/worker.go (nats server + zone manager + mud driver).
func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	bus, err := cfg.EventBus.buildBus()
	if err != nil {
		return nil, fmt.Errorf("creating event bus: %w", err)
	}

	store := towns.NewStore(town.StubVideoTokenSource{})

	townDriver := driver.NewTownDriver([]driver.Ticker{store}, driver.WithTickLength(cfg.tickInterval()))

	httpServer := cfg.HTTP.buildServer(store, bus)

	return service.WorkerList{
		"eventbus": bus,
		"driver":   townDriver,
		"http":     httpServer,
	}, nil
}
