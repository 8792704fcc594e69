// Package eventbus runs an embedded NATS server that fans committed
// town events out to subscribers. It generalizes the teacher's
// internal/messaging package (an embedded NATS server used there to
// deliver per-player chat/combat text) to a general subject-based
// publish/subscribe bus used by internal/town's controllers to notify
// internal/socket bridges.
package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/pixil98/go-log"
)

// Bus wraps an embedded NATS server plus an internal client connection
// used for both publishing and subscribing.
type Bus struct {
	ns   *server.Server
	conn *nats.Conn

	startupTimeout time.Duration
	host           string
	port           int

	ready chan struct{}
}

// New creates a Bus. The embedded server isn't started until Start runs.
func New(opts ...Opt) (*Bus, error) {
	b := &Bus{
		startupTimeout: 10 * time.Second,
		host:           "127.0.0.1",
		ready:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	port := b.port
	if port == 0 {
		port = server.RANDOM_PORT
	}

	ns, err := server.NewServer(&server.Options{
		Host:   b.host,
		Port:   port,
		NoSigs: true, // the process handles its own signals
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedded nats server: %w", err)
	}
	b.ns = ns

	return b, nil
}

// Start runs the embedded server and blocks until ctx is canceled.
// Satisfies github.com/pixil98/go-service's Worker interface.
func (b *Bus) Start(ctx context.Context) error {
	b.ns.Start()

	if !b.ns.ReadyForConnections(b.startupTimeout) {
		return fmt.Errorf("eventbus: nats server not ready for connections")
	}

	conn, err := nats.Connect(b.clientURL())
	if err != nil {
		return fmt.Errorf("eventbus: connecting internal client: %w", err)
	}
	b.conn = conn
	close(b.ready)

	log.GetLogger(ctx).Infof("eventbus listening on %s", b.ns.Addr())

	<-ctx.Done()
	b.conn.Close()
	b.ns.Shutdown()
	b.ns.WaitForShutdown()

	return nil
}

// Ready returns a channel closed once the internal client connection is
// live. Callers that need to subscribe before Start's caller signals
// readiness some other way should wait on this first.
func (b *Bus) Ready() <-chan struct{} {
	return b.ready
}

// Subscribe registers handler for every message published on subject.
// The returned func removes the subscription; it is safe to call more
// than once.
func (b *Bus) Subscribe(subject string, handler func(data []byte)) (func(), error) {
	if b.conn == nil {
		return nil, fmt.Errorf("eventbus: not started")
	}
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("eventbus: subscribing to %q: %w", subject, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Publish sends data to every subscriber of subject.
func (b *Bus) Publish(subject string, data []byte) error {
	if b.conn == nil {
		return fmt.Errorf("eventbus: not started")
	}
	return b.conn.Publish(subject, data)
}

func (b *Bus) clientURL() string {
	return b.ns.ClientURL()
}
