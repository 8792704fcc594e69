package eventbus

import "time"

type Opt func(*Bus)

// WithStartTimeout bounds how long Start waits for the embedded server
// to become ready before failing.
func WithStartTimeout(d time.Duration) Opt {
	return func(b *Bus) {
		b.startupTimeout = d
	}
}

// WithHost binds the embedded server to a specific host.
func WithHost(host string) Opt {
	return func(b *Bus) {
		b.host = host
	}
}

// WithPort binds the embedded server to a specific port. Zero (the
// default) picks a random free port.
func WithPort(port int) Opt {
	return func(b *Bus) {
		b.port = port
	}
}
