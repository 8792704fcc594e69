package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/covey-town/townd/internal/eventbus"
	"github.com/covey-town/townd/internal/towns"
	"github.com/pixil98/go-log"
)

// Server runs the gin router behind an http.Server, grounded on
// codefionn-scriptschnell/internal/web.Server's ListenAndServe/Shutdown
// pair, adapted to the Start(ctx) error blocking-worker shape every
// component in this module uses (see internal/eventbus.Bus.Start,
// internal/driver.TownDriver.Start).
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer builds a Server listening on addr, routing through the
// registry/subscription handlers wired to store and bus.
func NewServer(addr string, store *towns.Store, bus *eventbus.Bus) *Server {
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(store, bus),
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
	}
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully. Satisfies github.com/pixil98/go-service's Worker interface.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.GetLogger(ctx).Infof("httpapi listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("httpapi: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
