package socket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/covey-town/townd/internal/eventbus"
	"github.com/covey-town/townd/internal/town"
	"github.com/covey-town/townd/internal/towns"
	"github.com/gorilla/websocket"
	"github.com/pixil98/go-testutil"
)

func newTestBus(t *testing.T) *eventbus.Bus {
	t.Helper()

	bus, err := eventbus.New(eventbus.WithPort(0))
	if err != nil {
		t.Fatalf("creating bus: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go bus.Start(ctx)

	select {
	case <-bus.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("bus never became ready")
	}
	return bus
}

func newTestTown(t *testing.T) (*towns.Store, *town.TownController, *town.PlayerSession) {
	t.Helper()

	store := towns.NewStore(town.StubVideoTokenSource{})
	ctrl, _, err := store.CreateTown("Testville", true, 10)
	if err != nil {
		t.Fatalf("creating town: %v", err)
	}
	session, _, err := store.JoinTown(context.Background(), ctrl.CoveyTownID, "Alice")
	if err != nil {
		t.Fatalf("joining town: %v", err)
	}
	return store, ctrl, session
}

func wsURL(server *httptest.Server, query url.Values) string {
	u, _ := url.Parse(server.URL)
	u.Scheme = "ws"
	u.RawQuery = query.Encode()
	return u.String()
}

func TestSubscriptionHandler_RejectsUnknownTown(t *testing.T) {
	bus := newTestBus(t)
	store, _, session := newTestTown(t)
	server := httptest.NewServer(NewSubscriptionHandler(store, bus))
	defer server.Close()

	query := url.Values{"townID": {"does-not-exist"}, "sessionToken": {session.SessionToken}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, query), nil)
	if err == nil {
		t.Fatal("expected the dial to fail for an unknown town")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}
}

func TestSubscriptionHandler_RejectsUnknownSession(t *testing.T) {
	bus := newTestBus(t)
	store, ctrl, _ := newTestTown(t)
	server := httptest.NewServer(NewSubscriptionHandler(store, bus))
	defer server.Close()

	query := url.Values{"townID": {ctrl.CoveyTownID}, "sessionToken": {"bogus-token"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, query), nil)
	if err == nil {
		t.Fatal("expected the dial to fail for an unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestSubscriptionHandler_AcceptsAndTearsDownOnDisconnect(t *testing.T) {
	bus := newTestBus(t)
	store, ctrl, session := newTestTown(t)
	server := httptest.NewServer(NewSubscriptionHandler(store, bus))
	defer server.Close()

	query := url.Values{"townID": {ctrl.CoveyTownID}, "sessionToken": {session.SessionToken}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server, query), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	testutil.AssertEqual(t, "status", resp.StatusCode, http.StatusSwitchingProtocols)

	if _, ok := ctrl.GetSession(session.SessionToken); !ok {
		t.Fatal("expected session to be live right after connecting")
	}

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := ctrl.GetSession(session.SessionToken); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session was never destroyed after the socket closed")
}

func TestSubscriptionHandler_TownClosingForcesDisconnect(t *testing.T) {
	bus := newTestBus(t)
	store, ctrl, session := newTestTown(t)
	server := httptest.NewServer(NewSubscriptionHandler(store, bus))
	defer server.Close()

	query := url.Values{"townID": {ctrl.CoveyTownID}, "sessionToken": {session.SessionToken}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, query), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	data, err := encodeEnvelope(EventTownClosing, nil)
	if err != nil {
		t.Fatalf("encoding envelope: %v", err)
	}
	if err := bus.Publish(Subject(ctrl.CoveyTownID), data); err != nil {
		t.Fatalf("publishing townClosing: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := ctrl.GetSession(session.SessionToken); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session was not destroyed after townClosing was published")
}

func TestSubscriptionHandler_TeardownIsIdempotent(t *testing.T) {
	_, ctrl, session := newTestTown(t)

	// DestroySession itself must tolerate being invoked twice, the way
	// serve's sync.Once-guarded teardown relies on: a peer close racing a
	// townClosing envelope must not double-fire OnPlayerDisconnected or
	// return anything but ErrSessionNotFound the second time.
	if err := ctrl.DestroySession(context.Background(), session); err != nil {
		t.Fatalf("first DestroySession: %v", err)
	}
	if err := ctrl.DestroySession(context.Background(), session); err == nil {
		t.Fatal("expected the second DestroySession to report the session missing")
	}
}
