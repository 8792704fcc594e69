package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/covey-town/townd/internal/eventbus"
	"github.com/covey-town/townd/internal/town"
	"github.com/covey-town/townd/internal/towns"
	"github.com/gorilla/websocket"
	"github.com/pixil98/go-log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SubscriptionHandler upgrades an authenticated request into a
// long-lived socket subscription: it validates the (townID,
// sessionToken) pair against the store, subscribes the connection to
// that town's eventbus subject, and relays inbound playerMovement
// frames back into the controller. Grounded on the teacher's
// internal/player/player.go Play loop (authenticate once, then run two
// pumps for the life of the connection) and
// internal/listener/manager.go's AcceptConnection (accept, authenticate,
// hand off).
type SubscriptionHandler struct {
	store *towns.Store
	bus   *eventbus.Bus
}

// NewSubscriptionHandler builds a handler bound to store and bus.
func NewSubscriptionHandler(store *towns.Store, bus *eventbus.Bus) *SubscriptionHandler {
	return &SubscriptionHandler{store: store, bus: bus}
}

// ServeHTTP implements the "/subscribe" endpoint of spec §6: query
// parameters townID and sessionToken must name a live session before
// the connection is upgraded.
func (h *SubscriptionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	townID := r.URL.Query().Get("townID")
	sessionToken := r.URL.Query().Get("sessionToken")

	ctrl, ok := h.store.GetControllerForTown(townID)
	if !ok {
		http.Error(w, "unknown town", http.StatusNotFound)
		return
	}
	session, ok := ctrl.GetSession(sessionToken)
	if !ok {
		http.Error(w, "unknown session", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.GetLogger(ctx).Warnf("socket: upgrade failed: %v", err)
		return
	}

	h.serve(ctx, conn, ctrl, session)
}

func (h *SubscriptionHandler) serve(ctx context.Context, conn *websocket.Conn, ctrl *town.TownController, session *town.PlayerSession) {
	<-h.bus.Ready()

	var client *Client
	var unsubscribe func()
	var closeOnce sync.Once

	teardown := func() {
		closeOnce.Do(func() {
			if unsubscribe != nil {
				unsubscribe()
			}
			_ = ctrl.DestroySession(ctx, session)
		})
	}

	client = NewClient(conn,
		func(envelope Envelope) {
			ctrl.MarkActive(session.SessionToken)
			h.handleInbound(ctx, ctrl, session, envelope)
		},
		teardown,
	)

	// The bus delivers every committed event for this town, including the
	// townClosing envelope Bridge.OnTownDestroyed publishes when the town is
	// deleted. client.Send alone would just relay those bytes to the
	// browser and leave the connection and this subscription open forever,
	// so townClosing is intercepted here: it still gets forwarded, but it
	// also forces the same teardown a peer-initiated close would run and
	// closes the connection so ReadPump/WritePump exit.
	unsub, err := h.bus.Subscribe(Subject(ctrl.CoveyTownID), func(data []byte) {
		client.Send(data)

		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return
		}
		if envelope.Event == EventTownClosing {
			teardown()
			client.Close()
			conn.Close()
		}
	})
	if err != nil {
		log.GetLogger(ctx).Warnf("socket: subscribing to town events: %v", err)
		conn.Close()
		return
	}
	unsubscribe = unsub

	go client.WritePump()
	go client.ReadPump()
}

func (h *SubscriptionHandler) handleInbound(ctx context.Context, ctrl *town.TownController, session *town.PlayerSession, envelope Envelope) {
	switch envelope.Event {
	case EventPlayerMovement:
		var loc town.UserLocation
		if err := json.Unmarshal(envelope.Payload, &loc); err != nil {
			log.GetLogger(ctx).Warnf("socket: malformed playerMovement payload: %v", err)
			return
		}
		if err := ctrl.UpdatePlayerLocation(ctx, session.Player, loc); err != nil {
			log.GetLogger(ctx).Warnf("socket: updating player location: %v", err)
		}
	default:
		log.GetLogger(ctx).Warnf("socket: unknown inbound event %q", envelope.Event)
	}
}
