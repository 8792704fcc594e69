package socket

import (
	"context"
	"fmt"

	"github.com/covey-town/townd/internal/eventbus"
	"github.com/covey-town/townd/internal/town"
	"github.com/pixil98/go-log"
)

// Subject returns the eventbus subject a town's committed events are
// published to. Every authenticated socket for that town subscribes to
// the same subject — this is the fan-out point of spec §4.1's
// "SubscriptionHandler... installs a bridging listener", implemented
// once per town rather than once per socket (see internal/socket
// package doc).
func Subject(townID string) string {
	return fmt.Sprintf("town.%s.events", townID)
}

// Bridge is the single TownListener a controller is given: it
// translates every controller notification into a wire Envelope and
// publishes it to the town's eventbus subject, exactly the shape of
// the teacher's WorldState.subscriber -> NatsPublisher wiring, applied
// to the fixed TownListener interface instead of a raw byte channel.
type Bridge struct {
	bus    *eventbus.Bus
	townID string
}

// NewBridge builds a Bridge for one town's controller.
func NewBridge(bus *eventbus.Bus, townID string) *Bridge {
	return &Bridge{bus: bus, townID: townID}
}

func (b *Bridge) publish(ctx context.Context, event string, payload any) {
	select {
	case <-b.bus.Ready():
	case <-ctx.Done():
		return
	}

	data, err := encodeEnvelope(event, payload)
	if err != nil {
		log.GetLogger(ctx).Warnf("socket: encoding %s: %v", event, err)
		return
	}
	if err := b.bus.Publish(Subject(b.townID), data); err != nil {
		log.GetLogger(ctx).Warnf("socket: publishing %s: %v", event, err)
	}
}

func (b *Bridge) OnPlayerJoined(p *town.Player) {
	b.publish(context.Background(), EventNewPlayer, p)
}

func (b *Bridge) OnPlayerMoved(p *town.Player) {
	b.publish(context.Background(), EventPlayerMoved, p)
}

func (b *Bridge) OnPlayerDisconnected(p *town.Player) {
	b.publish(context.Background(), EventPlayerDisconnect, p)
}

func (b *Bridge) OnConversationAreaUpdated(a *town.ConversationArea) {
	b.publish(context.Background(), EventConversationUpdated, newAreaDTO(a))
}

func (b *Bridge) OnConversationAreaDestroyed(a *town.ConversationArea) {
	b.publish(context.Background(), EventConversationDestroyed, newAreaDTO(a))
}

func (b *Bridge) OnTownDestroyed() {
	b.publish(context.Background(), EventTownClosing, nil)
}
