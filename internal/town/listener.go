package town

import (
	"context"

	"github.com/pixil98/go-log"
)

// TownListener is the fixed observer interface consumed by controller
// subscribers (in-process UI hooks, socket.Bridge, and tests). It
// mirrors the teacher's small fixed-method observer shapes
// (internal/game/publisher.go's Publisher, internal/combat/events.go's
// OnDeath) rather than a duck-typed callback bag.
//
// Dispatch is synchronous, in registration order, and best-effort: a
// listener that panics is recovered, logged, and does not prevent
// later listeners in the same call from running (spec §4.1 dispatch
// rules, §7 ErrorKind 4).
type TownListener interface {
	OnPlayerJoined(player *Player)
	OnPlayerMoved(player *Player)
	OnPlayerDisconnected(player *Player)
	OnConversationAreaUpdated(area *ConversationArea)
	OnConversationAreaDestroyed(area *ConversationArea)
	OnTownDestroyed()
}

// safeCallTownListener invokes fn, recovering and logging any panic so
// that ListenerException never propagates to the caller or interrupts
// dispatch to the remaining listeners.
func safeCallTownListener(ctx context.Context, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.GetLogger(ctx).Warnf("town listener %s panicked: %v", name, r)
		}
	}()
	fn()
}

func safeCallAreaListener(l AreaListener, occupants []string) {
	defer func() {
		if r := recover(); r != nil {
			log.GetLogger(context.Background()).Warnf("area listener panicked: %v", r)
		}
	}()
	l.OnOccupantsChange(occupants)
}
