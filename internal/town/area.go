package town

import "sync"

// NoTopic is the sentinel topic marking a conversation area as
// pending/inactive; such an area may never be installed (spec §3, §8 P4).
const NoTopic = "NO_TOPIC"

// BoundingBox is an axis-aligned rectangle whose (X, Y) is its center.
// It covers the OPEN rectangle (X-W/2, X+W/2) x (Y-H/2, Y+H/2) —
// boundary points are outside it (spec §3).
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether (x, y) lies strictly inside the open
// rectangle. Points on an edge are not contained.
func (b BoundingBox) Contains(x, y float64) bool {
	halfW, halfH := b.Width/2, b.Height/2
	return x > b.X-halfW && x < b.X+halfW && y > b.Y-halfH && y < b.Y+halfH
}

// Overlaps reports whether b and other's open rectangles intersect.
// Rectangles that only share an edge (or a corner) do NOT overlap,
// since edge points belong to neither open rectangle (spec §8, scenario 2;
// §9 open question).
func (b BoundingBox) Overlaps(other BoundingBox) bool {
	bMinX, bMaxX := b.X-b.Width/2, b.X+b.Width/2
	bMinY, bMaxY := b.Y-b.Height/2, b.Y+b.Height/2
	oMinX, oMaxX := other.X-other.Width/2, other.X+other.Width/2
	oMinY, oMaxY := other.Y-other.Height/2, other.Y+other.Height/2

	return bMinX < oMaxX && oMinX < bMaxX && bMinY < oMaxY && oMinY < bMaxY
}

// AreaListener observes occupancy changes on a single ConversationArea.
// It is deliberately a narrower registry than TownListener (spec §4.2 /
// DESIGN NOTES): a sidebar widget for one area shouldn't have to filter
// global town traffic to find the events it cares about.
type AreaListener interface {
	// OnOccupantsChange is called with the area's current occupant list
	// after any change, or nil when the area has just been destroyed.
	OnOccupantsChange(occupants []string)
}

// ConversationArea is a labelled rectangle inside a town that players
// occupy by location or by explicit client-supplied label. Grounded on
// the teacher's Group type (internal/game/group.go): a small
// mutex-guarded occupant collection with its own listener fan-out,
// generalized from "player group" to "spatial area".
type ConversationArea struct {
	mu sync.Mutex

	label       string
	topic       string
	boundingBox BoundingBox
	occupants   []string // insertion-ordered, no duplicates
	listeners   []AreaListener
}

// NewConversationArea constructs an area with no occupants and no
// listeners. Callers are responsible for topic/label validity checks
// (see TownController.AddConversationArea) before installing it.
func NewConversationArea(label, topic string, box BoundingBox) *ConversationArea {
	return &ConversationArea{
		label:       label,
		topic:       topic,
		boundingBox: box,
	}
}

func (a *ConversationArea) Label() string            { return a.label }
func (a *ConversationArea) Topic() string            { return a.topic }
func (a *ConversationArea) BoundingBox() BoundingBox { return a.boundingBox }


// Occupants returns a snapshot copy of the current occupant ID list.
func (a *ConversationArea) Occupants() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.occupants))
	copy(out, a.occupants)
	return out
}

// addOccupant appends playerID if not already present. Returns false if
// the player was already an occupant (no-op).
func (a *ConversationArea) addOccupant(playerID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range a.occupants {
		if id == playerID {
			return false
		}
	}
	a.occupants = append(a.occupants, playerID)
	return true
}

// removeOccupant deletes playerID from the occupant list. Returns
// (remaining count, removed).
func (a *ConversationArea) removeOccupant(playerID string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, id := range a.occupants {
		if id == playerID {
			a.occupants = append(a.occupants[:i], a.occupants[i+1:]...)
			return len(a.occupants), true
		}
	}
	return len(a.occupants), false
}

// AddAreaListener registers l for occupancy notifications. It is not
// idempotent: adding the same listener twice registers it twice, so it
// receives every event twice (unlike TownController.AddTownListener,
// which ignores a duplicate).
func (a *ConversationArea) AddAreaListener(l AreaListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

// RemoveAreaListener removes l by identity. Safe to call while a
// dispatch triggered by this same listener's callback is in progress:
// notifyOccupantsChange snapshots the listener list before iterating.
func (a *ConversationArea) RemoveAreaListener(l AreaListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.listeners {
		if existing == l {
			a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
			return
		}
	}
}

// notifyOccupantsChange delivers the current occupant snapshot (or nil,
// on destruction) to every registered AreaListener, synchronously and
// in registration order, best-effort per listener.
func (a *ConversationArea) notifyOccupantsChange(occupants []string) {
	a.mu.Lock()
	snapshot := make([]AreaListener, len(a.listeners))
	copy(snapshot, a.listeners)
	a.mu.Unlock()

	for _, l := range snapshot {
		safeCallAreaListener(l, occupants)
	}
}
