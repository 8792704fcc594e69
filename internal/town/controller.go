// Package town implements the Town Controller: the state machine that
// owns one town's players, sessions and conversation areas, and fans
// out ordered notifications about changes to them.
//
// Grounded on the teacher's internal/game/world.go (WorldState): one
// mutex guarding a handful of maps, accessor methods that take the
// lock for the shortest possible critical section, and external calls
// (there: room.AddPlayer; here: listener dispatch, video-token minting)
// performed outside the lock to avoid deadlocking against a reentrant
// caller. That shape is generalized here from "world of rooms" to
// "town of conversation areas".
package town

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// IdleTimeout is how long a session may go without activity before the
// controller marks it Linkless (spec.md SPEC_FULL supplement, modeled
// on the teacher's PlayerState.Linkless / MarkLinkless).
const IdleTimeout = 5 * time.Minute

// TownController is the single serialization domain for one town. All
// mutating methods take c.mu for their critical section and release it
// before invoking anything that could call back into the controller
// (listener dispatch, video-token minting).
type TownController struct {
	CoveyTownID string

	mu               sync.Mutex
	friendlyName     string
	passwordHash     []byte
	isPubliclyListed bool
	capacity         int

	players    map[string]*Player           // playerID -> player
	sessions   map[string]*PlayerSession    // sessionToken -> session
	areas      map[string]*ConversationArea // label -> area
	playerArea map[string]string            // playerID -> area label, reverse index
	listeners  []TownListener

	lastActivity map[string]time.Time // sessionToken -> last activity
	linkless     map[string]bool      // sessionToken -> linkless

	videoTokens VideoTokenSource
}

// NewTownController creates an empty controller. password is hashed
// immediately; the plaintext is never retained.
func NewTownController(townID, friendlyName, password string, isPubliclyListed bool, capacity int, videoTokens VideoTokenSource) (*TownController, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("town: hashing update password: %w", err)
	}
	if videoTokens == nil {
		videoTokens = StubVideoTokenSource{}
	}
	return &TownController{
		CoveyTownID:      townID,
		friendlyName:     friendlyName,
		passwordHash:     hash,
		isPubliclyListed: isPubliclyListed,
		capacity:         capacity,
		players:          make(map[string]*Player),
		sessions:         make(map[string]*PlayerSession),
		areas:            make(map[string]*ConversationArea),
		playerArea:       make(map[string]string),
		lastActivity:     make(map[string]time.Time),
		linkless:         make(map[string]bool),
		videoTokens:      videoTokens,
	}, nil
}

// FriendlyName, IsPubliclyListed and Capacity are read-only snapshots of
// data-model fields TownsStore reports via getTowns/getControllerForTown.
func (c *TownController) FriendlyName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.friendlyName
}

func (c *TownController) IsPubliclyListed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isPubliclyListed
}

func (c *TownController) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Occupancy returns the current player count.
func (c *TownController) Occupancy() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.players)
}

// UpdateSettings applies a password-gated rename/relist. TownsStore is
// the intended caller; it already checked the password against
// CheckPassword before calling this.
func (c *TownController) UpdateSettings(friendlyName *string, isPubliclyListed *bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if friendlyName != nil {
		c.friendlyName = *friendlyName
	}
	if isPubliclyListed != nil {
		c.isPubliclyListed = *isPubliclyListed
	}
}

// CheckPassword reports whether password matches this town's update
// password. Constant-time via bcrypt; never logs or returns the hash.
func (c *TownController) CheckPassword(password string) bool {
	c.mu.Lock()
	hash := c.passwordHash
	c.mu.Unlock()
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// GetPlayer returns the player registered under id, or (nil, false).
func (c *TownController) GetPlayer(id string) (*Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.players[id]
	return p, ok
}

// GetSession returns the session registered under token, or (nil, false).
func (c *TownController) GetSession(token string) (*PlayerSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[token]
	return s, ok
}

// GetConversationArea returns the live area with the given label.
func (c *TownController) GetConversationArea(label string) (*ConversationArea, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.areas[label]
	return a, ok
}

// Players returns a snapshot of every player currently in the town.
func (c *TownController) Players() []*Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Player, 0, len(c.players))
	for _, p := range c.players {
		out = append(out, p)
	}
	return out
}

// ConversationAreas returns a snapshot of every live area.
func (c *TownController) ConversationAreas() []*ConversationArea {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ConversationArea, 0, len(c.areas))
	for _, a := range c.areas {
		out = append(out, a)
	}
	return out
}

// AddTownListener registers l for town-wide notifications. Adding the
// same listener twice is a no-op (spec §4.1: "idempotent registration").
func (c *TownController) AddTownListener(l TownListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.listeners {
		if existing == l {
			return
		}
	}
	c.listeners = append(c.listeners, l)
}

// RemoveTownListener removes l by identity; a no-op if not registered.
// Safe to call from within a dispatched notification: dispatch always
// works off a snapshot taken before iterating.
func (c *TownController) RemoveTownListener(l TownListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.listeners {
		if existing == l {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

func (c *TownController) snapshotListeners() []TownListener {
	out := make([]TownListener, len(c.listeners))
	copy(out, c.listeners)
	return out
}

// dispatch runs each pending notification in order, best-effort.
func dispatch(ctx context.Context, pending []func()) {
	for _, fn := range pending {
		fn()
	}
}

// AddPlayer mints a session token and video token for player and
// registers both, then notifies OnPlayerJoined exactly once (spec §8
// O2). Video-token acquisition is the controller's only suspension
// point (spec §5): it happens before the lock is taken, so the town's
// serialization domain is free to service other operations while it is
// outstanding, and the player is invisible to every read until commit.
func (c *TownController) AddPlayer(ctx context.Context, player *Player) (*PlayerSession, error) {
	videoToken, err := c.videoTokens.Token(ctx, c.CoveyTownID, player.ID)
	if err != nil {
		return nil, fmt.Errorf("town: minting video token: %w", err)
	}

	session := &PlayerSession{
		SessionToken: uuid.NewString(),
		Player:       player,
		VideoToken:   videoToken,
	}

	c.mu.Lock()
	c.players[player.ID] = player
	c.sessions[session.SessionToken] = session
	c.lastActivity[session.SessionToken] = time.Now()
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	var pending []func()
	for _, l := range listeners {
		l := l
		pending = append(pending, func() { safeCallTownListener(ctx, "OnPlayerJoined", func() { l.OnPlayerJoined(player) }) })
	}
	dispatch(ctx, pending)

	return session, nil
}

// DestroySession removes session's player from the town, evicting them
// from any occupied conversation area first, then fires
// OnPlayerDisconnected.
func (c *TownController) DestroySession(ctx context.Context, session *PlayerSession) error {
	c.mu.Lock()
	if _, ok := c.sessions[session.SessionToken]; !ok {
		c.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(c.sessions, session.SessionToken)
	delete(c.lastActivity, session.SessionToken)
	delete(c.linkless, session.SessionToken)
	delete(c.players, session.Player.ID)

	listeners := c.snapshotListeners()
	var pending []func()
	if label, ok := c.playerArea[session.Player.ID]; ok {
		pending = append(pending, c.removeOccupantLocked(ctx, label, session.Player.ID, listeners)...)
	}
	c.mu.Unlock()

	player := session.Player
	for _, l := range listeners {
		l := l
		pending = append(pending, func() {
			safeCallTownListener(ctx, "OnPlayerDisconnected", func() { l.OnPlayerDisconnected(player) })
		})
	}
	dispatch(ctx, pending)

	return nil
}

// MarkActive resets a session's idle timer and clears Linkless. Called
// on every inbound socket message (spec.md SPEC_FULL supplement).
func (c *TownController) MarkActive(sessionToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[sessionToken]; !ok {
		return
	}
	c.lastActivity[sessionToken] = time.Now()
	delete(c.linkless, sessionToken)
}

// Tick sweeps idle sessions into Linkless state. It never destroys a
// session — spec.md's literal teardown path stays disconnect-driven.
// It only sets the flag IsLinkless reports; event delivery to a
// linkless session's socket is not paused.
func (c *TownController) Tick(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for token, last := range c.lastActivity {
		if now.Sub(last) > IdleTimeout {
			c.linkless[token] = true
		}
	}
	return nil
}

// IsLinkless reports whether a session has been idle past IdleTimeout.
func (c *TownController) IsLinkless(sessionToken string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linkless[sessionToken]
}

// UpdatePlayerLocation is the central state machine (spec §4.1). It
// resolves the player's intended conversation area strictly from
// newLocation.ConversationLabel (never from spatial containment),
// performs any area transition's occupant bookkeeping, and finally
// commits the new location — firing every area event before
// OnPlayerMoved (spec §8 O1).
func (c *TownController) UpdatePlayerLocation(ctx context.Context, player *Player, newLocation UserLocation) error {
	c.mu.Lock()
	if _, ok := c.players[player.ID]; !ok {
		c.mu.Unlock()
		return ErrPlayerNotFound
	}

	listeners := c.snapshotListeners()
	var pending []func()

	currentLabel := c.playerArea[player.ID]
	intendedLabel := ""
	if newLocation.ConversationLabel != "" {
		if _, ok := c.areas[newLocation.ConversationLabel]; ok {
			intendedLabel = newLocation.ConversationLabel
		}
		// A label naming a dead/unknown area means "no area" — the
		// server never falls back to a spatial guess (spec §4.1 step 1,
		// §9 open question).
	}

	if intendedLabel != currentLabel {
		if currentLabel != "" {
			pending = append(pending, c.removeOccupantLocked(ctx, currentLabel, player.ID, listeners)...)
		}
		if intendedLabel != "" {
			pending = append(pending, c.addOccupantLocked(ctx, intendedLabel, player.ID, listeners)...)
		}
	}

	newLocation.ConversationLabel = intendedLabel
	player.Location = newLocation
	c.mu.Unlock()

	for _, l := range listeners {
		l := l
		pending = append(pending, func() {
			safeCallTownListener(ctx, "OnPlayerMoved", func() { l.OnPlayerMoved(player) })
		})
	}
	dispatch(ctx, pending)

	return nil
}

// removeOccupantLocked deletes playerID from the named area's occupant
// list, destroying the area if it becomes empty. Must be called with
// c.mu held; returns the notification closures to run after unlock.
func (c *TownController) removeOccupantLocked(ctx context.Context, label, playerID string, listeners []TownListener) []func() {
	area, ok := c.areas[label]
	if !ok {
		return nil
	}
	delete(c.playerArea, playerID)
	remaining, removed := area.removeOccupant(playerID)
	if !removed {
		return nil
	}

	var pending []func()
	if remaining == 0 {
		delete(c.areas, label)
		for _, l := range listeners {
			l := l
			pending = append(pending, func() {
				safeCallTownListener(ctx, "OnConversationAreaDestroyed", func() { l.OnConversationAreaDestroyed(area) })
			})
		}
		pending = append(pending, func() { area.notifyOccupantsChange(nil) })
	} else {
		for _, l := range listeners {
			l := l
			pending = append(pending, func() {
				safeCallTownListener(ctx, "OnConversationAreaUpdated", func() { l.OnConversationAreaUpdated(area) })
			})
		}
		occupants := area.Occupants()
		pending = append(pending, func() { area.notifyOccupantsChange(occupants) })
	}
	return pending
}

// addOccupantLocked appends playerID to the named area's occupant list.
// Must be called with c.mu held.
func (c *TownController) addOccupantLocked(ctx context.Context, label, playerID string, listeners []TownListener) []func() {
	area, ok := c.areas[label]
	if !ok {
		return nil
	}
	if !area.addOccupant(playerID) {
		return nil
	}
	c.playerArea[playerID] = label

	var pending []func()
	for _, l := range listeners {
		l := l
		pending = append(pending, func() {
			safeCallTownListener(ctx, "OnConversationAreaUpdated", func() { l.OnConversationAreaUpdated(area) })
		})
	}
	occupants := area.Occupants()
	pending = append(pending, func() { area.notifyOccupantsChange(occupants) })
	return pending
}

// AddConversationArea installs area if it's admissible: an active
// topic, a label unused by any live area, and a bounding box that
// doesn't overlap any live area's (spec §4.1, §8 P2/P4). On success it
// enrolls every player already standing strictly inside the box and
// not already in an area, then fires a single OnConversationAreaUpdated
// regardless of whether any enrollment occurred (spec §9 convention).
func (c *TownController) AddConversationArea(ctx context.Context, area *ConversationArea) bool {
	c.mu.Lock()

	if area.Topic() == NoTopic {
		c.mu.Unlock()
		return false
	}
	if _, exists := c.areas[area.Label()]; exists {
		c.mu.Unlock()
		return false
	}
	for _, existing := range c.areas {
		if area.BoundingBox().Overlaps(existing.BoundingBox()) {
			c.mu.Unlock()
			return false
		}
	}

	c.areas[area.Label()] = area
	for _, p := range c.players {
		if _, occupied := c.playerArea[p.ID]; occupied {
			continue
		}
		if area.BoundingBox().Contains(p.Location.X, p.Location.Y) {
			area.addOccupant(p.ID)
			c.playerArea[p.ID] = area.Label()
		}
	}

	listeners := c.snapshotListeners()
	occupants := area.Occupants()
	c.mu.Unlock()

	var pending []func()
	for _, l := range listeners {
		l := l
		pending = append(pending, func() {
			safeCallTownListener(ctx, "OnConversationAreaUpdated", func() { l.OnConversationAreaUpdated(area) })
		})
	}
	pending = append(pending, func() { area.notifyOccupantsChange(occupants) })
	dispatch(ctx, pending)

	return true
}

// AddConversationAreaErr behaves like AddConversationArea but returns
// the specific rejection cause instead of a bare boolean, for callers
// (HTTP handlers, tests) that want to report why.
func (c *TownController) AddConversationAreaErr(ctx context.Context, area *ConversationArea) error {
	c.mu.Lock()
	if area.Topic() == NoTopic {
		c.mu.Unlock()
		return ErrAreaInactiveTopic
	}
	if _, exists := c.areas[area.Label()]; exists {
		c.mu.Unlock()
		return ErrAreaDuplicateLabel
	}
	for _, existing := range c.areas {
		if area.BoundingBox().Overlaps(existing.BoundingBox()) {
			c.mu.Unlock()
			return ErrAreaOverlap
		}
	}
	c.mu.Unlock()

	if !c.AddConversationArea(ctx, area) {
		// Reached only when a concurrent call installed an area with
		// the same label or an overlapping box between the check above
		// and AddConversationArea's own; the specific cause is not
		// re-derived here.
		return ErrAreaRejected
	}
	return nil
}

// DisconnectAllPlayers clears players, sessions and areas and then
// fires OnTownDestroyed to every listener, guaranteeing the town reaches
// zero occupancy (spec §8 P3) without depending on listeners to tear
// themselves down. The store is still responsible for evicting the
// controller itself from its registry.
func (c *TownController) DisconnectAllPlayers(ctx context.Context) {
	c.mu.Lock()
	listeners := c.snapshotListeners()
	c.players = make(map[string]*Player)
	c.sessions = make(map[string]*PlayerSession)
	c.areas = make(map[string]*ConversationArea)
	c.playerArea = make(map[string]string)
	c.lastActivity = make(map[string]time.Time)
	c.linkless = make(map[string]bool)
	c.mu.Unlock()

	var pending []func()
	for _, l := range listeners {
		l := l
		pending = append(pending, func() {
			safeCallTownListener(ctx, "OnTownDestroyed", l.OnTownDestroyed)
		})
	}
	dispatch(ctx, pending)
}
