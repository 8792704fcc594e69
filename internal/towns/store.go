// Package towns implements the process-wide registry of town
// controllers: create/lookup/delete, admin-password gated mutation,
// and the join-town flow that turns a display name into a live
// session. Grounded on the teacher's internal/player/manager.go
// (PlayerManager: an explicitly constructed, mutex-guarded map with
// collaborators injected through the constructor rather than a global
// singleton — spec §4.3's DESIGN NOTES ask for exactly this) and
// internal/zones/manager.go (a small owned collection with its own
// Tick).
package towns

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/covey-town/townd/internal/town"
	"github.com/google/uuid"
)

// Store is the process-wide registry of town controllers. It is a
// single shared resource with its own serialization domain: obtaining
// a controller via GetControllerForTown transfers no ownership, and
// every further mutation must go through that controller's own domain
// (spec §5).
type Store struct {
	mu          sync.Mutex
	controllers map[string]*town.TownController
	order       []string // insertion order, for GetTowns listing

	videoTokens town.VideoTokenSource
}

// NewStore creates an empty registry. videoTokens is the
// VideoTokenSource injected into every controller it creates.
func NewStore(videoTokens town.VideoTokenSource) *Store {
	return &Store{
		controllers: make(map[string]*town.TownController),
		videoTokens: videoTokens,
	}
}

// Listing is one row of GetTowns' result.
type Listing struct {
	TownID           string `json:"coveyTownID"`
	FriendlyName     string `json:"friendlyName"`
	CurrentOccupancy int    `json:"currentOccupancy"`
	MaximumOccupancy int    `json:"maximumOccupancy"`
}

// CreateTown assigns a fresh townID and update password, registers a
// new controller, and returns both the controller and the plaintext
// password — the only moment the password is ever available, since
// TownController stores only its bcrypt hash (spec §4.3 invariant:
// "passwords are never returned over any read operation").
func (s *Store) CreateTown(friendlyName string, isPubliclyListed bool, capacity int) (*town.TownController, string, error) {
	townID := uuid.NewString()
	password, err := randomPassword()
	if err != nil {
		return nil, "", fmt.Errorf("towns: generating update password: %w", err)
	}

	ctrl, err := town.NewTownController(townID, friendlyName, password, isPubliclyListed, capacity, s.videoTokens)
	if err != nil {
		return nil, "", fmt.Errorf("towns: creating controller: %w", err)
	}

	s.mu.Lock()
	s.controllers[townID] = ctrl
	s.order = append(s.order, townID)
	s.mu.Unlock()

	return ctrl, password, nil
}

// GetControllerForTown returns the controller for townID, if any.
func (s *Store) GetControllerForTown(townID string) (*town.TownController, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.controllers[townID]
	return c, ok
}

// GetTowns returns every publicly-listed town, insertion-ordered.
func (s *Store) GetTowns() []Listing {
	s.mu.Lock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	controllers := make(map[string]*town.TownController, len(s.controllers))
	for id, c := range s.controllers {
		controllers[id] = c
	}
	s.mu.Unlock()

	var out []Listing
	for _, id := range ids {
		c, ok := controllers[id]
		if !ok || !c.IsPubliclyListed() {
			continue
		}
		out = append(out, Listing{
			TownID:           id,
			FriendlyName:     c.FriendlyName(),
			CurrentOccupancy: c.Occupancy(),
			MaximumOccupancy: c.Capacity(),
		})
	}
	return out
}

// UpdateTown applies a password-gated rename/relist. Returns false on
// unknown town or wrong password, leaving state untouched.
func (s *Store) UpdateTown(townID, password string, friendlyName *string, isPubliclyListed *bool) bool {
	c, ok := s.GetControllerForTown(townID)
	if !ok || !c.CheckPassword(password) {
		return false
	}
	c.UpdateSettings(friendlyName, isPubliclyListed)
	return true
}

// DeleteTown password-gates eviction: on success it disconnects every
// player in the town and removes the controller from the registry.
func (s *Store) DeleteTown(ctx context.Context, townID, password string) bool {
	c, ok := s.GetControllerForTown(townID)
	if !ok || !c.CheckPassword(password) {
		return false
	}

	c.DisconnectAllPlayers(ctx)

	s.mu.Lock()
	delete(s.controllers, townID)
	for i, id := range s.order {
		if id == townID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	return true
}

// JoinTown is the createSession flow of spec §6: build a fresh player
// under townID and admit it via the controller's AddPlayer.
func (s *Store) JoinTown(ctx context.Context, townID, userName string) (*town.PlayerSession, *town.TownController, error) {
	c, ok := s.GetControllerForTown(townID)
	if !ok {
		return nil, nil, ErrUnknownTown
	}

	player := town.NewPlayer(uuid.NewString(), userName)
	session, err := c.AddPlayer(ctx, player)
	if err != nil {
		return nil, nil, err
	}
	return session, c, nil
}

// Tick sweeps every controller's idle sessions. Satisfies
// internal/driver's Ticker interface. A controller's error does not
// stop the sweep of the others; the first such error is returned.
func (s *Store) Tick(ctx context.Context) error {
	s.mu.Lock()
	controllers := make([]*town.TownController, 0, len(s.controllers))
	for _, c := range s.controllers {
		controllers = append(controllers, c)
	}
	s.mu.Unlock()

	var firstErr error
	for _, c := range controllers {
		if err := c.Tick(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func randomPassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
