package town

import (
	"context"

	"github.com/google/uuid"
)

// VideoTokenSource mints a capability token scoping one player into one
// town's video-chat session. It is an external collaborator (spec §1);
// no concrete third-party video SDK appears anywhere in this codebase's
// dependency graph, so production deployments are expected to provide
// their own implementation (e.g. wrapping a Twilio/LiveKit/Daily SDK)
// and inject it into TownController.
type VideoTokenSource interface {
	Token(ctx context.Context, townID, playerID string) (string, error)
}

// StubVideoTokenSource mints an opaque, unguessable token with no
// external calls. It exists so the controller and its tests have a
// working default; it grants no real media capability.
type StubVideoTokenSource struct{}

func (StubVideoTokenSource) Token(_ context.Context, _, _ string) (string, error) {
	return uuid.NewString(), nil
}
