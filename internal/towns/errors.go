package towns

import "errors"

// ErrUnknownTown is returned by JoinTown when townID names no
// registered controller (spec §7 ErrorKind AuthFailure at the store
// boundary).
var ErrUnknownTown = errors.New("towns: unknown town")
