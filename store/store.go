// Package store persists the persona configuration snapshot.
package store

import (
	"context"

	"github.com/araea/oaibot/persona"
)

// Store loads and saves the full configuration snapshot. Load reports
// ok=false when no snapshot has been written yet, which is not an error.
type Store interface {
	Load(ctx context.Context) (persona.Config, bool, error)
	Save(ctx context.Context, cfg persona.Config) error
}
