package ports

import (
	"context"

	"gocure/domain/core"
	"gocure/domain/cure"
)

// FitRunRepository persists fit runs for later audit and reporting. The core
// pipeline never depends on it; persistence is a collaborator concern.
type FitRunRepository interface {
	// Save stores the model's manifest and both coefficient tables.
	Save(ctx context.Context, model *cure.Model) error

	// GetManifest retrieves the stored manifest for a fit run.
	GetManifest(ctx context.Context, fitID core.FitID) (*cure.Manifest, error)

	// GetTables retrieves the stored coefficient tables for a fit run.
	GetTables(ctx context.Context, fitID core.FitID) (survival, cureLogit cure.Table, err error)

	// ListRecent returns the most recent fit manifests, newest first.
	ListRecent(ctx context.Context, limit int) ([]*cure.Manifest, error)
}
