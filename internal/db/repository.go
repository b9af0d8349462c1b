// Package db persists permanent-region settings. Three backends share one
// contract: a YAML file, an embedded SQLite database and PostgreSQL.
package db

import (
	"context"

	"github.com/udisondev/regionvision/internal/model"
)

// RegionRepository stores one settings record per normalized region id.
type RegionRepository interface {
	// LoadRegions returns every stored record.
	LoadRegions(ctx context.Context) ([]model.RegionSettings, error)
	// SaveRegion inserts or replaces a record.
	SaveRegion(ctx context.Context, s model.RegionSettings) error
	// DeleteRegion removes a record. Deleting a missing record is not an error.
	DeleteRegion(ctx context.Context, regionID string) error
	Close() error
}
