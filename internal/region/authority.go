// Package region is the region authority: it answers which named cuboid
// regions exist in a world, which contain a point, and who belongs to them.
// It also holds per-owner selection sessions.
package region

import (
	"errors"

	"github.com/google/uuid"

	"github.com/udisondev/regionvision/internal/model"
)

// ErrNoSelection is returned when an owner has no complete selection.
var ErrNoSelection = errors.New("no complete selection")

// Authority resolves regions. Implementations must be safe for concurrent use;
// queries run off the tick loop.
type Authority interface {
	// RegionAt returns the highest-priority region containing p.
	RegionAt(world string, p model.BlockPos) (model.Region, bool)
	// RegionsAt returns every region containing p.
	RegionsAt(world string, p model.BlockPos) []model.Region
	// RegionByName resolves a region id, case-insensitively. ok is false when
	// the world or the region does not exist.
	RegionByName(world, name string) (model.Region, bool)
	// RegionsNear returns regions whose X/Z footprint intersects the square of
	// the given radius around center.
	RegionsNear(world string, center model.BlockPos, radius int) []model.Region
	// AllRegionIDs returns every region id in the world.
	AllRegionIDs(world string) []string
	// IsMemberOrOwner reports whether owner may build in r.
	IsMemberOrOwner(owner uuid.UUID, r model.Region) bool
}

// Selection is an owner's current cuboid selection.
type Selection struct {
	World string
	Box   model.Box
}

// Selections resolves selection-tool state.
type Selections interface {
	// CurrentSelection returns ErrNoSelection when the selection is incomplete.
	CurrentSelection(owner uuid.UUID) (Selection, error)
}
