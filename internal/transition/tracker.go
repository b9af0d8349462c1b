// Package transition detects when a player enters a region.
package transition

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/udisondev/regionvision/internal/model"
	"github.com/udisondev/regionvision/internal/region"
)

// Settings looks up the notification policy of a tracked region.
type Settings interface {
	Get(regionID string) (model.RegionSettings, bool)
}

// EnterEvent is emitted once when a player steps into a region with an
// active notification.
type EnterEvent struct {
	Owner    uuid.UUID
	RegionID string
	Type     model.NotificationType
	Message  string
}

type occupancy map[string]struct{}

// Tracker remembers which regions each player was last seen in. Enter-only:
// leaving a region emits nothing.
//
// Calls for one owner must be serial; different owners may be processed
// concurrently.
type Tracker struct {
	authority region.Authority
	settings  Settings

	occupied sync.Map // uuid.UUID → occupancy (never mutated after Store)
}

// NewTracker creates a tracker over authority and the permanent settings.
func NewTracker(authority region.Authority, settings Settings) *Tracker {
	return &Tracker{authority: authority, settings: settings}
}

// OnPositionChanged records owner's new position and returns enter events for
// notifying regions the owner was not in before, sorted by region id.
//
// Queries the authority; callers skip it when the block position is unchanged
// (see BlockChanged).
func (t *Tracker) OnPositionChanged(owner uuid.UUID, world string, pos model.BlockPos) []EnterEvent {
	regions := t.authority.RegionsAt(world, pos)

	var prev occupancy
	if v, ok := t.occupied.Load(owner); ok {
		prev = v.(occupancy)
	}

	if len(regions) == 0 {
		t.occupied.Delete(owner)
		return nil
	}

	next := make(occupancy, len(regions))
	var events []EnterEvent
	for _, r := range regions {
		id := model.NormalizeID(r.ID)
		next[id] = struct{}{}
		if _, was := prev[id]; was {
			continue
		}
		rs, ok := t.settings.Get(id)
		if !ok || !rs.NotificationType.Active() {
			continue
		}
		events = append(events, EnterEvent{
			Owner:    owner,
			RegionID: id,
			Type:     rs.NotificationType,
			Message:  rs.NotificationMessage,
		})
	}
	t.occupied.Store(owner, next)

	slices.SortFunc(events, func(a, b EnterEvent) int { return cmp.Compare(a.RegionID, b.RegionID) })
	return events
}

// Forget drops owner's state, e.g. on disconnect.
func (t *Tracker) Forget(owner uuid.UUID) {
	t.occupied.Delete(owner)
}

// Occupied returns the region ids owner was last seen in, sorted.
func (t *Tracker) Occupied(owner uuid.UUID) []string {
	v, ok := t.occupied.Load(owner)
	if !ok {
		return nil
	}
	set := v.(occupancy)
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Tracked returns the number of owners with a non-empty occupancy.
func (t *Tracker) Tracked() int {
	n := 0
	t.occupied.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// BlockChanged reports whether a move crossed a block boundary.
func BlockChanged(from, to r3.Vec) bool {
	return math.Floor(from.X) != math.Floor(to.X) ||
		math.Floor(from.Y) != math.Floor(to.Y) ||
		math.Floor(from.Z) != math.Floor(to.Z)
}
