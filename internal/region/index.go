package region

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/udisondev/regionvision/internal/model"
)

const (
	gridSize = 64 // blocks per grid cell on X and Z

	// Regions spanning more cells than this skip the grid and are always
	// tested (global or world-sized regions).
	maxGridCells = 4096
)

type gridKey struct {
	gx, gz int
}

type entry struct {
	region  model.Region
	owners  map[uuid.UUID]struct{}
	members map[uuid.UUID]struct{}
}

type worldIndex struct {
	byID map[string]*entry
	grid map[gridKey][]*entry
	wide []*entry
}

// Index is an in-memory Authority with a grid spatial index per world.
// Safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	worlds map[string]*worldIndex
}

var _ Authority = (*Index)(nil)

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{worlds: make(map[string]*worldIndex)}
}

// Define adds or replaces a region. The id is normalized.
func (x *Index) Define(r model.Region, owners, members []uuid.UUID) error {
	r.ID = model.NormalizeID(r.ID)
	if r.ID == "" {
		return fmt.Errorf("define region: empty id")
	}
	if r.World == "" {
		return fmt.Errorf("define region %q: empty world", r.ID)
	}
	r.Box = model.NewBox(r.Box.Min, r.Box.Max)

	e := &entry{
		region:  r,
		owners:  toSet(owners),
		members: toSet(members),
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	w := x.worlds[r.World]
	if w == nil {
		w = &worldIndex{
			byID: make(map[string]*entry),
			grid: make(map[gridKey][]*entry),
		}
		x.worlds[r.World] = w
	}
	if old := w.byID[r.ID]; old != nil {
		w.unlink(old)
	}
	w.byID[r.ID] = e
	w.link(e)

	slog.Debug("region defined", "world", r.World, "region", r.ID, "priority", r.Priority)
	return nil
}

// Remove deletes a region. It reports whether the region existed.
func (x *Index) Remove(world, id string) bool {
	id = model.NormalizeID(id)

	x.mu.Lock()
	defer x.mu.Unlock()

	w := x.worlds[world]
	if w == nil {
		return false
	}
	e := w.byID[id]
	if e == nil {
		return false
	}
	delete(w.byID, id)
	w.unlink(e)
	return true
}

// UnloadWorld drops every region of a world.
func (x *Index) UnloadWorld(world string) {
	x.mu.Lock()
	delete(x.worlds, world)
	x.mu.Unlock()
}

// RegionAt implements Authority. Ties on priority go to the lowest id.
func (x *Index) RegionAt(world string, p model.BlockPos) (model.Region, bool) {
	regions := x.RegionsAt(world, p)
	if len(regions) == 0 {
		return model.Region{}, false
	}
	best := regions[0]
	for _, r := range regions[1:] {
		if r.Priority > best.Priority {
			best = r
		}
	}
	return best, true
}

// RegionsAt implements Authority. Results are sorted by id.
func (x *Index) RegionsAt(world string, p model.BlockPos) []model.Region {
	x.mu.RLock()
	defer x.mu.RUnlock()

	w := x.worlds[world]
	if w == nil {
		return nil
	}

	var result []model.Region
	key := gridKey{gx: floorDiv(p.X, gridSize), gz: floorDiv(p.Z, gridSize)}
	for _, e := range w.grid[key] {
		if e.region.Box.Contains(p) {
			result = append(result, e.region)
		}
	}
	for _, e := range w.wide {
		if e.region.Box.Contains(p) {
			result = append(result, e.region)
		}
	}
	sortByID(result)
	return result
}

// RegionByName implements Authority.
func (x *Index) RegionByName(world, name string) (model.Region, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	w := x.worlds[world]
	if w == nil {
		return model.Region{}, false
	}
	e := w.byID[model.NormalizeID(name)]
	if e == nil {
		return model.Region{}, false
	}
	return e.region, true
}

// RegionsNear implements Authority. Height is ignored.
func (x *Index) RegionsNear(world string, center model.BlockPos, radius int) []model.Region {
	lo := center.Add(-radius, -radius, -radius)
	hi := center.Add(radius, radius, radius)

	x.mu.RLock()
	defer x.mu.RUnlock()

	w := x.worlds[world]
	if w == nil {
		return nil
	}

	var result []model.Region
	for _, e := range w.byID {
		if e.region.Box.OverlapsXZ(lo, hi) {
			result = append(result, e.region)
		}
	}
	sortByID(result)
	return result
}

// AllRegionIDs implements Authority. Ids are sorted.
func (x *Index) AllRegionIDs(world string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	w := x.worlds[world]
	if w == nil {
		return nil
	}
	ids := make([]string, 0, len(w.byID))
	for id := range w.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IsMemberOrOwner implements Authority.
func (x *Index) IsMemberOrOwner(owner uuid.UUID, r model.Region) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()

	w := x.worlds[r.World]
	if w == nil {
		return false
	}
	e := w.byID[r.ID]
	if e == nil {
		return false
	}
	if _, ok := e.owners[owner]; ok {
		return true
	}
	_, ok := e.members[owner]
	return ok
}

// Count returns the number of regions across all worlds.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := 0
	for _, w := range x.worlds {
		n += len(w.byID)
	}
	return n
}

func (w *worldIndex) cells(b model.Box) (gxMin, gxMax, gzMin, gzMax int, wide bool) {
	gxMin, gxMax = floorDiv(b.Min.X, gridSize), floorDiv(b.Max.X, gridSize)
	gzMin, gzMax = floorDiv(b.Min.Z, gridSize), floorDiv(b.Max.Z, gridSize)
	n := (gxMax - gxMin + 1) * (gzMax - gzMin + 1)
	return gxMin, gxMax, gzMin, gzMax, n > maxGridCells
}

func (w *worldIndex) link(e *entry) {
	gxMin, gxMax, gzMin, gzMax, wide := w.cells(e.region.Box)
	if wide {
		w.wide = append(w.wide, e)
		return
	}
	for gx := gxMin; gx <= gxMax; gx++ {
		for gz := gzMin; gz <= gzMax; gz++ {
			key := gridKey{gx: gx, gz: gz}
			w.grid[key] = append(w.grid[key], e)
		}
	}
}

func (w *worldIndex) unlink(e *entry) {
	gxMin, gxMax, gzMin, gzMax, wide := w.cells(e.region.Box)
	if wide {
		w.wide = slices.DeleteFunc(w.wide, func(o *entry) bool { return o == e })
		return
	}
	for gx := gxMin; gx <= gxMax; gx++ {
		for gz := gzMin; gz <= gzMax; gz++ {
			key := gridKey{gx: gx, gz: gz}
			cell := slices.DeleteFunc(w.grid[key], func(o *entry) bool { return o == e })
			if len(cell) == 0 {
				delete(w.grid, key)
			} else {
				w.grid[key] = cell
			}
		}
	}
}

// floorDiv divides rounding toward -inf, so negative coordinates land in the right cell.
func floorDiv(a, b int) int {
	d := a / b
	if (a^b) < 0 && d*b != a {
		d--
	}
	return d
}

func sortByID(regions []model.Region) {
	slices.SortFunc(regions, func(a, b model.Region) int { return cmp.Compare(a.ID, b.ID) })
}

func toSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
