package region

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/regionvision/internal/model"
)

func makeRegion(id string, priority int, min, max model.BlockPos) model.Region {
	return model.Region{
		ID:       id,
		World:    "world",
		Box:      model.NewBox(min, max),
		Priority: priority,
	}
}

func newTestIndex(t *testing.T, regions ...model.Region) *Index {
	t.Helper()
	x := NewIndex()
	for _, r := range regions {
		require.NoError(t, x.Define(r, nil, nil))
	}
	return x
}

func TestIndex_RegionsAt(t *testing.T) {
	// Квадрат 0..100 пересекается с 50..150.
	town := makeRegion("Town", 0, model.NewBlockPos(0, 0, 0), model.NewBlockPos(100, 255, 100))
	arena := makeRegion("arena", 10, model.NewBlockPos(50, 0, 50), model.NewBlockPos(150, 255, 150))
	x := newTestIndex(t, town, arena)

	regions := x.RegionsAt("world", model.NewBlockPos(75, 64, 75))
	require.Len(t, regions, 2, "point in overlap should match both regions")
	assert.Equal(t, "arena", regions[0].ID)
	assert.Equal(t, "town", regions[1].ID, "ids are normalized")

	regions = x.RegionsAt("world", model.NewBlockPos(10, 64, 10))
	require.Len(t, regions, 1)
	assert.Equal(t, "town", regions[0].ID)

	assert.Empty(t, x.RegionsAt("world", model.NewBlockPos(500, 64, 500)))
	assert.Empty(t, x.RegionsAt("nether", model.NewBlockPos(10, 64, 10)))
}

func TestIndex_RegionAtPicksHighestPriority(t *testing.T) {
	town := makeRegion("town", 0, model.NewBlockPos(0, 0, 0), model.NewBlockPos(100, 255, 100))
	arena := makeRegion("arena", 10, model.NewBlockPos(50, 0, 50), model.NewBlockPos(150, 255, 150))
	x := newTestIndex(t, town, arena)

	r, ok := x.RegionAt("world", model.NewBlockPos(75, 64, 75))
	require.True(t, ok)
	assert.Equal(t, "arena", r.ID)

	_, ok = x.RegionAt("world", model.NewBlockPos(-75, 64, 75))
	assert.False(t, ok)
}

func TestIndex_NegativeCoordinates(t *testing.T) {
	r := makeRegion("south", 0, model.NewBlockPos(-130, 0, -130), model.NewBlockPos(-1, 100, -1))
	x := newTestIndex(t, r)

	assert.Len(t, x.RegionsAt("world", model.NewBlockPos(-1, 50, -1)), 1)
	assert.Len(t, x.RegionsAt("world", model.NewBlockPos(-130, 50, -65)), 1)
	assert.Empty(t, x.RegionsAt("world", model.NewBlockPos(0, 50, -1)))
}

func TestIndex_WideRegion(t *testing.T) {
	global := makeRegion("global", -1,
		model.NewBlockPos(-1_000_000, -64, -1_000_000),
		model.NewBlockPos(1_000_000, 320, 1_000_000))
	x := newTestIndex(t, global)

	assert.Len(t, x.RegionsAt("world", model.NewBlockPos(123456, 0, -98765)), 1)
	assert.True(t, x.Remove("world", "GLOBAL"))
	assert.Empty(t, x.RegionsAt("world", model.NewBlockPos(123456, 0, -98765)))
}

func TestIndex_RedefineMovesRegion(t *testing.T) {
	x := newTestIndex(t, makeRegion("plot", 0, model.NewBlockPos(0, 0, 0), model.NewBlockPos(10, 10, 10)))
	require.NoError(t, x.Define(makeRegion("PLOT", 0, model.NewBlockPos(500, 0, 500), model.NewBlockPos(510, 10, 510)), nil, nil))

	assert.Empty(t, x.RegionsAt("world", model.NewBlockPos(5, 5, 5)))
	assert.Len(t, x.RegionsAt("world", model.NewBlockPos(505, 5, 505)), 1)
	assert.Equal(t, 1, x.Count())
}

func TestIndex_RegionByNameAndIDs(t *testing.T) {
	x := newTestIndex(t,
		makeRegion("Spawn", 0, model.NewBlockPos(0, 0, 0), model.NewBlockPos(10, 10, 10)),
		makeRegion("market", 0, model.NewBlockPos(20, 0, 20), model.NewBlockPos(30, 10, 30)),
	)

	r, ok := x.RegionByName("world", "SPAWN")
	require.True(t, ok)
	assert.Equal(t, "spawn", r.ID)

	_, ok = x.RegionByName("world", "missing")
	assert.False(t, ok)
	_, ok = x.RegionByName("nether", "spawn")
	assert.False(t, ok)

	assert.Equal(t, []string{"market", "spawn"}, x.AllRegionIDs("world"))

	x.UnloadWorld("world")
	_, ok = x.RegionByName("world", "spawn")
	assert.False(t, ok, "unloaded world resolves nothing")
}

func TestIndex_RegionsNearIgnoresHeight(t *testing.T) {
	x := newTestIndex(t,
		makeRegion("sky", 0, model.NewBlockPos(0, 300, 0), model.NewBlockPos(10, 310, 10)),
		makeRegion("far", 0, model.NewBlockPos(200, 0, 200), model.NewBlockPos(210, 10, 210)),
	)

	near := x.RegionsNear("world", model.NewBlockPos(20, 64, 20), 15)
	require.Len(t, near, 1)
	assert.Equal(t, "sky", near[0].ID)
}

func TestIndex_IsMemberOrOwner(t *testing.T) {
	owner, member, stranger := uuid.New(), uuid.New(), uuid.New()
	x := NewIndex()
	r := makeRegion("home", 0, model.NewBlockPos(0, 0, 0), model.NewBlockPos(5, 5, 5))
	require.NoError(t, x.Define(r, []uuid.UUID{owner}, []uuid.UUID{member}))

	r, _ = x.RegionByName("world", "home")
	assert.True(t, x.IsMemberOrOwner(owner, r))
	assert.True(t, x.IsMemberOrOwner(member, r))
	assert.False(t, x.IsMemberOrOwner(stranger, r))
}

func TestIndex_DefineRejectsEmptyID(t *testing.T) {
	x := NewIndex()
	assert.Error(t, x.Define(model.Region{ID: "  ", World: "world"}, nil, nil))
	assert.Error(t, x.Define(model.Region{ID: "a"}, nil, nil))
}

func TestIndex_LoadFile(t *testing.T) {
	owner := uuid.New()
	path := filepath.Join(t.TempDir(), "regions.yaml")
	content := `worlds:
  world:
    - id: Spawn
      min: [0, 60, 0]
      max: [31, 90, 31]
      priority: 10
      owners: ["` + owner.String() + `"]
  nether:
    - id: fortress
      min: [-10, 30, -10]
      max: [10, 60, 10]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	x := NewIndex()
	n, err := x.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	spawn, ok := x.RegionByName("world", "spawn")
	require.True(t, ok)
	assert.Equal(t, 10, spawn.Priority)
	assert.True(t, x.IsMemberOrOwner(owner, spawn))

	n, err = NewIndex().LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessions_CurrentSelection(t *testing.T) {
	s := NewSessions()
	owner := uuid.New()

	_, err := s.CurrentSelection(owner)
	assert.ErrorIs(t, err, ErrNoSelection)

	s.SetPos1(owner, "world", model.NewBlockPos(10, 64, 10))
	_, err = s.CurrentSelection(owner)
	assert.ErrorIs(t, err, ErrNoSelection, "one corner is incomplete")

	s.SetPos2(owner, "world", model.NewBlockPos(10, 64, 10))
	_, err = s.CurrentSelection(owner)
	assert.ErrorIs(t, err, ErrNoSelection, "single block selection is too small")

	s.SetPos2(owner, "world", model.NewBlockPos(0, 70, 20))
	sel, err := s.CurrentSelection(owner)
	require.NoError(t, err)
	assert.Equal(t, "world", sel.World)
	assert.Equal(t, model.NewBox(model.NewBlockPos(0, 64, 10), model.NewBlockPos(10, 70, 20)), sel.Box)

	s.SetPos1(owner, "nether", model.NewBlockPos(0, 0, 0))
	_, err = s.CurrentSelection(owner)
	assert.ErrorIs(t, err, ErrNoSelection, "switching worlds drops the other corner")

	s.Clear(owner)
	_, err = s.CurrentSelection(owner)
	assert.ErrorIs(t, err, ErrNoSelection)
}
