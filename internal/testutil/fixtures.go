package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/regionvision/internal/model"
	"github.com/udisondev/regionvision/internal/region"
)

// Fixed owner ids for readable test output.
var (
	Alice = uuid.MustParse("00000000-0000-0000-0000-00000000a11c")
	Bob   = uuid.MustParse("00000000-0000-0000-0000-000000000b0b")
)

// Player returns a deterministic player id for n.
func Player(n byte) uuid.UUID {
	var id uuid.UUID
	id[15] = n
	id[6] = 0x40 // version 4
	return id
}

// World is the default world name in fixtures.
const World = "world"

// Spawn is a 10x11x10 block region at the origin, owned by Alice.
var Spawn = model.Region{
	ID:    "spawn",
	World: World,
	Box:   model.NewBox(model.NewBlockPos(0, 60, 0), model.NewBlockPos(9, 70, 9)),
}

// Market overlaps the east side of Spawn.
var Market = model.Region{
	ID:       "market",
	World:    World,
	Box:      model.NewBox(model.NewBlockPos(5, 60, 0), model.NewBlockPos(24, 70, 9)),
	Priority: 5,
}

// NewIndex returns a region index holding Spawn (owner Alice) and Market.
func NewIndex(tb testing.TB) *region.Index {
	tb.Helper()
	x := region.NewIndex()
	require.NoError(tb, x.Define(Spawn, []uuid.UUID{Alice}, nil))
	require.NoError(tb, x.Define(Market, nil, []uuid.UUID{Bob}))
	return x
}

// SampleSettings returns a fully populated settings record.
func SampleSettings(id string) model.RegionSettings {
	return model.RegionSettings{
		RegionID:            model.NormalizeID(id),
		World:               World,
		Color:               model.Color{R: 12, G: 200, B: 34},
		Density:             0.25,
		ViewDistance:        80,
		NotificationType:    model.NotificationTitle,
		NotificationMessage: "<gold>Welcome to " + id,
		ParticlesEnabled:    false,
	}
}
