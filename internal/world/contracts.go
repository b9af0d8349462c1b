package world

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/udisondev/regionvision/internal/model"
)

// Occupant is a player present in a world.
type Occupant struct {
	ID       uuid.UUID
	Position r3.Vec
}

// Presence answers player-state questions. Tick loop only.
type Presence interface {
	IsOnline(id uuid.UUID) bool
	// Locate returns the player's world and position.
	Locate(id uuid.UUID) (world string, pos r3.Vec, ok bool)
	// Occupants returns the players currently in a world.
	Occupants(world string) []Occupant
}

// ParticleSink is the world render primitive. Tick loop only.
type ParticleSink interface {
	// SpawnParticles draws one particle per point, visible to owner only.
	SpawnParticles(owner uuid.UUID, points []r3.Vec, p model.Particle)
}

// Title is a full-screen title with fade timings.
type Title struct {
	Text    string
	FadeIn  time.Duration
	Stay    time.Duration
	FadeOut time.Duration
}

// BossBar is a bar shown at the top of the screen. ID identifies it for hiding.
type BossBar struct {
	ID       uint64
	Text     string
	Progress float32
	Color    string
	Overlay  string
}

// Messenger delivers notification text to a player. Messages are markup
// strings; rendering the markup is the messenger's job. Tick loop only.
type Messenger interface {
	SendActionBar(owner uuid.UUID, text string)
	ShowTitle(owner uuid.UUID, title Title)
	ShowBossBar(owner uuid.UUID, bar BossBar)
	HideBossBar(owner uuid.UUID, bar BossBar)
}
