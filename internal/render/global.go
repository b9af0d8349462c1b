// Package render draws permanent regions to nearby players.
package render

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/udisondev/regionvision/internal/model"
	"github.com/udisondev/regionvision/internal/tick"
	"github.com/udisondev/regionvision/internal/world"
)

// Default schedule of the global render job, in ticks.
const (
	DefaultDelay  = 20
	DefaultPeriod = 10
)

// Source is the read side of the permanent region store.
type Source interface {
	Range(fn func(model.RegionSettings) bool)
	CachedGeometry(regionID string) ([]r3.Vec, bool)
}

// GlobalRenderer is the single periodic job rendering every permanent region.
// It only reads the store and emits particles.
type GlobalRenderer struct {
	clock    tick.Clock
	source   Source
	presence world.Presence
	sink     world.ParticleSink

	delay  uint64
	period uint64

	mu     sync.Mutex
	handle tick.Handle

	passes    atomic.Uint64
	emissions atomic.Uint64
}

// NewGlobalRenderer creates a stopped renderer.
func NewGlobalRenderer(clock tick.Clock, source Source, presence world.Presence, sink world.ParticleSink, delay, period uint64) *GlobalRenderer {
	if period == 0 {
		period = DefaultPeriod
	}
	return &GlobalRenderer{
		clock:    clock,
		source:   source,
		presence: presence,
		sink:     sink,
		delay:    delay,
		period:   period,
	}
}

// Start schedules the render job. Starting twice is a no-op.
func (g *GlobalRenderer) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handle != nil {
		return
	}
	g.handle = g.clock.ScheduleRecurring(g.delay, g.period, g.Render)
	slog.Info("global renderer started", "delay", g.delay, "period", g.period)
}

// Stop cancels the render job.
func (g *GlobalRenderer) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handle == nil {
		return
	}
	g.handle.Cancel()
	g.handle = nil
	slog.Info("global renderer stopped", "passes", g.passes.Load())
}

// Render runs one pass. Tick loop only.
//
// A player sees a region when closer than its view distance to the first
// point of the wireframe.
func (g *GlobalRenderer) Render() {
	pass := g.passes.Add(1)
	var sent int

	occupants := make(map[string][]world.Occupant)
	g.source.Range(func(rs model.RegionSettings) bool {
		if !rs.ParticlesEnabled {
			return true
		}
		points, ok := g.source.CachedGeometry(rs.RegionID)
		if !ok || len(points) == 0 {
			return true
		}

		players, seen := occupants[rs.World]
		if !seen {
			players = g.presence.Occupants(rs.World)
			occupants[rs.World] = players
		}
		if len(players) == 0 {
			return true
		}

		limit := float64(rs.ViewDistance) * float64(rs.ViewDistance)
		particle := model.Particle{Color: rs.Color, Size: model.ParticleSizeRegion}
		for _, p := range players {
			if r3.Norm2(r3.Sub(p.Position, points[0])) < limit {
				g.sink.SpawnParticles(p.ID, points, particle)
				g.emissions.Add(1)
				sent++
			}
		}
		return true
	})

	if IsDebugEnabled() {
		slog.Debug("global render pass", "pass", pass, "emissions", sent, "worlds", len(occupants))
	}
}

// Passes returns the number of render passes run.
func (g *GlobalRenderer) Passes() uint64 {
	return g.passes.Load()
}

// Emissions returns the number of region renders sent to players.
func (g *GlobalRenderer) Emissions() uint64 {
	return g.emissions.Load()
}
