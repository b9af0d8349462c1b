// Package visualize runs per-player wireframe visualizations: timed region
// shows and the live selection preview.
//
// Geometry is computed off the tick loop; installation happens on it. Every
// scheduling call mints a generation token and only the call whose token is
// still current may install, so a superseded computation that finishes late
// is dropped silently.
package visualize

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/udisondev/regionvision/internal/geom"
	"github.com/udisondev/regionvision/internal/model"
	"github.com/udisondev/regionvision/internal/region"
	"github.com/udisondev/regionvision/internal/tick"
	"github.com/udisondev/regionvision/internal/world"
)

// DefaultRenderPeriod is the tick period of a visualization render job.
const DefaultRenderPeriod = 10

// Purpose separates independent visualizations of one owner.
type Purpose uint8

const (
	// RegionShow is an explicit show, view or near request. Expires.
	RegionShow Purpose = iota + 1
	// SelectionPreview follows the selection tool. Never expires.
	SelectionPreview
)

func (p Purpose) String() string {
	switch p {
	case RegionShow:
		return "REGION_SHOW"
	case SelectionPreview:
		return "SELECTION_PREVIEW"
	default:
		return fmt.Sprintf("Purpose(%d)", uint8(p))
	}
}

var purposes = [...]Purpose{RegionShow, SelectionPreview}

// Layer is one cuboid drawn in one color.
type Layer struct {
	Box   model.Box
	Color model.Color
}

type key struct {
	owner   uuid.UUID
	purpose Purpose
}

type frame struct {
	points   []r3.Vec
	particle model.Particle
}

type job struct {
	gen    uint64
	world  string // drawn only while the owner is here; "" for anywhere
	render tick.Handle
	expiry tick.Handle // nil for jobs without a duration
}

func (j *job) stop() {
	j.render.Cancel()
	if j.expiry != nil {
		j.expiry.Cancel()
	}
}

// Scheduler is the VisualizationScheduler. Safe for concurrent use; render
// jobs run on the tick loop.
type Scheduler struct {
	clock    tick.Clock
	presence world.Presence
	sink     world.ParticleSink
	period   uint64

	gen     atomic.Uint64
	current sync.Map // key → uint64 generation token
	jobs    sync.Map // key → *job
}

// NewScheduler creates a scheduler rendering every period ticks.
func NewScheduler(clock tick.Clock, presence world.Presence, sink world.ParticleSink, period uint64) *Scheduler {
	if period == 0 {
		period = DefaultRenderPeriod
	}
	return &Scheduler{
		clock:    clock,
		presence: presence,
		sink:     sink,
		period:   period,
	}
}

// Show draws box in color to owner for duration ticks, replacing any region
// show the owner already has.
func (s *Scheduler) Show(owner uuid.UUID, box model.Box, color model.Color, density float64, duration uint64) error {
	return s.ShowLayers(owner, []Layer{{Box: box, Color: color}}, density, duration)
}

// ShowLayers draws several cuboids as one region show. Returns after
// scheduling; the render starts once geometry is ready.
func (s *Scheduler) ShowLayers(owner uuid.UUID, layers []Layer, density float64, duration uint64) error {
	if len(layers) == 0 {
		return fmt.Errorf("%w: nothing to show", model.ErrInvalidParameter)
	}
	layers = append([]Layer(nil), layers...)
	return s.ShowFrom(owner, func() []Layer { return layers }, density, duration)
}

// ShowFrom is ShowLayers with the layers produced by source off the tick
// loop. The show replaces the owner's current one before ShowFrom returns,
// so a Clear or another show issued while source runs wins. An empty result
// installs nothing.
func (s *Scheduler) ShowFrom(owner uuid.UUID, source func() []Layer, density float64, duration uint64) error {
	if err := model.ValidateDensity(density); err != nil {
		return err
	}

	k := key{owner: owner, purpose: RegionShow}
	gen := s.supersede(k)

	s.clock.RunOffTickLoop(func() {
		if !s.isCurrent(k, gen) {
			return
		}
		layers := source()
		if len(layers) == 0 {
			slog.Debug("nothing to show", "owner", owner)
			s.current.CompareAndDelete(k, gen)
			return
		}
		frames := make([]frame, 0, len(layers))
		for _, l := range layers {
			points, err := geom.Cuboid(l.Box, density)
			if err != nil {
				slog.Warn("computing show geometry", "owner", owner, "err", err)
				s.current.CompareAndDelete(k, gen)
				return
			}
			frames = append(frames, frame{
				points:   points,
				particle: model.Particle{Color: l.Color, Size: model.ParticleSizeRegion},
			})
		}
		s.clock.RunOnTickLoop(func() { s.install(k, gen, frames, "", nil, duration) })
	})
	return nil
}

// UpdateSelectionPreview re-reads owner's selection and draws it until
// cleared or replaced. alive is checked every render; while it reports false,
// or while the owner is in another world than the selection, the preview is
// kept but nothing is drawn. An incomplete selection installs nothing and
// drops the previous preview.
func (s *Scheduler) UpdateSelectionPreview(owner uuid.UUID, selections region.Selections, alive func() bool, color model.Color, density float64) error {
	if err := model.ValidateDensity(density); err != nil {
		return err
	}

	k := key{owner: owner, purpose: SelectionPreview}
	gen := s.supersede(k)

	s.clock.RunOffTickLoop(func() {
		sel, err := selections.CurrentSelection(owner)
		if err != nil {
			slog.Debug("no selection to preview", "owner", owner, "err", err)
			s.current.CompareAndDelete(k, gen)
			return
		}
		points, err := geom.Cuboid(sel.Box, density)
		if err != nil {
			slog.Warn("computing selection geometry", "owner", owner, "err", err)
			s.current.CompareAndDelete(k, gen)
			return
		}
		frames := []frame{{
			points:   points,
			particle: model.Particle{Color: color, Size: model.ParticleSizeSelection},
		}}
		s.clock.RunOnTickLoop(func() { s.install(k, gen, frames, sel.World, alive, 0) })
	})
	return nil
}

// Clear cancels owner's job for purpose and invalidates any computation in
// flight. Reports whether a job was running.
func (s *Scheduler) Clear(owner uuid.UUID, purpose Purpose) bool {
	k := key{owner: owner, purpose: purpose}
	s.current.Delete(k)
	v, ok := s.jobs.LoadAndDelete(k)
	if ok {
		v.(*job).stop()
	}
	return ok
}

// ClearAll clears every purpose of owner.
func (s *Scheduler) ClearAll(owner uuid.UUID) int {
	n := 0
	for _, p := range purposes {
		if s.Clear(owner, p) {
			n++
		}
	}
	return n
}

// StopAll cancels every job of every owner.
func (s *Scheduler) StopAll() {
	s.current.Clear()
	s.jobs.Range(func(k, v any) bool {
		if s.jobs.CompareAndDelete(k, v) {
			v.(*job).stop()
		}
		return true
	})
}

// Active reports whether owner has a running job for purpose.
func (s *Scheduler) Active(owner uuid.UUID, purpose Purpose) bool {
	_, ok := s.jobs.Load(key{owner: owner, purpose: purpose})
	return ok
}

// Count returns the number of running jobs.
func (s *Scheduler) Count() int {
	n := 0
	s.jobs.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// supersede mints a token for k and cancels the running job. The token is
// published first so a computation racing with the cancel cannot install.
func (s *Scheduler) supersede(k key) uint64 {
	gen := s.gen.Add(1)
	s.current.Store(k, gen)
	if v, ok := s.jobs.LoadAndDelete(k); ok {
		v.(*job).stop()
	}
	return gen
}

func (s *Scheduler) isCurrent(k key, gen uint64) bool {
	v, ok := s.current.Load(k)
	return ok && v.(uint64) == gen
}

// install runs on the tick loop.
func (s *Scheduler) install(k key, gen uint64, frames []frame, worldName string, alive func() bool, duration uint64) {
	if !s.presence.IsOnline(k.owner) {
		s.current.CompareAndDelete(k, gen)
		return
	}
	if !s.isCurrent(k, gen) {
		return
	}

	j := &job{gen: gen, world: worldName}
	j.render = s.clock.ScheduleRecurring(0, s.period, func() { s.render(k, j, frames, alive) })
	if duration > 0 {
		j.expiry = s.clock.ScheduleOnce(duration, func() { s.retire(k, j) })
	}

	if prev, ok := s.jobs.Swap(k, j); ok {
		prev.(*job).stop()
	}
	// Superseded between the check and the swap.
	if !s.isCurrent(k, gen) {
		s.jobs.CompareAndDelete(k, j)
		j.stop()
		return
	}

	slog.Debug("visualization installed", "owner", k.owner, "purpose", k.purpose, "gen", gen, "duration", duration)
}

// retire stops j if it is still the owner's job for its purpose.
func (s *Scheduler) retire(k key, j *job) {
	if s.jobs.CompareAndDelete(k, j) {
		j.stop()
	}
	s.current.CompareAndDelete(k, j.gen)
}

func (s *Scheduler) render(k key, j *job, frames []frame, alive func() bool) {
	if !s.presence.IsOnline(k.owner) {
		j.stop()
		s.retire(k, j)
		return
	}
	if alive != nil && !alive() {
		return
	}
	if j.world != "" {
		if w, _, ok := s.presence.Locate(k.owner); !ok || w != j.world {
			return
		}
	}
	for _, f := range frames {
		s.sink.SpawnParticles(k.owner, f.points, f.particle)
	}
}
