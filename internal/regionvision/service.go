// Package regionvision wires the visualizer core into one service: player
// commands, world event hooks and permanent region administration.
//
// Command and event methods are called on the tick loop, like the game
// server's own handlers. Permanent region administration may be called from
// any goroutine.
package regionvision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/udisondev/regionvision/internal/config"
	"github.com/udisondev/regionvision/internal/db"
	"github.com/udisondev/regionvision/internal/model"
	"github.com/udisondev/regionvision/internal/notify"
	"github.com/udisondev/regionvision/internal/region"
	"github.com/udisondev/regionvision/internal/render"
	"github.com/udisondev/regionvision/internal/store"
	"github.com/udisondev/regionvision/internal/tick"
	"github.com/udisondev/regionvision/internal/transition"
	"github.com/udisondev/regionvision/internal/visualize"
	"github.com/udisondev/regionvision/internal/world"
)

var (
	// ErrOwnerOffline is returned for commands of players that are not online.
	ErrOwnerOffline = errors.New("player is offline")
	// ErrNoRegion is returned when no region matches a position or name.
	ErrNoRegion = errors.New("no region found")
)

// Deps are the collaborators provided by the host.
type Deps struct {
	Clock      tick.Clock
	Authority  region.Authority
	Selections region.Selections
	Presence   world.Presence
	Sink       world.ParticleSink
	Messenger  world.Messenger
	Repository db.RegionRepository
}

// Service is the visualizer.
type Service struct {
	cfg  config.Config
	deps Deps

	store      *store.Store
	scheduler  *visualize.Scheduler
	tracker    *transition.Tracker
	dispatcher *notify.Dispatcher
	renderer   *render.GlobalRenderer

	selectionOff sync.Map // uuid.UUID → struct{}; preview is on unless present

	closeOnce sync.Once
}

// New builds the service and loads the permanent regions. The global
// renderer starts with Start.
func New(ctx context.Context, cfg config.Config, deps Deps) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, deps.Repository, deps.Authority, deps.Clock)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:        cfg,
		deps:       deps,
		store:      st,
		scheduler:  visualize.NewScheduler(deps.Clock, deps.Presence, deps.Sink, cfg.Visualizer.RenderPeriod),
		tracker:    transition.NewTracker(deps.Authority, st),
		dispatcher: notify.NewDispatcher(deps.Clock, deps.Presence, deps.Messenger),
		renderer: render.NewGlobalRenderer(deps.Clock, st, deps.Presence, deps.Sink,
			cfg.Permanent.RenderDelay, cfg.Permanent.RenderPeriod),
	}
	return s, nil
}

// Start starts the global renderer.
func (s *Service) Start() {
	s.renderer.Start()
}

// Close stops rendering, drops every visualization and closes the repository.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.renderer.Stop()
		s.scheduler.StopAll()
		err = s.deps.Repository.Close()
		slog.Info("regionvision closed")
	})
	return err
}

// Store returns the permanent region store.
func (s *Service) Store() *store.Store { return s.store }

// Scheduler returns the visualization scheduler.
func (s *Service) Scheduler() *visualize.Scheduler { return s.scheduler }

// Renderer returns the global renderer.
func (s *Service) Renderer() *render.GlobalRenderer { return s.renderer }

// Dispatcher returns the notification dispatcher.
func (s *Service) Dispatcher() *notify.Dispatcher { return s.dispatcher }

// ShowAt shows the highest-priority region at the owner's position.
func (s *Service) ShowAt(owner uuid.UUID) (model.Region, error) {
	worldName, pos, err := s.locate(owner)
	if err != nil {
		return model.Region{}, err
	}
	r, ok := s.deps.Authority.RegionAt(worldName, model.BlockOf(pos))
	if !ok {
		return model.Region{}, ErrNoRegion
	}
	return r, s.show(owner, r)
}

// View shows a region of the owner's world by name.
func (s *Service) View(owner uuid.UUID, name string) (model.Region, error) {
	worldName, _, err := s.locate(owner)
	if err != nil {
		return model.Region{}, err
	}
	r, ok := s.deps.Authority.RegionByName(worldName, name)
	if !ok {
		return model.Region{}, fmt.Errorf("%w: %q", ErrNoRegion, name)
	}
	return r, s.show(owner, r)
}

// Near shows every region within radius blocks (X/Z) of the owner as one
// visualization, replacing the owner's current region show at once. Radii
// above the configured maximum are clamped. The region query runs off the
// tick loop.
func (s *Service) Near(owner uuid.UUID, radius int) error {
	if radius <= 0 {
		return fmt.Errorf("%w: radius %d must be > 0", model.ErrInvalidParameter, radius)
	}
	radius = min(radius, s.cfg.Visualizer.MaxNearRadius)

	worldName, pos, err := s.locate(owner)
	if err != nil {
		return err
	}
	center := model.BlockOf(pos)

	return s.scheduler.ShowFrom(owner, func() []visualize.Layer {
		regions := s.deps.Authority.RegionsNear(worldName, center, radius)
		if len(regions) == 0 {
			slog.Debug("no regions near", "owner", owner, "radius", radius)
			return nil
		}
		layers := make([]visualize.Layer, 0, len(regions))
		for _, r := range regions {
			layers = append(layers, visualize.Layer{Box: r.Box, Color: s.colorFor(owner, r)})
		}
		slog.Debug("showing nearby regions", "owner", owner, "count", len(layers))
		return layers
	}, s.cfg.Visualizer.ParticleDensity, s.cfg.Visualizer.DurationTicks(s.cfg.TickRate))
}

// NearDefault is Near with the configured default radius.
func (s *Service) NearDefault(owner uuid.UUID) error {
	return s.Near(owner, s.cfg.Visualizer.NearRadius)
}

// Info describes a region for a player.
type Info struct {
	Region    model.Region
	CanBuild  bool
	Permanent *model.RegionSettings
}

// Info returns the named region, or the region at the owner's position when
// name is empty.
func (s *Service) Info(owner uuid.UUID, name string) (Info, error) {
	worldName, pos, err := s.locate(owner)
	if err != nil {
		return Info{}, err
	}

	var (
		r  model.Region
		ok bool
	)
	if name == "" {
		r, ok = s.deps.Authority.RegionAt(worldName, model.BlockOf(pos))
	} else {
		r, ok = s.deps.Authority.RegionByName(worldName, name)
	}
	if !ok {
		return Info{}, ErrNoRegion
	}

	info := Info{Region: r, CanBuild: s.deps.Authority.IsMemberOrOwner(owner, r)}
	if rs, ok := s.store.Get(r.ID); ok {
		info.Permanent = &rs
	}
	return info, nil
}

// Clear drops every visualization of owner.
func (s *Service) Clear(owner uuid.UUID) int {
	return s.scheduler.ClearAll(owner)
}

// ToggleSelection flips the owner's selection preview switch and returns the
// new state. Turning it off clears the owner's visualizations.
func (s *Service) ToggleSelection(owner uuid.UUID) bool {
	if _, off := s.selectionOff.LoadAndDelete(owner); off {
		return true
	}
	s.selectionOff.Store(owner, struct{}{})
	s.scheduler.ClearAll(owner)
	return false
}

// SelectionEnabled reports the owner's selection preview switch.
func (s *Service) SelectionEnabled(owner uuid.UUID) bool {
	_, off := s.selectionOff.Load(owner)
	return !off
}

// OnWandInteract refreshes the selection preview shortly after the owner
// clicked a block, once the selection tool has applied the click. holding is
// re-checked on every render.
func (s *Service) OnWandInteract(owner uuid.UUID, holding func() bool) {
	if !s.SelectionEnabled(owner) {
		return
	}
	s.deps.Clock.ScheduleOnce(s.cfg.Visualizer.SelectionDelay, func() {
		err := s.scheduler.UpdateSelectionPreview(owner, s.deps.Selections, holding,
			s.cfg.Colors.Selection, s.cfg.Visualizer.ParticleDensity)
		if err != nil {
			slog.Warn("updating selection preview", "owner", owner, "err", err)
		}
	})
}

// OnMove feeds a movement to the enter tracker. Moves within one block are
// ignored. Calls for one owner must be serial.
func (s *Service) OnMove(owner uuid.UUID, fromWorld string, from r3.Vec, toWorld string, to r3.Vec) {
	if fromWorld == toWorld && !transition.BlockChanged(from, to) {
		return
	}
	events := s.tracker.OnPositionChanged(owner, toWorld, model.BlockOf(to))
	if len(events) == 0 {
		return
	}
	s.deps.Clock.RunOnTickLoop(func() {
		for _, e := range events {
			s.dispatcher.Dispatch(e)
		}
	})
}

// OnQuit drops the owner's visualizations and tracker state.
func (s *Service) OnQuit(owner uuid.UUID) {
	s.scheduler.ClearAll(owner)
	s.tracker.Forget(owner)
}

// AddPermanent registers a region of world for permanent rendering.
func (s *Service) AddPermanent(ctx context.Context, worldName, regionID string) (model.RegionSettings, error) {
	rs, err := s.store.Add(ctx, worldName, regionID)
	return rs, tolerate(err)
}

// RemovePermanent stops rendering a region permanently.
func (s *Service) RemovePermanent(ctx context.Context, regionID string) error {
	return tolerate(s.store.Remove(ctx, regionID))
}

// SetColor sets a permanent region's color from RGB components.
func (s *Service) SetColor(ctx context.Context, regionID string, r, g, b int) error {
	c, err := model.NewColor(r, g, b)
	if err != nil {
		return err
	}
	return tolerate(s.store.UpdateColor(ctx, regionID, c))
}

// SetNamedColor sets a permanent region's color from the palette.
func (s *Service) SetNamedColor(ctx context.Context, regionID, name string) (model.Color, error) {
	c, err := model.ColorByName(name)
	if err != nil {
		return model.Color{}, err
	}
	return c, tolerate(s.store.UpdateColor(ctx, regionID, c))
}

// SetDensity sets a permanent region's particle spacing.
func (s *Service) SetDensity(ctx context.Context, regionID string, density float64) error {
	return tolerate(s.store.UpdateDensity(ctx, regionID, density))
}

// SetViewDistance sets how close players must be to see a permanent region.
func (s *Service) SetViewDistance(ctx context.Context, regionID string, distance int) error {
	return tolerate(s.store.UpdateViewDistance(ctx, regionID, distance))
}

// SetNotification sets a permanent region's enter notification. typ is one
// of ACTION_BAR, BOSS_BAR, TITLE or NONE, in any case.
func (s *Service) SetNotification(ctx context.Context, regionID, typ, message string) error {
	t, err := model.ParseNotificationType(typ)
	if err != nil {
		return err
	}
	return tolerate(s.store.UpdateNotification(ctx, regionID, t, message))
}

// SetParticles toggles a permanent region's rendering.
func (s *Service) SetParticles(ctx context.Context, regionID string, enabled bool) error {
	return tolerate(s.store.UpdateParticles(ctx, regionID, enabled))
}

// Reload re-reads the permanent regions from the repository.
func (s *Service) Reload(ctx context.Context) error {
	return s.store.Reload(ctx)
}

func (s *Service) show(owner uuid.UUID, r model.Region) error {
	return s.scheduler.Show(owner, r.Box, s.colorFor(owner, r),
		s.cfg.Visualizer.ParticleDensity, s.cfg.Visualizer.DurationTicks(s.cfg.TickRate))
}

func (s *Service) colorFor(owner uuid.UUID, r model.Region) model.Color {
	if s.deps.Authority.IsMemberOrOwner(owner, r) {
		return s.cfg.Colors.Allowed
	}
	return s.cfg.Colors.Denied
}

func (s *Service) locate(owner uuid.UUID) (string, r3.Vec, error) {
	worldName, pos, ok := s.deps.Presence.Locate(owner)
	if !ok {
		return "", r3.Vec{}, ErrOwnerOffline
	}
	return worldName, pos, nil
}

// tolerate treats a failed write as success; the store has already logged it
// and the in-memory change stays in effect.
func tolerate(err error) error {
	if errors.Is(err, store.ErrPersistence) {
		return nil
	}
	return err
}
