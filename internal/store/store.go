// Package store holds the permanent regions: their durable settings and a
// lazily recomputed wireframe cache.
//
// Readers (the global renderer, the transition tracker) never lock: settings
// and geometry live in sync.Maps holding immutable values. Writers are
// serialized by a mutex that is never taken on the render path. Geometry is
// recomputed off the tick loop and installed with a single atomic replace, so
// readers see either the old or the complete new sequence.
package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/udisondev/regionvision/internal/db"
	"github.com/udisondev/regionvision/internal/geom"
	"github.com/udisondev/regionvision/internal/model"
)

var (
	// ErrNotPermanent is returned when updating or removing an unknown region.
	ErrNotPermanent = errors.New("region is not permanent")
	// ErrRegionNotFound is returned by Add when the authority cannot resolve the region.
	ErrRegionNotFound = errors.New("region not found")
	// ErrPersistence marks a failed write. The in-memory change has already
	// been applied and stays in effect; durability is best-effort.
	ErrPersistence = errors.New("persisting region settings")
)

// Resolver resolves a region's current bounds. Called off the tick loop.
type Resolver interface {
	RegionByName(world, name string) (model.Region, bool)
}

// Offloader runs work outside the tick loop.
type Offloader interface {
	RunOffTickLoop(fn func())
}

// Store is the PermanentRegionStore.
type Store struct {
	repo     db.RegionRepository
	resolver Resolver
	offload  Offloader

	mu       sync.Mutex // serializes writers
	settings sync.Map   // string → model.RegionSettings
	geometry sync.Map   // string → []r3.Vec (never mutated after Store)
	count    atomic.Int32

	recomputes atomic.Int64 // installed recomputes, for diagnostics
}

// Open creates a store over repo and loads every persisted region. A load
// failure is returned; the caller must not run with a crippled store.
func Open(ctx context.Context, repo db.RegionRepository, resolver Resolver, offload Offloader) (*Store, error) {
	s := &Store{
		repo:     repo,
		resolver: resolver,
		offload:  offload,
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the in-memory state with the repository contents and
// schedules a geometry recompute for every region.
func (s *Store) Load(ctx context.Context) error {
	all, err := s.repo.LoadRegions(ctx)
	if err != nil {
		return fmt.Errorf("loading permanent regions: %w", err)
	}

	loaded := make(map[string]model.RegionSettings, len(all))
	for _, rs := range all {
		rs.RegionID = model.NormalizeID(rs.RegionID)
		if _, dup := loaded[rs.RegionID]; dup {
			slog.Warn("duplicate permanent region record, last one wins", "region", rs.RegionID)
		}
		loaded[rs.RegionID] = rs
	}

	s.mu.Lock()
	s.settings.Clear()
	s.geometry.Clear()
	for id, rs := range loaded {
		s.settings.Store(id, rs)
	}
	s.count.Store(int32(len(loaded)))
	s.mu.Unlock()

	for _, rs := range loaded {
		s.recompute(rs)
	}

	slog.Info("permanent regions loaded", "count", len(loaded))
	return nil
}

// Reload is Load under the name the admin surface uses.
func (s *Store) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

// Add registers a region with default settings (red, density 0.5, view
// distance 50, no notification, particles on), persists it and schedules a
// geometry recompute. Re-adding an existing region resets its settings.
func (s *Store) Add(ctx context.Context, world, regionID string) (model.RegionSettings, error) {
	r, ok := s.resolver.RegionByName(world, regionID)
	if !ok {
		return model.RegionSettings{}, fmt.Errorf("%w: %q in world %q", ErrRegionNotFound, regionID, world)
	}

	rs := model.DefaultRegionSettings(r.ID, world)

	s.mu.Lock()
	if _, loaded := s.settings.Swap(rs.RegionID, rs); !loaded {
		s.count.Add(1)
	}
	s.mu.Unlock()

	err := s.persist(ctx, rs)
	s.recompute(rs)

	slog.Info("permanent region added", "region", rs.RegionID, "world", world)
	return rs, err
}

// Remove deletes a region's settings and cached geometry and persists the deletion.
func (s *Store) Remove(ctx context.Context, regionID string) error {
	id := model.NormalizeID(regionID)

	s.mu.Lock()
	_, existed := s.settings.LoadAndDelete(id)
	s.geometry.Delete(id)
	if existed {
		s.count.Add(-1)
	}
	s.mu.Unlock()

	if !existed {
		return fmt.Errorf("%w: %q", ErrNotPermanent, id)
	}

	if err := s.repo.DeleteRegion(ctx, id); err != nil {
		slog.Warn("permanent region removal not persisted", "region", id, "err", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	slog.Info("permanent region removed", "region", id)
	return nil
}

// UpdateColor sets the particle color.
func (s *Store) UpdateColor(ctx context.Context, regionID string, c model.Color) error {
	_, err := s.update(ctx, regionID, func(rs *model.RegionSettings) { rs.Color = c })
	return err
}

// UpdateDensity sets the sampling step and schedules a geometry recompute.
func (s *Store) UpdateDensity(ctx context.Context, regionID string, density float64) error {
	if err := model.ValidateDensity(density); err != nil {
		return err
	}
	rs, err := s.update(ctx, regionID, func(rs *model.RegionSettings) { rs.Density = density })
	if errors.Is(err, ErrNotPermanent) {
		return err
	}
	s.recompute(rs)
	return err
}

// UpdateViewDistance sets the render distance in blocks.
func (s *Store) UpdateViewDistance(ctx context.Context, regionID string, distance int) error {
	if err := model.ValidateViewDistance(distance); err != nil {
		return err
	}
	_, err := s.update(ctx, regionID, func(rs *model.RegionSettings) { rs.ViewDistance = distance })
	return err
}

// UpdateNotification sets the enter notification type and message.
func (s *Store) UpdateNotification(ctx context.Context, regionID string, t model.NotificationType, message string) error {
	t, err := model.ParseNotificationType(string(t))
	if err != nil {
		return err
	}
	_, err = s.update(ctx, regionID, func(rs *model.RegionSettings) {
		rs.NotificationType = t
		rs.NotificationMessage = message
	})
	return err
}

// UpdateParticles toggles ambient rendering of the region.
func (s *Store) UpdateParticles(ctx context.Context, regionID string, enabled bool) error {
	_, err := s.update(ctx, regionID, func(rs *model.RegionSettings) { rs.ParticlesEnabled = enabled })
	return err
}

// Get returns a copy of a region's settings.
func (s *Store) Get(regionID string) (model.RegionSettings, bool) {
	v, ok := s.settings.Load(model.NormalizeID(regionID))
	if !ok {
		return model.RegionSettings{}, false
	}
	return v.(model.RegionSettings), true
}

// IsPermanent reports whether the region is registered.
func (s *Store) IsPermanent(regionID string) bool {
	_, ok := s.settings.Load(model.NormalizeID(regionID))
	return ok
}

// All returns copies of every region's settings, sorted by id.
func (s *Store) All() []model.RegionSettings {
	result := make([]model.RegionSettings, 0, s.count.Load())
	s.settings.Range(func(_, value any) bool {
		result = append(result, value.(model.RegionSettings))
		return true
	})
	slices.SortFunc(result, func(a, b model.RegionSettings) int { return cmp.Compare(a.RegionID, b.RegionID) })
	return result
}

// Range calls fn for every region without sorting or copying into a slice.
// Used on the render path.
func (s *Store) Range(fn func(model.RegionSettings) bool) {
	s.settings.Range(func(_, value any) bool {
		return fn(value.(model.RegionSettings))
	})
}

// Len returns the number of permanent regions.
func (s *Store) Len() int {
	return int(s.count.Load())
}

// CachedGeometry returns the region's cached wireframe. The slice is shared
// and must not be modified.
func (s *Store) CachedGeometry(regionID string) ([]r3.Vec, bool) {
	v, ok := s.geometry.Load(model.NormalizeID(regionID))
	if !ok {
		return nil, false
	}
	return v.([]r3.Vec), true
}

// Recomputes returns how many geometry recomputes have been installed.
func (s *Store) Recomputes() int64 {
	return s.recomputes.Load()
}

// update applies fn to a copy of the settings, publishes the copy and persists it.
func (s *Store) update(ctx context.Context, regionID string, fn func(*model.RegionSettings)) (model.RegionSettings, error) {
	id := model.NormalizeID(regionID)

	s.mu.Lock()
	v, ok := s.settings.Load(id)
	if !ok {
		s.mu.Unlock()
		return model.RegionSettings{}, fmt.Errorf("%w: %q", ErrNotPermanent, id)
	}
	rs := v.(model.RegionSettings)
	fn(&rs)
	s.settings.Store(id, rs)
	s.mu.Unlock()

	return rs, s.persist(ctx, rs)
}

func (s *Store) persist(ctx context.Context, rs model.RegionSettings) error {
	if err := s.repo.SaveRegion(ctx, rs); err != nil {
		slog.Warn("permanent region settings not persisted", "region", rs.RegionID, "err", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// recompute rebuilds the wireframe for rs off the tick loop.
//
// An unresolvable region (deleted, world unloaded) keeps its previous cache.
// The result is dropped when the region was removed or its density changed
// since rs was read; the recompute scheduled by that change installs instead.
func (s *Store) recompute(rs model.RegionSettings) {
	s.offload.RunOffTickLoop(func() {
		r, ok := s.resolver.RegionByName(rs.World, rs.RegionID)
		if !ok {
			slog.Debug("region unresolved, keeping cached geometry", "region", rs.RegionID, "world", rs.World)
			return
		}

		points, err := geom.Cuboid(r.Box, rs.Density)
		if err != nil {
			slog.Warn("computing region geometry", "region", rs.RegionID, "err", err)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		cur, ok := s.Get(rs.RegionID)
		if !ok || cur.Density != rs.Density {
			return
		}
		s.geometry.Store(rs.RegionID, points)
		s.recomputes.Add(1)
	})
}
