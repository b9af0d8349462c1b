package db

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/regionvision/internal/model"
)

// yamlRegion is one record in the settings file:
//
//	spawn:
//	  world: world
//	  color: {r: 255, g: 0, b: 0}
//	  density: 0.5
//	  view-distance: 50
//	  notification-type: NONE
//	  notification-message: ""
//	  show-particles: true
type yamlRegion struct {
	World               string    `yaml:"world"`
	Color               yamlColor `yaml:"color"`
	Density             float64   `yaml:"density"`
	ViewDistance        int       `yaml:"view-distance"`
	NotificationType    string    `yaml:"notification-type"`
	NotificationMessage string    `yaml:"notification-message"`
	ShowParticles       bool      `yaml:"show-particles"`
}

type yamlColor struct {
	R int `yaml:"r"`
	G int `yaml:"g"`
	B int `yaml:"b"`
}

// YAMLRepository keeps all records in a single YAML file, rewritten on every
// change. Safe for concurrent use.
type YAMLRepository struct {
	path string

	mu      sync.Mutex
	records map[string]yamlRegion
}

var _ RegionRepository = (*YAMLRepository)(nil)

// NewYAMLRepository opens the settings file at path, creating it (and its
// directory) when missing.
func NewYAMLRepository(path string) (*YAMLRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating settings dir %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening settings file %s: %w", path, err)
	}
	_ = f.Close()

	return &YAMLRepository{
		path:    path,
		records: make(map[string]yamlRegion),
	}, nil
}

// LoadRegions implements RegionRepository. Missing fields take the defaults of
// a newly registered region; malformed records are skipped with a warning.
func (r *YAMLRepository) LoadRegions(_ context.Context) ([]model.RegionSettings, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", r.path, err)
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", r.path, err)
	}

	records := make(map[string]yamlRegion, len(doc))
	result := make([]model.RegionSettings, 0, len(doc))
	for key, node := range doc {
		id := model.NormalizeID(key)
		rec := toYAML(model.DefaultRegionSettings(id, ""))
		if err := node.Decode(&rec); err != nil {
			slog.Warn("skip malformed region record", "region", id, "err", err)
			continue
		}

		s, err := fromYAML(id, rec)
		if err != nil {
			slog.Warn("skip invalid region record", "region", id, "err", err)
			continue
		}
		records[id] = rec
		result = append(result, s)
	}

	r.mu.Lock()
	r.records = records
	r.mu.Unlock()

	slices.SortFunc(result, func(a, b model.RegionSettings) int { return cmp.Compare(a.RegionID, b.RegionID) })
	return result, nil
}

// SaveRegion implements RegionRepository.
func (r *YAMLRepository) SaveRegion(_ context.Context, s model.RegionSettings) error {
	id := model.NormalizeID(s.RegionID)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[id] = toYAML(s)
	if err := r.flushLocked(); err != nil {
		return fmt.Errorf("saving region %q: %w", id, err)
	}
	return nil
}

// DeleteRegion implements RegionRepository.
func (r *YAMLRepository) DeleteRegion(_ context.Context, regionID string) error {
	id := model.NormalizeID(regionID)

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, id)
	if err := r.flushLocked(); err != nil {
		return fmt.Errorf("deleting region %q: %w", id, err)
	}
	return nil
}

// Close implements RegionRepository.
func (r *YAMLRepository) Close() error {
	return nil
}

// flushLocked writes all records through a temp file and rename, so a crash
// never leaves a half-written file.
func (r *YAMLRepository) flushLocked() error {
	data, err := yaml.Marshal(r.records)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replacing %s: %w", r.path, err)
	}
	return nil
}

func toYAML(s model.RegionSettings) yamlRegion {
	return yamlRegion{
		World:               s.World,
		Color:               yamlColor{R: int(s.Color.R), G: int(s.Color.G), B: int(s.Color.B)},
		Density:             s.Density,
		ViewDistance:        s.ViewDistance,
		NotificationType:    string(s.NotificationType),
		NotificationMessage: s.NotificationMessage,
		ShowParticles:       s.ParticlesEnabled,
	}
}

func fromYAML(id string, rec yamlRegion) (model.RegionSettings, error) {
	color, err := model.NewColor(rec.Color.R, rec.Color.G, rec.Color.B)
	if err != nil {
		return model.RegionSettings{}, err
	}
	if err := model.ValidateDensity(rec.Density); err != nil {
		return model.RegionSettings{}, err
	}
	if err := model.ValidateViewDistance(rec.ViewDistance); err != nil {
		return model.RegionSettings{}, err
	}
	nt, err := model.ParseNotificationType(rec.NotificationType)
	if err != nil {
		return model.RegionSettings{}, err
	}

	return model.RegionSettings{
		RegionID:            id,
		World:               rec.World,
		Color:               color,
		Density:             rec.Density,
		ViewDistance:        rec.ViewDistance,
		NotificationType:    nt,
		NotificationMessage: rec.NotificationMessage,
		ParticlesEnabled:    rec.ShowParticles,
	}, nil
}
