package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/udisondev/regionvision/internal/model"
)

// SQLiteRepository stores settings in an embedded SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

var _ RegionRepository = (*SQLiteRepository)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// One writer; SQLite serializes writes anyway.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode = WAL`, `PRAGMA busy_timeout = 5000`} {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("configuring sqlite %s: %w", path, err)
		}
	}
	if err := RunMigrations(ctx, sqlDB, "sqlite3"); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &SQLiteRepository{db: sqlDB}, nil
}

// LoadRegions implements RegionRepository.
func (r *SQLiteRepository) LoadRegions(ctx context.Context) ([]model.RegionSettings, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT region_id, world, color_r, color_g, color_b, density, view_distance,
		       notification_type, notification_message, show_particles
		FROM permanent_regions
		ORDER BY region_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying permanent regions: %w", err)
	}
	defer rows.Close()

	result := make([]model.RegionSettings, 0, 16)
	for rows.Next() {
		var (
			s       model.RegionSettings
			c       [3]int
			ntype   string
			enabled bool
		)
		if err := rows.Scan(&s.RegionID, &s.World, &c[0], &c[1], &c[2], &s.Density, &s.ViewDistance,
			&ntype, &s.NotificationMessage, &enabled); err != nil {
			return nil, fmt.Errorf("scanning permanent region row: %w", err)
		}
		if err := fillRow(&s, c, ntype, enabled); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permanent region rows: %w", err)
	}
	return result, nil
}

// SaveRegion implements RegionRepository.
func (r *SQLiteRepository) SaveRegion(ctx context.Context, s model.RegionSettings) error {
	id := model.NormalizeID(s.RegionID)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO permanent_regions (region_id, world, color_r, color_g, color_b, density,
		                               view_distance, notification_type, notification_message, show_particles)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (region_id) DO UPDATE SET
			world = excluded.world,
			color_r = excluded.color_r,
			color_g = excluded.color_g,
			color_b = excluded.color_b,
			density = excluded.density,
			view_distance = excluded.view_distance,
			notification_type = excluded.notification_type,
			notification_message = excluded.notification_message,
			show_particles = excluded.show_particles,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, id, s.World, int(s.Color.R), int(s.Color.G), int(s.Color.B), s.Density,
		s.ViewDistance, string(s.NotificationType), s.NotificationMessage, s.ParticlesEnabled)
	if err != nil {
		return fmt.Errorf("saving region %q: %w", id, err)
	}
	return nil
}

// DeleteRegion implements RegionRepository.
func (r *SQLiteRepository) DeleteRegion(ctx context.Context, regionID string) error {
	id := model.NormalizeID(regionID)
	if _, err := r.db.ExecContext(ctx, `DELETE FROM permanent_regions WHERE region_id = ?`, id); err != nil {
		return fmt.Errorf("deleting region %q: %w", id, err)
	}
	return nil
}

// Close implements RegionRepository.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// fillRow validates the raw column values shared by the SQL backends.
func fillRow(s *model.RegionSettings, c [3]int, ntype string, enabled bool) error {
	color, err := model.NewColor(c[0], c[1], c[2])
	if err != nil {
		return fmt.Errorf("region %q: %w", s.RegionID, err)
	}
	nt, err := model.ParseNotificationType(ntype)
	if err != nil {
		return fmt.Errorf("region %q: %w", s.RegionID, err)
	}
	if err := model.ValidateDensity(s.Density); err != nil {
		return fmt.Errorf("region %q: %w", s.RegionID, err)
	}
	if err := model.ValidateViewDistance(s.ViewDistance); err != nil {
		return fmt.Errorf("region %q: %w", s.RegionID, err)
	}
	s.RegionID = model.NormalizeID(s.RegionID)
	s.Color = color
	s.NotificationType = nt
	s.ParticlesEnabled = enabled
	return nil
}
