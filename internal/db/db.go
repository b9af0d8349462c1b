package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/udisondev/regionvision/internal/model"
)

// PostgresRepository stores settings in PostgreSQL through a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ RegionRepository = (*PostgresRepository)(nil)

// OpenPostgres connects to PostgreSQL, applies migrations and returns a repository.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	repo := NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// NewPostgresRepository wraps an existing pool. Migrations are not applied.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Pool returns the underlying pgx pool.
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Migrate applies the postgres migrations through a database/sql handle
// borrowed from the pool config (goose needs *sql.DB).
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	connStr := stdlib.RegisterConnConfig(r.pool.Config().ConnConfig)
	defer stdlib.UnregisterConnConfig(connStr)

	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	return RunMigrations(ctx, sqlDB, "postgres")
}

// LoadRegions implements RegionRepository.
func (r *PostgresRepository) LoadRegions(ctx context.Context) ([]model.RegionSettings, error) {
	query := `
		SELECT region_id, world, color_r, color_g, color_b, density, view_distance,
		       notification_type, notification_message, show_particles
		FROM permanent_regions
		ORDER BY region_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying permanent regions: %w", err)
	}
	defer rows.Close()

	result := make([]model.RegionSettings, 0, 16)
	for rows.Next() {
		var (
			s       model.RegionSettings
			cr, cg  int16
			cb      int16
			ntype   string
			enabled bool
		)
		if err := rows.Scan(&s.RegionID, &s.World, &cr, &cg, &cb, &s.Density, &s.ViewDistance,
			&ntype, &s.NotificationMessage, &enabled); err != nil {
			return nil, fmt.Errorf("scanning permanent region row: %w", err)
		}
		if err := fillRow(&s, [3]int{int(cr), int(cg), int(cb)}, ntype, enabled); err != nil {
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
func (r *PostgresRepository) SaveRegion(ctx context.Context, s model.RegionSettings) error {
	id := model.NormalizeID(s.RegionID)
	query := `
		INSERT INTO permanent_regions (region_id, world, color_r, color_g, color_b, density,
		                               view_distance, notification_type, notification_message, show_particles)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (region_id) DO UPDATE SET
			world = EXCLUDED.world,
			color_r = EXCLUDED.color_r,
			color_g = EXCLUDED.color_g,
			color_b = EXCLUDED.color_b,
			density = EXCLUDED.density,
			view_distance = EXCLUDED.view_distance,
			notification_type = EXCLUDED.notification_type,
			notification_message = EXCLUDED.notification_message,
			show_particles = EXCLUDED.show_particles,
			updated_at = now()
	`
	_, err := r.pool.Exec(ctx, query, id, s.World, int16(s.Color.R), int16(s.Color.G), int16(s.Color.B),
		s.Density, s.ViewDistance, string(s.NotificationType), s.NotificationMessage, s.ParticlesEnabled)
	if err != nil {
		return fmt.Errorf("saving region %q: %w", id, err)
	}
	return nil
}

// DeleteRegion implements RegionRepository.
func (r *PostgresRepository) DeleteRegion(ctx context.Context, regionID string) error {
	id := model.NormalizeID(regionID)
	tag, err := r.pool.Exec(ctx, `DELETE FROM permanent_regions WHERE region_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting region %q: %w", id, err)
	}
	slog.Debug("deleted permanent region", "region", id, "rows", tag.RowsAffected())
	return nil
}

// Close implements RegionRepository.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
