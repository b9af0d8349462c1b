package db

import (
	"context"
	"fmt"
	"log/slog"
)

// Copy writes every record of src into dst, replacing records with the same id.
// Used to move settings between backends.
func Copy(ctx context.Context, dst, src RegionRepository) (int, error) {
	all, err := src.LoadRegions(ctx)
	if err != nil {
		return 0, fmt.Errorf("copying regions: %w", err)
	}
	for i, s := range all {
		if err := dst.SaveRegion(ctx, s); err != nil {
			return i, fmt.Errorf("copying regions: %w", err)
		}
	}
	slog.Info("copied permanent regions", "count", len(all))
	return len(all), nil
}
