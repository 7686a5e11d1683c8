package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ChlorophyllA/skin2/pkg/hospital"
	"github.com/rs/zerolog/log"
)

// ImportHospitals loads a hospital directory workbook (.xlsx) or CSV export
// into store, replacing the current directory.
func ImportHospitals(ctx context.Context, store *hospital.Store, path string) error {
	rows, err := hospital.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to open hospital source: %w", err)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := store.Import(ctx, rows); err != nil {
		return fmt.Errorf("failed to import hospitals: %w", err)
	}

	log.Info().Str("path", path).Int("rows", len(rows)).Msg("Hospital directory imported")
	return nil
}
