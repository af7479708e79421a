// Package backend opens the configured storage.Store.
package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mmynk/feeallocator/internal/config"
	"github.com/mmynk/feeallocator/internal/storage"
	"github.com/mmynk/feeallocator/internal/storage/sqlite"
	"github.com/mmynk/feeallocator/internal/storage/xlsx"
)

// Open returns the store selected by cfg. When create is set, a missing workbook is
// created empty; the SQLite database is always created on demand.
func Open(cfg config.StoreConfig, create bool) (storage.Store, error) {
	switch cfg.Backend {
	case config.StoreXLSX:
		if cfg.WorkbookPath == "" {
			return nil, errors.New("workbook path required")
		}
		if _, err := os.Stat(cfg.WorkbookPath); errors.Is(err, os.ErrNotExist) && create {
			if err := xlsx.Create(cfg.WorkbookPath); err != nil {
				return nil, err
			}
			slog.Info("Created fee workbook", "workbook", cfg.WorkbookPath)
		}
		store, err := xlsx.New(cfg.WorkbookPath)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "workbook", cfg.WorkbookPath)
		return store, nil

	case config.StoreSQLite, "":
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "database", cfg.DBPath)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
