package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mmynk/feeallocator/internal/config"
	"github.com/mmynk/feeallocator/internal/models"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StoreConfig
		create  bool
		wantErr bool
	}{
		{name: "sqlite", cfg: config.StoreConfig{Backend: config.StoreSQLite, DBPath: filepath.Join(dir, "fees.db")}},
		{name: "xlsx created", cfg: config.StoreConfig{Backend: config.StoreXLSX, WorkbookPath: filepath.Join(dir, "fees.xlsx")}, create: true},
		{name: "xlsx missing", cfg: config.StoreConfig{Backend: config.StoreXLSX, WorkbookPath: filepath.Join(dir, "missing.xlsx")}, wantErr: true},
		{name: "xlsx without path", cfg: config.StoreConfig{Backend: config.StoreXLSX}, create: true, wantErr: true},
		{name: "unknown backend", cfg: config.StoreConfig{Backend: "postgres"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.cfg, tt.create)
			if tt.wantErr {
				if err == nil {
					store.Close()
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer store.Close()

			ctx := context.Background()
			if err := store.UpsertStudent(ctx, &models.Student{AdmissionNo: "041", Balance: 100}); err != nil {
				t.Fatalf("UpsertStudent failed: %v", err)
			}
			st, err := store.GetStudent(ctx, "041")
			if err != nil || st.Balance != 100 {
				t.Errorf("GetStudent = %+v, %v", st, err)
			}
		})
	}
}
