package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"civicfix/internal/bootstrap/config"
	"civicfix/internal/bootstrap/database"
)

func TestInitSchemaIsIdempotent(t *testing.T) {
	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "civicfix.sqlite"),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	app := &App{DB: db}

	version, err := app.SchemaVersionInstalled(context.Background())
	if err != nil || version != "" {
		t.Fatalf("SchemaVersionInstalled() before init = %q, %v", version, err)
	}

	for i := 0; i < 2; i++ {
		if err := app.InitSchema(context.Background()); err != nil {
			t.Fatalf("InitSchema() run %d error = %v", i+1, err)
		}
	}

	version, err = app.SchemaVersionInstalled(context.Background())
	if err != nil || version != SchemaVersion {
		t.Fatalf("SchemaVersionInstalled() = %q, %v; want %q", version, err, SchemaVersion)
	}
}
