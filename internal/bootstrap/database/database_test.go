package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"civicfix/internal/bootstrap/config"
)

func TestOpenSQLiteCreatesDirectoryAndPings(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	dsn := filepath.Join(dir, "civicfix.sqlite")

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("sqlite directory not created: %v", err)
	}
	if err := Ping(context.Background(), db); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("Open() expected error for unsupported driver")
	}
}

func TestRedactDSN(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{in: "postgres://user:secret@db:5432/civic", want: "postgres://***@db:5432/civic"},
		{in: ".civicfix/state/civicfix.sqlite", want: ".civicfix/state/civicfix.sqlite"},
	}
	for _, testCase := range testCases {
		if got := redactDSN(testCase.in); got != testCase.want {
			t.Fatalf("redactDSN(%q) = %q, want %q", testCase.in, got, testCase.want)
		}
	}
}
