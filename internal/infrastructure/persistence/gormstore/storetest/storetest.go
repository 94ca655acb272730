// Package storetest opens throwaway migrated databases for tests.
package storetest

import (
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"civicfix/internal/infrastructure/persistence/gormstore/model"
)

// Open returns a migrated SQLite database in t's temp dir. One connection
// keeps concurrent writers from tripping over SQLite's file lock.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "civicfix.sqlite") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}
