package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"civicfix/internal/bootstrap/config"
	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/errs"
	"civicfix/internal/infrastructure/persistence/gormstore/model"
	"civicfix/internal/infrastructure/realtime"
	"civicfix/internal/infrastructure/verification"
	"civicfix/internal/platform/metrics"
	"civicfix/internal/ports"
	"civicfix/internal/usecase/distribution"
	"civicfix/internal/usecase/lifecycle"
)

// SchemaVersion is recorded in schema_meta by InitSchema.
const SchemaVersion = "1"

// App is the wired process: everything a command needs after bootstrap.
type App struct {
	Config       config.Config
	DB           *gorm.DB
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Issues       ports.IssueRepository
	Timeline     ports.TimelineRepository
	Verifier     *verification.Client
	Hub          *realtime.Hub
	Router       *distribution.Router
	Orchestrator *lifecycle.Orchestrator
	Supervisor   *Supervisor
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	db := a.DB.WithContext(ctx)
	if err := db.AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	meta := model.SchemaMeta{Key: "schema_version", Value: SchemaVersion}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&meta).Error; err != nil {
		return errs.Wrap(err, "record schema version")
	}

	logging.Info(logCtx, "schema migration completed", slog.String("schema_version", SchemaVersion))
	return nil
}

// SchemaVersionInstalled reads the recorded schema version; empty means the
// schema was never initialized.
func (a *App) SchemaVersionInstalled(ctx context.Context) (string, error) {
	db := a.DB.WithContext(ctx)
	if !db.Migrator().HasTable(&model.SchemaMeta{}) {
		return "", nil
	}
	var meta model.SchemaMeta
	err := db.Where("key = ?", "schema_version").Limit(1).Find(&meta).Error
	if err != nil {
		return "", errs.Wrap(err, "read schema version")
	}
	return meta.Value, nil
}
