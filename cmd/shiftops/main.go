package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	taskq "shiftops-controlplane/pkg/asynq"
	"shiftops-controlplane/pkg/bus"
	"shiftops-controlplane/pkg/config"
	"shiftops-controlplane/pkg/db"
	"shiftops-controlplane/pkg/gen"
	"shiftops-controlplane/pkg/health"
	"shiftops-controlplane/pkg/logger"
	"shiftops-controlplane/pkg/minio"
	"shiftops-controlplane/pkg/redis"
	"shiftops-controlplane/pkg/server"
	"shiftops-controlplane/services/dutymanager"
	"shiftops-controlplane/services/evidence"
	"shiftops-controlplane/services/session"
	"shiftops-controlplane/services/snapshot"
	"shiftops-controlplane/services/workday"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		minio.Client,
		taskq.Client,
		taskq.Server,
		bus.Module,
		fx.Invoke(migrate),
		workday.Module,
		dutymanager.Module,
		snapshot.Module,
		evidence.Module,
		session.Module,
		fx.Invoke(snapshot.RegisterHandlers),
		health.Module,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&dutymanager.SubmissionRecord{},
		&dutymanager.ReviewRecord{},
		&snapshot.Record{},
		&snapshot.ArchiveRecord{},
	)
}
