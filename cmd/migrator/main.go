package main

import (
	"flag"
	"os"

	"github.com/SakuraBurst/goaltracker/internal/pkg/logger"
	"github.com/go-faster/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

func main() {
	var storagePath, migrationPath string
	var down bool
	flag.StringVar(&storagePath, "storage", os.Getenv("STORAGE_DSN"), "postgres connection string")
	flag.StringVar(&migrationPath, "migrations", "./migrations", "path to migrations")
	flag.BoolVar(&down, "down", false, "roll back every migration")
	flag.Parse()

	log, err := logger.InitLogger("info")
	if err != nil {
		panic(err)
	}
	log = log.Named("migrator")
	defer func() { _ = log.Sync() }()

	if storagePath == "" {
		log.Fatal("storage path is required, pass -storage or set STORAGE_DSN")
	}

	m, err := migrate.New("file://"+migrationPath, storagePath)
	if err != nil {
		log.Fatal("migrate.New failed", zap.Error(err))
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("no migrations to apply")
		return
	}
	if err != nil {
		log.Fatal("migration failed", zap.Error(err), zap.Bool("down", down))
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatal("m.Version failed", zap.Error(err))
	}
	log.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
}
