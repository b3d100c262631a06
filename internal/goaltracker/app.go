package goaltracker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/config"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/controller"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/database"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/router"
	"github.com/SakuraBurst/goaltracker/internal/pkg/logger"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

type App struct {
	router   *router.HttpRouter
	logger   *zap.Logger
	httpPort string
}

func (a *App) Run() error {
	sisChan := make(chan os.Signal, 1)
	go func() {
		a.logger.Info("http server started", zap.String("port", a.httpPort))
		if err := a.router.Run(); err != nil {
			a.logger.Error("router.Run failed", zap.Error(err))
			sisChan <- os.Interrupt
		}
	}()
	return a.gracefulShutdown(sisChan)
}

func (a *App) gracefulShutdown(sisChan chan os.Signal) error {
	signal.Notify(sisChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sisChan
	a.logger.Info("shutting down", zap.String("signal", sig.String()))
	if err := a.router.Close(); err != nil {
		a.logger.Error("router.Close failed", zap.Error(err))
	}
	// Sync fails on stdout in some terminals.
	_ = a.logger.Sync()
	return nil
}

// openStorage returns the gateway selected by storage.driver and its close func.
func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (database.Gateway, func() error, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("using in-memory storage, data is lost on restart")
		db := database.NewMemoryDB()
		return db, db.Close, nil
	case "postgres":
		db, err := database.NewDB(ctx, cfg, log)
		if err != nil {
			return nil, nil, errors.Wrap(err, "database.NewDB failed")
		}
		return db, db.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.InitLogger(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "logger.InitLogger failed")
	}
	log = log.With(zap.String("env", cfg.Env))

	db, closeDB, err := openStorage(ctx, cfg, log.Named("database"))
	if err != nil {
		return nil, err
	}
	c := controller.NewController(cfg, db, db, db, db, closeDB)
	r := router.CreateRouter(c, cfg, log)
	return &App{
		router:   r,
		logger:   log.Named("app"),
		httpPort: cfg.HTTP.Port,
	}, nil
}
