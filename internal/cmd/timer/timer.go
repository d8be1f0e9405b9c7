// Package timer parses timer service flags and launches the service.
package timer

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	entrypoint "github.com/louisbranch/focustide/internal/platform/cmd"
	"github.com/louisbranch/focustide/internal/services/timer/api/rest"
	"github.com/louisbranch/focustide/internal/services/timer/app"
	"github.com/louisbranch/focustide/internal/services/timer/storage/sqlite"
)

// Config holds timer command configuration.
type Config struct {
	Port          int           `env:"FOCUSTIDE_TIMER_PORT" envDefault:"8090"`
	DBPath        string        `env:"FOCUSTIDE_TIMER_DB_PATH" envDefault:"data/timer.db"`
	GraceWindow   time.Duration `env:"FOCUSTIDE_TIMER_GRACE_WINDOW" envDefault:"10m"`
	SweepInterval time.Duration `env:"FOCUSTIDE_TIMER_SWEEP_INTERVAL" envDefault:"1m"`
	CycleInterval int           `env:"FOCUSTIDE_TIMER_CYCLE_INTERVAL" envDefault:"4"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The timer HTTP server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the timer SQLite database")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the timer API service and its expiry sweeper.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTimer, func(context.Context) error {
		return serve(ctx, cfg)
	})
}

func serve(ctx context.Context, cfg Config) error {
	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close timer store: %v", err)
		}
	}()

	service := app.NewService(store, app.Options{
		GraceWindow:   cfg.GraceWindow,
		CycleInterval: cfg.CycleInterval,
	})

	sweeper := app.NewSweeper(service, cfg.SweepInterval, app.DefaultSweepBatch)
	go func() {
		if err := sweeper.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("expiry sweeper stopped: %v", err)
		}
	}()

	server, err := rest.New(cfg.Port, service)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

func openStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open timer sqlite store: %w", err)
	}
	return store, nil
}
