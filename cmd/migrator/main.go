package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"github.com/14kear/online_voting/voting-engine/internal/config"
	"github.com/14kear/online_voting/voting-engine/internal/lib/logger"
	"github.com/14kear/sso-prettyslog/slogpretty/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"log/slog"
	"os"
)

func main() {
	var (
		action     string
		steps      int
		configPath string
	)

	flag.StringVar(&action, "action", "up", "migration: up, down, force, version")
	flag.IntVar(&steps, "steps", 0, "number of steps (for up/down), target version for force")
	flag.StringVar(&configPath, "config", "config/local.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)

	if cfg.StoragePath == "" {
		log.Error("storage_path is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.StoragePath)
	if err != nil {
		log.Error("failed to open database", sl.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Error("failed to create migrate driver", sl.Err(err))
		os.Exit(1)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.MigrationsPath, "postgres", driver)
	if err != nil {
		log.Error("failed to load migrations", slog.String("path", cfg.MigrationsPath), sl.Err(err))
		os.Exit(1)
	}

	switch action {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "force":
		err = m.Force(steps)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Error("failed to read version", sl.Err(err))
			os.Exit(1)
		}
		log.Info("current version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
		return
	default:
		log.Error("unknown action", slog.String("action", action))
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return
		}
		log.Error("migration failed", sl.Err(err))
		os.Exit(1)
	}

	log.Info("migrations applied", slog.String("action", action))
}
