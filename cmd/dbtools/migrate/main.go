package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vitrine-imob/vitrine/internal/config"
	"github.com/vitrine-imob/vitrine/internal/db"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		configPath = flag.String("config", "", "Path to app config (database.filename is used)")
		dbPath     = flag.String("db", "", "Path to SQLite database (overrides -config)")
		command    = flag.String("command", "", "Command to run (up, down, steps, version, force)")
		steps      = flag.Int("n", 1, "Migration steps for the steps command (negative rolls back)")
		version    = flag.Int("version", -1, "Version for the force command")
	)
	flag.Parse()

	path, err := resolveDBPath(*dbPath, *configPath)
	if err != nil || *command == "" {
		if err != nil {
			log.Error().Err(err).Msg("Invalid arguments")
		}
		flag.Usage()
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create database directory")
	}

	sqlDB, err := db.OpenSQLite(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer sqlDB.Close()

	m, err := db.NewMigrator(sqlDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration init failed")
	}

	logger := log.With().Str("db", path).Str("command", *command).Logger()
	if err := run(m, *command, *steps, *version); err != nil {
		logger.Fatal().Err(err).Msg("Migration command failed")
	}

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Fatal().Err(err).Msg("Get version failed")
	}
	logger.Info().Uint("version", current).Bool("dirty", dirty).Msg("Migration command finished")
}

func resolveDBPath(dbPath, configPath string) (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	if configPath == "" {
		return "", fmt.Errorf("either -db or -config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	return cfg.Database.Filename, nil
}

func run(m *migrate.Migrate, command string, steps, version int) error {
	var err error
	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		err = m.Steps(steps)
	case "version":
		return nil
	case "force":
		if version < 0 {
			return fmt.Errorf("force requires -version")
		}
		err = m.Force(version)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
