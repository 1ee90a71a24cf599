package main

import (
	"fmt"
	"os"

	"github.com/Vortex-404/task-enforcer/internal/config"
	"github.com/Vortex-404/task-enforcer/internal/export"
	"github.com/Vortex-404/task-enforcer/internal/legacy"
	"github.com/Vortex-404/task-enforcer/internal/logger"
	"github.com/Vortex-404/task-enforcer/internal/store"
	"github.com/Vortex-404/task-enforcer/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		dbPath     string
		legacyPath string
		logLevel   string
		exportPath string
		syncStatus bool
	)

	flagSet := pflag.NewFlagSet("strictfocus", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", config.DefaultPath(), "path to the TOML config file")
	flagSet.StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	flagSet.StringVar(&legacyPath, "legacy-db", "", "legacy key-value file to import from (overrides config)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	flagSet.StringVar(&exportPath, "export", "", "write all tasks to this .csv or .json file and exit")
	flagSet.BoolVar(&syncStatus, "sync-status", false, "count changes waiting to sync and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagSet.Changed("db") {
		cfg.Database.Path = dbPath
	}
	if flagSet.Changed("legacy-db") {
		cfg.Legacy.Path = legacyPath
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(logger.Config{
		Level:    cfg.Log.Level,
		Encoding: cfg.Log.Encoding,
		Path:     cfg.Log.Path,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()

	opts := []store.Option{store.WithLogger(log), store.WithLocation(loc)}
	if cfg.Legacy.Path != "" {
		if _, err := os.Stat(cfg.Legacy.Path); err == nil {
			src, err := legacy.Open(cfg.Legacy.Path)
			if err != nil {
				log.Warn("legacy store unavailable, skipping import", zap.String("path", cfg.Legacy.Path), zap.Error(err))
			} else {
				defer src.Close()
				opts = append(opts, store.WithLegacySource(src))
			}
		}
	}

	s, err := store.New(cfg.Database.Path, opts...)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	if err := s.MigrationError(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: legacy data could not be imported and was kept for the next start: %v\n", err)
	}

	switch {
	case exportPath != "":
		tasks, err := s.GetAllTasks()
		if err != nil {
			return err
		}
		if err := export.TasksToFile(tasks, exportPath); err != nil {
			return err
		}
		fmt.Printf("exported %d tasks to %s\n", len(tasks), exportPath)
		return nil

	case syncStatus:
		meta, err := s.MarkForSync()
		if err != nil {
			return err
		}
		fmt.Printf("pending changes: %d\nconflicts:       %d\n", meta.PendingChanges, meta.ConflictCount)
		return nil
	}

	log.Info("starting ui", zap.String("db", cfg.Database.Path))
	app := tui.NewApp(s, log)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
