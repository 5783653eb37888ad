package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"library-circulation/library"
)

const dbFile = "library.db"

// config is resolved from flags, then environment (optionally from .env),
// then built-in defaults.
type config struct {
	DBPath      string
	Autosave    bool
	LogLevel    string
	HistoryFile string
}

// loadEnv reads .env from the working directory. A missing file is fine.
func loadEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env: %v\n", err)
	}
}

func defaultConfig() config {
	cfg := config{
		DBPath:   dbFile,
		LogLevel: "warn",
	}
	if v := os.Getenv("LIBRARY_DB"); v != "" {
		cfg.DBPath = v
	}
	if v, err := strconv.ParseBool(os.Getenv("LIBRARY_AUTOSAVE")); err == nil {
		cfg.Autosave = v
	}
	if v := os.Getenv("LIBRARY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.HistoryFile = filepath.Join(home, ".library_history")
	}
	return cfg
}

// bindFlags registers the global flags on cmd with cfg's current values as defaults.
func (cfg *config) bindFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the SQLite snapshot database (env LIBRARY_DB)")
	f.BoolVar(&cfg.Autosave, "autosave", cfg.Autosave, "save after every successful change (env LIBRARY_AUTOSAVE)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (env LIBRARY_LOG_LEVEL)")
}

func (cfg config) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.LogLevel))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// open builds the manager described by cfg. Logs go to logOut.
func (cfg config) open(logOut io.Writer) (*library.LibraryManager, error) {
	logger, err := cfg.logger(logOut)
	if err != nil {
		return nil, err
	}
	mgr, err := library.NewLibraryManager(cfg.DBPath, library.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	mgr.SetAutosave(cfg.Autosave)
	return mgr, nil
}
