// Command mailclient is a terminal client for the mail backend API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mail-client/internal/api"
	"github.com/nhle/mail-client/internal/app"
	"github.com/nhle/mail-client/internal/mail"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/persist"
	"github.com/nhle/mail-client/internal/prefs"
	"github.com/nhle/mail-client/internal/query"
	"github.com/nhle/mail-client/internal/session"
	appsync "github.com/nhle/mail-client/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mailclient:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", model.DefaultConfigPath(), "path to the YAML config file")
		apiURL     = flag.String("api", "", "backend base URL, overrides api.base_url")
		writeCfg   = flag.Bool("write-config", false, "write the effective config to -config and exit")
	)
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *apiURL != "" {
		cfg.API.BaseURL = *apiURL
	}
	if *writeCfg {
		if err := model.SaveConfig(*configPath, cfg); err != nil {
			return err
		}
		fmt.Println("wrote", *configPath)
		return nil
	}

	logger, closeLog, err := openLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx := context.Background()

	db, err := persist.NewSQLiteStorage(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	defer db.Close()

	var sessionStorage persist.Storage = db
	if cfg.Storage.SessionBackend == model.SessionBackendKeyring {
		ring, err := persist.OpenKeyring(filepath.Dir(cfg.Storage.Path))
		if err != nil {
			logger.Warn("keyring unavailable, keeping the session in the state database", "error", err)
		} else {
			sessionStorage = ring
		}
	}

	sess, err := session.Open(ctx, sessionStorage, logger)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	uiPrefs, err := prefs.Open(ctx, db, logger)
	if err != nil {
		return fmt.Errorf("opening preferences: %w", err)
	}

	cache := query.New(query.WithLogger(logger))
	client := api.NewClient(cfg.API.BaseURL, sess, api.WithLogger(logger))
	mail.EndSessionOnUnauthorized(client, cache, sess, logger)

	svc := mail.NewService(client, cache, sess, nil, logger)

	poller := appsync.New(svc, func() (int64, string, bool) {
		if !sess.Authenticated() {
			return 0, "", false
		}
		id, ok := uiPrefs.SelectedAccount()
		return id, uiPrefs.ActiveFolder(), ok
	}, time.Duration(cfg.Sync.IntervalSec)*time.Second)
	defer poller.Stop()

	logger.Info("starting mailclient",
		"api", cfg.API.BaseURL,
		"session_backend", cfg.Storage.SessionBackend,
		"authenticated", sess.Authenticated(),
	)

	root := app.New(app.Options{
		Service:   svc,
		Session:   sess,
		Prefs:     uiPrefs,
		Poller:    poller,
		PageSize:  cfg.Display.PageSize,
		ExportDir: cfg.Display.ExportDir,
	})

	p := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

// openLogger returns a text logger writing to the configured file. The
// TUI owns the terminal, so nothing is logged to stdout or stderr.
func openLogger(cfg model.LogConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}

	if cfg.File == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { f.Close() }, nil
}
