package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/five82/slingshot/internal/config"
	"github.com/five82/slingshot/internal/localfile"
	"github.com/five82/slingshot/internal/logging"
	"github.com/five82/slingshot/internal/slingshot"
	"github.com/five82/slingshot/internal/ui"
	"github.com/five82/slingshot/internal/upload"
	"github.com/five82/slingshot/internal/widget"
)

// ErrIncomplete is returned by Run when at least one file did not finish
// uploading.
var ErrIncomplete = errors.New("not every file was uploaded")

// Options configure the upload client.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/slingshot/prefs.toml
	Profile    string // overrides the config's profile
	BaseURL    string // overrides the config's base_url
	Plain      bool   // line reporter instead of the TUI
	Files      []string

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Run uploads opts.Files and blocks until the batch settled and, in TUI
// mode, the user quit. Cancelling ctx aborts the batch.
func Run(ctx context.Context, opts Options) error {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if p := strings.TrimSpace(opts.Profile); p != "" {
		cfg.Client.Profile = p
	}
	if u := strings.TrimSpace(opts.BaseURL); u != "" {
		cfg.Client.BaseURL = u
	}

	files, err := localfile.OpenAll(opts.Files)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return upload.ErrNoFiles
	}

	logger, closeLog, err := newLogger(cfg.Client, opts.Plain, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	client, err := slingshot.NewClient(cfg.Client.BaseURL, cfg.Client.Profile,
		slingshot.WithRequestTimeout(cfg.Client.RequestTimeout))
	if err != nil {
		return fmt.Errorf("init slingshot client: %w", err)
	}

	orch, err := upload.New(upload.Options{
		Transport:   client,
		Meta:        cfg.Client.Meta,
		Concurrency: cfg.Client.Concurrency,
		Strict:      cfg.Client.Strict,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}
	w := widget.Connect(orch, widget.Options{
		UploadOnAccept: cfg.Client.UploadOnAccept,
		Logger:         logger,
	})
	defer func() { _ = w.Close() }()

	logger.Info("slingshot starting",
		"base_url", cfg.Client.BaseURL,
		"profile", cfg.Client.Profile,
		"files", len(files),
		"upload_on_accept", cfg.Client.UploadOnAccept,
		"plain", opts.Plain,
	)

	if opts.Plain {
		if err := runPlain(ctx, w, files, stdout); err != nil {
			return err
		}
	} else {
		uiOpts := ui.Options{
			Widget:    w,
			Files:     files,
			PrefsPath: opts.PrefsPath,
			LogPath:   cfg.Client.LogFile,
			Title:     cfg.Client.Profile,
		}
		if err := ui.Run(ctx, uiOpts); err != nil {
			return fmt.Errorf("run ui: %w", err)
		}
	}

	_ = w.Close()
	final := w.Snapshot()
	if !opts.Plain {
		writeSummary(stdout, final)
	}
	if err := w.Err(); err != nil {
		return err
	}
	if !allDone(final) {
		return ErrIncomplete
	}
	return nil
}

// newLogger sends logs to stderr in plain mode and to the log file while the
// TUI owns the terminal.
func newLogger(cfg config.Client, plain bool, stderr io.Writer) (*slog.Logger, func() error, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	if plain {
		return logging.New(stderr, level, logging.FormatText), func() error { return nil }, nil
	}
	logger, closer, err := logging.OpenFile(cfg.LogFile, level)
	if err != nil {
		return nil, nil, err
	}
	return logger, closer.Close, nil
}

func allDone(snap upload.Snapshot) bool {
	if len(snap.Files) == 0 {
		return false
	}
	return snap.Count(upload.FileDone) == len(snap.Files)
}
