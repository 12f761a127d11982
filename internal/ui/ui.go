package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/slingshot/internal/upload"
)

// Uploader is the widget surface the UI drives.
type Uploader interface {
	Accept(files []upload.File)
	Pending() []upload.File
	UploadPending() error
	UploadOnAccept() bool
	Snapshot() upload.Snapshot
	Changes() (<-chan upload.Snapshot, func())
	Abort(id string) error
	Clear() error
}

// Options configure the UI.
type Options struct {
	Widget    Uploader
	Files     []upload.File // accepted when the UI starts
	PrefsPath string        // empty uses default ~/.config/slingshot/prefs.toml
	LogPath   string        // JSON log file shown in the log pane
	Title     string        // shown next to the logo, usually the profile
}

// Run accepts opts.Files and shows the upload screen until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Widget == nil {
		return errors.New("ui: widget is required")
	}

	model := New(opts)
	defer model.unsubscribe()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tea program: %w", err)
	}
	return nil
}
