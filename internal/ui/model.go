package ui

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/slingshot/internal/logtail"
	"github.com/five82/slingshot/internal/prefs"
	"github.com/five82/slingshot/internal/upload"
	"github.com/five82/slingshot/internal/widget"
)

const (
	logRefreshInterval = time.Second
	logPaneLines       = 8
	noticeTTL          = 4 * time.Second
)

// snapshotMsg carries a published orchestrator snapshot.
type snapshotMsg upload.Snapshot

// logsMsg carries the tail of the log file.
type logsMsg struct {
	entries []logtail.Entry
	err     error
}

// noticeExpiredMsg clears a notice if it is still the one that scheduled it.
type noticeExpiredMsg struct{ seq int }

// Model is the Bubble Tea model of the upload screen.
type Model struct {
	uploader    Uploader
	changes     <-chan upload.Snapshot
	unsubscribe func()

	snap    upload.Snapshot
	pending []upload.File
	cursor  int

	title     string
	prefs     prefs.Prefs
	prefsPath string
	theme     Theme
	styles    Styles

	logPath string
	logs    []logtail.Entry
	logErr  error

	keys keyMap
	help help.Model
	bar  progress.Model

	notice    string
	noticeBad bool
	noticeSeq int

	width  int
	height int
}

// New subscribes to opts.Widget's snapshots, accepts opts.Files and builds
// the model from the widget's current batch and stage.
func New(opts Options) Model {
	p := prefs.Load(opts.PrefsPath)
	changes, unsubscribe := opts.Widget.Changes()
	if len(opts.Files) > 0 {
		opts.Widget.Accept(opts.Files)
	}

	m := Model{
		uploader:    opts.Widget,
		changes:     changes,
		unsubscribe: unsubscribe,
		snap:        opts.Widget.Snapshot(),
		pending:     opts.Widget.Pending(),
		title:       opts.Title,
		prefs:       p,
		prefsPath:   opts.PrefsPath,
		logPath:     opts.LogPath,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		bar:         progress.New(progress.WithoutPercentage()),
		width:       80,
		height:      24,
	}
	m.applyTheme(p.Theme)
	return m
}

// Init starts listening for snapshots and, when the pane is visible, logs.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForSnapshot(m.changes)}
	if m.prefs.ShowLogs {
		cmds = append(cmds, m.readLogs())
	}
	return tea.Batch(cmds...)
}

// Update handles input and background messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		m.snap = upload.Snapshot(msg)
		m.pending = m.uploader.Pending()
		m.clampCursor()
		return m, waitForSnapshot(m.changes)

	case logsMsg:
		m.logs, m.logErr = msg.entries, msg.err
		if !m.prefs.ShowLogs {
			return m, nil
		}
		return m, tea.Tick(logRefreshInterval, func(time.Time) tea.Msg {
			return m.readLogs()()
		})

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		m.cursor--
		m.clampCursor()
	case key.Matches(msg, m.keys.Down):
		m.cursor++
		m.clampCursor()
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		m.cursor = len(m.snap.Files) - 1
		m.clampCursor()
	case key.Matches(msg, m.keys.Abort):
		return m.abortSelected()
	case key.Matches(msg, m.keys.Clear):
		if err := m.uploader.Clear(); err != nil {
			return m.setNotice(err.Error(), true)
		}
		return m.setNotice("batch cleared", false)
	case key.Matches(msg, m.keys.Upload):
		return m.uploadPending()
	case key.Matches(msg, m.keys.CycleTheme):
		m.applyTheme(NextTheme(m.theme.Name))
		return m.savePrefs("theme " + m.theme.Name)
	case key.Matches(msg, m.keys.ToggleLogs):
		m.prefs.ShowLogs = !m.prefs.ShowLogs
		next, cmd := m.savePrefs("")
		if m.prefs.ShowLogs {
			return next, tea.Batch(cmd, m.readLogs())
		}
		return next, cmd
	}
	return m, nil
}

func (m Model) abortSelected() (tea.Model, tea.Cmd) {
	rec, ok := m.selected()
	if !ok {
		return m, nil
	}
	if err := m.uploader.Abort(rec.ID); err != nil {
		if errors.Is(err, upload.ErrNotAbortable) {
			return m.setNotice(fmt.Sprintf("%s is already %s", rec.Name, rec.Status), true)
		}
		return m.setNotice(err.Error(), true)
	}
	return m.setNotice("aborting "+rec.Name, false)
}

func (m Model) uploadPending() (tea.Model, tea.Cmd) {
	err := m.uploader.UploadPending()
	m.pending = m.uploader.Pending()
	switch {
	case errors.Is(err, widget.ErrNothingPending):
		return m.setNotice("nothing staged", true)
	case errors.Is(err, upload.ErrBusy):
		return m.setNotice("batch in progress, files stay staged", true)
	case err != nil:
		return m.setNotice(err.Error(), true)
	}
	return m.setNotice("upload started", false)
}

func (m Model) savePrefs(notice string) (tea.Model, tea.Cmd) {
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		return m.setNotice("save prefs: "+err.Error(), true)
	}
	if notice == "" {
		return m, nil
	}
	return m.setNotice(notice, false)
}

func (m Model) setNotice(text string, bad bool) (tea.Model, tea.Cmd) {
	m.noticeSeq++
	m.notice, m.noticeBad = text, bad
	seq := m.noticeSeq
	return m, tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

func (m *Model) applyTheme(name string) {
	m.theme = GetTheme(name)
	m.styles = m.theme.Styles()
	m.prefs.Theme = m.theme.Name
	m.bar.FullColor = m.theme.Accent
	m.bar.EmptyColor = m.theme.BorderMuted
	m.help.Styles.ShortKey = m.styles.AccentText
	m.help.Styles.ShortDesc = m.styles.MutedText
	m.help.Styles.FullKey = m.styles.AccentText
	m.help.Styles.FullDesc = m.styles.MutedText
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.snap.Files) {
		m.cursor = len(m.snap.Files) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() (upload.Record, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Files) {
		return upload.Record{}, false
	}
	return m.snap.Files[m.cursor], true
}

func (m Model) readLogs() tea.Cmd {
	path := m.logPath
	return func() tea.Msg {
		if path == "" {
			return logsMsg{}
		}
		entries, err := logtail.Tail(path, logPaneLines)
		return logsMsg{entries: entries, err: err}
	}
}

func waitForSnapshot(ch <-chan upload.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}
