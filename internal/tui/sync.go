package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Vortex-404/task-enforcer/internal/export"
	"github.com/Vortex-404/task-enforcer/internal/store"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

// syncModel shows the outbox a sync transport would push.
type syncModel struct {
	store  *store.Store
	width  int
	height int

	meta    *store.SyncMetadata
	pending *store.PendingSync
	outDir  string
}

func newSyncModel(s *store.Store, outDir string) syncModel {
	return syncModel{store: s, outDir: outDir}
}

func (m *syncModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

type syncDataMsg struct {
	meta    *store.SyncMetadata
	pending *store.PendingSync
	err     error
}

func (m syncModel) refresh() tea.Cmd {
	return func() tea.Msg {
		meta, err := m.store.GetSyncMetadata()
		if err != nil {
			return syncDataMsg{err: err}
		}
		pending, err := m.store.GetPendingSync()
		return syncDataMsg{meta: meta, pending: pending, err: err}
	}
}

func (m syncModel) update(msg tea.Msg) (syncModel, tea.Cmd) {
	switch msg := msg.(type) {
	case syncDataMsg:
		if msg.err != nil {
			return m, errStatus("Load sync state", msg.err)
		}
		m.meta = msg.meta
		m.pending = msg.pending
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.MarkSync):
			return m, m.markForSync()
		case key.Matches(msg, keys.Outbox):
			return m, m.writeOutbox()
		}
	}
	return m, nil
}

func (m syncModel) markForSync() tea.Cmd {
	return func() tea.Msg {
		meta, err := m.store.MarkForSync()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Mark for sync: %v", err), isError: true}
		}
		pending, err := m.store.GetPendingSync()
		return syncDataMsg{meta: meta, pending: pending, err: err}
	}
}

func (m syncModel) writeOutbox() tea.Cmd {
	return func() tea.Msg {
		pending, err := m.store.GetPendingSync()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Read outbox: %v", err), isError: true}
		}
		path := filepath.Join(m.outDir, fmt.Sprintf("strictfocus-outbox-%s.json", m.store.Now().Format("2006-01-02-150405")))
		if err := export.PendingToJSON(pending, path); err != nil {
			return statusMsg{text: fmt.Sprintf("Write outbox: %v", err), isError: true}
		}
		return exportDoneMsg{path: path}
	}
}

func (m syncModel) view() string {
	w := m.width - 4
	rows := []string{titleStyle.Render("Sync"), ""}

	if m.meta == nil {
		rows = append(rows, mutedStyle.Render("Never marked for sync. Press m to count pending changes."))
	} else {
		last := "never"
		if m.meta.LastSyncTime > 0 {
			last = humanize.Time(time.UnixMilli(m.meta.LastSyncTime))
		}
		conflicts := mutedStyle.Render("0 conflicts")
		if m.meta.ConflictCount > 0 {
			conflicts = errorStyle.Render(fmt.Sprintf("%d %s", m.meta.ConflictCount, humanize.PluralWord(m.meta.ConflictCount, "conflict", "")))
		}
		rows = append(rows,
			fmt.Sprintf("  last sync      %s", highlightStyle.Render(last)),
			fmt.Sprintf("  pending        %s", warningStyle.Render(humanize.Comma(int64(m.meta.PendingChanges)))),
			fmt.Sprintf("  conflicts      %s", conflicts),
		)
	}

	rows = append(rows, "", titleStyle.Render("Outbox"))
	if m.pending == nil || (len(m.pending.Tasks) == 0 && len(m.pending.Sessions) == 0) {
		rows = append(rows, mutedStyle.Render("  Nothing waiting to sync"))
	} else {
		limit := max(m.height-16, 3)
		for i, t := range m.pending.Tasks {
			if i >= limit {
				rows = append(rows, mutedStyle.Render(fmt.Sprintf("  … %d more tasks", len(m.pending.Tasks)-limit)))
				break
			}
			rows = append(rows, fmt.Sprintf("  task     %-32s %s", truncate(t.Title, 32), mutedStyle.Render(humanize.Time(time.UnixMilli(t.LastModified)))))
		}
		for i, s := range m.pending.Sessions {
			if i >= limit {
				rows = append(rows, mutedStyle.Render(fmt.Sprintf("  … %d more sessions", len(m.pending.Sessions)-limit)))
				break
			}
			rows = append(rows, fmt.Sprintf("  session  %-32s %s", fmt.Sprintf("%s, %d min", s.TaskID, s.Duration), mutedStyle.Render(humanize.Time(time.UnixMilli(s.LastModified)))))
		}
	}

	rows = append(rows, "", mutedStyle.Render("  m: mark for sync  o: write outbox to "+m.outDir))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func defaultOutDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
