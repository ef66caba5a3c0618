// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roverlink/roverlink/pkg/openrover"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// Latest reading of one element
type elementReading struct {
	element  openrover.Element
	received time.Time
	count    int
}

// Messages
type tickMsg time.Time
type elementMsg struct {
	element openrover.Element
	at      time.Time
}
type readErrorMsg struct {
	err error
	at  time.Time
}
type linkClosedMsg struct {
	err error
}
type logEventMsg struct {
	err error
	at  time.Time
}

// Actions the model asks of the link; nil in tests
type monitorActions struct {
	stop func() error
}

// TUI model
type monitorModel struct {
	connInfo      string
	stats         *openrover.Statistics
	catalog       *openrover.Catalog
	actions       monitorActions
	readings      map[byte]*elementReading
	table         table.Model
	eventLog      []eventLogEntry
	maxLogEntries int
	width         int
	height        int
	closed        bool
	quitting      bool
}

func newMonitorModel(connInfo string, stats *openrover.Statistics, catalog *openrover.Catalog, actions monitorActions) monitorModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Idx", Width: 4},
			{Title: "Element", Width: 32},
			{Title: "Value", Width: 24},
			{Title: "Age", Width: 8},
			{Title: "Count", Width: 7},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	return monitorModel{
		connInfo:      connInfo,
		stats:         stats,
		catalog:       catalog,
		actions:       actions,
		readings:      make(map[byte]*elementReading),
		table:         t,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
			return m, nil
		case "s":
			if m.actions.stop != nil {
				if err := m.actions.stop(); err != nil {
					m.addLogEntry(fmt.Sprintf("STOP FAILED: %v", err), true)
				} else {
					m.addLogEntry("Stop frame sent", false)
				}
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(5, min(m.catalog.Len(), m.height-16)))

	case tickMsg:
		m.refreshTable(time.Time(msg))
		return m, tickCmd()

	case elementMsg:
		r, ok := m.readings[msg.element.Index]
		if !ok {
			r = &elementReading{}
			m.readings[msg.element.Index] = r
			m.addLogEntry(fmt.Sprintf("First report of %s (%d)", msg.element.Name, msg.element.Index), false)
		}
		r.element = msg.element
		r.received = msg.at
		r.count++
		m.refreshTable(msg.at)

	case readErrorMsg:
		m.addLogEntryAt(msg.at, msg.err.Error(), true)

	case logEventMsg:
		m.addLogEntryAt(msg.at, fmt.Sprintf("ERROR: %v", msg.err), true)

	case linkClosedMsg:
		m.closed = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("CONNECTION LOST: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// refreshTable rebuilds the rows in catalog order
func (m *monitorModel) refreshTable(now time.Time) {
	rows := make([]table.Row, 0, len(m.readings))
	for _, idx := range m.catalog.Indexes() {
		r, ok := m.readings[idx]
		if !ok {
			continue
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", idx),
			r.element.Name,
			openrover.FormatValue(r.element.Value),
			formatAge(now.Sub(r.received)),
			fmt.Sprintf("%d", r.count),
		})
	}
	m.table.SetRows(rows)
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.addLogEntryAt(time.Now(), message, isError)
}

func (m *monitorModel) addLogEntryAt(t time.Time, message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: t,
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("ROVERLINK - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | q quit, r reset stats, s stop motors", m.connInfo)))
	s.WriteString("\n\n")

	if m.closed {
		s.WriteString(errorStyle.Render("✗ Disconnected"))
	} else if len(m.readings) == 0 {
		s.WriteString(warningStyle.Render("⏳ Waiting for telemetry..."))
	} else {
		s.WriteString(statsValueStyle.Render("✓ Receiving"))
	}
	s.WriteString("\n\n")

	snap := m.stats.Snapshot()
	errText := fmt.Sprintf("%d", snap.Errors())
	rateText := fmt.Sprintf("%.1f err/s", snap.ErrorRate)
	errRender, rateRender := statsValueStyle.Render, statsValueStyle.Render
	if snap.Errors() > 0 {
		errRender = errorStyle.Render
	}
	if snap.ErrorRate > 0 {
		rateRender = errorStyle.Render
	}

	var stats strings.Builder
	fmt.Fprintf(&stats, "%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.Frames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", snap.ValidFrames, snap.ValidPercent())),
		statsLabelStyle.Render("Errors:"), errRender(errText),
	)
	fmt.Fprintf(&stats, "%s %d   %s %d   %s %d   %s %d\n",
		statsLabelStyle.Render("Checksum:"), snap.ChecksumErrors,
		statsLabelStyle.Render("Unknown:"), snap.UnknownElements,
		statsLabelStyle.Render("Skipped bytes:"), snap.SkippedBytes,
		statsLabelStyle.Render("Commands:"), snap.CommandsSent,
	)
	fmt.Fprintf(&stats, "%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", snap.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), rateRender(rateText),
	)

	s.WriteString(boxStyle.Render(stats.String()))
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("Telemetry:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.table.View()))
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := max(3, m.height-m.table.Height()-16)
	startIdx := max(0, len(m.eventLog)-logHeight)

	var log strings.Builder
	if len(m.eventLog) == 0 {
		log.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.eventLog[startIdx:] {
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			fmt.Fprintf(&log, "%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message))
		} else {
			fmt.Fprintf(&log, "%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message))
		}
	}

	s.WriteString(boxStyle.Width(max(20, m.width-4)).Render(log.String()))
	return s.String()
}
