// Package tui provides a Bubble Tea TUI for browsing a session directory.
package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/danielwarnersmith/trace/internal/digest"
	"github.com/danielwarnersmith/trace/internal/session"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	offsetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	kindSessionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	kindMediaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	succeededStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	failedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	startedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabTimeline
	tabMarkers
	tabVoiceNotes
	tabTranscript
	tabActions
	tabCount
)

var tabNames = [tabCount]string{
	"Summary", "Timeline", "Markers", "Voice Notes", "Transcript", "Actions",
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	snap      *session.Snapshot
	name      string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	sortAsc   bool
	// Markers tab: cursor position and expanded set
	markerCursor    int
	expandedMarkers map[int]bool
}

// New creates a new TUI model for a session snapshot.
func New(s *session.Snapshot) Model {
	return Model{
		snap:            s,
		name:            filepath.Base(s.Path),
		sortAsc:         true,
		expandedMarkers: make(map[int]bool),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4", "5", "6":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabTimeline {
				m.sortAsc = !m.sortAsc
				m.rebuild(tabTimeline)
				m.viewports[tabTimeline].GotoTop()
			}
		case "up", "k":
			if m.activeTab == tabMarkers && m.markerCursor > 0 {
				m.markerCursor--
				m.rebuild(tabMarkers)
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabMarkers && m.markerCursor < len(m.snap.Markers)-1 {
				m.markerCursor++
				m.rebuild(tabMarkers)
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabMarkers && len(m.snap.Markers) > 0 {
				if m.expandedMarkers[m.markerCursor] {
					delete(m.expandedMarkers, m.markerCursor)
				} else {
					m.expandedMarkers[m.markerCursor] = true
				}
				m.rebuild(tabMarkers)
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  trace  " + m.name)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-6 jump  q quit"
	switch m.activeTab {
	case tabTimeline:
		dir := "oldest first"
		if !m.sortAsc {
			dir = "newest first"
		}
		hint += "  s sort (" + dir + ")"
	case tabMarkers:
		hint += "  ↑/↓ select  enter expand/collapse"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuild(t tabID) {
	m.viewports[t].SetContent(m.renderTab(t))
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabTimeline:
		return m.renderTimeline()
	case tabMarkers:
		return m.renderMarkers()
	case tabVoiceNotes:
		return m.renderVoiceNotes()
	case tabTranscript:
		return m.renderTranscript()
	case tabActions:
		return m.renderActions()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func none() string {
	return dimStyle.Render("  (none)") + "\n"
}

func offset(ms int64) string {
	return offsetStyle.Render(fmt.Sprintf("%7s", digest.FormatOffset(ms)))
}

func (m *Model) renderSummary() string {
	doc := m.snap.Doc
	var sb strings.Builder
	sb.WriteString(heading("Session"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("ID:", doc.ID)
	if doc.Title != "" {
		row("Title:", doc.Title)
	}
	row("Status:", string(doc.Status))
	row("Started:", doc.StartTime)
	if doc.EndTime != "" {
		row("Ended:", doc.EndTime)
	}
	if doc.DurationMS != nil {
		row("Duration:", digest.FormatOffset(*doc.DurationMS))
	}
	row("Updated:", doc.UpdatedAt)
	if doc.DigestPath != nil {
		row("Digest:", *doc.DigestPath)
	}

	sb.WriteString(heading("Counts"))
	row("Media:", fmt.Sprintf("%d", len(doc.Media)))
	row("Markers:", fmt.Sprintf("%d", len(m.snap.Markers)))
	row("Voice Notes:", fmt.Sprintf("%d", len(m.snap.VoiceNotes)))
	row("Segments:", fmt.Sprintf("%d", len(m.snap.Transcript)))
	row("Action Runs:", fmt.Sprintf("%d", len(m.snap.Actions)))
	if m.snap.BadLines > 0 {
		row("Bad Lines:", failedStyle.Render(fmt.Sprintf("%d", m.snap.BadLines)))
	}

	if len(doc.Media) > 0 {
		sb.WriteString(heading("Media"))
		for _, md := range doc.Media {
			sb.WriteString(fmt.Sprintf("  %s  %-6s  %s  %s\n", offset(md.StartOffsetMS), md.Kind, md.Path, dimStyle.Render(md.MIME)))
		}
	}
	return sb.String()
}

func (m *Model) renderTimeline() string {
	var sb strings.Builder
	dir := "oldest first"
	if !m.sortAsc {
		dir = "newest first"
	}
	sb.WriteString(heading(fmt.Sprintf("Timeline (%s)", dir)))

	events := make([]session.TimelineEntry, len(m.snap.Timeline))
	copy(events, m.snap.Timeline)
	if !m.sortAsc {
		sort.SliceStable(events, func(i, j int) bool { return events[i].OffsetMS > events[j].OffsetMS })
	}
	if len(events) == 0 {
		sb.WriteString(none())
		return sb.String()
	}
	for _, ev := range events {
		style := kindSessionStyle
		if ev.Kind == session.KindMediaStart || ev.Kind == session.KindMediaEnd {
			style = kindMediaStyle
		}
		badge := style.Render(fmt.Sprintf("  %-14s", ev.Kind))
		sb.WriteString(offset(ev.OffsetMS) + badge + "  " + dimStyle.Render(ev.WallTime) + "\n")
	}
	return sb.String()
}

func (m *Model) renderMarkers() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Markers (%d)", len(m.snap.Markers))))
	if len(m.snap.Markers) == 0 {
		sb.WriteString(none())
		return sb.String()
	}
	for i, mk := range m.snap.Markers {
		expanded := m.expandedMarkers[i]
		toggle := dimStyle.Render("  ▶ ")
		if expanded {
			toggle = dimStyle.Render("  ▼ ")
		}
		label := mk.Label
		if label == "" {
			label = dimStyle.Render("(unlabelled)")
		}
		var tags string
		if len(mk.Tags) > 0 {
			tags = "  " + tagStyle.Render("#"+strings.Join(mk.Tags, " #"))
		}
		row := fmt.Sprintf("%s%s  %s%s", toggle, offset(mk.OffsetMS), label, tags)
		if i == m.markerCursor {
			row = selectedRowStyle.Width(m.width - 2).Render(row)
		}
		sb.WriteString(row + "\n")
		if expanded {
			detail := func(label, value string) {
				if value != "" {
					sb.WriteString("        " + labelStyle.Render(label) + " " + value + "\n")
				}
			}
			detail("id", mk.ID)
			detail("source", string(mk.Source))
			detail("note", mk.Note)
			detail("voice note", mk.VoiceNoteID)
			detail("created", mk.CreatedAt)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m *Model) renderVoiceNotes() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Voice Notes (%d)", len(m.snap.VoiceNotes))))
	if len(m.snap.VoiceNotes) == 0 {
		sb.WriteString(none())
		return sb.String()
	}
	for _, v := range m.snap.VoiceNotes {
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n", offset(v.OffsetMS), v.MediaPath, dimStyle.Render(digest.FormatOffset(v.DurationMS))))
		text := v.TranscriptText
		if text == "" {
			text = dimStyle.Render("(not transcribed)")
		}
		sb.WriteString("           " + text + "\n\n")
	}
	return sb.String()
}

func (m *Model) renderTranscript() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Transcript (%d segments)", len(m.snap.Transcript))))
	if len(m.snap.Transcript) == 0 {
		sb.WriteString(none())
		return sb.String()
	}
	for _, seg := range m.snap.Transcript {
		sb.WriteString(offset(seg.OffsetMS) + "  " + seg.Text + "\n")
	}
	return sb.String()
}

func (m *Model) renderActions() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Action Runs (%d)", len(m.snap.Actions))))
	if len(m.snap.Actions) == 0 {
		sb.WriteString(none())
		return sb.String()
	}
	for _, run := range m.snap.Actions {
		var status string
		switch run.Status {
		case session.ActionSucceeded:
			status = succeededStyle.Render(fmt.Sprintf("%-9s", run.Status))
		case session.ActionFailed:
			status = failedStyle.Render(fmt.Sprintf("%-9s", run.Status))
		default:
			status = startedStyle.Render(fmt.Sprintf("%-9s", run.Status))
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %-22s %s\n", dimStyle.Render(run.CreatedAt), status, run.Action, dimStyle.Render(run.ID)))
		if run.Error != "" {
			sb.WriteString("      " + failedStyle.Render(run.Error) + "\n")
		}
	}
	return sb.String()
}

// Run starts the TUI for the given snapshot.
func Run(s *session.Snapshot) error {
	p := tea.NewProgram(New(s), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
