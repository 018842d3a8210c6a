package ui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/five82/vmlog/internal/logevent"
)

// DefaultMaxLines bounds the scrollback kept by the viewer.
const DefaultMaxLines = 5000

// eventMsg carries one rendered event into the model.
type eventMsg struct {
	line  string
	level logevent.Level
}

// doneMsg reports that the tail session has ended.
type doneMsg struct {
	err error
}

// Model is the Bubble Tea model of the log viewer.
type Model struct {
	keys    keyMap
	help    help.Model
	theme   Theme
	onTheme func(string)

	title    string
	maxLines int

	width  int
	height int
	ready  bool

	viewport viewport.Model
	entries  []string
	counts   map[logevent.Level]int
	follow   bool
	showHelp bool

	searchActive  bool
	searchInput   textinput.Model
	searchRegex   *regexp.Regexp
	searchMatches []int // entry indices
	searchIdx     int

	done bool
	err  error
}

// New creates a viewer model.
func New(opts Options) Model {
	maxLines := opts.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	title := opts.Title
	if title == "" {
		title = "vmlog"
	}

	ti := textinput.New()
	ti.Placeholder = "Search..."
	ti.CharLimit = 100
	ti.Prompt = "/"

	return Model{
		keys:        DefaultKeyMap(),
		help:        help.New(),
		theme:       GetTheme(opts.Theme),
		onTheme:     opts.OnTheme,
		title:       title,
		maxLines:    maxLines,
		counts:      make(map[logevent.Level]int),
		follow:      true,
		searchInput: ti,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(m.viewportWidth(), m.viewportHeight())
			m.ready = true
		}
		m.help.Width = msg.Width
		m.refreshViewport()
		return m, nil

	case eventMsg:
		m.appendEntry(msg)
		return m, nil

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func (m *Model) appendEntry(msg eventMsg) {
	m.entries = append(m.entries, strings.TrimSuffix(msg.line, "\n"))
	m.counts[msg.level]++
	if overflow := len(m.entries) - m.maxLines; overflow > 0 {
		m.entries = append([]string(nil), m.entries[overflow:]...)
	}
	if m.searchRegex != nil {
		m.findMatches()
	}
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.Width = m.viewportWidth()
	m.viewport.Height = m.viewportHeight()
	m.viewport.SetContent(m.renderContent())
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) viewportWidth() int {
	return max(m.width-2, 1)
}

// viewportHeight leaves room for the header, the box border and the status bar.
func (m Model) viewportHeight() int {
	return max(m.height-4, 1)
}

func (m Model) renderContent() string {
	if m.searchRegex == nil {
		return strings.Join(m.entries, "\n")
	}
	matched := make(map[int]bool, len(m.searchMatches))
	for _, idx := range m.searchMatches {
		matched[idx] = true
	}
	marker := m.theme.Styles().AccentText.Render("▌")
	var b strings.Builder
	for i, entry := range m.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		if matched[i] {
			b.WriteString(marker)
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(entry)
	}
	return b.String()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchActive {
		return m.handleSearchInput(msg)
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		if m.onTheme != nil {
			m.onTheme(m.theme.Name)
		}
		m.refreshViewport()

	case key.Matches(msg, m.keys.ToggleFollow):
		m.follow = !m.follow
		if m.follow {
			m.viewport.GotoBottom()
		}

	case key.Matches(msg, m.keys.ClearView):
		m.entries = nil
		m.searchMatches = nil
		m.searchIdx = 0
		m.refreshViewport()

	case key.Matches(msg, m.keys.Search):
		m.searchActive = true
		m.searchInput.SetValue("")
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.NextMatch):
		m.jumpMatch(1)

	case key.Matches(msg, m.keys.PrevMatch):
		m.jumpMatch(-1)

	case key.Matches(msg, m.keys.Escape):
		m.clearSearch()
		m.refreshViewport()

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		m.follow = false

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		m.follow = true

	case key.Matches(msg, m.keys.Down):
		m.viewport.ScrollDown(1)
		m.follow = m.viewport.AtBottom()

	case key.Matches(msg, m.keys.Up):
		m.viewport.ScrollUp(1)
		m.follow = false

	case key.Matches(msg, m.keys.HalfPageDown):
		m.viewport.HalfPageDown()
		m.follow = m.viewport.AtBottom()

	case key.Matches(msg, m.keys.HalfPageUp):
		m.viewport.HalfPageUp()
		m.follow = false

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.PageDown()
		m.follow = m.viewport.AtBottom()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.PageUp()
		m.follow = false
	}
	return m, nil
}

func (m Model) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		query := m.searchInput.Value()
		m.searchActive = false
		m.searchInput.Blur()
		if query == "" {
			m.clearSearch()
			m.refreshViewport()
			return m, nil
		}
		re, err := regexp.Compile("(?i)" + query)
		if err != nil {
			re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
		}
		m.searchRegex = re
		m.findMatches()
		m.searchIdx = max(len(m.searchMatches)-1, 0)
		m.refreshViewport()
		m.scrollToMatch()
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.searchActive = false
		m.searchInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m *Model) clearSearch() {
	m.searchRegex = nil
	m.searchMatches = nil
	m.searchIdx = 0
}

func (m *Model) findMatches() {
	m.searchMatches = m.searchMatches[:0]
	for i, entry := range m.entries {
		if m.searchRegex.MatchString(ansi.Strip(entry)) {
			m.searchMatches = append(m.searchMatches, i)
		}
	}
	if m.searchIdx >= len(m.searchMatches) {
		m.searchIdx = max(len(m.searchMatches)-1, 0)
	}
}

func (m *Model) jumpMatch(delta int) {
	n := len(m.searchMatches)
	if n == 0 {
		return
	}
	m.searchIdx = ((m.searchIdx+delta)%n + n) % n
	m.scrollToMatch()
}

func (m *Model) scrollToMatch() {
	if len(m.searchMatches) == 0 {
		return
	}
	m.follow = false
	m.viewport.SetYOffset(m.lineOffset(m.searchMatches[m.searchIdx]))
}

// lineOffset returns the first viewport line of entry idx. Entries with a
// trace span several lines.
func (m Model) lineOffset(idx int) int {
	offset := 0
	for _, entry := range m.entries[:idx] {
		offset += strings.Count(entry, "\n") + 1
	}
	return offset
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	styles := m.theme.Styles()
	header := styles.Header.Width(m.width).Render(m.renderHeader(styles))
	box := styles.Box.Render(m.viewport.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, box, m.renderStatus(styles))
}

func (m Model) renderHeader(styles Styles) string {
	parts := []string{
		styles.AccentText.Bold(true).Render(m.title),
		styles.MutedText.Render(fmt.Sprintf("%d lines", len(m.entries))),
	}
	for _, lvl := range []logevent.Level{logevent.LevelError, logevent.LevelWarn} {
		if n := m.counts[lvl]; n > 0 {
			parts = append(parts, styles.LevelBadge(lvl).Render(fmt.Sprintf("%s %d", lvl, n)))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderStatus(styles Styles) string {
	if m.searchActive {
		return m.searchInput.View()
	}

	var state string
	switch {
	case m.done && m.err != nil:
		state = styles.DangerText.Render("ended: " + m.err.Error())
	case m.done:
		state = styles.WarningText.Render("ended")
	case m.follow:
		state = styles.SuccessText.Render("following")
	default:
		state = styles.WarningText.Render("paused")
	}

	if m.searchRegex != nil {
		pos := 0
		if len(m.searchMatches) > 0 {
			pos = m.searchIdx + 1
		}
		state += styles.FaintText.Render(" - ") +
			styles.AccentText.Render("/"+strings.TrimPrefix(m.searchRegex.String(), "(?i)")) +
			styles.FaintText.Render(fmt.Sprintf(" %d/%d", pos, len(m.searchMatches)))
	}
	return state + "  " + m.help.View(m.keys)
}

func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")
	full := m.help
	full.ShowAll = true
	b.WriteString(full.View(m.keys))
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render("Press any key to close"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, b.String())
}
