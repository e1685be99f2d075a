package tui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"incident-search/internal/domain"
)

// Searcher is the TUI-facing subset of the search service.
type Searcher interface {
	FindSimilar(ctx context.Context, query string, k int) ([]domain.QueryResult, error)
}

type resultsMsg struct {
	query   string
	results []domain.QueryResult
	err     error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service   Searcher
	k         int
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.QueryResult
	summary   string
	status    string
	cursor    int
	ready     bool
	searching bool
	lastQuery string
}

// New creates a new TUI model instance.
func New(service Searcher, k int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Describe the incident or issue and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{service: service, k: k, input: ti, viewport: vp, summary: summary, status: "Loaded. Type to search."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// search runs the query off the update loop.
func (m Model) search(q string) tea.Cmd {
	svc, k := m.service, m.k
	return func() tea.Msg {
		res, err := svc.FindSimilar(context.Background(), q, k)
		return resultsMsg{query: q, results: res, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case resultsMsg:
		m.searching = false
		switch {
		case errors.Is(msg.err, domain.ErrEmptyQuery):
			m.status = "Please enter a description."
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
			m.results = nil
		default:
			m.status = fmt.Sprintf("%d similar incidents for %q", len(msg.results), msg.query)
			m.results = msg.results
			m.cursor = 0
			m.lastQuery = msg.query
		}
		m.viewport.SetContent(m.renderCurrentResult())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.searching {
				return m, nil
			}
			m.searching = true
			m.status = "Searching..."
			return m, m.search(m.input.Value())
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Incident Similarity Search")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	return RenderResult(m.results[m.cursor], len(m.results), m.lastQuery)
}

// RenderResult formats one ranked incident with its probable causes and suggestions.
func RenderResult(r domain.QueryResult, total int, query string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("#%d/%d: Incident ID %s", r.Rank, total, r.Record.ID)))
	fmt.Fprintf(&b, "  distance=%.4f\n\n", r.Distance)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Date:"), r.Record.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Department:"), r.Record.Department)
	fmt.Fprintf(&b, "%s %s / %s %s\n", labelStyle.Render("Model:"), r.Record.Model, labelStyle.Render("Sub-Assembly:"), r.Record.SubAssembly)
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("Description:"), highlightTerms(r.Record.Description, query))
	for _, c := range r.Annotation.Causes {
		fmt.Fprintf(&b, "%s %s\n", causeStyle.Render("Potential Cause:"), c)
	}
	for _, s := range r.Annotation.Suggestions {
		fmt.Fprintf(&b, "%s %s\n", suggestionStyle.Render("Suggestion:"), s)
	}
	return b.String()
}

var (
	resultBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	titleStyle      = lipgloss.NewStyle().Bold(true)
	labelStyle      = lipgloss.NewStyle().Bold(true)
	causeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	unicodeWordRe   = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
)

// highlightTerms emphasizes description words that also occur in the query.
func highlightTerms(text, query string) string {
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return text
	}
	return unicodeWordRe.ReplaceAllStringFunc(text, func(w string) string {
		if _, ok := qTokens[strings.ToLower(w)]; ok {
			return highlightStyle.Render(w)
		}
		return w
	})
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}
