package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/scenario"
)

type listState int

const (
	listStateBrowse listState = iota
	listStateCreate
	listStateCopy
	listStateDelete
)

// OpenLedgerMsg asks the app to show the transactions of a ledger.
type OpenLedgerMsg struct {
	Ledger *ledger.Ledger
}

// ListModel is the ledger picker.
type ListModel struct {
	CommonModel
	ledgers   *ledger.Service
	scenarios *scenario.Manager

	state   listState
	table   table.Model
	items   []*ledger.Ledger
	form    *huh.Form
	loading bool
	err     error
	status  string

	mode ledger.Kind
	in   *ledgerInput
}

type ledgerInput struct {
	name    string
	notes   string
	confirm bool
}

func NewListModel(ledgers *ledger.Service, scenarios *scenario.Manager) ListModel {
	columns := []table.Column{
		{Title: "Name", Width: 32},
		{Title: "Kind", Width: 10},
		{Title: "Seq", Width: 8},
		{Title: "Updated", Width: 12},
		{Title: "Notes", Width: 30},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	t.SetStyles(tableStyles())

	return ListModel{
		ledgers:   ledgers,
		scenarios: scenarios,
		table:     t,
		loading:   true,
	}
}

func (m ListModel) Title() string { return "Ledgers" }

func (m ListModel) ShortHelp() string {
	if m.state != listStateBrowse {
		return "Navigate form | Esc: cancel"
	}

	return "Enter: open | n: new | c: copy | w: what-if | x: delete | r: refresh | Esc: back"
}

func (m ListModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m ListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadLedgersMsg:
		m.loading = false
		m.err = msg.err
		m.items = msg.ledgers
		m.refreshTable()

		return m, nil

	case ledgerSavedMsg:
		m.state = listStateBrowse
		m.form = nil
		m.table.Focus()

		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.status = msg.status

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.table.SetHeight(max(msg.Height-10, 5))

		return m, nil
	}

	if m.state == listStateBrowse {
		return m.updateBrowse(msg)
	}

	return m.updateForm(msg)
}

func (m ListModel) selected() *ledger.Ledger {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.items) {
		return nil
	}

	return m.items[idx]
}

func (m ListModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "enter":
			if l := m.selected(); l != nil {
				return m, func() tea.Msg { return OpenLedgerMsg{Ledger: l} }
			}

			return m, nil
		case "n":
			return m.enterCreate()
		case "c":
			return m.enterCopy(ledger.KindCopy)
		case "w":
			return m.enterCopy(ledger.KindWhatIf)
		case "x":
			return m.enterDelete()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m ListModel) enterCreate() (tea.Model, tea.Cmd) {
	m.in = &ledgerInput{}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Name").
				Value(&m.in.name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name cannot be empty")
					}

					return nil
				}),

			huh.NewText().
				Key("notes").
				Title("Notes").
				Value(&m.in.notes),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = listStateCreate
	m.table.Blur()

	return m, m.form.Init()
}

func (m ListModel) enterCopy(mode ledger.Kind) (tea.Model, tea.Cmd) {
	src := m.selected()
	if src == nil {
		return m, nil
	}

	m.mode = mode
	m.in = &ledgerInput{}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Name").
				Placeholder(scenario.DefaultName(src.Name, mode)).
				Value(&m.in.name),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = listStateCopy
	m.table.Blur()

	return m, m.form.Init()
}

func (m ListModel) enterDelete() (tea.Model, tea.Cmd) {
	l := m.selected()
	if l == nil {
		return m, nil
	}

	m.in = &ledgerInput{}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(fmt.Sprintf("Delete %q and all its transactions?", l.Name)).
				Affirmative("Delete").
				Negative("Keep").
				Value(&m.in.confirm),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = listStateDelete
	m.table.Blur()

	return m, m.form.Init()
}

func (m ListModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = listStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	switch m.state {
	case listStateCreate:
		cmd = m.createCmd()
	case listStateCopy:
		cmd = m.copyCmd()
	case listStateDelete:
		cmd = m.deleteCmd()
	}

	m.state = listStateBrowse
	m.form = nil
	m.table.Focus()

	return m, cmd
}

func (m ListModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading ledgers...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := tableView

	if m.state != listStateBrowse && m.form != nil {
		title := "New Ledger"

		switch m.state {
		case listStateCopy:
			title = "Copy Ledger"
			if m.mode == ledger.KindWhatIf {
				title = "New What-If"
			}
		case listStateDelete:
			title = "Delete Ledger"
		}

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel(title, m.form.View()))
	}

	if m.status != "" {
		content = faintStyle.Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *ListModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.items))
	for _, l := range m.items {
		rows = append(rows, table.Row{
			l.Name,
			string(l.Kind),
			fmt.Sprintf("%d", l.Sequence),
			FormatDate(l.UpdatedAt),
			firstLine(l.Notes),
		})
	}

	m.table.SetRows(rows)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// Messages

type loadLedgersMsg struct {
	ledgers []*ledger.Ledger
	err     error
}

type ledgerSavedMsg struct {
	status string
	err    error
}

func (m ListModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		ledgers, err := m.ledgers.ListLedgers(ctx)

		return loadLedgersMsg{ledgers: ledgers, err: err}
	}
}

func (m ListModel) createCmd() tea.Cmd {
	name, notes := m.in.name, m.in.notes

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		l, err := m.ledgers.CreateLedger(ctx, ledger.CreateLedgerParams{Name: name, Notes: notes})
		if err != nil {
			return ledgerSavedMsg{err: err}
		}

		return ledgerSavedMsg{status: fmt.Sprintf("Created %q.", l.Name)}
	}
}

func (m ListModel) copyCmd() tea.Cmd {
	src := m.selected()
	if src == nil {
		return nil
	}

	name, mode := m.in.name, m.mode

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		l, err := m.scenarios.CopyLedger(ctx, src.ID, mode, name)
		if err != nil {
			return ledgerSavedMsg{err: err}
		}

		return ledgerSavedMsg{status: fmt.Sprintf("Created %q from %q.", l.Name, src.Name)}
	}
}

func (m ListModel) deleteCmd() tea.Cmd {
	l := m.selected()
	if l == nil || !m.in.confirm {
		return func() tea.Msg { return ledgerSavedMsg{} }
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if err := m.ledgers.DeleteLedger(ctx, l.ID); err != nil {
			return ledgerSavedMsg{err: err}
		}

		return ledgerSavedMsg{status: fmt.Sprintf("Deleted %q.", l.Name)}
	}
}
