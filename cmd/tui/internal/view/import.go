package view

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/tally/internal/importer"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateFilePick importState = iota
	importStatePreviewing
	importStatePolicy
	importStateImporting
	importStateResult
)

type ImportModel struct {
	CommonModel
	coord    *importer.Coordinator
	ledger   *ledger.Ledger
	currency string

	state      importState
	filePicker filepicker.Model
	spinner    spinner.Model
	path       string

	preview *importer.Preview
	form    *huh.Form
	policy  *importer.Policy

	report  *importer.Report
	details list.Model

	status string
	err    error
}

func NewImportModel(coord *importer.Coordinator, l *ledger.Ledger, currency string) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return ImportModel{
		coord:      coord,
		ledger:     l,
		currency:   currency,
		filePicker: fp,
		spinner:    sp,
		policy:     new(importer.PolicySkipDuplicates),
	}
}

func (m ImportModel) Title() string { return "Import into " + m.ledger.Name }

func (m ImportModel) ShortHelp() string {
	switch m.state {
	case importStatePolicy:
		return "Enter: import | Esc: pick another file"
	case importStateResult:
		return "Up/Down: scroll | Esc: back"
	}

	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.filePicker.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

	case spinner.TickMsg:
		if m.state != importStatePreviewing && m.state != importStateImporting {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case previewResultMsg:
		if msg.err != nil {
			m.state = importStateResult
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		m.preview = msg.preview
		m.state = importStatePolicy
		m.form = m.policyForm()

		return m, m.form.Init()

	case importResultMsg:
		m.state = importStateResult
		m.report = msg.report
		m.err = msg.err

		switch {
		case msg.report == nil:
			m.status = fmt.Sprintf("Error: %v", msg.err)
		case msg.err != nil:
			m.status = fmt.Sprintf("Import stopped after %d transactions: %v", msg.report.Imported, msg.err)
		default:
			m.status = fmt.Sprintf("Imported %d transactions.", msg.report.Imported)
		}

		if msg.report != nil {
			m.details = m.detailList(msg.report)
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.filePicker.SetHeight(max(msg.Height-8, 5))

		if m.state == importStateResult && m.report != nil {
			m.details.SetSize(msg.Width-4, msg.Height-14)
		}
	}

	switch m.state {
	case importStateFilePick:
		return m.updateFilePick(msg)
	case importStatePolicy:
		return m.updatePolicy(msg)
	case importStateResult:
		if m.report != nil {
			var cmd tea.Cmd
			m.details, cmd = m.details.Update(msg)

			return m, cmd
		}
	}

	return m, nil
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStatePolicy:
		m.state = importStateFilePick
		m.form = nil
		m.preview = nil

		return m, m.filePicker.Init()
	case importStatePreviewing, importStateImporting:
		return m, nil
	}

	return m, Back
}

func (m ImportModel) updateFilePick(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.path = path
		m.state = importStatePreviewing
		m.status = fmt.Sprintf("Checking %s for duplicates...", filepath.Base(path))

		return m, tea.Batch(m.spinner.Tick, m.previewCmd(path))
	}

	return m, cmd
}

func (m ImportModel) policyForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[importer.Policy]().
				Key("policy").
				Title("Duplicates").
				Options(
					huh.NewOption("Skip duplicates", importer.PolicySkipDuplicates),
					huh.NewOption("Import anyway", importer.PolicyImportAnyway),
					huh.NewOption("Replace existing", importer.PolicyReplaceExisting),
				).
				Value(m.policy),
		),
	).WithWidth(45).WithShowHelp(false)
}

func (m ImportModel) updatePolicy(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	policy := *m.policy
	m.form = nil
	m.state = importStateImporting
	m.status = fmt.Sprintf("Importing %s (%s)...", filepath.Base(m.path), policy)

	return m, tea.Batch(m.spinner.Tick, m.importCmd(m.path, policy))
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("Select a statement to import into %s:\n\n%s", activeStyle(m.ledger.Name), m.filePicker.View()),
		)
	case importStatePreviewing, importStateImporting:
		return lipgloss.NewStyle().Padding(2).Render(m.spinner.View() + " " + m.status)
	case importStatePolicy:
		return lipgloss.NewStyle().Padding(1).Render(
			lipgloss.JoinHorizontal(lipgloss.Top, m.previewView(), panel("Import", m.form.View())),
		)
	case importStateResult:
		return m.viewResult()
	}

	return ""
}

func (m ImportModel) previewView() string {
	p := m.preview
	if p == nil {
		return ""
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(fmt.Sprintf(
		"%s\n\nNew:        %d\nDuplicates: %s\nSimilar:    %s\nMalformed:  %s",
		filepath.Base(m.path),
		p.Unique,
		warnStyle.Render(fmt.Sprint(p.Duplicates)),
		warnStyle.Render(fmt.Sprint(p.Near)),
		errorStyle.Render(fmt.Sprint(p.Malformed)),
	))
}

func (m ImportModel) viewResult() string {
	style := lipgloss.NewStyle().Padding(1, 2)

	status := successStyle.Render(m.status)
	if m.err != nil {
		status = errorStyle.Render(m.status)
	}

	if m.report == nil {
		return style.Render(status + "\n\n(Esc to go back)")
	}

	r := m.report
	summary := fmt.Sprintf(
		"Tag: %s  |  Imported: %d  |  Skipped: %d  |  Replaced: %d  |  Failed: %d",
		activeStyle(r.ImportTag), r.Imported, r.SkippedDuplicate, r.Replaced, r.FailedValidation,
	)

	body := status + "\n" + summary
	if len(m.details.Items()) > 0 {
		body += "\n\n" + m.details.View()
	}

	return style.Render(body + "\n\n(Esc to go back)")
}

// detailList lists the rows that need attention after an import.
func (m ImportModel) detailList(r *importer.Report) list.Model {
	items := make([]list.Item, 0, len(r.Failures)+len(r.Suggestions))
	for _, f := range r.Failures {
		items = append(items, reportItem{row: f.Row, title: "failed", detail: f.Reason})
	}

	for _, s := range r.Suggestions {
		matches := make([]string, 0, len(s.Candidates))
		for _, c := range s.Candidates {
			matches = append(matches, fmt.Sprintf("#%d %s %s %q",
				c.Transaction.Sequence,
				FormatDate(c.Transaction.Date),
				FormatAmount(c.Transaction.Amount, m.currency),
				c.Transaction.Description,
			))
		}

		items = append(items, reportItem{
			row:    s.Row,
			title:  fmt.Sprintf("similar to existing: %s %s", FormatAmount(s.Entry.Amount, m.currency), s.Entry.Description),
			detail: strings.Join(matches, "; "),
		})
	}

	l := list.New(items, reportDelegate{}, 80, 12)
	l.Title = "Rows to review"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return l
}

// Messages

type previewResultMsg struct {
	preview *importer.Preview
	err     error
}

type importResultMsg struct {
	report *importer.Report
	err    error
}

func (m ImportModel) previewCmd(path string) tea.Cmd {
	id := m.ledger.ID

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return previewResultMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		p, err := m.coord.PreviewFile(ctx, id, importer.FormatCSV, f)

		return previewResultMsg{preview: p, err: err}
	}
}

func (m ImportModel) importCmd(path string, policy importer.Policy) tea.Cmd {
	id := m.ledger.ID

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return importResultMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		report, err := m.coord.ImportFile(ctx, id, importer.FormatCSV, f, policy, importer.Options{
			FileName: filepath.Base(path),
		})

		return importResultMsg{report: report, err: err}
	}
}

// Report list item

type reportItem struct {
	row    int
	title  string
	detail string
}

func (i reportItem) Title() string       { return i.title }
func (i reportItem) Description() string { return i.detail }
func (i reportItem) FilterValue() string { return "" }

type reportDelegate struct{}

func (d reportDelegate) Height() int                             { return 2 }
func (d reportDelegate) Spacing() int                            { return 0 }
func (d reportDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d reportDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(reportItem)
	if !ok {
		return
	}

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
	}

	fmt.Fprintf(w, "%sRow %d: %s\n", cursor, item.row, item.title)
	fmt.Fprintf(w, "      %s\n", faintStyle.Render(item.detail))
}
