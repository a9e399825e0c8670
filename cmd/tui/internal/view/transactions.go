package view

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/matching"
)

type txState int

const (
	txStateList txState = iota
	txStateTimeframe
	txStateEditing
	txStateAdding
)

// OpenImportMsg asks the app to start an import into a ledger.
type OpenImportMsg struct {
	Ledger *ledger.Ledger
}

// txItem wraps a transaction to implement list.Item.
type txItem struct {
	tx       *ledger.Transaction
	currency string
}

func (i txItem) Title() string {
	prefix := ""
	if i.tx.IsChild() {
		prefix = "  └ "
	}

	return fmt.Sprintf("%s%s  #%-5d %12s  %12s  %s",
		prefix,
		FormatDate(i.tx.Date),
		i.tx.Sequence,
		FormatAmount(i.tx.Amount, i.currency),
		FormatAmount(i.tx.RunningBalance, i.currency),
		i.tx.Description,
	)
}

func (i txItem) Description() string {
	parts := []string{i.tx.Category}
	if i.tx.Vendor != "" {
		parts = append(parts, i.tx.Vendor)
	}

	if i.tx.IsBreakoutParent {
		parts = append(parts, "breakout")
	}

	if i.tx.ImportTag != "" {
		parts = append(parts, i.tx.ImportTag)
	}

	return strings.Join(parts, " · ")
}

func (i txItem) FilterValue() string {
	return i.tx.Description + " " + i.tx.Category
}

// TransactionsModel shows one ledger with its running balances.
type TransactionsModel struct {
	CommonModel
	ledgers  *ledger.Service
	matching *matching.Service
	currency string

	ledger          *ledger.Ledger
	state           txState
	timeframePicker TimeframePicker
	timeframe       string
	rng             ledger.OrderRange
	list            list.Model
	form            *huh.Form
	txs             []*ledger.Transaction
	selectedTx      *ledger.Transaction

	loading bool
	status  string

	in *txInput
}

// txInput holds the form bindings, shared by every copy of the model.
type txInput struct {
	date     string
	amount   string
	desc     string
	category string
	vendor   string
	remember bool
}

func NewTransactionsModel(ledgers *ledger.Service, matchSvc *matching.Service, l *ledger.Ledger, currency string) TransactionsModel {
	li := list.New([]list.Item{}, txItemDelegate{}, 0, 0)
	li.Title = l.Name
	li.SetShowStatusBar(true)
	li.SetFilteringEnabled(true)
	li.SetShowHelp(true)

	return TransactionsModel{
		ledgers:         ledgers,
		matching:        matchSvc,
		currency:        currency,
		ledger:          l,
		timeframePicker: NewTimeframePicker(TimeframeAll),
		timeframe:       TimeframeAll.String(),
		rng:             ledger.All,
		list:            li,
		loading:         true,
	}
}

func (m TransactionsModel) Title() string { return m.ledger.Name }

func (m TransactionsModel) ShortHelp() string {
	switch m.state {
	case txStateTimeframe:
		return "Esc: back | Enter: select"
	case txStateEditing, txStateAdding:
		return "Esc: cancel | Enter/Tab: navigate form"
	}

	return "Esc: back | a: add | e: edit | x: delete | t: timeframe | R: recalculate | i: import | /: filter"
}

func (m TransactionsModel) Init() tea.Cmd {
	return m.loadTxsCmd()
}

func (m TransactionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TimeframeSelectedMsg:
		m.timeframe = msg.Label
		m.rng = msg.Range
		m.loading = true
		m.state = txStateList

		return m, m.loadTxsCmd()

	case loadTxsMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.txs = msg.txs
		m.refreshListItems()

		if len(msg.txs) == 0 {
			m.status = "No transactions found."
		}

		return m, nil

	case txChangedMsg:
		m.state = txStateList
		m.form = nil

		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.status = msg.status

		return m, m.loadTxsCmd()

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)

		return m, nil
	}

	switch m.state {
	case txStateTimeframe:
		return m.updateTimeframe(msg)
	case txStateList:
		return m.updateList(msg)
	case txStateEditing, txStateAdding:
		return m.updateForm(msg)
	}

	return m, nil
}

func (m TransactionsModel) updateTimeframe(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc && m.timeframePicker.IsSelecting() {
			m.state = txStateList
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.timeframePicker, cmd = m.timeframePicker.Update(msg)

	return m, cmd
}

func (m TransactionsModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch keyMsg.String() {
		case "esc":
			if m.list.FilterState() == list.FilterApplied {
				break
			}

			return m, Back
		case "enter", "e":
			return m.startEditing()
		case "a":
			return m.startAdding()
		case "x":
			return m, m.deleteCmd()
		case "t":
			m.state = txStateTimeframe
			return m, nil
		case "R":
			return m, m.recalculateCmd()
		case "i":
			l := m.ledger
			return m, func() tea.Msg { return OpenImportMsg{Ledger: l} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	return m, cmd
}

func (m TransactionsModel) startEditing() (tea.Model, tea.Cmd) {
	selected, ok := m.list.SelectedItem().(txItem)
	if !ok {
		return m, nil
	}

	m.selectedTx = selected.tx
	m.in = &txInput{
		desc:     selected.tx.Description,
		category: selected.tx.Category,
		vendor:   selected.tx.Vendor,
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("description").
				Title("Description").
				Value(&m.in.desc).
				Validate(notEmpty("description")),

			huh.NewInput().
				Key("category").
				Title("Category").
				Value(&m.in.category).
				Validate(notEmpty("category")),

			huh.NewInput().
				Key("vendor").
				Title("Vendor (optional)").
				Value(&m.in.vendor),

			huh.NewConfirm().
				Key("remember").
				Title("Classify future imports like this?").
				Affirmative("Yes").
				Negative("No").
				Value(&m.in.remember),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = txStateEditing

	return m, m.form.Init()
}

func (m TransactionsModel) startAdding() (tea.Model, tea.Cmd) {
	m.selectedTx = nil
	m.in = &txInput{date: FormatDate(time.Now())}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("date").
				Title("Date").
				Placeholder("YYYY-MM-DD").
				Value(&m.in.date).
				Validate(func(s string) error {
					_, err := time.Parse(time.DateOnly, s)
					return err
				}),

			huh.NewInput().
				Key("amount").
				Title("Amount").
				Placeholder("-12.50").
				Value(&m.in.amount).
				Validate(func(s string) error {
					_, err := decimal.NewFromString(strings.TrimSpace(s))
					return err
				}),

			huh.NewInput().
				Key("description").
				Title("Description").
				Value(&m.in.desc).
				Validate(notEmpty("description")),

			huh.NewInput().
				Key("category").
				Title("Category").
				Value(&m.in.category).
				Validate(notEmpty("category")),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = txStateAdding

	return m, m.form.Init()
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}

		return nil
	}
}

func (m TransactionsModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = txStateList
			m.form = nil

			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if m.state == txStateAdding {
		cmd = m.createCmd()
	} else {
		cmd = m.saveTxCmd()
	}

	m.state = txStateList
	m.form = nil

	return m, cmd
}

func (m TransactionsModel) View() string {
	switch m.state {
	case txStateTimeframe:
		return lipgloss.NewStyle().Padding(1).Render(m.timeframePicker.View())

	case txStateList:
		if m.loading {
			return lipgloss.NewStyle().Padding(2).Render("Loading transactions...")
		}

		header := fmt.Sprintf("%s  |  Timeframe: %s  |  Balance: %s",
			activeStyle(string(m.ledger.Kind)),
			activeStyle(m.timeframe),
			activeStyle(FormatAmount(m.closingBalance(), m.currency)),
		)

		statusLine := ""
		if m.status != "" {
			statusLine = faintStyle.Render(m.status) + "\n"
		}

		return lipgloss.NewStyle().Padding(1).Render(header + "\n" + statusLine + m.list.View())

	case txStateEditing, txStateAdding:
		if m.form == nil {
			return ""
		}

		title := "New Transaction"
		if m.state == txStateEditing {
			title = m.txInfoView()
		}

		return lipgloss.NewStyle().Padding(1).Render(panel(title, m.form.View()))
	}

	return ""
}

// closingBalance is the running balance of the last top-level transaction shown.
func (m TransactionsModel) closingBalance() decimal.Decimal {
	for i := len(m.txs) - 1; i >= 0; i-- {
		if !m.txs[i].IsChild() {
			return m.txs[i].RunningBalance
		}
	}

	return decimal.Zero
}

func (m TransactionsModel) txInfoView() string {
	if m.selectedTx == nil {
		return ""
	}

	return fmt.Sprintf(
		"Date: %s  |  #%d  |  Amount: %s\nBalance: %s",
		FormatDate(m.selectedTx.Date),
		m.selectedTx.Sequence,
		FormatAmount(m.selectedTx.Amount, m.currency),
		FormatAmount(m.selectedTx.RunningBalance, m.currency),
	)
}

func (m *TransactionsModel) refreshListItems() {
	items := make([]list.Item, len(m.txs))
	for i, tx := range m.txs {
		items[i] = txItem{tx: tx, currency: m.currency}
	}

	m.list.SetItems(items)
}

// Messages

type loadTxsMsg struct {
	txs []*ledger.Transaction
	err error
}

type txChangedMsg struct {
	status string
	err    error
}

func (m TransactionsModel) loadTxsCmd() tea.Cmd {
	id, rng := m.ledger.ID, m.rng

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		txs, err := m.ledgers.List(ctx, id, rng)

		return loadTxsMsg{txs: WithChildren(txs), err: err}
	}
}

// WithChildren places every breakout child right after its parent.
func WithChildren(txs []*ledger.Transaction) []*ledger.Transaction {
	children := make(map[uuid.UUID][]*ledger.Transaction)
	for _, tx := range txs {
		if tx.IsChild() {
			children[*tx.ParentID] = append(children[*tx.ParentID], tx)
		}
	}

	out := make([]*ledger.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.IsChild() {
			continue
		}

		out = append(out, tx)
		out = append(out, children[tx.ID]...)
	}

	return out
}

func (m TransactionsModel) recalculateCmd() tea.Cmd {
	id := m.ledger.ID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		n, err := m.ledgers.Recalculate(ctx, id, ledger.FromStart)
		if err != nil {
			return txChangedMsg{err: err}
		}

		return txChangedMsg{status: fmt.Sprintf("Recalculated %d balances.", n)}
	}
}

func (m TransactionsModel) createCmd() tea.Cmd {
	id := m.ledger.ID
	date, _ := time.Parse(time.DateOnly, m.in.date)
	amount, _ := decimal.NewFromString(strings.TrimSpace(m.in.amount))
	params := ledger.CreateParams{
		Date:        date,
		Amount:      amount,
		Description: m.in.desc,
		Category:    m.in.category,
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		tx, err := m.ledgers.Create(ctx, id, params)
		if err != nil {
			return txChangedMsg{err: err}
		}

		return txChangedMsg{status: fmt.Sprintf("Added #%d.", tx.Sequence)}
	}
}

func (m TransactionsModel) deleteCmd() tea.Cmd {
	selected, ok := m.list.SelectedItem().(txItem)
	if !ok {
		return nil
	}

	tx := selected.tx

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if err := m.ledgers.Delete(ctx, tx.ID, ledger.DeleteOptions{RecomputeParent: tx.IsChild()}); err != nil {
			return txChangedMsg{err: err}
		}

		return txChangedMsg{status: fmt.Sprintf("Deleted #%d.", tx.Sequence)}
	}
}

func (m TransactionsModel) saveTxCmd() tea.Cmd {
	tx := m.selectedTx
	desc := strings.TrimSpace(m.in.desc)
	category := strings.TrimSpace(m.in.category)
	vendor := strings.TrimSpace(m.in.vendor)
	remember := m.in.remember
	original := tx.Description

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		_, err := m.ledgers.Update(ctx, tx.ID, ledger.UpdateParams{
			Description: &desc,
			Category:    &category,
			Vendor:      &vendor,
		}, ledger.UpdateOptions{})
		if err != nil {
			return txChangedMsg{err: err}
		}

		if remember && m.matching != nil {
			rule := matching.Rule{RawPattern: original, Category: category, Vendor: vendor}
			if desc != original {
				rule.Description = desc
			}

			if _, err := m.matching.Learn(ctx, rule); err != nil {
				return txChangedMsg{err: fmt.Errorf("saved, but the rule was not learned: %w", err)}
			}
		}

		return txChangedMsg{status: "Saved."}
	}
}

// txItemDelegate renders items in the list.
type txItemDelegate struct{}

func (d txItemDelegate) Height() int                             { return 2 }
func (d txItemDelegate) Spacing() int                            { return 0 }
func (d txItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d txItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(txItem)
	if !ok {
		return
	}

	title := i.Title()
	if index == m.Index() {
		title = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Render("> " + title)
	}

	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintf(w, "    %s\n", faintStyle.Render(i.Description()))
}
