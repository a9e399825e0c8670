package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/tally/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/tally/internal/config"
	"github.com/MrJamesThe3rd/tally/internal/database"
	"github.com/MrJamesThe3rd/tally/internal/duplicate"
	"github.com/MrJamesThe3rd/tally/internal/importer"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/ledger/memstore"
	ledgerStore "github.com/MrJamesThe3rd/tally/internal/ledger/store"
	"github.com/MrJamesThe3rd/tally/internal/matching"
	matchingStore "github.com/MrJamesThe3rd/tally/internal/matching/store"
	"github.com/MrJamesThe3rd/tally/internal/scenario"
)

type model struct {
	cfg       *config.Config
	ledgers   *ledger.Service
	matching  *matching.Service
	scenarios *scenario.Manager
	coord     *importer.Coordinator

	currentView View
	size        tea.WindowSizeMsg

	listView   view.ListModel
	ledgerView view.TransactionsModel
	importView view.ImportModel
}

type View int

const (
	ViewMenu   View = 0
	ViewList   View = 1
	ViewLedger View = 2
	ViewImport View = 3
)

func initialModel() model {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The TUI owns the terminal, so logs go to a file.
	logFile, err := tea.LogToFile("tally-tui.log", "tally")
	if err == nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(logFile, nil)))
	}

	var (
		repo     ledger.Repository
		matchSvc *matching.Service
	)

	switch cfg.App.Storage {
	case "memory":
		repo = memstore.New()
	default:
		db, err := database.New(cfg.ConnectionString(), database.Options{
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}

		if err := database.Migrate(db); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}

		repo = ledgerStore.New(db)
		matchSvc = matching.NewService(matchingStore.New(db))
	}

	detector, err := duplicate.NewDetector(duplicate.Config{
		Threshold:       cfg.Duplicate.Threshold,
		DateWindow:      cfg.Duplicate.DateWindow,
		AmountTolerance: cfg.Duplicate.AmountTolerance,
		Workers:         cfg.Duplicate.Workers,
	})
	if err != nil {
		slog.Error("invalid duplicate detection config", "error", err)
		os.Exit(1)
	}

	ledgerSvc := ledger.NewService(repo, ledger.WithLockTimeout(cfg.Locks.AcquireTimeout))

	coordOpts := []importer.Option{importer.WithChunkSize(cfg.Import.ChunkSize)}
	if matchSvc != nil {
		coordOpts = append(coordOpts, importer.WithClassifier(matchSvc))
	}

	scenarios := scenario.NewManager(ledgerSvc, nil)

	return model{
		cfg:         cfg,
		ledgers:     ledgerSvc,
		matching:    matchSvc,
		scenarios:   scenarios,
		coord:       importer.NewCoordinator(ledgerSvc, detector, coordOpts...),
		currentView: ViewMenu,
		listView:    view.NewListModel(ledgerSvc, scenarios),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.size = msg

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1", "enter":
				m.currentView = ViewList
				m.listView = view.NewListModel(m.ledgers, m.scenarios)

				return m, tea.Batch(m.listView.Init(), m.resize)
			}
		}

	case view.OpenLedgerMsg:
		m.currentView = ViewLedger
		m.ledgerView = view.NewTransactionsModel(m.ledgers, m.matching, msg.Ledger, m.cfg.App.Currency)

		return m, tea.Batch(m.ledgerView.Init(), m.resize)

	case view.OpenImportMsg:
		m.currentView = ViewImport
		m.importView = view.NewImportModel(m.coord, msg.Ledger, m.cfg.App.Currency)

		return m, tea.Batch(m.importView.Init(), m.resize)

	case view.BackMsg:
		switch m.currentView {
		case ViewImport:
			m.currentView = ViewLedger
			return m, m.ledgerView.Init()
		case ViewLedger:
			m.currentView = ViewList
			return m, m.listView.Init()
		}

		m.currentView = ViewMenu

		return m, nil
	}

	switch m.currentView {
	case ViewList:
		var newModel tea.Model
		newModel, cmd = m.listView.Update(msg)
		m.listView = newModel.(view.ListModel)
	case ViewLedger:
		var newModel tea.Model
		newModel, cmd = m.ledgerView.Update(msg)
		m.ledgerView = newModel.(view.TransactionsModel)
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	}

	return m, cmd
}

// resize replays the last window size to a freshly opened view.
func (m model) resize() tea.Msg {
	if m.size.Width == 0 {
		return nil
	}

	return m.size
}

func (m model) View() string {
	var current view.View

	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			fmt.Sprintf("%s (%s)\n\n", m.cfg.App.Name, m.cfg.App.Storage) +
				"1. Ledgers\n\n" +
				"q. Quit",
		)
	case ViewList:
		current = m.listView
	case ViewLedger:
		current = m.ledgerView
	case ViewImport:
		current = m.importView
	default:
		return "Unknown View"
	}

	help := lipgloss.NewStyle().Faint(true).PaddingLeft(2).Render(current.ShortHelp())

	return current.View() + "\n" + help
}

func main() {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
