package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/apply"
	"github.com/dyike/vsdocs/internal/compat"
	"github.com/dyike/vsdocs/internal/storage"
	"github.com/dyike/vsdocs/internal/tui"
)

var editPath string

var editCmd = &cobra.Command{
	Use:   "edit [collection]",
	Short: "Browse the library and edit a collection interactively",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEdit,
}

func init() {
	editCmd.Flags().StringVarP(&editPath, "path", "p", "", "Folder to open first")
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// the TUI owns the terminal, so logs only go to the file
	logger, err := newLogger(false)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Sync()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	collectionID, err := resolveCollection(args, db)
	if err != nil {
		return err
	}

	c := newClient(logger)
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("backend %s is not reachable: %w", cfg.Backend.BaseURL, err)
	}
	if err := db.SetSetting(storage.SettingLastCollection, collectionID); err != nil {
		logger.Warn("failed to remember collection", zap.Error(err))
	}

	model := tui.NewModel(ctx, tui.Options{
		Backend: c,
		Applier: apply.New(apply.Options{
			Applier:      c,
			Recorder:     db,
			PollInterval: cfg.PollInterval(),
			Logger:       logger.Named("apply"),
		}),
		CollectionID:     collectionID,
		Checker:          compat.NewRules(),
		Root:             editPath,
		CrawlConcurrency: cfg.CrawlConcurrency,
		ListHeight:       cfg.TUI.ListHeight,
		Logger:           logger.Named("tui"),
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	if m, ok := final.(tui.Model); ok && m.Session().HasPendingChanges() {
		sum := m.Session().Summary()
		fmt.Fprintf(cmd.OutOrStdout(), "Discarded %d pending addition(s) and %d removal(s).\n", len(sum.Add), len(sum.Remove))
	}
	return nil
}
