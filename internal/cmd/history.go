package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyike/vsdocs/internal/format"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List change-sets applied from this machine",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one change-set and its items",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyRemoveCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a change-set from history",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryRemove,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of change-sets")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRemoveCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	f, err := outputFmt()
	if err != nil {
		return err
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ListChangeSets(collectionFlag, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 && f == format.FormatText {
		fmt.Fprintln(cmd.OutOrStdout(), "No change-sets recorded.")
		return nil
	}
	return format.OutputChangeSets(cmd.OutOrStdout(), records, f)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	f, err := outputFmt()
	if err != nil {
		return err
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := db.GetChangeSet(args[0])
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("change-set %s not found", args[0])
	}
	items, err := db.GetChangeSetItems(rec.ID)
	if err != nil {
		return err
	}
	return format.OutputChangeSet(cmd.OutOrStdout(), rec, items, f)
}

func runHistoryRemove(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := db.GetChangeSet(args[0])
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("change-set %s not found", args[0])
	}
	if err := db.DeleteChangeSet(rec.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted change-set %s\n", rec.ID)
	return nil
}
