package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyike/vsdocs/internal/format"
)

var (
	lsRecursive bool
	lsSearch    string
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List library entries and whether they fit the collection",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

func init() {
	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "r", false, "Search the whole library (needs --search)")
	lsCmd.Flags().StringVarP(&lsSearch, "search", "s", "", "Case-insensitive name filter")
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if lsRecursive && lsSearch == "" {
		return errors.New("--recursive needs a --search term")
	}
	f, err := outputFmt()
	if err != nil {
		return err
	}

	logger, err := newLogger(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	collectionID, err := resolveCollection(nil, nil)
	if err != nil {
		return err
	}

	c := newClient(logger)
	s, err := newSession(ctx, c, collectionID, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	p := ""
	if len(args) > 0 {
		p = args[0]
	}
	if err := fetch(ctx, s, c, s.NavigateTo(p)); err != nil {
		return err
	}

	if lsRecursive {
		s.ToggleRecursiveSearch()
	}
	if t, ok := s.SetSearchTerm(lsSearch); ok {
		if err := fetch(ctx, s, c, t); err != nil {
			// partial results are still worth printing
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
	}

	return format.OutputEntries(cmd.OutOrStdout(), s.Visible(), f)
}
