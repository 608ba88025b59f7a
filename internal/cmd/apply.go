package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyike/vsdocs/internal/apply"
	"github.com/dyike/vsdocs/internal/format"
	"github.com/dyike/vsdocs/internal/library"
	"github.com/dyike/vsdocs/internal/reconciler"
)

var (
	applyAdd    []string
	applyRemove []string
	applyDryRun bool
)

var applyCmd = &cobra.Command{
	Use:   "apply [collection]",
	Short: "Add and remove documents without the TUI",
	Long: `Select documents the same way the editor does and apply them as one change-set.

--add takes library paths. --remove takes document ids or library paths of
collection members. Every item must be eligible, otherwise nothing is sent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringSliceVarP(&applyAdd, "add", "a", nil, "Library path to add (repeatable)")
	applyCmd.Flags().StringSliceVarP(&applyRemove, "remove", "r", nil, "Document id or path to remove (repeatable)")
	applyCmd.Flags().BoolVarP(&applyDryRun, "dry-run", "n", false, "Print the change-set instead of applying it")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(applyAdd) == 0 && len(applyRemove) == 0 {
		return errors.New("nothing to apply; use --add or --remove")
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
	s, err := newSession(ctx, c, collectionID, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, p := range applyAdd {
		if err := selectPath(ctx, s, c, p, reconciler.ActionAdded); err != nil {
			return err
		}
	}
	for _, ref := range applyRemove {
		if err := markRemoval(ctx, s, c, ref); err != nil {
			return err
		}
	}

	cs := s.Commit()
	out := cmd.OutOrStdout()
	if applyDryRun {
		return format.OutputChangeSetPlan(out, cs, f)
	}

	svc := apply.New(apply.Options{
		Applier:      c,
		Recorder:     db,
		PollInterval: cfg.PollInterval(),
		Logger:       logger.Named("apply"),
	})
	progress := func(st library.JobStatus) {
		if f == format.FormatText {
			fmt.Fprintf(cmd.ErrOrStderr(), "\r%s %d/%d", st.Status, st.Processed, st.Total)
		}
	}
	st, err := svc.Apply(ctx, collectionID, cs, progress)
	if f == format.FormatText && st.Total > 0 {
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}
	s.Reset()
	return format.OutputJob(out, st, f)
}

// selectPath loads the folder holding p and selects p there, expecting want
func selectPath(ctx context.Context, s *reconciler.Session, c library.Lister, p string, want reconciler.Action) error {
	p = library.CleanPath(p)
	if _, ok := s.Entry(p); !ok {
		if err := fetch(ctx, s, c, s.NavigateTo(library.ParentOf(p))); err != nil {
			return err
		}
	}
	e, ok := s.Entry(p)
	if !ok {
		return fmt.Errorf("%s: not found in the library", library.DisplayPath(p))
	}

	out := s.SelectItem(e)
	switch {
	case out.Action == want:
		return nil
	case out.Err != nil:
		return out.Err
	}
	switch out.Action {
	case reconciler.ActionAdded, reconciler.ActionDeselected, reconciler.ActionMarkedRemove, reconciler.ActionUnmarkedRemove:
		// undo the unwanted toggle
		s.SelectItem(e)
	}
	switch out.Action {
	case reconciler.ActionNone:
		return fmt.Errorf("%s: %s", p, out.Reason)
	case reconciler.ActionNavigate:
		return fmt.Errorf("%s: is a folder", p)
	case reconciler.ActionDeselected, reconciler.ActionUnmarkedRemove:
		return fmt.Errorf("%s: given more than once", p)
	case reconciler.ActionMarkedRemove:
		return fmt.Errorf("%s: already in the collection", p)
	default:
		return fmt.Errorf("%s: not in the collection", p)
	}
}

// markRemoval marks ref for removal. A member's document id is used as is;
// anything else is taken as a library path.
func markRemoval(ctx context.Context, s *reconciler.Session, c library.Lister, ref string) error {
	if _, ok := memberByID(s, ref); !ok {
		return selectPath(ctx, s, c, ref, reconciler.ActionMarkedRemove)
	}
	if s.IsMarkedRemove(ref) {
		return fmt.Errorf("%s: given more than once", ref)
	}
	if !s.MarkRemove(ref) {
		return fmt.Errorf("%s: not in the collection", ref)
	}
	return nil
}

func memberByID(s *reconciler.Session, id string) (library.CollectionMember, bool) {
	for _, m := range s.Members() {
		if m.DocumentID == id {
			return m, true
		}
	}
	return library.CollectionMember{}, false
}
