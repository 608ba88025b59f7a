package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/config"
	"github.com/dyike/vsdocs/internal/devserver"
)

var (
	serveAddr       string
	serveRoot       string
	serveMeta       string
	serveShowHidden bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a directory as a document library with in-memory collections",
	Long: `Run a local backend for development and demos.

The directory given by --root is the document library. Collections come from
server.collections in the config file; membership changes are kept in memory
and lost on exit. --meta names a YAML file mapping glob patterns to security
classifications.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "Library directory (default from config)")
	serveCmd.Flags().StringVar(&serveMeta, "meta", "", "Classification YAML file")
	serveCmd.Flags().BoolVar(&serveShowHidden, "hidden", false, "Include dot files")
}

func runServe(cmd *cobra.Command, args []string) error {
	sc := cfg.Server
	if serveAddr != "" {
		sc.Addr = serveAddr
	}
	if serveRoot != "" {
		sc.Root = serveRoot
	}
	if serveMeta != "" {
		sc.MetaFile = serveMeta
	}
	root, err := config.ExpandPath(sc.Root)
	if err != nil {
		return err
	}
	meta, err := config.ExpandPath(sc.MetaFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(true)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Sync()

	seeds := make([]devserver.Seed, 0, len(sc.Collections))
	for _, c := range sc.Collections {
		seeds = append(seeds, devserver.Seed{CollectionConfig: c.CollectionConfig, Documents: c.Documents})
	}

	srv, err := devserver.New(devserver.Options{
		Root:        root,
		MetaFile:    meta,
		ShowHidden:  serveShowHidden || cfg.TUI.ShowHidden,
		Collections: seeds,
		Token:       sc.Token,
		JobStep:     cfg.JobStep(),
		Logger:      logger.Named("devserver"),
	})
	if err != nil {
		return err
	}

	logger.Info("serving library",
		zap.String("root", root),
		zap.Int("collections", len(seeds)))
	return srv.ListenAndServe(cmd.Context(), sc.Addr)
}
