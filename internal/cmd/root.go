package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/client"
	"github.com/dyike/vsdocs/internal/config"
	"github.com/dyike/vsdocs/internal/format"
	"github.com/dyike/vsdocs/internal/logging"
	"github.com/dyike/vsdocs/internal/retry"
	"github.com/dyike/vsdocs/internal/storage"
)

var (
	// Version is set during build
	Version = "dev"

	// BuildTime is set during build
	BuildTime = "unknown"

	// global flags
	configFile     string
	dbPath         string
	collectionFlag string
	outputFormat   string

	cfg *config.Config
)

// printUsageTree prints one line per leaf command
func printUsageTree(root *cobra.Command) {
	var lines []string
	maxLen := 0

	var collect func(cmd *cobra.Command, prefix string)
	collect = func(cmd *cobra.Command, prefix string) {
		for _, sub := range cmd.Commands() {
			if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
				continue
			}
			use := prefix + sub.Use
			if len(use) > maxLen {
				maxLen = len(use)
			}
			lines = append(lines, use+"\t"+sub.Short)
			if sub.HasSubCommands() {
				collect(sub, prefix+sub.Name()+" ")
			}
		}
	}
	collect(root, root.Name()+" ")

	out := root.OutOrStdout()
	fmt.Fprintln(out, "Usage:")
	for _, line := range lines {
		parts := strings.SplitN(line, "\t", 2)
		padding := maxLen - len(parts[0]) + 2
		fmt.Fprintf(out, "  %s%s- %s\n", parts[0], strings.Repeat(" ", padding), parts[1])
	}
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:           "vsdocs",
	Short:         "Edit vector store collections from a document library",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
	Run: func(cmd *cobra.Command, args []string) {
		printUsageTree(cmd)
	},
}

// ExecuteContext runs the command tree with ctx
func ExecuteContext(ctx context.Context) error {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("vsdocs version %s (built %s)\n", Version, BuildTime))
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ~/.vsdocs/config.json)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "History database path")
	rootCmd.PersistentFlags().StringVarP(&collectionFlag, "collection", "c", "", "Collection id")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "Output format (text|json|csv|md)")

	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() error {
	var err error
	if configFile == "" {
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg, err = config.LoadFrom(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.ApplyEnv(); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	return nil
}

func outputFmt() (format.Format, error) {
	return format.Parse(outputFormat)
}

// newLogger builds the logger from config. Console logging is for commands
// that do not own the terminal.
func newLogger(console bool) (*zap.Logger, error) {
	file, err := config.ExpandPath(cfg.Log.File)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		File:       file,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Console:    console,
	})
}

func newClient(logger *zap.Logger) *client.Client {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.Backend.RetryAttempts
	return client.New(client.Config{
		BaseURL: cfg.Backend.BaseURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Timeout(),
		Retry:   rc,
		Logger:  logger.Named("client"),
	})
}

func openDB() (*storage.DB, error) {
	path, err := cfg.GetDatabasePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}
	db, err := storage.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// resolveCollection picks the collection from, in order: the positional
// argument, --collection, the configured default, the last edited one.
func resolveCollection(args []string, db *storage.DB) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if collectionFlag != "" {
		return collectionFlag, nil
	}
	if cfg.DefaultCollection != "" {
		return cfg.DefaultCollection, nil
	}
	if db != nil {
		last, err := db.GetSetting(storage.SettingLastCollection)
		if err != nil {
			return "", err
		}
		if last != "" {
			return last, nil
		}
	}
	return "", fmt.Errorf("no collection given; pass one or set default_collection in the config")
}
