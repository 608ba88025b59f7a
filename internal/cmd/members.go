package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dyike/vsdocs/internal/format"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List collections on the backend",
	Args:  cobra.NoArgs,
	RunE:  runCollections,
}

var membersCmd = &cobra.Command{
	Use:   "members [collection]",
	Short: "Show a collection's configuration and documents",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMembers,
}

func runCollections(cmd *cobra.Command, args []string) error {
	f, err := outputFmt()
	if err != nil {
		return err
	}
	logger, err := newLogger(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	collections, err := newClient(logger).ListCollections(cmd.Context())
	if err != nil {
		return err
	}
	return format.OutputCollections(cmd.OutOrStdout(), collections, f)
}

func runMembers(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f, err := outputFmt()
	if err != nil {
		return err
	}
	logger, err := newLogger(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	collectionID, err := resolveCollection(args, nil)
	if err != nil {
		return err
	}

	c := newClient(logger)
	collection, err := c.CollectionConfig(ctx, collectionID)
	if err != nil {
		return err
	}
	members, err := c.ListCollectionMembers(ctx, collectionID)
	if err != nil {
		return err
	}
	return format.OutputMembers(cmd.OutOrStdout(), collection, members, f)
}
