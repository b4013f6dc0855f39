package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mtxlayout/pkg/store"
)

// storeCommand creates the checkpoint store management command.
func (c *CLI) storeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage stored checkpoints",
	}

	cmd.AddCommand(c.storePathCommand())
	cmd.AddCommand(c.storeListCommand())
	cmd.AddCommand(c.storeClearCommand())

	return cmd
}

// storePathCommand creates the "store path" subcommand.
func (c *CLI) storePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the default file store directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := store.DefaultDir()
			if err != nil {
				return fmt.Errorf("get store dir: %w", err)
			}
			fmt.Fprintln(stdout, dir)
			return nil
		},
	}
}

// storeListCommand creates the "store list" subcommand.
func (c *CLI) storeListCommand() *cobra.Command {
	var flags storeFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored checkpoint names",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), &flags, func(s store.Store) error {
				names, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(names) == 0 {
					printInfo("No checkpoints stored")
					return nil
				}
				for _, name := range names {
					fmt.Fprintln(stdout, name)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// storeClearCommand creates the "store clear" subcommand.
func (c *CLI) storeClearCommand() *cobra.Command {
	var flags storeFlags
	cmd := &cobra.Command{
		Use:   "clear [name...]",
		Short: "Delete the named checkpoints, or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(ctx, &flags, func(s store.Store) error {
				names := args
				if len(names) == 0 {
					var err error
					if names, err = s.List(ctx); err != nil {
						return err
					}
				}
				if len(names) == 0 {
					printInfo("Store is empty")
					return nil
				}

				count := 0
				for _, name := range names {
					if err := s.Delete(ctx, name); err != nil {
						c.Logger.Warn("delete failed", "name", name, "err", err)
						continue
					}
					count++
				}
				printSuccess("Cleared %d checkpoints", count)
				if count < len(names) {
					printWarning("%d could not be deleted", len(names)-count)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func withStore(ctx context.Context, flags *storeFlags, fn func(store.Store) error) error {
	s, err := store.Open(ctx, flags.options())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()
	return fn(s)
}
