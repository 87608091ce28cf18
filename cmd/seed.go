package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/newsforge/newsforge/internal/config"
	"github.com/newsforge/newsforge/internal/seed"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Manage the registry of named news sources",
	}
	cmd.AddCommand(newSeedAddCmd(), newSeedRemoveCmd(), newSeedListCmd())
	return cmd
}

func seedRegistry() (*seed.Registry, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return seed.NewRegistry(cfg.Seed.File), nil
}

func newSeedAddCmd() *cobra.Command {
	var entry seed.Entry
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a source with at least one of --rss, --sitemap, or --section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := seedRegistry()
			if err != nil {
				return err
			}
			if err := registry.Add(args[0], entry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&entry.RSS, "rss", "", "RSS or Atom feed URL")
	cmd.Flags().StringVar(&entry.Sitemap, "sitemap", "", "XML sitemap URL")
	cmd.Flags().StringSliceVar(&entry.Sections, "section", nil, "section page URL, repeatable")
	return cmd
}

func newSeedRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Remove a registered source",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := seedRegistry()
			if err != nil {
				return err
			}
			if err := registry.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func newSeedListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List registered sources",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := seedRegistry()
			if err != nil {
				return err
			}
			seeds, err := registry.List()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(seeds))
			for name := range seeds {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				entry := seeds[name]
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", name)
				if entry.RSS != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  rss:     %s\n", entry.RSS)
				}
				if entry.Sitemap != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  sitemap: %s\n", entry.Sitemap)
				}
				for _, section := range entry.Sections {
					fmt.Fprintf(cmd.OutOrStdout(), "  section: %s\n", section)
				}
			}
			return nil
		},
	}
}
