package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd(logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the file cache",
	}
	cmd.AddCommand(newCacheStatsCmd(logLevel), newCacheClearCmd(logLevel))
	return cmd
}

func newCacheStatsCmd(logLevel *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*logLevel)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}

			stats := a.files.Stats()
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(stats)
			}
			fmt.Fprintf(out, "directory:  %s\n", a.files.Directory())
			fmt.Fprintf(out, "files:      %d\n", stats.TotalFiles)
			fmt.Fprintf(out, "valid:      %d\n", stats.ValidItems)
			fmt.Fprintf(out, "expired:    %d\n", stats.ExpiredItems)
			fmt.Fprintf(out, "size:       %d bytes\n", stats.TotalSizeBytes)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newCacheClearCmd(logLevel *string) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cache entries",
		Long:  "Removes every cache entry, or with --older-than only files last written before that age.",
		Example: `  ngo-inquiry-tracker cache clear
  ngo-inquiry-tracker cache clear --older-than 2h`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			cfg, logger, err := loadConfig(*logLevel)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}

			var removed int
			if cmd.Flags().Changed("older-than") {
				removed = a.files.ClearOlderThan(olderThan)
			} else {
				removed = a.files.Clear()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only remove files older than this age")
	return cmd
}
