package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFetchCmd(logLevel *string) *cobra.Command {
	var (
		refresh bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Print the NGO-related inquiries",
		Long:  "Prints the inquiries shown on the dashboard, using the cache unless --refresh is given.",
		Example: `  ngo-inquiry-tracker fetch
  ngo-inquiry-tracker fetch --refresh --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*logLevel)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}

			svc := a.inquiryService(nil)
			fetch := svc.Dashboard
			if refresh {
				fetch = svc.Refresh
			}
			d, err := fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch inquiries: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}

			fmt.Fprintf(out, "%d inquiries in Wahlperiode %d since %s\n\n", d.Total, d.Wahlperiode, d.Since)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tINITIATORS\tTITLE")
			for _, inq := range d.Inquiries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", inq.ID, inq.Date, strings.Join(inq.Initiators, ", "), inq.Title)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the cached dashboard")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the dashboard as JSON")
	return cmd
}
