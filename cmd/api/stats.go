package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xavierca1/kviz-leads/internal/entity"
	"github.com/xavierca1/kviz-leads/internal/infra/database"
)

var (
	statsLimit  int
	statsOffset int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the lead count and the most recent leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := database.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.MaxConns)
		if err != nil {
			return err
		}
		defer store.Close()

		total, err := store.Count(ctx)
		if err != nil {
			return err
		}
		leads, err := store.List(ctx, statsLimit, statsOffset)
		if err != nil {
			return err
		}

		return printLeads(cmd, total, leads)
	},
}

func printLeads(cmd *cobra.Command, total int64, leads []*entity.Lead) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Total leads: %d\n\n", total)
	if len(leads) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tNAME\tPHONE\tIP")
	for _, l := range leads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			l.CreatedAt.UTC().Format(time.RFC3339),
			l.Name,
			l.Phone,
			entity.StringField(l.UserData, "ip"),
		)
	}
	return tw.Flush()
}

func init() {
	statsCmd.Flags().IntVar(&statsLimit, "limit", 20, "number of leads to list")
	statsCmd.Flags().IntVar(&statsOffset, "offset", 0, "number of leads to skip")
	rootCmd.AddCommand(statsCmd)
}
