package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/s3smoke/internal/constants"
	"github.com/loykin/s3smoke/internal/history"
)

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the history journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			journal, err := history.Open(cmd.Context(), history.Config{Type: cfg.History.Type, DSN: cfg.History.DSN, Table: cfg.History.Table})
			if err != nil {
				return err
			}
			defer func() { _ = journal.Close() }()

			runs, err := journal.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tSTATUS\tRESULT\tERROR")
			for _, r := range runs {
				result := "passed"
				if !r.Passed {
					result = fmt.Sprintf("failed at step %d (%s)", r.FailedStep, r.ErrorKind)
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID,
					humanize.Time(r.StartedAt),
					r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
					r.StatusCode,
					result,
					r.Error,
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", constants.DefaultHistoryLimit, "number of runs to show")
	return cmd
}
