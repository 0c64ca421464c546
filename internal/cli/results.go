package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"exam-session-engine/internal/app"
	"exam-session-engine/internal/config"
	"exam-session-engine/internal/domain"
	"github.com/spf13/cobra"
)

// NewResultsCmd prints merged results for a quiz.
func NewResultsCmd(configPath *string) *cobra.Command {
	var (
		recent bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "results <quizId>",
		Short: "Show merged remote and cached results for a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			b, err := openBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			service := app.NewExamService(b.remote, b.local, b.notifier, serviceOptions(cfg))
			defer service.Close()

			load := service.LoadResults
			if recent {
				load = service.LoadRecent
			}
			results, err := load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			return printResults(cmd, results)
		},
	}
	cmd.Flags().BoolVar(&recent, "recent", false, "order by submission time, newest first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func printResults(cmd *cobra.Command, results []domain.SessionResult) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STUDENT\tNAME\tSCORE\tPERCENT\tVIOLATIONS\tCOMPLETED\tSUBMITTED")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%g/%g\t%.2f%%\t%d\t%t\t%s\n",
			r.StudentID, r.StudentName, r.Score, r.TotalPoints, r.Percentage,
			r.SecurityViolations, r.Completed, r.SubmittedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
