package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect scraping jobs",
	Long:  "Commands for listing and viewing scraping jobs and their retry history.",
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scraping jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		url, _ := cmd.Flags().GetString("url")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.JobFilter{
			Status:    model.JobStatus(status),
			TargetURL: url,
			Limit:     limit,
		}

		found, err := st.ListJobs(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(found) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobsList(os.Stdout, found)
		return nil
	},
}

// -- jobs show --

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show full details of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func formatJobsList(w io.Writer, found []model.ScrapingJob) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tRETRIES\tURL\tSCHEDULED")
	for i := range found {
		job := &found[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			job.ID,
			job.JobType,
			job.Status,
			job.RetryCount, job.MaxRetries,
			job.TargetURL,
			job.ScheduledAt.Local().Format(time.RFC3339),
		)
	}
	tw.Flush()
}

func init() {
	jobsListCmd.Flags().String("status", "", "filter by status (pending, running, completed, failed)")
	jobsListCmd.Flags().String("url", "", "filter by target URL")
	jobsListCmd.Flags().Int("limit", 50, "maximum rows")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}
