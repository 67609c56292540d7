package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/pipeline"
)

var (
	runTargetURL string
	runPriority  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape a single URL and resolve the result against existing trucks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Orchestrator.EnqueueURL(ctx, runTargetURL, model.JobTypeWebsite, runPriority)
		if err != nil {
			if eris.Is(err, pipeline.ErrJobExists) {
				return eris.Wrap(err, "an active job already covers this url")
			}
			return err
		}

		outcome, err := env.Orchestrator.RunJob(ctx, job)
		if err != nil {
			return eris.Wrap(err, "run job")
		}

		zap.L().Info("job finished",
			zap.String("job_id", job.ID),
			zap.String("status", string(job.Status)),
			zap.String("truck_id", job.TruckID),
			zap.Bool("discarded", outcome.Discarded),
		)

		out := struct {
			Job   *model.ScrapingJob `json:"job"`
			Truck *model.FoodTruck   `json:"truck,omitempty"`
		}{Job: job, Truck: outcome.Truck}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	runCmd.Flags().StringVar(&runTargetURL, "url", "", "target URL to scrape (required)")
	runCmd.Flags().IntVar(&runPriority, "priority", 0, "job priority (higher runs first)")
	_ = runCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(runCmd)
}
