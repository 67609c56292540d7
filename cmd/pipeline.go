package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/pipeline"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run batch pipeline phases",
	Long:  "Commands for the batch phases: processing pending jobs, the staleness maintenance sweep, or both.",
}

func printBatchResult(result *pipeline.BatchResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

var pipelineProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a batch of pending jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.ProcessJobs(ctx)
		if err != nil {
			return err
		}
		return printBatchResult(result)
	},
}

var pipelineMaintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Enqueue refresh jobs for stale trucks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.RunMaintenance(ctx)
		if err != nil {
			return err
		}

		expired, err := env.Store.DeleteExpiredPages(ctx)
		if err != nil {
			zap.L().Warn("page cache cleanup failed", zap.Error(err))
		} else if expired > 0 {
			zap.L().Info("expired cache pages removed", zap.Int("count", expired))
		}

		return printBatchResult(result)
	},
}

var pipelineFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run maintenance then process pending jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.RunFull(ctx)
		if err != nil {
			return err
		}
		return printBatchResult(result)
	},
}

func init() {
	pipelineCmd.AddCommand(pipelineProcessCmd)
	pipelineCmd.AddCommand(pipelineMaintenanceCmd)
	pipelineCmd.AddCommand(pipelineFullCmd)
	rootCmd.AddCommand(pipelineCmd)
}
