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
	"go.uber.org/zap"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/dedupe"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/similarity"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/store"
)

var trucksCmd = &cobra.Command{
	Use:   "trucks",
	Short: "Inspect and maintain food truck records",
}

// -- trucks list --

var trucksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List food trucks",
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

		name, _ := cmd.Flags().GetString("name")
		region, _ := cmd.Flags().GetString("region")
		limit, _ := cmd.Flags().GetInt("limit")

		trucks, err := st.ListTrucks(ctx, store.TruckFilter{Name: name, Region: region, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "trucks list")
		}

		if len(trucks) == 0 {
			fmt.Fprintln(os.Stderr, "No trucks found.")
			return nil
		}

		formatTrucksList(os.Stdout, trucks)
		return nil
	},
}

// -- trucks show --

var trucksShowCmd = &cobra.Command{
	Use:   "show <truck-id>",
	Short: "Show full details of a truck",
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

		truck, err := st.GetTruck(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "trucks show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(truck)
	},
}

// -- trucks cleanup --

var cleanupDryRun bool

var trucksCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Merge high-confidence duplicate trucks",
	Long:  "Scans all persisted trucks pairwise and merges pairs scoring above the high-confidence cutoff. Use --dry-run to preview merges without writing.",
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

		dryRun := cleanupDryRun || cfg.Cleanup.DryRun
		scorer := similarity.NewScorer(similarityConfig())
		cleaner := dedupe.NewCleaner(st, scorer, dryRun)

		report, err := cleaner.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "trucks cleanup")
		}

		if dryRun && len(report.Planned) > 0 {
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WINNER\tLOSER\tSIMILARITY")
			for _, m := range report.Planned {
				fmt.Fprintf(tw, "%s (%s)\t%s (%s)\t%.2f\n",
					m.WinnerName, m.WinnerID, m.LoserName, m.LoserID, m.Similarity)
			}
			tw.Flush()
		}

		fmt.Fprintf(os.Stdout, "scanned %d trucks, %d merges", report.Scanned, report.Merged)
		if dryRun {
			fmt.Fprintf(os.Stdout, " (%d planned, dry run)", len(report.Planned))
		}
		fmt.Fprintln(os.Stdout)

		for _, e := range report.Errors {
			fmt.Fprintln(os.Stderr, "error:", e)
		}
		return nil
	},
}

// -- trucks import --

var trucksImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Bulk-load truck records from a JSON file",
	Long:  "Reads a JSON array of truck records and inserts them. Postgres uses a single COPY; SQLite inserts row by row.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read import file")
		}
		var trucks []model.FoodTruck
		if err := json.Unmarshal(raw, &trucks); err != nil {
			return eris.Wrap(err, "parse import file")
		}
		if len(trucks) == 0 {
			fmt.Fprintln(os.Stderr, "Nothing to import.")
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var imported int64
		if pg, ok := st.(*store.PostgresStore); ok {
			imported, err = pg.BulkCreateTrucks(ctx, trucks)
			if err != nil {
				return eris.Wrap(err, "trucks import")
			}
		} else {
			for i := range trucks {
				if err := st.CreateTruck(ctx, &trucks[i]); err != nil {
					return eris.Wrapf(err, "trucks import: row %d", i)
				}
				imported++
			}
		}

		zap.L().Info("import complete",
			zap.Int64("imported", imported),
			zap.String("file", args[0]),
		)
		fmt.Fprintf(os.Stdout, "imported %d trucks\n", imported)
		return nil
	},
}

func formatTrucksList(w io.Writer, trucks []model.FoodTruck) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQUALITY\tVERIFIED\tLAST SCRAPED")
	for i := range trucks {
		t := &trucks[i]
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n",
			t.ID,
			t.Name,
			t.DataQualityScore,
			t.VerificationStatus,
			t.LastScrapedAt.Local().Format(time.RFC3339),
		)
	}
	tw.Flush()
}

func init() {
	trucksListCmd.Flags().String("name", "", "filter by name substring")
	trucksListCmd.Flags().String("region", "", "filter by address substring")
	trucksListCmd.Flags().Int("limit", 50, "maximum rows")
	trucksCleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "report merges without writing")

	trucksCmd.AddCommand(trucksListCmd)
	trucksCmd.AddCommand(trucksShowCmd)
	trucksCmd.AddCommand(trucksCleanupCmd)
	trucksCmd.AddCommand(trucksImportCmd)
	rootCmd.AddCommand(trucksCmd)
}
