package dedupe

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/similarity"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/store"
)

// CleanupStore is the slice of the store batch cleanup needs.
type CleanupStore interface {
	TruckStore
	ListTrucks(ctx context.Context, filter store.TruckFilter) ([]model.FoodTruck, error)
}

// PlannedMerge records one winner/loser pair the cleaner decided on.
type PlannedMerge struct {
	WinnerID   string
	WinnerName string
	LoserID    string
	LoserName  string
	Similarity float64
}

// CleanupReport summarizes one cleanup run.
type CleanupReport struct {
	Scanned int
	Planned []PlannedMerge
	Merged  int
	DryRun  bool
	Errors  []string
}

// Cleaner scans persisted trucks pairwise and merges high-confidence
// duplicates. With DryRun set it reports the merges it would perform without
// writing anything.
type Cleaner struct {
	store  CleanupStore
	scorer *similarity.Scorer
	dryRun bool
}

// NewCleaner creates a Cleaner.
func NewCleaner(s CleanupStore, scorer *similarity.Scorer, dryRun bool) *Cleaner {
	return &Cleaner{store: s, scorer: scorer, dryRun: dryRun}
}

// Run executes one cleanup pass. Per-pair merge failures are collected into
// the report; they never abort the scan.
func (c *Cleaner) Run(ctx context.Context) (*CleanupReport, error) {
	trucks, err := c.store.ListTrucks(ctx, store.TruckFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: list trucks for cleanup")
	}

	report := &CleanupReport{Scanned: len(trucks), DryRun: c.dryRun}
	cfg := c.scorer.Config()
	removed := make(map[string]bool)

	for i := range trucks {
		if removed[trucks[i].ID] {
			continue
		}
		for j := i + 1; j < len(trucks); j++ {
			if removed[trucks[i].ID] || removed[trucks[j].ID] {
				continue
			}

			score := c.scorer.Compare(&trucks[i], &trucks[j])
			if score.Overall < cfg.Confidence.High {
				continue
			}

			winner, loser := pickWinner(&trucks[i], &trucks[j])
			report.Planned = append(report.Planned, PlannedMerge{
				WinnerID:   winner.ID,
				WinnerName: winner.Name,
				LoserID:    loser.ID,
				LoserName:  loser.Name,
				Similarity: score.Overall,
			})

			if c.dryRun {
				removed[loser.ID] = true
				continue
			}

			if err := c.mergePair(ctx, winner, loser); err != nil {
				report.Errors = append(report.Errors,
					fmt.Sprintf("merge %s into %s: %v", loser.ID, winner.ID, err))
				continue
			}
			removed[loser.ID] = true
			report.Merged++
		}
	}

	zap.L().Info("cleanup pass finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("planned", len(report.Planned)),
		zap.Int("merged", report.Merged),
		zap.Bool("dry_run", report.DryRun))
	return report, nil
}

// mergePair persists the winner first; the loser is deleted only after the
// merged record is safely written.
func (c *Cleaner) mergePair(ctx context.Context, winner, loser *model.FoodTruck) error {
	merged := MergeTrucks(winner, loser)
	if err := c.store.UpdateTruck(ctx, merged); err != nil {
		return eris.Wrap(err, "persist merged truck")
	}
	if err := c.store.DeleteTruck(ctx, loser.ID); err != nil {
		return eris.Wrap(err, "delete merged-away truck")
	}
	return nil
}

// pickWinner prefers the more complete record; on a quality tie the older
// record keeps its id.
func pickWinner(a, b *model.FoodTruck) (winner, loser *model.FoodTruck) {
	if b.DataQualityScore > a.DataQualityScore {
		return b, a
	}
	if a.DataQualityScore == b.DataQualityScore && b.CreatedAt.Before(a.CreatedAt) {
		return b, a
	}
	return a, b
}
