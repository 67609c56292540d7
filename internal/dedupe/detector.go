// Package dedupe decides whether a freshly extracted truck record is new, an
// update to an existing record, or a near-duplicate to merge, and applies that
// decision against the store.
package dedupe

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/similarity"
)

// ConfidenceLevel buckets a continuous similarity score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Recommendation is the per-match suggested handling.
type Recommendation string

const (
	RecommendMerge        Recommendation = "merge"
	RecommendUpdate       Recommendation = "update"
	RecommendSkip         Recommendation = "skip"
	RecommendManualReview Recommendation = "manual_review"
)

// Action is the top-level decision for the candidate.
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionMerge        Action = "merge"
	ActionManualReview Action = "manual_review"
)

// Match is one existing truck that cleared the overall similarity floor.
type Match struct {
	Truck          *model.FoodTruck
	Similarity     float64
	MatchedFields  []string
	ExactContact   bool
	Confidence     ConfidenceLevel
	Recommendation Recommendation
}

// Result is the outcome of duplicate detection for one candidate.
type Result struct {
	IsDuplicate bool
	Matches     []Match
	BestMatch   *Match
	Action      Action
	Reason      string
}

// CandidatePool supplies the bounded set of existing trucks worth comparing
// against a candidate.
type CandidatePool interface {
	QueryTrucksByNameOrRegion(ctx context.Context, name, region string) ([]model.FoodTruck, error)
}

// Detector scores a candidate against the pool and classifies the outcome.
type Detector struct {
	pool   CandidatePool
	scorer *similarity.Scorer
}

// NewDetector creates a Detector.
func NewDetector(pool CandidatePool, scorer *similarity.Scorer) *Detector {
	return &Detector{pool: pool, scorer: scorer}
}

// Check compares candidate against the pool. A candidate without a name still
// runs: name similarity contributes zero against every pool entry, degrading
// confidence rather than aborting detection.
func (d *Detector) Check(ctx context.Context, candidate *model.FoodTruck) (*Result, error) {
	// Query by the normalized name so legal/vendor suffixes on either side
	// ("Tasty Tacos LLC" vs a stored "Tasty Tacos") don't empty the pool.
	nameTerm := similarity.NormalizeName(candidate.Name)
	region := candidate.CurrentLocation.Address
	pool, err := d.pool.QueryTrucksByNameOrRegion(ctx, nameTerm, region)
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: query candidate pool")
	}
	if len(pool) == 0 && (nameTerm != "" || region != "") {
		// The substring prefilter misses fuzzy variants entirely; score
		// against the full set before concluding the candidate is new.
		pool, err = d.pool.QueryTrucksByNameOrRegion(ctx, "", "")
		if err != nil {
			return nil, eris.Wrap(err, "dedupe: query full candidate pool")
		}
	}

	cfg := d.scorer.Config()
	var matches []Match
	for i := range pool {
		existing := &pool[i]
		score := d.scorer.Compare(candidate, existing)
		if score.Overall < cfg.Thresholds.Overall {
			continue
		}

		confidence := classify(score.Overall, cfg.Confidence)
		matches = append(matches, Match{
			Truck:          existing,
			Similarity:     score.Overall,
			MatchedFields:  score.MatchedFields,
			ExactContact:   score.ExactContactMatch,
			Confidence:     confidence,
			Recommendation: recommend(confidence, score.ExactContactMatch),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	result := &Result{Matches: matches}
	if len(matches) == 0 {
		result.Action = ActionCreate
		result.Reason = "no similar existing truck found"
		return result, nil
	}

	best := &matches[0]
	result.IsDuplicate = true
	result.BestMatch = best
	result.Reason = fmt.Sprintf("best match %q at %.0f%% similarity", best.Truck.Name, best.Similarity*100)

	switch best.Recommendation {
	case RecommendMerge:
		result.Action = ActionMerge
	case RecommendUpdate:
		result.Action = ActionUpdate
	case RecommendManualReview:
		result.Action = ActionManualReview
	default:
		result.Action = ActionCreate
	}
	return result, nil
}

func classify(sim float64, cfg similarity.Confidence) ConfidenceLevel {
	switch {
	case sim >= cfg.High:
		return ConfidenceHigh
	case sim >= cfg.Medium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// recommend applies the precedence policy: exact contact plus high confidence
// forces a merge; high confidence alone updates; medium goes to a human.
func recommend(confidence ConfidenceLevel, exactContact bool) Recommendation {
	switch confidence {
	case ConfidenceHigh:
		if exactContact {
			return RecommendMerge
		}
		return RecommendUpdate
	case ConfidenceMedium:
		return RecommendManualReview
	default:
		return RecommendSkip
	}
}
