package dedupe

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/similarity"
)

// lockStripes is the fixed size of the bucket lock table. Distinct names may
// share a stripe; that only serializes more than strictly needed.
const lockStripes = 64

// Deduper runs detection and resolution as one serialized check-then-write.
// Two candidates that normalize to the same name share a bucket lock, so
// concurrent jobs for the same real-world truck cannot both decide "create".
// The lock table is a fixed set of stripes, so memory does not grow with the
// number of distinct names seen by a long-running server.
type Deduper struct {
	detector *Detector
	resolver *Resolver

	buckets [lockStripes]sync.Mutex
}

// NewDeduper wires a detector and resolver behind bucket serialization.
func NewDeduper(detector *Detector, resolver *Resolver) *Deduper {
	return &Deduper{
		detector: detector,
		resolver: resolver,
	}
}

// Process checks candidate for duplicates and applies the decision while
// holding the candidate's name-bucket lock. The returned truck is nil when
// the action was manual review.
func (d *Deduper) Process(ctx context.Context, candidate *model.FoodTruck) (*model.FoodTruck, *Result, error) {
	lock := d.bucket(similarity.NormalizeName(candidate.Name))
	lock.Lock()
	defer lock.Unlock()

	result, err := d.detector.Check(ctx, candidate)
	if err != nil {
		return nil, nil, err
	}
	truck, err := d.resolver.Apply(ctx, candidate, result)
	if err != nil {
		return nil, result, err
	}
	return truck, result, nil
}

func (d *Deduper) bucket(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &d.buckets[h.Sum32()%lockStripes]
}
