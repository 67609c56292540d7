package dedupe

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/resilience"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/store"
)

// TruckStore is the slice of the store the resolver needs.
type TruckStore interface {
	CreateTruck(ctx context.Context, truck *model.FoodTruck) error
	GetTruck(ctx context.Context, id string) (*model.FoodTruck, error)
	UpdateTruck(ctx context.Context, truck *model.FoodTruck) error
	DeleteTruck(ctx context.Context, id string) error
}

// Resolver applies a detection result against the store.
type Resolver struct {
	store TruckStore
}

// NewResolver creates a Resolver.
func NewResolver(s TruckStore) *Resolver {
	return &Resolver{store: s}
}

// writeRetryConfig retries a failed truck write once at the same phase
// before the failure propagates. A stale-row signal is not retried; the
// caller handles it with a create fallback.
func writeRetryConfig(operation string) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   100 * time.Millisecond,
		ShouldRetry: func(err error) bool { return !errors.Is(err, store.ErrNotFound) },
		OnRetry:     resilience.RetryLogger("store", operation),
	}
}

func (r *Resolver) createTruck(ctx context.Context, truck *model.FoodTruck) error {
	return resilience.Do(ctx, writeRetryConfig("create truck"), func(ctx context.Context) error {
		return r.store.CreateTruck(ctx, truck)
	})
}

func (r *Resolver) updateTruck(ctx context.Context, truck *model.FoodTruck) error {
	return resilience.Do(ctx, writeRetryConfig("update truck"), func(ctx context.Context) error {
		return r.store.UpdateTruck(ctx, truck)
	})
}

// Apply executes the decided action. It returns the persisted truck, or nil
// when the action mutates nothing (manual review). Recoverable conditions —
// a stale update target, a merge write failure — degrade to create: a
// duplicate record is preferred over losing freshly scraped data.
func (r *Resolver) Apply(ctx context.Context, candidate *model.FoodTruck, result *Result) (*model.FoodTruck, error) {
	switch result.Action {
	case ActionCreate:
		return r.create(ctx, candidate)

	case ActionUpdate:
		return r.update(ctx, candidate, result.BestMatch)

	case ActionMerge:
		return r.merge(ctx, candidate, result.BestMatch)

	case ActionManualReview:
		zap.L().Info("duplicate flagged for manual review",
			zap.String("candidate", candidate.Name),
			zap.String("reason", result.Reason))
		return nil, nil

	default:
		return nil, resilience.NewValidationError("action", "unrecognized action "+string(result.Action))
	}
}

func (r *Resolver) create(ctx context.Context, candidate *model.FoodTruck) (*model.FoodTruck, error) {
	if err := r.createTruck(ctx, candidate); err != nil {
		return nil, resilience.NewPersistenceError("create truck", err)
	}
	return candidate, nil
}

// update applies the candidate's non-empty fields onto the matched truck,
// keeping fields the candidate does not provide.
func (r *Resolver) update(ctx context.Context, candidate *model.FoodTruck, match *Match) (*model.FoodTruck, error) {
	existing, err := r.store.GetTruck(ctx, match.Truck.ID)
	if errors.Is(err, store.ErrNotFound) {
		zap.L().Warn("update target vanished, creating instead",
			zap.String("truck_id", match.Truck.ID),
			zap.String("candidate", candidate.Name))
		return r.create(ctx, candidate)
	}
	if err != nil {
		return nil, resilience.NewPersistenceError("load update target", err)
	}

	merged := overlay(existing, candidate)
	if err := r.updateTruck(ctx, merged); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return r.create(ctx, candidate)
		}
		return nil, resilience.NewPersistenceError("update truck", err)
	}
	return merged, nil
}

// merge combines the candidate into the matched truck field-by-field. The
// candidate is not yet persisted, so there is no loser record to delete; the
// winner keeps the existing id.
func (r *Resolver) merge(ctx context.Context, candidate *model.FoodTruck, match *Match) (*model.FoodTruck, error) {
	existing, err := r.store.GetTruck(ctx, match.Truck.ID)
	if errors.Is(err, store.ErrNotFound) {
		zap.L().Warn("merge target vanished, creating instead",
			zap.String("truck_id", match.Truck.ID),
			zap.String("candidate", candidate.Name))
		return r.create(ctx, candidate)
	}
	if err != nil {
		return nil, resilience.NewPersistenceError("load merge target", err)
	}

	winner := MergeTrucks(existing, candidate)
	if err := r.updateTruck(ctx, winner); err != nil {
		zap.L().Error("merge persistence failed, creating candidate instead",
			zap.String("truck_id", existing.ID),
			zap.String("candidate", candidate.Name),
			zap.Error(err))
		return r.create(ctx, candidate)
	}
	return winner, nil
}

// overlay copies the candidate's non-empty fields onto a clone of base and
// unions the source URLs.
func overlay(base, candidate *model.FoodTruck) *model.FoodTruck {
	out := *base

	if candidate.Name != "" {
		out.Name = candidate.Name
	}
	if candidate.Description != "" {
		out.Description = candidate.Description
	}
	if candidate.CurrentLocation.HasCoordinates() || candidate.CurrentLocation.Address != "" {
		out.CurrentLocation = candidate.CurrentLocation
	}
	if len(candidate.ScheduledLocations) > 0 {
		out.ScheduledLocations = candidate.ScheduledLocations
	}
	if candidate.OperatingHours != (model.OperatingHours{}) {
		out.OperatingHours = candidate.OperatingHours
	}
	if len(candidate.Menu) > 0 {
		out.Menu = candidate.Menu
	}
	if candidate.ContactInfo.Phone != "" {
		out.ContactInfo.Phone = candidate.ContactInfo.Phone
	}
	if candidate.ContactInfo.Email != "" {
		out.ContactInfo.Email = candidate.ContactInfo.Email
	}
	if candidate.ContactInfo.Website != "" {
		out.ContactInfo.Website = candidate.ContactInfo.Website
	}
	out.SocialMedia = overlaySocial(base.SocialMedia, candidate.SocialMedia)
	if len(candidate.CuisineType) > 0 {
		out.CuisineType = candidate.CuisineType
	}
	if candidate.PriceRange != "" {
		out.PriceRange = candidate.PriceRange
	}
	if len(candidate.Specialties) > 0 {
		out.Specialties = candidate.Specialties
	}
	if candidate.DataQualityScore > out.DataQualityScore {
		out.DataQualityScore = candidate.DataQualityScore
	}
	if candidate.LastScrapedAt.After(out.LastScrapedAt) {
		out.LastScrapedAt = candidate.LastScrapedAt
	}

	for _, url := range candidate.SourceURLs {
		out.AddSourceURL(url)
	}
	return &out
}

// MergeTrucks combines two records with a most-complete-wins rule per field.
// When both sides have a value, the more recently scraped one wins. The result
// keeps a's id, and its SourceURLs is the union of both sides.
func MergeTrucks(a, b *model.FoodTruck) *model.FoodTruck {
	newer, older := a, b
	if b.LastScrapedAt.After(a.LastScrapedAt) {
		newer, older = b, a
	}

	// Start from the newer record and back-fill gaps from the older one.
	out := overlay(older, newer)
	out.ID = a.ID
	out.CreatedAt = a.CreatedAt
	if out.CreatedAt.IsZero() || (!b.CreatedAt.IsZero() && b.CreatedAt.Before(out.CreatedAt)) {
		out.CreatedAt = b.CreatedAt
	}
	if out.VerificationStatus == "" {
		out.VerificationStatus = model.VerificationPending
	}

	for _, url := range a.SourceURLs {
		out.AddSourceURL(url)
	}
	for _, url := range b.SourceURLs {
		out.AddSourceURL(url)
	}
	return out
}

func overlaySocial(base, over model.SocialMedia) model.SocialMedia {
	out := base
	if over.Instagram != "" {
		out.Instagram = over.Instagram
	}
	if over.Facebook != "" {
		out.Facebook = over.Facebook
	}
	if over.Twitter != "" {
		out.Twitter = over.Twitter
	}
	if over.TikTok != "" {
		out.TikTok = over.TikTok
	}
	if over.Yelp != "" {
		out.Yelp = over.Yelp
	}
	return out
}
