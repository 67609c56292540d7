package similarity

import (
	"math"
	"strings"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
)

const earthRadiusKm = 6371

// Score is the outcome of comparing two truck records.
type Score struct {
	// Overall is the weighted similarity in [0,1], renormalized over the
	// dimensions that had data on both sides.
	Overall float64

	// Dimensions maps each scored dimension name to its similarity.
	// Neutral dimensions (no data on both sides) are absent.
	Dimensions map[string]float64

	// MatchedFields lists the dimensions whose similarity cleared the
	// per-dimension threshold.
	MatchedFields []string

	// ExactContactMatch is set when phone or email matched exactly; it
	// upgrades an update recommendation to a merge.
	ExactContactMatch bool
}

// Scorer computes similarities under a fixed configuration. It is pure and
// safe for concurrent use.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer. Zero-valued weights fall back to defaults so a
// partially filled config cannot produce a divide-by-zero.
func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = def.Thresholds
	}
	if cfg.Confidence == (Confidence{}) {
		cfg.Confidence = def.Confidence
	}
	if cfg.MaxDistanceKm <= 0 {
		cfg.MaxDistanceKm = def.MaxDistanceKm
	}
	if cfg.AddressFallbackDiscount <= 0 {
		cfg.AddressFallbackDiscount = def.AddressFallbackDiscount
	}
	return &Scorer{cfg: cfg}
}

// Config returns the scorer's effective configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Compare scores candidate against existing across all dimensions.
//
// Name is always scored: a missing name contributes 0 rather than being
// excluded, so nameless candidates degrade confidence instead of aborting
// detection. Location, contact, and menu are neutral (excluded from both
// numerator and denominator) when either side lacks data.
func (s *Scorer) Compare(candidate, existing *model.FoodTruck) Score {
	score := Score{Dimensions: make(map[string]float64, 4)}

	type dim struct {
		name      string
		value     float64
		weight    float64
		threshold float64
	}
	dims := make([]dim, 0, 4)

	nameSim := NameSimilarity(candidate.Name, existing.Name)
	dims = append(dims, dim{"name", nameSim, s.cfg.Weights.Name, s.cfg.Thresholds.Name})

	if locSim, ok := s.LocationSimilarity(candidate.CurrentLocation, existing.CurrentLocation); ok {
		dims = append(dims, dim{"location", locSim, s.cfg.Weights.Location, s.cfg.Thresholds.Location})
	}
	if contactSim, exact, ok := ContactSimilarity(candidate.ContactInfo, existing.ContactInfo); ok {
		dims = append(dims, dim{"contact", contactSim, s.cfg.Weights.Contact, s.cfg.Thresholds.Contact})
		score.ExactContactMatch = exact
	}
	if menuSim, ok := MenuSimilarity(candidate.Menu, existing.Menu); ok {
		dims = append(dims, dim{"menu", menuSim, s.cfg.Weights.Menu, s.cfg.Thresholds.Menu})
	}

	var weighted, totalWeight float64
	for _, d := range dims {
		score.Dimensions[d.name] = d.value
		weighted += d.value * d.weight
		totalWeight += d.weight
		if d.value >= d.threshold {
			score.MatchedFields = append(score.MatchedFields, d.name)
		}
	}
	if totalWeight > 0 {
		score.Overall = weighted / totalWeight
	}
	return score
}

// NameSimilarity computes a Levenshtein ratio over normalized names. A name
// that is empty after normalization scores 0. A substring relationship (one
// normalized name contained in the other) scores 0.8–0.95 scaled by the
// length ratio, which handles "Page's Okra Grill" vs "Page's Okra Grill Food
// Truck" style variants.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		minLen, maxLen := float64(len(nb)), float64(len(na))
		if minLen > maxLen {
			minLen, maxLen = maxLen, minLen
		}
		return 0.8 + 0.15*(minLen/maxLen)
	}
	dist := levenshtein(na, nb)
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	return 1 - float64(dist)/float64(maxLen)
}

// LocationSimilarity compares two locations. With GPS on both sides the
// great-circle distance maps linearly to similarity: 0 km → 1.0, MaxDistanceKm
// and beyond → 0. Without GPS it falls back to discounted address-text
// similarity. Returns ok=false (neutral) when neither comparison is possible.
func (s *Scorer) LocationSimilarity(a, b model.Location) (sim float64, ok bool) {
	if a.HasCoordinates() && b.HasCoordinates() {
		dist := HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
		if dist >= s.cfg.MaxDistanceKm {
			return 0, true
		}
		return 1 - dist/s.cfg.MaxDistanceKm, true
	}
	if a.Address != "" && b.Address != "" {
		return stringSimilarity(a.Address, b.Address) * s.cfg.AddressFallbackDiscount, true
	}
	return 0, false
}

// ContactSimilarity compares contact fields pairwise where both sides have
// the field. An exact phone (digits-only) or email (case-insensitive) match
// scores full credit; matching website domains alone score half credit.
// Returns ok=false (neutral) when no field is present on both sides.
func ContactSimilarity(a, b model.ContactInfo) (sim float64, exact bool, ok bool) {
	comparable := false

	if a.Phone != "" && b.Phone != "" {
		comparable = true
		if NormalizePhone(a.Phone) == NormalizePhone(b.Phone) {
			return 1, true, true
		}
	}
	if a.Email != "" && b.Email != "" {
		comparable = true
		if strings.EqualFold(strings.TrimSpace(a.Email), strings.TrimSpace(b.Email)) {
			return 1, true, true
		}
	}
	if a.Website != "" && b.Website != "" {
		comparable = true
		if NormalizeWebsite(a.Website) == NormalizeWebsite(b.Website) {
			return 1, false, true
		}
		if WebsiteDomain(a.Website) == WebsiteDomain(b.Website) {
			return 0.5, false, true
		}
	}
	if !comparable {
		return 0, false, false
	}
	return 0, false, true
}

// MenuSimilarity computes Jaccard overlap of normalized item names across the
// two menus' flattened item lists. Returns ok=false (neutral) when either
// menu is empty.
func MenuSimilarity(a, b []model.MenuCategory) (sim float64, ok bool) {
	setA := menuItemSet(a)
	setB := menuItemSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0, false
	}
	intersection := 0
	for item := range setA {
		if setB[item] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union), true
}

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func menuItemSet(menu []model.MenuCategory) map[string]bool {
	set := make(map[string]bool)
	for _, cat := range menu {
		for _, item := range cat.Items {
			if norm := NormalizeName(item.Name); norm != "" {
				set[norm] = true
			}
		}
	}
	return set
}

// stringSimilarity is a plain Levenshtein ratio over lowercased input, used
// for address text where name suffix stripping does not apply.
func stringSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	dist := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1 - float64(dist)/float64(maxLen)
}

// levenshtein computes edit distance with a two-row matrix.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
