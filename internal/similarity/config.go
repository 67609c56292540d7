// Package similarity provides pure scoring functions for comparing food
// truck records across name, location, contact, and menu dimensions.
package similarity

// Weights controls how much each field dimension contributes to the overall
// score. The defaults reflect that name and location are the strongest
// duplicate signals for a mobile business whose address changes.
type Weights struct {
	Name     float64 `yaml:"name" mapstructure:"name"`
	Location float64 `yaml:"location" mapstructure:"location"`
	Contact  float64 `yaml:"contact" mapstructure:"contact"`
	Menu     float64 `yaml:"menu" mapstructure:"menu"`
}

// Thresholds are the per-dimension scores above which a dimension counts as
// "matched", plus the overall floor below which a pool entity is dropped
// from the result set entirely.
type Thresholds struct {
	Name     float64 `yaml:"name" mapstructure:"name"`
	Location float64 `yaml:"location" mapstructure:"location"`
	Contact  float64 `yaml:"contact" mapstructure:"contact"`
	Menu     float64 `yaml:"menu" mapstructure:"menu"`
	Overall  float64 `yaml:"overall" mapstructure:"overall"`
}

// Confidence holds the similarity cutoffs for confidence classification.
type Confidence struct {
	High   float64 `yaml:"high" mapstructure:"high"`
	Medium float64 `yaml:"medium" mapstructure:"medium"`
}

// Config bundles all tunable scoring knobs. These are business policy, not
// physical constants — everything here is overridable via configuration.
type Config struct {
	Weights    Weights    `yaml:"weights" mapstructure:"weights"`
	Thresholds Thresholds `yaml:"thresholds" mapstructure:"thresholds"`
	Confidence Confidence `yaml:"confidence" mapstructure:"confidence"`

	// MaxDistanceKm is the GPS distance at which location similarity
	// decays to zero.
	MaxDistanceKm float64 `yaml:"max_distance_km" mapstructure:"max_distance_km"`

	// AddressFallbackDiscount is applied to address-text similarity when
	// GPS data is missing on either side.
	AddressFallbackDiscount float64 `yaml:"address_fallback_discount" mapstructure:"address_fallback_discount"`
}

// DefaultConfig returns the standard scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Name:     0.4,
			Location: 0.3,
			Contact:  0.2,
			Menu:     0.1,
		},
		Thresholds: Thresholds{
			Name:     0.85,
			Location: 0.9,
			Contact:  1.0,
			Menu:     0.7,
			Overall:  0.5,
		},
		Confidence: Confidence{
			High:   0.8,
			Medium: 0.6,
		},
		MaxDistanceKm:           5,
		AddressFallbackDiscount: 0.7,
	}
}
