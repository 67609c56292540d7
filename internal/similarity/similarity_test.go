package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases and trims", "  Tasty Tacos  ", "tasty tacos"},
		{"strips food truck suffix", "Tasty Tacos Food Truck", "tasty tacos"},
		{"strips llc", "Tasty Tacos LLC", "tasty tacos"},
		{"strips stacked suffixes", "Tasty Tacos Food Truck LLC", "tasty tacos"},
		{"suffix-only name is empty", "Food Truck", ""},
		{"stacked suffix-only name is empty", "Food Truck LLC", ""},
		{"folds diacritics", "Café Olé", "cafe ole"},
		{"folds curly apostrophe", "Page’s Okra Grill", "page's okra grill"},
		{"drops stray punctuation", "Tasty! Tacos?", "tasty tacos"},
		{"keeps ampersand", "Bangin' Vegan Eats & Treats", "bangin' vegan eats & treats"},
		{"collapses whitespace", "tasty   tacos", "tasty tacos"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "8435550199", NormalizePhone("(843) 555-0199"))
	assert.Equal(t, "8435550199", NormalizePhone("+1 843-555-0199"))
	assert.Equal(t, "8435550199", NormalizePhone("8435550199"))
	assert.Equal(t, "", NormalizePhone("call us"))
}

func TestNormalizeWebsite(t *testing.T) {
	assert.Equal(t, "tastytacos.com", NormalizeWebsite("https://www.tastytacos.com/"))
	assert.Equal(t, "tastytacos.com/menu", NormalizeWebsite("http://tastytacos.com/menu"))
	assert.Equal(t, "tastytacos.com", WebsiteDomain("https://www.tastytacos.com/menu?ref=x"))
}

func TestNameSimilarity(t *testing.T) {
	t.Run("identical after suffix stripping", func(t *testing.T) {
		sim := NameSimilarity("Tasty Tacos LLC", "Tasty Tacos Food Truck")
		assert.GreaterOrEqual(t, sim, 0.9)
	})

	t.Run("minor typo stays high", func(t *testing.T) {
		sim := NameSimilarity("Tasty Tacos", "Tasty Tacoz")
		assert.Greater(t, sim, 0.85)
	})

	t.Run("substring variant", func(t *testing.T) {
		sim := NameSimilarity("Page's Okra Grill", "Page's Okra Grill Mobile")
		assert.GreaterOrEqual(t, sim, 0.8)
	})

	t.Run("unrelated names score low", func(t *testing.T) {
		sim := NameSimilarity("Tasty Tacos", "Smoky Joe's BBQ")
		assert.Less(t, sim, 0.5)
	})

	t.Run("empty name scores zero", func(t *testing.T) {
		assert.Zero(t, NameSimilarity("", "Tasty Tacos"))
		assert.Zero(t, NameSimilarity("Food Truck", "Tasty Tacos"))
	})

	t.Run("symmetric", func(t *testing.T) {
		a, b := "Roti Rolls", "Roti Rolls & More"
		assert.Equal(t, NameSimilarity(a, b), NameSimilarity(b, a))
	})
}

func TestLocationSimilarity(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	t.Run("same point is a perfect match", func(t *testing.T) {
		a := model.Location{Lat: 32.7765, Lng: -79.9311}
		sim, ok := scorer.LocationSimilarity(a, a)
		require.True(t, ok)
		assert.InDelta(t, 1.0, sim, 1e-9)
	})

	t.Run("a few blocks apart scores high", func(t *testing.T) {
		// Roughly 0.39 km of latitude.
		a := model.Location{Lat: 32.7765, Lng: -79.9311}
		b := model.Location{Lat: 32.7800, Lng: -79.9311}
		sim, ok := scorer.LocationSimilarity(a, b)
		require.True(t, ok)
		assert.GreaterOrEqual(t, sim, 0.9)
	})

	t.Run("beyond max distance scores zero", func(t *testing.T) {
		a := model.Location{Lat: 32.7765, Lng: -79.9311}
		b := model.Location{Lat: 32.9000, Lng: -79.9311} // ~14 km north
		sim, ok := scorer.LocationSimilarity(a, b)
		require.True(t, ok)
		assert.Zero(t, sim)
	})

	t.Run("address fallback is discounted", func(t *testing.T) {
		a := model.Location{Address: "123 King St, Charleston, SC"}
		b := model.Location{Address: "123 King St, Charleston, SC"}
		sim, ok := scorer.LocationSimilarity(a, b)
		require.True(t, ok)
		assert.InDelta(t, scorer.Config().AddressFallbackDiscount, sim, 1e-9)
	})

	t.Run("no data on either side is neutral", func(t *testing.T) {
		_, ok := scorer.LocationSimilarity(model.Location{}, model.Location{Lat: 32.7, Lng: -79.9})
		assert.False(t, ok)
	})
}

func TestContactSimilarity(t *testing.T) {
	t.Run("exact phone is full credit", func(t *testing.T) {
		sim, exact, ok := ContactSimilarity(
			model.ContactInfo{Phone: "(843) 555-0199"},
			model.ContactInfo{Phone: "+1 843 555 0199"},
		)
		require.True(t, ok)
		assert.True(t, exact)
		assert.Equal(t, 1.0, sim)
	})

	t.Run("exact email is full credit", func(t *testing.T) {
		sim, exact, ok := ContactSimilarity(
			model.ContactInfo{Email: "Hello@TastyTacos.com"},
			model.ContactInfo{Email: "hello@tastytacos.com"},
		)
		require.True(t, ok)
		assert.True(t, exact)
		assert.Equal(t, 1.0, sim)
	})

	t.Run("same domain different page is partial", func(t *testing.T) {
		sim, exact, ok := ContactSimilarity(
			model.ContactInfo{Website: "https://tastytacos.com/menu"},
			model.ContactInfo{Website: "https://www.tastytacos.com/about"},
		)
		require.True(t, ok)
		assert.False(t, exact)
		assert.Equal(t, 0.5, sim)
	})

	t.Run("mismatched contact scores zero", func(t *testing.T) {
		sim, exact, ok := ContactSimilarity(
			model.ContactInfo{Phone: "8435550199"},
			model.ContactInfo{Phone: "8435550100"},
		)
		require.True(t, ok)
		assert.False(t, exact)
		assert.Zero(t, sim)
	})

	t.Run("no overlapping fields is neutral", func(t *testing.T) {
		_, _, ok := ContactSimilarity(
			model.ContactInfo{Phone: "8435550199"},
			model.ContactInfo{Email: "hello@tastytacos.com"},
		)
		assert.False(t, ok)
	})

	t.Run("both empty is neutral", func(t *testing.T) {
		_, _, ok := ContactSimilarity(model.ContactInfo{}, model.ContactInfo{})
		assert.False(t, ok)
	})
}

func TestMenuSimilarity(t *testing.T) {
	menu := func(items ...string) []model.MenuCategory {
		cat := model.MenuCategory{Name: "Mains"}
		for _, it := range items {
			cat.Items = append(cat.Items, model.MenuItem{Name: it})
		}
		return []model.MenuCategory{cat}
	}

	t.Run("identical menus", func(t *testing.T) {
		sim, ok := MenuSimilarity(menu("Carnitas Taco", "Elote"), menu("Carnitas Taco", "Elote"))
		require.True(t, ok)
		assert.Equal(t, 1.0, sim)
	})

	t.Run("partial overlap", func(t *testing.T) {
		sim, ok := MenuSimilarity(
			menu("Carnitas Taco", "Elote", "Churros"),
			menu("Carnitas Taco", "Elote", "Horchata"),
		)
		require.True(t, ok)
		assert.InDelta(t, 0.5, sim, 1e-9) // 2 shared / 4 total
	})

	t.Run("empty menu is neutral", func(t *testing.T) {
		_, ok := MenuSimilarity(nil, menu("Carnitas Taco"))
		assert.False(t, ok)
	})
}

func TestCompare(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	existing := &model.FoodTruck{
		Name:            "Tasty Tacos Food Truck",
		CurrentLocation: model.Location{Lat: 32.7765, Lng: -79.9311},
		ContactInfo:     model.ContactInfo{Phone: "(843) 555-0199"},
		Menu: []model.MenuCategory{{
			Name: "Mains",
			Items: []model.MenuItem{
				{Name: "Carnitas Taco"}, {Name: "Elote"}, {Name: "Churros"},
			},
		}},
	}

	t.Run("strong duplicate scores high with exact contact", func(t *testing.T) {
		candidate := &model.FoodTruck{
			Name:            "Tasty Tacos LLC",
			CurrentLocation: model.Location{Lat: 32.7770, Lng: -79.9315},
			ContactInfo:     model.ContactInfo{Phone: "+1 843 555 0199"},
			Menu:            existing.Menu,
		}
		score := scorer.Compare(candidate, existing)
		assert.GreaterOrEqual(t, score.Overall, scorer.Config().Confidence.High)
		assert.True(t, score.ExactContactMatch)
		assert.Contains(t, score.MatchedFields, "name")
		assert.Contains(t, score.MatchedFields, "contact")
	})

	t.Run("neutral dimensions are excluded from the average", func(t *testing.T) {
		candidate := &model.FoodTruck{Name: "Tasty Tacos"}
		score := scorer.Compare(candidate, existing)
		// Only name could be compared, so overall equals name similarity.
		require.Contains(t, score.Dimensions, "name")
		assert.NotContains(t, score.Dimensions, "location")
		assert.NotContains(t, score.Dimensions, "contact")
		assert.NotContains(t, score.Dimensions, "menu")
		assert.InDelta(t, score.Dimensions["name"], score.Overall, 1e-9)
	})

	t.Run("missing name degrades but does not abort", func(t *testing.T) {
		candidate := &model.FoodTruck{
			CurrentLocation: model.Location{Lat: 32.7765, Lng: -79.9311},
		}
		score := scorer.Compare(candidate, existing)
		require.Contains(t, score.Dimensions, "name")
		assert.Zero(t, score.Dimensions["name"])
		assert.Less(t, score.Overall, scorer.Config().Confidence.Medium)
	})

	t.Run("unrelated trucks stay below the floor", func(t *testing.T) {
		candidate := &model.FoodTruck{
			Name:            "Smoky Joe's BBQ",
			CurrentLocation: model.Location{Lat: 34.0007, Lng: -81.0348}, // Columbia, far away
			ContactInfo:     model.ContactInfo{Phone: "8035550111"},
		}
		score := scorer.Compare(candidate, existing)
		assert.Less(t, score.Overall, scorer.Config().Thresholds.Overall)
	})

	t.Run("score is bounded", func(t *testing.T) {
		score := scorer.Compare(existing, existing)
		assert.LessOrEqual(t, score.Overall, 1.0)
		assert.GreaterOrEqual(t, score.Overall, 0.0)
		assert.InDelta(t, 1.0, score.Overall, 1e-9)
	})
}

func TestHaversineKm(t *testing.T) {
	// Charleston to Columbia, SC is roughly 170 km great-circle.
	dist := HaversineKm(32.7765, -79.9311, 34.0007, -81.0348)
	assert.InDelta(t, 170, dist, 10)

	assert.Zero(t, HaversineKm(32.7765, -79.9311, 32.7765, -79.9311))
}
