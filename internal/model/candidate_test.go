package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestHasName(t *testing.T) {
	tests := []struct {
		name string
		in   *ExtractedTruck
		want bool
	}{
		{"nil candidate", nil, false},
		{"nil name", &ExtractedTruck{}, false},
		{"empty name", &ExtractedTruck{Name: strPtr("")}, false},
		{"whitespace name", &ExtractedTruck{Name: strPtr("   ")}, false},
		{"placeholder", &ExtractedTruck{Name: strPtr("Unknown Food Truck")}, false},
		{"placeholder lowercase", &ExtractedTruck{Name: strPtr("unknown food truck")}, false},
		{"real name", &ExtractedTruck{Name: strPtr("Tasty Tacos")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.HasName())
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	e := &ExtractedTruck{Name: strPtr("  Tasty Tacos  ")}

	truck := e.Normalize("https://tastytacos.example.com", now)

	assert.Equal(t, "Tasty Tacos", truck.Name)
	assert.Empty(t, truck.ID, "store assigns the id")
	assert.Equal(t, VerificationPending, truck.VerificationStatus)
	assert.Equal(t, now, truck.LastScrapedAt)
	assert.Equal(t, []string{"https://tastytacos.example.com"}, truck.SourceURLs)

	// Unspecified days default to closed.
	assert.True(t, truck.OperatingHours.Monday.Closed)
	assert.True(t, truck.OperatingHours.Sunday.Closed)
	assert.Empty(t, truck.Menu)
	assert.True(t, truck.ContactInfo.Empty())
}

func TestNormalize_FullCandidate(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	e := &ExtractedTruck{
		Name: strPtr("Rolling Smoke"),
		CurrentLocation: &ExtractedLocation{
			Lat:     floatPtr(32.7765),
			Lng:     floatPtr(-79.9311),
			Address: strPtr("123 King St"),
			City:    strPtr("Charleston"),
			State:   strPtr("SC"),
		},
		OperatingHours: map[string]DayHours{
			"friday": {Open: "11:00", Close: "20:00"},
		},
		Menu: []ExtractedCategory{
			{
				Name: strPtr("BBQ"),
				Items: []ExtractedItem{
					{Name: strPtr("Brisket Plate"), Price: "$14.50"},
					{Name: strPtr("")}, // dropped
				},
			},
			{Name: strPtr("Empty")}, // category with no items is dropped
		},
		ContactInfo: &ExtractedContact{Phone: strPtr(" (843) 555-0101 ")},
		SocialMedia: map[string]string{"instagram": "@rollingsmoke", "myspace": "ignored"},
		CuisineType: []string{"bbq", ""},
		PriceRange:  strPtr("$$"),
	}

	truck := e.Normalize("https://rollingsmoke.example.com", now)

	assert.Equal(t, "123 King St, Charleston, SC", truck.CurrentLocation.Address)
	assert.InDelta(t, 32.7765, truck.CurrentLocation.Lat, 0.0001)
	assert.False(t, truck.OperatingHours.Friday.Closed)
	assert.Equal(t, "11:00", truck.OperatingHours.Friday.Open)
	assert.True(t, truck.OperatingHours.Saturday.Closed)

	require.Len(t, truck.Menu, 1)
	require.Len(t, truck.Menu[0].Items, 1)
	require.NotNil(t, truck.Menu[0].Items[0].Price)
	assert.InDelta(t, 14.50, *truck.Menu[0].Items[0].Price, 0.001)

	assert.Equal(t, "(843) 555-0101", truck.ContactInfo.Phone)
	assert.Equal(t, "@rollingsmoke", truck.SocialMedia.Instagram)
	assert.Equal(t, []string{"bbq"}, truck.CuisineType)
	assert.Greater(t, truck.DataQualityScore, 0.8)
}

func TestNormalize_RawTextAddressFallback(t *testing.T) {
	now := time.Now().UTC()
	e := &ExtractedTruck{
		Name:            strPtr("Tasty Tacos"),
		CurrentLocation: &ExtractedLocation{RawText: strPtr("parked at Marion Square most days")},
	}
	truck := e.Normalize("", now)
	assert.Equal(t, "parked at Marion Square most days", truck.CurrentLocation.Address)
	assert.Empty(t, truck.SourceURLs)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"float", 12.5, floatPtr(12.5)},
		{"int", 8, floatPtr(8)},
		{"dollar string", "$12.50", floatPtr(12.5)},
		{"plain string", "9.99", floatPtr(9.99)},
		{"junk string", "market price", nil},
		{"nil", nil, nil},
		{"bool", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePrice(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 0.001)
		})
	}
}

func TestCompletenessScore(t *testing.T) {
	nameOnly := &FoodTruck{Name: "Tasty Tacos"}
	assert.InDelta(t, 0.30, completenessScore(nameOnly), 0.001)

	empty := &FoodTruck{}
	assert.InDelta(t, 0.0, completenessScore(empty), 0.001)

	full := &FoodTruck{
		Name:            "Tasty Tacos",
		Description:     "street tacos",
		CurrentLocation: Location{Address: "Marion Square"},
		ContactInfo:     ContactInfo{Phone: "8435550101"},
		Menu:            []MenuCategory{{Name: "Tacos", Items: []MenuItem{{Name: "Al Pastor"}}}},
		CuisineType:     []string{"mexican"},
		PriceRange:      "$",
		SocialMedia:     SocialMedia{Instagram: "@tastytacos"},
	}
	assert.InDelta(t, 1.0, completenessScore(full), 0.001)
}

func TestJobTerminal(t *testing.T) {
	job := &ScrapingJob{Status: JobStatusFailed, RetryCount: 2, MaxRetries: 3}
	assert.False(t, job.Terminal(), "failed with retries left is not terminal")

	job.RetryCount = 3
	assert.True(t, job.Terminal())

	job = &ScrapingJob{Status: JobStatusCompleted}
	assert.True(t, job.Terminal())

	job = &ScrapingJob{Status: JobStatusRunning}
	assert.False(t, job.Terminal())
}

func TestAddSourceURL(t *testing.T) {
	truck := &FoodTruck{SourceURLs: []string{"https://a.example.com"}}
	truck.AddSourceURL("https://a.example.com")
	truck.AddSourceURL("https://b.example.com")
	truck.AddSourceURL("")
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, truck.SourceURLs)
}
