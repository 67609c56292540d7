package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ExtractedTruck is the candidate record produced by the structured
// extraction service. Every field is optional — the extractor returns
// whatever it could find on the page. A nil Name is the defined "not a real
// food truck" signal and leads to a discard, not a job failure.
type ExtractedTruck struct {
	Name               *string              `json:"name"`
	Description        *string              `json:"description,omitempty"`
	CurrentLocation    *ExtractedLocation   `json:"current_location,omitempty"`
	ScheduledLocations []ExtractedLocation  `json:"scheduled_locations,omitempty"`
	OperatingHours     map[string]DayHours  `json:"operating_hours,omitempty"`
	Menu               []ExtractedCategory  `json:"menu,omitempty"`
	ContactInfo        *ExtractedContact    `json:"contact_info,omitempty"`
	SocialMedia        map[string]string    `json:"social_media,omitempty"`
	CuisineType        []string             `json:"cuisine_type,omitempty"`
	PriceRange         *string              `json:"price_range,omitempty"`
	Specialties        []string             `json:"specialties,omitempty"`
}

// ExtractedLocation is the raw location shape from extraction.
type ExtractedLocation struct {
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Address   *string  `json:"address,omitempty"`
	City      *string  `json:"city,omitempty"`
	State     *string  `json:"state,omitempty"`
	ZipCode   *string  `json:"zip_code,omitempty"`
	RawText   *string  `json:"raw_text,omitempty"`
	StartTime *string  `json:"start_time,omitempty"`
	EndTime   *string  `json:"end_time,omitempty"`
}

// ExtractedContact is the raw contact shape from extraction.
type ExtractedContact struct {
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Website *string `json:"website,omitempty"`
}

// ExtractedCategory is a raw menu category; Price may arrive as a string
// ("$12.50") or a number depending on what the model saw on the page.
type ExtractedCategory struct {
	Name  *string         `json:"name,omitempty"`
	Items []ExtractedItem `json:"items,omitempty"`
}

// ExtractedItem is a raw menu item.
type ExtractedItem struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       any      `json:"price,omitempty"`
	DietaryTags []string `json:"dietary_tags,omitempty"`
}

// HasName reports whether extraction produced a usable name. Besides nil and
// empty, the extractor's literal placeholder "unknown food truck" counts as
// missing.
func (e *ExtractedTruck) HasName() bool {
	if e == nil || e.Name == nil {
		return false
	}
	name := strings.TrimSpace(*e.Name)
	return name != "" && !strings.EqualFold(name, "unknown food truck")
}

var priceDigits = regexp.MustCompile(`[^\d.\-]`)

// Normalize converts the raw candidate into a fully-defaulted FoodTruck.
// This is the single point where optionality is resolved: downstream
// components (scoring, dedupe, persistence) only ever see the defaulted
// shape. The returned truck has no ID; the store assigns one on create.
func (e *ExtractedTruck) Normalize(sourceURL string, now time.Time) FoodTruck {
	truck := FoodTruck{
		Name:               strOrEmpty(e.Name),
		Description:        strOrEmpty(e.Description),
		CurrentLocation:    normalizeLocation(e.CurrentLocation, now),
		OperatingHours:     normalizeHours(e.OperatingHours),
		Menu:               normalizeMenu(e.Menu),
		ContactInfo:        normalizeContact(e.ContactInfo),
		SocialMedia:        normalizeSocial(e.SocialMedia),
		CuisineType:        cloneStrings(e.CuisineType),
		PriceRange:         strOrEmpty(e.PriceRange),
		Specialties:        cloneStrings(e.Specialties),
		VerificationStatus: VerificationPending,
		LastScrapedAt:      now,
	}
	truck.Name = strings.TrimSpace(truck.Name)

	for _, loc := range e.ScheduledLocations {
		truck.ScheduledLocations = append(truck.ScheduledLocations, ScheduledLocation{
			Location:  normalizeLocation(&loc, now),
			StartTime: strOrEmpty(loc.StartTime),
			EndTime:   strOrEmpty(loc.EndTime),
		})
	}

	if sourceURL != "" {
		truck.SourceURLs = []string{sourceURL}
	}

	truck.DataQualityScore = completenessScore(&truck)
	return truck
}

// completenessScore rates how much of the schema the candidate filled in.
// Name is weighted heaviest; the rest reward richer records.
func completenessScore(t *FoodTruck) float64 {
	var score, total float64
	add := func(weight float64, present bool) {
		total += weight
		if present {
			score += weight
		}
	}
	add(0.30, t.Name != "")
	add(0.10, t.Description != "")
	add(0.15, t.CurrentLocation.HasCoordinates() || t.CurrentLocation.Address != "")
	add(0.15, !t.ContactInfo.Empty())
	add(0.15, len(t.Menu) > 0)
	add(0.05, len(t.CuisineType) > 0)
	add(0.05, t.PriceRange != "")
	add(0.05, t.SocialMedia != SocialMedia{})
	return score / total
}

func normalizeLocation(loc *ExtractedLocation, now time.Time) Location {
	if loc == nil {
		return Location{Timestamp: now}
	}
	parts := make([]string, 0, 4)
	for _, p := range []*string{loc.Address, loc.City, loc.State, loc.ZipCode} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	address := strings.Join(parts, ", ")
	if address == "" && loc.RawText != nil {
		address = strings.TrimSpace(*loc.RawText)
	}
	return Location{
		Lat:       floatOrZero(loc.Lat),
		Lng:       floatOrZero(loc.Lng),
		Address:   address,
		Timestamp: now,
	}
}

func normalizeHours(hours map[string]DayHours) OperatingHours {
	closed := DayHours{Closed: true}
	out := OperatingHours{
		Monday: closed, Tuesday: closed, Wednesday: closed, Thursday: closed,
		Friday: closed, Saturday: closed, Sunday: closed,
	}
	pick := func(day string) DayHours {
		if h, ok := hours[day]; ok && (h.Open != "" || h.Close != "" || h.Closed) {
			return h
		}
		return closed
	}
	if hours != nil {
		out.Monday = pick("monday")
		out.Tuesday = pick("tuesday")
		out.Wednesday = pick("wednesday")
		out.Thursday = pick("thursday")
		out.Friday = pick("friday")
		out.Saturday = pick("saturday")
		out.Sunday = pick("sunday")
	}
	return out
}

func normalizeMenu(raw []ExtractedCategory) []MenuCategory {
	var menu []MenuCategory
	for _, cat := range raw {
		name := strings.TrimSpace(strOrEmpty(cat.Name))
		if name == "" {
			name = "Uncategorized"
		}
		items := make([]MenuItem, 0, len(cat.Items))
		for _, item := range cat.Items {
			itemName := strings.TrimSpace(strOrEmpty(item.Name))
			if itemName == "" {
				continue
			}
			items = append(items, MenuItem{
				Name:        itemName,
				Description: strOrEmpty(item.Description),
				Price:       parsePrice(item.Price),
				DietaryTags: cloneStrings(item.DietaryTags),
			})
		}
		if len(items) == 0 {
			continue
		}
		menu = append(menu, MenuCategory{Name: name, Items: items})
	}
	return menu
}

// parsePrice accepts the number or string the extractor produced; "$12.50"
// parses to 12.50, junk parses to nil.
func parsePrice(raw any) *float64 {
	switch v := raw.(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case string:
		cleaned := priceDigits.ReplaceAllString(v, "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func normalizeContact(c *ExtractedContact) ContactInfo {
	if c == nil {
		return ContactInfo{}
	}
	return ContactInfo{
		Phone:   strings.TrimSpace(strOrEmpty(c.Phone)),
		Email:   strings.TrimSpace(strOrEmpty(c.Email)),
		Website: strings.TrimSpace(strOrEmpty(c.Website)),
	}
}

func normalizeSocial(m map[string]string) SocialMedia {
	return SocialMedia{
		Instagram: m["instagram"],
		Facebook:  m["facebook"],
		Twitter:   m["twitter"],
		TikTok:    m["tiktok"],
		Yelp:      m["yelp"],
	}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func cloneStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
