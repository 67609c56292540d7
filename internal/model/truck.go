package model

import (
	"strings"
	"time"
)

// VerificationStatus tracks human review state of a truck record.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFlagged  VerificationStatus = "flagged"
)

// Location is a point-in-time position of a truck.
type Location struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Address   string    `json:"address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HasCoordinates reports whether the location carries usable GPS data.
// (0,0) is treated as "no fix" — it is the normalization default and not a
// plausible vending spot.
func (l Location) HasCoordinates() bool {
	return l.Lat != 0 || l.Lng != 0
}

// ScheduledLocation is a future vending stop announced by the truck.
type ScheduledLocation struct {
	Location
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// ContactInfo holds ways to reach the operator.
type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

// Empty reports whether no contact field is set.
func (c ContactInfo) Empty() bool {
	return c.Phone == "" && c.Email == "" && c.Website == ""
}

// SocialMedia holds the truck's social profiles.
type SocialMedia struct {
	Instagram string `json:"instagram,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	TikTok    string `json:"tiktok,omitempty"`
	Yelp      string `json:"yelp,omitempty"`
}

// MenuItem is a single dish on the menu.
type MenuItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	DietaryTags []string `json:"dietary_tags,omitempty"`
}

// MenuCategory groups menu items under a heading.
type MenuCategory struct {
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

// DayHours is the open/close window for one day of the week.
type DayHours struct {
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed,omitempty"`
}

// OperatingHours covers a full week. Days without data default to closed.
type OperatingHours struct {
	Monday    DayHours `json:"monday"`
	Tuesday   DayHours `json:"tuesday"`
	Wednesday DayHours `json:"wednesday"`
	Thursday  DayHours `json:"thursday"`
	Friday    DayHours `json:"friday"`
	Saturday  DayHours `json:"saturday"`
	Sunday    DayHours `json:"sunday"`
}

// FoodTruck is a persisted food truck record.
type FoodTruck struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Description        string              `json:"description,omitempty"`
	CurrentLocation    Location            `json:"current_location"`
	ScheduledLocations []ScheduledLocation `json:"scheduled_locations,omitempty"`
	OperatingHours     OperatingHours      `json:"operating_hours"`
	Menu               []MenuCategory      `json:"menu,omitempty"`
	ContactInfo        ContactInfo         `json:"contact_info"`
	SocialMedia        SocialMedia         `json:"social_media"`
	CuisineType        []string            `json:"cuisine_type,omitempty"`
	PriceRange         string              `json:"price_range,omitempty"`
	Specialties        []string            `json:"specialties,omitempty"`
	DataQualityScore   float64             `json:"data_quality_score"`
	VerificationStatus VerificationStatus  `json:"verification_status"`
	SourceURLs         []string            `json:"source_urls"`
	LastScrapedAt      time.Time           `json:"last_scraped_at"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// PrimarySourceURL returns the first source URL, or "" for a record with no
// provenance (possible only transiently during a merge).
func (t *FoodTruck) PrimarySourceURL() string {
	if len(t.SourceURLs) == 0 {
		return ""
	}
	return t.SourceURLs[0]
}

// AddSourceURL appends url to SourceURLs if not already present.
func (t *FoodTruck) AddSourceURL(url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		return
	}
	for _, existing := range t.SourceURLs {
		if existing == url {
			return
		}
	}
	t.SourceURLs = append(t.SourceURLs, url)
}

// FlatMenuItems returns all item names across categories, in menu order.
func (t *FoodTruck) FlatMenuItems() []string {
	var names []string
	for _, cat := range t.Menu {
		for _, item := range cat.Items {
			if item.Name != "" {
				names = append(names, item.Name)
			}
		}
	}
	return names
}
