package models

import "time"

// Source identifies which external site a record was scraped from.
type Source string

const (
	SourceRyanair Source = "ryanair"
	SourceBooking Source = "booking"
	SourceAirbnb  Source = "airbnb"
)

// KnownSources lists every source the pipeline accepts.
var KnownSources = []Source{SourceRyanair, SourceBooking, SourceAirbnb}

// Valid reports whether s is a recognized source.
func (s Source) Valid() bool {
	for _, k := range KnownSources {
		if s == k {
			return true
		}
	}
	return false
}

// Listing categories.
const (
	CategoryFlight    = "flight"
	CategoryHotel     = "hotel"
	CategoryApartment = "apartment"
)

// DefaultBookingClass is applied to flight records during normalization.
const DefaultBookingClass = "Regular"

// ListingRecord is the normalized, source-agnostic representation of one
// flight or accommodation offer. Adapters must run every record through
// scraper.Normalize before returning it, so downstream code can rely on
// defaults being filled and Price/Source being valid.
type ListingRecord struct {
	Source          Source
	DestinationCity string
	Name            string
	Category        string
	Price           float64 // EUR; per night for accommodations, per person for flights

	Rating      *float64 // 0-10, nil when the source showed none
	ReviewCount *int
	Bedrooms    *int

	FamilyFriendly bool
	HasKitchen     bool

	// Flight-only fields; Normalize fills the defaults.
	DirectFlight *bool
	BookingClass string

	URL       string
	ImageURL  string
	ScrapedAt time.Time

	// Merge metadata attached by the deduplicator; empty on raw records.
	MergedSources  []Source
	MergedURLs     []string
	DuplicateCount int
}

// RatingOrZero returns the rating with nil treated as 0, the convention the
// deduplicator uses when ranking group members.
func (r *ListingRecord) RatingOrZero() float64 {
	if r.Rating == nil {
		return 0
	}
	return *r.Rating
}
