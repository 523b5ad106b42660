package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
)

// Scraper is the capability contract every source adapter implements: given
// one search request, produce a fully-normalized list of listings or fail
// with a single taxonomy error. Adapters report exactly one terminal
// outcome — partial results gathered before a hard failure are discarded.
// Validation failures are plain errors returned before any network activity.
type Scraper interface {
	Name() models.Source
	Fetch(ctx context.Context, req models.SearchRequest) ([]models.ListingRecord, error)
}

// ValidateAirportCode checks and normalizes a 3-letter IATA code.
func ValidateAirportCode(code, field string) (string, error) {
	code = strings.TrimSpace(strings.ToUpper(code))
	if code == "" {
		return "", fmt.Errorf("%s code cannot be empty", field)
	}
	if len(code) != 3 {
		return "", fmt.Errorf("invalid %s code %q: IATA codes must be 3 characters", field, code)
	}
	for _, r := range code {
		if !unicode.IsLetter(r) {
			return "", fmt.Errorf("invalid %s code %q: IATA codes must be alphabetic", field, code)
		}
	}
	return code, nil
}

// ValidateCity checks a free-text city name.
func ValidateCity(city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("city cannot be empty")
	}
	return city, nil
}

// ValidateWindow rejects windows that start in the past or end before they
// start.
func ValidateWindow(w models.DateWindow) error {
	return validateWindowAt(w, time.Now())
}

func validateWindowAt(w models.DateWindow, now time.Time) error {
	// Local midnight; Truncate would round against the UTC epoch and shift
	// the boundary by the UTC offset.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if w.Depart.Before(today) {
		return fmt.Errorf("departure date %s is in the past", w.Depart.Format("2006-01-02"))
	}
	if w.Return.Before(w.Depart) {
		return fmt.Errorf("return date %s is before departure date %s",
			w.Return.Format("2006-01-02"), w.Depart.Format("2006-01-02"))
	}
	return nil
}

// ValidateParty rejects parties with no adults or nonsensical child ages.
func ValidateParty(p models.Party) error {
	if p.Adults < 1 {
		return fmt.Errorf("party must include at least one adult")
	}
	for _, age := range p.ChildrenAges {
		if age < 0 || age > 17 {
			return fmt.Errorf("invalid child age %d", age)
		}
	}
	return nil
}

// Normalize fills defaults on a scraped record so adapters never return
// partially-shaped data: ScrapedAt is stamped if missing, flight records get
// DirectFlight=true and BookingClass "Regular", out-of-range ratings are
// dropped, and negative prices and counts are clamped to zero.
func Normalize(rec *models.ListingRecord, source models.Source) {
	if rec.Source == "" {
		rec.Source = source
	}
	if rec.ScrapedAt.IsZero() {
		rec.ScrapedAt = time.Now()
	}
	if rec.Category == "" {
		rec.Category = models.CategoryHotel
	}
	if rec.Price < 0 {
		rec.Price = 0
	}
	if rec.Rating != nil && (*rec.Rating < 0 || *rec.Rating > 10) {
		rec.Rating = nil
	}
	if rec.ReviewCount != nil && *rec.ReviewCount < 0 {
		rec.ReviewCount = nil
	}
	if rec.Category == models.CategoryFlight {
		if rec.DirectFlight == nil {
			direct := true
			rec.DirectFlight = &direct
		}
		if rec.BookingClass == "" {
			rec.BookingClass = models.DefaultBookingClass
		}
	}
	rec.Name = normalizeText(rec.Name)
	rec.DestinationCity = normalizeText(rec.DestinationCity)
}

// normalizeText strips leading/trailing whitespace and collapses internal
// whitespace.
func normalizeText(s string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(s), unicode.IsSpace)
	return strings.Join(fields, " ")
}
