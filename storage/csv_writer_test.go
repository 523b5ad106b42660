package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
)

func TestCSVWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "listings.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}

	rating := 8.4
	reviews := 1234
	records := []models.ListingRecord{
		{
			Source:          models.SourceBooking,
			DestinationCity: "Lisbon",
			Name:            "Hotel Lisboa Central",
			Category:        models.CategoryHotel,
			Price:           120,
			Rating:          &rating,
			ReviewCount:     &reviews,
			FamilyFriendly:  true,
			URL:             "https://booking.example/x",
			MergedSources:   []models.Source{models.SourceBooking, models.SourceAirbnb},
			DuplicateCount:  2,
			ScrapedAt:       time.Now(),
		},
		{
			Source:          models.SourceRyanair,
			DestinationCity: "Lisbon",
			Name:            "Ryanair DUB → LIS",
			Category:        models.CategoryFlight,
			Price:           49.99,
			DuplicateCount:  1,
		},
	}

	if err := w.Dump(records); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2 records", len(rows))
	}

	first := rows[1]
	if first[0] != "booking" || first[2] != "Hotel Lisboa Central" {
		t.Errorf("first row: got %v", first)
	}
	if first[4] != "120.00" {
		t.Errorf("price column: got %q, want 120.00", first[4])
	}
	if first[10] != "booking|airbnb" {
		t.Errorf("merged sources column: got %q", first[10])
	}

	second := rows[2]
	if second[5] != "" {
		t.Errorf("missing rating must render empty, got %q", second[5])
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatRating(nil); got != "" {
		t.Errorf("formatRating(nil): got %q, want empty", got)
	}
	r := 8.4
	if got := formatRating(&r); got != "8.4" {
		t.Errorf("formatRating(8.4): got %q, want 8.4", got)
	}
	if got := formatInt(nil); got != "" {
		t.Errorf("formatInt(nil): got %q, want empty", got)
	}
}
