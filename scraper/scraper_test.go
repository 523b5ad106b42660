package scraper

import (
	"testing"
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
)

func TestValidateAirportCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"DUB", "DUB", false},
		{"lis", "LIS", false},
		{" opo ", "OPO", false},
		{"", "", true},
		{"DUBL", "", true},
		{"D1B", "", true},
	}

	for _, tt := range tests {
		got, err := ValidateAirportCode(tt.in, "origin")
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateAirportCode(%q): err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidateAirportCode(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateWindow(t *testing.T) {
	future := time.Now().AddDate(0, 1, 0)

	tests := []struct {
		name    string
		window  models.DateWindow
		wantErr bool
	}{
		{"valid week", models.DateWindow{Depart: future, Return: future.AddDate(0, 0, 7)}, false},
		{"past departure", models.DateWindow{Depart: time.Now().AddDate(0, 0, -2), Return: future}, true},
		{"return before departure", models.DateWindow{Depart: future, Return: future.AddDate(0, 0, -1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWindow(tt.window)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateWindowLocalMidnight(t *testing.T) {
	east := time.FixedZone("UTC+13", 13*3600)
	west := time.FixedZone("UTC-11", -11*3600)

	tests := []struct {
		name    string
		now     time.Time
		depart  time.Time
		wantErr bool
	}{
		// Shortly after local midnight far east of UTC: yesterday evening
		// local time must already count as past.
		{
			"east of UTC rejects yesterday",
			time.Date(2026, 8, 30, 1, 0, 0, 0, east),
			time.Date(2026, 8, 29, 20, 0, 0, 0, east),
			true,
		},
		// Late evening far west of UTC: earlier the same local day is
		// still today, not past.
		{
			"west of UTC keeps today valid",
			time.Date(2026, 8, 30, 23, 0, 0, 0, west),
			time.Date(2026, 8, 30, 8, 0, 0, 0, west),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := models.DateWindow{Depart: tt.depart, Return: tt.depart.AddDate(0, 0, 7)}
			err := validateWindowAt(w, tt.now)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateParty(t *testing.T) {
	tests := []struct {
		name    string
		party   models.Party
		wantErr bool
	}{
		{"family of four", models.Party{Adults: 2, ChildrenAges: []int{5, 9}}, false},
		{"no adults", models.Party{Adults: 0, ChildrenAges: []int{5}}, true},
		{"negative age", models.Party{Adults: 1, ChildrenAges: []int{-1}}, true},
		{"adult-aged child", models.Party{Adults: 1, ChildrenAges: []int{18}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParty(tt.party)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeFlightDefaults(t *testing.T) {
	rec := models.ListingRecord{
		Name:     "Ryanair DUB → LIS",
		Category: models.CategoryFlight,
		Price:    49.99,
	}
	Normalize(&rec, models.SourceRyanair)

	if rec.DirectFlight == nil || !*rec.DirectFlight {
		t.Error("flight record must default to direct")
	}
	if rec.BookingClass != models.DefaultBookingClass {
		t.Errorf("booking class: got %q, want %q", rec.BookingClass, models.DefaultBookingClass)
	}
	if rec.ScrapedAt.IsZero() {
		t.Error("ScrapedAt must be stamped")
	}
}

func TestNormalizeDropsOutOfRangeRating(t *testing.T) {
	bad := 11.5
	rec := models.ListingRecord{Name: "X", Rating: &bad, Price: -5}
	Normalize(&rec, models.SourceBooking)

	if rec.Rating != nil {
		t.Errorf("rating: got %v, want nil", *rec.Rating)
	}
	if rec.Price != 0 {
		t.Errorf("price: got %.2f, want clamped to 0", rec.Price)
	}
	if rec.Category != models.CategoryHotel {
		t.Errorf("category: got %q, want default hotel", rec.Category)
	}
}

func TestNormalizePreservesExplicitFields(t *testing.T) {
	indirect := false
	rec := models.ListingRecord{
		Name:         "  Lisboa   Central  ",
		Category:     models.CategoryFlight,
		DirectFlight: &indirect,
		BookingClass: "Flexi",
	}
	Normalize(&rec, models.SourceRyanair)

	if *rec.DirectFlight {
		t.Error("explicit DirectFlight=false must be preserved")
	}
	if rec.BookingClass != "Flexi" {
		t.Errorf("booking class: got %q, want Flexi", rec.BookingClass)
	}
	if rec.Name != "Lisboa Central" {
		t.Errorf("name: got %q, want collapsed whitespace", rec.Name)
	}
}
