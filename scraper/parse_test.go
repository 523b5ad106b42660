package scraper

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"€150", 150, true},
		{"€ 49.99", 49.99, true},
		{"$1,250.50", 1250.50, true},
		{"€49,99", 49.99, true},
		{"49,99 €", 49.99, true},
		{"1,299", 1299, true},
		{"€450,00 for 3 nights", 150, true},
		{"€450 for 3 nights", 150, true},
		{"€89 per night", 89, true},
		{"free", 0, false},
		{"", 0, false},
		{"price on request", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParsePrice(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ParsePrice(%q): ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParsePrice(%q): got %.2f, want %.2f", tt.in, got, tt.want)
		}
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		nil_ bool
	}{
		{"8.4", 8.4, false},
		{"Scored 9.1", 9.1, false},
		{"4.85", 4.85, false},
		{"", 0, true},
		{"excellent", 0, true},
		{"11.2", 0, true},
	}

	for _, tt := range tests {
		got := ParseRating(tt.in)
		if tt.nil_ {
			if got != nil {
				t.Errorf("ParseRating(%q): got %v, want nil", tt.in, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("ParseRating(%q): got %v, want %.2f", tt.in, got, tt.want)
		}
	}
}

func TestParseReviewCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
		nil_ bool
	}{
		{"1,234 reviews", 1234, false},
		{"1 review", 1, false},
		{"no data", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got := ParseReviewCount(tt.in)
		if tt.nil_ {
			if got != nil {
				t.Errorf("ParseReviewCount(%q): got %v, want nil", tt.in, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("ParseReviewCount(%q): got %v, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseBedrooms(t *testing.T) {
	tests := []struct {
		in   string
		want int
		nil_ bool
	}{
		{"2 bedrooms", 2, false},
		{"3-bedroom apartment", 3, false},
		{"Entire home · 1 bedroom · kitchen", 1, false},
		{"studio", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got := ParseBedrooms(tt.in)
		if tt.nil_ {
			if got != nil {
				t.Errorf("ParseBedrooms(%q): got %v, want nil", tt.in, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("ParseBedrooms(%q): got %v, want %d", tt.in, got, tt.want)
		}
	}
}
