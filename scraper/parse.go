package scraper

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// priceRegexp captures numeric price values
	priceRegexp = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)
	// decimalCommaRegexp matches a comma used as a decimal separator: exactly
	// two digits after it and no further digits ("49,99" but not "1,299")
	decimalCommaRegexp = regexp.MustCompile(`,(\d{2})([^\d]|$)`)
	// nightsRegexp captures "X nights" or "X night" patterns
	nightsRegexp = regexp.MustCompile(`(\d+)\s*nights?`)
	// ratingRegexp captures a numeric rating value
	ratingRegexp = regexp.MustCompile(`(\d{1,2}(?:\.\d{1,2})?)`)
	// reviewsRegexp captures review counts like "1,234 reviews"
	reviewsRegexp = regexp.MustCompile(`([\d,]+)\s*review`)
	// bedroomsRegexp captures bedroom counts like "2 bedrooms" or "2-bedroom"
	bedroomsRegexp = regexp.MustCompile(`(\d+)[\s-]*bed\s?room`)
)

// ParsePrice extracts a numeric price from raw text and converts multi-night
// totals to a per-night rate. Returns false when no price is present.
//
//	"€150 night"          → 150
//	"€450 for 3 nights"   → 150
//	"€49,99"              → 49.99
//	"1,299"               → 1299
//	"free"                → 0, false
func ParsePrice(raw string) (float64, bool) {
	raw = strings.ToLower(raw)

	cleaned := decimalCommaRegexp.ReplaceAllString(raw, ".$1$2")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	match := priceRegexp.FindString(cleaned)
	if match == "" {
		return 0, false
	}

	total, err := strconv.ParseFloat(match, 64)
	if err != nil || total < 0 {
		return 0, false
	}

	if m := nightsRegexp.FindStringSubmatch(raw); len(m) >= 2 {
		if nights, err := strconv.Atoi(m[1]); err == nil && nights > 1 {
			return total / float64(nights), true
		}
	}

	return total, true
}

// ParseRating extracts a 0-10 numeric rating from raw text like
// "Scored 8.4" or "4.85 (120 reviews)". Returns nil when absent or out of
// range.
func ParseRating(raw string) *float64 {
	m := ratingRegexp.FindStringSubmatch(raw)
	if len(m) < 2 {
		return nil
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil || val < 0 || val > 10 {
		return nil
	}
	return &val
}

// ParseReviewCount extracts a review count from text like "1,234 reviews".
func ParseReviewCount(raw string) *int {
	m := reviewsRegexp.FindStringSubmatch(strings.ToLower(strings.ReplaceAll(raw, ",", "")))
	if len(m) < 2 {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// ParseBedrooms extracts a bedroom count from text like "2 bedrooms".
func ParseBedrooms(raw string) *int {
	m := bedroomsRegexp.FindStringSubmatch(strings.ToLower(raw))
	if len(m) < 2 {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return nil
	}
	return &n
}
