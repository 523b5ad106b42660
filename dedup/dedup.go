// Package dedup collapses near-duplicate listings gathered from different
// sources. Two listings are considered the same property when their
// normalized names share a prefix, they sit in the same city, and their
// prices land in the same bucket. Exact string equality is useless here:
// the same hotel appears as "Hotel Lisboa Central" on one site and
// "Lisboa Central Apartment" on another.
package dedup

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/utils"
)

// Typology words stripped before comparing names, so "Hotel X" and
// "X Apartment" can collide.
var typologyWords = []string{"apartment", "hotel"}

// Deduper groups listings by a fuzzy identity key and keeps one
// representative per group.
type Deduper struct {
	// BucketSize is the price bucket width; listings whose prices fall in
	// the same bucket can be grouped.
	BucketSize float64
	// NamePrefixLen is how many characters of the normalized name join the
	// key.
	NamePrefixLen int

	Logger *utils.Logger
}

// New returns a Deduper with the standard tuning.
func New(logger *utils.Logger) *Deduper {
	return &Deduper{BucketSize: 10, NamePrefixLen: 20, Logger: logger}
}

// Deduplicate collapses the input into one representative per fuzzy-identity
// group. The representative is the highest-rated member (missing rating
// counts as zero), ties broken by lowest price; it carries the union of the
// group's sources and URLs and a count of how many listings it stands for.
// A listing with no usable price can never be matched and stays a singleton.
func (d *Deduper) Deduplicate(records []models.ListingRecord) []models.ListingRecord {
	groups := make(map[string][]models.ListingRecord)
	var order []string

	for _, rec := range records {
		key := d.key(rec)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	out := make([]models.ListingRecord, 0, len(order))
	for _, key := range order {
		out = append(out, merge(groups[key]))
	}

	if d.Logger != nil && len(out) < len(records) {
		d.Logger.Info("Deduplicated %d listings into %d unique properties", len(records), len(out))
	}
	return out
}

// key builds the fuzzy identity key. Unpriceable listings get a key unique
// to themselves.
func (d *Deduper) key(rec models.ListingRecord) string {
	if rec.Price <= 0 {
		// No price, no fuzzy match. Source+URL+name keeps it unique.
		return "singleton|" + string(rec.Source) + "|" + rec.URL + "|" + rec.Name
	}

	name := normalizeName(rec.Name)
	if runes := []rune(name); len(runes) > d.NamePrefixLen {
		name = string(runes[:d.NamePrefixLen])
	}
	city := strings.ToLower(strings.TrimSpace(rec.DestinationCity))
	bucket := int(math.Floor(rec.Price/d.BucketSize)) * int(d.BucketSize)

	return name + "|" + city + "|" + strconv.Itoa(bucket)
}

// normalizeName lowercases, strips typology words and collapses whitespace.
func normalizeName(name string) string {
	s := strings.ToLower(name)
	for _, w := range typologyWords {
		s = strings.ReplaceAll(s, w, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

// merge picks the group's representative and folds the rest into it.
func merge(group []models.ListingRecord) models.ListingRecord {
	best := group[0]
	for _, rec := range group[1:] {
		if rec.RatingOrZero() > best.RatingOrZero() {
			best = rec
		} else if rec.RatingOrZero() == best.RatingOrZero() && rec.Price < best.Price {
			best = rec
		}
	}

	urls := map[string]bool{}
	sources := map[models.Source]bool{}
	for _, rec := range group {
		if rec.URL != "" {
			urls[rec.URL] = true
		}
		sources[rec.Source] = true
	}

	best.MergedURLs = sortedKeys(urls)
	best.MergedSources = sortedSources(sources)
	best.DuplicateCount = len(group)
	return best
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSources(m map[models.Source]bool) []models.Source {
	out := make([]models.Source, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
