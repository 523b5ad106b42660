package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
)

// CSVWriter dumps listings to a CSV file as an inspection snapshot.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"source", "city", "name", "category", "price", "rating", "reviews",
		"bedrooms", "family_friendly", "url", "merged_sources", "duplicates", "scraped_at",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// Dump appends the listings to the CSV file.
func (c *CSVWriter) Dump(listings []models.ListingRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		row := []string{
			string(l.Source),
			l.DestinationCity,
			l.Name,
			l.Category,
			strconv.FormatFloat(l.Price, 'f', 2, 64),
			formatRating(l.Rating),
			formatInt(l.ReviewCount),
			formatInt(l.Bedrooms),
			strconv.FormatBool(l.FamilyFriendly),
			l.URL,
			joinSources(l.MergedSources),
			strconv.Itoa(l.DuplicateCount),
			l.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

var _ ListingDumper = (*CSVWriter)(nil)

func formatRating(r *float64) string {
	if r == nil {
		return ""
	}
	return strconv.FormatFloat(*r, 'f', 1, 64)
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func joinSources(sources []models.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, "|")
}
