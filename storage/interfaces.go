package storage

import "github.com/mikandro/smartfamilytravelscout-sub001/models"

// ListingStore is the interface a persistence backend must satisfy.
type ListingStore interface {
	Save(listings []models.ListingRecord, job *models.ScrapeJob) (*SaveStats, error)
	Close() error
}

// ListingDumper is the interface for raw-record exports (CSV snapshots).
type ListingDumper interface {
	Dump(listings []models.ListingRecord) error
	Close() error
}

// SaveStats summarizes one persistence run.
type SaveStats struct {
	Total    int
	Inserted int
	Updated  int
	Skipped  int
}
