package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/utils"
)

const batchSize = 50

// PostgresWriter persists deduplicated listings to PostgreSQL with
// upsert-if-cheaper semantics, and records each run as a scrape job.
type PostgresWriter struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db, logger: logger}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id               SERIAL PRIMARY KEY,
			source           VARCHAR(50)   NOT NULL,
			destination_city TEXT          NOT NULL,
			name             TEXT          NOT NULL,
			category         VARCHAR(20)   NOT NULL,
			price            NUMERIC(10,2) NOT NULL DEFAULT 0,
			rating           NUMERIC(4,2),
			review_count     INTEGER,
			bedrooms         INTEGER,
			family_friendly  BOOLEAN       NOT NULL DEFAULT FALSE,
			url              TEXT          NOT NULL DEFAULT '',
			image_url        TEXT          NOT NULL DEFAULT '',
			duplicate_count  INTEGER       NOT NULL DEFAULT 1,
			scraped_at       TIMESTAMPTZ   NOT NULL,
			created_at       TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_name_city ON listings(LOWER(name), LOWER(destination_city));
		CREATE INDEX IF NOT EXISTS idx_listings_price     ON listings(price);
		CREATE INDEX IF NOT EXISTS idx_listings_source    ON listings(source);

		CREATE TABLE IF NOT EXISTS scrape_jobs (
			id            SERIAL PRIMARY KEY,
			job_type      VARCHAR(50) NOT NULL,
			source        VARCHAR(50) NOT NULL,
			status        VARCHAR(20) NOT NULL,
			items_scraped INTEGER     NOT NULL DEFAULT 0,
			error_message TEXT        NOT NULL DEFAULT '',
			started_at    TIMESTAMPTZ NOT NULL,
			completed_at  TIMESTAMPTZ
		);
	`)
	return err
}

// Save upserts the listings in batches, each batch inside its own
// transaction. An existing listing, matched case-insensitively by name and
// city, is updated only when the incoming price is lower. A batch failure
// rolls back that batch, marks the job failed, and stops: earlier committed
// batches stay committed.
func (pw *PostgresWriter) Save(listings []models.ListingRecord, job *models.ScrapeJob) (*SaveStats, error) {
	stats := &SaveStats{Total: len(listings)}

	if job != nil {
		if err := pw.insertJob(job); err != nil {
			return stats, err
		}
	}

	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := pw.saveBatch(listings[i:end], stats); err != nil {
			pw.failJob(job, err)
			return stats, fmt.Errorf("postgres: batch %d-%d: %w", i, end, err)
		}
	}

	if job != nil {
		if err := job.Complete(stats.Inserted + stats.Updated); err != nil {
			return stats, err
		}
		if err := pw.updateJob(job); err != nil {
			return stats, err
		}
	}

	pw.logger.Info("Saved %d listings: %d inserted, %d updated, %d skipped",
		stats.Total, stats.Inserted, stats.Updated, stats.Skipped)
	return stats, nil
}

// listingTx is the row-level surface upsertBatch needs from a transaction.
type listingTx interface {
	// findExisting returns the id and stored price of a listing matched
	// case-insensitively by name and city, or sql.ErrNoRows when absent.
	findExisting(name, city string) (int64, float64, error)
	insert(l models.ListingRecord) error
	updateCheaper(id int64, l models.ListingRecord) error
}

// upsertBatch applies the insert / update-if-cheaper / skip decision to each
// listing in the batch. Counts are only meaningful when err is nil; the
// caller discards them on rollback.
func upsertBatch(tx listingTx, batch []models.ListingRecord) (inserted, updated, skipped int, err error) {
	for _, l := range batch {
		existingID, existingPrice, err := tx.findExisting(l.Name, l.DestinationCity)

		switch {
		case err == sql.ErrNoRows:
			if err := tx.insert(l); err != nil {
				return 0, 0, 0, fmt.Errorf("insert %q: %w", l.Name, err)
			}
			inserted++

		case err != nil:
			return 0, 0, 0, fmt.Errorf("lookup %q: %w", l.Name, err)

		case l.Price < existingPrice:
			if err := tx.updateCheaper(existingID, l); err != nil {
				return 0, 0, 0, fmt.Errorf("update %q: %w", l.Name, err)
			}
			updated++

		default:
			skipped++
		}
	}
	return inserted, updated, skipped, nil
}

// sqlListingTx adapts a live transaction to the listingTx surface.
type sqlListingTx struct {
	tx *sql.Tx
}

func (s sqlListingTx) findExisting(name, city string) (int64, float64, error) {
	var id int64
	var price float64
	err := s.tx.QueryRow(`
		SELECT id, price FROM listings
		WHERE LOWER(name) = LOWER($1) AND LOWER(destination_city) = LOWER($2)
		LIMIT 1
	`, name, city).Scan(&id, &price)
	return id, price, err
}

func (s sqlListingTx) insert(l models.ListingRecord) error {
	_, err := s.tx.Exec(`
		INSERT INTO listings
			(source, destination_city, name, category, price, rating, review_count,
			 bedrooms, family_friendly, url, image_url, duplicate_count, scraped_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, l.Source, l.DestinationCity, l.Name, l.Category, l.Price, l.Rating,
		l.ReviewCount, l.Bedrooms, l.FamilyFriendly, l.URL, l.ImageURL,
		l.DuplicateCount, l.ScrapedAt)
	return err
}

func (s sqlListingTx) updateCheaper(id int64, l models.ListingRecord) error {
	_, err := s.tx.Exec(`
		UPDATE listings
		SET price = $1, url = $2, image_url = $3, rating = $4,
		    review_count = $5, scraped_at = $6
		WHERE id = $7
	`, l.Price, l.URL, l.ImageURL, l.Rating, l.ReviewCount, l.ScrapedAt, id)
	return err
}

// saveBatch runs one batch in a transaction, updating stats on commit.
func (pw *PostgresWriter) saveBatch(batch []models.ListingRecord, stats *SaveStats) error {
	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	inserted, updated, skipped, err := upsertBatch(sqlListingTx{tx}, batch)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	stats.Inserted += inserted
	stats.Updated += updated
	stats.Skipped += skipped
	return nil
}

// jobFailureMessage truncates a batch error so a page-sized driver error does
// not bloat the jobs table.
func jobFailureMessage(cause error) string {
	msg := cause.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}

// failJob records a batch failure on the job.
func (pw *PostgresWriter) failJob(job *models.ScrapeJob, cause error) {
	if job == nil {
		return
	}
	if err := job.Fail(jobFailureMessage(cause)); err != nil {
		pw.logger.Warn("Could not mark job failed: %v", err)
		return
	}
	if err := pw.updateJob(job); err != nil {
		pw.logger.Warn("Could not persist failed job: %v", err)
	}
}

func (pw *PostgresWriter) insertJob(job *models.ScrapeJob) error {
	err := pw.db.QueryRow(`
		INSERT INTO scrape_jobs (job_type, source, status, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, job.JobType, job.Source, job.Status, job.StartedAt).Scan(&job.ID)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) updateJob(job *models.ScrapeJob) error {
	_, err := pw.db.Exec(`
		UPDATE scrape_jobs
		SET status = $1, items_scraped = $2, error_message = $3, completed_at = $4
		WHERE id = $5
	`, job.Status, job.ItemsScraped, job.ErrorMessage, job.CompletedAt, job.ID)
	if err != nil {
		return fmt.Errorf("postgres: update job: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchByCity retrieves stored listings for a destination, cheapest first.
func (pw *PostgresWriter) FetchByCity(city string) ([]models.ListingRecord, error) {
	rows, err := pw.db.Query(`
		SELECT source, destination_city, name, category, price, rating,
		       review_count, bedrooms, family_friendly, url, image_url,
		       duplicate_count, scraped_at
		FROM listings
		WHERE LOWER(destination_city) = LOWER($1)
		ORDER BY price
	`, city)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch by city: %w", err)
	}
	defer rows.Close()

	var listings []models.ListingRecord
	for rows.Next() {
		var l models.ListingRecord
		if err := rows.Scan(
			&l.Source, &l.DestinationCity, &l.Name, &l.Category, &l.Price,
			&l.Rating, &l.ReviewCount, &l.Bedrooms, &l.FamilyFriendly,
			&l.URL, &l.ImageURL, &l.DuplicateCount, &l.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

var _ ListingStore = (*PostgresWriter)(nil)
