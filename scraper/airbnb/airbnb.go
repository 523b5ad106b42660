// Package airbnb implements the short-stay rental adapter. It prefers a
// hosted scraping actor when an API key is configured, and falls back to
// driving the public search page through a browser session when the managed
// path is unavailable. A rejected API key is never papered over with a
// fallback: it is reported so the operator fixes the credential.
package airbnb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/quota"
	"github.com/mikandro/smartfamilytravelscout-sub001/scraper"
	"github.com/mikandro/smartfamilytravelscout-sub001/utils"
)

const (
	baseURL = "https://www.airbnb.com"
	source  = models.SourceAirbnb

	navigateTimeout = 60 * time.Second
	resultsTimeout  = 30 * time.Second
	maxListings     = 25
)

// Family-suitability thresholds, rating on the 0-5 star scale.
const (
	minBedrooms = 2
	maxPrice    = 150.0
	minStars    = 4.0
)

// Scraper is the short-stay rental adapter.
type Scraper struct {
	quota    quota.Store
	sessions scraper.SessionFactory
	managed  *ManagedClient // nil when no API key is configured
	logger   *utils.Logger
}

// New creates an Airbnb adapter. managed may be nil, in which case only the
// direct browser path is used.
func New(q quota.Store, sessions scraper.SessionFactory, managed *ManagedClient, logger *utils.Logger) *Scraper {
	return &Scraper{quota: q, sessions: sessions, managed: managed, logger: logger}
}

// Name implements scraper.Scraper.
func (s *Scraper) Name() models.Source { return source }

// Fetch runs one short-stay search and returns normalized apartment
// listings. The managed actor path is tried first when configured; any
// managed failure other than a rejected key falls back to the direct
// browser path.
func (s *Scraper) Fetch(ctx context.Context, req models.SearchRequest) ([]models.ListingRecord, error) {
	city, err := scraper.ValidateCity(req.Destination)
	if err != nil {
		return nil, err
	}
	if err := scraper.ValidateWindow(req.Window); err != nil {
		return nil, err
	}
	if err := scraper.ValidateParty(req.Party); err != nil {
		return nil, err
	}

	if err := s.quota.CheckAndIncrement(source); err != nil {
		return nil, err
	}

	if s.managed != nil {
		records, err := s.fetchManaged(ctx, city, req)
		if err == nil {
			return records, nil
		}
		var authErr *scraper.AuthError
		if errors.As(err, &authErr) {
			return nil, err
		}
		s.logger.Warn("[airbnb] Managed path failed, falling back to direct: %v", err)
	}

	return s.fetchDirect(ctx, city, req)
}

// fetchManaged pulls listings through the hosted actor.
func (s *Scraper) fetchManaged(ctx context.Context, city string, req models.SearchRequest) ([]models.ListingRecord, error) {
	s.logger.Info("[airbnb] Searching %s via managed actor", city)

	items, err := s.managed.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	var records []models.ListingRecord
	for _, it := range items {
		if it.Name == "" || it.Pricing == nil {
			continue
		}
		hasKitchen := false
		for _, a := range it.Amenities {
			if strings.EqualFold(a, "kitchen") {
				hasKitchen = true
				break
			}
		}
		rec := models.ListingRecord{
			Source:          source,
			DestinationCity: city,
			Name:            it.Name,
			Category:        models.CategoryApartment,
			Price:           *it.Pricing,
			Rating:          it.Rating,
			ReviewCount:     it.Reviews,
			Bedrooms:        it.Bedrooms,
			HasKitchen:      hasKitchen,
			URL:             it.URL,
			ImageURL:        it.PictureURL,
		}
		scraper.Normalize(&rec, source)
		records = append(records, rec)
	}

	filtered := filterFamilySuitable(records)
	s.logger.Info("[airbnb] Managed actor returned %d listings, %d family-suitable", len(records), len(filtered))
	return filtered, nil
}

// fetchDirect drives the public search page through a browser session.
func (s *Scraper) fetchDirect(ctx context.Context, city string, req models.SearchRequest) ([]models.ListingRecord, error) {
	sess, err := s.sessions(source)
	if err != nil {
		return nil, scraper.NewNetworkError(source, "browser session init failed", baseURL, 0, err)
	}
	defer sess.Close()

	searchURL := s.buildSearchURL(city, req)
	s.logger.Info("[airbnb] Searching %s via direct browser path", city)

	if err := sess.Navigate(ctx, searchURL, navigateTimeout); err != nil {
		return nil, err
	}
	scraper.HumanDelay(ctx, 3*time.Second, 5*time.Second)

	if err := scraper.CheckChallenge(ctx, sess, source, searchURL, "entry"); err != nil {
		return nil, err
	}

	if err := sess.WaitVisible(ctx, "[data-testid=\"card-container\"]", resultsTimeout); err != nil {
		if chErr := scraper.CheckChallenge(ctx, sess, source, searchURL, "results"); chErr != nil {
			return nil, chErr
		}
	}

	// Scroll so lazily rendered cards attach.
	for i := 0; i < 2; i++ {
		var discard interface{}
		if err := sess.Evaluate(ctx, "window.scrollBy(0, document.body.scrollHeight / 2) || true", &discard, 5*time.Second); err != nil {
			break
		}
		scraper.HumanDelay(ctx, time.Second, 2*time.Second)
	}

	cards, err := s.extractCards(ctx, sess)
	if err != nil {
		return nil, err
	}

	records := s.buildRecords(cards, city)
	filtered := filterFamilySuitable(records)
	s.logger.Info("[airbnb] Extracted %d listings, %d family-suitable", len(records), len(filtered))
	return filtered, nil
}

// buildSearchURL assembles the stay-search URL for the destination.
func (s *Scraper) buildSearchURL(city string, req models.SearchRequest) string {
	q := url.Values{}
	q.Set("checkin", req.Window.Depart.Format("2006-01-02"))
	q.Set("checkout", req.Window.Return.Format("2006-01-02"))
	q.Set("adults", fmt.Sprintf("%d", req.Party.Adults))
	q.Set("children", fmt.Sprintf("%d", req.Party.Children()))
	return fmt.Sprintf("%s/s/%s/homes?%s", baseURL, url.PathEscape(city), q.Encode())
}

// stayCard is the raw shape extracted from a listing card.
type stayCard struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Price    string `json:"price"`
	Rating   string `json:"rating"`
	URL      string `json:"url"`
	ImageURL string `json:"imageUrl"`
}

// extractCards reads listing cards from the live page, with a goquery pass
// over the raw HTML as fallback.
func (s *Scraper) extractCards(ctx context.Context, sess scraper.Session) ([]stayCard, error) {
	var cards []stayCard
	err := sess.Evaluate(ctx, `
		(function() {
			var results = [];
			var seen = {};
			var cards = document.querySelectorAll('[data-testid="card-container"], [itemprop="itemListElement"]');
			for (var i = 0; i < cards.length && results.length < `+fmt.Sprintf("%d", maxListings)+`; i++) {
				var card = cards[i];
				var link = card.querySelector('a[href*="/rooms/"]');
				if (!link || !link.href || seen[link.href]) continue;
				seen[link.href] = true;

				var titleEl = card.querySelector('[data-testid="listing-card-title"]');
				var subEl = card.querySelector('[data-testid="listing-card-subtitle"]');
				var priceEl = card.querySelector('[data-testid="price-availability-row"]') ||
				              card.querySelector('span[class*="price"]');
				var ratingEl = card.querySelector('[aria-label*="rating"]');
				var ratingText = '';
				if (ratingEl) {
					ratingText = ratingEl.innerText || ratingEl.getAttribute('aria-label') || '';
					var m = ratingText.match(/(\d\.\d+)/);
					ratingText = m ? m[1] : '';
				}
				var img = card.querySelector('img');
				results.push({
					title: titleEl ? titleEl.innerText.trim() : '',
					subtitle: subEl ? subEl.innerText.trim() : '',
					price: priceEl ? priceEl.innerText : '',
					rating: ratingText,
					url: link.href,
					imageUrl: img ? img.src : ''
				});
			}
			return results;
		})()
	`, &cards, 30*time.Second)
	if err != nil {
		return nil, err
	}

	var valid []stayCard
	for _, c := range cards {
		if c.Title != "" {
			valid = append(valid, c)
		}
	}
	if len(valid) > 0 {
		return valid, nil
	}

	s.logger.Warn("[airbnb] No listing cards found, trying content fallback")
	html, err := sess.HTML(ctx, 15*time.Second)
	if err != nil {
		return nil, err
	}
	valid, parseErr := parseCards(html)
	if parseErr != nil {
		if _, shotErr := sess.Screenshot(ctx, "no_listings_found"); shotErr != nil {
			s.logger.Debug("[airbnb] screenshot failed: %v", shotErr)
		}
		return nil, parseErr
	}
	return valid, nil
}

// parseCards is the content-based fallback over raw results HTML.
func parseCards(html string) ([]stayCard, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, scraper.NewParseError(source, "results page is not parseable HTML", "document", html, false, err)
	}

	seen := map[string]bool{}
	var cards []stayCard
	doc.Find("[data-testid=\"card-container\"], [itemprop=\"itemListElement\"]").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		href, ok := card.Find("a[href*=\"/rooms/\"]").First().Attr("href")
		if !ok || seen[href] {
			return true
		}
		seen[href] = true

		c := stayCard{
			Title:    strings.TrimSpace(card.Find("[data-testid=\"listing-card-title\"]").First().Text()),
			Subtitle: strings.TrimSpace(card.Find("[data-testid=\"listing-card-subtitle\"]").First().Text()),
			Price:    strings.TrimSpace(card.Find("[data-testid=\"price-availability-row\"]").First().Text()),
			URL:      href,
		}
		if src, imgOK := card.Find("img").First().Attr("src"); imgOK {
			c.ImageURL = src
		}
		if c.Title != "" {
			cards = append(cards, c)
		}
		return len(cards) < maxListings
	})

	if len(cards) == 0 {
		return nil, scraper.NewParseError(source, "no listing cards found on results page", "listing_cards", html, false, nil)
	}
	return cards, nil
}

// buildRecords converts raw cards into normalized apartment listings,
// skipping repeated room URLs.
func (s *Scraper) buildRecords(cards []stayCard, city string) []models.ListingRecord {
	seen := utils.NewURLSet()
	var records []models.ListingRecord
	for _, c := range cards {
		if c.URL != "" && !seen.Add(c.URL) {
			continue
		}
		price, ok := scraper.ParsePrice(c.Price)
		if !ok {
			s.logger.Debug("[airbnb] Skipping %q: unparseable price %q", c.Title, c.Price)
			continue
		}

		pageURL := c.URL
		if strings.HasPrefix(pageURL, "/") {
			pageURL = baseURL + pageURL
		}

		subtitle := strings.ToLower(c.Subtitle)
		rec := models.ListingRecord{
			Source:          source,
			DestinationCity: city,
			Name:            c.Title,
			Category:        models.CategoryApartment,
			Price:           price,
			Rating:          scraper.ParseRating(c.Rating),
			Bedrooms:        scraper.ParseBedrooms(c.Subtitle),
			HasKitchen:      strings.Contains(subtitle, "kitchen"),
			URL:             pageURL,
			ImageURL:        c.ImageURL,
		}
		scraper.Normalize(&rec, source)
		records = append(records, rec)
	}
	return records
}

// filterFamilySuitable keeps listings that work for a family: enough
// bedrooms or a kitchen (unknown bedrooms pass), affordable, and decently
// rated (unknown passes).
func filterFamilySuitable(records []models.ListingRecord) []models.ListingRecord {
	var out []models.ListingRecord
	for _, r := range records {
		if r.Bedrooms != nil && *r.Bedrooms < minBedrooms && !r.HasKitchen {
			continue
		}
		if r.Price > maxPrice {
			continue
		}
		if r.Rating != nil && *r.Rating < minStars {
			continue
		}
		r.FamilyFriendly = true
		out = append(out, r)
	}
	return out
}
