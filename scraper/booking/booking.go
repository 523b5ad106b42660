// Package booking implements the hotel-search automation adapter. Listings
// come from the search results page; a content-based goquery pass backs up
// the in-page extraction when the page structure shifts.
package booking

import (
	"context"
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
	baseURL = "https://www.booking.com"
	source  = models.SourceBooking

	navigateTimeout = 60 * time.Second
	resultsTimeout  = 30 * time.Second
	maxListings     = 25
	scrollRounds    = 3
)

// Family-friendly thresholds applied after extraction.
const (
	minBedrooms = 2
	maxPrice    = 150.0
	minRating   = 7.5
)

// Scraper is the Booking.com hotel adapter.
type Scraper struct {
	quota    quota.Store
	sessions scraper.SessionFactory
	logger   *utils.Logger
}

// New creates a Booking.com adapter.
func New(q quota.Store, sessions scraper.SessionFactory, logger *utils.Logger) *Scraper {
	return &Scraper{quota: q, sessions: sessions, logger: logger}
}

// Name implements scraper.Scraper.
func (s *Scraper) Name() models.Source { return source }

// Fetch runs one hotel search for the destination city and returns
// normalized, family-filtered hotel listings.
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

	sess, err := s.sessions(source)
	if err != nil {
		return nil, scraper.NewNetworkError(source, "browser session init failed", baseURL, 0, err)
	}
	defer sess.Close()

	searchURL := s.buildSearchURL(city, req)
	s.logger.Info("[booking] Searching hotels in %s (%d adults, %d children)",
		city, req.Party.Adults, req.Party.Children())

	if err := sess.Navigate(ctx, searchURL, navigateTimeout); err != nil {
		return nil, err
	}
	scraper.HumanDelay(ctx, 2*time.Second, 4*time.Second)

	if err := scraper.CheckChallenge(ctx, sess, source, searchURL, "entry"); err != nil {
		return nil, err
	}

	s.acceptCookies(ctx, sess)

	if err := sess.WaitVisible(ctx, "div[data-testid=\"property-card\"]", resultsTimeout); err != nil {
		if chErr := scraper.CheckChallenge(ctx, sess, source, searchURL, "results"); chErr != nil {
			return nil, chErr
		}
	}

	s.scrollForLazyLoad(ctx, sess)

	cards, err := s.extractCards(ctx, sess, searchURL)
	if err != nil {
		return nil, err
	}

	records := s.buildRecords(cards, city)
	filtered := filterFamilyFriendly(records)
	s.logger.Info("[booking] Extracted %d hotels, %d family-friendly", len(records), len(filtered))
	return filtered, nil
}

// buildSearchURL assembles the results URL with dates and party composition.
// Child ages go in repeated age= params, the way the site encodes them.
func (s *Scraper) buildSearchURL(city string, req models.SearchRequest) string {
	q := url.Values{}
	q.Set("ss", city)
	q.Set("checkin", req.Window.Depart.Format("2006-01-02"))
	q.Set("checkout", req.Window.Return.Format("2006-01-02"))
	q.Set("group_adults", fmt.Sprintf("%d", req.Party.Adults))
	q.Set("group_children", fmt.Sprintf("%d", req.Party.Children()))
	q.Set("no_rooms", "1")
	for _, age := range req.Party.ChildrenAges {
		q.Add("age", fmt.Sprintf("%d", age))
	}
	return baseURL + "/searchresults.html?" + q.Encode()
}

func (s *Scraper) acceptCookies(ctx context.Context, sess scraper.Session) {
	selectors := []string{
		"button#onetrust-accept-btn-handler",
		"button[aria-label=\"Accept cookies\"]",
		"button[data-testid=\"accept-cookies\"]",
	}
	for _, sel := range selectors {
		if err := sess.Click(ctx, sel, 3*time.Second); err == nil {
			s.logger.Debug("[booking] Accepted cookies via %s", sel)
			scraper.HumanDelay(ctx, time.Second, 2*time.Second)
			return
		}
	}
}

// scrollForLazyLoad pages down a few times so lazily rendered cards attach.
func (s *Scraper) scrollForLazyLoad(ctx context.Context, sess scraper.Session) {
	for i := 0; i < scrollRounds; i++ {
		var discard interface{}
		if err := sess.Evaluate(ctx, "window.scrollBy(0, window.innerHeight * 2) || true", &discard, 5*time.Second); err != nil {
			s.logger.Debug("[booking] scroll %d failed: %v", i+1, err)
			return
		}
		scraper.HumanDelay(ctx, time.Second, 2*time.Second)
	}
}

// hotelCard is the raw shape extracted from a property card, before parsing.
type hotelCard struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Rating   string `json:"rating"`
	Reviews  string `json:"reviews"`
	RoomInfo string `json:"roomInfo"`
	URL      string `json:"url"`
	ImageURL string `json:"imageUrl"`
}

// extractCards reads property cards from the live page, with a goquery pass
// over the raw HTML as fallback.
func (s *Scraper) extractCards(ctx context.Context, sess scraper.Session, pageURL string) ([]hotelCard, error) {
	var cards []hotelCard
	err := sess.Evaluate(ctx, `
		(function() {
			var results = [];
			var cards = document.querySelectorAll('div[data-testid="property-card"]');
			for (var i = 0; i < cards.length && results.length < `+fmt.Sprintf("%d", maxListings)+`; i++) {
				var card = cards[i];
				var pick = function(sel) {
					var el = card.querySelector(sel);
					return el ? el.innerText.trim() : '';
				};
				var link = card.querySelector('a[data-testid="title-link"], h3 a');
				var img = card.querySelector('img');
				results.push({
					name: pick('div[data-testid="title"]'),
					price: pick('span[data-testid="price-and-discounted-price"]'),
					rating: pick('div[data-testid="review-score"] > div:first-child'),
					reviews: pick('div[data-testid="review-score"] div:last-child'),
					roomInfo: pick('div[data-testid="recommended-units"]'),
					url: link ? link.href : '',
					imageUrl: img ? img.src : ''
				});
			}
			return results;
		})()
	`, &cards, 30*time.Second)
	if err != nil {
		return nil, err
	}

	var valid []hotelCard
	for _, c := range cards {
		if c.Name != "" {
			valid = append(valid, c)
		}
	}
	if len(valid) > 0 {
		return valid, nil
	}

	s.logger.Warn("[booking] No property cards found, trying content fallback")
	html, err := sess.HTML(ctx, 15*time.Second)
	if err != nil {
		return nil, err
	}
	valid, parseErr := parseCards(html)
	if parseErr != nil {
		if _, shotErr := sess.Screenshot(ctx, "no_hotels_found"); shotErr != nil {
			s.logger.Debug("[booking] screenshot failed: %v", shotErr)
		}
		return nil, parseErr
	}
	return valid, nil
}

// parseCards is the content-based fallback: it walks the raw results HTML
// with goquery and pulls out whatever property cards it can find.
func parseCards(html string) ([]hotelCard, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, scraper.NewParseError(source, "results page is not parseable HTML", "document", html, false, err)
	}

	var cards []hotelCard
	doc.Find("div[data-testid=\"property-card\"]").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		c := hotelCard{
			Name:     strings.TrimSpace(card.Find("div[data-testid=\"title\"]").First().Text()),
			Price:    strings.TrimSpace(card.Find("span[data-testid=\"price-and-discounted-price\"]").First().Text()),
			RoomInfo: strings.TrimSpace(card.Find("div[data-testid=\"recommended-units\"]").First().Text()),
		}
		score := card.Find("div[data-testid=\"review-score\"]")
		c.Rating = strings.TrimSpace(score.Children().First().Text())
		c.Reviews = strings.TrimSpace(score.Children().Last().Text())
		if href, ok := card.Find("a[data-testid=\"title-link\"]").First().Attr("href"); ok {
			c.URL = href
		}
		if src, ok := card.Find("img").First().Attr("src"); ok {
			c.ImageURL = src
		}
		if c.Name != "" {
			cards = append(cards, c)
		}
		return len(cards) < maxListings
	})

	if len(cards) == 0 {
		return nil, scraper.NewParseError(source, "no property cards found on results page", "property_cards", html, false, nil)
	}
	return cards, nil
}

// buildRecords converts raw cards into normalized hotel listings, skipping
// repeated property URLs.
func (s *Scraper) buildRecords(cards []hotelCard, city string) []models.ListingRecord {
	seen := utils.NewURLSet()
	var records []models.ListingRecord
	for _, c := range cards {
		if c.URL != "" && !seen.Add(c.URL) {
			continue
		}
		price, ok := scraper.ParsePrice(c.Price)
		if !ok {
			s.logger.Debug("[booking] Skipping %q: unparseable price %q", c.Name, c.Price)
			continue
		}

		rec := models.ListingRecord{
			Source:          source,
			DestinationCity: city,
			Name:            c.Name,
			Category:        models.CategoryHotel,
			Price:           price,
			Rating:          scraper.ParseRating(c.Rating),
			ReviewCount:     scraper.ParseReviewCount(c.Reviews),
			Bedrooms:        scraper.ParseBedrooms(c.RoomInfo),
			HasKitchen:      strings.Contains(strings.ToLower(c.RoomInfo), "kitchen"),
			URL:             c.URL,
			ImageURL:        c.ImageURL,
		}
		scraper.Normalize(&rec, source)
		records = append(records, rec)
	}
	return records
}

// filterFamilyFriendly keeps listings that fit a family of four: enough
// bedrooms (unknown passes), affordable, and well reviewed (unknown passes).
func filterFamilyFriendly(records []models.ListingRecord) []models.ListingRecord {
	var out []models.ListingRecord
	for _, r := range records {
		if r.Bedrooms != nil && *r.Bedrooms < minBedrooms {
			continue
		}
		if r.Price > maxPrice {
			continue
		}
		if r.Rating != nil && *r.Rating < minRating {
			continue
		}
		r.FamilyFriendly = true
		out = append(out, r)
	}
	return out
}
