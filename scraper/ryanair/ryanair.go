// Package ryanair implements the airline-site automation adapter. It drives
// a stealth browser session through the Ryanair search flow with
// conservative, human-like pacing, and aborts on any detected anti-bot
// challenge instead of attempting to defeat it.
package ryanair

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/quota"
	"github.com/mikandro/smartfamilytravelscout-sub001/scraper"
	"github.com/mikandro/smartfamilytravelscout-sub001/utils"
)

const (
	baseURL = "https://www.ryanair.com"
	source  = models.SourceRyanair

	navigateTimeout = 60 * time.Second
	actionTimeout   = 10 * time.Second
	resultsTimeout  = 60 * time.Second
	maxFareCards    = 10
)

// farePattern sweeps prices like "€49.99" out of raw page content when the
// structural extraction finds nothing.
var farePattern = regexp.MustCompile(`€\s*(\d+[.,]\d{2})`)

// Scraper is the Ryanair flight adapter.
type Scraper struct {
	quota    quota.Store
	sessions scraper.SessionFactory
	logger   *utils.Logger
}

// New creates a Ryanair adapter using the given quota store and session
// factory.
func New(q quota.Store, sessions scraper.SessionFactory, logger *utils.Logger) *Scraper {
	return &Scraper{quota: q, sessions: sessions, logger: logger}
}

// Name implements scraper.Scraper.
func (s *Scraper) Name() models.Source { return source }

// Fetch runs one flight search and returns normalized flight listings, or a
// single taxonomy error. Input validation happens before any network
// activity, including the quota check.
func (s *Scraper) Fetch(ctx context.Context, req models.SearchRequest) ([]models.ListingRecord, error) {
	origin, err := scraper.ValidateAirportCode(req.Origin, "origin")
	if err != nil {
		return nil, err
	}
	destination, err := scraper.ValidateAirportCode(req.Destination, "destination")
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

	s.logger.Info("[ryanair] Searching %s → %s, %s to %s",
		origin, destination,
		req.Window.Depart.Format("2006-01-02"), req.Window.Return.Format("2006-01-02"))

	if err := sess.Navigate(ctx, baseURL, navigateTimeout); err != nil {
		return nil, err
	}
	scraper.HumanDelay(ctx, 3*time.Second, 5*time.Second)

	if err := scraper.CheckChallenge(ctx, sess, source, baseURL, "entry"); err != nil {
		return nil, err
	}

	s.handlePopups(ctx, sess)

	if err := s.fillSearchForm(ctx, sess, origin, destination, req); err != nil {
		return nil, err
	}

	if err := sess.WaitVisible(ctx, "flight-card, [data-ref=\"flight-card\"], .flight-card", resultsTimeout); err != nil {
		// The results page may still hold parseable fares; only bail on a
		// challenge, otherwise continue into extraction.
		if chErr := scraper.CheckChallenge(ctx, sess, source, baseURL, "results"); chErr != nil {
			return nil, chErr
		}
	}
	scraper.HumanDelay(ctx, 5*time.Second, 8*time.Second)

	if err := scraper.CheckChallenge(ctx, sess, source, baseURL, "post_search"); err != nil {
		return nil, err
	}

	fares, err := s.extractFares(ctx, sess)
	if err != nil {
		return nil, err
	}

	records := s.buildRecords(fares, origin, destination, req)
	s.logger.Info("[ryanair] Extracted %d fares", len(records))
	return records, nil
}

// handlePopups dismisses cookie consent, chat widgets and marketing
// overlays. Failures are ignored: a popup that never appeared needs no
// dismissal.
func (s *Scraper) handlePopups(ctx context.Context, sess scraper.Session) {
	scraper.HumanDelay(ctx, 2*time.Second, 3*time.Second)

	cookieSelectors := []string{
		"button[data-ref=\"cookie.accept-all\"]",
		".cookie-popup-with-overlay__button",
		"#truste-consent-button",
		"button.cookie-consent-accept",
	}
	for _, sel := range cookieSelectors {
		if err := sess.Click(ctx, sel, 3*time.Second); err == nil {
			s.logger.Debug("[ryanair] Accepted cookies via %s", sel)
			scraper.HumanDelay(ctx, 1*time.Second, 2*time.Second)
			break
		}
	}

	popupSelectors := []string{
		"button[aria-label=\"Close chat\"]",
		".popup-close",
		".modal-close",
	}
	for _, sel := range popupSelectors {
		if err := sess.Click(ctx, sel, 2*time.Second); err == nil {
			s.logger.Debug("[ryanair] Closed popup via %s", sel)
			scraper.HumanDelay(ctx, 500*time.Millisecond, time.Second)
		}
	}
}

// fillSearchForm walks the search widget: origin, destination, dates,
// passengers, submit. Each interaction is paced like a human operator.
func (s *Scraper) fillSearchForm(ctx context.Context, sess scraper.Session, origin, destination string, req models.SearchRequest) error {
	type step struct {
		name string
		fn   func() error
	}

	steps := []step{
		{"select origin", func() error {
			if err := sess.Click(ctx, "input#input-button__departure", actionTimeout); err != nil {
				return err
			}
			scraper.HumanDelay(ctx, time.Second, 2*time.Second)
			if err := sess.Type(ctx, "input#input-button__departure", origin, actionTimeout); err != nil {
				return err
			}
			scraper.HumanDelay(ctx, time.Second, 2*time.Second)
			return sess.Click(ctx, "span[data-ref=\"airport-item__name\"]", actionTimeout)
		}},
		{"select destination", func() error {
			if err := sess.Click(ctx, "input#input-button__destination", actionTimeout); err != nil {
				return err
			}
			scraper.HumanDelay(ctx, time.Second, 2*time.Second)
			if err := sess.Type(ctx, "input#input-button__destination", destination, actionTimeout); err != nil {
				return err
			}
			scraper.HumanDelay(ctx, time.Second, 2*time.Second)
			return sess.Click(ctx, "span[data-ref=\"airport-item__name\"]", actionTimeout)
		}},
		{"select dates", func() error {
			depSel := fmt.Sprintf("div[data-id=%q]", req.Window.Depart.Format("2006-01-02"))
			retSel := fmt.Sprintf("div[data-id=%q]", req.Window.Return.Format("2006-01-02"))
			if err := sess.Click(ctx, depSel, actionTimeout); err != nil {
				return err
			}
			scraper.HumanDelay(ctx, time.Second, 2*time.Second)
			return sess.Click(ctx, retSel, actionTimeout)
		}},
		{"select passengers", func() error {
			if err := sess.Click(ctx, "div[data-ref=\"input-button__passengers\"]", actionTimeout); err != nil {
				return err
			}
			adultAdd := "ry-counter[data-ref=\"passengers-picker__adults\"] button[aria-label*=\"Add\"]"
			for i := 1; i < req.Party.Adults; i++ {
				if err := sess.Click(ctx, adultAdd, actionTimeout); err != nil {
					return err
				}
				scraper.HumanDelay(ctx, 500*time.Millisecond, time.Second)
			}
			childAdd := "ry-counter[data-ref=\"passengers-picker__children\"] button[aria-label*=\"Add\"]"
			for range req.Party.ChildrenAges {
				if err := sess.Click(ctx, childAdd, actionTimeout); err != nil {
					return err
				}
				scraper.HumanDelay(ctx, 500*time.Millisecond, time.Second)
			}
			return nil
		}},
		{"submit search", func() error {
			return sess.Click(ctx, "button[data-ref=\"flight-search-widget__cta\"]", actionTimeout)
		}},
	}

	for _, st := range steps {
		if err := st.fn(); err != nil {
			// Passenger counters vary by market; a miss there is not fatal.
			if st.name == "select passengers" {
				s.logger.Warn("[ryanair] %s failed, continuing with defaults: %v", st.name, err)
				continue
			}
			if _, shotErr := sess.Screenshot(ctx, "error_"+strings.ReplaceAll(st.name, " ", "_")); shotErr != nil {
				s.logger.Debug("[ryanair] screenshot failed: %v", shotErr)
			}
			return err
		}
		scraper.HumanDelay(ctx, time.Second, 2*time.Second)
	}

	return nil
}

// fareCard is the shape the structural page extraction returns.
type fareCard struct {
	Price         string `json:"price"`
	DepartureTime string `json:"departureTime"`
	FlightNumber  string `json:"flightNumber"`
	Direct        bool   `json:"direct"`
	BookingClass  string `json:"bookingClass"`
}

// extractFares parses result cards, falling back to a content-based price
// sweep before declaring extraction failed.
func (s *Scraper) extractFares(ctx context.Context, sess scraper.Session) ([]fareCard, error) {
	var cards []fareCard
	err := sess.Evaluate(ctx, `
		(function() {
			var results = [];
			var cards = document.querySelectorAll('flight-card, [data-ref="flight-card"], .flight-card');
			for (var i = 0; i < cards.length && results.length < `+strconv.Itoa(maxFareCards)+`; i++) {
				var card = cards[i];
				var priceEl = card.querySelector('.price-display__price, [data-ref="price"], span.price');
				var timeEls = card.querySelectorAll('.time, [data-ref="time"], span[class*="time"]');
				var numEl = card.querySelector('[data-ref="flight-number"], span[class*="flight-number"]');
				var classEl = card.querySelector('[data-ref="fare-class"], span[class*="fare"]');
				results.push({
					price: priceEl ? priceEl.innerText : '',
					departureTime: timeEls.length > 0 ? timeEls[0].innerText : '',
					flightNumber: numEl ? numEl.innerText.trim() : '',
					direct: card.innerText.indexOf('Direct') >= 0,
					bookingClass: classEl ? classEl.innerText.trim() : ''
				});
			}
			return results;
		})()
	`, &cards, 30*time.Second)
	if err != nil {
		return nil, err
	}

	var fares []fareCard
	for _, c := range cards {
		if c.Price != "" {
			fares = append(fares, c)
		}
	}
	if len(fares) > 0 {
		return fares, nil
	}

	// Content-based fallback: sweep any euro amounts out of the raw page.
	s.logger.Warn("[ryanair] No flight cards found, trying content fallback")
	html, err := sess.HTML(ctx, 15*time.Second)
	if err != nil {
		return nil, err
	}
	fares = sweepFares(html)
	if len(fares) == 0 {
		if _, shotErr := sess.Screenshot(ctx, "no_flights_found"); shotErr != nil {
			s.logger.Debug("[ryanair] screenshot failed: %v", shotErr)
		}
		return nil, scraper.NewParseError(source,
			"no fares found on results page", "fare_cards", html, false, nil)
	}
	return fares, nil
}

// sweepFares extracts bare euro prices out of raw page content.
func sweepFares(html string) []fareCard {
	matches := farePattern.FindAllStringSubmatch(html, maxFareCards)
	var fares []fareCard
	for _, m := range matches {
		fares = append(fares, fareCard{Price: m[1], Direct: true})
	}
	return fares
}

// buildRecords converts fare cards into normalized flight listings.
func (s *Scraper) buildRecords(fares []fareCard, origin, destination string, req models.SearchRequest) []models.ListingRecord {
	bookingURL := s.buildBookingURL(origin, destination, req)

	var records []models.ListingRecord
	for _, f := range fares {
		price, ok := scraper.ParsePrice(f.Price)
		if !ok {
			continue
		}

		name := fmt.Sprintf("Ryanair %s → %s", origin, destination)
		if f.FlightNumber != "" {
			name = fmt.Sprintf("Ryanair %s %s → %s", f.FlightNumber, origin, destination)
		}

		direct := f.Direct
		rec := models.ListingRecord{
			Source:          source,
			DestinationCity: destination,
			Name:            name,
			Category:        models.CategoryFlight,
			Price:           price,
			DirectFlight:    &direct,
			BookingClass:    f.BookingClass,
			URL:             bookingURL,
		}
		scraper.Normalize(&rec, source)
		records = append(records, rec)
	}
	return records
}

// buildBookingURL constructs the deep link for the searched route.
func (s *Scraper) buildBookingURL(origin, destination string, req models.SearchRequest) string {
	return fmt.Sprintf(
		"%s/gb/en/trip/flights/select?adults=%d&teens=0&children=%d&infants=0"+
			"&dateOut=%s&dateIn=%s&originIata=%s&destinationIata=%s"+
			"&isConnectedFlight=false&isReturn=true",
		baseURL, req.Party.Adults, req.Party.Children(),
		req.Window.Depart.Format("2006-01-02"), req.Window.Return.Format("2006-01-02"),
		origin, destination,
	)
}
