package airbnb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/scraper"
)

func testRequest() models.SearchRequest {
	return models.SearchRequest{
		Origin:      "DUB",
		Destination: "Lisbon",
		Window: models.DateWindow{
			Depart: time.Now().AddDate(0, 1, 0),
			Return: time.Now().AddDate(0, 1, 7),
		},
		Party: models.Party{Adults: 2, ChildrenAges: []int{5, 9}},
	}
}

func TestManagedSearchRejectedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewManagedClient(srv.URL, "bad-key-1234")
	_, err := client.Search(context.Background(), testRequest())

	var authErr *scraper.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %v, want *AuthError", err)
	}
	if authErr.Recoverable {
		t.Error("auth failure must be non-recoverable")
	}
	if authErr.KeyHint != "****1234" {
		t.Errorf("key hint: got %q, want masked tail", authErr.KeyHint)
	}
}

func TestManagedSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewManagedClient(srv.URL, "key")
	_, err := client.Search(context.Background(), testRequest())

	var netErr *scraper.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("got %v, want *NetworkError", err)
	}
	if netErr.StatusCode != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", netErr.StatusCode)
	}
	if !netErr.Recoverable {
		t.Error("transport failure must be recoverable")
	}
}

func TestManagedSearchParsesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"name":"Alfama Family Flat","city":"Lisbon","pricing":95.0,"stars":4.8,
			 "reviewsCount":210,"bedrooms":2,"url":"https://www.airbnb.com/rooms/1",
			 "amenities":["Kitchen","Wifi"]},
			{"name":"","pricing":50.0}
		]`))
	}))
	defer srv.Close()

	client := NewManagedClient(srv.URL, "key")
	items, err := client.Search(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Name != "Alfama Family Flat" || *items[0].Pricing != 95.0 {
		t.Errorf("first item: got %+v", items[0])
	}
}

func TestParseManagedItemsMalformed(t *testing.T) {
	_, err := parseManagedItems([]byte(`{"error":"not an array"}`))

	var pe *scraper.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *ParseError", err)
	}
	if pe.Step != "dataset_items" {
		t.Errorf("step: got %q, want dataset_items", pe.Step)
	}
}

func TestKeyHint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"apify_api_abcdef1234", "****1234"},
		{"abc", "****"},
		{"", "****"},
	}

	for _, tt := range tests {
		if got := keyHint(tt.in); got != tt.want {
			t.Errorf("keyHint(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

const sampleStaysHTML = `
<html><body>
<div data-testid="card-container">
  <a href="/rooms/1001">view</a>
  <div data-testid="listing-card-title">Alfama Family Flat</div>
  <div data-testid="listing-card-subtitle">2 bedrooms · kitchen</div>
  <div data-testid="price-availability-row">€95 night</div>
  <img src="https://a0.muscache.com/pic1.jpg"/>
</div>
<div data-testid="card-container">
  <a href="/rooms/1001">duplicate link</a>
  <div data-testid="listing-card-title">Alfama Family Flat</div>
</div>
<div data-testid="card-container">
  <a href="/rooms/2002">view</a>
  <div data-testid="listing-card-title">Belém Studio</div>
  <div data-testid="price-availability-row">€70 night</div>
</div>
</body></html>`

func TestParseCardsFallback(t *testing.T) {
	cards, err := parseCards(sampleStaysHTML)
	if err != nil {
		t.Fatalf("parseCards: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2 (duplicate room URL skipped)", len(cards))
	}
	if cards[0].Title != "Alfama Family Flat" {
		t.Errorf("title: got %q", cards[0].Title)
	}
	if cards[0].URL != "/rooms/1001" {
		t.Errorf("url: got %q", cards[0].URL)
	}
}

func TestFilterFamilySuitable(t *testing.T) {
	two := 2
	one := 1
	good := 4.8
	low := 3.5

	tests := []struct {
		name string
		rec  models.ListingRecord
		keep bool
	}{
		{"two bedrooms", models.ListingRecord{Price: 95, Bedrooms: &two, Rating: &good}, true},
		{"one bedroom with kitchen", models.ListingRecord{Price: 80, Bedrooms: &one, HasKitchen: true}, true},
		{"one bedroom no kitchen", models.ListingRecord{Price: 80, Bedrooms: &one}, false},
		{"too expensive", models.ListingRecord{Price: 151, Bedrooms: &two}, false},
		{"low rating", models.ListingRecord{Price: 95, Bedrooms: &two, Rating: &low}, false},
		{"unknowns pass", models.ListingRecord{Price: 95}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filterFamilySuitable([]models.ListingRecord{tt.rec})
			if kept := len(out) == 1; kept != tt.keep {
				t.Errorf("kept = %v, want %v", kept, tt.keep)
			}
		})
	}
}
