package airbnb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/scraper"
)

const (
	actorID        = "dtrungtin~airbnb-scraper"
	managedTimeout = 120 * time.Second
	maxItems       = 25
)

// ManagedClient calls a hosted scraping actor that returns listing items as
// JSON, avoiding a local browser entirely.
type ManagedClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewManagedClient builds a client for the hosted actor API.
func NewManagedClient(endpoint, apiKey string) *ManagedClient {
	return &ManagedClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: managedTimeout},
	}
}

// managedItem is the actor's dataset item shape.
type managedItem struct {
	Name       string   `json:"name"`
	City       string   `json:"city"`
	Pricing    *float64 `json:"pricing"`
	Rating     *float64 `json:"stars"`
	Reviews    *int     `json:"reviewsCount"`
	Bedrooms   *int     `json:"bedrooms"`
	URL        string   `json:"url"`
	PictureURL string   `json:"pictureUrl"`
	Amenities  []string `json:"amenities"`
}

// Search runs the actor synchronously and returns its dataset items. A 401
// or 403 means the configured key is bad and is reported as an
// authentication failure; other failures are transport errors.
func (c *ManagedClient) Search(ctx context.Context, req models.SearchRequest) ([]managedItem, error) {
	runURL := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items?token=%s",
		c.endpoint, actorID, url.QueryEscape(c.apiKey))

	input := map[string]interface{}{
		"locationQuery": req.Destination,
		"checkIn":       req.Window.Depart.Format("2006-01-02"),
		"checkOut":      req.Window.Return.Format("2006-01-02"),
		"adults":        req.Party.Adults,
		"children":      req.Party.Children(),
		"currency":      "EUR",
		"maxListings":   maxItems,
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode actor input: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, runURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build actor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, scraper.NewNetworkError(source, "managed actor request failed", c.endpoint, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, scraper.NewAuthError(source, "managed actor rejected API key", keyHint(c.apiKey))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, scraper.NewNetworkError(source,
			fmt.Sprintf("managed actor returned HTTP %d", resp.StatusCode), c.endpoint, resp.StatusCode, nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, scraper.NewNetworkError(source, "reading actor response failed", c.endpoint, resp.StatusCode, err)
	}

	items, err := parseManagedItems(data)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// parseManagedItems decodes the actor's dataset JSON array.
func parseManagedItems(data []byte) ([]managedItem, error) {
	var items []managedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, scraper.NewParseError(source, "actor response is not a listing array", "dataset_items", string(data), false, err)
	}
	return items, nil
}

// keyHint masks an API key down to its last four characters.
func keyHint(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
