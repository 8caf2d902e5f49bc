package cardref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPClient queries a TCG card API. Filters map onto the API's Lucene-style
// `q` parameter; responses come back as a paged card list.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type searchResponse struct {
	Data []apiCard `json:"data"`
}

type apiCard struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Number   string   `json:"number"`
	Set      apiSet   `json:"set"`
	Rarity   string   `json:"rarity"`
	Subtypes []string `json:"subtypes"`
}

type apiSet struct {
	Name        string `json:"name"`
	ReleaseDate string `json:"releaseDate"`
}

func (c *HTTPClient) Search(ctx context.Context, query Query) ([]Card, error) {
	params := url.Values{}
	if q := buildQuery(query); q != "" {
		params.Set("q", q)
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	params.Set("pageSize", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("card reference API returned status %d", resp.StatusCode)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	cards := make([]Card, 0, len(searchResp.Data))
	for _, raw := range searchResp.Data {
		cards = append(cards, Card{
			ID:        raw.ID,
			Name:      raw.Name,
			Number:    raw.Number,
			SetName:   raw.Set.Name,
			Year:      parseReleaseYear(raw.Set.ReleaseDate),
			Modifiers: cardModifiers(raw),
		})
	}
	return cards, nil
}

func buildQuery(query Query) string {
	var parts []string
	if query.ID != "" {
		parts = append(parts, fmt.Sprintf("id:%q", query.ID))
	}
	if query.Name != "" {
		parts = append(parts, fmt.Sprintf("name:%q", query.Name))
	}
	if query.Number != "" {
		parts = append(parts, fmt.Sprintf("number:%s", query.Number))
	}
	if query.SetName != "" {
		parts = append(parts, fmt.Sprintf("set.name:%q", query.SetName))
	}
	if query.Year != 0 {
		// The API exposes release dates, not a year field; a prefix
		// wildcard on the date narrows to the year.
		parts = append(parts, fmt.Sprintf("set.releaseDate:%d*", query.Year))
	}
	return strings.Join(parts, " ")
}

func parseReleaseYear(releaseDate string) int {
	if len(releaseDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(releaseDate[:4])
	if err != nil {
		return 0
	}
	return year
}

func cardModifiers(card apiCard) []string {
	var modifiers []string
	rarity := strings.ToUpper(card.Rarity)
	if strings.Contains(rarity, "HOLO") {
		modifiers = append(modifiers, "HOLO")
	}
	if strings.Contains(rarity, "SECRET") {
		modifiers = append(modifiers, "SECRET")
	}
	if strings.Contains(rarity, "PROMO") {
		modifiers = append(modifiers, "PROMO")
	}
	for _, subtype := range card.Subtypes {
		upper := strings.ToUpper(subtype)
		if upper == "1ST EDITION" || upper == "SHADOWLESS" {
			modifiers = append(modifiers, upper)
		}
	}
	return modifiers
}
