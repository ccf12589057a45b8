// Package fetch implements the client side of the relay's aggregation
// endpoints: news headlines, weather conditions, and web search.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aura-voice/aura/pkg/core"
	"github.com/aura-voice/aura/pkg/state"
)

// Client talks to the relay's /api/* endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type newsResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Source      string `json:"source"`
	} `json:"articles"`
}

// News loads headlines for a topic. Failures propagate: the caller decides
// whether to surface them (tool error payload) or not.
func (c *Client) News(ctx context.Context, topic string) ([]state.NewsItem, error) {
	var resp newsResponse
	if err := c.getJSON(ctx, "/api/news", url.Values{"topic": {topic}}, &resp); err != nil {
		return nil, core.NewFetchError("news", err)
	}
	items := make([]state.NewsItem, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		items = append(items, state.NewsItem{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source,
		})
	}
	return items, nil
}

type weatherResponse struct {
	Location    string  `json:"location"`
	TempC       float64 `json:"tempC"`
	Description string  `json:"description"`
	Humidity    int     `json:"humidity"`
	WindKMH     float64 `json:"windKmh"`
}

// Weather loads current conditions. An upstream failure falls back to canned
// data instead of surfacing an error; ambient weather is never worth a banner.
func (c *Client) Weather(ctx context.Context, location string) (*state.Weather, error) {
	var resp weatherResponse
	if err := c.getJSON(ctx, "/api/weather", url.Values{"location": {location}}, &resp); err != nil {
		c.logger.Warn("weather fetch failed, using fallback", "location", location, "error", err)
		return FallbackWeather(location), nil
	}
	return &state.Weather{
		Location:    resp.Location,
		TempC:       resp.TempC,
		Description: resp.Description,
		Humidity:    resp.Humidity,
		WindKMH:     resp.WindKMH,
	}, nil
}

// FallbackWeather is the canned snapshot served when the upstream is down.
func FallbackWeather(location string) *state.Weather {
	return &state.Weather{
		Location:    location,
		TempC:       22,
		Description: "céu limpo",
		Humidity:    60,
		WindKMH:     10,
	}
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search runs a web query through the relay.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var resp searchResponse
	if err := c.getJSON(ctx, "/api/search", url.Values{"q": {query}}, &resp); err != nil {
		return nil, core.NewFetchError("search", err)
	}
	return resp.Results, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
