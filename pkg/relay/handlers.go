package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aura-voice/aura/pkg/core"
)

// cacheTTL bounds how stale a served last-good response can be.
const cacheTTL = time.Hour

// Handlers serves the REST aggregation endpoints. Each endpoint tries its
// upstream, falls back to the cached last good response, and finally to mock
// data; the client never sees an aggregation error.
type Handlers struct {
	cfg    Config
	cache  *Cache
	logger *slog.Logger
	http   *http.Client
}

func NewHandlers(cfg Config, cache *Cache, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		cfg:    cfg,
		cache:  cache,
		logger: logger,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

type article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
}

type newsPayload struct {
	Articles []article `json:"articles"`
}

func (h *Handlers) HandleNews(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = "geral"
	}
	key := "news:" + topic

	if h.cfg.GNewsKey == "" {
		h.respond(w, "news", "mock", mockNews(topic))
		return
	}

	payload, err := h.fetchNews(r.Context(), topic)
	if err != nil {
		h.logger.Warn("news upstream failed", "topic", topic, "error", err)
		if cached, ok := h.cache.Get(key); ok {
			h.respondRaw(w, "news", "cache", cached)
			return
		}
		h.respond(w, "news", "mock", mockNews(topic))
		return
	}
	h.respondAndCache(w, "news", key, payload)
}

func (h *Handlers) fetchNews(ctx context.Context, topic string) (*newsPayload, error) {
	u := "https://gnews.io/api/v4/search?q=" + url.QueryEscape(topic) +
		"&lang=pt&max=5&apikey=" + url.QueryEscape(h.cfg.GNewsKey)

	var upstream struct {
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := h.getJSON(ctx, u, &upstream); err != nil {
		return nil, err
	}

	out := &newsPayload{}
	for _, a := range upstream.Articles {
		out.Articles = append(out.Articles, article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
		})
	}
	return out, nil
}

type weatherPayload struct {
	Location    string  `json:"location"`
	TempC       float64 `json:"tempC"`
	Description string  `json:"description"`
	Humidity    int     `json:"humidity"`
	WindKMH     float64 `json:"windKmh"`
}

func (h *Handlers) HandleWeather(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		location = "Lisboa"
	}
	key := "weather:" + location

	if h.cfg.WeatherKey == "" {
		h.respond(w, "weather", "mock", mockWeather(location))
		return
	}

	payload, err := h.fetchWeather(r.Context(), location)
	if err != nil {
		h.logger.Warn("weather upstream failed", "location", location, "error", err)
		if cached, ok := h.cache.Get(key); ok {
			h.respondRaw(w, "weather", "cache", cached)
			return
		}
		h.respond(w, "weather", "mock", mockWeather(location))
		return
	}
	h.respondAndCache(w, "weather", key, payload)
}

// fetchWeather geocodes the location first, then loads current conditions.
func (h *Handlers) fetchWeather(ctx context.Context, location string) (*weatherPayload, error) {
	geoURL := "https://api.openweathermap.org/geo/1.0/direct?q=" + url.QueryEscape(location) +
		"&limit=1&appid=" + url.QueryEscape(h.cfg.WeatherKey)

	var geo []struct {
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
		Lon  float64 `json:"lon"`
	}
	if err := h.getJSON(ctx, geoURL, &geo); err != nil {
		return nil, err
	}
	if len(geo) == 0 {
		return nil, fmt.Errorf("location %q not found", location)
	}

	curURL := fmt.Sprintf(
		"https://api.openweathermap.org/data/2.5/weather?lat=%f&lon=%f&units=metric&lang=pt&appid=%s",
		geo[0].Lat, geo[0].Lon, url.QueryEscape(h.cfg.WeatherKey))

	var cur struct {
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"` // m/s
		} `json:"wind"`
	}
	if err := h.getJSON(ctx, curURL, &cur); err != nil {
		return nil, err
	}

	out := &weatherPayload{
		Location: geo[0].Name,
		TempC:    cur.Main.Temp,
		Humidity: cur.Main.Humidity,
		WindKMH:  cur.Wind.Speed * 3.6,
	}
	if len(cur.Weather) > 0 {
		out.Description = cur.Weather[0].Description
	}
	return out, nil
}

type searchHit struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchPayload struct {
	Results []searchHit `json:"results"`
}

func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSONError(w, http.StatusBadRequest, core.NewInvalidRequestError("query parameter q is required"))
		return
	}
	key := "search:" + query

	if h.cfg.SerperKey == "" {
		h.respond(w, "search", "mock", mockSearch(query))
		return
	}

	payload, err := h.fetchSearch(r.Context(), query)
	if err != nil {
		h.logger.Warn("search upstream failed", "query", query, "error", err)
		if cached, ok := h.cache.Get(key); ok {
			h.respondRaw(w, "search", "cache", cached)
			return
		}
		h.respond(w, "search", "mock", mockSearch(query))
		return
	}
	h.respondAndCache(w, "search", key, payload)
}

func (h *Handlers) fetchSearch(ctx context.Context, query string) (*searchPayload, error) {
	body, _ := json.Marshal(map[string]string{"q": query})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://google.serper.dev/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", h.cfg.SerperKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var upstream struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&upstream); err != nil {
		return nil, err
	}

	out := &searchPayload{}
	for _, o := range upstream.Organic {
		out.Results = append(out.Results, searchHit(o))
	}
	return out, nil
}

func (h *Handlers) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (h *Handlers) respond(w http.ResponseWriter, endpoint, source string, v any) {
	metricAggregation.WithLabelValues(endpoint, source).Inc()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}

func (h *Handlers) respondRaw(w http.ResponseWriter, endpoint, source string, data []byte) {
	metricAggregation.WithLabelValues(endpoint, source).Inc()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(data)
}

func (h *Handlers) respondAndCache(w http.ResponseWriter, endpoint, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, core.NewInvalidRequestError("response encoding failed"))
		return
	}
	if err := h.cache.Set(key, data, cacheTTL); err != nil {
		h.logger.Warn("cache write failed", "key", key, "error", err)
	}
	h.respondRaw(w, endpoint, "upstream", data)
}

func mockNews(topic string) *newsPayload {
	return &newsPayload{Articles: []article{
		{
			Title:       "Assistentes de voz ganham novas capacidades em tempo real",
			Description: "Modelos multimodais passam a responder por áudio com latência reduzida.",
			URL:         "https://example.com/noticias/assistentes-tempo-real",
			Source:      "Aura Mock News",
		},
		{
			Title:       fmt.Sprintf("Resumo do dia: %s", topic),
			Description: "As principais manchetes do tema que acompanha.",
			URL:         "https://example.com/noticias/resumo",
			Source:      "Aura Mock News",
		},
	}}
}

func mockWeather(location string) *weatherPayload {
	return &weatherPayload{
		Location:    location,
		TempC:       22,
		Description: "céu limpo",
		Humidity:    60,
		WindKMH:     10,
	}
}

func mockSearch(query string) *searchPayload {
	return &searchPayload{Results: []searchHit{
		{
			Title:   fmt.Sprintf("Resultados para %q", query),
			Link:    "https://example.com/busca",
			Snippet: "Resultado de demonstração servido sem chave de pesquisa configurada.",
		},
	}}
}
