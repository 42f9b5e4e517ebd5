// Package geocode resolves free-text city names to coordinates through a
// Nominatim-compatible search API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/furniture-market/internal/geo"
	"github.com/sony/gobreaker/v2"
)

const (
	DefaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

var errUpstreamStatus = errors.New("unexpected geocoder status")

type Config struct {
	BaseURL string
	// UserAgent identifies this client to the upstream service; required by
	// public Nominatim instances.
	UserAgent string
	Timeout   time.Duration
	// Retries is the number of extra attempts after a transport failure.
	Retries    int
	HTTPClient *http.Client
}

// Client looks up cities upstream. Every failure mode collapses into a
// not-found result; the cause is only logged.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	retries   int
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[[]byte]
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "geocoder",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A caller giving up says nothing about the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[Geocode] Circuit %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		retries:   cfg.Retries,
		http:      cfg.HTTPClient,
		breaker:   breaker,
	}
}

// Geocode returns the coordinates of the best match for city.
func (c *Client) Geocode(ctx context.Context, city string) (geo.Coordinates, bool) {
	city = strings.TrimSpace(city)
	if city == "" {
		return geo.Coordinates{}, false
	}

	var (
		body []byte
		err  error
	)
	for attempt := 0; attempt <= c.retries; attempt++ {
		body, err = c.breaker.Execute(func() ([]byte, error) {
			return c.fetch(ctx, city)
		})
		if err == nil || ctx.Err() != nil || errors.Is(err, gobreaker.ErrOpenState) {
			break
		}
		log.Printf("[Geocode] Attempt %d for %q failed: %v", attempt+1, city, err)
	}
	if err != nil {
		log.Printf("[Geocode] Lookup for %q failed: %v", city, err)
		return geo.Coordinates{}, false
	}

	coords, ok := parseResults(body)
	if !ok {
		log.Printf("[Geocode] No usable result for %q", city)
	}
	return coords, ok
}

func (c *Client) fetch(ctx context.Context, city string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", city)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", errUpstreamStatus, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func parseResults(body []byte) (geo.Coordinates, bool) {
	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil || len(results) == 0 {
		return geo.Coordinates{}, false
	}
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil || lat < -90 || lat > 90 {
		return geo.Coordinates{}, false
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil || lng < -180 || lng > 180 {
		return geo.Coordinates{}, false
	}
	return geo.Coordinates{Lat: lat, Lng: lng}, true
}
