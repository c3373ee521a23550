// Package catalog is the client for the external Song Catalog collaborator:
// a random-selection query filtered by genre with an exclusion set. The HTTP
// call is the one slow, flaky dependency in this system, so it is wrapped in
// a circuit breaker the same way the teacher wraps its Redis publish and SFU
// gRPC calls.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/gameerr"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/logging"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/metrics"
)

// SongInfo is the metadata the Catalog returns for a selected song.
type SongInfo struct {
	ID              int    `json:"id"`
	Title           string `json:"title"`
	ArtistOrContent string `json:"artist_or_content"`
	MediaID         string `json:"media_id"`
	IsSoundtrack    bool   `json:"is_soundtrack"`
}

// Client selects a random song for a round, given the room's configured
// genres and the set of song ids already played in that room.
type Client interface {
	SelectSong(ctx context.Context, genres []string, excludeIDs []int) (SongInfo, error)
}

type selectRequest struct {
	Genres     []string `json:"genres"`
	ExcludeIDs []int    `json:"exclude_ids"`
	Count      int      `json:"count"`
}

type selectResponse struct {
	Songs []SongInfo `json:"songs"`
}

// HTTPClient calls the Song Catalog's /select endpoint over HTTP, retrying
// once on transport error and tripping a circuit breaker on sustained
// failure so a wedged catalog can't pile up slow StartRound calls.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPClient builds a catalog client against baseURL (e.g.
// "http://catalog.internal:9000"), using requestTimeout as the per-attempt
// deadline.
func NewHTTPClient(baseURL string, requestTimeout time.Duration) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "song-catalog",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CatalogCircuitBreakerState.Set(float64(to))
			logging.Warn(nil, "catalog circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

// errNoSongAvailable is a sentinel distinguishing "the catalog answered but
// had nothing left" from a transport failure; gobreaker counts it as a
// breaker failure too (the PermanentError pattern) since it still signals a
// call the breaker should consider before opening its gate to the Manager's
// own catalog shape — an empty universe looks like trouble just the same.
var errNoSongAvailable = errors.New("catalog: no song available for genres/exclusions")

// SelectSong asks the catalog for one random song, retrying the HTTP call
// once on transport error.
func (c *HTTPClient) SelectSong(ctx context.Context, genres []string, excludeIDs []int) (SongInfo, error) {
	start := time.Now()

	result, err := c.breaker.Execute(func() (any, error) {
		song, callErr := c.selectOnce(ctx, genres, excludeIDs)
		if callErr != nil && !errors.Is(callErr, errNoSongAvailable) {
			song, callErr = c.selectOnce(ctx, genres, excludeIDs)
		}
		return song, callErr
	})

	metrics.CatalogRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, errNoSongAvailable) {
			metrics.CatalogRequestsTotal.WithLabelValues("no_song_available").Inc()
			return SongInfo{}, gameerr.Wrap(gameerr.NoSongAvailable, "catalog has no song for this genre/exclusion set", err)
		}
		metrics.CatalogRequestsTotal.WithLabelValues("upstream_unavailable").Inc()
		return SongInfo{}, gameerr.Wrap(gameerr.UpstreamUnavailable, "song catalog call failed", err)
	}

	metrics.CatalogRequestsTotal.WithLabelValues("success").Inc()
	return result.(SongInfo), nil
}

func (c *HTTPClient) selectOnce(ctx context.Context, genres []string, excludeIDs []int) (SongInfo, error) {
	body, err := json.Marshal(selectRequest{Genres: genres, ExcludeIDs: excludeIDs, Count: 1})
	if err != nil {
		return SongInfo{}, fmt.Errorf("marshal select request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/select", bytes.NewReader(body))
	if err != nil {
		return SongInfo{}, fmt.Errorf("build select request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SongInfo{}, fmt.Errorf("select request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return SongInfo{}, fmt.Errorf("catalog returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return SongInfo{}, fmt.Errorf("catalog rejected request: %d", resp.StatusCode)
	}

	var decoded selectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return SongInfo{}, fmt.Errorf("decode select response: %w", err)
	}

	if len(decoded.Songs) == 0 {
		return SongInfo{}, errNoSongAvailable
	}

	return decoded.Songs[0], nil
}
