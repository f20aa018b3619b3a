package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	LastFMBaseURL = "http://ws.audioscrobbler.com/2.0/"
	similarLimit  = 5
	chartLimit    = 35
)

type lastfmArtist struct {
	Name string `json:"name"`
}

type lastfmTrack struct {
	Name   string       `json:"name"`
	Artist lastfmArtist `json:"artist"`
}

type similarResponse struct {
	SimilarTracks struct {
		Track []lastfmTrack `json:"track"`
	} `json:"similartracks"`
}

type chartResponse struct {
	Tracks struct {
		Track []lastfmTrack `json:"track"`
	} `json:"tracks"`
}

// LastFM recommends a random similar track, falling back to the global top
// chart when Last.fm knows no similar tracks.
type LastFM struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLastFM creates a Last.fm recommender. An empty baseURL uses the public API.
func NewLastFM(apiKey, baseURL string, client *http.Client, logger *zap.Logger) *LastFM {
	if baseURL == "" {
		baseURL = LastFMBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LastFM{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    client,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Recommend returns "Title - Artist" or "" when nothing was found
func (l *LastFM) Recommend(ctx context.Context, title, artist string) (string, error) {
	var similar similarResponse
	err := l.request(ctx, "track.getSimilar", url.Values{
		"track":  {title},
		"artist": {artist},
		"limit":  {strconv.Itoa(similarLimit)},
	}, &similar)
	if err != nil {
		l.logger.Debug("Similar tracks lookup failed", zap.String("title", title), zap.Error(err))
	}
	if pick, ok := l.pick(similar.SimilarTracks.Track, ""); ok {
		return pick, nil
	}

	var chart chartResponse
	if err := l.request(ctx, "chart.getTopTracks", url.Values{
		"limit": {strconv.Itoa(chartLimit)},
	}, &chart); err != nil {
		return "", err
	}
	pick, _ := l.pick(chart.Tracks.Track, title)
	return pick, nil
}

// pick chooses a random candidate whose name differs from exclude
func (l *LastFM) pick(tracks []lastfmTrack, exclude string) (string, bool) {
	candidates := make([]lastfmTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.Name == "" || (exclude != "" && t.Name == exclude) {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return "", false
	}

	l.mu.Lock()
	choice := candidates[l.rng.Intn(len(candidates))]
	l.mu.Unlock()

	if choice.Artist.Name == "" {
		return choice.Name, true
	}
	return fmt.Sprintf("%s - %s", choice.Name, choice.Artist.Name), true
}

func (l *LastFM) request(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("method", method)
	params.Set("api_key", l.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return fmt.Errorf("last.fm %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("last.fm %s: status %d", method, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("last.fm %s: decode: %w", method, err)
	}
	return nil
}
