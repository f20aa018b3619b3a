package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vibebot/backend/internal/music"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	scrapeTimeout = 5 * time.Second
	userAgent     = "Mozilla/5.0 (compatible; vibebot/1.0)"
)

var errNoMetadata = errors.New("page has no usable metadata")

// PageMeta is the Open Graph data of a track page
type PageMeta struct {
	Title       string
	Description string
	Image       string
}

// Scraper reads Open Graph tags from track pages
type Scraper struct {
	http   *http.Client
	cache  *lru.Cache[string, PageMeta]
	logger *zap.Logger
}

// NewScraper creates a scraper caching up to size pages
func NewScraper(client *http.Client, size int, logger *zap.Logger) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: scrapeTimeout}
	}
	if size <= 0 {
		size = defaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, _ := lru.New[string, PageMeta](size)
	return &Scraper{http: client, cache: cache, logger: logger}
}

// Meta fetches the Open Graph tags of pageURL
func (s *Scraper) Meta(ctx context.Context, pageURL string) (PageMeta, error) {
	if meta, ok := s.cache.Get(pageURL); ok {
		return meta, nil
	}

	ctx, cancel := context.WithTimeout(ctx, scrapeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return PageMeta{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return PageMeta{}, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PageMeta{}, fmt.Errorf("failed to fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return PageMeta{}, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	meta := PageMeta{
		Title:       ogContent(doc, "og:title"),
		Description: ogContent(doc, "og:description"),
		Image:       ogContent(doc, "og:image"),
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta == (PageMeta{}) {
		return PageMeta{}, errNoMetadata
	}

	s.cache.Add(pageURL, meta)
	return meta, nil
}

func ogContent(doc *goquery.Document, property string) string {
	sel := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First()
	return strings.TrimSpace(sel.AttrOr("content", ""))
}

// SpotifyQuery turns a spotify track page into a "Title Artist" search.
// The description reads "Artist · Album · Song · Year".
func (s *Scraper) SpotifyQuery(ctx context.Context, pageURL string) (string, error) {
	meta, err := s.Meta(ctx, pageURL)
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(strings.TrimSuffix(meta.Title, "| Spotify"))
	if title == "" {
		return "", errNoMetadata
	}
	if artist, _, ok := strings.Cut(meta.Description, " · "); ok && artist != "" {
		return title + " " + strings.TrimSpace(artist), nil
	}
	return title, nil
}

// EnrichArtwork fills in missing artwork from the og:image of each track
// page. Failures leave the track untouched.
func (s *Scraper) EnrichArtwork(ctx context.Context, tracks []music.Track) {
	for i := range tracks {
		if tracks[i].ArtworkURL != "" || !IsURL(tracks[i].URI) {
			continue
		}
		meta, err := s.Meta(ctx, tracks[i].URI)
		if err != nil {
			s.logger.Debug("No artwork for track",
				zap.String("uri", tracks[i].URI),
				zap.Error(err))
			continue
		}
		tracks[i].ArtworkURL = meta.Image
	}
}
