package sources

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"vibebot/backend/internal/music"
	apperrors "vibebot/backend/pkg/errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultProvider  = "ytsearch"
	defaultCacheSize = 256
	maxParallel      = 4
)

// Search prefixes the node understands. A query starting with one of these
// is passed through untouched.
var knownPrefixes = []string{
	"ytsearch:", "ytmsearch:", "scsearch:", "spsearch:", "amsearch:", "dzsearch:",
}

// Loader is the part of the streaming node used to resolve identifiers
type Loader interface {
	LoadTracks(ctx context.Context, identifier string) (*music.LoadResult, error)
}

// Resolution is the outcome of one user request
type Resolution struct {
	Tracks       []music.Track
	PlaylistName string
	Query        string
	IsURL        bool
}

// Result pairs a resolution with its error for batch requests
type Result struct {
	Resolution *Resolution
	Err        error
}

// Config configures a Source
type Config struct {
	Provider  string // default search prefix without the colon
	CacheSize int
	Scraper   *Scraper // optional; enables artwork and spotify page lookups
	Logger    *zap.Logger
}

// Source turns free text and URLs into playable tracks
type Source struct {
	loader   Loader
	provider string
	scraper  *Scraper
	group    singleflight.Group
	cache    *lru.Cache[string, *music.LoadResult]
	logger   *zap.Logger
}

var _ music.Searcher = (*Source)(nil)

// New creates a Source backed by loader
func New(loader Loader, cfg Config) *Source {
	provider := strings.TrimSuffix(cfg.Provider, ":")
	if provider == "" {
		provider = DefaultProvider
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, _ := lru.New[string, *music.LoadResult](size)
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		loader:   loader,
		provider: provider,
		scraper:  cfg.Scraper,
		cache:    cache,
		logger:   logger,
	}
}

// IsURL reports whether query is an absolute http(s) URL
func IsURL(query string) bool {
	u, err := url.Parse(strings.TrimSpace(query))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Identifier converts a user query into a node identifier, adding the
// default provider prefix to plain text.
func Identifier(query, provider string) string {
	query = strings.TrimSpace(query)
	if IsURL(query) {
		return query
	}
	lower := strings.ToLower(query)
	for _, p := range knownPrefixes {
		if strings.HasPrefix(lower, p) {
			return query
		}
	}
	return provider + ":" + query
}

// Resolve loads a query. URLs keep every track they resolve to (playlists
// included); text searches keep only the best match.
func (s *Source) Resolve(ctx context.Context, query string) (*Resolution, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.ErrNoResults
	}

	res := &Resolution{Query: query, IsURL: IsURL(query)}
	identifier := Identifier(query, s.provider)

	if res.IsURL && isSpotifyTrack(query) {
		if s.scraper == nil {
			return nil, apperrors.NewSearchFailed(query, errors.New("spotify links need page lookups"))
		}
		text, err := s.scraper.SpotifyQuery(ctx, query)
		if err != nil {
			return nil, apperrors.NewSearchFailed(query, err)
		}
		identifier = Identifier(text, s.provider)
	}

	loaded, err := s.load(ctx, identifier)
	if err != nil {
		return nil, apperrors.NewSearchFailed(query, err)
	}

	switch loaded.Type {
	case music.LoadTrack:
		res.Tracks = append([]music.Track(nil), loaded.Tracks...)
	case music.LoadPlaylist:
		res.Tracks = append([]music.Track(nil), loaded.Tracks...)
		res.PlaylistName = loaded.PlaylistName
	case music.LoadSearch:
		if len(loaded.Tracks) > 0 {
			res.Tracks = []music.Track{loaded.Tracks[0]}
		}
	case music.LoadError:
		return nil, apperrors.NewSearchFailed(query, errors.New(loaded.Error))
	}

	if len(res.Tracks) == 0 {
		return nil, apperrors.ErrNoResults
	}

	if s.scraper != nil && res.PlaylistName == "" {
		s.scraper.EnrichArtwork(ctx, res.Tracks)
	}
	return res, nil
}

// SearchOne resolves query to a single track tagged with the requester
func (s *Source) SearchOne(ctx context.Context, query, requesterID string) (music.Track, error) {
	res, err := s.Resolve(ctx, query)
	if err != nil {
		return music.Track{}, err
	}
	return res.Tracks[0].WithRequester(requesterID), nil
}

// ResolveMany resolves several requests concurrently, keeping their order.
// A failing request does not cancel the others.
func (s *Source) ResolveMany(ctx context.Context, queries []string) []Result {
	results := make([]Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			res, err := s.Resolve(gctx, q)
			results[i] = Result{Resolution: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// load asks the node once per identifier, sharing in-flight requests and
// caching results that produced tracks.
func (s *Source) load(ctx context.Context, identifier string) (*music.LoadResult, error) {
	if cached, ok := s.cache.Get(identifier); ok {
		return cached, nil
	}

	v, err, shared := s.group.Do(identifier, func() (interface{}, error) {
		res, err := s.loader.LoadTracks(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if len(res.Tracks) > 0 {
			s.cache.Add(identifier, res)
		}
		return res, nil
	})
	if err != nil {
		s.logger.Warn("Track load failed",
			zap.String("identifier", identifier),
			zap.Error(err))
		return nil, err
	}
	if shared {
		s.logger.Debug("Shared in-flight track load", zap.String("identifier", identifier))
	}
	return v.(*music.LoadResult), nil
}

func isSpotifyTrack(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Host, "open.spotify.com") && strings.Contains(u.Path, "/track/")
}
