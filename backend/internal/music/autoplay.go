package music

import (
	"context"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
)

const autoplayTimeout = 30 * time.Second

// history remembers recently played tracks so autoplay avoids repeats.
// It forgets everything once limit entries were added.
type history struct {
	filter *bloom.BloomFilter
	count  int
	limit  int
}

func newHistory(limit int) *history {
	return &history{
		filter: bloom.NewWithEstimates(uint(limit), 0.01),
		limit:  limit,
	}
}

func historyKey(t Track) string {
	if t.URI != "" {
		return t.URI
	}
	if t.Identifier != "" {
		return t.Identifier
	}
	return strings.ToLower(t.Title + "|" + t.Author)
}

func (h *history) add(t Track) {
	if h.count >= h.limit {
		h.filter.ClearAll()
		h.count = 0
	}
	h.filter.AddString(historyKey(t))
	h.count++
}

func (h *history) seen(t Track) bool {
	return h.filter.TestString(historyKey(t))
}

// onQueueEmptied runs when the queue ran dry after a track. Autoplay gets
// a chance to continue, otherwise the idle timer starts.
func (s *Session) onQueueEmptied(gen uint64) {
	s.mu.Lock()
	autoplay := s.autoplay
	var seed *Track
	if s.previous != nil {
		t := *s.previous
		seed = &t
	}
	s.mu.Unlock()

	if autoplay && seed != nil && s.d.recommender != nil && s.d.searcher != nil {
		s.d.async(func() { s.runAutoplay(gen, *seed) })
		return
	}
	s.d.idle.Start(s)
}

func (s *Session) runAutoplay(gen uint64, seed Track) {
	ctx, cancel := context.WithTimeout(context.Background(), autoplayTimeout)
	defer cancel()

	track, ok := s.recommend(ctx, seed)
	if !ok {
		s.d.observer.Autoplay("none")
		s.d.idle.Start(s)
		return
	}

	s.mu.Lock()
	if s.destroyed || s.state != Connected || s.gen != gen || s.current != nil {
		s.mu.Unlock()
		s.d.observer.Autoplay("discarded")
		return
	}
	s.queue.Add(track)
	next, nextGen := s.advanceLocked(false)
	s.mu.Unlock()

	s.logger.Info("Autoplay queued track",
		zap.String("seed", seed.Title),
		zap.String("title", track.Title))
	s.d.observer.Autoplay("queued")

	if next != nil {
		s.d.idle.Stop(s)
		s.play(*next, nextGen)
	}
	s.d.notifier.Refresh(s.guildID)
}

// recommend asks for a track similar to seed, retrying when the pick
// was played recently.
func (s *Session) recommend(ctx context.Context, seed Track) (Track, bool) {
	for attempt := 0; attempt < s.d.autoplayTries; attempt++ {
		query, err := s.d.recommender.Recommend(ctx, seed.Title, seed.Author)
		if err != nil {
			s.logger.Warn("Recommendation failed", zap.String("seed", seed.Title), zap.Error(err))
			return Track{}, false
		}
		if query == "" {
			return Track{}, false
		}

		track, err := s.d.searcher.SearchOne(ctx, query, AutoplayRequester)
		if err != nil {
			s.logger.Debug("Recommended track not found", zap.String("query", query), zap.Error(err))
			continue
		}

		s.mu.Lock()
		seen := s.history.seen(track)
		s.mu.Unlock()
		if seen {
			s.logger.Debug("Recommended track played recently", zap.String("title", track.Title))
			continue
		}
		return track, true
	}
	return Track{}, false
}
