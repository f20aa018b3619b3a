// Package recommend provides the autoplay recommenders.
package recommend

import (
	"context"
	"errors"

	"vibebot/backend/internal/music"

	"go.uber.org/zap"
)

// Chain asks each recommender in turn until one suggests something
type Chain struct {
	recommenders []music.Recommender
	logger       *zap.Logger
}

var (
	_ music.Recommender = (*Chain)(nil)
	_ music.Recommender = (*LastFM)(nil)
	_ music.Recommender = (*LLM)(nil)
)

// NewChain skips nil entries, so optional recommenders can be passed as is
func NewChain(logger *zap.Logger, recommenders ...music.Recommender) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chain{logger: logger}
	for _, r := range recommenders {
		if r != nil {
			c.recommenders = append(c.recommenders, r)
		}
	}
	return c
}

// Len returns the number of configured recommenders
func (c *Chain) Len() int {
	return len(c.recommenders)
}

// Recommend returns the first suggestion. It only fails when every
// recommender failed.
func (c *Chain) Recommend(ctx context.Context, title, artist string) (string, error) {
	var errs []error
	for i, r := range c.recommenders {
		query, err := r.Recommend(ctx, title, artist)
		if err != nil {
			c.logger.Warn("Recommender failed",
				zap.Int("index", i),
				zap.String("title", title),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if query != "" {
			return query, nil
		}
	}
	if len(errs) == len(c.recommenders) && len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", nil
}
