package music

import (
	"math/rand"
	"time"

	apperrors "vibebot/backend/pkg/errors"
)

// Queue holds the tracks after the current one. Positions at the API
// boundary are 1-indexed; storage is 0-indexed. Queue is not safe for
// concurrent use, the owning Session serializes access.
type Queue struct {
	tracks []Track
}

// Len returns the number of queued tracks
func (q *Queue) Len() int {
	return len(q.tracks)
}

// Tracks returns a copy of the queued tracks
func (q *Queue) Tracks() []Track {
	out := make([]Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

// Add appends tracks in order
func (q *Queue) Add(tracks ...Track) {
	q.tracks = append(q.tracks, tracks...)
}

// PushFront inserts t before every queued track
func (q *Queue) PushFront(t Track) {
	q.tracks = append([]Track{t}, q.tracks...)
}

// PopFront removes and returns the head
func (q *Queue) PopFront() (Track, bool) {
	if len(q.tracks) == 0 {
		return Track{}, false
	}
	t := q.tracks[0]
	q.tracks = q.tracks[1:]
	return t, true
}

// PopRandom removes and returns a random track
func (q *Queue) PopRandom(rng *rand.Rand) (Track, bool) {
	if len(q.tracks) == 0 {
		return Track{}, false
	}
	i := rng.Intn(len(q.tracks))
	t := q.tracks[i]
	q.tracks = append(q.tracks[:i], q.tracks[i+1:]...)
	return t, true
}

func (q *Queue) checkPosition(position int) error {
	if position < 1 || position > len(q.tracks) {
		return apperrors.NewInvalidPosition(position, len(q.tracks))
	}
	return nil
}

// Remove deletes the track at the 1-indexed position
func (q *Queue) Remove(position int) (Track, error) {
	if err := q.checkPosition(position); err != nil {
		return Track{}, err
	}
	i := position - 1
	t := q.tracks[i]
	q.tracks = append(q.tracks[:i], q.tracks[i+1:]...)
	return t, nil
}

// Move relocates the track at from to position to, both 1-indexed
func (q *Queue) Move(from, to int) (Track, error) {
	if err := q.checkPosition(from); err != nil {
		return Track{}, err
	}
	if err := q.checkPosition(to); err != nil {
		return Track{}, err
	}

	t := q.tracks[from-1]
	rest := append(q.tracks[:from-1:from-1], q.tracks[from:]...)

	moved := make([]Track, 0, len(q.tracks))
	moved = append(moved, rest[:to-1]...)
	moved = append(moved, t)
	moved = append(moved, rest[to-1:]...)
	q.tracks = moved
	return t, nil
}

// Split detaches the tracks before the 1-indexed position, the target and the tail
func (q *Queue) Split(position int) (skipped []Track, target Track, tail []Track, err error) {
	if err := q.checkPosition(position); err != nil {
		return nil, Track{}, nil, err
	}
	i := position - 1
	skipped = append([]Track(nil), q.tracks[:i]...)
	tail = append([]Track(nil), q.tracks[i+1:]...)
	return skipped, q.tracks[i], tail, nil
}

// Replace swaps the queue contents
func (q *Queue) Replace(tracks []Track) {
	q.tracks = tracks
}

// Shuffle permutes the queued tracks in place
func (q *Queue) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(q.tracks), func(i, j int) {
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	})
}

// Clear drops every queued track and returns how many were dropped
func (q *Queue) Clear() int {
	n := len(q.tracks)
	q.tracks = nil
	return n
}

// Duration sums the length of every non-stream track
func (q *Queue) Duration() time.Duration {
	var total time.Duration
	for _, t := range q.tracks {
		if !t.IsStream {
			total += t.Duration
		}
	}
	return total
}
