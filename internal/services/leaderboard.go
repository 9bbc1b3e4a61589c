package services

import (
	"context"
	"fmt"
	"time"

	"closetvote/internal/utils"
)

const (
	leaderboardCacheSize = 64
	leaderboardTTL       = 30 * time.Second
	MaxLeaderboardSize   = 50
)

// Leaderboard ranks items by votes cast in the current ISO week. Results are
// cached briefly and dropped whenever a batch of vote events for that week
// arrives.
type Leaderboard struct {
	tally TallyStore
	clock Clock
	loc   *time.Location
	cache *utils.TTLCache[[]RankedItem]
}

func NewLeaderboard(tally TallyStore, clock Clock, loc *time.Location) (*Leaderboard, error) {
	cache, err := utils.NewTTLCache[[]RankedItem](leaderboardCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create leaderboard cache: %w", err)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Leaderboard{tally: tally, clock: clock, loc: loc, cache: cache}, nil
}

func weekCachePrefix(w Week) string {
	return fmt.Sprintf("leaderboard:%s:", w)
}

func (lb *Leaderboard) Top(ctx context.Context, limit int) (Week, []RankedItem, error) {
	if limit <= 0 || limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}
	week := WeekOf(lb.clock.Now(), lb.loc)
	key := fmt.Sprintf("%s%d", weekCachePrefix(week), limit)

	if cached, ok := lb.cache.Get(key); ok {
		return week, cached, nil
	}

	ranked, err := lb.tally.WeeklyTop(ctx, week, limit)
	if err != nil {
		return week, nil, fmt.Errorf("weekly top %s: %w", week, err)
	}
	lb.cache.Set(key, ranked, leaderboardTTL)
	return week, ranked, nil
}

// Publish implements EventSink.
func (lb *Leaderboard) Publish(_ context.Context, events []VoteEvent) error {
	seen := make(map[Week]bool)
	for _, ev := range events {
		w := Week{Year: ev.Year, Number: ev.Week}
		if seen[w] {
			continue
		}
		seen[w] = true
		lb.cache.DeletePrefix(weekCachePrefix(w))
	}
	return nil
}
