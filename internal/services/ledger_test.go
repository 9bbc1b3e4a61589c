package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"closetvote/internal/models"
	"closetvote/internal/repository/memory"
	"closetvote/internal/services"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *manualClock { return &manualClock{t: t} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingScheduler struct {
	mu     sync.Mutex
	events []services.VoteEvent
}

func (r *recordingScheduler) Schedule(ev services.VoteEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingScheduler) all() []services.VoteEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]services.VoteEvent(nil), r.events...)
}

// wednesday of 2025-W10
var midWeek = time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC)

func seedItem(t *testing.T, store *memory.Store, status string) uint {
	t.Helper()
	item := models.Item{
		Name:   fmt.Sprintf("item-%s-%d", t.Name(), time.Now().UnixNano()),
		Status: status,
		Type:   "Shirt", Gender: "Unisex", Price: "Under $50", Style: "Casual",
	}
	require.NoError(t, store.CreateItem(context.Background(), &item))
	return item.ID
}

func newLedger(t *testing.T) (*services.Ledger, *memory.Store, *manualClock) {
	t.Helper()
	store := memory.New()
	clock := newClock(midWeek)
	return services.NewLedger(store, store, services.WithClock(clock)), store, clock
}

func votesOf(t *testing.T, store *memory.Store, id uint) int {
	t.Helper()
	item, err := store.FindItem(context.Background(), id)
	require.NoError(t, err)
	return item.Votes
}

func anon(id, ip string) services.IdentityKey {
	return services.IdentityKey{AnonymousID: id, IPAddress: ip}
}

func TestRecordVote_AnonymousScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, store, _ := newLedger(t)
	item := seedItem(t, store, models.ItemApproved)

	a := anon("a1", "1.2.3.4")
	res, err := ledger.RecordVote(ctx, a, item)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Votes)

	_, err = ledger.RecordVote(ctx, a, item)
	require.ErrorIs(t, err, services.ErrAlreadyVoted)
	assert.Equal(t, 1, votesOf(t, store, item))

	res, err = ledger.RecordVote(ctx, anon("b1", "5.6.7.8"), item)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Votes)
}

func TestRecordVote_AnySingleMatchingFieldBlocks(t *testing.T) {
	t.Parallel()
	uid := uint(11)
	first := services.IdentityKey{UserID: &uid, AnonymousID: "anon-1", Fingerprint: "fp-1", IPAddress: "ip-1"}

	tests := []struct {
		name   string
		second services.IdentityKey
	}{
		{"same user id", services.IdentityKey{UserID: &uid, AnonymousID: "anon-2", Fingerprint: "fp-2", IPAddress: "ip-2"}},
		{"same anonymous id", services.IdentityKey{AnonymousID: "anon-1", Fingerprint: "fp-2", IPAddress: "ip-2"}},
		{"same fingerprint", services.IdentityKey{AnonymousID: "anon-2", Fingerprint: "fp-1", IPAddress: "ip-2"}},
		{"same ip address", services.IdentityKey{AnonymousID: "anon-2", Fingerprint: "fp-2", IPAddress: "ip-1"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			ledger, store, _ := newLedger(t)
			item := seedItem(t, store, models.ItemApproved)

			_, err := ledger.RecordVote(ctx, first, item)
			require.NoError(t, err)
			_, err = ledger.RecordVote(ctx, tt.second, item)
			require.ErrorIs(t, err, services.ErrAlreadyVoted)
			assert.Equal(t, 1, votesOf(t, store, item))
		})
	}
}

func TestRecordVote_SharedIPBlocksSecondBrowser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, store, _ := newLedger(t)
	item := seedItem(t, store, models.ItemApproved)

	_, err := ledger.RecordVote(ctx, anon("profile-1", "9.9.9.9"), item)
	require.NoError(t, err)

	_, err = ledger.RecordVote(ctx, anon("profile-2", "9.9.9.9"), item)
	require.ErrorIs(t, err, services.ErrAlreadyVoted)
	assert.Equal(t, 1, votesOf(t, store, item))
}

func TestRecordVote_SessionIDIsNotAnIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, store, _ := newLedger(t)
	item := seedItem(t, store, models.ItemApproved)

	_, err := ledger.RecordVote(ctx, services.IdentityKey{AnonymousID: "a", SessionID: "s", IPAddress: "ip-a"}, item)
	require.NoError(t, err)
	res, err := ledger.RecordVote(ctx, services.IdentityKey{AnonymousID: "b", SessionID: "s", IPAddress: "ip-b"}, item)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Votes)
}

func TestHasVoted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, store, _ := newLedger(t)
	item := seedItem(t, store, models.ItemApproved)
	id := anon("a1", "1.2.3.4")

	voted, err := ledger.HasVoted(ctx, id, item)
	require.NoError(t, err)
	assert.False(t, voted)

	_, err = ledger.RecordVote(ctx, id, item)
	require.NoError(t, err)

	voted, err = ledger.HasVoted(ctx, id, item)
	require.NoError(t, err)
	assert.True(t, voted)

	voted, err = ledger.HasVoted(ctx, anon("other", "1.2.3.4"), item)
	require.NoError(t, err)
	assert.True(t, voted, "shared ip")

	voted, err = ledger.HasVoted(ctx, anon("other", "4.3.2.1"), item)
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestRecordVote_NextWeekIsAllowed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, store, clock := newLedger(t)
	item := seedItem(t, store, models.ItemApproved)
	id := anon("a1", "1.2.3.4")

	_, err := ledger.RecordVote(ctx, id, item)
	require.NoError(t, err)

	clock.Set(midWeek.AddDate(0, 0, 7))
	voted, err := ledger.HasVoted(ctx, id, item)
	require.NoError(t, err)
	assert.False(t, voted)

	res, err := ledger.RecordVote(ctx, id, item)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Votes)
}

func TestRecordVote_WeekBoundary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, store, clock := newLedger(t)
	item := seedItem(t, store, models.ItemApproved)
	id := anon("a1", "1.2.3.4")

	clock.Set(time.Date(2025, time.March, 9, 23, 59, 59, 0, time.UTC))
	_, err := ledger.RecordVote(ctx, id, item)
	require.NoError(t, err)

	clock.Set(time.Date(2025, time.March, 10, 0, 0, 1, 0, time.UTC))
	_, err = ledger.RecordVote(ctx, id, item)
	require.NoError(t, err)
	assert.Equal(t, 2, votesOf(t, store, item))
}

func TestRecordVote_YearBoundaryUsesISOYear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, store, clock := newLedger(t)
	item := seedItem(t, store, models.ItemApproved)
	id := anon("a1", "1.2.3.4")

	// 2024-12-30 and 2025-01-02 are both in 2025-W01
	clock.Set(time.Date(2024, time.December, 30, 10, 0, 0, 0, time.UTC))
	_, err := ledger.RecordVote(ctx, id, item)
	require.NoError(t, err)

	clock.Set(time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC))
	_, err = ledger.RecordVote(ctx, id, item)
	require.ErrorIs(t, err, services.ErrAlreadyVoted)

	// the same week number one year later is a different week
	clock.Set(time.Date(2025, time.December, 30, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, services.Week{Year: 2026, Number: 1}, ledger.CurrentWeek())
	_, err = ledger.RecordVote(ctx, id, item)
	require.NoError(t, err)
}

func TestRecordVote_ItemNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, store, _ := newLedger(t)
	pending := seedItem(t, store, models.ItemPending)

	_, err := ledger.RecordVote(ctx, anon("a1", "1.2.3.4"), 404)
	require.ErrorIs(t, err, services.ErrItemNotFound)

	_, err = ledger.RecordVote(ctx, anon("a1", "1.2.3.4"), pending)
	require.ErrorIs(t, err, services.ErrItemNotFound)
	assert.Equal(t, 0, votesOf(t, store, pending))
}

func TestRecordVote_IdentityIncomplete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, store, _ := newLedger(t)
	item := seedItem(t, store, models.ItemApproved)

	_, err := ledger.RecordVote(ctx, services.IdentityKey{AnonymousID: "a1"}, item)
	require.ErrorIs(t, err, services.ErrIdentityIncomplete)

	_, err = ledger.HasVoted(ctx, services.IdentityKey{AnonymousID: "a1"}, item)
	require.ErrorIs(t, err, services.ErrIdentityIncomplete)
}

func TestRecordVote_ConcurrentSameIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, store, _ := newLedger(t)
	item := seedItem(t, store, models.ItemApproved)

	const workers = 20
	var wg sync.WaitGroup
	var success, already atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.RecordVote(ctx, anon("double-click", "1.2.3.4"), item)
			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, services.ErrAlreadyVoted):
				already.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), success.Load())
	assert.Equal(t, int32(workers-1), already.Load())
	assert.Equal(t, 1, votesOf(t, store, item))
}

func TestRecordVote_ConcurrentDistinctIdentities(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, store, _ := newLedger(t)
	item := seedItem(t, store, models.ItemApproved)

	const voters = 50
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := anon(fmt.Sprintf("anon-%d", i), fmt.Sprintf("10.0.0.%d", i))
			_, err := ledger.RecordVote(ctx, id, item)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, voters, votesOf(t, store, item))
}

func TestRecordVote_SchedulesEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.New()
	events := &recordingScheduler{}
	ledger := services.NewLedger(store, store, services.WithClock(newClock(midWeek)), services.WithEvents(events))
	item := seedItem(t, store, models.ItemApproved)

	uid := uint(3)
	_, err := ledger.RecordVote(ctx, services.IdentityKey{UserID: &uid, IPAddress: "ip"}, item)
	require.NoError(t, err)
	_, err = ledger.RecordVote(ctx, services.IdentityKey{UserID: &uid, IPAddress: "ip"}, item)
	require.ErrorIs(t, err, services.ErrAlreadyVoted)

	got := events.all()
	require.Len(t, got, 1, "rejected votes are not published")
	assert.Equal(t, services.VoteEvent{
		ItemID: item, Year: 2025, Week: 10, Votes: 1, Authenticated: true, At: midWeek,
	}, got[0])
}

// scriptedVotes lets a test decide what each Cast attempt returns.
type scriptedVotes struct {
	mu      sync.Mutex
	exists  []bool
	casts   []error
	checks  int
	attempt int
}

func (s *scriptedVotes) Exists(context.Context, uint, services.Week, services.IdentityKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.checks
	s.checks++
	if i < len(s.exists) {
		return s.exists[i], nil
	}
	return false, nil
}

func (s *scriptedVotes) Cast(context.Context, *models.Vote) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.attempt
	s.attempt++
	if i < len(s.casts) && s.casts[i] != nil {
		return 0, s.casts[i]
	}
	return 7, nil
}

func TestRecordVote_ConflictHandling(t *testing.T) {
	t.Parallel()
	conflict := fmt.Errorf("%w: duplicate key", services.ErrPersistenceConflict)
	boom := errors.New("connection reset")

	tests := []struct {
		name     string
		votes    *scriptedVotes
		wantErr  error
		wantCast int
	}{
		{
			name:     "retry succeeds",
			votes:    &scriptedVotes{casts: []error{conflict}},
			wantCast: 2,
		},
		{
			name:     "retry sees the winning vote",
			votes:    &scriptedVotes{exists: []bool{false, true}, casts: []error{conflict}},
			wantErr:  services.ErrAlreadyVoted,
			wantCast: 1,
		},
		{
			name:     "second conflict surfaces",
			votes:    &scriptedVotes{casts: []error{conflict, conflict}},
			wantErr:  services.ErrPersistenceConflict,
			wantCast: 2,
		},
		{
			name:     "infrastructure errors are not retried",
			votes:    &scriptedVotes{casts: []error{boom}},
			wantErr:  boom,
			wantCast: 1,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := memory.New()
			item := seedItem(t, store, models.ItemApproved)
			ledger := services.NewLedger(store, tt.votes, services.WithClock(newClock(midWeek)))

			res, err := ledger.RecordVote(context.Background(), anon("a", "ip"), item)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 7, res.Votes)
			}
			assert.Equal(t, tt.wantCast, tt.votes.attempt)
		})
	}
}
