// Package contracttest holds behaviour every store implementation must share.
// Adapters run these suites from their own tests.
package contracttest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"closetvote/internal/models"
	"closetvote/internal/services"
)

type CleanupFunc = func()

// Stores is everything the services need from one backend.
type Stores interface {
	services.ItemStore
	services.VoteStore
	services.TallyStore
	services.WardrobeStore
}

type StoresFactory func(t *testing.T) (Stores, CleanupFunc)

func open(t *testing.T, newStores StoresFactory) Stores {
	t.Helper()
	s, cleanup := newStores(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	return s
}

func createItem(t *testing.T, s Stores, status string) models.Item {
	t.Helper()
	item := models.Item{
		Name:        "item-" + uuid.NewString(),
		Description: "test item",
		Image:       "https://cdn.example.com/item.jpg",
		BuyNowLinks: []models.BuyNowLink{{SiteName: "Shop", URL: "https://shop.example.com/x"}},
		Status:      status,
		Type:        "Shirt",
		Gender:      "Unisex",
		Price:       "Under $50",
		Style:       "Casual",
	}
	require.NoError(t, s.CreateItem(context.Background(), &item))
	require.NotZero(t, item.ID)
	return item
}

func strPtr(s string) *string { return &s }

func vote(itemID uint, w services.Week, anon, ip string) *models.Vote {
	v := &models.Vote{
		ItemID:    itemID,
		Year:      w.Year,
		Week:      w.Number,
		IPAddress: ip,
		CreatedAt: time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC),
	}
	if anon != "" {
		v.AnonymousID = strPtr(anon)
	}
	return v
}

func RunVoteStore(t *testing.T, newStores StoresFactory) {
	t.Helper()
	ctx := context.Background()
	s := open(t, newStores)

	week := services.Week{Year: 2025, Number: 10}
	item := createItem(t, s, models.ItemApproved)

	t.Run("cast increments the counter", func(t *testing.T) {
		n, err := s.Cast(ctx, vote(item.ID, week, "anon-a", "ip-a"))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = s.Cast(ctx, vote(item.ID, week, "anon-b", "ip-b"))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := s.FindItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Votes)
	})

	t.Run("exists matches any populated field", func(t *testing.T) {
		cases := []struct {
			name string
			id   services.IdentityKey
			want bool
		}{
			{"same anonymous id", services.IdentityKey{AnonymousID: "anon-a", IPAddress: "ip-z"}, true},
			{"same ip", services.IdentityKey{AnonymousID: "anon-z", IPAddress: "ip-b"}, true},
			{"nothing shared", services.IdentityKey{AnonymousID: "anon-z", IPAddress: "ip-z"}, false},
			{"session id is ignored", services.IdentityKey{SessionID: "sess", IPAddress: "ip-z"}, false},
		}
		for _, tc := range cases {
			got, err := s.Exists(ctx, item.ID, week, tc.id)
			require.NoError(t, err, tc.name)
			assert.Equal(t, tc.want, got, tc.name)
		}
	})

	t.Run("exists is scoped to item and week", func(t *testing.T) {
		id := services.IdentityKey{AnonymousID: "anon-a", IPAddress: "ip-a"}
		got, err := s.Exists(ctx, item.ID, services.Week{Year: 2025, Number: 11}, id)
		require.NoError(t, err)
		assert.False(t, got)

		got, err = s.Exists(ctx, item.ID, services.Week{Year: 2026, Number: 10}, id)
		require.NoError(t, err)
		assert.False(t, got, "same week number in another year")

		other := createItem(t, s, models.ItemApproved)
		got, err = s.Exists(ctx, other.ID, week, id)
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("duplicate field is a conflict and leaves the counter alone", func(t *testing.T) {
		_, err := s.Cast(ctx, vote(item.ID, week, "anon-new", "ip-a"))
		require.ErrorIs(t, err, services.ErrPersistenceConflict)

		uid := uint(7)
		v := vote(item.ID, week, "anon-u1", "ip-u1")
		v.UserID = &uid
		_, err = s.Cast(ctx, v)
		require.NoError(t, err)

		v = vote(item.ID, week, "anon-u2", "ip-u2")
		v.UserID = &uid
		_, err = s.Cast(ctx, v)
		require.ErrorIs(t, err, services.ErrPersistenceConflict)

		v = vote(item.ID, week, "anon-f1", "ip-f1")
		v.Fingerprint = strPtr("fp-1")
		_, err = s.Cast(ctx, v)
		require.NoError(t, err)

		v = vote(item.ID, week, "anon-f2", "ip-f2")
		v.Fingerprint = strPtr("fp-1")
		_, err = s.Cast(ctx, v)
		require.ErrorIs(t, err, services.ErrPersistenceConflict)

		got, err := s.FindItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, got.Votes)
	})

	t.Run("a new week accepts the same identity", func(t *testing.T) {
		n, err := s.Cast(ctx, vote(item.ID, services.Week{Year: 2025, Number: 11}, "anon-a", "ip-a"))
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := s.Cast(ctx, vote(999999, week, "anon-x", "ip-x"))
		require.ErrorIs(t, err, services.ErrItemNotFound)

		_, err = s.FindItem(ctx, 999999)
		require.ErrorIs(t, err, services.ErrItemNotFound)
	})

	t.Run("concurrent identical casts persist once", func(t *testing.T) {
		fresh := createItem(t, s, models.ItemApproved)
		const workers = 8

		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.Cast(ctx, vote(fresh.ID, week, "anon-race", "ip-race"))
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.True(t, errors.Is(err, services.ErrPersistenceConflict), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, ok)

		got, err := s.FindItem(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Votes)
	})
}

func RunItemStore(t *testing.T, newStores StoresFactory) {
	t.Helper()
	ctx := context.Background()
	s := open(t, newStores)

	pending := createItem(t, s, models.ItemPending)

	t.Run("duplicate name", func(t *testing.T) {
		dup := pending
		dup.ID = 0
		require.ErrorIs(t, s.CreateItem(ctx, &dup), services.ErrDuplicateName)
	})

	t.Run("pending queue", func(t *testing.T) {
		second := createItem(t, s, models.ItemPending)
		items, err := s.ListByStatus(ctx, models.ItemPending)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, pending.ID, items[0].ID)
		assert.Equal(t, second.ID, items[1].ID)
	})

	t.Run("status transitions", func(t *testing.T) {
		err := s.UpdateStatus(ctx, pending.ID, models.ItemPending, models.ItemApproved, "https://aff.example.com/1")
		require.NoError(t, err)

		got, err := s.FindItem(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ItemApproved, got.Status)
		assert.Equal(t, "https://aff.example.com/1", got.AffiliateLink)

		err = s.UpdateStatus(ctx, pending.ID, models.ItemPending, models.ItemRejected, "")
		require.ErrorIs(t, err, services.ErrNotPending)

		err = s.UpdateStatus(ctx, 999999, models.ItemPending, models.ItemApproved, "")
		require.ErrorIs(t, err, services.ErrItemNotFound)
	})

	t.Run("approved listing is ordered and filtered", func(t *testing.T) {
		low := createItem(t, s, models.ItemApproved)
		high := createItem(t, s, models.ItemApproved)
		_, err := s.IncrementVotes(ctx, high.ID)
		require.NoError(t, err)
		_, err = s.IncrementVotes(ctx, high.ID)
		require.NoError(t, err)
		_, err = s.IncrementVotes(ctx, low.ID)
		require.NoError(t, err)

		items, err := s.ListApproved(ctx, services.ItemFilter{})
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, high.ID, items[0].ID)
		assert.Equal(t, low.ID, items[1].ID)
		assert.Equal(t, pending.ID, items[2].ID)
		for _, it := range items {
			assert.Equal(t, models.ItemApproved, it.Status)
		}

		items, err = s.ListApproved(ctx, services.ItemFilter{Type: "Dress"})
		require.NoError(t, err)
		assert.Empty(t, items)

		items, err = s.ListApproved(ctx, services.ItemFilter{Type: "Shirt", Style: "Casual"})
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})
}

func RunTallyStore(t *testing.T, newStores StoresFactory) {
	t.Helper()
	ctx := context.Background()
	s := open(t, newStores)

	week := services.Week{Year: 2025, Number: 20}
	a := createItem(t, s, models.ItemApproved)
	b := createItem(t, s, models.ItemApproved)
	hidden := createItem(t, s, models.ItemPending)

	cast := func(itemID uint, w services.Week, n int) {
		for i := 0; i < n; i++ {
			key := fmt.Sprintf("%d-%s-%d", itemID, w, i)
			_, err := s.Cast(ctx, vote(itemID, w, "anon-"+key, "ip-"+key))
			require.NoError(t, err)
		}
	}
	cast(a.ID, week, 1)
	cast(b.ID, week, 3)
	cast(a.ID, services.Week{Year: 2025, Number: 19}, 5)
	cast(hidden.ID, week, 4)

	top, err := s.WeeklyTop(ctx, week, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, b.ID, top[0].Item.ID)
	assert.Equal(t, 3, top[0].WeekVotes)
	assert.Equal(t, a.ID, top[1].Item.ID)
	assert.Equal(t, 1, top[1].WeekVotes)

	top, err = s.WeeklyTop(ctx, week, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, b.ID, top[0].Item.ID)

	top, err = s.WeeklyTop(ctx, services.Week{Year: 2030, Number: 1}, 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func RunWardrobeStore(t *testing.T, newStores StoresFactory) {
	t.Helper()
	ctx := context.Background()
	s := open(t, newStores)

	const user = uint(42)
	first := createItem(t, s, models.ItemApproved)
	second := createItem(t, s, models.ItemApproved)

	require.NoError(t, s.AddToWardrobe(ctx, user, first.ID))
	require.NoError(t, s.AddToWardrobe(ctx, user, second.ID))
	require.ErrorIs(t, s.AddToWardrobe(ctx, user, first.ID), services.ErrAlreadyInWardrobe)

	items, err := s.ListWardrobe(ctx, user)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID, "newest first")
	assert.Equal(t, first.ID, items[1].ID)

	other, err := s.ListWardrobe(ctx, user+1)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, s.RemoveFromWardrobe(ctx, user, first.ID))
	require.ErrorIs(t, s.RemoveFromWardrobe(ctx, user, first.ID), services.ErrNotInWardrobe)

	items, err = s.ListWardrobe(ctx, user)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, second.ID, items[0].ID)
}

// RunAll runs every suite, each against a fresh backend.
func RunAll(t *testing.T, newStores StoresFactory) {
	t.Run("votes", func(t *testing.T) { RunVoteStore(t, newStores) })
	t.Run("items", func(t *testing.T) { RunItemStore(t, newStores) })
	t.Run("tally", func(t *testing.T) { RunTallyStore(t, newStores) })
	t.Run("wardrobe", func(t *testing.T) { RunWardrobeStore(t, newStores) })
}
