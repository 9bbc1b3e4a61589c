// Package memory is an in-process implementation of the service stores, used
// by tests and local development without Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"closetvote/internal/models"
	"closetvote/internal/services"
)

// uniqKey mirrors one partial unique index on votes.
type uniqKey struct {
	field  string
	itemID uint
	year   int
	week   int
	value  string
}

type wardrobeKey struct {
	userID uint
	itemID uint
}

type Store struct {
	mu sync.Mutex

	users    map[uint]models.User
	items    map[uint]models.Item
	names    map[string]uint
	votes    []models.Vote
	uniq     map[uniqKey]struct{}
	wardrobe map[uint][]uint // item ids, oldest first
	saved    map[wardrobeKey]struct{}

	nextItem uint
	nextVote uint
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[uint]models.User),
		items:    make(map[uint]models.Item),
		names:    make(map[string]uint),
		uniq:     make(map[uniqKey]struct{}),
		wardrobe: make(map[uint][]uint),
		saved:    make(map[wardrobeKey]struct{}),
		now:      time.Now,
	}
}

var (
	_ services.ItemStore     = (*Store)(nil)
	_ services.VoteStore     = (*Store)(nil)
	_ services.TallyStore    = (*Store)(nil)
	_ services.WardrobeStore = (*Store)(nil)
)

// PutUser stores u as provisioned by the auth provider.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) FindUser(_ context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}
	return &u, nil
}

// ---- items ----

func (s *Store) FindItem(_ context.Context, id uint) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, services.ErrItemNotFound
	}
	return &it, nil
}

func (s *Store) IncrementVotes(_ context.Context, id uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incrementLocked(id)
}

func (s *Store) incrementLocked(id uint) (int, error) {
	it, ok := s.items[id]
	if !ok {
		return 0, services.ErrItemNotFound
	}
	it.Votes++
	it.UpdatedAt = s.now()
	s.items[id] = it
	return it.Votes, nil
}

func (s *Store) ListApproved(_ context.Context, f services.ItemFilter) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match := func(want, got string) bool { return want == "" || want == got }
	items := make([]models.Item, 0)
	for _, it := range s.items {
		if it.Status != models.ItemApproved {
			continue
		}
		if !match(f.Type, it.Type) || !match(f.Gender, it.Gender) ||
			!match(f.Price, it.Price) || !match(f.Style, it.Style) {
			continue
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Votes != items[j].Votes {
			return items[i].Votes > items[j].Votes
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *Store) ListByStatus(_ context.Context, status string) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]models.Item, 0)
	for _, it := range s.items {
		if it.Status == status {
			items = append(items, it)
		}
	}
	// ids are assigned in creation order
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) CreateItem(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.names[item.Name]; dup {
		return services.ErrDuplicateName
	}
	s.nextItem++
	item.ID = s.nextItem
	if item.Status == "" {
		item.Status = models.ItemPending
	}
	now := s.now()
	item.CreatedAt, item.UpdatedAt = now, now
	s.items[item.ID] = *item
	s.names[item.Name] = item.ID
	return nil
}

func (s *Store) UpdateStatus(_ context.Context, id uint, from, to, affiliateLink string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return services.ErrItemNotFound
	}
	if it.Status != from {
		return services.ErrNotPending
	}
	it.Status = to
	if affiliateLink != "" {
		it.AffiliateLink = affiliateLink
	}
	it.UpdatedAt = s.now()
	s.items[id] = it
	return nil
}

// ---- votes ----

func voteKeys(v *models.Vote) []uniqKey {
	keys := make([]uniqKey, 0, 4)
	add := func(field, value string) {
		keys = append(keys, uniqKey{field: field, itemID: v.ItemID, year: v.Year, week: v.Week, value: value})
	}
	if v.UserID != nil {
		add("user_id", fmt.Sprint(*v.UserID))
	}
	if v.AnonymousID != nil {
		add("anonymous_id", *v.AnonymousID)
	}
	add("ip_address", v.IPAddress)
	if v.Fingerprint != nil {
		add("fingerprint", *v.Fingerprint)
	}
	return keys
}

func (s *Store) Exists(_ context.Context, itemID uint, week services.Week, id services.IdentityKey) (bool, error) {
	probe := models.Vote{ItemID: itemID, Year: week.Year, Week: week.Number, UserID: id.UserID, IPAddress: id.IPAddress}
	if id.AnonymousID != "" {
		probe.AnonymousID = &id.AnonymousID
	}
	if id.Fingerprint != "" {
		probe.Fingerprint = &id.Fingerprint
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range voteKeys(&probe) {
		if k.field == "ip_address" && k.value == "" {
			continue
		}
		if _, ok := s.uniq[k]; ok {
			return true, nil
		}
	}
	return false, nil
}

// Cast behaves like the Postgres transaction: every unique key is checked
// before anything is written.
func (s *Store) Cast(_ context.Context, v *models.Vote) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[v.ItemID]; !ok {
		return 0, services.ErrItemNotFound
	}
	keys := voteKeys(v)
	for _, k := range keys {
		if _, ok := s.uniq[k]; ok {
			return 0, fmt.Errorf("%w: duplicate %s", services.ErrPersistenceConflict, k.field)
		}
	}

	s.nextVote++
	v.ID = s.nextVote
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now()
	}
	for _, k := range keys {
		s.uniq[k] = struct{}{}
	}
	s.votes = append(s.votes, *v)
	return s.incrementLocked(v.ItemID)
}

func (s *Store) WeeklyTop(_ context.Context, week services.Week, limit int) ([]services.RankedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[uint]int)
	for _, v := range s.votes {
		if v.Year == week.Year && v.Week == week.Number {
			counts[v.ItemID]++
		}
	}
	ranked := make([]services.RankedItem, 0, len(counts))
	for id, n := range counts {
		it, ok := s.items[id]
		if !ok || it.Status != models.ItemApproved {
			continue
		}
		ranked = append(ranked, services.RankedItem{Item: it, WeekVotes: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].WeekVotes != ranked[j].WeekVotes {
			return ranked[i].WeekVotes > ranked[j].WeekVotes
		}
		return ranked[i].Item.ID < ranked[j].Item.ID
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// ---- wardrobe ----

func (s *Store) ListWardrobe(_ context.Context, userID uint) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.wardrobe[userID]
	items := make([]models.Item, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		it, ok := s.items[entries[i]]
		if ok && it.Status == models.ItemApproved {
			items = append(items, it)
		}
	}
	return items, nil
}

func (s *Store) AddToWardrobe(_ context.Context, userID, itemID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[itemID]; !ok {
		return services.ErrItemNotFound
	}
	k := wardrobeKey{userID, itemID}
	if _, ok := s.saved[k]; ok {
		return services.ErrAlreadyInWardrobe
	}
	s.saved[k] = struct{}{}
	s.wardrobe[userID] = append(s.wardrobe[userID], itemID)
	return nil
}

func (s *Store) RemoveFromWardrobe(_ context.Context, userID, itemID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := wardrobeKey{userID, itemID}
	if _, ok := s.saved[k]; !ok {
		return services.ErrNotInWardrobe
	}
	delete(s.saved, k)
	entries := s.wardrobe[userID]
	for i, id := range entries {
		if id == itemID {
			s.wardrobe[userID] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	return nil
}
