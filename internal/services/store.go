package services

import (
	"context"
	"errors"

	"closetvote/internal/models"
)

var (
	ErrItemNotFound        = errors.New("item not found")
	ErrAlreadyVoted        = errors.New("already voted for this item this week")
	ErrPersistenceConflict = errors.New("persistence conflict")
	ErrIdentityIncomplete  = errors.New("identity has no ip address")

	ErrItemNotApproved   = errors.New("item is not approved")
	ErrAlreadyInWardrobe = errors.New("item is already in wardrobe")
	ErrNotInWardrobe     = errors.New("item is not in wardrobe")
	ErrDuplicateName     = errors.New("an item with this name already exists")
	ErrNotPending        = errors.New("item is not pending")
)

// ItemFilter narrows approved-item listings. Empty fields match everything.
type ItemFilter struct {
	Type   string
	Gender string
	Price  string
	Style  string
}

// ItemStore is the item repository. FindItem returns ErrItemNotFound for
// unknown ids; CreateItem returns ErrDuplicateName on a name clash.
type ItemStore interface {
	FindItem(ctx context.Context, id uint) (*models.Item, error)
	IncrementVotes(ctx context.Context, id uint) (int, error)
	ListApproved(ctx context.Context, f ItemFilter) ([]models.Item, error)
	ListByStatus(ctx context.Context, status string) ([]models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	UpdateStatus(ctx context.Context, id uint, from, to, affiliateLink string) error
}

// VoteStore persists vote records.
//
// Exists reports whether a vote for (itemID, week) matches ANY populated
// identity field among user id, anonymous id, ip address and fingerprint.
//
// Cast inserts v and increments the item's counter as one unit and returns the
// new count. A uniqueness clash or serialization failure is reported as
// ErrPersistenceConflict; a missing item row as ErrItemNotFound.
type VoteStore interface {
	Exists(ctx context.Context, itemID uint, week Week, id IdentityKey) (bool, error)
	Cast(ctx context.Context, v *models.Vote) (int, error)
}

type RankedItem struct {
	Item      models.Item `json:"item"`
	WeekVotes int         `json:"weekVotes"`
}

// TallyStore counts votes cast within a single week.
type TallyStore interface {
	WeeklyTop(ctx context.Context, week Week, limit int) ([]RankedItem, error)
}

// WardrobeStore returns ErrAlreadyInWardrobe / ErrNotInWardrobe.
type WardrobeStore interface {
	ListWardrobe(ctx context.Context, userID uint) ([]models.Item, error)
	AddToWardrobe(ctx context.Context, userID, itemID uint) error
	RemoveFromWardrobe(ctx context.Context, userID, itemID uint) error
}
