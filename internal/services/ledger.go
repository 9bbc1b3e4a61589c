package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"closetvote/internal/models"
)

type VoteResult struct {
	Votes int `json:"votes"`
}

// ItemFinder is the slice of ItemStore the ledger needs.
type ItemFinder interface {
	FindItem(ctx context.Context, id uint) (*models.Item, error)
}

// EventScheduler receives accepted votes. Schedule must not block.
type EventScheduler interface {
	Schedule(ev VoteEvent)
}

// Ledger accepts at most one vote per identity signal, item and ISO week.
// It holds no mutable state; uniqueness is the VoteStore's job.
type Ledger struct {
	items  ItemFinder
	votes  VoteStore
	clock  Clock
	loc    *time.Location
	events EventScheduler
	log    *slog.Logger
}

type LedgerOption func(*Ledger)

func WithClock(c Clock) LedgerOption { return func(l *Ledger) { l.clock = c } }

func WithLocation(loc *time.Location) LedgerOption { return func(l *Ledger) { l.loc = loc } }

func WithEvents(e EventScheduler) LedgerOption { return func(l *Ledger) { l.events = e } }

func WithLogger(log *slog.Logger) LedgerOption { return func(l *Ledger) { l.log = log } }

func NewLedger(items ItemFinder, votes VoteStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		items: items,
		votes: votes,
		clock: SystemClock{},
		loc:   time.UTC,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CurrentWeek is the week both RecordVote and HasVoted evaluate against.
func (l *Ledger) CurrentWeek() Week {
	return WeekOf(l.clock.Now(), l.loc)
}

// RecordVote registers a vote for itemID and returns the item's new total.
// Business outcomes come back as ErrItemNotFound or ErrAlreadyVoted.
func (l *Ledger) RecordVote(ctx context.Context, id IdentityKey, itemID uint) (VoteResult, error) {
	if err := id.Validate(); err != nil {
		return VoteResult{}, err
	}

	item, err := l.items.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return VoteResult{}, ErrItemNotFound
		}
		l.log.Error("vote: find item failed", "item_id", itemID, "identity", id.Fields(), "error", err)
		return VoteResult{}, fmt.Errorf("find item %d: %w", itemID, err)
	}
	if !item.Approved() {
		return VoteResult{}, ErrItemNotFound
	}

	now := l.clock.Now()
	week := WeekOf(now, l.loc)

	var votes int
	for attempt := 1; ; attempt++ {
		votes, err = l.cast(ctx, id, itemID, week, now)
		if attempt == 1 && errors.Is(err, ErrPersistenceConflict) {
			l.log.Warn("vote: conflict, retrying",
				"item_id", itemID, "week", week.String(), "identity", id.Fields())
			continue
		}
		break
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyVoted), errors.Is(err, ErrItemNotFound):
		return VoteResult{}, err
	default:
		l.log.Error("vote: persist failed",
			"item_id", itemID, "week", week.String(), "identity", id.Fields(), "error", err)
		return VoteResult{}, err
	}

	if l.events != nil {
		l.events.Schedule(VoteEvent{
			ItemID:        itemID,
			Year:          week.Year,
			Week:          week.Number,
			Votes:         votes,
			Authenticated: id.UserID != nil,
			At:            now,
		})
	}
	return VoteResult{Votes: votes}, nil
}

// cast runs one check-then-insert attempt.
func (l *Ledger) cast(ctx context.Context, id IdentityKey, itemID uint, week Week, now time.Time) (int, error) {
	exists, err := l.votes.Exists(ctx, itemID, week, id)
	if err != nil {
		return 0, fmt.Errorf("check existing vote: %w", err)
	}
	if exists {
		return 0, ErrAlreadyVoted
	}

	v := &models.Vote{
		ItemID:      itemID,
		Year:        week.Year,
		Week:        week.Number,
		UserID:      id.UserID,
		AnonymousID: optional(id.AnonymousID),
		SessionID:   optional(id.SessionID),
		Fingerprint: optional(id.Fingerprint),
		IPAddress:   id.IPAddress,
		CreatedAt:   now,
	}
	return l.votes.Cast(ctx, v)
}

// HasVoted applies the same predicates and week as RecordVote.
func (l *Ledger) HasVoted(ctx context.Context, id IdentityKey, itemID uint) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}
	week := l.CurrentWeek()
	exists, err := l.votes.Exists(ctx, itemID, week, id)
	if err != nil {
		l.log.Error("hasVoted: lookup failed",
			"item_id", itemID, "week", week.String(), "identity", id.Fields(), "error", err)
		return false, fmt.Errorf("check existing vote: %w", err)
	}
	return exists, nil
}
