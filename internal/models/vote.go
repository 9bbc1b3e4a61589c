package models

import (
	"time"
)

// Vote is one accepted weekly vote. Dedup is enforced by four partial unique
// indexes created in db.Migrate, one per identity column:
// (item_id, year, week, <column>) WHERE <column> IS NOT NULL.
// SessionID is recorded but never part of a uniqueness rule.
type Vote struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ItemID      uint      `gorm:"not null;index:idx_votes_item_week,priority:1" json:"item_id"`
	Item        Item      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Year        int       `gorm:"not null;index:idx_votes_item_week,priority:2" json:"year"` // ISO week-year
	Week        int       `gorm:"not null;index:idx_votes_item_week,priority:3" json:"week"` // ISO week 1..53
	UserID      *uint     `json:"user_id,omitempty"`
	AnonymousID *string   `gorm:"size:64" json:"-"`
	SessionID   *string   `gorm:"size:64" json:"-"`
	Fingerprint *string   `gorm:"size:128" json:"-"`
	IPAddress   string    `gorm:"size:128;not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
