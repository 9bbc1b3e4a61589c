package models

import (
	"time"
)

// WardrobeEntry 衣橱条目 - 用户保存的单品
type WardrobeEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index;uniqueIndex:idx_wardrobe_user_item" json:"user_id"`
	ItemID    uint      `gorm:"not null;index;uniqueIndex:idx_wardrobe_user_item" json:"item_id"`
	Item      Item      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"item"`
	CreatedAt time.Time `json:"created_at"`
}
