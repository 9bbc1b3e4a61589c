package models

import (
	"time"
)

const (
	ItemPending  = "pending"
	ItemApproved = "approved"
	ItemRejected = "rejected"
)

const MaxBuyNowLinks = 4

var (
	ItemTypes   = []string{"Shirt", "Pants", "Jacket", "Dress", "Shoes", "Accessories"}
	ItemGenders = []string{"Male", "Female", "Unisex"}
	ItemPrices  = []string{"Under $50", "$50-$100", "Over $100"}
	ItemStyles  = []string{"Casual", "Formal", "Sport", "Vintage", "Streetwear"}
)

type BuyNowLink struct {
	SiteName string `json:"siteName" validate:"required,max=60"`
	URL      string `json:"url" validate:"required,http_url"`
}

type Item struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	Name          string       `gorm:"uniqueIndex;not null" json:"name"`
	Description   string       `gorm:"type:text;not null" json:"description"`
	Image         string       `gorm:"not null" json:"image"` // CDN URL
	BuyNowLinks   []BuyNowLink `gorm:"serializer:json;type:jsonb" json:"buyNowLinks"`
	AffiliateLink string       `json:"affiliateLink,omitempty"`
	Votes         int          `gorm:"not null;default:0" json:"votes"`
	Status        string       `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Type          string       `gorm:"size:20;not null" json:"type"`
	Gender        string       `gorm:"size:20;not null" json:"gender"`
	Price         string       `gorm:"size:20;not null" json:"price"`
	Style         string       `gorm:"size:20;not null" json:"style"`
	SubmittedBy   *uint        `gorm:"index" json:"submittedBy,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`

	// 非数据库字段，用于响应时填充
	DescriptionHTML string `gorm:"-" json:"descriptionHtml,omitempty"`
}

func (i *Item) Approved() bool {
	return i != nil && i.Status == ItemApproved
}
