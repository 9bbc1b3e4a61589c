package services

import (
	"context"

	"closetvote/internal/models"
)

type WardrobeService struct {
	items    ItemFinder
	wardrobe WardrobeStore
}

func NewWardrobeService(items ItemFinder, wardrobe WardrobeStore) *WardrobeService {
	return &WardrobeService{items: items, wardrobe: wardrobe}
}

func (s *WardrobeService) List(ctx context.Context, userID uint) ([]models.Item, error) {
	return s.wardrobe.ListWardrobe(ctx, userID)
}

// Add 收藏单品到衣橱，只允许已审核通过的单品
func (s *WardrobeService) Add(ctx context.Context, userID, itemID uint) error {
	item, err := s.items.FindItem(ctx, itemID)
	if err != nil {
		return err
	}
	if !item.Approved() {
		return ErrItemNotApproved
	}
	return s.wardrobe.AddToWardrobe(ctx, userID, itemID)
}

func (s *WardrobeService) Remove(ctx context.Context, userID, itemID uint) error {
	return s.wardrobe.RemoveFromWardrobe(ctx, userID, itemID)
}
