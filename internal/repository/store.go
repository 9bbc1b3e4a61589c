package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"closetvote/internal/models"
	"closetvote/internal/services"
)

// Store is the gorm-backed implementation of the service ports.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var (
	_ services.ItemStore     = (*Store)(nil)
	_ services.VoteStore     = (*Store)(nil)
	_ services.TallyStore    = (*Store)(nil)
	_ services.WardrobeStore = (*Store)(nil)
)

// isConflict reports unique violations and retryable transaction failures.
func isConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return true
		}
	}
	return false
}

func isForeignKey(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// ---- users ----

func (s *Store) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ---- items ----

func (s *Store) FindItem(ctx context.Context, id uint) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find item %d: %w", id, err)
	}
	return &item, nil
}

func incrementVotes(tx *gorm.DB, id uint) (int, error) {
	var votes int
	res := tx.Raw("UPDATE items SET votes = votes + 1, updated_at = NOW() WHERE id = ? RETURNING votes", id).Scan(&votes)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, services.ErrItemNotFound
	}
	return votes, nil
}

func (s *Store) IncrementVotes(ctx context.Context, id uint) (int, error) {
	return incrementVotes(s.db.WithContext(ctx), id)
}

func (s *Store) ListApproved(ctx context.Context, f services.ItemFilter) ([]models.Item, error) {
	q := s.db.WithContext(ctx).Where("status = ?", models.ItemApproved)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Gender != "" {
		q = q.Where("gender = ?", f.Gender)
	}
	if f.Price != "" {
		q = q.Where("price = ?", f.Price)
	}
	if f.Style != "" {
		q = q.Where("style = ?", f.Style)
	}

	var items []models.Item
	if err := q.Order("votes DESC, id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list approved items: %w", err)
	}
	return items, nil
}

func (s *Store) ListByStatus(ctx context.Context, status string) ([]models.Item, error) {
	var items []models.Item
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list %s items: %w", status, err)
	}
	return items, nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	err := s.db.WithContext(ctx).Create(item).Error
	if isConflict(err) {
		return services.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// UpdateStatus moves an item from one status to another. The transition only
// applies while the row still has status from.
func (s *Store) UpdateStatus(ctx context.Context, id uint, from, to, affiliateLink string) error {
	updates := map[string]interface{}{"status": to}
	if affiliateLink != "" {
		updates["affiliate_link"] = affiliateLink
	}
	res := s.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update item %d status: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("find item %d: %w", id, err)
	}
	if count == 0 {
		return services.ErrItemNotFound
	}
	return services.ErrNotPending
}

// ---- votes ----

func (s *Store) Exists(ctx context.Context, itemID uint, week services.Week, id services.IdentityKey) (bool, error) {
	var preds []string
	var args []interface{}
	if id.UserID != nil {
		preds = append(preds, "user_id = ?")
		args = append(args, *id.UserID)
	}
	if id.AnonymousID != "" {
		preds = append(preds, "anonymous_id = ?")
		args = append(args, id.AnonymousID)
	}
	if id.IPAddress != "" {
		preds = append(preds, "ip_address = ?")
		args = append(args, id.IPAddress)
	}
	if id.Fingerprint != "" {
		preds = append(preds, "fingerprint = ?")
		args = append(args, id.Fingerprint)
	}
	if len(preds) == 0 {
		return false, nil
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("item_id = ? AND year = ? AND week = ?", itemID, week.Year, week.Number).
		Where("("+strings.Join(preds, " OR ")+")", args...).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Cast inserts the vote and bumps the item counter in one transaction.
func (s *Store) Cast(ctx context.Context, v *models.Vote) (int, error) {
	var votes int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Item").Create(v).Error; err != nil {
			return err
		}
		n, err := incrementVotes(tx, v.ItemID)
		if err != nil {
			return err
		}
		votes = n
		return nil
	})
	switch {
	case err == nil:
		return votes, nil
	case errors.Is(err, services.ErrItemNotFound), isForeignKey(err):
		return 0, services.ErrItemNotFound
	case isConflict(err):
		return 0, fmt.Errorf("%w: %v", services.ErrPersistenceConflict, err)
	default:
		return 0, fmt.Errorf("cast vote: %w", err)
	}
}

// WeeklyTop ranks approved items by the number of votes cast in week.
func (s *Store) WeeklyTop(ctx context.Context, week services.Week, limit int) ([]services.RankedItem, error) {
	type tally struct {
		ItemID    uint
		WeekVotes int
	}
	var rows []tally
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("votes.item_id AS item_id, COUNT(*) AS week_votes").
		Joins("JOIN items ON items.id = votes.item_id AND items.status = ?", models.ItemApproved).
		Where("votes.year = ? AND votes.week = ?", week.Year, week.Number).
		Group("votes.item_id").
		Order("week_votes DESC, votes.item_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("tally week %s: %w", week, err)
	}
	if len(rows) == 0 {
		return []services.RankedItem{}, nil
	}

	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.ItemID
	}
	var items []models.Item
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load ranked items: %w", err)
	}
	byID := make(map[uint]models.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	ranked := make([]services.RankedItem, 0, len(rows))
	for _, r := range rows {
		it, ok := byID[r.ItemID]
		if !ok {
			continue
		}
		ranked = append(ranked, services.RankedItem{Item: it, WeekVotes: r.WeekVotes})
	}
	return ranked, nil
}

// ---- wardrobe ----

func (s *Store) ListWardrobe(ctx context.Context, userID uint) ([]models.Item, error) {
	var items []models.Item
	err := s.db.WithContext(ctx).
		Joins("JOIN wardrobe_entries ON wardrobe_entries.item_id = items.id").
		Where("wardrobe_entries.user_id = ? AND items.status = ?", userID, models.ItemApproved).
		Order("wardrobe_entries.created_at DESC, wardrobe_entries.id DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list wardrobe: %w", err)
	}
	return items, nil
}

func (s *Store) AddToWardrobe(ctx context.Context, userID, itemID uint) error {
	entry := models.WardrobeEntry{UserID: userID, ItemID: itemID}
	err := s.db.WithContext(ctx).Omit("Item").Create(&entry).Error
	switch {
	case err == nil:
		return nil
	case isConflict(err):
		return services.ErrAlreadyInWardrobe
	case isForeignKey(err):
		return services.ErrItemNotFound
	default:
		return fmt.Errorf("add to wardrobe: %w", err)
	}
}

func (s *Store) RemoveFromWardrobe(ctx context.Context, userID, itemID uint) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Delete(&models.WardrobeEntry{})
	if res.Error != nil {
		return fmt.Errorf("remove from wardrobe: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrNotInWardrobe
	}
	return nil
}
