package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"closetvote/internal/models"
	"closetvote/internal/utils"
)

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ValidationError reports the first invalid field of a submission.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type SubmissionInput struct {
	Name        string              `json:"name" validate:"required,max=120"`
	Description string              `json:"description" validate:"required,max=5000"`
	Image       string              `json:"image" validate:"required,http_url"`
	BuyNowLinks []models.BuyNowLink `json:"buyNowLinks" validate:"required,min=1,max=4,dive"`
	Type        string              `json:"type" validate:"required"`
	Gender      string              `json:"gender" validate:"required"`
	Price       string              `json:"price" validate:"required"`
	Style       string              `json:"style" validate:"required"`
}

// ModerationService 处理用户投稿与管理员审核
type ModerationService struct {
	items    ItemStore
	validate *validator.Validate
}

func NewModerationService(items ItemStore) *ModerationService {
	return &ModerationService{
		items:    items,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// normalize returns a sanitised copy; the caller's links slice is left alone.
func normalize(in SubmissionInput) SubmissionInput {
	in.Name = utils.SanitizeText(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Image = strings.TrimSpace(in.Image)
	if in.BuyNowLinks != nil {
		links := make([]models.BuyNowLink, len(in.BuyNowLinks))
		for i, l := range in.BuyNowLinks {
			links[i] = models.BuyNowLink{
				SiteName: utils.SanitizeText(l.SiteName),
				URL:      strings.TrimSpace(l.URL),
			}
		}
		in.BuyNowLinks = links
	}
	return in
}

// Validate reports the first problem with a submission without storing it.
func (s *ModerationService) Validate(in SubmissionInput) error {
	n := normalize(in)
	return s.check(&n)
}

func (s *ModerationService) check(in *SubmissionInput) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{Field: fe.Namespace(), Message: "failed " + fe.Tag() + " check"}
		}
		return &ValidationError{Field: "submission", Message: err.Error()}
	}

	enums := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"type", in.Type, models.ItemTypes},
		{"gender", in.Gender, models.ItemGenders},
		{"price", in.Price, models.ItemPrices},
		{"style", in.Style, models.ItemStyles},
	}
	for _, e := range enums {
		if !slices.Contains(e.allowed, e.value) {
			return &ValidationError{Field: e.field, Message: "must be one of " + strings.Join(e.allowed, ", ")}
		}
	}
	return nil
}

// Submit creates a pending item on behalf of userID.
func (s *ModerationService) Submit(ctx context.Context, userID uint, in SubmissionInput) (*models.Item, error) {
	in = normalize(in)
	if err := s.check(&in); err != nil {
		return nil, err
	}
	item := &models.Item{
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
		BuyNowLinks: in.BuyNowLinks,
		Status:      models.ItemPending,
		Type:        in.Type,
		Gender:      in.Gender,
		Price:       in.Price,
		Style:       in.Style,
		SubmittedBy: &userID,
	}
	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ModerationService) Pending(ctx context.Context) ([]models.Item, error) {
	return s.items.ListByStatus(ctx, models.ItemPending)
}

// Decide approves or rejects a pending item. Approval needs an affiliate link.
func (s *ModerationService) Decide(ctx context.Context, itemID uint, decision, affiliateLink string) error {
	switch decision {
	case DecisionApprove:
		affiliateLink = strings.TrimSpace(affiliateLink)
		if err := s.validate.Var(affiliateLink, "required,http_url"); err != nil {
			return &ValidationError{Field: "affiliateLink", Message: "a valid http(s) affiliate link is required to approve"}
		}
		return s.items.UpdateStatus(ctx, itemID, models.ItemPending, models.ItemApproved, affiliateLink)
	case DecisionReject:
		return s.items.UpdateStatus(ctx, itemID, models.ItemPending, models.ItemRejected, "")
	default:
		return &ValidationError{Field: "decision", Message: "must be approve or reject"}
	}
}
