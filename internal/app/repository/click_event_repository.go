package repository

import (
	"context"

	"github.com/sifan077/LinkPulse/internal/app/model"
	"gorm.io/gorm"
)

// ClickEventRepository appends click events. There is no update or delete:
// clicks only disappear together with their link.
type ClickEventRepository interface {
	Create(ctx context.Context, event *model.ClickEvent) error
}

type clickEventRepository struct {
	db *gorm.DB
}

// NewClickEventRepository returns a GORM-backed ClickEventRepository.
func NewClickEventRepository(db *gorm.DB) ClickEventRepository {
	return &clickEventRepository{db: db}
}

func (r *clickEventRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	if event.Browser == "" {
		event.Browser = model.UnknownBrowser
	}
	if event.Referrer == "" {
		event.Referrer = model.DirectReferrer
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if isForeignKeyViolation(err) {
			return ErrLinkGone
		}
		return err
	}
	return nil
}
