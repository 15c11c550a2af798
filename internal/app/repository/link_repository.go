package repository

import (
	"context"
	"errors"

	"github.com/sifan077/LinkPulse/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.ShortLink) error
	GetBySlug(ctx context.Context, slug string) (*model.ShortLink, error)
	GetByID(ctx context.Context, id string) (*model.ShortLink, error)
	// ListByOwner returns newest first; limit <= 0 means no limit.
	ListByOwner(ctx context.Context, owner string, limit int) ([]model.ShortLink, error)
	ListIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, link *model.ShortLink) error
	// Delete removes the link and its clicks in one transaction and returns
	// the row as it was before deletion.
	Delete(ctx context.Context, id string) (*model.ShortLink, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.ShortLink) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

func (r *linkRepository) GetBySlug(ctx context.Context, slug string) (*model.ShortLink, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *linkRepository) GetByID(ctx context.Context, id string) (*model.ShortLink, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *linkRepository) first(ctx context.Context, query string, arg string) (*model.ShortLink, error) {
	var link model.ShortLink
	if err := r.db.WithContext(ctx).Where(query, arg).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) ListByOwner(ctx context.Context, owner string, limit int) ([]model.ShortLink, error) {
	q := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	result := make([]model.ShortLink, 0)
	if err := q.Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *linkRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.ShortLink{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *linkRepository) Update(ctx context.Context, link *model.ShortLink) error {
	result := r.db.WithContext(ctx).
		Model(&model.ShortLink{}).
		Where("id = ?", link.ID).
		Updates(map[string]interface{}{
			"slug":    link.Slug,
			"url":     link.URL,
			"owner":   link.Owner,
			"warning": link.Warning,
		})

	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ErrSlugTaken
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}

	return r.db.WithContext(ctx).Where("id = ?", link.ID).First(link).Error
}

func (r *linkRepository) Delete(ctx context.Context, id string) (*model.ShortLink, error) {
	var deleted model.ShortLink
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the row so no new click can reference it until we are done.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&deleted).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLinkNotFound
			}
			return err
		}
		if err := tx.Where("short_link_id = ?", id).Delete(&model.ClickEvent{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.ShortLink{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}
