// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for blog posts.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvorik/go-community-backend/internal/domain"
)

// CreatePost inserts a blog post.
func CreatePost(ctx context.Context, db *gorm.DB, p *domain.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return db.WithContext(ctx).Create(p).Error
}

// GetPost fetches a post by ID, or ErrNotFound.
func GetPost(ctx context.Context, db *gorm.DB, id string) (*domain.Post, error) {
	var p domain.Post
	err := db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePost persists the post's mutable fields.
func UpdatePost(ctx context.Context, db *gorm.DB, p *domain.Post) error {
	return db.WithContext(ctx).Model(&domain.Post{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"title":        p.Title,
			"content":      p.Content,
			"image":        p.Image,
			"is_published": p.IsPublished,
			"updated_at":   time.Now().UTC(),
		}).Error
}

// CountPublishedPosts returns the number of published posts for pagination.
func CountPublishedPosts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Post{}).
		Where("is_published = ?", true).
		Count(&total).Error
	return total, err
}

// ListPublishedPostsPage returns a page of published posts newest-first.
func ListPublishedPostsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Post, error) {
	var out []domain.Post
	err := db.WithContext(ctx).
		Where("is_published = ?", true).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListPostsByAuthor returns every post of one author, drafts included.
func ListPostsByAuthor(ctx context.Context, db *gorm.DB, userID string) ([]domain.Post, error) {
	var out []domain.Post
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// DeletePost removes a post row.
func DeletePost(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Unscoped().Delete(&domain.Post{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
