// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for content
// passwords and access grants.
//
// ReplaceContentPassword and UpsertContentAccess are designed to run inside a
// caller-owned transaction: together with the unique indexes on
// (content_type, content_id) and (user_id, content_type, content_id) they
// turn the read-delete-insert patterns of the access guard into atomic
// insert-if-absent operations.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvorik/go-community-backend/internal/domain"
)

// GetContentPassword returns the active password row for the key, or
// ErrNotFound.
func GetContentPassword(ctx context.Context, db *gorm.DB, contentType, contentID string) (*domain.ContentPassword, error) {
	var p domain.ContentPassword
	err := db.WithContext(ctx).
		Where("content_type = ? AND content_id = ? AND is_active = ?", contentType, contentID, true).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ReplaceContentPassword deletes any password row for the key and inserts the
// replacement. Run inside a transaction; a concurrent setter racing past the
// delete still trips the unique index and surfaces as ErrDuplicate.
func ReplaceContentPassword(ctx context.Context, db *gorm.DB, p *domain.ContentPassword) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Unscoped().
		Where("content_type = ? AND content_id = ?", p.ContentType, p.ContentID).
		Delete(&domain.ContentPassword{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DeleteContentPassword removes the password row for the key, reverting the
// item to unprotected. Deleting an unprotected item is a no-op.
func DeleteContentPassword(ctx context.Context, db *gorm.DB, contentType, contentID string) error {
	return db.WithContext(ctx).Unscoped().
		Where("content_type = ? AND content_id = ?", contentType, contentID).
		Delete(&domain.ContentPassword{}).Error
}

// GetContentAccess returns the grant row for (user, type, id), or ErrNotFound.
// Window validity is the caller's concern; expired rows are still returned so
// a successful re-check can refresh them in place.
func GetContentAccess(ctx context.Context, db *gorm.DB, userID, contentType, contentID string) (*domain.ContentAccess, error) {
	var a domain.ContentAccess
	err := db.WithContext(ctx).
		Where("user_id = ? AND content_type = ? AND content_id = ?", userID, contentType, contentID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertContentAccess creates the grant row for (user, type, id) or refreshes
// its AccessedAt timestamp when one already exists.
func UpsertContentAccess(ctx context.Context, db *gorm.DB, userID, contentType, contentID string, now time.Time) error {
	res := db.WithContext(ctx).Model(&domain.ContentAccess{}).
		Where("user_id = ? AND content_type = ? AND content_id = ?", userID, contentType, contentID).
		Update("accessed_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	rec := &domain.ContentAccess{
		ID:          uuid.NewString(),
		UserID:      userID,
		ContentType: contentType,
		ContentID:   contentID,
		AccessedAt:  now,
		CreatedAt:   now,
	}
	err := db.WithContext(ctx).Create(rec).Error
	if isUniqueViolation(err) {
		// Lost a race with another refresh of the same grant; update instead.
		return db.WithContext(ctx).Model(&domain.ContentAccess{}).
			Where("user_id = ? AND content_type = ? AND content_id = ?", userID, contentType, contentID).
			Update("accessed_at", now).Error
	}
	return err
}

// DeleteContentAccessForKey removes every grant row for one gated item. Used
// when a new password is set so grants earned under the old one do not carry
// over.
func DeleteContentAccessForKey(ctx context.Context, db *gorm.DB, contentType, contentID string) error {
	return db.WithContext(ctx).
		Where("content_type = ? AND content_id = ?", contentType, contentID).
		Delete(&domain.ContentAccess{}).Error
}
