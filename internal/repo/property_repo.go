// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Property
// model.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvorik/go-community-backend/internal/domain"
)

// CreateProperty inserts a property row. The unit number is globally unique;
// a clash is reported as ErrDuplicate.
func CreateProperty(ctx context.Context, db *gorm.DB, p *domain.Property) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetProperty fetches a property by ID, or ErrNotFound.
func GetProperty(ctx context.Context, db *gorm.DB, id string) (*domain.Property, error) {
	var p domain.Property
	err := db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPropertiesByOwner returns every unit owned by the account, in stable
// creation order. This is the explicit capability query consumed by the
// voting engine when fanning out votes.
func ListPropertiesByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Property, error) {
	var out []domain.Property
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListProperties returns all units, ordered by number. Admin-only surface.
func ListProperties(ctx context.Context, db *gorm.DB) ([]domain.Property, error) {
	var out []domain.Property
	err := db.WithContext(ctx).Order("number ASC").Find(&out).Error
	return out, err
}

// DeleteProperty removes a property row. The service layer is responsible for
// checking that no votes reference the unit first.
func DeleteProperty(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Unscoped().Delete(&domain.Property{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
