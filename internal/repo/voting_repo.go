// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Voting
// aggregate (voting + options).
//
// The repository follows a "thin" approach: it performs persistence and simple
// query composition, leaving business rules (window checks, option counts,
// ownership) to the services package.
//
// Functions:
//
//   - CreateVoting(ctx, db, v, options) -> error
//     Inserts the voting and its options in the caller's unit of work.
//   - GetVoting(ctx, db, id) -> (*domain.Voting, error)
//     Fetches a voting with its options preloaded, or ErrNotFound.
//   - UpdateVoting(ctx, db, v) -> error
//     Persists changed voting fields.
//   - ReplaceOptions(ctx, db, votingID, options) -> error
//     Deletes the voting's option set and inserts the replacement.
//   - DeleteVoting(ctx, db, id) -> error
//     Hard-deletes the voting; options and votes go with it via FK cascade.
//   - CountVotings / ListVotingsPage / ListVotingsByCreator
//     Pagination support for the listing surfaces.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dvorik/go-community-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
//
// It aliases gorm.ErrRecordNotFound so callers can use errors.Is with either.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateVoting inserts a voting row together with its options. Callers are
// expected to run it inside a transaction so a voting without options is
// never observable.
func CreateVoting(ctx context.Context, db *gorm.DB, v *domain.Voting, options []domain.VotingOption) error {
	if err := db.WithContext(ctx).Create(v).Error; err != nil {
		return err
	}
	if len(options) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&options).Error
}

// GetVoting fetches a voting by ID with its options preloaded. Returns
// ErrNotFound if no such voting exists.
func GetVoting(ctx context.Context, db *gorm.DB, id string) (*domain.Voting, error) {
	var v domain.Voting
	err := db.WithContext(ctx).Preload("Options").First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateVoting persists the voting's mutable fields.
func UpdateVoting(ctx context.Context, db *gorm.DB, v *domain.Voting) error {
	return db.WithContext(ctx).Model(&domain.Voting{}).
		Where("id = ?", v.ID).
		Updates(map[string]any{
			"title":       v.Title,
			"description": v.Description,
			"question":    v.Question,
			"start_date":  v.StartDate,
			"end_date":    v.EndDate,
			"is_active":   v.IsActive,
		}).Error
}

// ReplaceOptions removes every option of the voting and inserts the new set.
// Must run inside the caller's transaction together with UpdateVoting.
func ReplaceOptions(ctx context.Context, db *gorm.DB, votingID string, options []domain.VotingOption) error {
	if err := db.WithContext(ctx).Where("voting_id = ?", votingID).Delete(&domain.VotingOption{}).Error; err != nil {
		return err
	}
	if len(options) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&options).Error
}

// DeleteVoting hard-deletes a voting. Options and votes are removed by the
// ON DELETE CASCADE constraints; option rows are also deleted explicitly
// because SQLite only fires the cascade when foreign keys are enabled.
func DeleteVoting(ctx context.Context, db *gorm.DB, id string) error {
	if err := db.WithContext(ctx).Where("voting_id = ?", id).Delete(&domain.Vote{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("voting_id = ?", id).Delete(&domain.VotingOption{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Unscoped().Delete(&domain.Voting{}, "id = ?", id).Error
}

// CountVotings returns the total number of votings for pagination.
func CountVotings(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Voting{}).Count(&total).Error
	return total, err
}

// ListVotingsPage returns a page of votings ordered newest-first.
func ListVotingsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Voting, error) {
	var out []domain.Voting
	err := db.WithContext(ctx).
		Preload("Options").
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListVotingsByCreator returns the votings created by one account, newest
// first.
func ListVotingsByCreator(ctx context.Context, db *gorm.DB, creatorID string) ([]domain.Voting, error) {
	var out []domain.Voting
	err := db.WithContext(ctx).
		Preload("Options").
		Where("created_by = ?", creatorID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}
