// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Vote rows and
// the aggregate queries behind voting results.
//
// Error semantics:
//   - A second vote for the same (voting_id, property_id) pair violates the
//     composite unique index and is translated to ErrDuplicate here, so the
//     check-then-insert race collapses into a single storage-level outcome
//     the service layer can map to its duplicate-vote error.
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvorik/go-community-backend/internal/domain"
)

// ErrDuplicate indicates that a row with the same unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation detects unique-constraint failures from the driver.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	low := strings.ToLower(err.Error())
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// CreateVotes inserts one vote per property, all for the same option and with
// the same timestamp. It returns ErrDuplicate if any property already voted
// in this voting (unique-index violation); since the caller wraps the call in
// a transaction, no partial fan-out survives.
func CreateVotes(ctx context.Context, db *gorm.DB, votingID, optionID string, propertyIDs []string, at time.Time) ([]domain.Vote, error) {
	votes := make([]domain.Vote, 0, len(propertyIDs))
	for _, pid := range propertyIDs {
		votes = append(votes, domain.Vote{
			ID:         uuid.NewString(),
			VotingID:   votingID,
			PropertyID: pid,
			OptionID:   optionID,
			VotedAt:    at,
			CreatedAt:  at,
		})
	}
	if err := db.WithContext(ctx).Create(&votes).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return votes, nil
}

// HasVoteForProperties reports whether any of the given properties already
// has a vote recorded in the voting.
func HasVoteForProperties(ctx context.Context, db *gorm.DB, votingID string, propertyIDs []string) (bool, error) {
	if len(propertyIDs) == 0 {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).Model(&domain.Vote{}).
		Where("voting_id = ? AND property_id IN ?", votingID, propertyIDs).
		Count(&n).Error
	return n > 0, err
}

// GetVoteForProperties returns the first vote cast by any of the given
// properties in the voting, or ErrNotFound.
func GetVoteForProperties(ctx context.Context, db *gorm.DB, votingID string, propertyIDs []string) (*domain.Vote, error) {
	if len(propertyIDs) == 0 {
		return nil, ErrNotFound
	}
	var v domain.Vote
	err := db.WithContext(ctx).
		Where("voting_id = ? AND property_id IN ?", votingID, propertyIDs).
		Order("voted_at ASC, id ASC").
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CountVotesByOption returns the number of votes per option id for a voting.
// Options without votes are absent from the map; the service layer fills in
// zeroes from the option set. Counts are always recomputed from the vote rows
// so results reflect administrative deletions immediately.
func CountVotesByOption(ctx context.Context, db *gorm.DB, votingID string) (map[string]int64, error) {
	var rows []struct {
		OptionID string
		N        int64
	}
	err := db.WithContext(ctx).Model(&domain.Vote{}).
		Select("option_id, COUNT(*) AS n").
		Where("voting_id = ?", votingID).
		Group("option_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.OptionID] = r.N
	}
	return out, nil
}

// ListVotesForVoting returns every vote in a voting with its property
// preloaded, ordered by cast time. Used for the per-unit results breakdown.
func ListVotesForVoting(ctx context.Context, db *gorm.DB, votingID string) ([]domain.Vote, error) {
	var out []domain.Vote
	err := db.WithContext(ctx).
		Preload("Property").
		Preload("Option").
		Where("voting_id = ?", votingID).
		Order("voted_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountVotesForVoting returns the total number of votes in a voting. Guards
// edits: a voting with recorded votes is never edited.
func CountVotesForVoting(ctx context.Context, db *gorm.DB, votingID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Vote{}).
		Where("voting_id = ?", votingID).
		Count(&n).Error
	return n, err
}

// CountVotesForProperty returns how many votes reference the property across
// all votings. Guards property deletion.
func CountVotesForProperty(ctx context.Context, db *gorm.DB, propertyID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Vote{}).
		Where("property_id = ?", propertyID).
		Count(&n).Error
	return n, err
}

// DeleteVote removes a single vote row. Administrative use only; votes are
// otherwise immutable.
func DeleteVote(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Delete(&domain.Vote{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
