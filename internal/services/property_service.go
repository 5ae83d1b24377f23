// Package services – PropertyService
//
// This file implements property (unit) registration and the owned-units
// capability query the voting engine depends on. A unit's number is globally
// unique, its area must be positive, and a unit that has cast votes can no
// longer be deleted.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dvorik/go-community-backend/internal/domain"
	"github.com/dvorik/go-community-backend/internal/repo"
)

// PropertyService manages voting-eligible units. It satisfies
// OwnedUnitsLister for the voting engine.
type PropertyService struct {
	// DB is the database handle used for all property operations.
	DB *gorm.DB
}

// PropertyInput carries the caller-supplied fields for Register.
type PropertyInput struct {
	Number      string
	Area        float64
	Street      string
	HouseNumber string
	Entrance    string
	Floor       *int
}

// Register validates and persists a new unit owned by the acting account.
// Returns ErrMissingFields, ErrNonPositiveArea, or ErrDuplicateNumber on the
// corresponding validation failures.
func (s *PropertyService) Register(ctx context.Context, id Identity, in PropertyInput) (*domain.Property, error) {
	in.Number = strings.TrimSpace(in.Number)
	in.Street = strings.TrimSpace(in.Street)
	in.HouseNumber = strings.TrimSpace(in.HouseNumber)
	if in.Number == "" || in.Street == "" || in.HouseNumber == "" {
		return nil, ErrMissingFields
	}
	if in.Area <= 0 {
		return nil, ErrNonPositiveArea
	}

	p := &domain.Property{
		Number:      in.Number,
		Area:        in.Area,
		Street:      in.Street,
		HouseNumber: in.HouseNumber,
		Entrance:    strings.TrimSpace(in.Entrance),
		Floor:       in.Floor,
		OwnerID:     id.ID,
	}
	err := repo.CreateProperty(ctx, s.DB, p)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrDuplicateNumber
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("property_id", p.ID).Str("number", p.Number).Str("owner_id", id.ID).Msg("property registered")
	return p, nil
}

// ListOwned returns every unit owned by the account. This is the capability
// query consumed by the voting engine; vote fan-out follows its order.
func (s *PropertyService) ListOwned(ctx context.Context, ownerID string) ([]domain.Property, error) {
	return repo.ListPropertiesByOwner(ctx, s.DB, ownerID)
}

// ListAll returns every registered unit. Admin-only surface.
func (s *PropertyService) ListAll(ctx context.Context, id Identity) ([]domain.Property, error) {
	if !id.IsAdmin {
		return nil, ErrForbidden
	}
	return repo.ListProperties(ctx, s.DB)
}

// Delete removes a unit. The owner (or an admin) may delete it only while no
// votes reference it; otherwise ErrPropertyHasVotes.
func (s *PropertyService) Delete(ctx context.Context, id Identity, propertyID string) error {
	p, err := repo.GetProperty(ctx, s.DB, propertyID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrPropertyNotFound
	}
	if err != nil {
		return err
	}
	if p.OwnerID != id.ID && !id.IsAdmin {
		return ErrForbidden
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repo.CountVotesForProperty(ctx, tx, propertyID)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrPropertyHasVotes
		}
		return repo.DeleteProperty(ctx, tx, propertyID)
	})
}
