// Package services – VotingService
//
// This file implements the voting engine. It owns the voting lifecycle
// (creation, editing, deletion, the open/closed window), enforces
// one-vote-per-property with per-unit fan-out for multi-property owners, and
// computes aggregated results on demand.
//
// Service-level errors (ErrVotingClosed, ErrAlreadyVoted, ErrNoProperties,
// ErrInvalidOption, ...) are returned for predictable cases so the embedding
// presentation layer can map them consistently.
//
// Observability: SubmitVote is OpenTelemetry-instrumented; cast votes are
// counted by the observability package.
package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dvorik/go-community-backend/internal/domain"
	"github.com/dvorik/go-community-backend/internal/observability"
	"github.com/dvorik/go-community-backend/internal/repo"
)

// OwnedUnitsLister is the capability query the voting engine uses to fan a
// single choice out to every unit the account owns. PropertyService satisfies
// it; the engine never traverses account attributes itself.
type OwnedUnitsLister interface {
	ListOwned(ctx context.Context, ownerID string) ([]domain.Property, error)
}

// VotingService implements the voting engine use-cases over the shared GORM
// handle.
type VotingService struct {
	// DB is the database handle used for all voting operations.
	DB *gorm.DB
	// Units answers which properties the acting account owns.
	Units OwnedUnitsLister

	// Now is the clock seam; defaults to time.Now. Window checks and vote
	// timestamps go through it.
	Now func() time.Time
}

// NewVotingService constructs a VotingService with the wall clock.
func NewVotingService(db *gorm.DB, units OwnedUnitsLister) *VotingService {
	return &VotingService{DB: db, Units: units, Now: time.Now}
}

// VotingInput carries the caller-supplied fields for Create and Update.
// Options are the option texts in display order; blank entries are dropped.
type VotingInput struct {
	Title       string
	Description string
	Question    string
	StartDate   time.Time
	EndDate     time.Time
	Options     []string
}

// OptionResult is the aggregated tally for one option.
type OptionResult struct {
	Text       string  `json:"text"`
	Votes      int64   `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// Results maps option id to its tally.
type Results map[string]OptionResult

// PropertyVote is one row of the per-unit results breakdown.
type PropertyVote struct {
	Number      string  `json:"number"`
	Area        float64 `json:"area"`
	Street      string  `json:"street"`
	HouseNumber string  `json:"house_number"`
	OwnerID     string  `json:"owner_id"`
	Option      string  `json:"option"`
}

// validate normalizes the input in place and checks the creation rules:
// every field present, at least two non-empty options, start strictly before
// end, start not in the past.
func (in *VotingInput) validate(now time.Time) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Question = strings.TrimSpace(in.Question)
	if in.Title == "" || in.Description == "" || in.Question == "" || in.StartDate.IsZero() || in.EndDate.IsZero() {
		return ErrMissingFields
	}

	opts := make([]string, 0, len(in.Options))
	for _, o := range in.Options {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	in.Options = opts
	if len(in.Options) < 2 {
		return ErrTooFewOptions
	}

	if !in.StartDate.Before(in.EndDate) {
		return ErrBadDateRange
	}
	if in.StartDate.Before(now) {
		return ErrStartInPast
	}
	return nil
}

// Create validates the input and persists the voting together with its
// options in one transaction, so a voting without options is never
// observable.
func (s *VotingService) Create(ctx context.Context, id Identity, in VotingInput) (*domain.Voting, error) {
	now := s.Now().UTC()
	if err := in.validate(now); err != nil {
		return nil, err
	}

	v := &domain.Voting{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Question:    in.Question,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		IsActive:    true,
		CreatedBy:   id.ID,
		CreatedAt:   now,
	}
	options := make([]domain.VotingOption, 0, len(in.Options))
	for _, text := range in.Options {
		options = append(options, domain.VotingOption{
			ID:       uuid.NewString(),
			VotingID: v.ID,
			Text:     text,
		})
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.CreateVoting(ctx, tx, v, options)
	})
	if err != nil {
		return nil, err
	}
	v.Options = options

	log.Info().Str("voting_id", v.ID).Str("created_by", id.ID).Msg("voting created")
	return v, nil
}

// Get returns the voting with its options, or ErrVotingNotFound.
func (s *VotingService) Get(ctx context.Context, votingID string) (*domain.Voting, error) {
	v, err := repo.GetVoting(ctx, s.DB, votingID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrVotingNotFound
	}
	return v, err
}

// ListPage returns a page of votings (newest first) plus the total count.
func (s *VotingService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Voting, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	total, err := repo.CountVotings(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Voting{}, 0, nil
	}
	items, err := repo.ListVotingsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// ListMine returns the votings created by the acting account.
func (s *VotingService) ListMine(ctx context.Context, id Identity) ([]domain.Voting, error) {
	return repo.ListVotingsByCreator(ctx, s.DB, id.ID)
}

// Update replaces the voting's fields and its whole option set. It fails with
// ErrForbidden for non-creators, ErrVotingOpen while the voting is open, and
// ErrVotingHasVotes when votes already exist (votes are never discarded by an
// edit, even if a bug elsewhere let them in while the voting was closed).
func (s *VotingService) Update(ctx context.Context, id Identity, votingID string, in VotingInput) (*domain.Voting, error) {
	v, err := s.Get(ctx, votingID)
	if err != nil {
		return nil, err
	}
	if v.CreatedBy != id.ID && !id.IsAdmin {
		return nil, ErrForbidden
	}

	now := s.Now().UTC()
	if v.IsOpen(now) {
		return nil, ErrVotingOpen
	}
	if err := in.validate(now); err != nil {
		return nil, err
	}

	options := make([]domain.VotingOption, 0, len(in.Options))
	for _, text := range in.Options {
		options = append(options, domain.VotingOption{
			ID:       uuid.NewString(),
			VotingID: v.ID,
			Text:     text,
		})
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repo.CountVotesForVoting(ctx, tx, v.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrVotingHasVotes
		}

		v.Title = in.Title
		v.Description = in.Description
		v.Question = in.Question
		v.StartDate = in.StartDate
		v.EndDate = in.EndDate
		if err := repo.UpdateVoting(ctx, tx, v); err != nil {
			return err
		}
		return repo.ReplaceOptions(ctx, tx, v.ID, options)
	})
	if err != nil {
		return nil, err
	}
	v.Options = options
	return v, nil
}

// Delete removes a voting with its options and votes. Only the creator or an
// admin may delete, and never while the voting is open.
func (s *VotingService) Delete(ctx context.Context, id Identity, votingID string) error {
	v, err := s.Get(ctx, votingID)
	if err != nil {
		return err
	}
	if v.CreatedBy != id.ID && !id.IsAdmin {
		return ErrForbidden
	}
	if v.IsOpen(s.Now().UTC()) {
		return ErrVotingOpen
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.DeleteVoting(ctx, tx, votingID)
	})
	if err == nil {
		log.Info().Str("voting_id", votingID).Str("deleted_by", id.ID).Msg("voting deleted")
	}
	return err
}

// SubmitVote records the account's choice, one vote row per owned property,
// all referencing the same option with the same timestamp.
//
// Order of checks:
//  1. ErrVotingClosed when the voting is outside its open window or inactive.
//  2. ErrNoProperties when the account owns no units.
//  3. ErrAlreadyVoted when any owned unit has a vote in this voting.
//  4. ErrInvalidOption when the option is not part of this voting.
//
// Concurrency & atomicity: the pre-check and the fan-out insert run in one
// transaction, and the (voting_id, property_id) unique index backstops the
// pre-check — two racing submissions for the same unit cannot both commit;
// the loser surfaces as ErrAlreadyVoted with no partial rows.
func (s *VotingService) SubmitVote(ctx context.Context, id Identity, votingID, optionID string) ([]domain.Vote, error) {
	tr := otel.Tracer("services/VotingService")
	ctx, span := tr.Start(ctx, "SubmitVote",
		trace.WithAttributes(
			attribute.String("voting.id", votingID),
			attribute.String("user.id", id.ID),
		),
	)
	defer span.End()

	v, err := s.Get(ctx, votingID)
	if err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	if !v.IsOpen(now) {
		return nil, ErrVotingClosed
	}

	units, err := s.Units.ListOwned(ctx, id.ID)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, ErrNoProperties
	}
	propertyIDs := make([]string, 0, len(units))
	for _, u := range units {
		propertyIDs = append(propertyIDs, u.ID)
	}

	validOption := false
	for _, o := range v.Options {
		if o.ID == optionID {
			validOption = true
			break
		}
	}

	var votes []domain.Vote
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		voted, err := repo.HasVoteForProperties(ctx, tx, votingID, propertyIDs)
		if err != nil {
			return err
		}
		if voted {
			return ErrAlreadyVoted
		}
		if !validOption {
			return ErrInvalidOption
		}
		votes, err = repo.CreateVotes(ctx, tx, votingID, optionID, propertyIDs, now)
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost the race to a concurrent submission for the same unit.
			return ErrAlreadyVoted
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.VotesCast(len(votes))
	log.Info().
		Str("voting_id", votingID).
		Str("user_id", id.ID).
		Int("units", len(votes)).
		Msg("vote recorded")
	span.SetAttributes(attribute.Int("vote.units", len(votes)))
	return votes, nil
}

// UserVote returns the vote cast by any of the account's units in the voting,
// or ErrVoteNotFound when the account has not voted.
func (s *VotingService) UserVote(ctx context.Context, id Identity, votingID string) (*domain.Vote, error) {
	units, err := s.Units.ListOwned(ctx, id.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	v, err := repo.GetVoteForProperties(ctx, s.DB, votingID, ids)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrVoteNotFound
	}
	return v, err
}

// Results recomputes the tally from the vote rows. Every option of the voting
// appears in the map; percentages are rounded to one decimal and are all zero
// when no votes exist.
func (s *VotingService) Results(ctx context.Context, votingID string) (Results, int64, error) {
	v, err := s.Get(ctx, votingID)
	if err != nil {
		return nil, 0, err
	}

	counts, err := repo.CountVotesByOption(ctx, s.DB, votingID)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	out := make(Results, len(v.Options))
	for _, o := range v.Options {
		r := OptionResult{Text: o.Text, Votes: counts[o.ID]}
		if total > 0 {
			r.Percentage = math.Round(float64(r.Votes)/float64(total)*1000) / 10
		}
		out[o.ID] = r
	}
	return out, total, nil
}

// ResultsBreakdown returns the per-unit vote rows visible to the requester:
// all units for admins, the requester's own units otherwise, nothing for
// anonymous visitors.
func (s *VotingService) ResultsBreakdown(ctx context.Context, id Identity, votingID string) ([]PropertyVote, error) {
	if !id.Authenticated() {
		return nil, nil
	}

	votes, err := repo.ListVotesForVoting(ctx, s.DB, votingID)
	if err != nil {
		return nil, err
	}

	var out []PropertyVote
	for _, v := range votes {
		if !id.IsAdmin && v.Property.OwnerID != id.ID {
			continue
		}
		out = append(out, PropertyVote{
			Number:      v.Property.Number,
			Area:        v.Property.Area,
			Street:      v.Property.Street,
			HouseNumber: v.Property.HouseNumber,
			OwnerID:     v.Property.OwnerID,
			Option:      v.Option.Text,
		})
	}
	return out, nil
}

// DeleteVote removes one vote row. Administrative use only.
func (s *VotingService) DeleteVote(ctx context.Context, id Identity, voteID string) error {
	if !id.IsAdmin {
		return ErrForbidden
	}
	err := repo.DeleteVote(ctx, s.DB, voteID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrVoteNotFound
	}
	if err == nil {
		log.Warn().Str("vote_id", voteID).Str("deleted_by", id.ID).Msg("vote deleted by admin")
	}
	return err
}
