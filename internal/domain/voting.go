// Package domain defines the persistence models for the residents'-community
// application: properties, votings, votes, gated content, the forum, and
// notifications. These types are mapped with GORM and form the core data
// layer shared by the repository and service packages.
package domain

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Property represents a voting-eligible real-estate unit with a single owner.
// Vote weighting is one vote per unit, so an owner of N properties carries N
// votes with a single choice.
//
// Fields:
//   - ID: stable UUID primary key (TEXT).
//   - Number: unit number, globally unique.
//   - Area: unit area in square meters; must be positive.
//   - Street / HouseNumber: required address parts.
//   - Entrance / Floor: optional address parts.
//   - OwnerID: identifier of the owning account (resolved by the external
//     identity layer; no local user table exists).
type Property struct {
	ID          string         `json:"id"           gorm:"type:TEXT NOT NULL;primaryKey"`
	Number      string         `json:"number"       gorm:"type:varchar(20);not null;uniqueIndex:ux_property_number"`
	Area        float64        `json:"area"         gorm:"not null;check:area > 0"`
	Street      string         `json:"street"       gorm:"type:varchar(200);not null"`
	HouseNumber string         `json:"house_number" gorm:"type:varchar(20);not null"`
	Entrance    string         `json:"entrance,omitempty" gorm:"type:varchar(10)"`
	Floor       *int           `json:"floor,omitempty"`
	OwnerID     string         `json:"owner_id"     gorm:"type:varchar(64);not null;index:idx_property_owner"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Property.
func (Property) TableName() string { return "properties" }

// FullAddress renders the unit's postal address from its parts, skipping the
// optional ones when empty.
func (p Property) FullAddress() string {
	parts := []string{"st. " + p.Street, "bld. " + p.HouseNumber}
	if p.Entrance != "" {
		parts = append(parts, "entrance "+p.Entrance)
	}
	if p.Floor != nil {
		parts = append(parts, "floor "+strconv.Itoa(*p.Floor))
	}
	parts = append(parts, "unit "+p.Number)
	return strings.Join(parts, ", ")
}

// Voting is a time-boxed multi-option poll whose eligible voters are property
// owners. A voting is open when it is active and the current time falls
// within [StartDate, EndDate].
//
// Options and votes are cascade-deleted with their voting.
type Voting struct {
	ID          string         `json:"id"          gorm:"type:TEXT NOT NULL;primaryKey"`
	Title       string         `json:"title"       gorm:"type:varchar(200);not null"`
	Description string         `json:"description" gorm:"type:text;not null"`
	Question    string         `json:"question"    gorm:"type:varchar(500);not null"`
	StartDate   time.Time      `json:"start_date"  gorm:"not null"`
	EndDate     time.Time      `json:"end_date"    gorm:"not null"`
	IsActive    bool           `json:"is_active"   gorm:"not null;default:true"`
	CreatedBy   string         `json:"created_by"  gorm:"type:varchar(64);not null;index:idx_voting_creator"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`

	Options []VotingOption `json:"options,omitempty" gorm:"foreignKey:VotingID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Voting.
func (Voting) TableName() string { return "votings" }

// IsOpen reports whether the voting accepts votes at the given instant:
// active, started, and not yet past its end date. It is a pure function of
// the row state and the supplied clock value.
func (v Voting) IsOpen(now time.Time) bool {
	return v.IsActive && !now.Before(v.StartDate) && !now.After(v.EndDate)
}

// VotingOption is a single answer choice belonging to one voting. Options
// never exist outside their voting and are removed with it.
type VotingOption struct {
	ID       string `json:"id"        gorm:"type:TEXT NOT NULL;primaryKey"`
	VotingID string `json:"voting_id" gorm:"type:TEXT NOT NULL;index:idx_option_voting"`
	Text     string `json:"text"      gorm:"type:varchar(200);not null"`
}

// TableName returns the database table name for VotingOption.
func (VotingOption) TableName() string { return "voting_options" }

// Vote links a voting, a property, and the chosen option. At most one vote
// may exist per (voting, property) pair; the composite unique index enforces
// this at the storage boundary so concurrent submissions cannot both commit.
// Votes are immutable once written, except through administrative deletion.
type Vote struct {
	ID         string    `json:"id"          gorm:"type:TEXT NOT NULL;primaryKey"`
	VotingID   string    `json:"voting_id"   gorm:"type:TEXT NOT NULL;uniqueIndex:ux_vote_voting_property,priority:1"`
	PropertyID string    `json:"property_id" gorm:"type:TEXT NOT NULL;uniqueIndex:ux_vote_voting_property,priority:2"`
	OptionID   string    `json:"option_id"   gorm:"type:TEXT NOT NULL;index:idx_vote_option"`
	VotedAt    time.Time `json:"voted_at"    gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`

	Voting   Voting       `json:"-" gorm:"foreignKey:VotingID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Property Property     `json:"-" gorm:"foreignKey:PropertyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Option   VotingOption `json:"-" gorm:"foreignKey:OptionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }
