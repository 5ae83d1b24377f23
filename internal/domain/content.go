// Package domain – gated content models.
//
// ContentPassword and ContentAccess implement the persistence side of the
// content access guard: an optional password protecting a voting, blog post,
// or forum topic, and the per-user grant rows recorded after a successful
// password check.
package domain

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Content types that may carry a password. The set is closed; guard calls
// with any other value are rejected as invalid input.
const (
	ContentTypeVoting = "voting"
	ContentTypePost   = "post"
	ContentTypeTopic  = "topic"
)

// ValidContentType reports whether t is one of the known gated content types.
func ValidContentType(t string) bool {
	switch t {
	case ContentTypeVoting, ContentTypePost, ContentTypeTopic:
		return true
	}
	return false
}

// ContentPassword stores the one active password for a (content_type,
// content_id) key. The composite unique index makes "at most one password per
// item" a storage-level guarantee, so two concurrent setters serialize on the
// constraint instead of silently stacking rows.
type ContentPassword struct {
	ID           string         `json:"id"           gorm:"type:TEXT NOT NULL;primaryKey"`
	ContentType  string         `json:"content_type" gorm:"type:varchar(20);not null;uniqueIndex:ux_content_password_key,priority:1"`
	ContentID    string         `json:"content_id"   gorm:"type:TEXT NOT NULL;uniqueIndex:ux_content_password_key,priority:2"`
	PasswordHash string         `json:"-"            gorm:"type:varchar(128);not null"`
	CreatedBy    string         `json:"created_by"   gorm:"type:varchar(64);not null"`
	IsActive     bool           `json:"is_active"    gorm:"not null;default:true"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for ContentPassword.
func (ContentPassword) TableName() string { return "content_passwords" }

// SetPassword hashes the plaintext with bcrypt and stores the result.
// Normalization of the plaintext is the caller's responsibility.
func (p *ContentPassword) SetPassword(plain string) error {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.PasswordHash = string(h)
	return nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func (p *ContentPassword) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(plain)) == nil
}

// ContentAccess records a successful password check by one user for one gated
// item. The grant is valid for a rolling window measured from AccessedAt;
// re-validating refreshes the timestamp. The unique index keeps one row per
// (user, type, id) so refreshes are updates, never duplicates.
type ContentAccess struct {
	ID          string    `json:"id"           gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID      string    `json:"user_id"      gorm:"type:varchar(64);not null;uniqueIndex:ux_content_access_key,priority:1"`
	ContentType string    `json:"content_type" gorm:"type:varchar(20);not null;uniqueIndex:ux_content_access_key,priority:2"`
	ContentID   string    `json:"content_id"   gorm:"type:TEXT NOT NULL;uniqueIndex:ux_content_access_key,priority:3"`
	AccessedAt  time.Time `json:"accessed_at"  gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for ContentAccess.
func (ContentAccess) TableName() string { return "content_access" }

// Valid reports whether the grant is still inside its rolling window at the
// given instant.
func (a ContentAccess) Valid(now time.Time, ttl time.Duration) bool {
	return a.AccessedAt.After(now.Add(-ttl))
}

// Post is a blog entry. Unpublished posts are visible to their author only;
// the body of a password-gated post is obscured for viewers without a grant.
type Post struct {
	ID          string         `json:"id"         gorm:"type:TEXT NOT NULL;primaryKey"`
	Title       string         `json:"title"      gorm:"type:varchar(200);not null"`
	Content     string         `json:"content"    gorm:"type:text;not null"`
	UserID      string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_post_user"`
	Image       string         `json:"image,omitempty" gorm:"type:varchar(255)"`
	IsPublished bool           `json:"is_published" gorm:"not null;default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string { return "posts" }
