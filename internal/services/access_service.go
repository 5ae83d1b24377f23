// Package services – AccessService
//
// This file implements the content access guard. Arbitrary content items
// (votings, blog posts, forum topics) can be gated behind a password; the
// guard tracks per-user grants with a rolling validity window and derives the
// obscured projection of gated text for viewers without access.
//
// A grant lives in two places: a transient session-scoped flag (the injected
// session.Store) and a persisted ContentAccess row whose AccessedAt starts
// the rolling window. The guard applies no lockout or rate limiting; the
// login rate limiter of the surrounding application is a separate mechanism.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dvorik/go-community-backend/internal/domain"
	"github.com/dvorik/go-community-backend/internal/observability"
	"github.com/dvorik/go-community-backend/internal/repo"
	"github.com/dvorik/go-community-backend/internal/session"
)

// AccessService implements the content access guard over the shared GORM
// handle and an injected transient grant cache.
type AccessService struct {
	// DB is the database handle used for password and grant rows.
	DB *gorm.DB
	// Session caches grants for the current session scope.
	Session session.Store

	// GrantTTL is the rolling validity window of a persisted grant,
	// measured from its AccessedAt timestamp.
	GrantTTL time.Duration

	// BlurRatio is the approximate share of characters replaced when text
	// is obscured; clamped to (0, 1].
	BlurRatio float64

	// Now is the clock seam; defaults to time.Now.
	Now func() time.Time
}

// NewAccessService constructs an AccessService with the given grant window
// and blur ratio.
func NewAccessService(db *gorm.DB, sess session.Store, grantTTL time.Duration, blurRatio float64) *AccessService {
	return &AccessService{
		DB:        db,
		Session:   sess,
		GrantTTL:  grantTTL,
		BlurRatio: blurRatio,
		Now:       time.Now,
	}
}

// normalizePassword puts the plaintext into NFC form and trims surrounding
// whitespace, so visually identical passwords typed on different platforms
// compare equal.
func normalizePassword(plain string) string {
	return strings.TrimSpace(norm.NFC.String(plain))
}

// SetPassword replaces the content item's password. Any previous password row
// and every grant earned under it are removed in the same transaction, so
// old grants never carry over to the new password; the transient session
// flags for the key are revoked as well.
func (s *AccessService) SetPassword(ctx context.Context, id Identity, contentType, contentID, password string) error {
	if !domain.ValidContentType(contentType) {
		return ErrInvalidContentType
	}
	password = normalizePassword(password)
	if password == "" {
		return ErrEmptyPassword
	}

	rec := &domain.ContentPassword{
		ContentType: contentType,
		ContentID:   contentID,
		CreatedBy:   id.ID,
		IsActive:    true,
	}
	if err := rec.SetPassword(password); err != nil {
		return err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.ReplaceContentPassword(ctx, tx, rec); err != nil {
			return err
		}
		return repo.DeleteContentAccessForKey(ctx, tx, contentType, contentID)
	})
	if err != nil {
		return err
	}

	s.Session.RevokeContent(contentType, contentID)
	log.Info().
		Str("content_type", contentType).
		Str("content_id", contentID).
		Str("set_by", id.ID).
		Msg("content password set")
	return nil
}

// RemovePassword deletes the password row, reverting the item to unprotected.
// Existing grant rows are left behind: the item is open to everyone
// afterwards, so they are inert residue.
func (s *AccessService) RemovePassword(ctx context.Context, contentType, contentID string) error {
	if !domain.ValidContentType(contentType) {
		return ErrInvalidContentType
	}
	return repo.DeleteContentPassword(ctx, s.DB, contentType, contentID)
}

// HasPassword reports whether the item currently carries an active password.
func (s *AccessService) HasPassword(ctx context.Context, contentType, contentID string) (bool, error) {
	if !domain.ValidContentType(contentType) {
		return false, ErrInvalidContentType
	}
	_, err := repo.GetContentPassword(ctx, s.DB, contentType, contentID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CheckAccess reports whether the identity may read the gated item. Passing a
// password is optional; an empty password only consults existing grants.
//
// Grant order:
//  1. Unprotected content is always accessible.
//  2. The password's creator always has access.
//  3. A live transient session grant suffices.
//  4. A persisted ContentAccess row inside the rolling window suffices and
//     is mirrored into the session cache.
//  5. A supplied matching password creates-or-refreshes the persisted grant,
//     sets the session flag, and grants access.
//
// Anything else is denied. Denial is a normal false return, not an error;
// errors are reserved for invalid input and storage failures.
func (s *AccessService) CheckAccess(ctx context.Context, id Identity, contentType, contentID, password string) (bool, error) {
	tr := otel.Tracer("services/AccessService")
	ctx, span := tr.Start(ctx, "CheckAccess",
		trace.WithAttributes(
			attribute.String("content.type", contentType),
			attribute.String("content.id", contentID),
		),
	)
	defer span.End()

	if !domain.ValidContentType(contentType) {
		return false, ErrInvalidContentType
	}

	cp, err := repo.GetContentPassword(ctx, s.DB, contentType, contentID)
	if errors.Is(err, repo.ErrNotFound) {
		return true, nil // unprotected
	}
	if err != nil {
		return false, err
	}

	granted, err := s.checkProtected(ctx, id, cp, contentType, contentID, password)
	if err != nil {
		return false, err
	}
	observability.AccessCheck(granted)
	span.SetAttributes(attribute.Bool("access.granted", granted))
	return granted, nil
}

func (s *AccessService) checkProtected(ctx context.Context, id Identity, cp *domain.ContentPassword, contentType, contentID, password string) (bool, error) {
	if !id.Authenticated() {
		return false, nil
	}
	if cp.CreatedBy == id.ID {
		return true, nil
	}
	if s.Session.Granted(id.ID, contentType, contentID) {
		return true, nil
	}

	now := s.Now().UTC()
	grant, err := repo.GetContentAccess(ctx, s.DB, id.ID, contentType, contentID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return false, err
	}
	if grant != nil && grant.Valid(now, s.GrantTTL) {
		s.Session.Grant(id.ID, contentType, contentID)
		return true, nil
	}

	if password = normalizePassword(password); password == "" || !cp.CheckPassword(password) {
		return false, nil
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.UpsertContentAccess(ctx, tx, id.ID, contentType, contentID, now)
	})
	if err != nil {
		return false, err
	}
	s.Session.Grant(id.ID, contentType, contentID)
	log.Debug().
		Str("content_type", contentType).
		Str("content_id", contentID).
		Str("user_id", id.ID).
		Msg("content access granted")
	return true, nil
}

// Obscure returns the original text when the item is unprotected or the
// identity has access, and the blurred projection otherwise. The projection
// is recomputed on every call and is not reversible; word boundaries and
// per-word lengths deliberately remain visible.
func (s *AccessService) Obscure(ctx context.Context, id Identity, contentType, contentID, text string) (string, error) {
	protected, err := s.HasPassword(ctx, contentType, contentID)
	if err != nil {
		return "", err
	}
	if !protected {
		return text, nil
	}

	granted, err := s.CheckAccess(ctx, id, contentType, contentID, "")
	if err != nil {
		return "", err
	}
	if granted {
		return text, nil
	}

	observability.ContentObscured()
	return blurText(text, s.BlurRatio), nil
}
