// Package services – PostService
//
// This file implements blog posts. Unpublished posts are visible to their
// author (and admins) only; the body of a password-gated post is rendered
// through the access guard's obscured projection for viewers without a grant.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/dvorik/go-community-backend/internal/domain"
	"github.com/dvorik/go-community-backend/internal/repo"
)

// PostService implements blog use-cases over the shared GORM handle.
type PostService struct {
	// DB is the database handle used for all post operations.
	DB *gorm.DB
	// Access derives the (possibly obscured) rendering of a post body.
	Access *AccessService
}

// PostInput carries the caller-supplied fields for Create and Update.
type PostInput struct {
	Title       string
	Content     string
	Image       string
	IsPublished bool
}

// Create validates and persists a post authored by the acting account.
func (s *PostService) Create(ctx context.Context, id Identity, in PostInput) (*domain.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return nil, ErrMissingFields
	}

	p := &domain.Post{
		Title:       in.Title,
		Content:     in.Content,
		Image:       strings.TrimSpace(in.Image),
		UserID:      id.ID,
		IsPublished: in.IsPublished,
	}
	if err := repo.CreatePost(ctx, s.DB, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces the post's fields. Author or admin only.
func (s *PostService) Update(ctx context.Context, id Identity, postID string, in PostInput) (*domain.Post, error) {
	p, err := repo.GetPost(ctx, s.DB, postID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.UserID != id.ID && !id.IsAdmin {
		return nil, ErrForbidden
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return nil, ErrMissingFields
	}

	p.Title = in.Title
	p.Content = in.Content
	p.Image = strings.TrimSpace(in.Image)
	p.IsPublished = in.IsPublished
	if err := repo.UpdatePost(ctx, s.DB, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPage returns a page of published posts (newest first) plus the total
// count.
func (s *PostService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Post, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	total, err := repo.CountPublishedPosts(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Post{}, 0, nil
	}
	items, err := repo.ListPublishedPostsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// ListMine returns every post of the acting account, drafts included.
func (s *PostService) ListMine(ctx context.Context, id Identity) ([]domain.Post, error) {
	return repo.ListPostsByAuthor(ctx, s.DB, id.ID)
}

// Render returns the post with its body passed through the access guard:
// gated posts come back obscured for viewers without a grant. Unpublished
// posts are hidden from everyone but their author and admins.
func (s *PostService) Render(ctx context.Context, id Identity, postID string) (*domain.Post, string, error) {
	p, err := repo.GetPost(ctx, s.DB, postID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, "", ErrPostNotFound
	}
	if err != nil {
		return nil, "", err
	}
	if !p.IsPublished && p.UserID != id.ID && !id.IsAdmin {
		return nil, "", ErrPostNotFound
	}

	body, err := s.Access.Obscure(ctx, id, domain.ContentTypePost, p.ID, p.Content)
	if err != nil {
		return nil, "", err
	}
	return p, body, nil
}

// Delete removes a post. Author or admin only.
func (s *PostService) Delete(ctx context.Context, id Identity, postID string) error {
	p, err := repo.GetPost(ctx, s.DB, postID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrPostNotFound
	}
	if err != nil {
		return err
	}
	if p.UserID != id.ID && !id.IsAdmin {
		return ErrForbidden
	}
	return repo.DeletePost(ctx, s.DB, postID)
}
