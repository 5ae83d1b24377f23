package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvorik/go-community-backend/internal/domain"
	"github.com/dvorik/go-community-backend/internal/session"
)

func newPostFixture(t *testing.T) *PostService {
	t.Helper()
	db := newTestDB(t)
	access := NewAccessService(db, session.NewMemory(24*time.Hour), 24*time.Hour, 0.6)
	return &PostService{DB: db, Access: access}
}

func TestPostCreateUpdate(t *testing.T) {
	svc := newPostFixture(t)
	ctx := context.Background()
	author := Identity{ID: "author"}

	if _, err := svc.Create(ctx, author, PostInput{Title: " ", Content: "x"}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("blank title: got %v", err)
	}

	p, err := svc.Create(ctx, author, PostInput{Title: "Yard cleanup", Content: "This Saturday at 10", IsPublished: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Update(ctx, Identity{ID: "stranger"}, p.ID, PostInput{Title: "t", Content: "c"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger update: got %v", err)
	}
	updated, err := svc.Update(ctx, Identity{ID: "root", IsAdmin: true}, p.ID, PostInput{Title: "Yard cleanup (moved)", Content: "Sunday instead", IsPublished: true})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Title != "Yard cleanup (moved)" {
		t.Fatalf("update not applied: %+v", updated)
	}
	if _, err := svc.Update(ctx, author, "missing", PostInput{Title: "t", Content: "c"}); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("missing post update: got %v", err)
	}
}

func TestPostListing_DraftsHidden(t *testing.T) {
	svc := newPostFixture(t)
	ctx := context.Background()
	author := Identity{ID: "author"}

	if _, err := svc.Create(ctx, author, PostInput{Title: "Published", Content: "visible", IsPublished: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	draft, err := svc.Create(ctx, author, PostInput{Title: "Draft", Content: "hidden"})
	if err != nil {
		t.Fatalf("Create draft: %v", err)
	}

	items, total, err := svc.ListPage(ctx, 1, 10)
	if err != nil || total != 1 || len(items) != 1 || items[0].Title != "Published" {
		t.Fatalf("ListPage = %d items, total %d, %v; want the published post only", len(items), total, err)
	}
	mine, err := svc.ListMine(ctx, author)
	if err != nil || len(mine) != 2 {
		t.Fatalf("ListMine = %d, %v; want drafts included", len(mine), err)
	}

	// Drafts render for their author and admins, nobody else.
	if _, _, err := svc.Render(ctx, Identity{ID: "reader"}, draft.ID); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("draft rendered for a reader: %v", err)
	}
	if _, _, err := svc.Render(ctx, author, draft.ID); err != nil {
		t.Fatalf("draft hidden from author: %v", err)
	}
	if _, _, err := svc.Render(ctx, Identity{ID: "root", IsAdmin: true}, draft.ID); err != nil {
		t.Fatalf("draft hidden from admin: %v", err)
	}
}

func TestPostRender_GatedBody(t *testing.T) {
	svc := newPostFixture(t)
	ctx := context.Background()
	author := Identity{ID: "author"}
	const content = "Contractor quotes for the facade renovation"

	p, err := svc.Create(ctx, author, PostInput{Title: "Facade", Content: content, IsPublished: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Without a password the body renders as written.
	if _, body, err := svc.Render(ctx, Identity{ID: "reader"}, p.ID); err != nil || body != content {
		t.Fatalf("ungated body = %q, %v", body, err)
	}

	if err := svc.Access.SetPassword(ctx, author, domain.ContentTypePost, p.ID, "owners-only"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	// Gated: the author still sees the original, a reader gets the blur.
	if _, body, err := svc.Render(ctx, author, p.ID); err != nil || body != content {
		t.Fatalf("author body = %q, %v", body, err)
	}
	_, body, err := svc.Render(ctx, Identity{ID: "reader"}, p.ID)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if body == content {
		t.Fatalf("gated body rendered unblurred")
	}
	// Earning a grant restores the original.
	if ok, err := svc.Access.CheckAccess(ctx, Identity{ID: "reader"}, domain.ContentTypePost, p.ID, "owners-only"); err != nil || !ok {
		t.Fatalf("CheckAccess = %v, %v", ok, err)
	}
	if _, body, err := svc.Render(ctx, Identity{ID: "reader"}, p.ID); err != nil || body != content {
		t.Fatalf("granted body = %q, %v", body, err)
	}
}

func TestPostDelete(t *testing.T) {
	svc := newPostFixture(t)
	ctx := context.Background()
	author := Identity{ID: "author"}

	p, err := svc.Create(ctx, author, PostInput{Title: "Obsolete", Content: "old news", IsPublished: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, Identity{ID: "stranger"}, p.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger delete: got %v", err)
	}
	if err := svc.Delete(ctx, author, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, author, p.ID); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("second delete: got %v", err)
	}
}
