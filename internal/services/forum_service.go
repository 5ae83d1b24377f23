// Package services – ForumService
//
// This file implements forum topics and threaded replies. Posts are stored
// flat per topic with an optional parent id; the reply tree is derived by
// traversal when a topic is viewed. Replying notifies the parent post's
// author and the topic's other participants through the notification
// collaborator.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dvorik/go-community-backend/internal/domain"
	"github.com/dvorik/go-community-backend/internal/repo"
)

// Notifier is the narrow notification contract the forum depends on: notify
// user X about event Y on item Z.
type Notifier interface {
	Notify(ctx context.Context, recipientID, title, message, typeTag, relatedID, postID string) error
}

// ForumService implements topic and reply use-cases over the shared GORM
// handle.
type ForumService struct {
	// DB is the database handle used for all forum operations.
	DB *gorm.DB
	// Access gates topic viewing for password-protected topics.
	Access *AccessService
	// Notifications delivers reply notifications. Optional; nil disables
	// notification fan-out.
	Notifications Notifier
}

// TopicView is a materialized topic page: the topic row and the derived reply
// forest of its posts.
type TopicView struct {
	Topic domain.ForumTopic
	Posts []*domain.ReplyNode
}

// CreateTopic validates and persists a topic together with its root post in
// one transaction. An optional image link must be an http(s) URL.
func (s *ForumService) CreateTopic(ctx context.Context, id Identity, title, content, imageURL string) (*domain.ForumTopic, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, ErrMissingFields
	}
	imageURL = strings.TrimSpace(imageURL)
	if imageURL != "" && !strings.HasPrefix(imageURL, "http://") && !strings.HasPrefix(imageURL, "https://") {
		return nil, ErrBadImageURL
	}

	topic := &domain.ForumTopic{
		Title:    title,
		ImageURL: imageURL,
		UserID:   id.ID,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateTopic(ctx, tx, topic); err != nil {
			return err
		}
		return repo.CreateForumPost(ctx, tx, &domain.ForumPost{
			TopicID: topic.ID,
			UserID:  id.ID,
			Content: content,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("topic_id", topic.ID).Str("user_id", id.ID).Msg("forum topic created")
	return topic, nil
}

// ListTopicsPage returns a page of topics (newest first) plus the total
// count.
func (s *ForumService) ListTopicsPage(ctx context.Context, page, pageSize int) ([]domain.ForumTopic, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	total, err := repo.CountTopics(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ForumTopic{}, 0, nil
	}
	items, err := repo.ListTopicsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// ViewTopic returns the topic and its derived reply forest. Password-gated
// topics require access: the supplied password (possibly empty) goes through
// the guard, and denial surfaces as ErrAccessDenied so the presentation layer
// can render its password prompt.
func (s *ForumService) ViewTopic(ctx context.Context, id Identity, topicID, password string) (*TopicView, error) {
	topic, err := repo.GetTopic(ctx, s.DB, topicID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrTopicNotFound
	}
	if err != nil {
		return nil, err
	}

	granted, err := s.Access.CheckAccess(ctx, id, domain.ContentTypeTopic, topicID, password)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, ErrAccessDenied
	}

	posts, err := repo.ListTopicPosts(ctx, s.DB, topicID)
	if err != nil {
		return nil, err
	}
	return &TopicView{Topic: *topic, Posts: domain.BuildReplyTree(posts)}, nil
}

// Reply adds a post to the topic, either as a root message (parentID empty)
// or as a reply to an existing post of the same topic. On success it notifies
// the parent post's author and every other participant of the topic.
func (s *ForumService) Reply(ctx context.Context, id Identity, topicID, content, parentID string) (*domain.ForumPost, error) {
	tr := otel.Tracer("services/ForumService")
	ctx, span := tr.Start(ctx, "Reply",
		trace.WithAttributes(
			attribute.String("topic.id", topicID),
			attribute.String("user.id", id.ID),
		),
	)
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMissingFields
	}

	topic, err := repo.GetTopic(ctx, s.DB, topicID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrTopicNotFound
	}
	if err != nil {
		return nil, err
	}

	var parent *domain.ForumPost
	if parentID != "" {
		parent, err = repo.GetForumPost(ctx, s.DB, parentID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && parent.TopicID != topicID) {
			return nil, ErrParentPostNotFound
		}
		if err != nil {
			return nil, err
		}
	}

	post := &domain.ForumPost{
		TopicID: topicID,
		UserID:  id.ID,
		Content: content,
	}
	if parent != nil {
		post.ParentID = &parent.ID
	}
	if err := repo.CreateForumPost(ctx, s.DB, post); err != nil {
		return nil, err
	}

	s.notifyReply(ctx, id, topic, post, parent)
	return post, nil
}

// notifyReply fans reply notifications out to the parent author and the
// topic's other participants. Notification failures are logged and do not
// fail the reply itself.
func (s *ForumService) notifyReply(ctx context.Context, id Identity, topic *domain.ForumTopic, post *domain.ForumPost, parent *domain.ForumPost) {
	if s.Notifications == nil {
		return
	}

	notified := map[string]bool{id.ID: true}

	if parent != nil && parent.UserID != id.ID {
		err := s.Notifications.Notify(ctx, parent.UserID,
			`Reply to your message in "`+topic.Title+`"`,
			"Someone answered your message",
			"forum_reply", topic.ID, post.ID)
		if err != nil {
			log.Warn().Err(err).Str("topic_id", topic.ID).Msg("reply notification failed")
		}
		notified[parent.UserID] = true
	}

	participants, err := repo.ListTopicParticipants(ctx, s.DB, topic.ID)
	if err != nil {
		log.Warn().Err(err).Str("topic_id", topic.ID).Msg("participant lookup failed")
		return
	}
	for _, uid := range participants {
		if notified[uid] {
			continue
		}
		err := s.Notifications.Notify(ctx, uid,
			`New message in "`+topic.Title+`"`,
			"A topic you participate in has a new message",
			"forum_post", topic.ID, post.ID)
		if err != nil {
			log.Warn().Err(err).Str("topic_id", topic.ID).Msg("participant notification failed")
		}
	}
}

// DeleteTopic removes a topic with all of its posts. Creator or admin only.
func (s *ForumService) DeleteTopic(ctx context.Context, id Identity, topicID string) error {
	topic, err := repo.GetTopic(ctx, s.DB, topicID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrTopicNotFound
	}
	if err != nil {
		return err
	}
	if topic.UserID != id.ID && !id.IsAdmin {
		return ErrForbidden
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.DeleteTopic(ctx, tx, topicID)
	})
}
