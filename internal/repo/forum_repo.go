// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for forum topics
// and posts.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dvorik/go-community-backend/internal/domain"
)

// CreateTopic inserts a topic row.
func CreateTopic(ctx context.Context, db *gorm.DB, t *domain.ForumTopic) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(t).Error
}

// GetTopic fetches a topic by ID, or ErrNotFound.
func GetTopic(ctx context.Context, db *gorm.DB, id string) (*domain.ForumTopic, error) {
	var t domain.ForumTopic
	err := db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CountTopics returns the total number of topics for pagination.
func CountTopics(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.ForumTopic{}).Count(&total).Error
	return total, err
}

// ListTopicsPage returns a page of topics ordered newest-first.
func ListTopicsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.ForumTopic, error) {
	var out []domain.ForumTopic
	err := db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CreateForumPost inserts a post (root message or reply) into a topic.
func CreateForumPost(ctx context.Context, db *gorm.DB, p *domain.ForumPost) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(p).Error
}

// GetForumPost fetches a post by ID, or ErrNotFound.
func GetForumPost(ctx context.Context, db *gorm.DB, id string) (*domain.ForumPost, error) {
	var p domain.ForumPost
	err := db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListTopicPosts returns every post of a topic ordered deterministically
// (CreatedAt ASC, ID ASC). The reply tree is derived from this flat slice by
// domain.BuildReplyTree.
func ListTopicPosts(ctx context.Context, db *gorm.DB, topicID string) ([]domain.ForumPost, error) {
	var out []domain.ForumPost
	err := db.WithContext(ctx).
		Where("topic_id = ?", topicID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListTopicParticipants returns the distinct author ids of the topic's posts.
func ListTopicParticipants(ctx context.Context, db *gorm.DB, topicID string) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).Model(&domain.ForumPost{}).
		Distinct("user_id").
		Where("topic_id = ?", topicID).
		Pluck("user_id", &out).Error
	return out, err
}

// DeleteTopic hard-deletes a topic; its posts go with it via FK cascade, and
// are also deleted explicitly for drivers without foreign keys enabled.
func DeleteTopic(ctx context.Context, db *gorm.DB, id string) error {
	if err := db.WithContext(ctx).Unscoped().Where("topic_id = ?", id).Delete(&domain.ForumPost{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Unscoped().Delete(&domain.ForumTopic{}, "id = ?", id).Error
}
