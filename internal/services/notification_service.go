// Package services – NotificationService
//
// This file implements the notification collaborator consumed by the forum:
// persisted "notify user X about event Y on item Z" records with unread
// tracking.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dvorik/go-community-backend/internal/domain"
	"github.com/dvorik/go-community-backend/internal/repo"
)

// NotificationService persists and serves per-user notifications. It
// satisfies the Notifier contract used by ForumService.
type NotificationService struct {
	// DB is the database handle used for all notification operations.
	DB *gorm.DB
}

// Notify records a notification for one recipient. relatedID points at the
// topic or voting the event concerns; postID at the concrete forum post when
// applicable (either may be empty).
func (s *NotificationService) Notify(ctx context.Context, recipientID, title, message, typeTag, relatedID, postID string) error {
	if recipientID == "" || title == "" || typeTag == "" {
		return ErrMissingFields
	}
	return repo.CreateNotification(ctx, s.DB, &domain.Notification{
		UserID:    recipientID,
		Title:     title,
		Message:   message,
		Type:      typeTag,
		RelatedID: relatedID,
		PostID:    postID,
	})
}

// List returns the account's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, id Identity, unreadOnly bool) ([]domain.Notification, error) {
	return repo.ListNotifications(ctx, s.DB, id.ID, unreadOnly)
}

// CountUnread returns the number of unread notifications.
func (s *NotificationService) CountUnread(ctx context.Context, id Identity) (int64, error) {
	return repo.CountUnreadNotifications(ctx, s.DB, id.ID)
}

// MarkRead marks one notification as read. Scoped to the acting account;
// other users' notifications surface as ErrNotificationNotFound.
func (s *NotificationService) MarkRead(ctx context.Context, id Identity, notificationID string) error {
	err := repo.MarkNotificationRead(ctx, s.DB, id.ID, notificationID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

// MarkAllRead marks every unread notification of the account as read and
// returns how many were affected.
func (s *NotificationService) MarkAllRead(ctx context.Context, id Identity) (int64, error) {
	return repo.MarkAllNotificationsRead(ctx, s.DB, id.ID)
}
