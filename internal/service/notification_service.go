package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
	"github.com/malekaidoudi/creche-sub003/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) error
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// NotificationService creates and delivers in-app notifications. Delivery
// goes through a background queue so callers never block on the write.
type NotificationService struct {
	repo    notificationRepository
	queue   *jobs.Queue
	logger  *zap.Logger
	enabled bool
}

// NewNotificationService constructs NotificationService. Start must be
// called before notifications are enqueued.
func NewNotificationService(repo notificationRepository, logger *zap.Logger, enabled bool) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, logger: logger, enabled: enabled}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers: 2,
		Logger:  logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyDecision queues a notification about an enrollment decision.
func (s *NotificationService) NotifyDecision(ctx context.Context, parentID string, enrollment *models.Enrollment, approved bool) {
	if !s.enabled {
		return
	}
	n := &models.Notification{
		UserID: parentID,
		Type:   models.NotificationEnrollmentRejected,
		Title:  "Enrollment update",
	}
	if approved {
		n.Type = models.NotificationEnrollmentApproved
		n.Body = fmt.Sprintf("The enrollment of %s %s has been approved.", enrollment.ChildFirstName, enrollment.ChildLastName)
	} else {
		n.Body = fmt.Sprintf("The enrollment of %s %s has been rejected.", enrollment.ChildFirstName, enrollment.ChildLastName)
		if enrollment.DecisionNotes != nil && *enrollment.DecisionNotes != "" {
			n.Body += " Reason: " + *enrollment.DecisionNotes
		}
	}
	if err := s.queue.Enqueue(jobs.Job{ID: enrollment.ID, Type: string(n.Type), Payload: n}); err != nil {
		s.logger.Warn("notification enqueue failed", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(*models.Notification)
	if !ok {
		s.logger.Error("invalid notification payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.Create(ctx, n)
}

// List returns a user's notifications with pagination.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return notifications, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// MarkRead stamps one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// UnreadCount returns the number of unread notifications for a user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	return count, nil
}
