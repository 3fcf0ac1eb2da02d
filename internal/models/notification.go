package models

import "time"

// NotificationType classifies a notification for client rendering.
type NotificationType string

const (
	NotificationEnrollmentApproved NotificationType = "ENROLLMENT_APPROVED"
	NotificationEnrollmentRejected NotificationType = "ENROLLMENT_REJECTED"
	NotificationGeneral            NotificationType = "GENERAL"
)

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body"`
	Type      NotificationType `db:"type" json:"type"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
