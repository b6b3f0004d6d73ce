package models

import "time"

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotificationTypeRegistration NotificationType = "REGISTRATION"
	NotificationTypeApproval     NotificationType = "APPROVAL"
	NotificationTypeRejection    NotificationType = "REJECTION"
	NotificationTypeSystem       NotificationType = "SYSTEM"
)

// Notification is an in-app message delivered to a single user. Notifications
// are side effects of lifecycle transitions and never mutate lifecycle state.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Type      NotificationType `db:"type" json:"type"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter provides filters for listing notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
