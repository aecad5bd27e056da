package notification

import "context"

// Repository reads and updates principal notifications.
type Repository interface {
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*Notification, error)
	// MarkRead returns ErrNotFound when id does not belong to recipientID.
	MarkRead(ctx context.Context, id, recipientID string) error
}

// Writer is the privileged insert capability for notifications.
type Writer interface {
	InsertNotification(ctx context.Context, n *Notification) error
}
