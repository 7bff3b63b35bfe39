package notifications

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Notification priorities.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Delivery states for the outbox.
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// Notification is a message for the bell UI. Rows are written in the same
// transaction as the action that produced them (outbox pattern) and delivered
// to the change feed by the background worker.
type Notification struct {
	ID              uuid.UUID      `json:"id"`
	Type            string         `json:"type"`
	Title           string         `json:"title"`
	Message         string         `json:"message"`
	Priority        string         `json:"priority"`
	IsRead          bool           `json:"is_read"`
	TargetUserEmail *string        `json:"target_user_email"`
	SenderEmail     string         `json:"sender_email"`
	Metadata        map[string]any `json:"metadata"`
	Delivery        string         `json:"delivery"`
	CreatedAt       time.Time      `json:"created_at"`
	ReadAt          *time.Time     `json:"read_at"`
}

// Broadcast reports whether the notification targets every user.
func (n Notification) Broadcast() bool {
	return n.TargetUserEmail == nil || *n.TargetUserEmail == ""
}

var (
	// ErrNotFound indicates a missing notification.
	ErrNotFound = errors.New("notifications: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("notifications: invalid input")
)
