package models

import (
	"time"
)

// SubscriberStatus represents where a subscriber is in the double opt-in flow
type SubscriberStatus string

const (
	StatusPending      SubscriberStatus = "pending"
	StatusConfirmed    SubscriberStatus = "confirmed"
	StatusUnsubscribed SubscriberStatus = "unsubscribed"
)

// Valid reports whether s is one of the known statuses
func (s SubscriberStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusUnsubscribed:
		return true
	}
	return false
}

// Subscriber represents a newsletter subscriber
type Subscriber struct {
	ID             string           `json:"id" gorm:"primaryKey"`
	Email          string           `json:"email" gorm:"uniqueIndex;not null"`
	Status         SubscriberStatus `json:"status" gorm:"not null;default:'pending';index"`
	ConfirmedAt    *time.Time       `json:"confirmedAt" gorm:"column:confirmed_at"`
	UnsubscribedAt *time.Time       `json:"unsubscribedAt" gorm:"column:unsubscribed_at"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// TableName specifies the table name for Subscriber Model
func (Subscriber) TableName() string {
	return "subscribers"
}
