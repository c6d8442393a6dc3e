package models

import "time"

// ProvisionedEntry represents a user's key on one host
type ProvisionedEntry struct {
	KeyID            int64
	UserID           int64
	HostName         string
	RemoteClientID   string
	Email            string
	ExpiresAt        time.Time
	ConnectionString string
	PlanID           int64
}

// IsActive reports whether the key has not expired at now
func (e *ProvisionedEntry) IsActive(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && e.ExpiresAt.After(now)
}

// User represents a subscriber as stored by the bot
type User struct {
	TelegramID        int64
	Username          string
	SubscriptionToken string
}
