package domain

import "time"

// User owns alerts and receives trigger notifications.
type User struct {
	ID             uint
	TelegramUserID int64
	Username       string
	CreatedAt      time.Time
}
