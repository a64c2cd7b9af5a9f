package domain

import "time"

// Repository represents a registered repository. A user cannot register the
// same name twice; the (user_id, name) pair is unique.
type Repository struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
