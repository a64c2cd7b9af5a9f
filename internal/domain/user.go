package domain

import "time"

// User represents an authenticated user.
type User struct {
	ID        int64     `json:"id" db:"id"`
	GitHubID  string    `json:"github_id" db:"github_id"`
	Login     string    `json:"login" db:"login"`
	Email     string    `json:"email" db:"email"`
	AvatarURL *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
