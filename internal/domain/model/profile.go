package model

import "time"

// PlatformProfile links a user to an external coding-profile handle.
// One row per platform per user.
type PlatformProfile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Platform  string    `json:"platform"` // e.g. codeforces, leetcode
	Handle    string    `json:"handle"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
