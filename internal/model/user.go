package model

import "time"

// User is keyed by the identity provider's stable subject id.
type User struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	ProfilePictureURL string    `json:"profilePictureUrl,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"` // last sign-in
}
