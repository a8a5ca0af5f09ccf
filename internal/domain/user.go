// Package domain contains core domain types for the cosmic journey service.
package domain

import "time"

// User is the ancillary account record. It plays no part in the journey flow.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewUser carries the fields accepted when a user is created.
type NewUser struct {
	Username     string
	PasswordHash string
}
