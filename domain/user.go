package domain

import "time"

// User is owned by the identity subsystem; the board core only ever needs
// the id and email projection.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserRef is the projection of a referenced user embedded in read responses.
type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
