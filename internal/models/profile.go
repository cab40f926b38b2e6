package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Profile represents a registered user account.
type Profile struct {
	ID           surrealmodels.RecordID `json:"id"`
	Email        string                 `json:"email"`
	PasswordHash string                 `json:"password_hash"`
	CreatedAt    time.Time              `json:"created_at"`
}
