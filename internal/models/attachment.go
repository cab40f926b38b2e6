package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Attachment represents a file artifact tied to a specific user message.
// The referenced object is already uploaded by the time the record exists.
type Attachment struct {
	ID        surrealmodels.RecordID `json:"id"`
	Message   surrealmodels.RecordID `json:"message"`
	FileName  string                 `json:"file_name"`
	FileType  string                 `json:"file_type"`
	FileURL   string                 `json:"file_url"`
	CreatedAt time.Time              `json:"created_at"`
}
