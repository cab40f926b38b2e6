package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Message roles. The controller only ever writes these two values.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn within a chat, authored either by
// the user or the assistant.
type Message struct {
	ID        surrealmodels.RecordID `json:"id"`
	Chat      surrealmodels.RecordID `json:"chat"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	CreatedAt time.Time              `json:"created_at"`
}
