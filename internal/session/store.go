package session

import (
	"context"

	"github.com/raphaelgruber/chatdesk-go/internal/models"
)

// Store is the remote persistence surface the controller depends on.
// Record IDs and timestamps are assigned by the store on creation.
type Store interface {
	// ListChats returns a user's chats ordered by updated timestamp descending.
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)
	CreateChat(ctx context.Context, userID, title string) (*models.Chat, error)
	// DeleteChat removes a chat and cascades to its messages and attachments.
	DeleteChat(ctx context.Context, chatID string) error
	// UpdateChat bumps the updated timestamp and, if title is non-nil,
	// replaces the title. Returns the updated chat.
	UpdateChat(ctx context.Context, chatID string, title *string) (*models.Chat, error)

	// ListMessages returns a chat's messages ordered by created timestamp ascending.
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
	CreateMessage(ctx context.Context, chatID, role, content string) (*models.Message, error)
	// DeleteMessages removes all messages of a chat, cascading to attachments.
	DeleteMessages(ctx context.Context, chatID string) error

	ListAttachments(ctx context.Context, messageIDs []string) ([]models.Attachment, error)
	CreateAttachment(ctx context.Context, messageID, fileName, fileType, fileURL string) (*models.Attachment, error)
}

// FileStore is the object-storage surface for attachment uploads.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte) error
	// PublicURL resolves the stable retrieval URL for an uploaded object.
	PublicURL(key string) string
	// Delete removes an uploaded object once its attachment records are
	// gone.
	Delete(ctx context.Context, key string) error
	// Key maps a previously resolved public URL back to its object key,
	// or "" when the URL does not belong to this store.
	Key(fileURL string) string
}

// File is a staged upload: the bridge between user selection and the
// send workflow. It is never persisted directly.
type File struct {
	Name string
	Type string // MIME type
	Data []byte
}
