package session

import (
	"context"

	"github.com/raphaelgruber/chatdesk-go/internal/db"
	"github.com/raphaelgruber/chatdesk-go/internal/models"
)

// DBStore adapts the SurrealDB client to the controller's Store interface.
type DBStore struct {
	client *db.Client
}

var _ Store = (*DBStore)(nil)

// NewDBStore wraps a connected database client.
func NewDBStore(client *db.Client) *DBStore {
	return &DBStore{client: client}
}

func (s *DBStore) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	return s.client.QueryListChats(ctx, userID)
}

func (s *DBStore) CreateChat(ctx context.Context, userID, title string) (*models.Chat, error) {
	return s.client.QueryCreateChat(ctx, userID, title)
}

func (s *DBStore) DeleteChat(ctx context.Context, chatID string) error {
	return s.client.QueryDeleteChat(ctx, chatID)
}

func (s *DBStore) UpdateChat(ctx context.Context, chatID string, title *string) (*models.Chat, error) {
	return s.client.QueryUpdateChat(ctx, chatID, title)
}

func (s *DBStore) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	return s.client.QueryListMessages(ctx, chatID)
}

func (s *DBStore) CreateMessage(ctx context.Context, chatID, role, content string) (*models.Message, error) {
	return s.client.QueryCreateMessage(ctx, chatID, role, content)
}

func (s *DBStore) DeleteMessages(ctx context.Context, chatID string) error {
	return s.client.QueryDeleteMessages(ctx, chatID)
}

func (s *DBStore) ListAttachments(ctx context.Context, messageIDs []string) ([]models.Attachment, error) {
	return s.client.QueryListAttachments(ctx, messageIDs)
}

func (s *DBStore) CreateAttachment(ctx context.Context, messageID, fileName, fileType, fileURL string) (*models.Attachment, error) {
	return s.client.QueryCreateAttachment(ctx, messageID, fileName, fileType, fileURL)
}
