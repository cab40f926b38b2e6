// Package db provides SurrealDB query functions for chat persistence.
package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/chatdesk-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// QueryListChats returns all chats owned by a user, most recently
// updated first.
func (c *Client) QueryListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	defer c.timeQuery()()

	results, err := surrealdb.Query[[]models.Chat](ctx, c.db, `
		SELECT * FROM chat WHERE user = type::record("profile", $user)
		ORDER BY updated_at DESC
	`, map[string]any{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Chat{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryCreateChat inserts a new chat for a user. Timestamps and the
// record ID are assigned by the database.
func (c *Client) QueryCreateChat(ctx context.Context, userID, title string) (*models.Chat, error) {
	defer c.timeQuery()()

	results, err := surrealdb.Query[[]models.Chat](ctx, c.db, `
		CREATE chat SET
			user = type::record("profile", $user),
			title = $title
		RETURN AFTER
	`, map[string]any{"user": userID, "title": title})
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create chat: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// QueryDeleteChat deletes a chat along with its messages and attachments.
// The cascade runs inside a single query so no orphans survive a partial
// failure.
func (c *Client) QueryDeleteChat(ctx context.Context, chatID string) error {
	defer c.timeQuery()()

	_, err := surrealdb.Query[any](ctx, c.db, `
		LET $c = type::record("chat", $id);
		DELETE attachment WHERE message.chat = $c;
		DELETE message WHERE chat = $c;
		DELETE $c;
	`, map[string]any{"id": chatID})
	if err != nil {
		return fmt.Errorf("delete chat: %w", wrapQueryError(err))
	}
	return nil
}

// QueryUpdateChat bumps a chat's updated timestamp and, if title is
// non-nil, replaces its title. Returns the updated chat.
func (c *Client) QueryUpdateChat(ctx context.Context, chatID string, title *string) (*models.Chat, error) {
	defer c.timeQuery()()

	sql := `
		UPDATE type::record("chat", $id) SET
			updated_at = time::now()
		RETURN AFTER
	`
	vars := map[string]any{"id": chatID}
	if title != nil {
		sql = `
			UPDATE type::record("chat", $id) SET
				title = $title,
				updated_at = time::now()
			RETURN AFTER
		`
		vars["title"] = *title
	}

	results, err := surrealdb.Query[[]models.Chat](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("update chat: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("update chat: %w", ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// QueryListMessages returns all messages of a chat in creation order.
func (c *Client) QueryListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	defer c.timeQuery()()

	results, err := surrealdb.Query[[]models.Message](ctx, c.db, `
		SELECT * FROM message WHERE chat = type::record("chat", $chat)
		ORDER BY created_at ASC
	`, map[string]any{"chat": chatID})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Message{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryCreateMessage inserts a message into a chat.
func (c *Client) QueryCreateMessage(ctx context.Context, chatID, role, content string) (*models.Message, error) {
	defer c.timeQuery()()

	results, err := surrealdb.Query[[]models.Message](ctx, c.db, `
		CREATE message SET
			chat = type::record("chat", $chat),
			role = $role,
			content = $content
		RETURN AFTER
	`, map[string]any{"chat": chatID, "role": role, "content": content})
	if err != nil {
		return nil, fmt.Errorf("create message: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create message: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// QueryDeleteMessages removes all messages of a chat together with
// their attachments. The chat record itself is untouched.
func (c *Client) QueryDeleteMessages(ctx context.Context, chatID string) error {
	defer c.timeQuery()()

	_, err := surrealdb.Query[any](ctx, c.db, `
		LET $c = type::record("chat", $id);
		DELETE attachment WHERE message.chat = $c;
		DELETE message WHERE chat = $c;
	`, map[string]any{"id": chatID})
	if err != nil {
		return fmt.Errorf("delete messages: %w", wrapQueryError(err))
	}
	return nil
}

// QueryListAttachments returns all attachments whose parent message is
// in messageIDs, in creation order.
func (c *Client) QueryListAttachments(ctx context.Context, messageIDs []string) ([]models.Attachment, error) {
	defer c.timeQuery()()

	if len(messageIDs) == 0 {
		return []models.Attachment{}, nil
	}

	ids := make([]surrealmodels.RecordID, 0, len(messageIDs))
	for _, id := range messageIDs {
		ids = append(ids, surrealmodels.NewRecordID("message", id))
	}

	results, err := surrealdb.Query[[]models.Attachment](ctx, c.db, `
		SELECT * FROM attachment WHERE message IN $ids
		ORDER BY created_at ASC
	`, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Attachment{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryCreateAttachment inserts an attachment record for a message.
func (c *Client) QueryCreateAttachment(ctx context.Context, messageID, fileName, fileType, fileURL string) (*models.Attachment, error) {
	defer c.timeQuery()()

	results, err := surrealdb.Query[[]models.Attachment](ctx, c.db, `
		CREATE attachment SET
			message = type::record("message", $message),
			file_name = $file_name,
			file_type = $file_type,
			file_url = $file_url
		RETURN AFTER
	`, map[string]any{
		"message":   messageID,
		"file_name": fileName,
		"file_type": fileType,
		"file_url":  fileURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create attachment: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create attachment: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// UserStats summarizes a user's stored data.
type UserStats struct {
	Chats       int `json:"chats"`
	Messages    int `json:"messages"`
	Attachments int `json:"attachments"`
}

type countRow struct {
	Count int `json:"count"`
}

// QueryUserStats counts a user's chats, messages and attachments.
func (c *Client) QueryUserStats(ctx context.Context, userID string) (*UserStats, error) {
	defer c.timeQuery()()

	count := func(sql string) (int, error) {
		results, err := surrealdb.Query[[]countRow](ctx, c.db, sql, map[string]any{"user": userID})
		if err != nil {
			return 0, wrapQueryError(err)
		}
		if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
			return 0, nil
		}
		return (*results)[0].Result[0].Count, nil
	}

	stats := &UserStats{}
	var err error

	if stats.Chats, err = count(`
		SELECT count() FROM chat
		WHERE user = type::record("profile", $user) GROUP ALL
	`); err != nil {
		return nil, fmt.Errorf("count chats: %w", err)
	}
	if stats.Messages, err = count(`
		SELECT count() FROM message
		WHERE chat.user = type::record("profile", $user) GROUP ALL
	`); err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	if stats.Attachments, err = count(`
		SELECT count() FROM attachment
		WHERE message.chat.user = type::record("profile", $user) GROUP ALL
	`); err != nil {
		return nil, fmt.Errorf("count attachments: %w", err)
	}

	return stats, nil
}

// QueryGetProfileByEmail retrieves a profile by email.
// Returns nil if not found.
func (c *Client) QueryGetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	defer c.timeQuery()()

	results, err := surrealdb.Query[[]models.Profile](ctx, c.db, `
		SELECT * FROM profile WHERE email = $email LIMIT 1
	`, map[string]any{"email": email})
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// QueryCreateProfile registers a new profile. Returns ErrAlreadyExists
// (wrapped) if the email is taken.
func (c *Client) QueryCreateProfile(ctx context.Context, email, passwordHash string) (*models.Profile, error) {
	defer c.timeQuery()()

	results, err := surrealdb.Query[[]models.Profile](ctx, c.db, `
		CREATE profile SET
			email = $email,
			password_hash = $hash
		RETURN AFTER
	`, map[string]any{"email": email, "hash": passwordHash})
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create profile: no result returned")
	}
	return &(*results)[0].Result[0], nil
}
