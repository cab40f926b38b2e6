// Package session implements the chat session controller: it owns the
// chat list, the active chat's messages and attachment index, and the
// loading/sending/typing flags, and sequences every workflow against
// the remote store, the object storage, and the reply generator.
//
// State is mutated only under the controller's mutex; asynchronous
// continuations (the deferred chat rename and the delayed assistant
// reply) re-check that their target chat is still active before
// touching local state, so a late completion cannot resurrect state
// for a chat the user has switched away from or deleted.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/chatdesk-go/internal/metrics"
	"github.com/raphaelgruber/chatdesk-go/internal/models"
	"github.com/raphaelgruber/chatdesk-go/internal/reply"
)

const (
	defaultChatTitle       = "New Chat"
	attachmentsPlaceholder = "Sent attachments"
	defaultReplyDelay      = 1500 * time.Millisecond
	titleMaxRunes          = 50
)

// ControllerConfig holds optional controller dependencies.
type ControllerConfig struct {
	Logger     *slog.Logger
	Delay      Delayer            // defaults to StdDelayer
	ReplyDelay time.Duration      // defaults to 1.5s; the "thinking" pause
	Collector  *metrics.Collector // optional
}

// Controller orchestrates chat, message and attachment state for a
// single signed-in user.
type Controller struct {
	store     Store
	files     FileStore
	delay     Delayer
	replyWait time.Duration
	logger    *slog.Logger
	collector *metrics.Collector

	mu           sync.Mutex
	userID       string
	chats        []models.Chat
	activeChatID string
	messages     []models.Message
	attachments  map[string][]models.Attachment
	loading      bool
	sending      bool
	typing       bool
	loadSeq      uint64

	wg sync.WaitGroup
}

// Snapshot is a read-only copy of the controller state for rendering.
type Snapshot struct {
	Chats        []models.Chat
	ActiveChatID string
	Messages     []models.Message
	// Attachments maps message id to that message's attachments; only
	// messages with at least one attachment have an entry.
	Attachments map[string][]models.Attachment
	Loading     bool
	Sending     bool
	Typing      bool
}

// NewController creates a session controller over the given store and
// file store.
func NewController(store Store, files FileStore, cfg ControllerConfig) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Delay == nil {
		cfg.Delay = StdDelayer{}
	}
	if cfg.ReplyDelay <= 0 {
		cfg.ReplyDelay = defaultReplyDelay
	}

	return &Controller{
		store:       store,
		files:       files,
		delay:       cfg.Delay,
		replyWait:   cfg.ReplyDelay,
		logger:      cfg.Logger,
		collector:   cfg.Collector,
		attachments: make(map[string][]models.Attachment),
	}
}

// Initialize loads the user's chats and activates the most recently
// updated one. A user with no chats gets one created, so an
// authenticated user always has an active chat.
func (c *Controller) Initialize(ctx context.Context, userID string) error {
	c.mu.Lock()
	c.userID = userID
	c.loading = true
	c.mu.Unlock()

	chats, err := c.store.ListChats(ctx, userID)
	if err != nil {
		c.logger.Error("failed to load chats", "user_id", userID, "error", err)
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.chats = chats
	c.loading = false
	active := c.activeChatID
	c.mu.Unlock()

	if len(chats) == 0 {
		return c.CreateChat(ctx)
	}
	if active == "" {
		return c.SelectChat(ctx, models.MustRecordIDString(chats[0].ID))
	}
	return nil
}

// SelectChat makes chatID the active chat and loads its messages and
// attachments. A slower load superseded by a newer selection is
// dropped rather than applied.
func (c *Controller) SelectChat(ctx context.Context, chatID string) error {
	c.mu.Lock()
	c.activeChatID = chatID
	c.loadSeq++
	seq := c.loadSeq
	c.loading = true
	c.mu.Unlock()

	return c.loadMessages(ctx, chatID, seq)
}

// loadMessages fetches messages and their attachments for chatID.
// On fetch failure the prior message list is left untouched; only the
// loading flag is cleared. seq identifies this load so stale results
// for a superseded selection are discarded.
func (c *Controller) loadMessages(ctx context.Context, chatID string, seq uint64) error {
	messages, err := c.store.ListMessages(ctx, chatID)
	if err != nil {
		c.logger.Error("failed to load messages", "chat_id", chatID, "error", err)
		c.mu.Lock()
		if seq == c.loadSeq {
			c.loading = false
		}
		c.mu.Unlock()
		return err
	}

	var grouped map[string][]models.Attachment
	if len(messages) > 0 {
		ids := make([]string, 0, len(messages))
		for _, m := range messages {
			ids = append(ids, models.MustRecordIDString(m.ID))
		}

		attachments, err := c.store.ListAttachments(ctx, ids)
		if err != nil {
			// Keep the prior attachment index; the messages still render.
			c.logger.Error("failed to load attachments", "chat_id", chatID, "error", err)
		} else {
			grouped = make(map[string][]models.Attachment)
			for _, att := range attachments {
				msgID := models.MustRecordIDString(att.Message)
				grouped[msgID] = append(grouped[msgID], att)
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.loadSeq || c.activeChatID != chatID {
		// A newer selection won; drop this result.
		return nil
	}

	c.messages = messages
	if grouped != nil {
		c.attachments = grouped
	}
	c.loading = false
	return nil
}

// CreateChat inserts a new chat for the current user, makes it active,
// and resets the message view to a clean slate.
func (c *Controller) CreateChat(ctx context.Context) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	chat, err := c.store.CreateChat(ctx, userID, defaultChatTitle)
	if err != nil {
		c.logger.Error("failed to create chat", "user_id", userID, "error", err)
		return err
	}

	c.mu.Lock()
	c.chats = append([]models.Chat{*chat}, c.chats...)
	c.activeChatID = models.MustRecordIDString(chat.ID)
	c.loadSeq++ // invalidate any in-flight load
	c.messages = []models.Message{}
	c.attachments = make(map[string][]models.Attachment)
	c.loading = false
	c.mu.Unlock()

	return nil
}

// DeleteChat removes a chat. If it was active, the next most recently
// updated chat becomes active; deleting the last chat creates a fresh
// one so the user is never left without an active chat. Uploaded
// objects of the loaded attachment index are removed best effort.
func (c *Controller) DeleteChat(ctx context.Context, chatID string) error {
	if err := c.store.DeleteChat(ctx, chatID); err != nil {
		c.logger.Error("failed to delete chat", "chat_id", chatID, "error", err)
		return err
	}

	c.mu.Lock()
	remaining := c.chats[:0]
	for _, chat := range c.chats {
		if models.MustRecordIDString(chat.ID) != chatID {
			remaining = append(remaining, chat)
		}
	}
	c.chats = remaining

	wasActive := c.activeChatID == chatID
	next := ""
	var orphaned map[string][]models.Attachment
	if wasActive {
		orphaned = c.attachments
		c.attachments = make(map[string][]models.Attachment)
		if len(c.chats) > 0 {
			next = models.MustRecordIDString(c.chats[0].ID)
		}
	}
	c.mu.Unlock()

	if !wasActive {
		return nil
	}
	c.removeStoredObjects(ctx, orphaned)
	if next != "" {
		return c.SelectChat(ctx, next)
	}
	return c.CreateChat(ctx)
}

// ClearActiveChat deletes all messages of the active chat, keeping the
// chat and its title. No-op when no chat is active; calling it again
// on an already-empty chat succeeds with the same empty state.
func (c *Controller) ClearActiveChat(ctx context.Context) error {
	c.mu.Lock()
	chatID := c.activeChatID
	c.mu.Unlock()

	if chatID == "" {
		return nil
	}

	if err := c.store.DeleteMessages(ctx, chatID); err != nil {
		c.logger.Error("failed to clear chat", "chat_id", chatID, "error", err)
		return err
	}

	c.mu.Lock()
	var orphaned map[string][]models.Attachment
	if c.activeChatID == chatID {
		orphaned = c.attachments
		c.messages = []models.Message{}
		c.attachments = make(map[string][]models.Attachment)
	}
	c.mu.Unlock()

	c.removeStoredObjects(ctx, orphaned)
	return nil
}

// removeStoredObjects deletes the uploaded objects behind an attachment
// index. Best effort: the records are already gone, a failed delete
// only leaves an unreferenced object in the bucket.
func (c *Controller) removeStoredObjects(ctx context.Context, index map[string][]models.Attachment) {
	for _, atts := range index {
		for _, att := range atts {
			key := c.files.Key(att.FileURL)
			if key == "" {
				continue
			}
			if err := c.files.Delete(ctx, key); err != nil {
				c.logger.Warn("failed to remove stored object", "key", key, "error", err)
			}
		}
	}
}

// SendMessage runs the central workflow: persist the user message,
// derive the chat title on a first message, upload files sequentially,
// then deliver the delayed assistant reply. A failed user-message
// insert aborts everything after it; a failed upload skips only that
// file.
func (c *Controller) SendMessage(ctx context.Context, content string, files []File) error {
	c.mu.Lock()
	chatID := c.activeChatID
	userID := c.userID
	preCount := len(c.messages)
	if chatID == "" || (content == "" && len(files) == 0) {
		c.mu.Unlock()
		return nil
	}
	c.sending = true
	c.mu.Unlock()

	msgContent := content
	if msgContent == "" {
		msgContent = attachmentsPlaceholder
	}

	userMsg, err := c.store.CreateMessage(ctx, chatID, models.RoleUser, msgContent)
	if err != nil {
		c.logger.Error("failed to send message", "chat_id", chatID, "error", err)
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.activeChatID == chatID {
		c.messages = append(c.messages, *userMsg)
	}
	c.mu.Unlock()

	if preCount == 0 {
		// First message names the chat; this may race with the steps
		// below but never blocks them.
		renameCtx := context.WithoutCancel(ctx)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.renameChatFromFirstMessage(renameCtx, chatID, msgContent)
		}()
	}

	if len(files) > 0 {
		userMsgID := models.MustRecordIDString(userMsg.ID)
		var uploaded []models.Attachment
		for _, f := range files {
			att, err := c.uploadAttachment(ctx, userID, userMsgID, f)
			if err != nil {
				c.logger.Error("failed to upload attachment", "file", f.Name, "error", err)
				continue
			}
			uploaded = append(uploaded, *att)
		}
		if len(uploaded) > 0 {
			c.mu.Lock()
			c.attachments[userMsgID] = uploaded
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	c.typing = true
	c.mu.Unlock()

	// The reply outlives the caller's context: navigating away does not
	// cancel it, the continuation just revalidates the target chat.
	replyCtx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.deliverReply(replyCtx, chatID, content, files)
	}()

	return nil
}

// renameChatFromFirstMessage derives a title from the first message and
// persists it. The chat entry is updated in place; its position in the
// list is corrected on the next full reload.
func (c *Controller) renameChatFromFirstMessage(ctx context.Context, chatID, text string) {
	title := deriveTitle(text)

	updated, err := c.store.UpdateChat(ctx, chatID, &title)
	if err != nil {
		c.logger.Error("failed to rename chat", "chat_id", chatID, "error", err)
		return
	}

	c.mu.Lock()
	for i := range c.chats {
		if models.MustRecordIDString(c.chats[i].ID) == chatID {
			c.chats[i].Title = updated.Title
			c.chats[i].UpdatedAt = updated.UpdatedAt
			break
		}
	}
	c.mu.Unlock()
}

// uploadAttachment uploads one file under a per-user collision-resistant
// key, resolves its public URL and records the attachment.
func (c *Controller) uploadAttachment(ctx context.Context, userID, messageID string, f File) (*models.Attachment, error) {
	key := objectKey(userID, f.Name)

	start := time.Now()
	if err := c.files.Upload(ctx, key, f.Data); err != nil {
		c.collector.RecordFailure(metrics.OpFileUpload)
		return nil, fmt.Errorf("upload %s: %w", f.Name, err)
	}
	c.collector.RecordTiming(metrics.OpFileUpload, time.Since(start))

	url := c.files.PublicURL(key)

	att, err := c.store.CreateAttachment(ctx, messageID, f.Name, f.Type, url)
	if err != nil {
		return nil, fmt.Errorf("record attachment %s: %w", f.Name, err)
	}
	return att, nil
}

// deliverReply waits out the thinking delay, persists the assistant
// reply and bumps the chat's updated timestamp. The typing and sending
// flags are cleared unconditionally: a failed write must never leave
// the view stuck in a typing state.
func (c *Controller) deliverReply(ctx context.Context, chatID, content string, files []File) {
	defer func() {
		c.mu.Lock()
		c.typing = false
		c.sending = false
		c.mu.Unlock()
	}()

	if err := c.delay.Sleep(ctx, c.replyWait); err != nil {
		c.logger.Warn("reply delay interrupted", "chat_id", chatID, "error", err)
	}

	descriptors := make([]reply.File, 0, len(files))
	for _, f := range files {
		descriptors = append(descriptors, reply.File{Name: f.Name, Type: f.Type})
	}

	start := time.Now()
	text := reply.Generate(content, descriptors)
	c.collector.RecordTiming(metrics.OpReply, time.Since(start))

	msg, err := c.store.CreateMessage(ctx, chatID, models.RoleAssistant, text)
	if err != nil {
		c.logger.Error("failed to send assistant message", "chat_id", chatID, "error", err)
	} else {
		c.mu.Lock()
		if c.activeChatID == chatID {
			c.messages = append(c.messages, *msg)
		}
		c.mu.Unlock()
	}

	if _, err := c.store.UpdateChat(ctx, chatID, nil); err != nil {
		c.logger.Error("failed to bump chat timestamp", "chat_id", chatID, "error", err)
	}
}

// Snapshot returns a copy of the current state for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	chats := make([]models.Chat, len(c.chats))
	copy(chats, c.chats)

	messages := make([]models.Message, len(c.messages))
	copy(messages, c.messages)

	attachments := make(map[string][]models.Attachment, len(c.attachments))
	for id, atts := range c.attachments {
		cp := make([]models.Attachment, len(atts))
		copy(cp, atts)
		attachments[id] = cp
	}

	return Snapshot{
		Chats:        chats,
		ActiveChatID: c.activeChatID,
		Messages:     messages,
		Attachments:  attachments,
		Loading:      c.loading,
		Sending:      c.sending,
		Typing:       c.typing,
	}
}

// Wait blocks until all in-flight async continuations (renames,
// delayed replies) have finished. Call before shutdown.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// deriveTitle truncates a first message to the title length, marking
// truncation with an ellipsis.
func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxRunes {
		return text
	}
	return string(runes[:titleMaxRunes]) + "..."
}

// objectKey builds a per-user upload path from a timestamp and a random
// suffix, preserving the original file extension.
func objectKey(userID, fileName string) string {
	ext := path.Ext(fileName)
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s/%d_%s%s", userID, time.Now().UnixMilli(), suffix, ext)
}
