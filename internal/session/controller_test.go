package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/chatdesk-go/internal/models"
	"github.com/raphaelgruber/chatdesk-go/internal/reply"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// memStore is an in-memory Store with a deterministic advancing clock,
// so created/updated timestamps order exactly like insertion order.
type memStore struct {
	mu          sync.Mutex
	clock       time.Time
	chats       []models.Chat
	messages    []models.Message
	attachments []models.Attachment

	failListChats              bool
	failListMessages           bool
	failListAttachments        bool
	failCreateUserMessage      bool
	failCreateAssistantMessage bool
	failDeleteChat             bool
	failDeleteMessages         bool

	// listMessagesGate, when set for a chat id, blocks ListMessages for
	// that chat until the channel is closed. Used to simulate a slow load.
	listMessagesGate map[string]chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		clock:            time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		listMessagesGate: make(map[string]chan struct{}),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *memStore) ListChats(_ context.Context, userID string) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failListChats {
		return nil, errors.New("store unavailable")
	}

	var chats []models.Chat
	for _, chat := range s.chats {
		if models.MustRecordIDString(chat.User) == userID {
			chats = append(chats, chat)
		}
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

func (s *memStore) CreateChat(_ context.Context, userID, title string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	chat := models.Chat{
		ID:        surrealmodels.NewRecordID("chat", uuid.NewString()),
		User:      surrealmodels.NewRecordID("profile", userID),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.chats = append(s.chats, chat)
	return &chat, nil
}

func (s *memStore) DeleteChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failDeleteChat {
		return errors.New("store unavailable")
	}

	kept := s.chats[:0]
	for _, chat := range s.chats {
		if models.MustRecordIDString(chat.ID) != chatID {
			kept = append(kept, chat)
		}
	}
	s.chats = kept
	s.cascadeDeleteMessages(chatID)
	return nil
}

func (s *memStore) UpdateChat(_ context.Context, chatID string, title *string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.chats {
		if models.MustRecordIDString(s.chats[i].ID) == chatID {
			if title != nil {
				s.chats[i].Title = *title
			}
			s.chats[i].UpdatedAt = s.tick()
			chat := s.chats[i]
			return &chat, nil
		}
	}
	return nil, errors.New("chat not found")
}

func (s *memStore) ListMessages(_ context.Context, chatID string) ([]models.Message, error) {
	s.mu.Lock()
	gate := s.listMessagesGate[chatID]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failListMessages {
		return nil, errors.New("store unavailable")
	}

	var messages []models.Message
	for _, msg := range s.messages {
		if models.MustRecordIDString(msg.Chat) == chatID {
			messages = append(messages, msg)
		}
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (s *memStore) CreateMessage(_ context.Context, chatID, role, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role == models.RoleUser && s.failCreateUserMessage {
		return nil, errors.New("store unavailable")
	}
	if role == models.RoleAssistant && s.failCreateAssistantMessage {
		return nil, errors.New("store unavailable")
	}

	msg := models.Message{
		ID:        surrealmodels.NewRecordID("message", uuid.NewString()),
		Chat:      surrealmodels.NewRecordID("chat", chatID),
		Role:      role,
		Content:   content,
		CreatedAt: s.tick(),
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *memStore) DeleteMessages(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failDeleteMessages {
		return errors.New("store unavailable")
	}
	s.cascadeDeleteMessages(chatID)
	return nil
}

// cascadeDeleteMessages removes a chat's messages and their attachments.
// Caller must hold the lock.
func (s *memStore) cascadeDeleteMessages(chatID string) {
	doomed := make(map[string]bool)
	keptMsgs := s.messages[:0]
	for _, msg := range s.messages {
		if models.MustRecordIDString(msg.Chat) == chatID {
			doomed[models.MustRecordIDString(msg.ID)] = true
			continue
		}
		keptMsgs = append(keptMsgs, msg)
	}
	s.messages = keptMsgs

	keptAtts := s.attachments[:0]
	for _, att := range s.attachments {
		if !doomed[models.MustRecordIDString(att.Message)] {
			keptAtts = append(keptAtts, att)
		}
	}
	s.attachments = keptAtts
}

func (s *memStore) ListAttachments(_ context.Context, messageIDs []string) ([]models.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failListAttachments {
		return nil, errors.New("store unavailable")
	}

	wanted := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}

	var attachments []models.Attachment
	for _, att := range s.attachments {
		if wanted[models.MustRecordIDString(att.Message)] {
			attachments = append(attachments, att)
		}
	}
	sort.SliceStable(attachments, func(i, j int) bool {
		return attachments[i].CreatedAt.Before(attachments[j].CreatedAt)
	})
	return attachments, nil
}

func (s *memStore) CreateAttachment(_ context.Context, messageID, fileName, fileType, fileURL string) (*models.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	att := models.Attachment{
		ID:        surrealmodels.NewRecordID("attachment", uuid.NewString()),
		Message:   surrealmodels.NewRecordID("message", messageID),
		FileName:  fileName,
		FileType:  fileType,
		FileURL:   fileURL,
		CreatedAt: s.tick(),
	}
	s.attachments = append(s.attachments, att)
	return &att, nil
}

func (s *memStore) chatByID(chatID string) *models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.chats {
		if models.MustRecordIDString(s.chats[i].ID) == chatID {
			chat := s.chats[i]
			return &chat
		}
	}
	return nil
}

// memFiles is an in-memory FileStore. failRemaining fails that many
// uploads before succeeding, counted in call order.
type memFiles struct {
	mu            sync.Mutex
	objects       map[string][]byte
	failRemaining int
}

func newMemFiles() *memFiles {
	return &memFiles{objects: make(map[string][]byte)}
}

func (f *memFiles) Upload(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failRemaining > 0 {
		f.failRemaining--
		return errors.New("bucket unavailable")
	}
	f.objects[key] = data
	return nil
}

func (f *memFiles) PublicURL(key string) string {
	return "https://files.test/" + key
}

func (f *memFiles) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *memFiles) Key(fileURL string) string {
	key, ok := strings.CutPrefix(fileURL, "https://files.test/")
	if !ok {
		return ""
	}
	return key
}

func (f *memFiles) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// zeroDelay makes the reply step run without waiting.
type zeroDelay struct{}

func (zeroDelay) Sleep(context.Context, time.Duration) error { return nil }

func newTestController(store *memStore, files *memFiles) *Controller {
	return NewController(store, files, ControllerConfig{
		Delay: zeroDelay{},
	})
}

const testUserID = "user-1"

func initialized(t *testing.T, store *memStore, files *memFiles) *Controller {
	t.Helper()
	c := newTestController(store, files)
	if err := c.Initialize(context.Background(), testUserID); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return c
}

// =============================================================================
// INITIALIZE / SELECT
// =============================================================================

func TestInitializeCreatesChatWhenNoneExist(t *testing.T) {
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	snap := c.Snapshot()
	if len(snap.Chats) != 1 {
		t.Fatalf("expected 1 auto-created chat, got %d", len(snap.Chats))
	}
	if snap.Chats[0].Title != "New Chat" {
		t.Errorf("expected title 'New Chat', got %q", snap.Chats[0].Title)
	}
	if snap.ActiveChatID == "" {
		t.Errorf("expected an active chat")
	}
	if len(snap.Messages) != 0 {
		t.Errorf("expected clean slate, got %d messages", len(snap.Messages))
	}
	if snap.Loading {
		t.Errorf("loading flag must be cleared after initialize")
	}
}

func TestInitializeActivatesMostRecentChat(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	older, _ := store.CreateChat(ctx, testUserID, "older")
	newer, _ := store.CreateChat(ctx, testUserID, "newer")
	newerID := models.MustRecordIDString(newer.ID)
	if _, err := store.CreateMessage(ctx, newerID, models.RoleUser, "latest thoughts"); err != nil {
		t.Fatalf("seed message failed: %v", err)
	}
	// Other users' chats must not leak in.
	foreign, _ := store.CreateChat(ctx, "someone-else", "not mine")
	_ = older
	_ = foreign

	c := initialized(t, store, newMemFiles())

	snap := c.Snapshot()
	if len(snap.Chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(snap.Chats))
	}
	if snap.ActiveChatID != newerID {
		t.Errorf("expected most recently updated chat active, got %q", snap.ActiveChatID)
	}
	if len(snap.Messages) != 1 || snap.Messages[0].Content != "latest thoughts" {
		t.Errorf("expected messages of the active chat, got %+v", snap.Messages)
	}
}

func TestInitializeFailureClearsLoading(t *testing.T) {
	store := newMemStore()
	store.failListChats = true

	c := newTestController(store, newMemFiles())
	if err := c.Initialize(context.Background(), testUserID); err == nil {
		t.Fatalf("expected error from failing store")
	}

	snap := c.Snapshot()
	if snap.Loading {
		t.Errorf("loading flag must be cleared on failure")
	}
	if len(snap.Chats) != 0 || snap.ActiveChatID != "" {
		t.Errorf("state must stay untouched on failure, got %+v", snap)
	}
}

func TestSelectChatLoadFailureKeepsPriorMessages(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	if err := c.SendMessage(ctx, "hello", nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()
	before := c.Snapshot()

	other, _ := store.CreateChat(ctx, testUserID, "other")
	store.failListMessages = true
	if err := c.SelectChat(ctx, models.MustRecordIDString(other.ID)); err == nil {
		t.Fatalf("expected error from failing store")
	}

	snap := c.Snapshot()
	if snap.Loading {
		t.Errorf("loading flag must be cleared on failure")
	}
	if len(snap.Messages) != len(before.Messages) {
		t.Errorf("message list must stay untouched on failed load: %d != %d",
			len(snap.Messages), len(before.Messages))
	}
}

func TestStaleLoadIsDropped(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	slow, _ := store.CreateChat(ctx, testUserID, "slow")
	slowID := models.MustRecordIDString(slow.ID)
	if _, err := store.CreateMessage(ctx, slowID, models.RoleUser, "from the slow chat"); err != nil {
		t.Fatalf("seed message failed: %v", err)
	}
	fast, _ := store.CreateChat(ctx, testUserID, "fast")
	fastID := models.MustRecordIDString(fast.ID)
	if _, err := store.CreateMessage(ctx, fastID, models.RoleUser, "from the fast chat"); err != nil {
		t.Fatalf("seed message failed: %v", err)
	}

	c := newTestController(store, newMemFiles())
	c.mu.Lock()
	c.userID = testUserID
	c.mu.Unlock()

	gate := make(chan struct{})
	store.mu.Lock()
	store.listMessagesGate[slowID] = gate
	store.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.SelectChat(ctx, slowID) }()

	// Switch to the fast chat while the slow load is stuck.
	time.Sleep(10 * time.Millisecond)
	if err := c.SelectChat(ctx, fastID); err != nil {
		t.Fatalf("SelectChat failed: %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("slow SelectChat failed: %v", err)
	}

	snap := c.Snapshot()
	if snap.ActiveChatID != fastID {
		t.Fatalf("expected fast chat active, got %q", snap.ActiveChatID)
	}
	if len(snap.Messages) != 1 || snap.Messages[0].Content != "from the fast chat" {
		t.Errorf("stale load result must not overwrite newer selection, got %+v", snap.Messages)
	}
}

// =============================================================================
// CREATE / DELETE / CLEAR
// =============================================================================

func TestCreateChatResetsView(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	if err := c.SendMessage(ctx, "hello", nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	if err := c.CreateChat(ctx); err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(snap.Chats))
	}
	if snap.ActiveChatID != models.MustRecordIDString(snap.Chats[0].ID) {
		t.Errorf("new chat must be prepended and active")
	}
	if len(snap.Messages) != 0 || len(snap.Attachments) != 0 {
		t.Errorf("new chat must start with a clean slate, got %d messages", len(snap.Messages))
	}
}

func TestDeleteActiveChatActivatesNext(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	first := c.Snapshot().ActiveChatID
	if err := c.SendMessage(ctx, "keep this history", nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	if err := c.CreateChat(ctx); err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	second := c.Snapshot().ActiveChatID

	if err := c.DeleteChat(ctx, second); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Chats) != 1 {
		t.Fatalf("expected 1 chat left, got %d", len(snap.Chats))
	}
	if snap.ActiveChatID != first {
		t.Errorf("expected remaining chat active, got %q", snap.ActiveChatID)
	}
	if len(snap.Messages) != 2 {
		t.Errorf("expected remaining chat's messages loaded, got %d", len(snap.Messages))
	}
}

func TestDeleteLastChatCreatesReplacement(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	only := c.Snapshot().ActiveChatID
	if err := c.DeleteChat(ctx, only); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Chats) != 1 {
		t.Fatalf("expected exactly one chat after deleting the last, got %d", len(snap.Chats))
	}
	if snap.ActiveChatID == only {
		t.Errorf("replacement chat must be a new one")
	}
	if snap.ActiveChatID == "" {
		t.Errorf("user must never be left without an active chat")
	}
}

func TestDeleteInactiveChatKeepsView(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	first := c.Snapshot().ActiveChatID
	if err := c.CreateChat(ctx); err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	active := c.Snapshot().ActiveChatID

	if err := c.DeleteChat(ctx, first); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}

	snap := c.Snapshot()
	if snap.ActiveChatID != active {
		t.Errorf("deleting an inactive chat must not change the active chat")
	}
}

func TestDeleteChatStoreFailureKeepsChat(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	active := c.Snapshot().ActiveChatID
	store.failDeleteChat = true

	if err := c.DeleteChat(ctx, active); err == nil {
		t.Fatalf("expected error from failing store")
	}

	snap := c.Snapshot()
	if len(snap.Chats) != 1 || snap.ActiveChatID != active {
		t.Errorf("failed delete must leave the chat list untouched, got %+v", snap.Chats)
	}
}

func TestClearActiveChatIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	if err := c.SendMessage(ctx, "hello", []File{{Name: "cat.png", Type: "image/png", Data: []byte("png")}}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	titleBefore := c.Snapshot().Chats[0].Title

	for i := 0; i < 2; i++ {
		if err := c.ClearActiveChat(ctx); err != nil {
			t.Fatalf("ClearActiveChat call %d failed: %v", i+1, err)
		}
		snap := c.Snapshot()
		if len(snap.Messages) != 0 || len(snap.Attachments) != 0 {
			t.Errorf("call %d: expected empty state, got %d messages", i+1, len(snap.Messages))
		}
	}

	snap := c.Snapshot()
	if len(snap.Chats) != 1 || snap.Chats[0].Title != titleBefore {
		t.Errorf("clearing must keep the chat and its title, got %+v", snap.Chats)
	}
}

func TestClearActiveChatRemovesStoredObjects(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	files := newMemFiles()
	c := initialized(t, store, files)

	if err := c.SendMessage(ctx, "", []File{{Name: "cat.png", Type: "image/png", Data: []byte("png")}}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	if files.objectCount() != 1 {
		t.Fatalf("expected 1 stored object before clearing, got %d", files.objectCount())
	}

	if err := c.ClearActiveChat(ctx); err != nil {
		t.Fatalf("ClearActiveChat failed: %v", err)
	}
	if files.objectCount() != 0 {
		t.Errorf("clearing a chat must remove its uploaded objects, %d left", files.objectCount())
	}
}

func TestDeleteActiveChatRemovesStoredObjects(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	files := newMemFiles()
	c := initialized(t, store, files)

	if err := c.SendMessage(ctx, "take this", []File{{Name: "report.pdf", Type: "application/pdf", Data: []byte("%PDF")}}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	active := c.Snapshot().ActiveChatID
	if err := c.DeleteChat(ctx, active); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}
	if files.objectCount() != 0 {
		t.Errorf("deleting a chat must remove its uploaded objects, %d left", files.objectCount())
	}
}

func TestClearWithNoActiveChatIsNoOp(t *testing.T) {
	c := newTestController(newMemStore(), newMemFiles())
	if err := c.ClearActiveChat(context.Background()); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

// =============================================================================
// SEND WORKFLOW
// =============================================================================

func TestSendMessageAppendsUserAndAssistantTurns(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	if err := c.SendMessage(ctx, "hello", nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	snap := c.Snapshot()
	if len(snap.Messages) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(snap.Messages))
	}
	if snap.Messages[0].Role != models.RoleUser || snap.Messages[0].Content != "hello" {
		t.Errorf("unexpected user message: %+v", snap.Messages[0])
	}
	want := reply.Generate("hello", nil)
	if snap.Messages[1].Role != models.RoleAssistant || snap.Messages[1].Content != want {
		t.Errorf("unexpected assistant message: %+v", snap.Messages[1])
	}
	if snap.Sending || snap.Typing {
		t.Errorf("sending/typing flags must be cleared, got sending=%v typing=%v", snap.Sending, snap.Typing)
	}
}

func TestFirstMessageRenamesChat(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	if err := c.SendMessage(ctx, "What is the weather like today?", nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	snap := c.Snapshot()
	if snap.Chats[0].Title != "What is the weather like today?" {
		t.Errorf("expected chat titled after first message, got %q", snap.Chats[0].Title)
	}

	// A second message must not rename again.
	if err := c.SendMessage(ctx, "and tomorrow?", nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	if got := c.Snapshot().Chats[0].Title; got != "What is the weather like today?" {
		t.Errorf("second message must not rename the chat, got %q", got)
	}
}

func TestSendMessageWithoutActiveChatIsNoOp(t *testing.T) {
	store := newMemStore()
	c := newTestController(store, newMemFiles())

	if err := c.SendMessage(context.Background(), "hello", nil); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	c.Wait()

	if len(store.messages) != 0 {
		t.Errorf("no message must be written without an active chat")
	}
}

func TestSendEmptyMessageWithoutFilesIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	if err := c.SendMessage(ctx, "", nil); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	c.Wait()

	if len(c.Snapshot().Messages) != 0 {
		t.Errorf("empty send must not create messages")
	}
}

func TestSendFilesOnlyUsesPlaceholderContent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	files := newMemFiles()
	c := initialized(t, store, files)

	err := c.SendMessage(ctx, "", []File{{Name: "scan.pdf", Type: "application/pdf", Data: []byte("%PDF")}})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	snap := c.Snapshot()
	if snap.Messages[0].Content != "Sent attachments" {
		t.Errorf("expected placeholder content, got %q", snap.Messages[0].Content)
	}
	if snap.Chats[0].Title != "Sent attachments" {
		t.Errorf("title must derive from the placeholder, got %q", snap.Chats[0].Title)
	}
	if strings.Contains(snap.Messages[1].Content, "Regarding your message") {
		t.Errorf("reply must not echo an empty message, got %q", snap.Messages[1].Content)
	}
}

func TestSendMessageInsertFailureAbortsWorkflow(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	files := newMemFiles()
	c := initialized(t, store, files)

	store.failCreateUserMessage = true
	err := c.SendMessage(ctx, "hello", []File{{Name: "cat.png", Type: "image/png", Data: []byte("png")}})
	if err == nil {
		t.Fatalf("expected error from failing store")
	}
	c.Wait()

	snap := c.Snapshot()
	if snap.Sending || snap.Typing {
		t.Errorf("flags must be cleared after aborted send")
	}
	if len(snap.Messages) != 0 {
		t.Errorf("no message must be appended, got %d", len(snap.Messages))
	}
	if len(files.objects) != 0 {
		t.Errorf("no file must be uploaded for a message that was never stored")
	}
	if len(store.messages) != 0 {
		t.Errorf("no assistant reply must be attempted, got %d stored messages", len(store.messages))
	}
}

func TestUploadFailureSkipsOnlyThatFile(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	files := newMemFiles()
	files.failRemaining = 1
	c := initialized(t, store, files)

	err := c.SendMessage(ctx, "check this out", []File{
		{Name: "broken.pdf", Type: "application/pdf", Data: []byte("%PDF")},
		{Name: "fine.png", Type: "image/png", Data: []byte("png")},
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	snap := c.Snapshot()
	userMsgID := models.MustRecordIDString(snap.Messages[0].ID)
	atts := snap.Attachments[userMsgID]
	if len(atts) != 1 {
		t.Fatalf("expected 1 surviving attachment, got %d", len(atts))
	}
	if atts[0].FileName != "fine.png" {
		t.Errorf("expected the later file to survive, got %q", atts[0].FileName)
	}
	// Reply still happens and still sees both descriptors.
	if len(snap.Messages) != 2 {
		t.Fatalf("expected assistant reply despite upload failure, got %d messages", len(snap.Messages))
	}
	if !strings.Contains(snap.Messages[1].Content, "PDF and image") {
		t.Errorf("reply must classify the original file list, got %q", snap.Messages[1].Content)
	}
}

func TestAttachmentsPreserveInputOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	err := c.SendMessage(ctx, "two files", []File{
		{Name: "first.png", Type: "image/png", Data: []byte("a")},
		{Name: "second.pdf", Type: "application/pdf", Data: []byte("b")},
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	snap := c.Snapshot()
	userMsgID := models.MustRecordIDString(snap.Messages[0].ID)
	atts := snap.Attachments[userMsgID]
	if len(atts) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(atts))
	}
	if atts[0].FileName != "first.png" || atts[1].FileName != "second.pdf" {
		t.Errorf("attachments must preserve input order, got %q then %q", atts[0].FileName, atts[1].FileName)
	}
}

func TestReplyInsertFailureStillClearsFlags(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	store.failCreateAssistantMessage = true
	if err := c.SendMessage(ctx, "hello", nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	snap := c.Snapshot()
	if snap.Sending || snap.Typing {
		t.Errorf("flags must recover even when the reply write fails")
	}
	if len(snap.Messages) != 1 {
		t.Errorf("only the user message must be present, got %d", len(snap.Messages))
	}
}

func TestReplyLandsInStoreAfterChatSwitch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	origin := c.Snapshot().ActiveChatID
	if err := c.SendMessage(ctx, "hello", nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	// Switch away before the reply is delivered.
	if err := c.CreateChat(ctx); err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	c.Wait()

	// The reply must not leak into the newly active chat's view...
	snap := c.Snapshot()
	if len(snap.Messages) != 0 {
		t.Errorf("reply for a background chat must not appear in the active view, got %+v", snap.Messages)
	}

	// ...but it is persisted; reloading the origin chat shows it.
	if err := c.SelectChat(ctx, origin); err != nil {
		t.Fatalf("SelectChat failed: %v", err)
	}
	snap = c.Snapshot()
	if len(snap.Messages) != 2 {
		t.Errorf("expected persisted user + assistant turns, got %d", len(snap.Messages))
	}
}

// TestSendReloadRoundTrip sends a message with one file and reloads the
// chat; content and attachment metadata must survive the trip.
func TestSendReloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	chatID := c.Snapshot().ActiveChatID
	err := c.SendMessage(ctx, "check this out", []File{{Name: "diagram.png", Type: "image/png", Data: []byte("png")}})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	if err := c.SelectChat(ctx, chatID); err != nil {
		t.Fatalf("SelectChat failed: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Messages) != 2 || snap.Messages[0].Content != "check this out" {
		t.Fatalf("unexpected messages after reload: %+v", snap.Messages)
	}
	atts := snap.Attachments[models.MustRecordIDString(snap.Messages[0].ID)]
	if len(atts) != 1 {
		t.Fatalf("expected 1 attachment after reload, got %d", len(atts))
	}
	if atts[0].FileName != "diagram.png" || atts[0].FileType != "image/png" {
		t.Errorf("attachment mismatch after reload: %+v", atts[0])
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func TestDeriveTitleBoundary(t *testing.T) {
	exactly50 := strings.Repeat("a", 50)
	if got := deriveTitle(exactly50); got != exactly50 {
		t.Errorf("50-rune message must keep its title unchanged, got %q", got)
	}

	over := strings.Repeat("b", 51)
	got := deriveTitle(over)
	if got != strings.Repeat("b", 50)+"..." {
		t.Errorf("51-rune message must truncate to 50 + ellipsis, got %q", got)
	}
}

func TestObjectKey(t *testing.T) {
	key := objectKey(testUserID, "holiday photo.jpeg")

	if !strings.HasPrefix(key, testUserID+"/") {
		t.Errorf("key must be namespaced by user, got %q", key)
	}
	if !strings.HasSuffix(key, ".jpeg") {
		t.Errorf("key must preserve the extension, got %q", key)
	}
	if other := objectKey(testUserID, "holiday photo.jpeg"); other == key {
		t.Errorf("keys must be collision-resistant, got %q twice", key)
	}
}

func TestObjectKeyWithoutExtension(t *testing.T) {
	key := objectKey(testUserID, "README")
	if strings.Contains(key, ".") {
		t.Errorf("expected no extension suffix, got %q", key)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	if err := c.SendMessage(ctx, "hello", nil); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	c.Wait()

	snap := c.Snapshot()
	snap.Messages[0].Content = "mutated"
	snap.Chats[0].Title = "mutated"

	fresh := c.Snapshot()
	if fresh.Messages[0].Content == "mutated" || fresh.Chats[0].Title == "mutated" {
		t.Errorf("snapshot must not alias controller state")
	}
}

func TestConcurrentSnapshotsDuringSend(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := initialized(t, store, newMemFiles())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.Snapshot()
			}
		}()
	}

	for i := 0; i < 5; i++ {
		if err := c.SendMessage(ctx, fmt.Sprintf("message %d", i), nil); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
		c.Wait()
	}
	wg.Wait()

	if got := len(c.Snapshot().Messages); got != 10 {
		t.Errorf("expected 10 messages, got %d", got)
	}
}
