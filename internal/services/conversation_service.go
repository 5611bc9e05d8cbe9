package services

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"adsdash/internal/logger"
	"adsdash/internal/storage"
	"adsdash/internal/version"
	"adsdash/pkg/adtypes"
)

// Greeting is the first agent message of every new conversation.
const Greeting = "Hello! I am the **AdsManager Expert System (v1.0)**.\n\n" +
	"**Core capabilities**:\n" +
	"- 🛡️ **Rule-first diagnosis**: deterministic rules, no hallucinated findings.\n" +
	"- 🩺 **Multi-domain experts**: search terms, channels, products and geography audits.\n" +
	"- ⚖️ **Risk protection**: risky actions are downgraded during promotions and cold starts.\n\n" +
	"**You can**:\n" +
	"- Send an empty message to run a full account scan.\n" +
	"- Type **\"analyze [campaign]\"** to dispatch the expert team on one campaign."

// exportFormatVersion is the oldest adsdash release that reads the current export format.
const exportFormatVersion = "0.1.0"

// conversationExport is the file format of Export and Import.
type conversationExport struct {
	ExportedBy   string               `json:"exported_by"`
	MinVersion   string               `json:"min_version"`
	ExportedAt   time.Time            `json:"exported_at"`
	Conversation adtypes.Conversation `json:"conversation"`
}

// ConversationService keeps the chat conversation list and mirrors it into storage.
// The list is written after every change, except that an empty list is never written,
// so deleting the last conversation leaves the previous snapshot in place.
type ConversationService struct {
	mu            sync.Mutex
	initialized   bool
	store         storage.Store
	now           func() time.Time
	conversations []adtypes.Conversation
	currentID     int64
	editingID     int64
	draft         string
	lastID        int64
}

// NewConversationService creates a ConversationService backed by store.
func NewConversationService(store storage.Store) *ConversationService {
	return &ConversationService{
		store:         store,
		now:           time.Now,
		conversations: []adtypes.Conversation{},
	}
}

// Name returns the service name "conversations" for registration.
func (c *ConversationService) Name() string {
	return "conversations"
}

// Initialize loads the stored conversations. A missing, malformed or empty list starts a
// fresh conversation; otherwise the first conversation becomes current.
func (c *ConversationService) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var list []adtypes.Conversation
	ok, err := storage.GetJSON(c.store, storage.KeyConversations, &list)
	if err != nil {
		return fmt.Errorf("failed to read conversations: %w", err)
	}
	c.initialized = true

	if !ok || len(list) == 0 {
		if ok {
			logger.Debug("Stored conversation list is empty, starting a new one")
		}
		c.conversations = []adtypes.Conversation{}
		c.newLocked()
		return c.saveLocked()
	}

	c.conversations = list
	c.currentID = list[0].ID
	for _, conv := range list {
		c.lastID = max(c.lastID, conv.ID)
	}
	return nil
}

// New starts a conversation titled after the current time, greets the user, puts it at
// the head of the list and makes it current.
func (c *ConversationService) New() (adtypes.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return adtypes.Conversation{}, fmt.Errorf("conversation service not initialized")
	}
	conv := c.newLocked()
	return cloneConversation(conv), c.saveLocked()
}

func (c *ConversationService) newLocked() adtypes.Conversation {
	now := c.now()
	conv := adtypes.Conversation{
		ID:       c.nextIDLocked(now),
		Title:    "Analysis " + now.Format("01-02 15:04"),
		Messages: []adtypes.Message{{Role: adtypes.RoleAgent, Content: Greeting}},
	}
	c.conversations = append([]adtypes.Conversation{conv}, c.conversations...)
	c.currentID = conv.ID
	return conv
}

// nextIDLocked returns a millisecond timestamp id, bumped past the last one issued so
// two conversations created in the same millisecond stay distinct.
func (c *ConversationService) nextIDLocked(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return id
}

// saveLocked persists the list unless it is empty.
func (c *ConversationService) saveLocked() error {
	if len(c.conversations) == 0 {
		return nil
	}
	if err := storage.SetJSON(c.store, storage.KeyConversations, c.conversations); err != nil {
		return fmt.Errorf("failed to save conversations: %w", err)
	}
	return nil
}

func (c *ConversationService) indexLocked(id int64) int {
	for i, conv := range c.conversations {
		if conv.ID == id {
			return i
		}
	}
	return -1
}

func cloneConversation(conv adtypes.Conversation) adtypes.Conversation {
	msgs := make([]adtypes.Message, len(conv.Messages))
	copy(msgs, conv.Messages)
	conv.Messages = msgs
	return conv
}

// List returns copies of all conversations, newest first.
func (c *ConversationService) List() []adtypes.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]adtypes.Conversation, len(c.conversations))
	for i, conv := range c.conversations {
		out[i] = cloneConversation(conv)
	}
	return out
}

// Current returns a copy of the current conversation, if any.
func (c *ConversationService) Current() (adtypes.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(c.currentID)
	if i < 0 {
		return adtypes.Conversation{}, false
	}
	return cloneConversation(c.conversations[i]), true
}

// Get returns a copy of the conversation with id.
func (c *ConversationService) Get(id int64) (adtypes.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return adtypes.Conversation{}, fmt.Errorf("conversation %d not found", id)
	}
	return cloneConversation(c.conversations[i]), nil
}

// Select makes the conversation with id current.
func (c *ConversationService) Select(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexLocked(id) < 0 {
		return fmt.Errorf("conversation %d not found", id)
	}
	c.currentID = id
	return nil
}

// Delete removes the conversation with id. Deleting the current conversation moves to
// the head of the remaining list, or to none.
func (c *ConversationService) Delete(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("conversation %d not found", id)
	}
	c.conversations = append(c.conversations[:i:i], c.conversations[i+1:]...)
	if id == c.currentID {
		c.currentID = 0
		if len(c.conversations) > 0 {
			c.currentID = c.conversations[0].ID
		}
	}
	if id == c.editingID {
		c.editingID = 0
		c.draft = ""
	}
	return c.saveLocked()
}

// BeginRename starts editing the title of id with its current title as the draft.
func (c *ConversationService) BeginRename(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("conversation %d not found", id)
	}
	c.editingID = id
	c.draft = c.conversations[i].Title
	return nil
}

// SetDraft replaces the title being edited.
func (c *ConversationService) SetDraft(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = title
}

// Editing returns the id and draft of the rename in progress, zero when none.
func (c *ConversationService) Editing() (int64, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingID, c.draft
}

// CommitRename applies the draft. Without a rename in progress it does nothing.
func (c *ConversationService) CommitRename() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editingID == 0 {
		return nil
	}
	if i := c.indexLocked(c.editingID); i >= 0 {
		c.conversations[i].Title = c.draft
	}
	c.editingID = 0
	c.draft = ""
	return c.saveLocked()
}

// CancelRename drops the draft.
func (c *ConversationService) CancelRename() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editingID = 0
	c.draft = ""
}

// Rename sets the title of id in one step.
func (c *ConversationService) Rename(id int64, title string) error {
	if err := c.BeginRename(id); err != nil {
		return err
	}
	c.SetDraft(title)
	return c.CommitRename()
}

// AppendMessage adds a message to the conversation with id.
func (c *ConversationService) AppendMessage(id int64, msg adtypes.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("conversation %d not found", id)
	}
	c.conversations[i].Messages = append(c.conversations[i].Messages, msg)
	return c.saveLocked()
}

// SetLastMessage replaces the content of the last message of id, used while an agent
// answer streams in.
func (c *ConversationService) SetLastMessage(id int64, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("conversation %d not found", id)
	}
	msgs := c.conversations[i].Messages
	if len(msgs) == 0 {
		return fmt.Errorf("conversation %d has no messages", id)
	}
	msgs[len(msgs)-1].Content = content
	return c.saveLocked()
}

// Export writes the conversation with id to path as JSON.
func (c *ConversationService) Export(id int64, path string) error {
	conv, err := c.Get(id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(conversationExport{
		ExportedBy:   version.Version,
		MinVersion:   exportFormatVersion,
		ExportedAt:   c.now().UTC(),
		Conversation: conv,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Debug("Exported conversation", "id", id, "path", path)
	return nil
}

// Import reads a conversation written by Export. It gets a fresh id, goes to the head of
// the list and becomes current.
func (c *ConversationService) Import(path string) (adtypes.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return adtypes.Conversation{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file conversationExport
	if err := json.Unmarshal(data, &file); err != nil {
		return adtypes.Conversation{}, fmt.Errorf("invalid conversation file %s: %w", path, err)
	}
	if file.MinVersion != "" {
		ok, err := version.Satisfies(">= " + file.MinVersion)
		if err != nil {
			return adtypes.Conversation{}, err
		}
		if !ok {
			return adtypes.Conversation{}, fmt.Errorf("conversation file needs adsdash %s or newer", file.MinVersion)
		}
	}

	conv := file.Conversation
	if strings.TrimSpace(conv.Title) == "" {
		return adtypes.Conversation{}, fmt.Errorf("invalid conversation file %s: missing title", path)
	}
	for _, m := range conv.Messages {
		if m.Role != adtypes.RoleUser && m.Role != adtypes.RoleAgent {
			return adtypes.Conversation{}, fmt.Errorf("invalid conversation file %s: unknown role %q", path, m.Role)
		}
	}
	if conv.Messages == nil {
		conv.Messages = []adtypes.Message{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return adtypes.Conversation{}, fmt.Errorf("conversation service not initialized")
	}
	conv.ID = c.nextIDLocked(c.now())
	c.conversations = append([]adtypes.Conversation{conv}, c.conversations...)
	c.currentID = conv.ID
	return cloneConversation(conv), c.saveLocked()
}

// GetGlobalConversationService returns the conversation service from the global registry.
func GetGlobalConversationService() (*ConversationService, error) {
	return Lookup[*ConversationService](GetGlobalRegistry(), "conversations")
}
