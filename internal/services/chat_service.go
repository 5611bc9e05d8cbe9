package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"adsdash/internal/logger"
	"adsdash/internal/storage"
	"adsdash/pkg/adtypes"
)

// QuickScanPrompt replaces a blank chat input.
const QuickScanPrompt = "Invoke the Expert System to scan for anomalies. (Auto-Scan)"

// historyLimit is the number of earlier messages sent along with a new one.
const historyLimit = 10

// ChatBackend opens a streamed chat response.
type ChatBackend interface {
	Chat(ctx context.Context, req adtypes.ChatRequest) (io.ReadCloser, error)
}

// ChatService sends messages of the current conversation to the agent and streams the
// answer back into it.
type ChatService struct {
	initialized   bool
	backend       ChatBackend
	conversations *ConversationService
	experts       *Experts
	rules         *RuleService
	store         storage.Store
}

// NewChatService wires a ChatService.
func NewChatService(backend ChatBackend, conversations *ConversationService, experts *Experts, rules *RuleService, store storage.Store) *ChatService {
	return &ChatService{
		backend:       backend,
		conversations: conversations,
		experts:       experts,
		rules:         rules,
		store:         store,
	}
}

// Name returns the service name "chat" for registration.
func (c *ChatService) Name() string {
	return "chat"
}

// Initialize prepares the service.
func (c *ChatService) Initialize() error {
	c.initialized = true
	return nil
}

// Experts returns the expert selection used for sends.
func (c *ChatService) Experts() *Experts {
	return c.experts
}

// Send posts input to the agent on behalf of the current conversation. Blank input runs
// the quick scan. The agent answer is appended as a message that grows chunk by chunk;
// onUpdate, when set, receives the answer so far after each chunk. Failures are recorded
// in the conversation as an "Error: ..." agent message rather than returned; the only
// error is ErrNoConversation.
func (c *ChatService) Send(ctx context.Context, input string, onUpdate func(string)) error {
	conv, ok := c.conversations.Current()
	if !ok {
		return ErrNoConversation
	}

	text := input
	if strings.TrimSpace(text) == "" {
		text = QuickScanPrompt
	}

	history := conv.Messages
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	history = append([]adtypes.Message{}, history...)

	if err := c.conversations.AppendMessage(conv.ID, adtypes.Message{Role: adtypes.RoleUser, Content: text}); err != nil {
		return err
	}

	selected := c.experts.Selected()
	req := adtypes.ChatRequest{
		Message:        text,
		Messages:       history,
		SelectedTables: selected,
		RuleOverrides:  c.rules.TakeOverrides(),
	}
	for _, id := range selected {
		if id == SEOExpert {
			req.SEOPagesData = c.seoPagesData()
			break
		}
	}

	logger.Debug("Sending chat message", "conversation", conv.ID, "experts", len(selected), "history", len(history))
	if err := c.stream(ctx, conv.ID, req, onUpdate); err != nil {
		logger.Error("Chat failed", "conversation", conv.ID, "error", err)
		if appendErr := c.conversations.AppendMessage(conv.ID, adtypes.Message{
			Role:    adtypes.RoleAgent,
			Content: "Error: " + err.Error(),
		}); appendErr != nil {
			return appendErr
		}
		if onUpdate != nil {
			onUpdate("Error: " + err.Error())
		}
	}
	return nil
}

func (c *ChatService) stream(ctx context.Context, id int64, req adtypes.ChatRequest, onUpdate func(string)) error {
	body, err := c.backend.Chat(ctx, req)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := c.conversations.AppendMessage(id, adtypes.Message{Role: adtypes.RoleAgent}); err != nil {
		return err
	}

	var answer strings.Builder
	var saveErr error
	err = ReadTextStream(body, func(chunk string) {
		answer.WriteString(chunk)
		if err := c.conversations.SetLastMessage(id, answer.String()); err != nil && saveErr == nil {
			saveErr = err
		}
		if onUpdate != nil {
			onUpdate(answer.String())
		}
	})
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	return saveErr
}

// seoPagesData returns the cached SEO page list, or nil when none is cached or it is
// not valid JSON.
func (c *ChatService) seoPagesData() json.RawMessage {
	raw, ok, err := c.store.Get(storage.KeySEOPagesData)
	if err != nil {
		logger.Error("Failed to read cached SEO pages", "error", err)
		return nil
	}
	if !ok || !json.Valid([]byte(raw)) {
		return nil
	}
	return json.RawMessage(raw)
}

// GetGlobalChatService returns the chat service from the global registry.
func GetGlobalChatService() (*ChatService, error) {
	return Lookup[*ChatService](GetGlobalRegistry(), "chat")
}
