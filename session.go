package funders

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// ChatSession binds the API client, the message store and a real-time
// channel to one authenticated user. All inbound channel events and all
// local flows (send, pin, remove, read) funnel through the session, which
// serializes them so every store write is computed from the latest read.
type ChatSession struct {
	client *Client
	store  *Store
	user   User

	mu       sync.Mutex
	channel  *Channel
	replyTo  *ChatMessage
	editing  *ChatMessage
	pending  map[string][]string // placeholder id -> attachment preview URLs
	pinned   []ChatMessage
	pinIndex int
}

// NewChatSession creates a session for the given user backed by a fresh
// store.
func NewChatSession(client *Client, user User) *ChatSession {
	return &ChatSession{
		client:  client,
		store:   NewStore(),
		user:    user,
		pending: make(map[string][]string),
	}
}

// Store returns the session's message store.
func (s *ChatSession) Store() *Store {
	return s.store
}

// User returns the authenticated user the session was created for.
func (s *ChatSession) User() User {
	return s.user
}

// Channel returns the active real-time channel, or nil when disconnected.
func (s *ChatSession) Channel() *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// ============================================================================
// Lifecycle
// ============================================================================

// Connect opens the real-time channel for the session user, registers the
// reconciliation handlers and joins every chat already loaded in the store.
// A connection failure is recorded on the store's error flags and returned.
func (s *ChatSession) Connect(ctx context.Context) error {
	ch, err := s.client.ConnectChannel(ctx, s.user.ID)
	if err != nil {
		errs := s.store.Errors()
		errs.ConnectChannel = err.Error()
		s.store.SetErrors(errs)
		return err
	}

	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()

	ch.On(EventReceiveCreatedMessage, s.messageHandler(s.applyCreated))
	ch.On(EventReceiveEditedMessage, s.messageHandler(s.applyEdited))
	ch.On(EventReceiveRemovedMessage, s.messageHandler(s.applyRemoved))
	ch.On(EventReceivePinnedMessage, s.messageHandler(s.applyPinned))
	ch.OnDisconnected(func(reason string) {
		errs := s.store.Errors()
		errs.ConnectChannel = reason
		s.store.SetErrors(errs)
	})

	ids := make([]string, 0)
	for _, item := range s.store.ChatList() {
		ids = append(ids, item.ID)
	}
	if len(ids) > 0 {
		if err := ch.JoinChats(ctx, ids); err != nil {
			return fmt.Errorf("join chats: %w", err)
		}
	}
	return nil
}

// Close tears down the channel connection and drops its reference so a
// later Connect starts clean.
func (s *ChatSession) Close() error {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()

	if ch != nil {
		return ch.Close()
	}
	return nil
}

func (s *ChatSession) messageHandler(apply func(ChatMessage)) EventHandler {
	return func(data json.RawMessage) {
		var ev MessageEvent
		if json.Unmarshal(data, &ev) != nil {
			return
		}
		apply(ev.Message)
	}
}

// emit sends an event when a channel is connected and is a no-op otherwise,
// so local flows keep working while offline from events.
func (s *ChatSession) emit(ctx context.Context, event EventName, payload any) {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch != nil {
		_ = ch.Emit(ctx, event, payload)
	}
}

// ============================================================================
// Loading
// ============================================================================

// LoadChatList fetches the user's chat list, sorts it by newest-message
// time and replaces the store's copy. When the channel is connected the
// session joins every listed chat room.
func (s *ChatSession) LoadChatList(ctx context.Context) ([]ChatListItem, error) {
	list, err := s.client.ListUserChats(ctx, Query{
		"where": Query{"userId": s.user.ID},
	})
	if err != nil {
		errs := s.store.Errors()
		errs.FetchChatList = err.Error()
		s.store.SetErrors(errs)
		return nil, err
	}

	sortChatList(list)

	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	s.store.SetChatList(list)

	if ch != nil && len(list) > 0 {
		ids := make([]string, len(list))
		for i, item := range list {
			ids[i] = item.ID
		}
		_ = ch.JoinChats(ctx, ids)
	}
	return list, nil
}

// OpenChat selects a chat: it fetches the chat with its members, loads the
// non-removed message history newest first, seeds the pinned view from it
// and joins the chat room.
func (s *ChatSession) OpenChat(ctx context.Context, chatID string) (*Chat, error) {
	chat, err := s.client.GetChat(ctx, chatID, Query{
		"include": Query{"usersToChats": Query{"include": Query{"user": true}}},
	})
	if err != nil {
		errs := s.store.Errors()
		errs.FetchChat = err.Error()
		s.store.SetErrors(errs)
		return nil, err
	}

	messages, err := s.client.ListChatMessages(ctx, Query{
		"where": Query{
			"chatId":    chatID,
			"removedAt": Query{"equals": nil},
		},
		"include": Query{
			"author":        true,
			"parentMessage": true,
			"attachments":   true,
		},
		"orderBy": Query{"createdAt": "desc"},
	})
	if err != nil {
		errs := s.store.Errors()
		errs.FetchMessages = err.Error()
		s.store.SetErrors(errs)
		return nil, err
	}

	s.mu.Lock()
	s.replyTo = nil
	s.editing = nil
	s.pending = make(map[string][]string)
	s.pinned = pinnedOf(messages)
	s.pinIndex = 0
	s.mu.Unlock()

	s.store.SetSelectedChat(chat)
	s.store.SetMessages(messages)

	s.emit(ctx, EventJoinChat, chatID)
	return chat, nil
}

// CloseChat deselects the active chat and clears all per-chat state. The
// channel connection stays up.
func (s *ChatSession) CloseChat() {
	s.mu.Lock()
	s.replyTo = nil
	s.editing = nil
	s.pending = make(map[string][]string)
	s.pinned = nil
	s.pinIndex = 0
	s.mu.Unlock()

	s.store.SetSelectedChat(nil)
	s.store.SetMessages(nil)
}

// ============================================================================
// Pinned view
// ============================================================================

// Pinned returns the pinned messages of the active chat, newest first.
func (s *ChatSession) Pinned() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage{}, s.pinned...)
}

// SelectedPinned returns the currently displayed pinned message.
func (s *ChatSession) SelectedPinned() (ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pinIndex >= len(s.pinned) {
		return ChatMessage{}, false
	}
	return s.pinned[s.pinIndex], true
}

// SelectNextPinned advances the displayed pinned message, wrapping around.
func (s *ChatSession) SelectNextPinned() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pinned) == 0 {
		s.pinIndex = 0
		return
	}
	s.pinIndex = (s.pinIndex + 1) % len(s.pinned)
}

// ============================================================================
// Event reconciliation
// ============================================================================

func (s *ChatSession) applyCreated(msg ChatMessage) {
	if msg.AuthorID == s.user.ID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	selected := s.store.SelectedChat()
	if selected != nil && selected.ID == msg.ChatID {
		messages := s.store.Messages()
		if indexOfMessage(messages, msg.ID) >= 0 {
			return
		}
		if msg.ParentMessageID != "" {
			for i := range messages {
				if messages[i].ID == msg.ParentMessageID {
					replies := append([]ChatMessage{}, messages[i].Replies...)
					messages[i].Replies = append(replies, msg)
					break
				}
			}
		}
		s.store.SetMessages(append([]ChatMessage{msg}, messages...))
	}

	list := s.store.ChatList()
	if i := indexOfChat(list, msg.ChatID); i >= 0 {
		for _, m := range list[i].Messages {
			if m.ID == msg.ID {
				return
			}
		}
		list[i].Messages = append([]ChatMessage{msg}, list[i].Messages...)
		list[i].TotalUnreadMessages++
	} else {
		if msg.Chat == nil {
			return
		}
		list = append(list, ChatListItem{
			ID:                  msg.Chat.ID,
			Name:                msg.Chat.Name,
			Type:                msg.Chat.Type,
			Image:               msg.Chat.Image,
			Description:         msg.Chat.Description,
			CreatedAt:           msg.Chat.CreatedAt,
			UpdatedAt:           msg.Chat.UpdatedAt,
			Messages:            []ChatMessage{msg},
			TotalUnreadMessages: 1,
		})
	}
	sortChatList(list)
	s.store.SetChatList(list)
}

func (s *ChatSession) applyEdited(msg ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected := s.store.SelectedChat()
	if selected != nil && selected.ID == msg.ChatID {
		messages := s.store.Messages()
		i := indexOfMessage(messages, msg.ID)
		if i < 0 {
			return
		}
		messages[i] = msg
		for j := range messages {
			if messages[j].ParentMessageID == msg.ID {
				snapshot := msg
				messages[j].ParentMessage = &snapshot
			}
		}
		s.store.SetMessages(messages)

		if k := indexOfMessage(s.pinned, msg.ID); k >= 0 {
			s.pinned[k] = msg
		}
	}

	list := s.store.ChatList()
	if i := indexOfChat(list, msg.ChatID); i >= 0 {
		replaced := false
		for j := range list[i].Messages {
			if list[i].Messages[j].ID == msg.ID {
				list[i].Messages[j] = msg
				replaced = true
			}
		}
		if replaced {
			s.store.SetChatList(list)
		}
	}
}

func (s *ChatSession) applyRemoved(msg ChatMessage) {
	if msg.AuthorID == s.user.ID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	selected := s.store.SelectedChat()
	if selected == nil || selected.ID != msg.ChatID {
		return
	}

	messages := s.store.Messages()
	if indexOfMessage(messages, msg.ID) < 0 {
		return
	}

	tombstone := msg
	if tombstone.RemovedAt == nil {
		now := tombstone.UpdatedAt
		tombstone.RemovedAt = &now
	}

	next := make([]ChatMessage, 0, len(messages)-1)
	for _, m := range messages {
		if m.ID == msg.ID {
			continue
		}
		if m.ParentMessageID == msg.ID {
			snapshot := tombstone
			m.ParentMessage = &snapshot
		}
		next = append(next, m)
	}
	s.store.SetMessages(next)

	s.removePinnedLocked(msg.ID)

	list := s.store.ChatList()
	if i := indexOfChat(list, msg.ChatID); i >= 0 {
		preview := make([]ChatMessage, 0, len(list[i].Messages))
		for _, m := range list[i].Messages {
			if m.ID == msg.ID {
				continue
			}
			if m.ParentMessageID == msg.ID {
				snapshot := tombstone
				m.ParentMessage = &snapshot
			}
			preview = append(preview, m)
		}
		list[i].Messages = preview
		sortChatList(list)
		s.store.SetChatList(list)
	}
}

func (s *ChatSession) applyPinned(msg ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected := s.store.SelectedChat()
	if selected == nil || selected.ID != msg.ChatID {
		return
	}

	messages := s.store.Messages()
	if i := indexOfMessage(messages, msg.ID); i >= 0 {
		messages[i] = msg
		s.store.SetMessages(messages)
	}

	if msg.IsPinned {
		if i := indexOfMessage(s.pinned, msg.ID); i >= 0 {
			s.pinned[i] = msg
		} else {
			s.pinned = append(s.pinned, msg)
		}
		sortPinned(s.pinned)
		s.clampPinIndexLocked()
	} else {
		s.removePinnedLocked(msg.ID)
	}
}

// removePinnedLocked drops a message from the pinned view and re-clamps the
// displayed index. Callers must hold s.mu.
func (s *ChatSession) removePinnedLocked(id string) {
	i := indexOfMessage(s.pinned, id)
	if i < 0 {
		return
	}
	s.pinned = append(s.pinned[:i], s.pinned[i+1:]...)
	s.clampPinIndexLocked()
}

func (s *ChatSession) clampPinIndexLocked() {
	if s.pinIndex >= len(s.pinned) {
		s.pinIndex = 0
	}
}

// ============================================================================
// Helpers
// ============================================================================

func indexOfMessage(messages []ChatMessage, id string) int {
	for i := range messages {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfChat(list []ChatListItem, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func sortChatList(list []ChatListItem) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].SortKey().After(list[j].SortKey())
	})
}

func sortPinned(pinned []ChatMessage) {
	sort.SliceStable(pinned, func(i, j int) bool {
		return pinned[i].CreatedAt.After(pinned[j].CreatedAt)
	})
}

func pinnedOf(messages []ChatMessage) []ChatMessage {
	var pinned []ChatMessage
	for _, m := range messages {
		if m.IsPinned {
			pinned = append(pinned, m)
		}
	}
	sortPinned(pinned)
	return pinned
}
