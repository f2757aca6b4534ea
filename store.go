package funders

import "sync"

// StoreErrors carries the per-operation error flags of the chat core. An
// empty string means the last run of that operation succeeded.
type StoreErrors struct {
	FetchChatList  string
	FetchChat      string
	FetchMessages  string
	CreateMessage  string
	UpdateMessage  string
	RemoveMessage  string
	ConnectChannel string
}

// Store is the in-memory client-side state holding the authoritative local
// view of the chat list, the active chat, and its messages.
//
// Setters fully replace the held collection; there is no partial-patch API.
// Callers compute the next full value from the read accessors, which makes
// every write atomic from the perspective of all readers. Accessors return
// snapshots with their own backing arrays, so rewriting a snapshot before
// handing it back never leaks a half-applied state to other readers.
type Store struct {
	mu           sync.RWMutex
	chatList     []ChatListItem
	messages     []ChatMessage
	selectedChat *Chat
	errors       StoreErrors
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// ============================================================================
// Read accessors
// ============================================================================

// ChatList returns the user's chat list, newest activity first. Each
// entry's message preview is copied as well, so callers may rewrite a
// snapshot and hand it back to SetChatList without the held list or any
// other snapshot observing the intermediate state.
func (s *Store) ChatList() []ChatListItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := append([]ChatListItem{}, s.chatList...)
	for i := range list {
		list[i].Messages = append([]ChatMessage{}, list[i].Messages...)
	}
	return list
}

// Messages returns the active chat's message list, newest first.
func (s *Store) Messages() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ChatMessage{}, s.messages...)
}

// SelectedChat returns the currently open chat, or nil.
func (s *Store) SelectedChat() *Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedChat
}

// Errors returns the current error flags.
func (s *Store) Errors() StoreErrors {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errors
}

// ============================================================================
// Full-replace setters
// ============================================================================

// SetChatList replaces the chat list.
func (s *Store) SetChatList(list []ChatListItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatList = list
}

// SetMessages replaces the active chat's message list.
func (s *Store) SetMessages(messages []ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = messages
}

// SetSelectedChat replaces the currently open chat. Pass nil on navigation
// away from the chat view.
func (s *Store) SetSelectedChat(chat *Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedChat = chat
}

// SetErrors replaces the error flags.
func (s *Store) SetErrors(errors StoreErrors) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = errors
}
