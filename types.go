package funders

import "time"

// ============================================================================
// Enums
// ============================================================================

// ChatType classifies a chat room.
type ChatType string

const (
	ChatTypePrivate    ChatType = "Private"
	ChatTypeGroup      ChatType = "Group"
	ChatTypeSupergroup ChatType = "Supergroup"
	ChatTypeChannel    ChatType = "Channel"
)

// MessageStatus is the delivery state of a chat message. It only moves
// forward (Sent → Delivered → Read), and only for messages the viewing
// user did not author.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "Sent"
	MessageStatusDelivered MessageStatus = "Delivered"
	MessageStatusRead      MessageStatus = "Read"
)

// ChatRole is a member's role inside a chat.
type ChatRole string

const (
	ChatRoleOwner         ChatRole = "Owner"
	ChatRoleAdministrator ChatRole = "Administrator"
	ChatRoleMember        ChatRole = "Member"
)

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents a structured error returned by the Funders backend.
type APIError struct {
	StatusCode int    `json:"statusCode,omitempty"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// User is the subset of the backend user entity the chat core needs.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Image     string `json:"image,omitempty"`
}

// ============================================================================
// Chat Entities
// ============================================================================

// Chat is a chat room.
type Chat struct {
	ID          string         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Type        ChatType       `json:"type"`
	Image       string         `json:"image,omitempty"`
	Description string         `json:"description,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Members     []ChatMember   `json:"usersToChats,omitempty"`
	Messages    []ChatMessage  `json:"messages,omitempty"`
	Counts      map[string]int `json:"_count,omitempty"`
}

// ChatMember is a user-to-chat membership link.
type ChatMember struct {
	UserID     string     `json:"userId"`
	ChatID     string     `json:"chatId"`
	Role       ChatRole   `json:"role,omitempty"`
	IsArchived bool       `json:"isArchived,omitempty"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
	User       *User      `json:"user,omitempty"`
}

// ChatListItem is the denormalized chat-list projection: the chat itself
// plus its most recent messages (newest first) and an unread counter.
type ChatListItem struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name,omitempty"`
	Type                ChatType      `json:"type"`
	Image               string        `json:"image,omitempty"`
	Description         string        `json:"description,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
	Messages            []ChatMessage `json:"messages"`
	TotalUnreadMessages int           `json:"totalUnreadMessages"`
}

// SortKey is the chat-list ordering key: the creation time of the newest
// message, falling back to the item's own creation time when it has none.
func (c ChatListItem) SortKey() time.Time {
	if len(c.Messages) > 0 {
		return c.Messages[0].CreatedAt
	}
	return c.CreatedAt
}

// ChatMessage is a single message in a chat.
//
// A message with RemovedAt set is excluded from the active message list but
// may still be referenced as ParentMessage by replies, where it renders as
// a deleted message.
type ChatMessage struct {
	ID              string                  `json:"id"`
	ChatID          string                  `json:"chatId"`
	AuthorID        string                  `json:"authorId"`
	ParentMessageID string                  `json:"parentMessageId,omitempty"`
	Content         string                  `json:"content"`
	IsPinned        bool                    `json:"isPinned"`
	Status          MessageStatus           `json:"status"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
	RemovedAt       *time.Time              `json:"removedAt,omitempty"`
	Chat            *Chat                   `json:"chat,omitempty"`
	Author          *User                   `json:"author,omitempty"`
	ParentMessage   *ChatMessage            `json:"parentMessage,omitempty"`
	Replies         []ChatMessage           `json:"replies,omitempty"`
	Attachments     []ChatMessageAttachment `json:"attachments,omitempty"`
}

// IsRemoved reports whether the message has been tombstoned.
func (m *ChatMessage) IsRemoved() bool {
	return m.RemovedAt != nil
}

// ChatMessageAttachment is a file attached to a message. TempURL is a
// client-only preview location used before the server-confirmed record
// exists; it is never sent in requests.
type ChatMessageAttachment struct {
	ID        string    `json:"id"`
	MessageID string    `json:"messageId"`
	Location  string    `json:"location"`
	Filename  string    `json:"filename,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	TempURL   string    `json:"tempUrl,omitempty"`
}
