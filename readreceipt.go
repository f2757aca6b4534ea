package funders

import "context"

// ReadMessagesEvent is the payload of the read-messages intent.
type ReadMessagesEvent struct {
	AuthenticatedUser User          `json:"authenticatedUser"`
	Messages          []ChatMessage `json:"messages"`
}

// MessageVisible reports that a message in the active chat scrolled into
// view. The first sighting of another author's unread message flips its
// status to Read, decrements the chat-list unread counter and emits a read
// acknowledgement. Repeat sightings, own messages and already-read messages
// are no-ops. It returns whether a receipt was emitted; the emission is
// fire-and-forget.
func (s *ChatSession) MessageVisible(ctx context.Context, messageID string) bool {
	s.mu.Lock()

	messages := s.store.Messages()
	i := indexOfMessage(messages, messageID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	msg := messages[i]
	if msg.AuthorID == s.user.ID || msg.Status == MessageStatusRead {
		s.mu.Unlock()
		return false
	}

	msg.Status = MessageStatusRead
	messages[i] = msg
	s.store.SetMessages(messages)

	s.decrementUnreadLocked(msg.ChatID, msg.ID, 1)
	s.mu.Unlock()

	s.emit(ctx, EventReadMessage, ReadMessageEvent{
		AuthenticatedUser: s.user,
		Message:           msg,
	})
	return true
}

// MarkChatRead flips every unread message from other authors in the active
// chat to Read, zeroes the chat-list unread counter and emits one bulk read
// acknowledgement. It returns the number of messages marked.
func (s *ChatSession) MarkChatRead(ctx context.Context) int {
	s.mu.Lock()

	selected := s.store.SelectedChat()
	if selected == nil {
		s.mu.Unlock()
		return 0
	}

	messages := s.store.Messages()
	var read []ChatMessage
	for i := range messages {
		if messages[i].AuthorID == s.user.ID || messages[i].Status == MessageStatusRead {
			continue
		}
		messages[i].Status = MessageStatusRead
		read = append(read, messages[i])
	}
	if len(read) == 0 {
		s.mu.Unlock()
		return 0
	}
	s.store.SetMessages(messages)

	s.decrementUnreadLocked(selected.ID, "", len(read))
	s.mu.Unlock()

	s.emit(ctx, EventReadMessages, ReadMessagesEvent{
		AuthenticatedUser: s.user,
		Messages:          read,
	})
	return len(read)
}

// decrementUnreadLocked lowers a chat-list entry's unread counter, floored
// at zero, and mirrors the Read status onto the entry's message preview.
// Callers must hold s.mu.
func (s *ChatSession) decrementUnreadLocked(chatID, messageID string, n int) {
	list := s.store.ChatList()
	i := indexOfChat(list, chatID)
	if i < 0 {
		return
	}

	list[i].TotalUnreadMessages -= n
	if list[i].TotalUnreadMessages < 0 {
		list[i].TotalUnreadMessages = 0
	}
	for j := range list[i].Messages {
		if list[i].Messages[j].AuthorID == s.user.ID {
			continue
		}
		if messageID == "" || list[i].Messages[j].ID == messageID {
			list[i].Messages[j].Status = MessageStatusRead
		}
	}
	s.store.SetChatList(list)
}
