package funders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyDraft is returned by Submit when a draft has neither text nor
// attachments.
var ErrEmptyDraft = errors.New("funders: draft has no content and no attachments")

// ErrNoChatSelected is returned by Submit when no chat is open.
var ErrNoChatSelected = errors.New("funders: no chat selected")

// MessageDraft is the composer input for Submit.
type MessageDraft struct {
	Content     string
	Attachments []AttachmentUpload
}

// ============================================================================
// Compose context
// ============================================================================

// SetReplyTo marks the next submitted draft as a reply to the given
// message. Passing nil clears reply mode.
func (s *ChatSession) SetReplyTo(m *ChatMessage) {
	s.mu.Lock()
	s.replyTo = m
	s.editing = nil
	s.mu.Unlock()
}

// ReplyTo returns the message the next draft replies to, if any.
func (s *ChatSession) ReplyTo() *ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replyTo
}

// SetEditing marks the next submitted draft as an edit of the given
// message. Passing nil clears edit mode.
func (s *ChatSession) SetEditing(m *ChatMessage) {
	s.mu.Lock()
	s.editing = m
	s.replyTo = nil
	s.mu.Unlock()
}

// Editing returns the message the next draft edits, if any.
func (s *ChatSession) Editing() *ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

// ============================================================================
// Submit
// ============================================================================

// Submit runs the send pipeline for a draft. In edit mode it updates the
// message in place. Otherwise it inserts a placeholder message at the head
// of the active list before the create request goes out, then swaps the
// placeholder for the server-confirmed message, carrying the local
// attachment preview URLs over so previews don't flicker. On a failed
// create the placeholder stays in the list and the error is returned.
func (s *ChatSession) Submit(ctx context.Context, draft MessageDraft) (*ChatMessage, error) {
	content := strings.TrimSpace(draft.Content)
	if content == "" && len(draft.Attachments) == 0 {
		return nil, ErrEmptyDraft
	}

	selected := s.store.SelectedChat()
	if selected == nil {
		return nil, ErrNoChatSelected
	}

	s.mu.Lock()
	editing := s.editing
	s.mu.Unlock()

	if editing != nil {
		return s.submitEdit(ctx, editing, content)
	}
	return s.submitCreate(ctx, selected.ID, content, draft.Attachments)
}

func (s *ChatSession) submitEdit(ctx context.Context, editing *ChatMessage, content string) (*ChatMessage, error) {
	if content == editing.Content {
		s.SetEditing(nil)
		return editing, nil
	}

	updated, err := s.client.UpdateChatMessage(ctx, editing.ID, &UpdateMessageInput{
		Content: &content,
	})
	if err != nil {
		errs := s.store.Errors()
		errs.UpdateMessage = err.Error()
		s.store.SetErrors(errs)
		return nil, err
	}

	s.mu.Lock()
	s.replaceMessageLocked(*updated)
	s.editing = nil
	s.replyTo = nil
	s.mu.Unlock()

	s.emit(ctx, EventEditMessage, *updated)
	return updated, nil
}

func (s *ChatSession) submitCreate(ctx context.Context, chatID, content string, attachments []AttachmentUpload) (*ChatMessage, error) {
	now := time.Now()
	tempID := uuid.NewString()

	previews := make([]string, len(attachments))
	previewAttachments := make([]ChatMessageAttachment, len(attachments))
	for i, a := range attachments {
		previews[i] = "blob:" + uuid.NewString()
		previewAttachments[i] = ChatMessageAttachment{
			ID:        uuid.NewString(),
			MessageID: tempID,
			Filename:  a.Filename,
			TempURL:   previews[i],
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	s.mu.Lock()
	replyTo := s.replyTo
	author := s.user
	placeholder := ChatMessage{
		ID:          tempID,
		ChatID:      chatID,
		AuthorID:    author.ID,
		Content:     content,
		Status:      MessageStatusSent,
		CreatedAt:   now,
		UpdatedAt:   now,
		Author:      &author,
		Attachments: previewAttachments,
	}
	if replyTo != nil {
		placeholder.ParentMessageID = replyTo.ID
		placeholder.ParentMessage = replyTo
	}
	s.pending[tempID] = previews
	s.store.SetMessages(append([]ChatMessage{placeholder}, s.store.Messages()...))
	s.mu.Unlock()

	input := &CreateMessageInput{
		AuthorID:    author.ID,
		ChatID:      chatID,
		Content:     content,
		Attachments: attachments,
	}
	if replyTo != nil {
		input.ParentMessageID = replyTo.ID
	}

	created, err := s.client.CreateChatMessage(ctx, input)
	if err != nil {
		s.mu.Lock()
		delete(s.pending, tempID)
		s.mu.Unlock()

		errs := s.store.Errors()
		errs.CreateMessage = err.Error()
		s.store.SetErrors(errs)
		return nil, err
	}

	s.mu.Lock()
	confirmed := *created
	if urls, ok := s.pending[tempID]; ok {
		for i := range confirmed.Attachments {
			if i < len(urls) {
				confirmed.Attachments[i].TempURL = urls[i]
			}
		}
		delete(s.pending, tempID)
	}

	messages := s.store.Messages()
	if i := indexOfMessage(messages, tempID); i >= 0 {
		messages[i] = confirmed
		s.store.SetMessages(messages)
	}

	s.upsertOwnMessageLocked(confirmed)
	s.replyTo = nil
	s.mu.Unlock()

	s.emit(ctx, EventCreateMessage, confirmed)
	return &confirmed, nil
}

// ============================================================================
// Pin / remove
// ============================================================================

// TogglePin flips a message's pinned flag on the server, applies the result
// to the active list and the pinned view, and broadcasts the change.
func (s *ChatSession) TogglePin(ctx context.Context, m ChatMessage) (*ChatMessage, error) {
	next := !m.IsPinned
	updated, err := s.client.UpdateChatMessage(ctx, m.ID, &UpdateMessageInput{
		IsPinned: &next,
	})
	if err != nil {
		errs := s.store.Errors()
		errs.UpdateMessage = err.Error()
		s.store.SetErrors(errs)
		return nil, err
	}

	s.applyPinned(*updated)

	s.emit(ctx, EventPinMessage, *updated)
	return updated, nil
}

// Remove tombstones a message: it sets removedAt on the server, drops the
// message from the active list and the chat-list preview while keeping a
// removed snapshot on replies that referenced it, and broadcasts the
// removal. Removing a pinned message also broadcasts an unpin.
func (s *ChatSession) Remove(ctx context.Context, m ChatMessage) (*ChatMessage, error) {
	now := time.Now()
	updated, err := s.client.UpdateChatMessage(ctx, m.ID, &UpdateMessageInput{
		RemovedAt: &now,
	})
	if err != nil {
		errs := s.store.Errors()
		errs.RemoveMessage = err.Error()
		s.store.SetErrors(errs)
		return nil, err
	}

	tombstone := *updated
	if tombstone.RemovedAt == nil {
		tombstone.RemovedAt = &now
	}

	s.mu.Lock()
	wasPinned := indexOfMessage(s.pinned, m.ID) >= 0

	messages := s.store.Messages()
	next := make([]ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.ID == m.ID {
			continue
		}
		if msg.ParentMessageID == m.ID {
			snapshot := tombstone
			msg.ParentMessage = &snapshot
		}
		next = append(next, msg)
	}
	s.store.SetMessages(next)

	s.removePinnedLocked(m.ID)

	list := s.store.ChatList()
	if i := indexOfChat(list, m.ChatID); i >= 0 {
		preview := make([]ChatMessage, 0, len(list[i].Messages))
		for _, msg := range list[i].Messages {
			if msg.ID == m.ID {
				continue
			}
			if msg.ParentMessageID == m.ID {
				snapshot := tombstone
				msg.ParentMessage = &snapshot
			}
			preview = append(preview, msg)
		}
		list[i].Messages = preview
		sortChatList(list)
		s.store.SetChatList(list)
	}
	s.mu.Unlock()

	s.emit(ctx, EventRemoveMessage, tombstone)
	if wasPinned {
		unpinned := tombstone
		unpinned.IsPinned = false
		s.emit(ctx, EventPinMessage, unpinned)
	}
	return updated, nil
}

// ============================================================================
// Local replace helpers
// ============================================================================

// replaceMessageLocked swaps an updated message into the active list, the
// pinned view and the chat-list preview. Callers must hold s.mu.
func (s *ChatSession) replaceMessageLocked(msg ChatMessage) {
	messages := s.store.Messages()
	if i := indexOfMessage(messages, msg.ID); i >= 0 {
		messages[i] = msg
		for j := range messages {
			if messages[j].ParentMessageID == msg.ID {
				snapshot := msg
				messages[j].ParentMessage = &snapshot
			}
		}
		s.store.SetMessages(messages)
	}

	if i := indexOfMessage(s.pinned, msg.ID); i >= 0 {
		s.pinned[i] = msg
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

// upsertOwnMessageLocked records a freshly confirmed own message on the
// chat-list entry and re-sorts the list. Own messages never touch the
// unread counter. Callers must hold s.mu.
func (s *ChatSession) upsertOwnMessageLocked(msg ChatMessage) {
	list := s.store.ChatList()
	if i := indexOfChat(list, msg.ChatID); i >= 0 {
		list[i].Messages = append([]ChatMessage{msg}, list[i].Messages...)
	} else if sel := s.store.SelectedChat(); sel != nil && sel.ID == msg.ChatID {
		list = append(list, ChatListItem{
			ID:          sel.ID,
			Name:        sel.Name,
			Type:        sel.Type,
			Image:       sel.Image,
			Description: sel.Description,
			CreatedAt:   sel.CreatedAt,
			UpdatedAt:   sel.UpdatedAt,
			Messages:    []ChatMessage{msg},
		})
	} else {
		return
	}
	sortChatList(list)
	s.store.SetChatList(list)
}
