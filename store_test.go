package funders

import (
	"testing"
	"time"
)

func TestStore(t *testing.T) {
	t.Run("starts empty", func(t *testing.T) {
		s := NewStore()
		if got := s.ChatList(); len(got) != 0 {
			t.Fatalf("expected empty chat list, got %d items", len(got))
		}
		if got := s.Messages(); len(got) != 0 {
			t.Fatalf("expected empty messages, got %d items", len(got))
		}
		if s.SelectedChat() != nil {
			t.Fatal("expected no selected chat")
		}
		if errs := s.Errors(); errs != (StoreErrors{}) {
			t.Fatalf("expected zero errors, got %+v", errs)
		}
	})

	t.Run("setters fully replace", func(t *testing.T) {
		s := NewStore()
		s.SetMessages([]ChatMessage{{ID: "m1"}, {ID: "m2"}})
		s.SetMessages([]ChatMessage{{ID: "m3"}})

		got := s.Messages()
		if len(got) != 1 || got[0].ID != "m3" {
			t.Fatalf("expected full replacement with m3, got %+v", got)
		}
	})

	t.Run("accessors return copies", func(t *testing.T) {
		s := NewStore()
		s.SetMessages([]ChatMessage{{ID: "m1", Content: "original"}})

		leaked := s.Messages()
		leaked[0].Content = "mutated"

		if got := s.Messages()[0].Content; got != "original" {
			t.Fatalf("store content changed through accessor copy: %q", got)
		}
	})

	t.Run("chat list previews are copies too", func(t *testing.T) {
		s := NewStore()
		s.SetChatList([]ChatListItem{{
			ID:       "c1",
			Messages: []ChatMessage{{ID: "m1", Content: "original"}},
		}})

		leaked := s.ChatList()
		leaked[0].Messages[0].Content = "mutated"
		leaked[0].TotalUnreadMessages = 99

		held := s.ChatList()
		if got := held[0].Messages[0].Content; got != "original" {
			t.Fatalf("store preview changed through accessor copy: %q", got)
		}
		if held[0].TotalUnreadMessages != 0 {
			t.Fatalf("store entry changed through accessor copy: %+v", held[0])
		}
	})

	t.Run("selected chat round trip", func(t *testing.T) {
		s := NewStore()
		chat := &Chat{ID: "c1", Type: ChatTypeGroup, CreatedAt: time.Now()}
		s.SetSelectedChat(chat)
		if got := s.SelectedChat(); got == nil || got.ID != "c1" {
			t.Fatalf("unexpected selected chat: %+v", got)
		}
		s.SetSelectedChat(nil)
		if s.SelectedChat() != nil {
			t.Fatal("expected selected chat cleared")
		}
	})

	t.Run("error flags", func(t *testing.T) {
		s := NewStore()
		errs := s.Errors()
		errs.ConnectChannel = "dial refused"
		s.SetErrors(errs)

		if got := s.Errors().ConnectChannel; got != "dial refused" {
			t.Fatalf("unexpected error flag: %q", got)
		}
	})
}
