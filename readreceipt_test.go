package funders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessageVisible(t *testing.T) {
	t.Run("first sighting reads and decrements once", func(t *testing.T) {
		m := testMessage("m1", "c1", "remote", time.Minute)
		s := newOpenSession(m)
		list := s.store.ChatList()
		list[0].TotalUnreadMessages = 3
		s.store.SetChatList(list)

		require.True(t, s.MessageVisible(context.Background(), "m1"))
		require.Equal(t, MessageStatusRead, s.store.Messages()[0].Status)
		require.Equal(t, 2, s.store.ChatList()[0].TotalUnreadMessages)
		require.Equal(t, MessageStatusRead, s.store.ChatList()[0].Messages[0].Status)

		// Repeat sightings must not decrement further.
		require.False(t, s.MessageVisible(context.Background(), "m1"))
		require.Equal(t, 2, s.store.ChatList()[0].TotalUnreadMessages)
	})

	t.Run("own messages are skipped", func(t *testing.T) {
		m := testMessage("m1", "c1", "local", time.Minute)
		s := newOpenSession(m)

		require.False(t, s.MessageVisible(context.Background(), "m1"))
		require.Equal(t, MessageStatusSent, s.store.Messages()[0].Status)
	})

	t.Run("unknown message is a no-op", func(t *testing.T) {
		s := newOpenSession()
		require.False(t, s.MessageVisible(context.Background(), "ghost"))
	})

	t.Run("counter floors at zero", func(t *testing.T) {
		m := testMessage("m1", "c1", "remote", time.Minute)
		s := newOpenSession(m)

		require.True(t, s.MessageVisible(context.Background(), "m1"))
		require.Zero(t, s.store.ChatList()[0].TotalUnreadMessages)
	})
}

func TestMarkChatRead(t *testing.T) {
	m1 := testMessage("m1", "c1", "remote", time.Minute)
	m2 := testMessage("m2", "c1", "remote", 2*time.Minute)
	mine := testMessage("m3", "c1", "local", 3*time.Minute)
	read := testMessage("m4", "c1", "remote", 4*time.Minute)
	read.Status = MessageStatusRead

	s := newOpenSession(read, mine, m2, m1)
	list := s.store.ChatList()
	list[0].TotalUnreadMessages = 2
	s.store.SetChatList(list)

	require.Equal(t, 2, s.MarkChatRead(context.Background()))
	require.Zero(t, s.store.ChatList()[0].TotalUnreadMessages)
	for _, m := range s.store.Messages() {
		if m.AuthorID == "local" {
			require.Equal(t, MessageStatusSent, m.Status, "own messages keep their status")
		} else {
			require.Equal(t, MessageStatusRead, m.Status)
		}
	}

	// Second pass finds nothing left to read.
	require.Zero(t, s.MarkChatRead(context.Background()))
}
