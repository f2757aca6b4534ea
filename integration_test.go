package funders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

// TestSessionLiveFlow drives a full session against a fake backend: load
// the chat list, connect the channel, open a chat, receive a pushed
// message, send an optimistic reply and read the inbound message.
func TestSessionLiveFlow(t *testing.T) {
	history := []ChatMessage{{
		ID: "m1", ChatID: "c1", AuthorID: "u2", Content: "welcome",
		Status: MessageStatusSent, CreatedAt: testBase, UpdatedAt: testBase,
	}}

	joined := make(chan string, 8)
	created := make(chan ChatMessage, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/chats/list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]ChatListItem{
			{ID: "c1", Type: ChatTypeGroup, CreatedAt: testBase, Messages: history, TotalUnreadMessages: 1},
			{ID: "c2", Type: ChatTypePrivate, CreatedAt: testBase.Add(-time.Hour)},
		})
	})
	mux.HandleFunc("/chats/c1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Chat{ID: "c1", Type: ChatTypeGroup, CreatedAt: testBase})
	})
	mux.HandleFunc("/chat-messages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(history)
		case http.MethodPost:
			require.NoError(t, r.ParseMultipartForm(1<<20))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(ChatMessage{
				ID: "srv-1", ChatID: "c1", AuthorID: "local",
				Content:   r.FormValue("content"),
				Status:    MessageStatusSent,
				CreatedAt: testBase.Add(2 * time.Minute),
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/chats", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "local", r.URL.Query().Get("userId"))
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept failed: %v", err)
			return
		}
		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var env channelEnvelope
			if json.Unmarshal(data, &env) != nil {
				continue
			}
			switch env.Event {
			case EventJoinChat:
				var id string
				_ = json.Unmarshal(env.Data, &id)
				joined <- id
				// Push a remote message once the chat room is joined.
				_ = sendEnvelope(ctx, conn, EventReceiveCreatedMessage, MessageEvent{
					Message: ChatMessage{
						ID: "m2", ChatID: "c1", AuthorID: "u2", Content: "pushed",
						Status: MessageStatusSent, CreatedAt: testBase.Add(time.Minute),
					},
				})
			case EventJoinChats:
				var ids []string
				_ = json.Unmarshal(env.Data, &ids)
				for _, id := range ids {
					joined <- id
				}
			case EventCreateMessage:
				var m ChatMessage
				_ = json.Unmarshal(env.Data, &m)
				created <- m
			}
		}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient("session=abc", WithBaseURL(srv.URL))
	s := NewChatSession(client, User{ID: "local", FirstName: "Local"})
	ctx := context.Background()

	list, err := s.LoadChatList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "c1", list[0].ID, "chat with the newest message sorts first")

	require.NoError(t, s.Connect(ctx))
	defer s.Close()

	// Connect joins every chat already in the list.
	require.Equal(t, "c1", <-joined)
	require.Equal(t, "c2", <-joined)

	_, err = s.OpenChat(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "c1", <-joined)

	require.Eventually(t, func() bool {
		return len(s.Store().Messages()) == 2
	}, 5*time.Second, 10*time.Millisecond, "pushed message never arrived")

	messages := s.Store().Messages()
	require.Equal(t, "m2", messages[0].ID)
	require.Equal(t, 2, s.Store().ChatList()[0].TotalUnreadMessages)

	// Optimistic send replaces its placeholder with the confirmed entity.
	sent, err := s.Submit(ctx, MessageDraft{Content: "thanks"})
	require.NoError(t, err)
	require.Equal(t, "srv-1", sent.ID)

	messages = s.Store().Messages()
	require.Len(t, messages, 3)
	require.Equal(t, "srv-1", messages[0].ID)

	// The broadcast carries the confirmed message as a bare payload.
	select {
	case broadcast := <-created:
		require.Equal(t, "srv-1", broadcast.ID)
		require.Equal(t, "thanks", broadcast.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("create-message broadcast never arrived")
	}

	// Reading the pushed message settles the unread counter.
	require.True(t, s.MessageVisible(ctx, "m2"))
	require.Equal(t, 1, s.Store().ChatList()[0].TotalUnreadMessages)
}
