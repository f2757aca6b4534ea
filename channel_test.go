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

// newChannelServer runs a websocket endpoint and hands each accepted
// connection to serve on its own goroutine.
func newChannelServer(t *testing.T, serve func(ctx context.Context, conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept failed: %v", err)
			return
		}
		serve(r.Context(), conn, r)
	}))
}

func sendEnvelope(ctx context.Context, conn *websocket.Conn, event EventName, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(channelEnvelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, frame)
}

// ============================================================================
// Connect
// ============================================================================

func TestConnectChannel(t *testing.T) {
	t.Run("dial carries user id and session cookie", func(t *testing.T) {
		got := make(chan *http.Request, 1)
		srv := newChannelServer(t, func(ctx context.Context, conn *websocket.Conn, r *http.Request) {
			got <- r
			conn.CloseRead(ctx)
		})
		defer srv.Close()

		client := NewClient("session=abc", WithBaseURL(srv.URL))
		ch, err := client.ConnectChannel(context.Background(), "u1")
		require.NoError(t, err)
		defer ch.Close()

		r := <-got
		require.Equal(t, "/chats", r.URL.Path)
		require.Equal(t, "u1", r.URL.Query().Get("userId"))
		require.Equal(t, "session=abc", r.Header.Get("Cookie"))
		require.Equal(t, ChannelConnected, ch.State())
		require.Equal(t, "u1", ch.UserID())
	})

	t.Run("dial failure is returned", func(t *testing.T) {
		client := NewClient("session=abc", WithBaseURL("http://127.0.0.1:1"))
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err := client.ConnectChannel(ctx, "u1")
		require.Error(t, err)
	})
}

// ============================================================================
// Emit / dispatch
// ============================================================================

func TestChannelEmit(t *testing.T) {
	frames := make(chan channelEnvelope, 4)
	srv := newChannelServer(t, func(ctx context.Context, conn *websocket.Conn, r *http.Request) {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var env channelEnvelope
			if json.Unmarshal(data, &env) == nil {
				frames <- env
			}
		}
	})
	defer srv.Close()

	client := NewClient("session=abc", WithBaseURL(srv.URL))
	ch, err := client.ConnectChannel(context.Background(), "u1")
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.JoinChats(context.Background(), []string{"c1", "c2"}))
	require.NoError(t, ch.Emit(context.Background(), EventCreateMessage,
		ChatMessage{ID: "m1", ChatID: "c1", Content: "hi"}))

	env := <-frames
	require.Equal(t, EventJoinChats, env.Event)
	var ids []string
	require.NoError(t, json.Unmarshal(env.Data, &ids))
	require.Equal(t, []string{"c1", "c2"}, ids)

	// Outbound intents carry the bare message, no {"message": ...} wrapper.
	env = <-frames
	require.Equal(t, EventCreateMessage, env.Event)
	var msg ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	require.Equal(t, "m1", msg.ID)
	require.Equal(t, "hi", msg.Content)
}

func TestChannelDispatch(t *testing.T) {
	t.Run("handlers run in arrival order", func(t *testing.T) {
		srv := newChannelServer(t, func(ctx context.Context, conn *websocket.Conn, r *http.Request) {
			for i := 1; i <= 3; i++ {
				msg := ChatMessage{ID: string(rune('0' + i)), ChatID: "c1"}
				if err := sendEnvelope(ctx, conn, EventReceiveCreatedMessage, MessageEvent{Message: msg}); err != nil {
					return
				}
			}
			conn.CloseRead(ctx)
		})
		defer srv.Close()

		client := NewClient("session=abc", WithBaseURL(srv.URL))
		ch, err := client.ConnectChannel(context.Background(), "u1")
		require.NoError(t, err)
		defer ch.Close()

		done := make(chan []string, 1)
		var order []string
		ch.On(EventReceiveCreatedMessage, func(data json.RawMessage) {
			var ev MessageEvent
			require.NoError(t, json.Unmarshal(data, &ev))
			order = append(order, ev.Message.ID)
			if len(order) == 3 {
				done <- order
			}
		})

		select {
		case got := <-done:
			require.Equal(t, []string{"1", "2", "3"}, got)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	})

	t.Run("off removes handlers", func(t *testing.T) {
		release := make(chan struct{})
		srv := newChannelServer(t, func(ctx context.Context, conn *websocket.Conn, r *http.Request) {
			<-release
			_ = sendEnvelope(ctx, conn, EventReceivePinnedMessage, MessageEvent{Message: ChatMessage{ID: "m1"}})
			_ = sendEnvelope(ctx, conn, EventReceiveEditedMessage, MessageEvent{Message: ChatMessage{ID: "m2"}})
			conn.CloseRead(ctx)
		})
		defer srv.Close()

		client := NewClient("session=abc", WithBaseURL(srv.URL))
		ch, err := client.ConnectChannel(context.Background(), "u1")
		require.NoError(t, err)
		defer ch.Close()

		pinned := make(chan struct{}, 1)
		edited := make(chan struct{}, 1)
		ch.On(EventReceivePinnedMessage, func(json.RawMessage) { pinned <- struct{}{} })
		ch.On(EventReceiveEditedMessage, func(json.RawMessage) { edited <- struct{}{} })
		ch.Off(EventReceivePinnedMessage)
		close(release)

		select {
		case <-edited:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for edited event")
		}
		select {
		case <-pinned:
			t.Fatal("handler fired after Off")
		default:
		}
	})
}

// ============================================================================
// Disconnect
// ============================================================================

func TestChannelDisconnect(t *testing.T) {
	t.Run("server close reports a disconnect", func(t *testing.T) {
		srv := newChannelServer(t, func(ctx context.Context, conn *websocket.Conn, r *http.Request) {
			conn.Close(websocket.StatusGoingAway, "shutting down")
		})
		defer srv.Close()

		client := NewClient("session=abc", WithBaseURL(srv.URL))
		ch, err := client.ConnectChannel(context.Background(), "u1")
		require.NoError(t, err)
		defer ch.Close()

		dropped := make(chan string, 1)
		ch.OnDisconnected(func(reason string) { dropped <- reason })

		select {
		case reason := <-dropped:
			require.NotEmpty(t, reason)
			require.Equal(t, ChannelDisconnected, ch.State())
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for disconnect")
		}
	})

	t.Run("intentional close stays quiet", func(t *testing.T) {
		srv := newChannelServer(t, func(ctx context.Context, conn *websocket.Conn, r *http.Request) {
			// Keep the connection alive until the client's close handshake
			// completes; returning early would cancel r.Context() and abort
			// the underlying connection mid-handshake.
			<-conn.CloseRead(ctx).Done()
		})
		defer srv.Close()

		client := NewClient("session=abc", WithBaseURL(srv.URL))
		ch, err := client.ConnectChannel(context.Background(), "u1")
		require.NoError(t, err)

		dropped := make(chan string, 1)
		ch.OnDisconnected(func(reason string) { dropped <- reason })
		require.NoError(t, ch.Close())
		require.Equal(t, ChannelDisconnected, ch.State())

		select {
		case <-dropped:
			t.Fatal("Close must not fire the disconnect handler")
		case <-time.After(200 * time.Millisecond):
		}

		require.Error(t, ch.Emit(context.Background(), EventJoinChat, "c1"))
	})
}
