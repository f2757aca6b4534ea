package funders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"nhooyr.io/websocket"
)

// ============================================================================
// Event vocabulary
// ============================================================================

// EventName identifies a chat channel event. The vocabulary is fixed:
// outbound intents plus inbound confirmations.
type EventName string

const (
	// Outbound intents.
	EventJoinChat      EventName = "join-chat"
	EventJoinChats     EventName = "join-chats"
	EventCreateMessage EventName = "create-message"
	EventEditMessage   EventName = "edit-message"
	EventRemoveMessage EventName = "remove-message"
	EventPinMessage    EventName = "pin-message"
	EventReadMessage   EventName = "read-message"
	EventReadMessages  EventName = "read-messages"

	// Inbound confirmations.
	EventReceiveCreatedMessage EventName = "receive-created-message"
	EventReceiveEditedMessage  EventName = "receive-edited-message"
	EventReceiveRemovedMessage EventName = "receive-removed-message"
	EventReceivePinnedMessage  EventName = "receive-pinned-message"
)

// channelEnvelope is the wire format for all channel events.
type channelEnvelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MessageEvent is the payload of every inbound Receive* event. The
// outbound create/edit/remove/pin intents send the bare ChatMessage.
type MessageEvent struct {
	Message ChatMessage `json:"message"`
}

// ReadMessageEvent is the payload of the read-message intent.
type ReadMessageEvent struct {
	AuthenticatedUser User        `json:"authenticatedUser"`
	Message           ChatMessage `json:"message"`
}

// EventHandler receives the raw payload of a channel event.
type EventHandler func(data json.RawMessage)

// ChannelState is the connection state of a Channel.
type ChannelState string

const (
	ChannelDisconnected ChannelState = "disconnected"
	ChannelConnected    ChannelState = "connected"
)

// ============================================================================
// Channel
// ============================================================================

// Channel is a single persistent real-time connection on the /chats
// namespace, tagged by user id. There is exactly one active channel per
// authenticated session. It does not reconnect on its own; reconnection is
// the caller's responsibility. It must be closed when the chat view goes
// away so no duplicate listeners leak.
type Channel struct {
	userID string

	mu               sync.Mutex
	conn             *websocket.Conn
	state            ChannelState
	intentionalClose bool
	cancelFn         context.CancelFunc

	handlerMu      sync.RWMutex
	handlers       map[EventName][]EventHandler
	onDisconnected []func(reason string)
}

// ConnectChannel dials the /chats namespace for the given user and starts
// the read loop. The connection authenticates with the client's ambient
// session credential.
func (c *Client) ConnectChannel(ctx context.Context, userID string) (*Channel, error) {
	wsURL := strings.Replace(c.baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/chats?userId=" + url.QueryEscape(userID)

	// The HTTP client's request timeout would cap the connection's
	// lifetime, so the dial uses the default client and the caller's ctx.
	opts := &websocket.DialOptions{}
	if c.sessionCookie != "" {
		opts.HTTPHeader = http.Header{"Cookie": []string{c.sessionCookie}}
	}

	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return nil, fmt.Errorf("channel dial: %w", err)
	}

	ch := &Channel{
		userID:   userID,
		conn:     conn,
		state:    ChannelConnected,
		handlers: make(map[EventName][]EventHandler),
	}

	connCtx, cancel := context.WithCancel(context.Background())
	ch.cancelFn = cancel
	go ch.readLoop(connCtx)

	return ch, nil
}

// UserID returns the user id the connection is tagged with.
func (ch *Channel) UserID() string {
	return ch.userID
}

// State returns the current connection state.
func (ch *Channel) State() ChannelState {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// On registers a handler for a channel event.
func (ch *Channel) On(event EventName, h EventHandler) {
	ch.handlerMu.Lock()
	ch.handlers[event] = append(ch.handlers[event], h)
	ch.handlerMu.Unlock()
}

// Off removes all handlers registered for a channel event.
func (ch *Channel) Off(event EventName) {
	ch.handlerMu.Lock()
	delete(ch.handlers, event)
	ch.handlerMu.Unlock()
}

// OnDisconnected registers a handler for unintentional connection loss.
func (ch *Channel) OnDisconnected(h func(reason string)) {
	ch.handlerMu.Lock()
	ch.onDisconnected = append(ch.onDisconnected, h)
	ch.handlerMu.Unlock()
}

// Emit sends an event over the channel.
func (ch *Channel) Emit(ctx context.Context, event EventName, payload any) error {
	ch.mu.Lock()
	conn := ch.conn
	ch.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("channel not connected")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(channelEnvelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, frame)
}

// JoinChat subscribes the connection to a single chat room.
func (ch *Channel) JoinChat(ctx context.Context, chatID string) error {
	return ch.Emit(ctx, EventJoinChat, chatID)
}

// JoinChats subscribes the connection to a set of chat rooms.
func (ch *Channel) JoinChats(ctx context.Context, chatIDs []string) error {
	return ch.Emit(ctx, EventJoinChats, chatIDs)
}

// Close gracefully tears the connection down and clears all registered
// handlers.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	ch.intentionalClose = true
	if ch.cancelFn != nil {
		ch.cancelFn()
		ch.cancelFn = nil
	}
	conn := ch.conn
	ch.conn = nil
	ch.state = ChannelDisconnected
	ch.mu.Unlock()

	ch.handlerMu.Lock()
	ch.handlers = make(map[EventName][]EventHandler)
	ch.onDisconnected = nil
	ch.handlerMu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	return nil
}

func (ch *Channel) readLoop(ctx context.Context) {
	for {
		ch.mu.Lock()
		conn := ch.conn
		ch.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			ch.mu.Lock()
			intentional := ch.intentionalClose
			ch.state = ChannelDisconnected
			ch.conn = nil
			ch.mu.Unlock()

			if !intentional {
				ch.emitDisconnected(err.Error())
			}
			return
		}

		var env channelEnvelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		ch.dispatch(env)
	}
}

// dispatch runs handlers synchronously so events are applied in arrival
// order; same-type duplicate delivery then hits the reconciliation
// idempotence checks deterministically.
func (ch *Channel) dispatch(env channelEnvelope) {
	ch.handlerMu.RLock()
	handlers := append([]EventHandler{}, ch.handlers[env.Event]...)
	ch.handlerMu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() { recover() }() // swallow panics in user callbacks
			h(env.Data)
		}()
	}
}

func (ch *Channel) emitDisconnected(reason string) {
	ch.handlerMu.RLock()
	handlers := append([]func(string){}, ch.onDisconnected...)
	ch.handlerMu.RUnlock()
	for _, h := range handlers {
		h(reason)
	}
}
