// Package funders provides the Go client SDK for the Funders chat
// subsystem: the backend HTTP API, the real-time chat channel, and the
// client-side state core (message store, optimistic send pipeline, event
// reconciliation, read receipts).
//
// Example:
//
//	client := funders.NewClient("session=...", funders.WithBaseURL("https://api.funders.dev"))
//	session := funders.NewChatSession(client, user)
//
//	if err := session.Connect(ctx); err != nil { ... }
//	defer session.Close()
//
//	session.LoadChatList(ctx)
//	session.OpenChat(ctx, chatID)
//	session.Submit(ctx, funders.MessageDraft{Content: "hello"})
package funders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.funders.dev"
	DefaultTimeout = 30 * time.Second
)

// removedAtLayout is the timestamp format the backend accepts for the
// removedAt form field (second precision, no zone suffix).
const removedAtLayout = "2006-01-02T15:04:05"

// ============================================================================
// Client
// ============================================================================

// Client talks to the Funders backend REST API. All requests carry the
// ambient session credential it was constructed with.
type Client struct {
	sessionCookie string
	baseURL       string
	httpClient    *http.Client
}

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient creates a new Funders API client. sessionCookie is the session
// credential in "name=value" form. Pass "" for anonymous requests.
func NewClient(sessionCookie string, opts ...ClientOption) *Client {
	c := &Client{
		sessionCookie: sessionCookie,
		baseURL:       DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetSessionCookie sets or updates the session credential, e.g. after the
// external auth collaborator refreshed it.
func (c *Client) SetSessionCookie(cookie string) {
	c.sessionCookie = cookie
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ============================================================================
// Internal request helpers
// ============================================================================

func (c *Client) doRequest(ctx context.Context, method, path string, query Query, body io.Reader, contentType string, wantStatus int) ([]byte, error) {
	u := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.sessionCookie != "" {
		req.Header.Set("Cookie", c.sessionCookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return nil, apiErrorFromResponse(resp.StatusCode, data)
	}
	return data, nil
}

func apiErrorFromResponse(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	apiErr.StatusCode = status
	return apiErr
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// ============================================================================
// Chats API
// ============================================================================

// ListUserChats fetches the authenticated user's chat list.
// GET /chats/list
func (c *Client) ListUserChats(ctx context.Context, query Query) ([]ChatListItem, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/chats/list", query, nil, "", http.StatusOK)
	if err != nil {
		return nil, err
	}
	list, err := decodeJSON[[]ChatListItem](data)
	if err != nil {
		return nil, err
	}
	return *list, nil
}

// GetChat fetches a single chat by id.
// GET /chats/:id
func (c *Client) GetChat(ctx context.Context, id string, query Query) (*Chat, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/chats/"+id, query, nil, "", http.StatusOK)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Chat](data)
}

// ============================================================================
// Chat Messages API
// ============================================================================

// AttachmentUpload is a file submitted with a new message.
type AttachmentUpload struct {
	Filename string
	Content  []byte
}

// CreateMessageInput is the multipart payload for POST /chat-messages.
type CreateMessageInput struct {
	AuthorID        string
	ChatID          string
	Content         string
	ParentMessageID string
	Attachments     []AttachmentUpload
}

// UpdateMessageInput is the multipart payload for PUT /chat-messages/:id.
// Only non-nil fields are sent.
type UpdateMessageInput struct {
	Content   *string
	IsPinned  *bool
	RemovedAt *time.Time
}

// ListChatMessages fetches messages matching the query.
// GET /chat-messages
func (c *Client) ListChatMessages(ctx context.Context, query Query) ([]ChatMessage, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/chat-messages", query, nil, "", http.StatusOK)
	if err != nil {
		return nil, err
	}
	messages, err := decodeJSON[[]ChatMessage](data)
	if err != nil {
		return nil, err
	}
	return *messages, nil
}

// CreateChatMessage creates a new message, uploading any attachments.
// POST /chat-messages, expects 201.
func (c *Client) CreateChatMessage(ctx context.Context, input *CreateMessageInput) (*ChatMessage, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	_ = w.WriteField("authorId", input.AuthorID)
	_ = w.WriteField("chatId", input.ChatID)
	_ = w.WriteField("content", input.Content)
	if input.ParentMessageID != "" {
		_ = w.WriteField("parentMessageId", input.ParentMessageID)
	}
	for _, attachment := range input.Attachments {
		part, err := w.CreateFormFile("attachments", attachment.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(attachment.Content); err != nil {
			return nil, fmt.Errorf("failed to write attachment data: %w", err)
		}
	}
	_ = w.Close()

	data, err := c.doRequest(ctx, http.MethodPost, "/chat-messages", nil, &buf, w.FormDataContentType(), http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return decodeJSON[ChatMessage](data)
}

// UpdateChatMessage updates a message's content, pin state, or removal
// timestamp. PUT /chat-messages/:id, expects 200.
func (c *Client) UpdateChatMessage(ctx context.Context, id string, input *UpdateMessageInput) (*ChatMessage, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if input.Content != nil {
		_ = w.WriteField("content", *input.Content)
	}
	if input.IsPinned != nil {
		_ = w.WriteField("isPinned", fmt.Sprintf("%t", *input.IsPinned))
	}
	if input.RemovedAt != nil {
		_ = w.WriteField("removedAt", input.RemovedAt.UTC().Format(removedAtLayout))
	}
	_ = w.Close()

	data, err := c.doRequest(ctx, http.MethodPut, "/chat-messages/"+id, nil, &buf, w.FormDataContentType(), http.StatusOK)
	if err != nil {
		return nil, err
	}
	return decodeJSON[ChatMessage](data)
}

// DeleteChatMessage permanently deletes a message.
// DELETE /chat-messages/:id, expects 200 with the deleted entity.
func (c *Client) DeleteChatMessage(ctx context.Context, id string) (*ChatMessage, error) {
	data, err := c.doRequest(ctx, http.MethodDelete, "/chat-messages/"+id, nil, nil, "", http.StatusOK)
	if err != nil {
		return nil, err
	}
	return decodeJSON[ChatMessage](data)
}
