package main

import (
	"fmt"
	"os"

	funders "github.com/funders-app/funders-go"
)

// getSession creates a chat session for the stored credentials.
func getSession() *funders.ChatSession {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.SessionCookie == "" || cfg.Auth.UserID == "" {
		fmt.Fprintln(os.Stderr, "No session. Run 'funders-chat login <user-id> <session-cookie>' first.")
		os.Exit(1)
	}

	var opts []funders.ClientOption
	if cfg.Default.BaseURL != "" {
		opts = append(opts, funders.WithBaseURL(cfg.Default.BaseURL))
	}

	client := funders.NewClient(cfg.Auth.SessionCookie, opts...)
	return funders.NewChatSession(client, funders.User{
		ID:        cfg.Auth.UserID,
		Email:     cfg.Auth.Email,
		FirstName: cfg.Auth.FirstName,
		LastName:  cfg.Auth.LastName,
	})
}

// messageLine formats a message for terminal output.
func messageLine(m funders.ChatMessage) string {
	author := m.AuthorID
	if m.Author != nil && m.Author.FirstName != "" {
		author = m.Author.FirstName + " " + m.Author.LastName
	}
	pin := ""
	if m.IsPinned {
		pin = " [pinned]"
	}
	return fmt.Sprintf("%s  %-20s %s%s", m.CreatedAt.Format("2006-01-02 15:04"), author, m.Content, pin)
}
