package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	funders "github.com/funders-app/funders-go"
	"github.com/spf13/cobra"
)

var (
	sendReplyTo string
	sendAttach  []string

	messagesLimit int
)

func init() {
	sendCmd.Flags().StringVar(&sendReplyTo, "reply-to", "", "message id to reply to")
	sendCmd.Flags().StringSliceVar(&sendAttach, "attach", nil, "file(s) to attach")
	messagesCmd.Flags().IntVar(&messagesLimit, "limit", 0, "show at most N messages")

	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(watchCmd)
}

// ============================================================================
// chats
// ============================================================================

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List your chats, newest activity first",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := getSession()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		list, err := sess.LoadChatList(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No chats found.")
			return nil
		}

		for _, item := range list {
			preview := ""
			if len(item.Messages) > 0 {
				preview = item.Messages[0].Content
			}
			unread := ""
			if item.TotalUnreadMessages > 0 {
				unread = fmt.Sprintf(" (%d unread)", item.TotalUnreadMessages)
			}
			fmt.Printf("%s  %-25s %s%s\n", item.ID, item.Name, preview, unread)
		}
		return nil
	},
}

// ============================================================================
// messages
// ============================================================================

var messagesCmd = &cobra.Command{
	Use:   "messages <chat-id>",
	Short: "Show the message history of a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := getSession()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if _, err := sess.OpenChat(ctx, args[0]); err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		messages := sess.Store().Messages()
		if len(messages) == 0 {
			fmt.Println("No messages found.")
			return nil
		}
		if messagesLimit > 0 && len(messages) > messagesLimit {
			messages = messages[:messagesLimit]
		}

		// History is held newest first; print oldest first.
		for i := len(messages) - 1; i >= 0; i-- {
			fmt.Println(messageLine(messages[i]))
		}
		return nil
	},
}

// ============================================================================
// send
// ============================================================================

var sendCmd = &cobra.Command{
	Use:   "send <chat-id> <text>",
	Short: "Send a message to a chat",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, text := args[0], args[1]
		sess := getSession()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := sess.OpenChat(ctx, chatID); err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if sendReplyTo != "" {
			messages := sess.Store().Messages()
			found := false
			for i := range messages {
				if messages[i].ID == sendReplyTo {
					sess.SetReplyTo(&messages[i])
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("message %s not found in chat %s", sendReplyTo, chatID)
			}
		}

		draft := funders.MessageDraft{Content: text}
		for _, path := range sendAttach {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("cannot read attachment: %w", err)
			}
			draft.Attachments = append(draft.Attachments, funders.AttachmentUpload{
				Filename: filepath.Base(path),
				Content:  data,
			})
		}

		msg, err := sess.Submit(ctx, draft)
		if err != nil {
			return fmt.Errorf("send failed: %w", err)
		}

		fmt.Printf("Message sent to chat %s\n", chatID)
		fmt.Printf("  Message ID: %s\n", msg.ID)
		fmt.Printf("  Content:    %s\n", msg.Content)
		return nil
	},
}

// ============================================================================
// pin / remove
// ============================================================================

var pinCmd = &cobra.Command{
	Use:   "pin <chat-id> <message-id>",
	Short: "Toggle a message's pinned state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, messageID := args[0], args[1]
		sess := getSession()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		msg, err := openAndFind(ctx, sess, chatID, messageID)
		if err != nil {
			return err
		}

		updated, err := sess.TogglePin(ctx, *msg)
		if err != nil {
			return fmt.Errorf("pin failed: %w", err)
		}

		if updated.IsPinned {
			fmt.Printf("Pinned message %s\n", updated.ID)
		} else {
			fmt.Printf("Unpinned message %s\n", updated.ID)
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <chat-id> <message-id>",
	Short: "Remove a message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, messageID := args[0], args[1]
		sess := getSession()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		msg, err := openAndFind(ctx, sess, chatID, messageID)
		if err != nil {
			return err
		}

		if _, err := sess.Remove(ctx, *msg); err != nil {
			return fmt.Errorf("remove failed: %w", err)
		}

		fmt.Printf("Removed message %s\n", messageID)
		return nil
	},
}

func openAndFind(ctx context.Context, sess *funders.ChatSession, chatID, messageID string) (*funders.ChatMessage, error) {
	if _, err := sess.OpenChat(ctx, chatID); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	messages := sess.Store().Messages()
	for i := range messages {
		if messages[i].ID == messageID {
			return &messages[i], nil
		}
	}
	return nil, fmt.Errorf("message %s not found in chat %s", messageID, chatID)
}

// ============================================================================
// watch
// ============================================================================

var watchCmd = &cobra.Command{
	Use:   "watch <chat-id>",
	Short: "Stream live events for a chat",
	Long:  "Connect to the real-time channel, open the chat, and print inbound events until interrupted. Messages scrolling by are acknowledged as read.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID := args[0]
		sess := getSession()

		ctx := context.Background()
		if err := sess.Connect(ctx); err != nil {
			return fmt.Errorf("connect failed: %w", err)
		}
		defer sess.Close()

		if _, err := sess.LoadChatList(ctx); err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if _, err := sess.OpenChat(ctx, chatID); err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		ch := sess.Channel()
		printEvent := func(label string) funders.EventHandler {
			return func(data json.RawMessage) {
				var ev funders.MessageEvent
				if json.Unmarshal(data, &ev) != nil {
					return
				}
				fmt.Printf("[%s] %s\n", label, messageLine(ev.Message))
				sess.MessageVisible(ctx, ev.Message.ID)
			}
		}
		ch.On(funders.EventReceiveCreatedMessage, printEvent("new"))
		ch.On(funders.EventReceiveEditedMessage, printEvent("edit"))
		ch.On(funders.EventReceiveRemovedMessage, printEvent("removed"))
		ch.On(funders.EventReceivePinnedMessage, printEvent("pin"))
		ch.OnDisconnected(func(reason string) {
			fmt.Fprintf(os.Stderr, "Disconnected: %s\n", reason)
		})

		fmt.Printf("Watching chat %s (Ctrl-C to stop)...\n", chatID)
		sess.MarkChatRead(ctx)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		return nil
	},
}
