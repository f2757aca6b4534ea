package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	loginEmail     string
	loginFirstName string
	loginLastName  string
)

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginFirstName, "first-name", "", "account first name")
	loginCmd.Flags().StringVar(&loginLastName, "last-name", "", "account last name")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <user-id> <session-cookie>",
	Short: "Store a session in ~/.funders/config.toml",
	Long:  "Store an authenticated session for the chat CLI.\nObtain the session cookie from a logged-in Funders web session.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, cookie := args[0], args[1]

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg.Auth.UserID = userID
		cfg.Auth.SessionCookie = cookie
		cfg.Auth.Email = loginEmail
		cfg.Auth.FirstName = loginFirstName
		cfg.Auth.LastName = loginLastName

		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		path, _ := configPath()
		fmt.Printf("Session for user %s saved to %s\n", userID, path)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg.Auth = ConfigAuth{}

		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Println("Session cleared.")
		return nil
	},
}
