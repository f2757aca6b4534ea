package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// ============================================================================
// Config types
// ============================================================================

// Config represents the CLI configuration stored in ~/.funders/config.toml.
type Config struct {
	Default ConfigDefault `toml:"default"`
	Auth    ConfigAuth    `toml:"auth"`
}

// ConfigDefault holds general client settings.
type ConfigDefault struct {
	BaseURL string `toml:"base_url"`
}

// ConfigAuth holds the authenticated session state.
type ConfigAuth struct {
	SessionCookie string `toml:"session_cookie"`
	UserID        string `toml:"user_id"`
	Email         string `toml:"email"`
	FirstName     string `toml:"first_name"`
	LastName      string `toml:"last_name"`
}

// ============================================================================
// Config helpers
// ============================================================================

// configPath resolves ~/.funders/config.toml, creating the directory on
// first use.
func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".funders")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, "config.toml"), nil
}

// loadConfig parses the config file. A missing file is not an error; it
// yields an empty config so first-run commands work.
func loadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return &cfg, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// saveConfig writes the config back as TOML, readable by the owner only
// since it holds the session cookie.
func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// configFields maps dot-notation keys ("auth.user_id") to their setters.
var configFields = map[string]func(*Config, string){
	"default.base_url":    func(c *Config, v string) { c.Default.BaseURL = v },
	"auth.session_cookie": func(c *Config, v string) { c.Auth.SessionCookie = v },
	"auth.user_id":        func(c *Config, v string) { c.Auth.UserID = v },
	"auth.email":          func(c *Config, v string) { c.Auth.Email = v },
	"auth.first_name":     func(c *Config, v string) { c.Auth.FirstName = v },
	"auth.last_name":      func(c *Config, v string) { c.Auth.LastName = v },
}

func setConfigValue(cfg *Config, key, value string) error {
	set, ok := configFields[key]
	if !ok {
		known := make([]string, 0, len(configFields))
		for k := range configFields {
			known = append(known, k)
		}
		sort.Strings(known)
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(known, ", "))
	}
	set(cfg, value)
	return nil
}

// ============================================================================
// Root command
// ============================================================================

var rootCmd = &cobra.Command{
	Use:   "funders-chat",
	Short: "Funders chat CLI",
	Long:  "Command-line interface for the Funders real-time chat.\nManage configuration, browse chats, send messages, and watch live events.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
