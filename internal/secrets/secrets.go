// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text
// files and from dotenv files. In the secrets directory, each file is one
// secret: the filename is the key name and the trimmed contents the value.
//
// Recognized key files: anthropic-api-key, openai-api-key, telegram-bot-token,
// telegram-chat-id, pushover-user-key, pushover-api-token, webhook-url.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "err", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadEnv loads each existing dotenv file into the process environment,
// in order. Variables already set are not overridden, so earlier files win
// over later ones and the real environment wins over all. Missing files are
// skipped. It returns the files that were loaded.
func LoadEnv(paths ...string) ([]string, error) {
	var loaded []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("stat %s: %w", p, err)
		}
		if err := godotenv.Load(p); err != nil {
			return loaded, fmt.Errorf("loading %s: %w", p, err)
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// Apply fills credentials in cfg that are still empty from the secrets map.
// Values set through config or environment take precedence.
func Apply(cfg *types.Config, s map[string]string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = s[key]
		}
	}
	switch cfg.AI.Provider {
	case types.ProviderOpenAI:
		fill(&cfg.AI.APIKey, "openai-api-key")
	default:
		fill(&cfg.AI.APIKey, "anthropic-api-key")
	}
	fill(&cfg.Notify.TelegramBotToken, "telegram-bot-token")
	fill(&cfg.Notify.TelegramChatID, "telegram-chat-id")
	fill(&cfg.Notify.PushoverUserKey, "pushover-user-key")
	fill(&cfg.Notify.PushoverAPIToken, "pushover-api-token")
	fill(&cfg.Notify.WebhookURL, "webhook-url")
}
