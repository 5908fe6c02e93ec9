package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"kabinet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("KABINET_TEST_TOKEN", "test_token")

	yamlContent := `
telegram:
  bot_token: "${KABINET_TEST_TOKEN}"
admins: [42]
database:
  path: "test.db"
bot:
  broadcast_batch_delay: 2s
links:
  channel: "https://t.me/channel"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "test_token", cfg.Telegram.BotToken)
	assert.Equal(t, []int64{42}, cfg.Admins)
	assert.Equal(t, 2*time.Second, cfg.Bot.BroadcastBatchDelay)
	assert.Equal(t, models.DefaultMaxBookingsPerUser, cfg.Bot.MaxBookingsPerUser)
	assert.Equal(t, "https://t.me/channel", cfg.Links.Channel)
	assert.Zero(t, cfg.State.TTL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Telegram: TelegramConfig{BotToken: "token"},
				Database: DatabaseConfig{Path: "path"},
				Bot:      BotConfig{MaxBookingsPerUser: 3},
				Admins:   []int64{1},
			},
			wantErr: false,
		},
		{
			name: "missing token",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Bot:      BotConfig{MaxBookingsPerUser: 3},
			},
			wantErr: true,
		},
		{
			name: "placeholder token",
			cfg: Config{
				Telegram: TelegramConfig{BotToken: "YOUR_BOT_TOKEN_HERE"},
				Database: DatabaseConfig{Path: "path"},
				Bot:      BotConfig{MaxBookingsPerUser: 3},
			},
			wantErr: true,
		},
		{
			name: "zero booking cap",
			cfg: Config{
				Telegram: TelegramConfig{BotToken: "token"},
				Database: DatabaseConfig{Path: "path"},
			},
			wantErr: true,
		},
		{
			name: "duplicate admin id",
			cfg: Config{
				Telegram: TelegramConfig{BotToken: "token"},
				Database: DatabaseConfig{Path: "path"},
				Bot:      BotConfig{MaxBookingsPerUser: 3},
				Admins:   []int64{7, 7},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, models.DefaultMaxBookingsPerUser, cfg.Bot.MaxBookingsPerUser)
	assert.Equal(t, models.BroadcastBatchSize, cfg.Bot.BroadcastBatchSize)
	assert.Equal(t, models.BroadcastBatchDelay, cfg.Bot.BroadcastBatchDelay)
	assert.Equal(t, models.RateLimitMessages, cfg.Bot.RateLimitMessages)
	assert.Equal(t, ":8080", cfg.API.Address)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, 24*time.Hour, cfg.Backup.Interval)
}

func TestGoogleEnabled(t *testing.T) {
	assert.False(t, GoogleConfig{}.Enabled())
	assert.False(t, GoogleConfig{CredentialsFile: "creds.json"}.Enabled())
	assert.True(t, GoogleConfig{CredentialsFile: "creds.json", BookingSpreadsheetID: "sheet"}.Enabled())
}
