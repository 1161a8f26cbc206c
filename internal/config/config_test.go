package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ADMIN_EMAIL", "")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0 6 * * *", cfg.Scheduler.IngestCron)
	assert.Equal(t, "0 9 * * *", cfg.Scheduler.ReminderCron)
	assert.Equal(t, "0 10 * * 1", cfg.Scheduler.ReportCron)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, 30*time.Second, cfg.SMTP.Timeout)
	assert.Equal(t, "KDP Global Enterprises", cfg.Sender.CompanyName)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 9000
database:
  url: postgres://file/db
scheduler:
  auto_follow_up: true
sender:
  name: Pat
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("ADMIN_SECRET", "s3cret")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "s3cret", cfg.Admin.Secret)
	assert.Equal(t, "Pat", cfg.Sender.Name)
	assert.True(t, cfg.Scheduler.AutoFollowUp)
}

func TestLoad_RejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(LogConfig{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	fallback := NewLogger(LogConfig{Level: "loud"})
	assert.Equal(t, logrus.InfoLevel, fallback.GetLevel())
}
