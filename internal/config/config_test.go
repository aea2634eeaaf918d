package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := LoadConfig()

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "91", cfg.CountryCode)
	assert.Equal(t, "@every 30s", cfg.ContactsReload)
	assert.Equal(t, 2*time.Second, cfg.ReconnectBackoff)
	assert.Equal(t, time.Second, cfg.MediaDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.ContactDelay)
	assert.Equal(t, 20, cfg.MaxUploadMB)
	assert.Equal(t, "sqlite", cfg.DBDriver)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "8080")
	t.Setenv("RECONNECT_BACKOFF", "5s")
	t.Setenv("MAX_UPLOAD_MB", "50")
	t.Setenv("COUNTRY_CODE", "44")

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.ReconnectBackoff)
	assert.Equal(t, 50, cfg.MaxUploadMB)
	assert.Equal(t, "44", cfg.CountryCode)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MEDIA_DELAY", "soon")
	t.Setenv("MAX_UPLOAD_FILES", "many")

	assert.Equal(t, time.Second, getEnvDuration("MEDIA_DELAY", time.Second))
	assert.Equal(t, 20, getEnvInt("MAX_UPLOAD_FILES", 20))
}
