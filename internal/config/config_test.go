package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SUPABASE_JWT_SECRET", "secret")

	cfg := LoadConfig()
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "*", cfg.Server.AllowedOrigins)
	assert.Equal(t, 10, cfg.Credits.RequestCost)
	assert.Equal(t, 10, cfg.Credits.SignupCredits)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, int64(10485760), cfg.Storage.MaxSize)
	assert.Equal(t, int64(40000000), cfg.Storage.MaxPixels)
	assert.Equal(t, 10*time.Second, cfg.Notify.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Redis.IdempotencyTTL)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Submission.RequireDescription)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "fallback")
	t.Setenv("CREDITS_REQUEST_COST", "25")
	t.Setenv("KAFKA_BROKER", "kafka:9092")
	t.Setenv("STORAGE_BACKEND", "MINIO")
	t.Setenv("MINIO_ACCESS_KEY", "ak")
	t.Setenv("MINIO_SECRET_KEY", "sk")
	t.Setenv("SUBMISSION_REQUIRE_DESCRIPTION", "true")
	t.Setenv("SERVER_MAX_REQUESTS", "not-a-number")
	t.Setenv("GO_ENV", "production")

	cfg := LoadConfig()
	assert.Equal(t, "fallback", cfg.JWT.Secret)
	assert.Equal(t, 25, cfg.Credits.RequestCost)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, BackendMinio, cfg.Storage.Backend)
	assert.True(t, cfg.Submission.RequireDescription)
	assert.Equal(t, 100, cfg.Server.MaxRequests, "unparsable values fall back to the default")
	assert.True(t, cfg.Server.Production())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Setenv("SUPABASE_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CREDITS_REQUEST_COST", "0")
	t.Setenv("STORAGE_BACKEND", "ftp")

	err := LoadConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "CREDITS_REQUEST_COST")
	assert.Contains(t, err.Error(), `unknown STORAGE_BACKEND "ftp"`)

	t.Setenv("SUPABASE_JWT_SECRET", "secret")
	t.Setenv("CREDITS_REQUEST_COST", "10")
	t.Setenv("STORAGE_BACKEND", "supabase")
	t.Setenv("SUPABASE_URL", "")
	assert.ErrorContains(t, LoadConfig().Validate(), "SUPABASE_URL")
}
