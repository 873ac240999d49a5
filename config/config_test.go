package config

import (
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileGroups(t *testing.T) {
	path := writeJSON(t, `{
		"app": {"appPort": "8080", "tokenTTLHours": 24, "allowedOrigins": ["https://a.example"]},
		"database": {"driver": "postgres", "dbHost": "db", "dbName": "memo"},
		"storage": {"backend": "s3", "bucket": "audio", "maxUploadMB": 10},
		"checkin": {"timeZone": "Asia/Taipei", "selfCheckinRequiresRecording": false},
		"admin": {"name": "root"}
	}`)

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, 24, c.TokenTTLHours)
	assert.Equal(t, []string{"https://a.example"}, c.AllowedOrigins)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "db", c.DBHost)
	assert.Equal(t, "s3", c.StorageBackend)
	assert.Equal(t, "audio", c.StorageBucket)
	assert.Equal(t, 10, c.MaxUploadMB)
	assert.Equal(t, "Asia/Taipei", c.TimeZone)
	assert.False(t, c.SelfCheckinRequiresRecording)
	assert.True(t, c.AllowStudentSelfCheckin, "absent flag keeps the default")
	assert.Equal(t, "root", c.AdminName)
}

func TestLoadFileMissing(t *testing.T) {
	c, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.True(t, c.SelfCheckinRequiresRecording)
	assert.True(t, c.AllowStudentSelfCheckin)
}

func TestDefaults(t *testing.T) {
	var c AppConfig
	applyDefaults(&c)
	assert.Equal(t, "3001", c.AppPort)
	assert.Equal(t, 168, c.TokenTTLHours)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "data/app.db", c.SQLitePath)
	assert.Equal(t, "local", c.StorageBackend)
	assert.Equal(t, "", c.StoragePrefix)
	assert.Equal(t, int64(25<<20), c.MaxUploadBytes())
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.Equal(t, "admin", c.AdminName)

	s3 := AppConfig{StorageBackend: "s3"}
	applyDefaults(&s3)
	assert.Equal(t, "recordings/", s3.StoragePrefix)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("REDIS_PORT", "not-a-number")
	t.Setenv("SELF_CHECKIN_REQUIRES_RECORDING", "false")
	t.Setenv("CHECKIN_TIME_ZONE", "Europe/Berlin")
	t.Setenv("USER_DATA_DIR", "/var/lib/memo")

	c := AppConfig{RedisPort: 6379, SelfCheckinRequiresRecording: true}
	applyEnvOverrides(&c)
	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, "s3cret", c.JWTSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.Equal(t, 6379, c.RedisPort, "unparsable numbers are ignored")
	assert.False(t, c.SelfCheckinRequiresRecording)
	assert.Equal(t, "Europe/Berlin", c.TimeZone)
	assert.Equal(t, "/var/lib/memo", c.StorageDir)
}

func TestLocationFallsBack(t *testing.T) {
	assert.Equal(t, "Asia/Taipei", AppConfig{TimeZone: "Asia/Taipei"}.Location().String())
	assert.Equal(t, "Local", AppConfig{TimeZone: "Mars/Olympus"}.Location().String())
}
