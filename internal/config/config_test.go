package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("JWT_SECRET", "test-jwt-secret-at-least-32-chars!!")
	t.Setenv("TOKEN_ENCRYPTION_KEY", "test-encryption-key-32-characters")
}

func TestLoad_Defaults(t *testing.T) {
	validEnv(t)
	c := Load()

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "https://oauth2.googleapis.com/token", c.GoogleTokenURL)
	assert.Equal(t, "https://www.googleapis.com/calendar/v3", c.CalendarBaseURL)
	assert.Equal(t, "-08:00", c.CalendarDefaultUTCOffset)
	assert.Equal(t, "sqlite", c.DatabaseType)
	assert.Equal(t, "*/15 * * * *", c.SweepSchedule)
	assert.Equal(t, 20*time.Minute, c.SweepLookaheadDuration())

	require.NoError(t, c.Validate())
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{name: "missing client id", unset: "GOOGLE_CLIENT_ID"},
		{name: "missing client secret", unset: "GOOGLE_CLIENT_SECRET"},
		{name: "missing jwt secret", unset: "JWT_SECRET"},
		{name: "missing encryption key", unset: "TOKEN_ENCRYPTION_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validEnv(t)
			t.Setenv(tt.unset, "")
			assert.Error(t, Load().Validate())
		})
	}
}

func TestValidate_ShortSecrets(t *testing.T) {
	validEnv(t)
	t.Setenv("JWT_SECRET", "short")
	assert.Error(t, Load().Validate())

	validEnv(t)
	t.Setenv("TOKEN_ENCRYPTION_KEY", "short")
	assert.Error(t, Load().Validate())
}

func TestValidate_DatabaseType(t *testing.T) {
	validEnv(t)
	t.Setenv("DATABASE_TYPE", "mongodb")
	assert.Error(t, Load().Validate())

	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_DB", "coursehub")
	t.Setenv("POSTGRES_USER", "coursehub")
	assert.NoError(t, Load().Validate())

	t.Setenv("POSTGRES_PORT", "not-a-port")
	assert.Error(t, Load().Validate())
}

func TestValidate_UTCOffset(t *testing.T) {
	validEnv(t)
	t.Setenv("CALENDAR_DEFAULT_UTC_OFFSET", "+02:00")
	assert.NoError(t, Load().Validate())

	t.Setenv("CALENDAR_DEFAULT_UTC_OFFSET", "Pacific")
	assert.Error(t, Load().Validate())
}

func TestValidate_SweepLookahead(t *testing.T) {
	validEnv(t)
	t.Setenv("TOKEN_SWEEP_LOOKAHEAD", "45m")
	c := Load()
	require.NoError(t, c.Validate())
	assert.Equal(t, 45*time.Minute, c.SweepLookaheadDuration())

	t.Setenv("TOKEN_SWEEP_LOOKAHEAD", "soonish")
	assert.Error(t, Load().Validate())
}
