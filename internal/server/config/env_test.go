package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":9090")
	t.Setenv("DB_MAX_OPEN_CONNS", "25")
	t.Setenv("ACCESS_TOKEN_TTL", "1h")
	t.Setenv("SMTP_USER", "mailer")
	t.Setenv("SMTP_PASSWORD", "pw")
	t.Setenv("MAIL_FROM", "team@example.com")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	expected := Config{}
	expected.LoadDefaults()
	expected.EndpointAddrHTTP = ":9090"
	expected.MaxOpenConns = 25
	expected.AccessTokenValidityDuration = time.Hour
	expected.SMTPUser = "mailer"
	expected.SMTPPassword = "pw"
	expected.MailFrom = "team@example.com"

	assert.Empty(t, cmp.Diff(expected, c))
}

func TestParseEnv_InvalidValuePanics(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")

	var c Config
	require.Panics(t, func() { parseEnv(&c) })
}
