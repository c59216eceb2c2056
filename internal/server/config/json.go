package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/fitaccounts/internal/flagx"
	"github.com/dmitrijs2005/fitaccounts/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// strings such as "30s" or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	MaxOpenConns                int            `json:"max_open_conns"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	RequestTimeout              timex.Duration `json:"request_timeout"`
	NotifyTimeout               timex.Duration `json:"notify_timeout"`
	SMTPServer                  string         `json:"smtp_server"`
	SMTPUser                    string         `json:"smtp_user"`
	SMTPPassword                string         `json:"smtp_password"`
	MailFrom                    string         `json:"mail_from"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson overlays the file named by -c/-config onto config. Keys absent
// from the file keep their current values.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{
		EndpointAddrHTTP:            config.EndpointAddrHTTP,
		EndpointAddrGRPC:            config.EndpointAddrGRPC,
		DatabaseDSN:                 config.DatabaseDSN,
		MaxOpenConns:                config.MaxOpenConns,
		SecretKey:                   config.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: config.AccessTokenValidityDuration},
		RequestTimeout:              timex.Duration{Duration: config.RequestTimeout},
		NotifyTimeout:               timex.Duration{Duration: config.NotifyTimeout},
		SMTPServer:                  config.SMTPServer,
		SMTPUser:                    config.SMTPUser,
		SMTPPassword:                config.SMTPPassword,
		MailFrom:                    config.MailFrom,
		LogLevel:                    config.LogLevel,
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDSN = c.DatabaseDSN
	config.MaxOpenConns = c.MaxOpenConns
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.RequestTimeout = c.RequestTimeout.Duration
	config.NotifyTimeout = c.NotifyTimeout.Duration
	config.SMTPServer = c.SMTPServer
	config.SMTPUser = c.SMTPUser
	config.SMTPPassword = c.SMTPPassword
	config.MailFrom = c.MailFrom
	config.LogLevel = c.LogLevel
}
