package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/estatematch/internal/flagx"
	"github.com/dmitrijs2005/estatematch/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Absent keys leave the current value untouched.
type JsonConfig struct {
	HTTPAddr                  string         `json:"http_addr"`
	DatabaseDSN               string         `json:"database_dsn"`
	SecretKey                 string         `json:"secret_key"`
	SessionValidityDuration   timex.Duration `json:"session_validity_duration"`
	Production                *bool          `json:"production"`
	EncryptionKeys            []string       `json:"encryption_keys"`
	ModelProvider             string         `json:"model_provider"`
	ModelName                 string         `json:"model_name"`
	GeminiAPIKey              string         `json:"gemini_api_key"`
	OpenAIAPIKey              string         `json:"openai_api_key"`
	SMTPHost                  string         `json:"smtp_host"`
	SMTPPort                  int            `json:"smtp_port"`
	SMTPUser                  string         `json:"smtp_user"`
	SMTPPassword              string         `json:"smtp_password"`
	MailFrom                  string         `json:"mail_from"`
	AllowedOrigins            []string       `json:"allowed_origins"`
	MaxResults                int            `json:"max_results"`
	ResetCodeValidityDuration timex.Duration `json:"reset_code_validity_duration"`
	LogBackend                string         `json:"log_backend"`
	LogJSON                   *bool          `json:"log_json"`
	Debug                     *bool          `json:"debug"`
	S3RootUser                string         `json:"s3_root_user"`
	S3RootPassword            string         `json:"s3_root_password"`
	S3Bucket                  string         `json:"s3_bucket"`
	S3Region                  string         `json:"s3_region"`
	S3BaseEndpoint            string         `json:"s3_base_endpoint"`
}

// parseJson overlays values from the JSON file named by -c/-config (or
// $ESTATEMATCH_CONFIG). Nothing happens when no path is given. An unreadable
// file or invalid JSON panics, since the server cannot start half-configured.
func parseJson(config *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.SessionValidityDuration.Duration > 0 {
		config.SessionValidityDuration = c.SessionValidityDuration.Duration
	}
	setBool(&config.Production, c.Production)
	if len(c.EncryptionKeys) > 0 {
		config.EncryptionKeys = c.EncryptionKeys
	}
	setString(&config.ModelProvider, c.ModelProvider)
	setString(&config.ModelName, c.ModelName)
	setString(&config.GeminiAPIKey, c.GeminiAPIKey)
	setString(&config.OpenAIAPIKey, c.OpenAIAPIKey)
	setString(&config.SMTPHost, c.SMTPHost)
	if c.SMTPPort > 0 {
		config.SMTPPort = c.SMTPPort
	}
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
	if c.MaxResults > 0 {
		config.MaxResults = c.MaxResults
	}
	if c.ResetCodeValidityDuration.Duration > 0 {
		config.ResetCodeValidityDuration = c.ResetCodeValidityDuration.Duration
	}
	setString(&config.LogBackend, c.LogBackend)
	setBool(&config.LogJSON, c.LogJSON)
	setBool(&config.Debug, c.Debug)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
