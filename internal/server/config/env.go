package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/estatematch/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable read by parseEnv.
const EnvPrefix = "ESTATEMATCH_"

// dotenvFiles lists the files loaded into the process environment before the
// env layer is applied. Variables that are already set are never overridden.
var dotenvFiles = []string{".env"}

// parseEnv overlays values from ESTATEMATCH_* variables. Malformed numeric,
// boolean or duration values panic, matching the JSON layer.
func parseEnv(config *Config) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	envString("HTTP_ADDR", &config.HTTPAddr)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("SECRET_KEY", &config.SecretKey)
	envDuration("SESSION_VALIDITY_DURATION", &config.SessionValidityDuration)
	envBool("PRODUCTION", &config.Production)
	envList("ENCRYPTION_KEYS", &config.EncryptionKeys)
	envString("MODEL_PROVIDER", &config.ModelProvider)
	envString("MODEL_NAME", &config.ModelName)
	envString("GEMINI_API_KEY", &config.GeminiAPIKey)
	envString("OPENAI_API_KEY", &config.OpenAIAPIKey)
	envString("SMTP_HOST", &config.SMTPHost)
	envInt("SMTP_PORT", &config.SMTPPort)
	envString("SMTP_USER", &config.SMTPUser)
	envString("SMTP_PASSWORD", &config.SMTPPassword)
	envString("MAIL_FROM", &config.MailFrom)
	envList("ALLOWED_ORIGINS", &config.AllowedOrigins)
	envInt("MAX_RESULTS", &config.MaxResults)
	envDuration("RESET_CODE_VALIDITY_DURATION", &config.ResetCodeValidityDuration)
	envString("LOG_BACKEND", &config.LogBackend)
	envBool("LOG_JSON", &config.LogJSON)
	envBool("DEBUG", &config.Debug)
	envString("S3_ROOT_USER", &config.S3RootUser)
	envString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	envString("S3_BUCKET", &config.S3Bucket)
	envString("S3_REGION", &config.S3Region)
	envString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func envString(name string, dst *string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func envList(name string, dst *[]string) {
	if v, ok := lookup(name); ok {
		*dst = flagx.SplitList(v)
	}
}

func envInt(name string, dst *int) {
	if v, ok := lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		*dst = n
	}
}

func envBool(name string, dst *bool) {
	if v, ok := lookup(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		*dst = b
	}
}

func envDuration(name string, dst *time.Duration) {
	if v, ok := lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		*dst = d
	}
}
