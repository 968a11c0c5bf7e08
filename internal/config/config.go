// Package config reads the service settings from the environment, after loading an optional
// .env file for local development.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Storage and dedup backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// AI fallback providers.
const (
	AINone      = "none"
	AIGemini    = "gemini"
	AIAnthropic = "anthropic"
)

type Database struct {
	User                   string
	Pass                   string
	Name                   string
	Host                   string
	Port                   string
	InstanceConnectionName string // Cloud SQL socket, takes precedence over Host
}

type Twilio struct {
	AccountSID  string
	AuthToken   string
	From        string            // whatsapp:+14155238886
	ContentSIDs map[string]string // menu name -> content template SID
}

// Configured reports whether outbound messaging can be used.
func (t Twilio) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.From != ""
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	StorageBackend string
	SessionDir     string
	DedupBackend   string
	Database       Database

	Twilio                   Twilio
	DisableWebhookValidation bool
	PublicBaseURL            string

	MediaDir string
	S3Bucket string
	S3Prefix string

	CatalogFile        string
	CatalogDocumentURL string

	AIProvider      string
	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string
	AnthropicModel  string

	SheetsCredentialsFile string
	SheetsSpreadsheetID   string
	SheetsRange           string
	CRMWebhookURL         string
	CRMToken              string
}

// Development reports whether the service runs locally.
func (c *Config) Development() bool {
	return c.Environment == "development"
}

// UsesDatabase reports whether any backend needs a postgres connection.
func (c *Config) UsesDatabase() bool {
	return c.StorageBackend == BackendPostgres || c.DedupBackend == BackendPostgres
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// LoadDotenv loads .env, then environments/.env.development. A missing file is not an error.
func LoadDotenv() bool {
	if err := godotenv.Load(".env"); err == nil {
		return true
	}
	return godotenv.Load("environments/.env.development") == nil
}

// Load builds the config from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
		SessionDir:     getEnv("SESSION_DIR", "data/sessions"),
		DedupBackend:   strings.ToLower(getEnv("DEDUP_BACKEND", BackendMemory)),
		Database: Database{
			User:                   getEnv("DB_USER", "postgres"),
			Pass:                   getEnv("DB_PASS", ""),
			Name:                   getEnv("DB_NAME", "agrobot"),
			Host:                   getEnv("DB_HOST", "localhost"),
			Port:                   getEnv("DB_PORT", "5432"),
			InstanceConnectionName: getEnv("INSTANCE_CONNECTION_NAME", ""),
		},

		Twilio: Twilio{
			AccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
			From:        os.Getenv("TWILIO_WHATSAPP_FROM"),
			ContentSIDs: parsePairs(os.Getenv("TWILIO_CONTENT_SIDS")),
		},
		DisableWebhookValidation: getBoolEnv("DISABLE_WEBHOOK_VALIDATION", false),
		PublicBaseURL:            strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		MediaDir: getEnv("MEDIA_DIR", "data/media"),
		S3Bucket: os.Getenv("S3_BUCKET"),
		S3Prefix: getEnv("S3_PREFIX", "quotes/"),

		CatalogFile:        os.Getenv("CATALOG_FILE"),
		CatalogDocumentURL: os.Getenv("CATALOG_DOCUMENT_URL"),

		AIProvider:      strings.ToLower(getEnv("AI_PROVIDER", AINone)),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),

		SheetsCredentialsFile: os.Getenv("SHEETS_CREDENTIALS_FILE"),
		SheetsSpreadsheetID:   os.Getenv("SHEETS_SPREADSHEET_ID"),
		SheetsRange:           getEnv("SHEETS_RANGE", "Leads!A1"),
		CRMWebhookURL:         os.Getenv("CRM_WEBHOOK_URL"),
		CRMToken:              os.Getenv("CRM_TOKEN"),
	}
	if cfg.Database.InstanceConnectionName != "" && os.Getenv("ENVIRONMENT") == "" {
		cfg.Environment = "production"
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown backend and provider names.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendFile, BackendPostgres:
	default:
		return fmt.Errorf("STORAGE_BACKEND %q: want memory, file or postgres", c.StorageBackend)
	}
	switch c.DedupBackend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("DEDUP_BACKEND %q: want memory or postgres", c.DedupBackend)
	}
	switch c.AIProvider {
	case AINone:
	case AIGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("AI_PROVIDER=gemini needs GEMINI_API_KEY")
		}
	case AIAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("AI_PROVIDER=anthropic needs ANTHROPIC_API_KEY")
		}
	default:
		return fmt.Errorf("AI_PROVIDER %q: want none, gemini or anthropic", c.AIProvider)
	}
	return nil
}

// parsePairs reads "a=1,b=2" into a map. Malformed entries are skipped.
func parsePairs(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
