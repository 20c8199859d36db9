package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	APIToken        string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	QueueURL string

	LLMProvider   string
	LLMModel      string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Generation knobs. Every limit the batch engine enforces is set here;
	// the engine packages take them as constructor parameters.
	GenConcurrency     int
	GenRequestLimit    int
	GenTokenLimit      int
	GenBudgetThreshold float64
	GenWindow          time.Duration
	GenMaxAttempts     int
	GenBaseBackoff     time.Duration
	GenMaxBackoff      time.Duration
	GenAttemptTimeout  time.Duration
	GenBatchTimeout    time.Duration

	DefaultAllowedRevisions int
	WorkerConcurrency       int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		APIToken:        getEnv("API_TOKEN", ""),
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		QueueURL: getEnv("CJ_SQS_QUEUE_URL", ""),

		LLMProvider:   getEnv("LLM_PROVIDER", "openai"),
		LLMModel:      getEnv("LLM_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		GenConcurrency:     getEnvInt("CJ_GEN_CONCURRENCY", 5),
		GenRequestLimit:    getEnvInt("CJ_GEN_REQUEST_LIMIT", 10),
		GenTokenLimit:      getEnvInt("CJ_GEN_TOKEN_LIMIT", 90000),
		GenBudgetThreshold: getEnvFloat("CJ_GEN_BUDGET_THRESHOLD", 0.70),
		GenWindow:          getEnvDuration("CJ_GEN_WINDOW", time.Minute),
		GenMaxAttempts:     getEnvInt("CJ_GEN_MAX_ATTEMPTS", 3),
		GenBaseBackoff:     getEnvDuration("CJ_GEN_BASE_BACKOFF", 500*time.Millisecond),
		GenMaxBackoff:      getEnvDuration("CJ_GEN_MAX_BACKOFF", 10*time.Second),
		GenAttemptTimeout:  getEnvDuration("CJ_GEN_ATTEMPT_TIMEOUT", 60*time.Second),
		GenBatchTimeout:    getEnvDuration("CJ_GEN_BATCH_TIMEOUT", 10*time.Minute),

		DefaultAllowedRevisions: getEnvInt("CJ_DEFAULT_ALLOWED_REVISIONS", 5),
		WorkerConcurrency:       getEnvInt("CJ_WORKER_CONCURRENCY", 4),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("config: invalid int for %s=%q, using %d", key, raw, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		log.Printf("config: invalid float for %s=%q, using %v", key, raw, def)
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("config: invalid duration for %s=%q, using %v", key, raw, def)
		return def
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
