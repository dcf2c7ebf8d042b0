package config

import (
	"os"
	"strconv"
)

type Config struct {
	ListenAddr string
	DBPath     string
	RedisURL   string

	CompletionBackend string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	ClaudeAPIKey      string
	ClaudeModel       string
	OllamaHost        string
	OllamaModel       string

	OCRAPIURL    string
	OCRSecretKey string

	UnsplashAccessKey string

	JWTSecretKey string

	RecipeDailyLimit  int
	ReceiptDailyLimit int

	LogLevel  string
	LogFormat string
	LogFile   string
}

func Load() *Config {
	return &Config{
		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		DBPath:            getEnv("DB_PATH", "/data/domeok.db"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CompletionBackend: getEnv("COMPLETION_BACKEND", "openai"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1/"),
		ClaudeAPIKey:      getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:       getEnv("CLAUDE_MODEL", "claude-3-5-haiku-latest"),
		OllamaHost:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3.1"),
		OCRAPIURL:         getEnv("OCR_API_URL", ""),
		OCRSecretKey:      getEnv("OCR_SECRET_KEY", ""),
		UnsplashAccessKey: getEnv("UNSPLASH_ACCESS_KEY", ""),
		JWTSecretKey:      getEnv("JWT_SECRET_KEY", ""),
		RecipeDailyLimit:  getEnvInt("RECIPE_DAILY_LIMIT", 10),
		ReceiptDailyLimit: getEnvInt("RECEIPT_DAILY_LIMIT", 5),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		LogFile:           getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

// getEnvInt falls back to defaultVal when the variable is unset, malformed,
// or not positive.
func getEnvInt(key string, defaultVal int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
