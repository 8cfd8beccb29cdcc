package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	Server    ServerConfig
	Security  SecurityConfig
	AI        AIConfig
	Providers ProvidersConfig
	Premium   PremiumConfig
	Audit     AuditConfig
	Database  DatabaseConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type SecurityConfig struct {
	APIKey       string
	APIKeyBcrypt string
}

// Enabled сообщает, включена ли проверка X-API-Key.
func (c SecurityConfig) Enabled() bool {
	return c.APIKey != "" || c.APIKeyBcrypt != ""
}

type AIConfig struct {
	Mode               string
	Timeout            time.Duration
	MaxNewTokens       int
	Temperature        float64
	TopP               float64
	RateLimitPerMinute int
	RateLimitBurst     int
	BackendsFile       string
	AgentProvider      string
	AgentModel         string
	HostedModels       map[string]string
}

// RuleBasedOnly сообщает, что живые модели отключены.
func (c AIConfig) RuleBasedOnly() bool {
	return c.Mode == "rule_based"
}

type ProvidersConfig struct {
	HFToken         string
	HFInferenceURL  string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	AnthropicURL    string
	GeminiAPIKey    string
	GeminiBaseURL   string
	GroqAPIKey      string
	GroqBaseURL     string
}

type PremiumConfig struct {
	Message    string
	UpgradeURL string
	Features   []string
}

type AuditConfig struct {
	Driver     string
	SQLitePath string
	Buffer     int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level slog.Level
}

// Переменные окружения с моделями hosted-инференса по ролям.
var hostedModelEnv = map[string]string{
	"coach":             "HF_MODEL",
	"financial_analyst": "HF_MODEL_FINANCIAL_ANALYST",
	"market_analyst":    "HF_MODEL_MARKET_ANALYST",
	"expert_investor":   "HF_MODEL_EXPERT_INVESTOR",
	"accountant":        "HF_MODEL_ACCOUNTANT",
}

// Load загружает конфигурацию приложения из окружения и .env.
func Load() (Config, error) {
	cfg := Config{}

	if err := loadEnv(); err != nil {
		return cfg, err
	}

	cfg.Env = getEnv("APP_ENV", "local")

	serverPort, err := parseIntEnv("SERVER_PORT", 8000)
	if err != nil {
		return cfg, err
	}

	readTimeout, err := parseDurationEnv("SERVER_READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return cfg, err
	}

	writeTimeout, err := parseDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return cfg, err
	}

	idleTimeout, err := parseDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return cfg, err
	}

	cfg.Server = ServerConfig{
		Host:         getEnv("SERVER_HOST", "0.0.0.0"),
		Port:         serverPort,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	cfg.Security = SecurityConfig{
		APIKey:       strings.TrimSpace(getEnv("STACKAPP_API_KEY", "")),
		APIKeyBcrypt: strings.TrimSpace(getEnv("STACKAPP_API_KEY_BCRYPT", "")),
	}

	aiTimeout, err := parseDurationEnv("AI_TIMEOUT", 20*time.Second)
	if err != nil {
		return cfg, err
	}

	aiMaxNewTokens, err := parseIntEnv("AI_MAX_NEW_TOKENS", 150)
	if err != nil {
		return cfg, err
	}

	aiTemperature, err := parseFloatEnv("AI_TEMPERATURE", 0.7)
	if err != nil {
		return cfg, err
	}

	aiTopP, err := parseFloatEnv("AI_TOP_P", 0.9)
	if err != nil {
		return cfg, err
	}

	aiRateLimitPerMinute, err := parseIntEnv("AI_RATE_LIMIT_PER_MINUTE", 30)
	if err != nil {
		return cfg, err
	}

	aiRateLimitBurst, err := parseIntEnv("AI_RATE_LIMIT_BURST", 10)
	if err != nil {
		return cfg, err
	}

	hostedModels := make(map[string]string, len(hostedModelEnv))
	for role, key := range hostedModelEnv {
		if value := strings.TrimSpace(getEnv(key, "")); value != "" {
			hostedModels[role] = value
		}
	}

	cfg.AI = AIConfig{
		Mode:               strings.ToLower(getEnv("AI_MODE", "live")),
		Timeout:            aiTimeout,
		MaxNewTokens:       aiMaxNewTokens,
		Temperature:        aiTemperature,
		TopP:               aiTopP,
		RateLimitPerMinute: aiRateLimitPerMinute,
		RateLimitBurst:     aiRateLimitBurst,
		BackendsFile:       getEnv("AI_BACKENDS_FILE", ""),
		AgentProvider:      strings.ToLower(getEnv("LOCAL_AGENT_PROVIDER", "openai")),
		AgentModel:         getEnv("LOCAL_AGENT_MODEL", "gpt-4-0125-preview"),
		HostedModels:       hostedModels,
	}

	cfg.Providers = ProvidersConfig{
		HFToken:         getEnv("HF_TOKEN", getEnv("HUGGINGFACE_API_KEY", "")),
		HFInferenceURL:  getEnv("HF_INFERENCE_URL", "https://api-inference.huggingface.co/models"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicURL:    getEnv("ANTHROPIC_BASE_URL", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", ""),
		GroqAPIKey:      getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:     getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
	}

	cfg.Premium = PremiumConfig{
		Message:    getEnv("PREMIUM_MESSAGE", ""),
		UpgradeURL: getEnv("PREMIUM_UPGRADE_URL", "/upgrade-to-premium"),
		Features:   parseCSVEnv("PREMIUM_FEATURES"),
	}

	auditBuffer, err := parseIntEnv("AUDIT_BUFFER", 256)
	if err != nil {
		return cfg, err
	}

	cfg.Audit = AuditConfig{
		Driver:     strings.ToLower(getEnv("AUDIT_DRIVER", "none")),
		SQLitePath: getEnv("AUDIT_SQLITE_PATH", "data/audit.db"),
		Buffer:     auditBuffer,
	}

	dbPort, err := parseIntEnv("DB_PORT", 5432)
	if err != nil {
		return cfg, err
	}

	maxOpenConns, err := parseIntEnv("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return cfg, err
	}

	maxIdleConns, err := parseIntEnv("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return cfg, err
	}

	connMaxIdleTime, err := parseDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute)
	if err != nil {
		return cfg, err
	}

	connMaxLifetime, err := parseDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return cfg, err
	}

	cfg.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "stackapp"),
		Password:        getEnv("DB_PASSWORD", "stackapp"),
		Name:            getEnv("DB_NAME", "stackapp"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxIdleTime: connMaxIdleTime,
		ConnMaxLifetime: connMaxLifetime,
	}

	logLevel, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return cfg, err
	}
	cfg.Log = LogConfig{Level: logLevel}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// DSN возвращает строку подключения к базе данных.
func (c DatabaseConfig) DSN() string {
	user := url.UserPassword(c.User, c.Password)
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}

	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	return dsn.String() + "?" + query.Encode()
}

func (c Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be greater than 0")
	}

	switch c.AI.Mode {
	case "live", "rule_based":
	default:
		return fmt.Errorf("AI_MODE must be live or rule_based")
	}

	switch c.AI.AgentProvider {
	case "openai", "anthropic", "gemini", "groq":
	default:
		return fmt.Errorf("LOCAL_AGENT_PROVIDER must be openai, anthropic, gemini or groq")
	}

	if c.AI.Temperature <= 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be in (0, 2]")
	}

	if c.AI.TopP <= 0 || c.AI.TopP > 1 {
		return fmt.Errorf("AI_TOP_P must be in (0, 1]")
	}

	if c.Audit.Buffer <= 0 {
		return fmt.Errorf("AUDIT_BUFFER must be positive")
	}

	switch c.Audit.Driver {
	case "none":
	case "sqlite":
		if c.Audit.SQLitePath == "" {
			return fmt.Errorf("AUDIT_SQLITE_PATH is required for sqlite audit")
		}
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}

		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}

		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}

		if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			return fmt.Errorf("DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
		}
	default:
		return fmt.Errorf("AUDIT_DRIVER must be none, sqlite or postgres")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseFloatEnv(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}

	return parsed, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

// Значения сохраняют регистр: это подписи для клиентов.
func parseCSVEnv(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func parseLogLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error: %w", err)
	}
	return level, nil
}

func loadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}
