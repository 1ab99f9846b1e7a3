package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration. It is loaded once at process
// start and passed by pointer into component constructors; nothing mutates it
// after Load returns.
type Config struct {
	App        App        `mapstructure:"app"`
	Server     Server     `mapstructure:"server"`
	AI         AI         `mapstructure:"ai"`
	Fetch      Fetch      `mapstructure:"fetch"`
	Keywords   Keywords   `mapstructure:"keywords"`
	Topics     Topics     `mapstructure:"topics"`
	Generation Generation `mapstructure:"generation"`
	SEO        SEO        `mapstructure:"seo"`
	Images     Images     `mapstructure:"images"`
	Database   Database   `mapstructure:"database"`
	Logging    Logging    `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Env        string `mapstructure:"env"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// Server holds HTTP server configuration
type Server struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     string `mapstructure:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
	RequestTimeout  string `mapstructure:"request_timeout"`
	MaxInflight     int    `mapstructure:"max_inflight"`
	CORS            CORS   `mapstructure:"cors"`
}

// CORS holds cross-origin configuration
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AI holds AI/LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey              string  `mapstructure:"api_key"`
	Model               string  `mapstructure:"model"`
	EmbeddingModel      string  `mapstructure:"embedding_model"`
	EmbeddingDimensions int32   `mapstructure:"embedding_dimensions"`
	Timeout             string  `mapstructure:"timeout"`
	MaxTokens           int32   `mapstructure:"max_tokens"`
	Temperature         float32 `mapstructure:"temperature"`
	MaxConcurrency      int     `mapstructure:"max_concurrency"`
}

// Fetch holds page fetching configuration
type Fetch struct {
	Timeout        string `mapstructure:"timeout"`
	MaxBodyBytes   int64  `mapstructure:"max_body_bytes"`
	UserAgent      string `mapstructure:"user_agent"`
	MinWords       int    `mapstructure:"min_words"`
	Retries        int    `mapstructure:"retries"`
	RetryBaseDelay string `mapstructure:"retry_base_delay"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
}

// Keywords holds keyword extraction configuration
type Keywords struct {
	PrimaryCount    int     `mapstructure:"primary_count"`
	SecondaryCount  int     `mapstructure:"secondary_count"`
	DedupeThreshold float64 `mapstructure:"dedupe_threshold"`
	MaxCandidates   int     `mapstructure:"max_candidates"`
}

// Topics holds topic analysis configuration
type Topics struct {
	VocabularyFile string  `mapstructure:"vocabulary_file"`
	MinConfidence  float64 `mapstructure:"min_confidence"`
}

// Generation holds blog generation configuration
type Generation struct {
	MaxRetries         int     `mapstructure:"max_retries"`
	RetryBaseDelay     string  `mapstructure:"retry_base_delay"`
	QualityFloor       float64 `mapstructure:"quality_floor"`
	ExcerptTokenBudget int     `mapstructure:"excerpt_token_budget"`
}

// SEO holds post-processing configuration
type SEO struct {
	MetaMin int `mapstructure:"meta_min"`
	MetaMax int `mapstructure:"meta_max"`
	MaxTags int `mapstructure:"max_tags"`
}

// Images holds featured image search configuration
type Images struct {
	Provider          string  `mapstructure:"provider"`
	AccessKey         string  `mapstructure:"access_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Timeout           string  `mapstructure:"timeout"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// Database holds history storage configuration
type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Logging holds logging configuration
type Logging struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	FilePath string `mapstructure:"file_path"`
}

// Load loads the configuration from .env, an optional YAML file and the environment.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".blogai")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Explicit environment aliases win over the config file.
	bindEnvironmentVariables(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = v.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.env", "development")
	v.SetDefault("app.data_dir", ".blogai")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "340s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "330s")
	v.SetDefault("server.max_inflight", 8)
	v.SetDefault("server.cors.enabled", true)
	v.SetDefault("server.cors.allowed_origins", []string{
		"http://localhost:7860", "http://localhost:3000", "http://localhost:8000",
	})

	// AI defaults
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.embedding_model", "gemini-embedding-001")
	v.SetDefault("ai.gemini.embedding_dimensions", 768)
	v.SetDefault("ai.gemini.timeout", "60s")
	v.SetDefault("ai.gemini.max_tokens", 8192)
	v.SetDefault("ai.gemini.temperature", 0.7)
	v.SetDefault("ai.gemini.max_concurrency", 4)

	// Fetch defaults
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.max_body_bytes", 5<<20)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; BlogAI/1.0; +https://github.com/Ritesh-sh/Blog-AI)")
	v.SetDefault("fetch.min_words", 100)
	v.SetDefault("fetch.retries", 1)
	v.SetDefault("fetch.retry_base_delay", "500ms")
	v.SetDefault("fetch.max_concurrency", 16)

	// Keyword defaults
	v.SetDefault("keywords.primary_count", 5)
	v.SetDefault("keywords.secondary_count", 10)
	v.SetDefault("keywords.dedupe_threshold", 0.85)
	v.SetDefault("keywords.max_candidates", 60)

	// Topic defaults
	v.SetDefault("topics.min_confidence", 0.35)

	// Generation defaults
	v.SetDefault("generation.max_retries", 2)
	v.SetDefault("generation.retry_base_delay", "1s")
	v.SetDefault("generation.quality_floor", 0.5)
	v.SetDefault("generation.excerpt_token_budget", 3000)

	// SEO defaults
	v.SetDefault("seo.meta_min", 120)
	v.SetDefault("seo.meta_max", 160)
	v.SetDefault("seo.max_tags", 10)

	// Image defaults
	v.SetDefault("images.provider", "unsplash")
	v.SetDefault("images.base_url", "https://api.unsplash.com")
	v.SetDefault("images.timeout", "10s")
	v.SetDefault("images.requests_per_second", 1.0)

	// Database defaults
	v.SetDefault("database.driver", "sqlite3")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables(v *viper.Viper) {
	// Gemini API key - support multiple formats
	bindEnvKeys(v, "ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_API_KEY",
	})

	bindEnvKeys(v, "ai.gemini.model", []string{
		"GEMINI_MODEL",
	})

	bindEnvKeys(v, "images.access_key", []string{
		"UNSPLASH_ACCESS_KEY",
	})

	bindEnvKeys(v, "database.dsn", []string{
		"DATABASE_URL",
		"BLOGAI_DATABASE_DSN",
	})

	bindEnvKeys(v, "database.driver", []string{
		"DATABASE_DRIVER",
	})

	bindEnvKeys(v, "server.port", []string{
		"PORT",
	})

	bindEnvKeys(v, "app.env", []string{
		"APP_ENV",
	})

	bindEnvKeys(v, "logging.level", []string{
		"LOG_LEVEL",
	})

	bindEnvKeys(v, "logging.file_path", []string{
		"LOG_FILE",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(v *viper.Viper, viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			v.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.Topics.VocabularyFile != "" {
		config.Topics.VocabularyFile = expandPath(config.Topics.VocabularyFile)
	}
	if config.Logging.FilePath != "" {
		config.Logging.FilePath = expandPath(config.Logging.FilePath)
	}

	// Postgres URLs imply the postgres driver.
	if strings.HasPrefix(config.Database.DSN, "postgres://") || strings.HasPrefix(config.Database.DSN, "postgresql://") {
		config.Database.Driver = "postgres"
	}
	if config.Database.Driver == "sqlite3" && config.Database.DSN == "" {
		config.Database.DSN = filepath.Join(config.App.DataDir, "blogai.db")
	}

	// Validate durations
	durations := map[string]string{
		"server.read_timeout":         config.Server.ReadTimeout,
		"server.write_timeout":        config.Server.WriteTimeout,
		"server.shutdown_timeout":     config.Server.ShutdownTimeout,
		"server.request_timeout":      config.Server.RequestTimeout,
		"ai.gemini.timeout":           config.AI.Gemini.Timeout,
		"fetch.timeout":               config.Fetch.Timeout,
		"fetch.retry_base_delay":      config.Fetch.RetryBaseDelay,
		"generation.retry_base_delay": config.Generation.RetryBaseDelay,
		"images.timeout":              config.Images.Timeout,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures configuration values are usable
func validateConfig(config *Config) error {
	var errors []string

	switch config.Database.Driver {
	case "sqlite3", "postgres":
	default:
		errors = append(errors, fmt.Sprintf("Unknown database driver: %s. Supported: sqlite3, postgres", config.Database.Driver))
	}

	if config.Keywords.PrimaryCount < 1 {
		errors = append(errors, "keywords.primary_count must be at least 1")
	}
	if config.Keywords.SecondaryCount < 0 {
		errors = append(errors, "keywords.secondary_count must not be negative")
	}
	if config.Keywords.DedupeThreshold <= 0 || config.Keywords.DedupeThreshold > 1 {
		errors = append(errors, "keywords.dedupe_threshold must be in (0, 1]")
	}
	if config.Generation.MaxRetries < 0 {
		errors = append(errors, "generation.max_retries must not be negative")
	}
	if config.Generation.QualityFloor < 0 || config.Generation.QualityFloor > 1 {
		errors = append(errors, "generation.quality_floor must be in [0, 1]")
	}
	if config.SEO.MetaMin <= 0 || config.SEO.MetaMax < config.SEO.MetaMin {
		errors = append(errors, "seo.meta_min must be positive and not exceed seo.meta_max")
	}
	if config.Fetch.MaxBodyBytes <= 0 {
		errors = append(errors, "fetch.max_body_bytes must be positive")
	}

	if budget := config.PipelineBudget(); Duration(config.Server.RequestTimeout, budget) < budget {
		errors = append(errors, fmt.Sprintf("server.request_timeout %s is shorter than the worst-case pipeline run of %s", config.Server.RequestTimeout, budget))
	}

	switch config.Images.Provider {
	case "unsplash", "none", "":
	default:
		errors = append(errors, fmt.Sprintf("Unknown image provider: %s. Supported: unsplash, none", config.Images.Provider))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RequireGemini reports an error when no usable Gemini API key is configured.
// Only commands that run the pipeline need it.
func (c *Config) RequireGemini() error {
	if !isValidAPIKey(c.AI.Gemini.APIKey) {
		return fmt.Errorf("Gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file.\nGet your API key from: https://aistudio.google.com/app/apikey")
	}
	return nil
}

// HasImageSearch returns true if featured image search is properly configured
func (c *Config) HasImageSearch() bool {
	return c.Images.Provider == "unsplash" && isValidAPIKey(c.Images.AccessKey)
}

// PipelineBudget is the longest one pipeline run can take when every
// outbound call times out and is retried: all fetch attempts, one embedding
// round (keywords and topics run together), every generation attempt with its
// backoff, and the image search.
func (c *Config) PipelineBudget() time.Duration {
	gemini := Duration(c.AI.Gemini.Timeout, 60*time.Second)

	fetchTimeout := Duration(c.Fetch.Timeout, 30*time.Second)
	budget := time.Duration(c.Fetch.Retries+1)*fetchTimeout +
		backoffTotal(Duration(c.Fetch.RetryBaseDelay, 500*time.Millisecond), c.Fetch.Retries)

	budget += gemini
	budget += time.Duration(c.Generation.MaxRetries+1)*gemini +
		backoffTotal(Duration(c.Generation.RetryBaseDelay, time.Second), c.Generation.MaxRetries)

	if c.HasImageSearch() {
		budget += Duration(c.Images.Timeout, 10*time.Second)
	}
	return budget
}

// backoffTotal sums base, 2*base, ... over retries doubling delays.
func backoffTotal(base time.Duration, retries int) time.Duration {
	var total time.Duration
	for i := 0; i < retries; i++ {
		total += base << i
	}
	return total
}

// Duration parses a duration string already validated by Load, falling back
// to def when the value is empty.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

// isValidAPIKey checks if an API key is valid (not empty and not a placeholder)
func isValidAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	placeholders := []string{
		"your-api-key", "your-gemini-key", "your-unsplash-key",
		"YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}

	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}

	return true
}
