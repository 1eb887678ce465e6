package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	S3       S3Config
	Log      LogConfig
	Ensemble EnsembleConfig
	Engines  EnginesConfig
	Queue    QueueConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings for document storage.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EnsembleConfig holds the voting thresholds and bonuses.
type EnsembleConfig struct {
	ConsensusThreshold     float64 `mapstructure:"consensus_threshold"`
	ReviewThreshold        float64 `mapstructure:"review_threshold"`
	LowConfidenceThreshold float64 `mapstructure:"low_confidence_threshold"`
	ConsensusBonus         float64 `mapstructure:"consensus_bonus"`
	StrongConsensusBonus   float64 `mapstructure:"strong_consensus_bonus"`
	HighTrustEngine        string  `mapstructure:"high_trust_engine"`
}

// EnginesConfig holds extraction engine settings. Sidecar engines run as HTTP
// services; an empty endpoint disables the engine.
type EnginesConfig struct {
	PDFTextEnabled    bool   `mapstructure:"pdftext_enabled"`
	PyMuPDFEndpoint   string `mapstructure:"pymupdf_endpoint"`
	CamelotEndpoint   string `mapstructure:"camelot_endpoint"`
	LayoutLMEndpoint  string `mapstructure:"layoutlm_endpoint"`
	EasyOCREndpoint   string `mapstructure:"easyocr_endpoint"`
	TesseractEndpoint string `mapstructure:"tesseract_endpoint"`
	TimeoutSecs       int    `mapstructure:"timeout_secs"`
}

// QueueConfig holds extraction queue worker settings.
type QueueConfig struct {
	PollIntervalSecs int `mapstructure:"poll_interval_secs"`
	MaxRetries       int `mapstructure:"max_retries"`
	Concurrency      int `mapstructure:"concurrency"`
}

// Load reads configuration from environment variables with the VERITY_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VERITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "verity")
	v.SetDefault("db.password", "verity_secret")
	v.SetDefault("db.name", "verity_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "verity-documents")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 50)
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Ensemble defaults
	v.SetDefault("ensemble.consensus_threshold", 0.95)
	v.SetDefault("ensemble.review_threshold", 0.90)
	v.SetDefault("ensemble.low_confidence_threshold", 0.85)
	v.SetDefault("ensemble.consensus_bonus", 0.15)
	v.SetDefault("ensemble.strong_consensus_bonus", 0.20)
	v.SetDefault("ensemble.high_trust_engine", "layoutlmv3")

	// Engine defaults: the embedded text engine is always available;
	// sidecars are opt-in via endpoints.
	v.SetDefault("engines.pdftext_enabled", true)
	v.SetDefault("engines.pymupdf_endpoint", "")
	v.SetDefault("engines.camelot_endpoint", "")
	v.SetDefault("engines.layoutlm_endpoint", "")
	v.SetDefault("engines.easyocr_endpoint", "")
	v.SetDefault("engines.tesseract_endpoint", "")
	v.SetDefault("engines.timeout_secs", 120)

	// Queue defaults
	v.SetDefault("queue.poll_interval_secs", 10)
	v.SetDefault("queue.max_retries", 5)
	v.SetDefault("queue.concurrency", 5)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
