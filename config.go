package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	Port              string        `mapstructure:"PORT"`
	GinMode           string        `mapstructure:"GIN_MODE"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"` // hosted Postgres; empty = local only
	SQLitePath        string        `mapstructure:"SQLITE_PATH"`
	SeedPath          string        `mapstructure:"SEED_PATH"`
	SecureCookies     bool          `mapstructure:"SECURE_COOKIES"`
	AllowedOrigins    []string      `mapstructure:"ALLOWED_ORIGINS"`
	PracticeTolerance float64       `mapstructure:"PRACTICE_TOLERANCE"`
	ExamQuestionCount int           `mapstructure:"EXAM_QUESTION_COUNT"`
	ExamDuration      time.Duration `mapstructure:"EXAM_DURATION"`
	ExpirySchedule    string        `mapstructure:"EXPIRY_SCHEDULE"`
}

const envPrefix = "ATPL"

// LoadConfig reads defaults, then config.yaml (if any), then ATPL_* env vars.
// A .env file in the working directory is loaded into the environment first.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "quiz.db")
	v.SetDefault("SEED_PATH", "data/questions.json")
	v.SetDefault("SECURE_COOKIES", false) // true on HTTPS deployments
	v.SetDefault("ALLOWED_ORIGINS", []string{"https://vmx-io.github.io"})
	v.SetDefault("PRACTICE_TOLERANCE", 2.0) // the practice table's ±2
	v.SetDefault("EXAM_QUESTION_COUNT", 40)
	v.SetDefault("EXAM_DURATION", "2h")
	v.SetDefault("EXPIRY_SCHEDULE", "@every 1m")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config.yaml")
		}
		log.Println("config.yaml not found, using environment variables and defaults")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PracticeTolerance < 0 {
		return errors.Errorf("PRACTICE_TOLERANCE must not be negative, got %v", c.PracticeTolerance)
	}
	if c.ExamQuestionCount <= 0 {
		return errors.Errorf("EXAM_QUESTION_COUNT must be positive, got %d", c.ExamQuestionCount)
	}
	if c.ExamDuration <= 0 {
		return errors.Errorf("EXAM_DURATION must be positive, got %s", c.ExamDuration)
	}
	return nil
}
