package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gymbot/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config содержит конфигурацию приложения
type Config struct {
	BotToken string
	AdminIDs []int64

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	// Redis keeps sessions across restarts; empty address means in-memory sessions
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	StoreTimeout time.Duration
	WorkerIdle   time.Duration
	LogMode      string

	Categories []models.Category
}

// Load загружает конфигурацию из переменных окружения или .env файла
func Load() (*Config, error) {
	// variables already set in the environment take precedence
	_ = godotenv.Load()

	cfg := &Config{
		BotToken: getEnv("BOT_TOKEN", ""),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "postgres"),
		SQLitePath: getEnv("SQLITE_PATH", "gymbot.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		LogMode:       getEnv("LOG_MODE", "dev"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.WorkerIdle, err = getDuration("WORKER_IDLE", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AdminIDs, err = parseIDs(getEnv("ADMIN_IDS", "")); err != nil {
		return nil, err
	}

	cfg.Categories = models.DefaultCategories()
	if path := getEnv("CATEGORIES_PATH", ""); path != "" {
		if cfg.Categories, err = LoadCategories(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and the category catalog
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is not set")
	}
	if c.DBDriver != DriverPostgres && c.DBDriver != DriverSQLite {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	return ValidateCategories(c.Categories)
}

// DSN возвращает строку подключения к базе данных
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", c.SQLitePath)
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

// IsAdmin reports whether the chat may run admin commands
func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

type categoriesFile struct {
	Categories []models.Category `yaml:"categories"`
}

// LoadCategories reads the category catalog from a YAML file
func LoadCategories(path string) ([]models.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories %s: %w", path, err)
	}
	var file categoriesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse categories %s: %w", path, err)
	}
	if err := ValidateCategories(file.Categories); err != nil {
		return nil, fmt.Errorf("categories %s: %w", path, err)
	}
	return file.Categories, nil
}

// ValidateCategories enforces one non-empty schema of known, distinct fields per category
func ValidateCategories(categories []models.Category) error {
	if len(categories) == 0 {
		return fmt.Errorf("no categories configured")
	}
	codes := make(map[string]bool, len(categories))
	for _, c := range categories {
		if c.Code == "" || c.Code != models.NormalizeKey(c.Code) || strings.Contains(c.Code, "/") {
			return fmt.Errorf("invalid category code %q", c.Code)
		}
		if codes[c.Code] {
			return fmt.Errorf("duplicate category code %q", c.Code)
		}
		codes[c.Code] = true
		if len(c.Fields) == 0 || len(c.Fields) > 2 {
			return fmt.Errorf("category %q: schema must have one or two fields", c.Code)
		}
		seen := make(map[models.Field]bool, len(c.Fields))
		for _, f := range c.Fields {
			if !f.Known() {
				return fmt.Errorf("category %q: unknown field %q", c.Code, f)
			}
			if seen[f] {
				return fmt.Errorf("category %q: duplicate field %q", c.Code, f)
			}
			seen[f] = true
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_IDS: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
