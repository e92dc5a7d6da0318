package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"parley"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"parley_dev_password"`
	DBName     string `envconfig:"DB_NAME" default:"parley"`
	RedisAddr  string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	JWTSecret  string `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`
	UploadDir  string `envconfig:"UPLOAD_DIR" default:"uploads"`
}

// Load reads configuration from the environment, with .env as an
// optional local override file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}
	return &cfg, nil
}

// DatabaseURL builds the Postgres DSN.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
