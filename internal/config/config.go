package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Cipher   CipherConfig
	Realtime RealtimeConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
}

type CipherConfig struct {
	// Key is the base64url-encoded 32-byte message encryption key. The
	// process refuses to start without a valid one.
	Key string
}

type RealtimeConfig struct {
	// IdleTimeout closes connections with no inbound frames for this long;
	// zero disables the check.
	IdleTimeout time.Duration
	// HistoryReplay backfills recent messages on (re)connect.
	HistoryReplay bool
	// HistoryCap bounds the per-conversation recent-message ring.
	HistoryCap int64
}

var (
	instance *Config
	once     sync.Once
)

func Load() (*Config, error) {
	once.Do(func() {
		viper.SetDefault("CIPHERCHAT_HOST", "")
		viper.SetDefault("CIPHERCHAT_PORT", "8000")
		viper.SetDefault("CIPHERCHAT_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("CIPHERCHAT_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("CIPHERCHAT_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("CIPHERCHAT_JWT_SECRET", "secret")
		viper.SetDefault("CIPHERCHAT_JWT_EXPIRE", "24h")
		viper.SetDefault("CIPHERCHAT_WS_IDLE_TIMEOUT", 5*time.Minute)
		viper.SetDefault("CIPHERCHAT_HISTORY_REPLAY", true)
		viper.SetDefault("CIPHERCHAT_HISTORY_CAP", 100)
		viper.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
		viper.SetDefault("POSTGRES_HOST", "localhost")
		viper.SetDefault("POSTGRES_PORT", "5432")
		viper.SetDefault("POSTGRES_USER", "postgres")
		viper.SetDefault("POSTGRES_PASSWORD", "password")
		viper.SetDefault("POSTGRES_DB", "cipherchat")
		viper.SetDefault("POSTGRES_SSLMODE", "disable")
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Host:         viper.GetString("CIPHERCHAT_HOST"),
				Port:         viper.GetString("CIPHERCHAT_PORT"),
				ReadTimeout:  viper.GetDuration("CIPHERCHAT_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("CIPHERCHAT_WRITE_TIMEOUT"),
				IdleTimeout:  viper.GetDuration("CIPHERCHAT_IDLE_TIMEOUT"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("POSTGRES_HOST"),
				Port:     viper.GetString("POSTGRES_PORT"),
				User:     viper.GetString("POSTGRES_USER"),
				Password: viper.GetString("POSTGRES_PASSWORD"),
				DBName:   viper.GetString("POSTGRES_DB"),
				SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
			},
			Redis: RedisConfig{
				URL: viper.GetString("REDIS_URL"),
			},
			JWT: JWTConfig{
				Secret:         viper.GetString("CIPHERCHAT_JWT_SECRET"),
				ExpirationTime: viper.GetDuration("CIPHERCHAT_JWT_EXPIRE"),
			},
			Cipher: CipherConfig{
				Key: viper.GetString("CIPHERCHAT_ENCRYPTION_KEY"),
			},
			Realtime: RealtimeConfig{
				IdleTimeout:   viper.GetDuration("CIPHERCHAT_WS_IDLE_TIMEOUT"),
				HistoryReplay: viper.GetBool("CIPHERCHAT_HISTORY_REPLAY"),
				HistoryCap:    viper.GetInt64("CIPHERCHAT_HISTORY_CAP"),
			},
		}
	})

	return instance, nil
}

// DSN renders the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
