package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	BackendURL            string
	BackendTimeoutSeconds int
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	TerminalID            string
	UnlockPIN             string
	AuthSecret            string
	AccessTokenTTLMinutes int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	backendTimeout, err := strconv.Atoi(getEnv("BACKEND_TIMEOUT_SECONDS", "10"))
	if err != nil || backendTimeout < 1 {
		backendTimeout = 10
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		BackendURL:            strings.TrimSpace(os.Getenv("BACKEND_URL")),
		BackendTimeoutSeconds: backendTimeout,
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		TerminalID:            getEnv("TERMINAL_ID", "terminal-1"),
		UnlockPIN:             strings.TrimSpace(os.Getenv("UNLOCK_PIN")),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
