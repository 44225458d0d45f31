package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabasePath          string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AdminPassword         string
	AccessTokenTTLMinutes int
	CompanyName           string
	CompanyAddress        string
	ReceiptWidth          int
	LogEnv                string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	width, err := strconv.Atoi(getEnv("RECEIPT_WIDTH", "40"))
	if err != nil || width < 20 {
		width = 40
	}

	return Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabasePath:          os.Getenv("DATABASE_PATH"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AdminPassword:         strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
		AccessTokenTTLMinutes: tokenTTL,
		CompanyName:           getEnv("COMPANY_NAME", "Merlion Trading Pte Ltd"),
		CompanyAddress:        os.Getenv("COMPANY_ADDRESS"),
		ReceiptWidth:          width,
		LogEnv:                getEnv("LOG_ENV", "development"),
	}
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
