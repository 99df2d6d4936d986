package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port             string
	QueuesFile       string
	FinderConfigFile string
	TickInterval     time.Duration
	KafkaBrokers     []string
	KafkaTopic       string
	AnalyticsEnabled bool
	DatabaseURL      string
	Debug            bool
}

func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8080"),
		QueuesFile:       getEnv("QUEUES_FILE", "queues.json"),
		FinderConfigFile: getEnv("FINDER_CONFIG_FILE", "config.json"),
		TickInterval:     getDuration("TICK_INTERVAL", time.Second),
		KafkaBrokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "matchmaker-events"),
		AnalyticsEnabled: getBool("ANALYTICS_ENABLED", false),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		Debug:            getBool("DEBUG", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
