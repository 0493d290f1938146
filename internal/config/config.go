// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Admission AdmissionConfig
	Throttle  ThrottleConfig
}

type ServerConfig struct {
	Port string
}

type StorageConfig struct {
	Type  string
	Redis RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AdmissionConfig reúne o surface externo do gate: tudo ajustável por
// ambiente, sem mudança de código.
type AdmissionConfig struct {
	RequestsPerWindow int
	RateWindow        time.Duration
	MaxConcurrent     int
	SlotTTL           time.Duration
	DuplicateWindow   time.Duration

	// FailOpen define o comportamento com o store fora do ar:
	// true admite tudo, false (padrão) nega tudo.
	FailOpen bool
}

// ThrottleConfig controla o token bucket global do processo.
// RPS <= 0 desliga o guarda.
type ThrottleConfig struct {
	RPS   float64
	Burst int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	server := ServerConfig{Port: getEnv("SERVER_PORT", "8080")}

	storageType := strings.ToLower(getEnv("STORAGE_TYPE", "redis"))

	redisConfig, err := buildRedisConfig()
	if err != nil {
		return Config{}, err
	}

	admissionConfig, err := buildAdmissionConfig()
	if err != nil {
		return Config{}, err
	}

	throttleConfig, err := buildThrottleConfig()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Server: server,
		Storage: StorageConfig{
			Type:  storageType,
			Redis: redisConfig,
		},
		Admission: admissionConfig,
		Throttle:  throttleConfig,
	}, nil
}

func buildRedisConfig() (RedisConfig, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	return RedisConfig{
		Host:     host,
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func buildAdmissionConfig() (AdmissionConfig, error) {
	requests, err := strconv.Atoi(getEnv("REQUESTS_PER_MINUTE", "60"))
	if err != nil {
		return AdmissionConfig{}, fmt.Errorf("invalid REQUESTS_PER_MINUTE: %w", err)
	}
	windowSeconds, err := strconv.Atoi(getEnv("RATE_WINDOW_SECONDS", "60"))
	if err != nil {
		return AdmissionConfig{}, fmt.Errorf("invalid RATE_WINDOW_SECONDS: %w", err)
	}
	maxConcurrent, err := strconv.Atoi(getEnv("MAX_CONCURRENT_REQUESTS", "3"))
	if err != nil {
		return AdmissionConfig{}, fmt.Errorf("invalid MAX_CONCURRENT_REQUESTS: %w", err)
	}
	slotTTLSeconds, err := strconv.Atoi(getEnv("CONCURRENCY_SLOT_TTL_SECONDS", "300"))
	if err != nil {
		return AdmissionConfig{}, fmt.Errorf("invalid CONCURRENCY_SLOT_TTL_SECONDS: %w", err)
	}
	duplicateMinutes, err := strconv.Atoi(getEnv("DUPLICATE_REQUEST_WINDOW_MINUTES", "10"))
	if err != nil {
		return AdmissionConfig{}, fmt.Errorf("invalid DUPLICATE_REQUEST_WINDOW_MINUTES: %w", err)
	}

	failOpen, err := parseFailureMode(getEnv("STORE_FAILURE_MODE", "closed"))
	if err != nil {
		return AdmissionConfig{}, err
	}

	return AdmissionConfig{
		RequestsPerWindow: requests,
		RateWindow:        time.Duration(windowSeconds) * time.Second,
		MaxConcurrent:     maxConcurrent,
		SlotTTL:           time.Duration(slotTTLSeconds) * time.Second,
		DuplicateWindow:   time.Duration(duplicateMinutes) * time.Minute,
		FailOpen:          failOpen,
	}, nil
}

func buildThrottleConfig() (ThrottleConfig, error) {
	rps, err := strconv.ParseFloat(getEnv("GLOBAL_RPS", "0"), 64)
	if err != nil {
		return ThrottleConfig{}, fmt.Errorf("invalid GLOBAL_RPS: %w", err)
	}
	burst, err := strconv.Atoi(getEnv("GLOBAL_BURST", "0"))
	if err != nil {
		return ThrottleConfig{}, fmt.Errorf("invalid GLOBAL_BURST: %w", err)
	}

	return ThrottleConfig{RPS: rps, Burst: burst}, nil
}

func parseFailureMode(mode string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "open":
		return true, nil
	case "closed":
		return false, nil
	default:
		return false, fmt.Errorf("invalid STORE_FAILURE_MODE: %q (want open or closed)", mode)
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
