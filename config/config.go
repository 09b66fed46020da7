package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL      string
	REDIS_PASSWORD string
	REDIS_DB       string
	// Admin credentials
	ADMIN_EMAIL         string
	ADMIN_PASSWORD      string
	ADMIN_PASSWORD_HASH string
	// Validation behavior
	VALIDATE_PHASE_DELAY_MS int
	KEY_SCAN_FALLBACK       bool
	// HTTP
	ALLOWED_ORIGINS string
	// Background jobs
	CRON_ENABLED bool
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	phaseDelay, err := strconv.Atoi(os.Getenv("VALIDATE_PHASE_DELAY_MS"))
	if err != nil || phaseDelay < 0 {
		phaseDelay = 0
	}

	scanFallback := os.Getenv("KEY_SCAN_FALLBACK") == "true"
	cronEnabled := os.Getenv("CRON_ENABLED") != "false"

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: os.Getenv("JWT_ISSUER"),
		// Redis
		REDIS_URL:      os.Getenv("REDIS_URL"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       os.Getenv("REDIS_DB"),
		// Admin
		ADMIN_EMAIL:         os.Getenv("ADMIN_EMAIL"),
		ADMIN_PASSWORD:      os.Getenv("ADMIN_PASSWORD"),
		ADMIN_PASSWORD_HASH: os.Getenv("ADMIN_PASSWORD_HASH"),
		// Validation
		VALIDATE_PHASE_DELAY_MS: phaseDelay,
		KEY_SCAN_FALLBACK:       scanFallback,
		// HTTP
		ALLOWED_ORIGINS: os.Getenv("ALLOWED_ORIGINS"),
		// Jobs
		CRON_ENABLED: cronEnabled,
	}

	return envVariables, nil
}
