// Package config provides configuration management for the form bridge
// application. It handles loading configuration from environment variables
// with sensible defaults and validates the configuration to ensure the
// application starts safely.
//
// The remote event API is deployed per region, so credentials come in
// three tuples (US, EU, CA) of auth URL, REST URL, client id, and client
// secret. Only the US tuple is strictly required; submissions resolving to
// an unconfigured region fail at dispatch time with a clear error.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - EVENT_DEFINITION_KEY: Event definition key stamped on every envelope (required)
//   - PHONE_PREFIX: Prefix prepended to the contact phone field (default: empty)
//   - BOOLEAN_EXEMPT_FIELDS: Comma-separated fields exempt from boolean
//     coercion (default: pods_quantity_picklist,number_of_pods_left)
//
// Regional Credentials (same shape for EU_ and CA_ prefixes):
//   - US_AUTH_URL: Token endpoint for the US deployment (required)
//   - US_REST_URL: Event endpoint for the US deployment (required)
//   - US_CLIENT_ID: Client identifier for the US deployment (required)
//   - US_CLIENT_SECRET: Client secret for the US deployment (required)
//
// Token Lifecycle:
//   - LOGIN_ATTEMPTS_MAX: Maximum token fetch/wait attempts (default: 3)
//   - REQUEST_TOKEN_WAIT: Seconds to wait between attempts (default: 2)
//
// Behavior Toggles:
//   - DO_NOT_SEND: Build and report the request without posting it (default: false)
//   - VALIDATE_PAYLOAD: Validate envelopes before dispatch (default: true)
//
// Redis Configuration (optional shared token cache):
//   - REDIS_ADDRESS: Redis server address; empty disables Redis (default: empty)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//
// Example usage:
//
//	config := config.Load()
//	if err := config.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"formcloud-bridge/internal/models"
	"formcloud-bridge/internal/routing"
)

// Config holds all configuration values for the form bridge application.
// All fields correspond to environment variables that can be set to
// override the default values.
//
// The configuration is loaded using the Load() function and should be
// validated using the Validate() method before use.
type Config struct {
	// Application settings
	Port               string // Server port number
	LogLevel           string // Logging level (debug, info, warn, error)
	EventDefinitionKey string // Event definition key for every envelope

	// Regional credentials
	US models.Credentials // North American deployment (required)
	EU models.Credentials // European deployment
	CA models.Credentials // Canadian deployment (legacy auth flow)

	// Token lifecycle
	LoginAttemptsMax int           // Bounded attempts for token fetch/wait
	RequestTokenWait time.Duration // Fixed wait between attempts

	// Behavior toggles
	DoNotSend       bool // Report the built request instead of posting it
	ValidatePayload bool // Validate envelopes before dispatch

	// Transformation settings
	PhonePrefix         string   // Prepended to the contact phone field
	BooleanExemptFields []string // Fields never boolean-coerced

	// Redis configuration for the optional shared token cache
	RedisAddress  string // Redis server address; empty disables Redis
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding
// default value is used.
//
// This function does not validate the configuration - call Validate() on
// the returned Config to ensure all required values are properly set.
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		EventDefinitionKey: getEnv("EVENT_DEFINITION_KEY", ""),

		// Regional credentials
		US: loadCredentials("US"),
		EU: loadCredentials("EU"),
		CA: loadCredentials("CA"),

		// Token lifecycle
		LoginAttemptsMax: getIntEnv("LOGIN_ATTEMPTS_MAX", 3),
		RequestTokenWait: time.Duration(getIntEnv("REQUEST_TOKEN_WAIT", 2)) * time.Second,

		// Behavior toggles
		DoNotSend:       getBoolEnv("DO_NOT_SEND", false),
		ValidatePayload: getBoolEnv("VALIDATE_PAYLOAD", true),

		// Transformation settings
		PhonePrefix: getEnv("PHONE_PREFIX", ""),
		BooleanExemptFields: splitList(getEnv("BOOLEAN_EXEMPT_FIELDS",
			"pods_quantity_picklist,number_of_pods_left")),

		// Redis configuration
		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
	}
}

// loadCredentials reads one regional credential tuple from <prefix>_AUTH_URL,
// <prefix>_REST_URL, <prefix>_CLIENT_ID and <prefix>_CLIENT_SECRET.
func loadCredentials(prefix string) models.Credentials {
	return models.Credentials{
		AuthURL:      getEnv(prefix+"_AUTH_URL", ""),
		RestURL:      getEnv(prefix+"_REST_URL", ""),
		ClientID:     getEnv(prefix+"_CLIENT_ID", ""),
		ClientSecret: getEnv(prefix+"_CLIENT_SECRET", ""),
	}
}

// CredentialsFor returns the credential tuple for a resolved region.
func (c *Config) CredentialsFor(region routing.Region) models.Credentials {
	switch region {
	case routing.RegionEU:
		return c.EU
	case routing.RegionCA:
		return c.CA
	default:
		return c.US
	}
}

// Regions returns the regions that have credentials configured, in a
// stable order. Used for operations that act on every deployment, such as
// the token reset endpoint.
func (c *Config) Regions() []routing.Region {
	var regions []routing.Region
	for _, region := range []routing.Region{routing.RegionUS, routing.RegionEU, routing.RegionCA} {
		if c.CredentialsFor(region).Configured() {
			regions = append(regions, region)
		}
	}
	return regions
}

// getEnv retrieves an environment variable value or returns a default value
// if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a
// default value on absence or parse failure.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable value or returns a
// default value on absence or parse failure.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// splitList splits a comma-separated value into trimmed non-empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid.
//
// This method checks:
//   - Required fields (EVENT_DEFINITION_KEY, the US credential tuple)
//   - Field format validation (port, Redis database number)
//   - Completeness of any partially configured regional tuple
//
// The application should call this method after loading configuration and
// before starting to ensure safe operation.
func (c *Config) Validate() error {
	if c.EventDefinitionKey == "" {
		return fmt.Errorf("EVENT_DEFINITION_KEY environment variable is required")
	}

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	// The US deployment is the default route and must be fully configured
	if !c.US.Configured() {
		return fmt.Errorf("US_AUTH_URL, US_REST_URL, US_CLIENT_ID and US_CLIENT_SECRET are required")
	}

	// A partially configured tuple would route submissions into failing
	// dispatches, so reject it at startup
	for _, tuple := range []struct {
		prefix string
		creds  models.Credentials
	}{
		{"EU", c.EU},
		{"CA", c.CA},
	} {
		if !tuple.creds.Empty() && !tuple.creds.Configured() {
			return fmt.Errorf("%s_* credentials are partially configured: set all of %s_AUTH_URL, %s_REST_URL, %s_CLIENT_ID and %s_CLIENT_SECRET or none",
				tuple.prefix, tuple.prefix, tuple.prefix, tuple.prefix, tuple.prefix)
		}
	}

	if c.LoginAttemptsMax < 1 {
		return fmt.Errorf("LOGIN_ATTEMPTS_MAX must be a positive number")
	}
	if c.RequestTokenWait < 0 {
		return fmt.Errorf("REQUEST_TOKEN_WAIT must not be negative")
	}

	// Validate Redis config if provided
	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
	}

	return nil
}
