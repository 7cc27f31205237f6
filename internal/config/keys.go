package config

import (
	"net/url"
	"os"
)

// SecretSource represents where a secret comes from.
type SecretSource string

const (
	SourceEnv    SecretSource = "env"
	SourceConfig SecretSource = "config"
	SourceNone   SecretSource = "none"
)

// SecretStatus represents the status of a secret setting.
type SecretStatus struct {
	Name   string       `json:"name"`
	Source SecretSource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"`
}

// CheckSecrets returns the status of every secret setting.
func CheckSecrets(cfg *Config) []SecretStatus {
	return []SecretStatus{
		checkSecret("Cache Database URL", cfg.Cache.DatabaseURL, maskURL, "FAIRVALUE_CACHE_DATABASE_URL", "DATABASE_URL"),
	}
}

// checkSecret checks if a secret is set and where it came from.
func checkSecret(name, value string, mask func(string) string, envVars ...string) SecretStatus {
	status := SecretStatus{Name: name, IsSet: value != "", Source: SourceNone}
	if value == "" {
		return status
	}

	status.Source = SourceConfig
	for _, e := range envVars {
		if os.Getenv(e) == value {
			status.Source = SourceEnv
			break
		}
	}
	status.Masked = mask(value)
	return status
}

// maskURL hides the password of a connection URL.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return maskKey(raw)
	}
	return u.Redacted()
}

// maskKey masks a value for display, showing only the first and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}

// Redacted returns a copy of the config safe to display, with connection
// secrets masked.
func (c Config) Redacted() Config {
	if c.Cache.DatabaseURL != "" {
		c.Cache.DatabaseURL = maskURL(c.Cache.DatabaseURL)
	}
	c.API.CORSOrigins = append([]string(nil), c.API.CORSOrigins...)
	c.Valuation.GrowthPath = append([]float64(nil), c.Valuation.GrowthPath...)
	return c
}
